package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/saiaj/openapitest/internal/httpapi"
	"github.com/saiaj/openapitest/internal/logging"
)

var schemaPath = filepath.Join("..", "..", "openapi.yaml")

func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.toml")
}

func startServer(t *testing.T) string {
	t.Helper()

	app, err := httpapi.New(logging.Discard())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := Run(context.Background(), append([]string{"oatest"}, args...), stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func decodeError(t *testing.T, raw string) errorDetail {
	t.Helper()

	var payload errorPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode error payload %q: %v", raw, err)
	}
	return payload.Error
}

func TestRunRequiresCommand(t *testing.T) {
	code, _, stderr := run(t)
	if code != exitUsage {
		t.Fatalf("exit=%d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "usage: oatest") {
		t.Fatalf("stderr=%q, want usage", stderr)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, stderr := run(t, "bogus")
	if code != exitUsage {
		t.Fatalf("exit=%d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "unknown command: bogus") {
		t.Fatalf("stderr=%q", stderr)
	}
}

func TestLintListsOperations(t *testing.T) {
	code, stdout, stderr := run(t, "lint", "-config", missingConfig(t), "-schema", schemaPath, "-output", "json")
	if code != exitOK {
		t.Fatalf("exit=%d, stderr=%s", code, stderr)
	}

	var result lintResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if result.Schema != schemaPath {
		t.Fatalf("schema=%q, want %q", result.Schema, schemaPath)
	}
	want := []string{"GET /api/foo", "GET /api/foo/{id}", "POST /api/upload", "GET /healthz"}
	if !slices.Equal(result.Operations, want) {
		t.Fatalf("operations=%v, want %v", result.Operations, want)
	}
}

func TestLintTextOutput(t *testing.T) {
	code, stdout, stderr := run(t, "lint", "-config", missingConfig(t), "-schema", schemaPath, "-output", "text")
	if code != exitOK {
		t.Fatalf("exit=%d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, "METHOD") || !strings.Contains(stdout, "/api/upload") {
		t.Fatalf("stdout=%q", stdout)
	}
}

func TestLintSchemaFromConfigFile(t *testing.T) {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	cfgPath := filepath.Join(t.TempDir(), "openapitest.toml")
	if err := os.WriteFile(cfgPath, []byte("schema = \""+filepath.ToSlash(abs)+"\"\noutput = \"json\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, stdout, stderr := run(t, "lint", "-config", cfgPath)
	if code != exitOK {
		t.Fatalf("exit=%d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, `"operations"`) {
		t.Fatalf("stdout=%q, want json", stdout)
	}
}

func TestLintFlagOverridesConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "openapitest.toml")
	if err := os.WriteFile(cfgPath, []byte("schema = \"does-not-exist.yaml\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, _, stderr := run(t, "lint", "-config", cfgPath, "-schema", schemaPath, "-output", "json")
	if code != exitOK {
		t.Fatalf("exit=%d, stderr=%s", code, stderr)
	}
}

func TestLintMissingSchema(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	code, _, stderr := run(t, "lint", "-config", missingConfig(t), "-schema", missing, "-output", "text")
	if code != exitError {
		t.Fatalf("exit=%d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "unable to load OpenAPI at path "+missing) {
		t.Fatalf("stderr=%q", stderr)
	}

	code, _, stderr = run(t, "lint", "-config", missingConfig(t), "-schema", missing, "-output", "json")
	if code != exitError {
		t.Fatalf("exit=%d, want %d", code, exitError)
	}
	detail := decodeError(t, stderr)
	if detail.Kind != "configuration" || detail.Code != "schema_load" {
		t.Fatalf("error=%+v, want configuration/schema_load", detail)
	}
}

func TestLintRejectsBadFlags(t *testing.T) {
	tests := [][]string{
		{"lint", "-output", "yaml"},
		{"lint", "-config", "", "extra"},
		{"lint", "-log-level", "loud"},
	}
	for _, args := range tests {
		if code, _, _ := run(t, args...); code != exitUsage {
			t.Fatalf("args=%v exit=%d, want %d", args, code, exitUsage)
		}
	}
}

func TestCallValidRequest(t *testing.T) {
	url := startServer(t)

	code, stdout, stderr := run(t, "call", "-config", missingConfig(t), "-schema", schemaPath,
		"-url", url, "-path", "/api/foo", "-output", "json")
	if code != exitOK {
		t.Fatalf("exit=%d, stderr=%s", code, stderr)
	}

	var result struct {
		Status int `json:"status"`
		Body   struct {
			Foo string `json:"foo"`
		} `json:"body"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decode output %q: %v", stdout, err)
	}
	if result.Status != 200 || result.Body.Foo != "bar" {
		t.Fatalf("result=%+v, want 200 bar", result)
	}
}

func TestCallTextOutput(t *testing.T) {
	url := startServer(t)

	code, stdout, stderr := run(t, "call", "-config", missingConfig(t), "-schema", schemaPath,
		"-url", url, "-path", "/api/foo", "-output", "text")
	if code != exitOK {
		t.Fatalf("exit=%d, stderr=%s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "HTTP 200 OK\n") {
		t.Fatalf("stdout=%q", stdout)
	}
}

func TestCallInvalidResponse(t *testing.T) {
	url := startServer(t)

	code, _, stderr := run(t, "call", "-config", missingConfig(t), "-schema", schemaPath,
		"-url", url, "-path", "/api/foo?bad_enum=true", "-output", "json")
	if code != exitError {
		t.Fatalf("exit=%d, want %d", code, exitError)
	}

	detail := decodeError(t, stderr)
	if detail.Kind != "response" || detail.Code != "invalid_body" {
		t.Fatalf("error=%+v, want response/invalid_body", detail)
	}
	if !strings.Contains(detail.Body, "foobar") {
		t.Fatalf("body=%q, want foobar", detail.Body)
	}
	if !strings.Contains(detail.Crumbs, `"foo"`) {
		t.Fatalf("crumbs=%q, want foo", detail.Crumbs)
	}
}

func TestCallInvalidRequest(t *testing.T) {
	url := startServer(t)

	code, _, stderr := run(t, "call", "-config", missingConfig(t), "-schema", schemaPath,
		"-url", url, "-path", "/api/foo/not-a-uuid", "-output", "json")
	if code != exitError {
		t.Fatalf("exit=%d, want %d", code, exitError)
	}

	detail := decodeError(t, stderr)
	if detail.Kind != "request" || detail.Code != "invalid_parameter" {
		t.Fatalf("error=%+v, want request/invalid_parameter", detail)
	}
}

func TestCallSkipValidation(t *testing.T) {
	url := startServer(t)

	code, stdout, stderr := run(t, "call", "-config", missingConfig(t), "-schema", schemaPath,
		"-url", url, "-path", "/api/foo/not-a-uuid", "-skip-validation", "-output", "json")
	if code != exitOK {
		t.Fatalf("exit=%d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, `"status": 400`) {
		t.Fatalf("stdout=%q, want status 400", stdout)
	}
}

func TestCallUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing path", args: []string{"call"}},
		{name: "invalid data", args: []string{"call", "-path", "/api/foo", "-data", "{"}},
		{name: "bad header", args: []string{"call", "-path", "/api/foo", "-header", "nocolon"}},
		{name: "extra args", args: []string{"call", "-path", "/api/foo", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{}, tt.args...)
			args = append(args[:1], append([]string{"-config", missingConfig(t)}, args[1:]...)...)
			if code, _, _ := run(t, args...); code != exitUsage {
				t.Fatalf("exit=%d, want %d", code, exitUsage)
			}
		})
	}
}

func TestHeaderFlags(t *testing.T) {
	var h headerFlags
	if err := h.Set("X-Api-Key:  secret "); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := h.Set("Accept: text/plain"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if got := h["X-Api-Key"]; got != "secret" {
		t.Fatalf("X-Api-Key=%q, want secret", got)
	}
	if got := h["Accept"]; got != "text/plain" {
		t.Fatalf("Accept=%q, want text/plain", got)
	}
	if err := h.Set(": empty"); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestResolveOutput(t *testing.T) {
	if got := resolveOutput("", &bytes.Buffer{}); got != "json" {
		t.Fatalf("auto on buffer=%q, want json", got)
	}
	if got := resolveOutput("text", &bytes.Buffer{}); got != "text" {
		t.Fatalf("explicit text=%q, want text", got)
	}
}
