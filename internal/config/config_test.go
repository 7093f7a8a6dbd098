package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SchemaPath != "openapi.yaml" {
		t.Fatalf("SchemaPath = %q, want %q", cfg.SchemaPath, "openapi.yaml")
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("BaseURL = %q, want %q", cfg.BaseURL, "http://localhost:8080")
	}
	if cfg.Output != OutputAuto {
		t.Fatalf("Output = %q, want auto", cfg.Output)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("Timeout = %s, want %s", cfg.Timeout, 30*time.Second)
	}
	if cfg.Server != nil {
		t.Fatalf("Server = %v, want nil", cfg.Server)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapitest.toml")
	if err := os.WriteFile(path, []byte(`schema = "api/openapi.yaml"
base_url = "http://example.test"
log_level = "debug"
output = "json"
timeout = "12s"

[server]
http_x_api_key = "secret"
REMOTE_ADDR = "10.0.0.1"
`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("OPENAPI_BASE_URL", "http://override.test")
	t.Setenv("OPENAPI_OUTPUT", "text")
	t.Setenv("OPENAPI_TIMEOUT", "8s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SchemaPath != "api/openapi.yaml" {
		t.Fatalf("SchemaPath = %q, want %q", cfg.SchemaPath, "api/openapi.yaml")
	}
	if cfg.BaseURL != "http://override.test" {
		t.Fatalf("BaseURL = %q, want %q", cfg.BaseURL, "http://override.test")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Output != OutputText {
		t.Fatalf("Output = %q, want %q", cfg.Output, OutputText)
	}
	if cfg.Timeout != 8*time.Second {
		t.Fatalf("Timeout = %s, want %s", cfg.Timeout, 8*time.Second)
	}
	if got := cfg.Server["HTTP_X_API_KEY"]; got != "secret" {
		t.Fatalf("Server[HTTP_X_API_KEY] = %q, want secret", got)
	}
	if got := cfg.Server["REMOTE_ADDR"]; got != "10.0.0.1" {
		t.Fatalf("Server[REMOTE_ADDR] = %q, want 10.0.0.1", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "file log level", file: `log_level = "loud"`},
		{name: "file timeout", file: `timeout = "soon"`},
		{name: "file negative timeout", file: `timeout = "-1s"`},
		{name: "file output", file: `output = "yaml"`},
		{name: "malformed toml", file: `schema = `},
		{name: "env log level", env: map[string]string{"OPENAPI_LOG_LEVEL": "loud"}},
		{name: "env timeout", env: map[string]string{"OPENAPI_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "openapitest.toml")
			if err := os.WriteFile(path, []byte(tt.file), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(path); err == nil {
				t.Fatalf("Load expected error")
			}
		})
	}
}

func TestParseOutput(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputAuto, "auto": OutputAuto, " JSON ": OutputJSON, "text": OutputText} {
		got, err := ParseOutput(in)
		if err != nil {
			t.Fatalf("ParseOutput(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseOutput(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseOutput("nope"); err == nil {
		t.Fatalf("ParseOutput expected error")
	}
}

func TestOutputFormatFlagValue(t *testing.T) {
	var o OutputFormat
	if got := o.String(); got != "auto" {
		t.Fatalf("String() = %q, want auto", got)
	}
	if err := o.Set("json"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if o != OutputJSON {
		t.Fatalf("Output = %q, want json", o)
	}
}
