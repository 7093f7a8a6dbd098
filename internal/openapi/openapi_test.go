package openapi_test

import (
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func TestOpenAPI_IsValidAndHasRequiredPaths(t *testing.T) {
	t.Parallel()

	path := filepath.Join("..", "..", "openapi.yaml")

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("load openapi: %v", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		t.Fatalf("validate openapi: %v", err)
	}

	requiredPaths := []string{
		"/healthz",
		"/api/foo",
		"/api/foo/{id}",
		"/api/upload",
	}

	for _, p := range requiredPaths {
		if doc.Paths == nil || doc.Paths.Find(p) == nil {
			t.Fatalf("missing required path: %s", p)
		}
	}
}
