package openapitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

var errOperationNotFound = errors.New("no operation declared for address")

// OperationAddress identifies a schema operation by path template and
// lowercase method.
type OperationAddress struct {
	Path   string
	Method string
}

func newOperationAddress(path, method string) OperationAddress {
	return OperationAddress{Path: path, Method: strings.ToLower(method)}
}

func (a OperationAddress) String() string {
	return strings.ToUpper(a.Method) + " " + a.Path
}

// Schema is a parsed and validated OpenAPI document with its router.
type Schema struct {
	path   string
	doc    *openapi3.T
	router routers.Router
}

// LoadSchemaFile parses the OpenAPI document at path, validates it and builds
// the router used to match requests. Failures are *ConfigurationError.
func LoadSchemaFile(path string) (*Schema, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, loadError(CodeSchemaLoad, path, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, loadError(CodeSchemaInvalid, path, err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, loadError(CodeRouter, path, err)
	}

	return &Schema{path: path, doc: doc, router: router}, nil
}

func loadError(code Code, path string, cause error) *ConfigurationError {
	return newConfigurationError(code, path, fmt.Sprintf("unable to load OpenAPI at path %s", path), cause)
}

// Path returns the file the schema was loaded from.
func (s *Schema) Path() string {
	return s.path
}

// Document returns the underlying OpenAPI document.
func (s *Schema) Document() *openapi3.T {
	return s.doc
}

// Operations lists every declared operation sorted by path then method.
func (s *Schema) Operations() []OperationAddress {
	if s.doc == nil || s.doc.Paths == nil {
		return nil
	}

	var ops []OperationAddress
	for path, item := range s.doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method := range item.Operations() {
			ops = append(ops, newOperationAddress(path, method))
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops
}

// ValidateRequest matches req to a declared operation and validates its
// parameters, body and security. The body of req is restored afterwards.
func (s *Schema) ValidateRequest(ctx context.Context, req *http.Request, opts *openapi3filter.Options) (OperationAddress, error) {
	route, pathParams, err := s.router.FindRoute(req)
	if err != nil {
		return OperationAddress{}, err
	}

	body, err := drainBody(req)
	if err != nil {
		return OperationAddress{}, err
	}
	defer restoreBody(req, body)

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    opts,
	}
	if err := openapi3filter.ValidateRequest(ctx, input); err != nil {
		return OperationAddress{}, err
	}
	return newOperationAddress(route.Path, route.Method), nil
}

// ValidateResponse validates res against the operation at addr. req is the
// request that produced res.
func (s *Schema) ValidateResponse(ctx context.Context, addr OperationAddress, req *http.Request, res *Response, opts *openapi3filter.Options) error {
	route, pathParams, err := s.resolve(addr)
	if err != nil {
		return err
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
			Options:    opts,
		},
		Status:  res.StatusCode,
		Header:  res.Header,
		Options: opts,
	}
	input.SetBodyBytes(res.Body)

	return openapi3filter.ValidateResponse(ctx, input)
}

// resolve finds the route for addr, either by its declared template or, for
// addresses synthesized from a concrete request path, by routing that path.
func (s *Schema) resolve(addr OperationAddress) (*routers.Route, map[string]string, error) {
	method := strings.ToUpper(addr.Method)

	if item := s.doc.Paths.Find(addr.Path); item != nil {
		op := item.GetOperation(method)
		if op == nil {
			return nil, nil, fmt.Errorf("%w: %s", errOperationNotFound, addr)
		}
		return &routers.Route{
			Spec:      s.doc,
			Path:      addr.Path,
			PathItem:  item,
			Method:    method,
			Operation: op,
		}, nil, nil
	}

	probe := &http.Request{Method: method, URL: &url.URL{Path: addr.Path}, Header: http.Header{}}
	route, pathParams, err := s.router.FindRoute(probe)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", errOperationNotFound, addr, err)
	}
	return route, pathParams, nil
}

func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if err := req.Body.Close(); err != nil {
		return nil, fmt.Errorf("close request body: %w", err)
	}
	restoreBody(req, body)
	return body, nil
}

func restoreBody(req *http.Request, body []byte) {
	if body == nil {
		return
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
}

// SchemaCache shares parsed schemas between clients. It is safe for
// concurrent use.
type SchemaCache struct {
	mu      sync.Mutex
	schemas map[string]*Schema
}

// NewSchemaCache returns an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{schemas: make(map[string]*Schema)}
}

// Load returns the cached schema for path, parsing it on first use. Failed
// loads are not cached.
func (c *SchemaCache) Load(path string) (*Schema, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, loadError(CodeSchemaLoad, path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.schemas[key]; ok {
		return s, nil
	}

	s, err := LoadSchemaFile(path)
	if err != nil {
		return nil, err
	}
	c.schemas[key] = s
	return s, nil
}

// Len reports how many schemas are cached.
func (c *SchemaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.schemas)
}
