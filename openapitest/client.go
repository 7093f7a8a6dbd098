package openapitest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/google/uuid"
	"github.com/saiaj/openapitest/internal/logging"
)

const (
	defaultBaseURL  = "http://localhost"
	requestIDHeader = "X-Request-Id"
)

// Client validates every call it makes against an OpenAPI schema. A Client
// belongs to a single test and is not safe for concurrent use.
type Client struct {
	transport Transport
	logger    *slog.Logger
	baseURL   string
	server    map[string]string
	cache     *SchemaCache
	authFunc  openapi3filter.AuthenticationFunc

	schemaPath string
	schema     *Schema
	skipNext   bool
}

// New returns a Client that serves calls in-process with handler.
func New(handler http.Handler, opts ...Option) *Client {
	return NewWithTransport(HandlerTransport{Handler: handler}, opts...)
}

// NewRemote returns a Client that sends calls to the server at baseURL.
// A nil httpClient uses http.DefaultClient.
func NewRemote(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL(baseURL)}, opts...)
	return NewWithTransport(HTTPTransport{Client: httpClient}, opts...)
}

// NewWithTransport returns a Client dispatching through t.
func NewWithTransport(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		logger:    logging.Discard(),
		baseURL:   defaultBaseURL,
		authFunc: func(context.Context, *openapi3filter.AuthenticationInput) error {
			return nil
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadSchema loads the OpenAPI document at path. Loading the path already in
// use is a no-op; a failed load keeps the previous schema.
func (c *Client) LoadSchema(path string) error {
	if c.schema != nil && c.schemaPath == path {
		return nil
	}

	var (
		s   *Schema
		err error
	)
	if c.cache != nil {
		s, err = c.cache.Load(path)
	} else {
		s, err = LoadSchemaFile(path)
	}
	if err != nil {
		return err
	}

	c.schema = s
	c.schemaPath = path
	c.logger.Debug("openapi schema loaded", "path", path)
	return nil
}

// Schema returns the loaded schema, or nil.
func (c *Client) Schema() *Schema {
	return c.schema
}

// SkipNextValidation disables request validation for the next call only. The
// response of that call is still validated.
func (c *Client) SkipNextValidation() *Client {
	c.skipNext = true
	return c
}

// Call validates the request described by call, dispatches it and validates
// the response. On a *ResponseError the response is returned with the error.
func (c *Client) Call(ctx context.Context, call Call) (*Response, error) {
	if c.schema == nil {
		return nil, newConfigurationError(CodeSchemaUnset, "", "openapi schema is not set", ErrSchemaNotLoaded)
	}
	if c.transport == nil {
		return nil, errors.New("transport is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	call.Server = c.serverVariables(call.Server)
	built, err := buildRequest(c.baseURL, call)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := built.header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		built.header.Set(requestIDHeader, requestID)
	}

	req, err := built.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	opts := c.filterOptions()

	var addr OperationAddress
	if c.skipNext {
		c.skipNext = false
		addr = newOperationAddress(req.URL.Path, req.Method)
		c.logger.Debug("openapi request validation skipped", "request_id", requestID, "operation", addr.String())
	} else {
		addr, err = c.schema.ValidateRequest(ctx, req, opts)
		if err != nil {
			reqErr := newRequestError(req.Method, req.URL.Path, err)
			c.logger.Warn("openapi request rejected",
				"request_id", requestID,
				"method", req.Method,
				"path", req.URL.Path,
				"code", string(reqErr.Code),
				"err", err,
			)
			return nil, reqErr
		}
	}

	dispatchReq, err := built.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := c.transport.Dispatch(dispatchReq)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", addr, err)
	}

	c.logger.Debug("openapi call",
		"request_id", requestID,
		"method", req.Method,
		"path", req.URL.Path,
		"operation", addr.String(),
		"status", res.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := c.schema.ValidateResponse(ctx, addr, req, res, opts); err != nil {
		resErr := newResponseError(addr, res, err)
		c.logger.Warn("openapi response rejected",
			"request_id", requestID,
			"operation", addr.String(),
			"status", res.StatusCode,
			"code", string(resErr.Code),
			"err", err,
		)
		return res, resErr
	}

	return res, nil
}

// JSON performs a call with data encoded as a JSON body. A nil data sends no
// body. headers are added to the request.
func (c *Client) JSON(ctx context.Context, method, uri string, data any, headers map[string]string) (*Response, error) {
	call := Call{
		Method: method,
		URI:    uri,
		Server: map[string]string{
			"CONTENT_TYPE": "application/json",
			"HTTP_ACCEPT":  "application/json",
		},
	}
	if data != nil {
		body, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		call.Body = body
	}
	for name, value := range headers {
		call.Server[headerServerKey(name)] = value
	}
	return c.Call(ctx, call)
}

// Get performs a GET call with the given query parameters.
func (c *Client) Get(ctx context.Context, uri string, params map[string]any) (*Response, error) {
	return c.Call(ctx, Call{Method: http.MethodGet, URI: uri, Parameters: params})
}

func (c *Client) serverVariables(perCall map[string]string) map[string]string {
	merged := make(map[string]string, len(c.server)+len(perCall))
	for k, v := range c.server {
		merged[k] = v
	}
	for k, v := range perCall {
		merged[k] = v
	}
	return merged
}

func (c *Client) filterOptions() *openapi3filter.Options {
	return &openapi3filter.Options{
		IncludeResponseStatus: true,
		AuthenticationFunc:    c.authFunc,
	}
}

// headerServerKey maps a header name to its server variable.
func headerServerKey(name string) string {
	canonical := http.CanonicalHeaderKey(name)
	switch canonical {
	case "Content-Type":
		return "CONTENT_TYPE"
	case "Content-Length":
		return "CONTENT_LENGTH"
	}
	key := make([]byte, 0, len(canonical)+5)
	key = append(key, "HTTP_"...)
	for i := 0; i < len(canonical); i++ {
		ch := canonical[i]
		switch {
		case ch == '-':
			ch = '_'
		case ch >= 'a' && ch <= 'z':
			ch -= 'a' - 'A'
		}
		key = append(key, ch)
	}
	return string(key)
}
