package openapitest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
)

// Transport performs the underlying call once a request has been built.
type Transport interface {
	Dispatch(req *http.Request) (*Response, error)
}

// HandlerTransport serves requests in-process with an http.Handler.
type HandlerTransport struct {
	Handler http.Handler
}

// Dispatch records the handler's response.
func (t HandlerTransport) Dispatch(req *http.Request) (*Response, error) {
	if t.Handler == nil {
		return nil, errors.New("handler is required")
	}

	// Server-side fields a real listener would have filled in.
	req.RequestURI = req.URL.RequestURI()
	if req.RemoteAddr == "" {
		req.RemoteAddr = "192.0.2.1:1234"
	}

	rec := httptest.NewRecorder()
	t.Handler.ServeHTTP(rec, req)

	res := rec.Result()
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read recorded body: %w", err)
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}

// HTTPTransport sends requests to a live server.
type HTTPTransport struct {
	Client *http.Client
}

// Dispatch sends req and reads the full response body.
func (t HTTPTransport) Dispatch(req *http.Request) (*Response, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}
