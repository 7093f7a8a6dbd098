package openapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the result of a dispatched call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Successful reports whether the status code is in the 2xx range.
func (r *Response) Successful() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON decodes the body into dst.
func (r *Response) DecodeJSON(dst any) error {
	if r == nil {
		return fmt.Errorf("decode response: no response")
	}
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
