// Package openapitest checks that the requests a test suite sends, and the
// responses the application returns, match an OpenAPI document.
//
// A Client wraps the application's handler (or a live server). Every call is
// validated before dispatch and its response is validated afterwards:
//
//	c := openapitest.New(app.Handler())
//	if err := c.LoadSchema("openapi.yaml"); err != nil {
//		t.Fatalf("load schema: %v", err)
//	}
//
//	res, err := c.JSON(ctx, http.MethodGet, "/api/foo", nil, nil)
//	if err != nil {
//		t.Fatalf("call: %v", err)
//	}
//
// Failures are *ConfigurationError (no usable schema), *RequestError (the
// request does not match any operation or breaks its parameters, body or
// security) and *ResponseError (undeclared status, headers or body). A
// ResponseError carries the raw body and, for body mismatches, the JSON path
// of the offending field.
//
// SkipNextValidation lets one deliberately invalid request through; its
// response is still checked against the operation addressed by the request
// path and method.
package openapitest
