package openapitest

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
)

// Code classifies a validation or configuration failure.
type Code string

// Configuration failure codes.
const (
	CodeSchemaUnset   Code = "schema_unset"
	CodeSchemaLoad    Code = "schema_load"
	CodeSchemaInvalid Code = "schema_invalid"
	CodeRouter        Code = "router"
)

// Request failure codes.
const (
	CodeNoRoute          Code = "no_route"
	CodeMethodNotAllowed Code = "method_not_allowed"
	CodeInvalidParameter Code = "invalid_parameter"
	CodeInvalidBody      Code = "invalid_body"
	CodeSecurity         Code = "security"
	CodeInvalidRequest   Code = "invalid_request"
)

// Response failure codes. CodeInvalidBody is shared with requests.
const (
	CodeOperationNotFound Code = "operation_not_found"
	CodeInvalidStatus     Code = "invalid_status"
	CodeInvalidHeader     Code = "invalid_header"
	CodeInvalidResponse   Code = "invalid_response"
)

// ErrSchemaNotLoaded is the cause of the ConfigurationError returned when a
// call is made before any schema was loaded.
var ErrSchemaNotLoaded = errors.New("must load an OpenAPI schema before performing any calls")

// ConfigurationError reports a missing or unusable schema.
type ConfigurationError struct {
	Code    Code
	Path    string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	return joinMessage(e.Message, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RequestError reports an outbound request that does not satisfy the schema.
type RequestError struct {
	Code    Code
	Method  string
	Path    string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	return joinMessage(e.Message, e.Err)
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ResponseError reports a response that does not satisfy the schema for the
// operation it answered. Body holds the raw response body and Crumbs, when the
// failure located a field, the pretty printed path to it.
type ResponseError struct {
	Code      Code
	Operation OperationAddress
	Status    int
	Body      string
	Crumbs    string
	Message   string
	Err       error
}

func (e *ResponseError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *ResponseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func joinMessage(message string, cause error) string {
	if cause == nil {
		return message
	}
	return message + ": " + cause.Error()
}

func newConfigurationError(code Code, path, message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Path:    path,
		Message: message,
		Err:     cause,
	}
}

func newRequestError(method, path string, cause error) *RequestError {
	return &RequestError{
		Code:    requestErrorCode(cause),
		Method:  method,
		Path:    path,
		Message: "validation failed for OpenAPI request",
		Err:     cause,
	}
}

func newResponseError(addr OperationAddress, res *Response, cause error) *ResponseError {
	e := &ResponseError{
		Code:      responseErrorCode(cause),
		Operation: addr,
		Err:       cause,
	}
	if res != nil {
		e.Status = res.StatusCode
		e.Body = string(res.Body)
	}
	if e.Code == CodeInvalidBody {
		e.Crumbs = breadcrumbs(cause, res)
	}

	var b strings.Builder
	b.WriteString("OpenAPI response validation failed")
	if cause != nil {
		b.WriteString(": ")
		b.WriteString(cause.Error())
	}
	b.WriteString("\nbody: ")
	b.WriteString(e.Body)
	b.WriteString("\n")
	if e.Crumbs != "" {
		b.WriteString("crumbs: ")
		b.WriteString(e.Crumbs)
		b.WriteString("\n")
	}
	e.Message = b.String()
	return e
}

func requestErrorCode(err error) Code {
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) {
		switch routeErr.Reason {
		case routers.ErrPathNotFound.Error():
			return CodeNoRoute
		case routers.ErrMethodNotAllowed.Error():
			return CodeMethodNotAllowed
		}
	}

	var secErr *openapi3filter.SecurityRequirementsError
	if errors.As(err, &secErr) {
		return CodeSecurity
	}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			return CodeInvalidParameter
		case reqErr.RequestBody != nil:
			return CodeInvalidBody
		}
	}
	return CodeInvalidRequest
}

func responseErrorCode(err error) Code {
	if errors.Is(err, errOperationNotFound) {
		return CodeOperationNotFound
	}

	var respErr *openapi3filter.ResponseError
	if !errors.As(err, &respErr) {
		return CodeInvalidResponse
	}

	reason := strings.ToLower(respErr.Reason)
	switch {
	case strings.HasPrefix(reason, "response header"):
		return CodeInvalidHeader
	case reason == "status is not supported":
		return CodeInvalidStatus
	case strings.Contains(reason, "body"):
		return CodeInvalidBody
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		return CodeInvalidBody
	}
	return CodeInvalidResponse
}

// breadcrumbs renders the JSON location of the first schema violation in err
// as an indented JSON array, or "" when the failure carries no location.
// Segments that index an array in the response body are rendered as numbers.
func breadcrumbs(err error, res *Response) string {
	var schemaErr *openapi3.SchemaError
	if !errors.As(err, &schemaErr) {
		return ""
	}

	var node any
	if res != nil && len(res.Body) > 0 {
		if jsonErr := json.Unmarshal(res.Body, &node); jsonErr != nil {
			node = nil
		}
	}

	chain := make([]any, 0, len(schemaErr.JSONPointer()))
	for _, part := range schemaErr.JSONPointer() {
		if part == "" {
			continue
		}
		switch current := node.(type) {
		case []any:
			if i, convErr := strconv.Atoi(part); convErr == nil && i >= 0 && i < len(current) {
				chain = append(chain, i)
				node = current[i]
				continue
			}
			node = nil
		case map[string]any:
			node = current[part]
		default:
			node = nil
		}
		chain = append(chain, part)
	}
	if len(chain) == 0 {
		return ""
	}

	raw, err := json.MarshalIndent(chain, "", "    ")
	if err != nil {
		return ""
	}
	return string(raw)
}
