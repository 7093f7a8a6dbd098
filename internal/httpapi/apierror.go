package httpapi

import (
	"errors"
	"net/http"

	"github.com/saiaj/openapitest/internal/httpapi/response"
)

type apiErrorKind string

const (
	apiErrorBadRequest      apiErrorKind = "bad_request"
	apiErrorValidation      apiErrorKind = "validation_error"
	apiErrorNotFound        apiErrorKind = "not_found"
	apiErrorRequestTooLarge apiErrorKind = "request_too_large"
	apiErrorInternalError   apiErrorKind = "internal_error"
)

type apiError struct {
	kind    apiErrorKind
	message string
	details any
	cause   error
}

func (e *apiError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *apiError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func newAPIError(kind apiErrorKind, message string, details any, cause error) *apiError {
	return &apiError{
		kind:    kind,
		message: message,
		details: details,
		cause:   cause,
	}
}

func errBadRequest(message string) error {
	return newAPIError(apiErrorBadRequest, message, nil, nil)
}

func errNotFound() error {
	return newAPIError(apiErrorNotFound, "not found", nil, nil)
}

func errRequestTooLarge() error {
	return newAPIError(apiErrorRequestTooLarge, "request body too large", nil, nil)
}

func errValidation(errs response.ValidationErrors) error {
	var details any
	if errs.Any() {
		details = errs.FieldErrors
	}
	return newAPIError(apiErrorValidation, "validation failed", details, nil)
}

func errValidationField(field, message string) error {
	var errs response.ValidationErrors
	errs.Add(field, message)
	return errValidation(errs)
}

func statusForAPIErrorKind(kind apiErrorKind) int {
	switch kind {
	case apiErrorBadRequest, apiErrorValidation:
		return http.StatusBadRequest
	case apiErrorNotFound:
		return http.StatusNotFound
	case apiErrorRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case apiErrorInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func asAPIError(err error) (*apiError, bool) {
	var e *apiError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
