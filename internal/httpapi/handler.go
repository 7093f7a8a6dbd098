package httpapi

import (
	"net/http"

	"github.com/saiaj/openapitest/internal/httpapi/response"
)

// endpointFunc is a sample API endpoint that reports failures as errors
// instead of writing them itself.
type endpointFunc func(http.ResponseWriter, *http.Request) error

// handle adapts an endpoint to chi, turning a returned error into a Problem
// body declared in openapi.yaml.
func (a *App) handle(fn endpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			a.writeError(w, r, err)
		}
	}
}

// writeError maps an apiError to its status and Problem code. Anything else
// is logged and answered as internal_error.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		a.logger.Error("endpoint failed", "err", err, "path", safePath(r))
		a.writeProblem(w, http.StatusInternalServerError, string(apiErrorInternalError), "internal error", nil)
		return
	}
	a.writeProblem(w, statusForAPIErrorKind(apiErr.kind), string(apiErr.kind), apiErr.message, apiErr.details)
}

func (a *App) writeProblem(w http.ResponseWriter, status int, code, message string, details any) {
	if err := response.WriteProblem(w, status, code, message, details); err != nil {
		a.logger.Warn("write failed", "err", err)
	}
}

func (a *App) writeJSON(w http.ResponseWriter, r *http.Request, status int, value any) {
	if err := response.WriteJSON(w, status, value); err != nil {
		a.logger.Warn("write failed", "err", err, "path", safePath(r))
	}
}

// safePath returns the request path for logs, tolerating a nil request.
func safePath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.Path
}
