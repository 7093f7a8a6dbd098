package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type fooResponse struct {
	ID  string `json:"id,omitempty"`
	Foo string `json:"foo"`
}

// handleFooIndex answers with a fixed document. The bad_enum and bad_code
// switches make it break its own contract so harness failures can be tested.
func (a *App) handleFooIndex(w http.ResponseWriter, r *http.Request) {
	data := fooResponse{Foo: "bar"}
	status := http.StatusOK

	if queryFlag(r, "bad_enum") {
		data.Foo = "foobar"
	}
	if queryFlag(r, "bad_code") {
		status = http.StatusTeapot
	}

	a.writeJSON(w, r, status, data)
}

func (a *App) handleFooGet(w http.ResponseWriter, r *http.Request) error {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return errNotFound()
	}

	a.writeJSON(w, r, http.StatusOK, fooResponse{ID: id.String(), Foo: "bar"})
	return nil
}

// parseUUIDParam parses a required UUID path parameter and returns a typed
// error suitable for returning from HTTP handlers.
func parseUUIDParam(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errValidationField(paramName, "invalid id")
	}
	return parsed, nil
}

// queryFlag reports whether the query value is truthy: present and not a
// false-like boolean.
func queryFlag(r *http.Request, name string) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	return err != nil || v
}
