// Package httpapi is a small chi application described by openapi.yaml. It is
// the system under test for the harness and is served by cmd/sampleapi.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
)

// App holds the HTTP router and shared dependencies for handlers.
type App struct {
	logger *slog.Logger
	mux    http.Handler

	maxUploadBytes int64
}

// New wires the sample API router.
func New(logger *slog.Logger) (*App, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := &App{
		logger:         logger,
		maxUploadBytes: 8 << 20,
	}
	app.mux = routes(app)

	return app, nil
}

// Handler returns the HTTP handler for the API service.
func (a *App) Handler() http.Handler {
	return a.mux
}
