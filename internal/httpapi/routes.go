package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/saiaj/openapitest/internal/httpapi/response"
)

func routes(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte("ok\n")); err != nil {
			app.logger.Warn("write failed", "err", err, "path", "/healthz")
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			if err := response.WriteProblem(w, http.StatusNotFound, "not_found", "not found", nil); err != nil {
				app.logger.Warn("write failed", "err", err, "path", "/api/*")
			}
		})

		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			if err := response.WriteProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil); err != nil {
				app.logger.Warn("write failed", "err", err, "path", "/api/*")
			}
		})

		r.Get("/foo", app.handleFooIndex)
		r.Get("/foo/{id}", app.handle(app.handleFooGet))
		r.Post("/upload", app.handle(app.handleUpload))
	})

	return r
}
