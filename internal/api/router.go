// Package api assembles the HTTP router and middleware stack.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/middleware"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Admin     *mw.Admin
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	AnalyzeHandler  http.HandlerFunc
	ProgressHandler http.HandlerFunc
	CancelHandler   http.HandlerFunc
	ResultsHandler  http.HandlerFunc
	HistoryHandler  http.HandlerFunc
	SuggestHandler  http.HandlerFunc
	ExportHandler   http.HandlerFunc
	DeleteHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
// Category-addressed routes use a wildcard tail because category names may
// contain slashes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/analyze", orNotImplemented(deps.AnalyzeHandler))
		r.Get("/api/progress/{jobID}", orNotImplemented(deps.ProgressHandler))
		r.Post("/api/cancel/{jobID}", orNotImplemented(deps.CancelHandler))

		r.Get("/api/results/*", orNotImplemented(deps.ResultsHandler))
		r.Get("/api/history", orNotImplemented(deps.HistoryHandler))
		r.Get("/api/suggest", orNotImplemented(deps.SuggestHandler))
		r.Get("/api/export/*", orNotImplemented(deps.ExportHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Admin.Require)

			r.Delete("/api/category/*", orNotImplemented(deps.DeleteHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
