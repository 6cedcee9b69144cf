package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/analyzer"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/response"
	"github.com/mfscpayload-690/commons-depicts-analyzer/pkg/models"
)

// ResultStore defines the stored-result operations the handlers depend on.
type ResultStore interface {
	Results(ctx context.Context, category string) (*models.AnalysisResult, error)
	History(ctx context.Context) ([]*models.CategorySummary, error)
	DeleteCategory(ctx context.Context, category string) (int, error)
}

// categoryParam extracts the category from the wildcard tail of the route.
// Category names may contain slashes, so they occupy the rest of the path.
func categoryParam(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// NewResultsHandler returns the handler for GET /api/results/{category}.
func NewResultsHandler(svc ResultStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := categoryParam(r)
		if category == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "category is required", nil)
			return
		}

		result, err := svc.Results(r.Context(), category)
		if err != nil {
			if errors.Is(err, analyzer.ErrNoResults) {
				response.Error(w, http.StatusNotFound, "NO_RESULTS",
					"No stored analysis for this category", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, result)
	}
}

// NewHistoryHandler returns the handler for GET /api/history.
func NewHistoryHandler(svc ResultStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := svc.History(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if summaries == nil {
			summaries = []*models.CategorySummary{}
		}
		response.JSON(w, summaries)
	}
}

// NewDeleteCategoryHandler returns the handler for DELETE /api/category/{category}.
func NewDeleteCategoryHandler(svc ResultStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := categoryParam(r)
		if category == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "category is required", nil)
			return
		}

		deleted, err := svc.DeleteCategory(r.Context(), category)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, map[string]int{"deleted": deleted})
	}
}
