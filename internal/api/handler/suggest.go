package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/response"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/cache"
)

const (
	defaultSuggestLimit = 8
	maxSuggestLimit     = 25
	suggestCacheTTL     = 5 * time.Minute
)

// Suggester defines the category completion operation.
type Suggester interface {
	Suggest(ctx context.Context, query string, limit int) ([]string, error)
}

// NewSuggestHandler returns the handler for GET /api/suggest?query=. Results
// are cached in Redis briefly since typeahead repeats the same prefixes.
func NewSuggestHandler(svc Suggester, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "query is required", nil)
			return
		}

		limit := defaultSuggestLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		if limit > maxSuggestLimit {
			limit = maxSuggestLimit
		}

		key := cache.SuggestKey(query)
		if cached, found, err := c.Get(r.Context(), key); err == nil && found {
			var suggestions []string
			if json.Unmarshal(cached, &suggestions) == nil {
				response.JSON(w, suggestions)
				return
			}
		}

		suggestions, err := svc.Suggest(r.Context(), query, limit)
		if err != nil {
			response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
				"Could not fetch suggestions", nil)
			return
		}
		if suggestions == nil {
			suggestions = []string{}
		}

		if payload, err := json.Marshal(suggestions); err == nil {
			if err := c.Set(r.Context(), key, payload, suggestCacheTTL); err != nil {
				slog.Warn("caching suggestions failed", "error", err)
			}
		}
		response.JSON(w, suggestions)
	}
}
