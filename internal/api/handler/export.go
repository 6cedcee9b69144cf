package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/analyzer"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/response"
)

// NewExportHandler returns the handler for GET /api/export/{category}. The
// format query parameter selects csv (default) or json.
func NewExportHandler(svc ResultStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := categoryParam(r)
		if category == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "category is required", nil)
			return
		}

		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		if format != "csv" && format != "json" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"format must be csv or json", nil)
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

		filename := exportFilename(result.Category, format)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		if format == "json" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(result)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		cw := csv.NewWriter(w)
		cw.Write([]string{"file_name", "category", "depicts", "has_depicts", "analyzed_at"})
		for _, f := range result.Files {
			depicts := ""
			if f.Depicts != nil {
				depicts = *f.Depicts
			}
			cw.Write([]string{
				f.FileName,
				f.Category,
				depicts,
				strconv.FormatBool(f.HasDepicts),
				f.AnalyzedAt.UTC().Format(time.RFC3339),
			})
		}
		cw.Flush()
	}
}

func exportFilename(category, format string) string {
	name := strings.TrimPrefix(category, "Category:")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("depicts_%s.%s", name, format)
}
