package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/analyzer"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/response"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/jobs"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/retry"
	"github.com/mfscpayload-690/commons-depicts-analyzer/pkg/models"
)

// Analyzer defines the analysis operations the handlers depend on.
type Analyzer interface {
	StartAnalysis(category, language string) (uuid.UUID, error)
	RunOnce(ctx context.Context, category, language string, progress func(processed, total int)) (*models.AnalysisResult, error)
	CancelJob(id uuid.UUID) bool
	JobSnapshot(id uuid.UUID) (jobs.Job, bool)
}

type jobResponse struct {
	jobs.Job
	Percent int `json:"percent"`
}

// NewAnalyzeHandler returns the handler for POST /api/analyze. With ?async=1
// it dispatches a background job and answers 202 with the job ID; without it
// the analysis runs synchronously and the full result is returned.
func NewAnalyzeHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Category string `json:"category"`
			Language string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Category == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "category is required", nil)
			return
		}

		if r.URL.Query().Get("async") == "1" {
			id, err := svc.StartAnalysis(req.Category, req.Language)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
				return
			}
			response.Accepted(w, map[string]string{"job_id": id.String()})
			return
		}

		result, err := svc.RunOnce(r.Context(), req.Category, req.Language, nil)
		if err != nil {
			writeAnalysisError(w, err)
			return
		}
		response.JSON(w, result)
	}
}

// NewProgressHandler returns the handler for GET /api/progress/{jobID}.
func NewProgressHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job ID", nil)
			return
		}

		j, ok := svc.JobSnapshot(id)
		if !ok {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No such job", nil)
			return
		}
		response.JSON(w, jobResponse{Job: j, Percent: jobs.Percent(j)})
	}
}

// NewCancelHandler returns the handler for POST /api/cancel/{jobID}.
func NewCancelHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job ID", nil)
			return
		}

		if _, ok := svc.JobSnapshot(id); !ok {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No such job", nil)
			return
		}
		cancelled := svc.CancelJob(id)
		response.JSON(w, map[string]bool{"cancelled": cancelled})
	}
}

// writeAnalysisError maps pipeline failures onto HTTP statuses.
func writeAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analyzer.ErrCategoryNotFound):
		response.Error(w, http.StatusNotFound, "CATEGORY_NOT_FOUND",
			"The category does not exist on Commons", nil)
	case errors.Is(err, analyzer.ErrNoFiles):
		response.Error(w, http.StatusNotFound, "NO_FILES",
			"The category contains no files to analyze", nil)
	case errors.Is(err, retry.ErrExhausted):
		response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
			"The Commons API did not respond after several attempts", nil)
	case errors.Is(err, context.Canceled):
		response.Error(w, http.StatusRequestTimeout, "CANCELLED",
			"The analysis was cancelled", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
