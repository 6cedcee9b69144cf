// Package analyzer drives the depicts analysis pipeline: enumerate the files
// of a Commons category, check each one for depicts statements, resolve the
// referenced entities to labels, and persist the per-file results.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/commons"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/jobs"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/labelcache"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/retry"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/store"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/wikidata"
	"github.com/mfscpayload-690/commons-depicts-analyzer/pkg/models"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrNoFiles          = errors.New("category contains no files")
	ErrNoResults        = errors.New("no stored results for category")

	// errCancelled aborts the pipeline internally when a job's cancellation
	// flag is observed. It never reaches callers.
	errCancelled = errors.New("job cancelled")
)

// Deps are the collaborators the analyzer needs.
type Deps struct {
	Commons  commons.Client
	Wikidata wikidata.Client
	Labels   *labelcache.Cache
	Store    store.Store
	Jobs     *jobs.Manager

	// DefaultLanguage is the label fallback when the requested language has
	// no label for an entity.
	DefaultLanguage string
}

// Service runs analyses, either as background jobs or synchronously.
type Service struct {
	commons  commons.Client
	wikidata wikidata.Client
	labels   *labelcache.Cache
	store    store.Store
	jobs     *jobs.Manager

	defaultLanguage string

	// fetchRetry covers category listing calls; checkRetry covers the
	// cheaper per-file and label calls.
	fetchRetry retry.Policy
	checkRetry retry.Policy
}

// NewService creates an analyzer service.
func NewService(deps Deps) *Service {
	lang := deps.DefaultLanguage
	if lang == "" {
		lang = "en"
	}
	return &Service{
		commons:         deps.Commons,
		wikidata:        deps.Wikidata,
		labels:          deps.Labels,
		store:           deps.Store,
		jobs:            deps.Jobs,
		defaultLanguage: lang,
		fetchRetry:      retry.Policy{MaxRetries: 3, BaseDelay: retry.DefaultBaseDelay},
		checkRetry:      retry.Policy{MaxRetries: 2, BaseDelay: retry.DefaultBaseDelay / 2},
	}
}

// NormalizeCategory ensures the canonical "Category:" prefix.
func NormalizeCategory(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if !strings.HasPrefix(name, "Category:") {
		name = "Category:" + name
	}
	return name
}

// StartAnalysis registers a job for the category and dispatches a worker.
// It returns the job ID immediately.
func (s *Service) StartAnalysis(category, language string) (uuid.UUID, error) {
	category = NormalizeCategory(category)
	if category == "" {
		return uuid.Nil, errors.New("category is required")
	}
	if language == "" {
		language = s.defaultLanguage
	}

	id := s.jobs.Create(category, language)
	go s.runJob(id, category, language)
	return id, nil
}

// runJob drives one background job to a terminal status.
func (s *Service) runJob(id uuid.UUID, category, language string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("analysis worker panicked", "job_id", id, "panic", r)
			s.jobs.Update(id,
				jobs.WithStatus(jobs.StatusError),
				jobs.WithPhase(jobs.PhaseError),
				jobs.WithError(fmt.Sprintf("internal error: %v", r)),
				jobs.WithMessage("analysis failed"))
		}
	}()

	slog.Info("analysis started", "job_id", id, "category", category, "language", language)
	s.jobs.Update(id, jobs.WithStatus(jobs.StatusRunning), jobs.WithMessage("starting analysis"))

	rep := &jobReporter{jobs: s.jobs, id: id}
	result, err := s.analyze(context.Background(), category, language, rep)

	switch {
	case errors.Is(err, errCancelled):
		// Cancel already moved the job to its terminal status.
		slog.Info("analysis cancelled", "job_id", id, "category", category)
	case err != nil:
		slog.Error("analysis failed", "job_id", id, "category", category, "error", err)
		s.jobs.Update(id,
			jobs.WithStatus(jobs.StatusError),
			jobs.WithPhase(jobs.PhaseError),
			jobs.WithError(err.Error()),
			jobs.WithMessage("analysis failed"))
	default:
		slog.Info("analysis finished", "job_id", id, "category", category,
			"total", result.Statistics.Total, "with_depicts", result.Statistics.WithDepicts)
		s.jobs.Update(id,
			jobs.WithStatus(jobs.StatusDone),
			jobs.WithPhase(jobs.PhaseDone),
			jobs.WithMessage(fmt.Sprintf("analyzed %d files", result.Statistics.Total)))
	}
}

// RunOnce analyzes a category synchronously, without a job record. Progress
// is reported through the optional callback; cancellation follows ctx.
func (s *Service) RunOnce(ctx context.Context, category, language string, progress func(processed, total int)) (*models.AnalysisResult, error) {
	category = NormalizeCategory(category)
	if category == "" {
		return nil, errors.New("category is required")
	}
	if language == "" {
		language = s.defaultLanguage
	}

	result, err := s.analyze(ctx, category, language, &callbackReporter{ctx: ctx, fn: progress})
	if errors.Is(err, errCancelled) {
		return nil, ctx.Err()
	}
	return result, err
}

// CancelJob requests cooperative cancellation of a running job.
func (s *Service) CancelJob(id uuid.UUID) bool {
	return s.jobs.Cancel(id)
}

// JobSnapshot returns a point-in-time copy of a job's record.
func (s *Service) JobSnapshot(id uuid.UUID) (jobs.Job, bool) {
	return s.jobs.Snapshot(id)
}

// Results returns the stored analysis for a category.
func (s *Service) Results(ctx context.Context, category string) (*models.AnalysisResult, error) {
	category = NormalizeCategory(category)

	stats, err := s.store.CategoryStats(ctx, category)
	if err != nil {
		return nil, err
	}
	if stats.Total == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, category)
	}

	files, err := s.store.FilesByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return &models.AnalysisResult{Category: category, Statistics: stats, Files: files}, nil
}

// History lists every analyzed category with summary counts.
func (s *Service) History(ctx context.Context) ([]*models.CategorySummary, error) {
	return s.store.ListCategories(ctx)
}

// DeleteCategory removes all stored results for a category and reports how
// many rows were deleted.
func (s *Service) DeleteCategory(ctx context.Context, category string) (int, error) {
	return s.store.ClearCategory(ctx, NormalizeCategory(category))
}

// Suggest returns category name completions for a prefix query.
func (s *Service) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	return retry.Do(ctx, s.checkRetry, "suggest categories", func(ctx context.Context) ([]string, error) {
		return s.commons.SuggestCategories(ctx, query, limit)
	})
}

// analyze is the pipeline shared by job and synchronous execution.
func (s *Service) analyze(ctx context.Context, category, language string, rep reporter) (*models.AnalysisResult, error) {
	exists, err := retry.Do(ctx, s.fetchRetry, "check category", func(ctx context.Context) (bool, error) {
		return s.commons.CategoryExists(ctx, category)
	})
	if err != nil {
		return nil, fmt.Errorf("checking category: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}

	// Re-analysis replaces prior results rather than appending to them.
	if _, err := s.store.ClearCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("clearing previous results: %w", err)
	}

	rep.phase(jobs.PhaseFetching, "fetching file list")
	files, err := s.fetchFiles(ctx, category, rep)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, category)
	}

	total := len(files)
	rep.phase(jobs.PhaseChecking, fmt.Sprintf("checking %d files", total))
	rep.progress(0, &total)

	for i, file := range files {
		if rep.cancelled() {
			return nil, errCancelled
		}
		s.processFile(ctx, file, category, language)
		rep.progress(i+1, &total)
	}

	rep.phase(jobs.PhaseFinalizing, "computing statistics")
	stats, err := s.store.CategoryStats(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("computing statistics: %w", err)
	}
	records, err := s.store.FilesByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}

	return &models.AnalysisResult{Category: category, Statistics: stats, Files: records}, nil
}

// fetchFiles walks the paginated category listing, preserving API order.
func (s *Service) fetchFiles(ctx context.Context, category string, rep reporter) ([]string, error) {
	var files []string
	cont := ""
	for {
		if rep.cancelled() {
			return nil, errCancelled
		}
		page, err := retry.Do(ctx, s.fetchRetry, "list category members", func(ctx context.Context) (commons.CategoryPage, error) {
			return s.commons.CategoryMembers(ctx, category, cont)
		})
		if err != nil {
			return nil, fmt.Errorf("listing category members: %w", err)
		}
		files = append(files, page.Files...)
		if page.Continue == "" {
			return files, nil
		}
		cont = page.Continue
	}
}

// processFile checks one file and persists its result. Failures are absorbed:
// the file is stored as having no depicts statement and the pipeline moves
// on, so one bad file cannot sink a multi-thousand-file run.
func (s *Service) processFile(ctx context.Context, file, category, language string) {
	rec := models.NewFileRecord(file, category)

	check, err := retry.Do(ctx, s.checkRetry, "check depicts", func(ctx context.Context) (commons.DepictsCheck, error) {
		return s.commons.CheckDepicts(ctx, file)
	})
	if err != nil {
		slog.Warn("depicts check failed, storing as absent", "file", file, "error", err)
	} else if check.HasDepicts {
		labels, err := s.resolveLabels(ctx, check.QIDs, language)
		if err != nil {
			slog.Warn("label resolution failed, storing as absent", "file", file, "error", err)
		} else {
			display := strings.Join(labels, ", ")
			rec.HasDepicts = true
			rec.Depicts = &display
		}
	}

	if err := s.store.UpsertFile(ctx, rec); err != nil {
		slog.Warn("persisting file result failed", "file", file, "error", err)
	}
}

// reporter decouples the pipeline from how progress is consumed.
type reporter interface {
	phase(p jobs.Phase, msg string)
	progress(processed int, total *int)
	cancelled() bool
}

// jobReporter publishes into the job registry.
type jobReporter struct {
	jobs *jobs.Manager
	id   uuid.UUID
}

func (r *jobReporter) phase(p jobs.Phase, msg string) {
	r.jobs.Update(r.id, jobs.WithPhase(p), jobs.WithMessage(msg))
}

func (r *jobReporter) progress(processed int, total *int) {
	r.jobs.Update(r.id, jobs.WithProgress(processed, total))
}

func (r *jobReporter) cancelled() bool {
	return r.jobs.Cancelled(r.id)
}

// callbackReporter serves synchronous runs; cancellation follows the context.
type callbackReporter struct {
	ctx context.Context
	fn  func(processed, total int)
}

func (r *callbackReporter) phase(jobs.Phase, string) {}

func (r *callbackReporter) progress(processed int, total *int) {
	if r.fn != nil && total != nil {
		r.fn(processed, *total)
	}
}

func (r *callbackReporter) cancelled() bool {
	return r.ctx.Err() != nil
}
