// Package jobs holds the in-memory registry of analysis jobs. Jobs live for
// the duration of the process and are never persisted.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job. Transitions only move forward:
// queued -> running -> {done, error, cancelled}.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError || s == StatusCancelled
}

// Phase is the pipeline step a running job is currently in.
type Phase string

const (
	PhaseQueued     Phase = "queued"
	PhaseFetching   Phase = "fetching"
	PhaseChecking   Phase = "checking"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
	PhaseCancelled  Phase = "cancelled"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrTerminal = errors.New("job is in a terminal status")
)

// Job is one analysis run. Total is nil while the item count is unknown.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Category  string    `json:"category"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	Phase     Phase     `json:"phase"`
	Processed int       `json:"processed"`
	Total     *int      `json:"total"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager is a thread-safe registry of jobs. Each job has a single writer
// (the worker driving it) and any number of readers; the manager serializes
// all access behind one lock so readers never observe a half-written record.
type Manager struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job

	now func() time.Time
}

// NewManager creates an empty job registry.
func NewManager() *Manager {
	return &Manager{
		jobs: make(map[uuid.UUID]*Job),
		now:  time.Now,
	}
}

// Create allocates a new queued job and returns its ID immediately. The
// caller is responsible for dispatching the worker.
func (m *Manager) Create(category, language string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	id := uuid.New()
	m.jobs[id] = &Job{
		ID:        id,
		Category:  category,
		Language:  language,
		Status:    StatusQueued,
		Phase:     PhaseQueued,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// UpdateOption mutates a job record inside Update.
type UpdateOption func(*Job)

func WithStatus(s Status) UpdateOption {
	return func(j *Job) { j.Status = s }
}

func WithPhase(p Phase) UpdateOption {
	return func(j *Job) { j.Phase = p }
}

func WithMessage(msg string) UpdateOption {
	return func(j *Job) { j.Message = msg }
}

func WithProgress(processed int, total *int) UpdateOption {
	return func(j *Job) {
		j.Processed = processed
		j.Total = total
	}
}

func WithError(msg string) UpdateOption {
	return func(j *Job) { j.Error = msg }
}

// Update applies the given options to a job and stamps updated_at. Only the
// worker driving the job may call it. A job already in a terminal status is
// left untouched and ErrTerminal is returned; cancellation racing the worker
// is the common cause, so callers typically ignore that error.
func (m *Manager) Update(id uuid.UUID, opts ...UpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrTerminal
	}
	for _, opt := range opts {
		opt(j)
	}
	j.UpdatedAt = m.now().UTC()
	return nil
}

// Cancel moves a job to cancelled unless it already reached a terminal
// status. It reports whether the transition happened. The worker observes
// the cancellation at its next checkpoint; in-flight remote calls are not
// interrupted.
func (m *Manager) Cancel(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return false
	}
	j.Status = StatusCancelled
	j.Phase = PhaseCancelled
	j.Message = "cancelled"
	j.UpdatedAt = m.now().UTC()
	return true
}

// Cancelled reports whether the job has been cancelled. Workers poll this
// between items.
func (m *Manager) Cancelled(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	return ok && j.Status == StatusCancelled
}

// Snapshot returns a point-in-time copy of a job. It never blocks on the
// worker beyond the registry lock.
func (m *Manager) Snapshot(id uuid.UUID) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	snap := *j
	if j.Total != nil {
		total := *j.Total
		snap.Total = &total
	}
	return snap, true
}

// Percent derives a percent-complete figure for display. With a known total
// it is the exact ratio; before the total is known it falls back to coarse
// per-phase placeholders so pollers still see forward movement.
func Percent(j Job) int {
	if j.Total != nil && *j.Total > 0 {
		pct := j.Processed * 100 / *j.Total
		if pct > 100 {
			pct = 100
		}
		return pct
	}

	switch j.Phase {
	case PhaseFetching:
		return 5
	case PhaseChecking:
		return 50
	case PhaseFinalizing:
		return 95
	case PhaseDone:
		return 100
	default:
		return 0
	}
}
