package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestCreate(t *testing.T) {
	m := NewManager()

	id := m.Create("Category:Cats", "en")

	j, ok := m.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, "Category:Cats", j.Category)
	assert.Equal(t, "en", j.Language)
	assert.Equal(t, StatusQueued, j.Status)
	assert.Equal(t, PhaseQueued, j.Phase)
	assert.Equal(t, 0, j.Processed)
	assert.Nil(t, j.Total)
}

func TestSnapshot_UnknownJob(t *testing.T) {
	m := NewManager()

	_, ok := m.Snapshot(uuid.New())
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	m := NewManager()
	id := m.Create("Category:Cats", "en")

	err := m.Update(id,
		WithStatus(StatusRunning),
		WithPhase(PhaseChecking),
		WithProgress(3, intPtr(10)),
		WithMessage("checking files"),
	)
	require.NoError(t, err)

	j, ok := m.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, j.Status)
	assert.Equal(t, PhaseChecking, j.Phase)
	assert.Equal(t, 3, j.Processed)
	require.NotNil(t, j.Total)
	assert.Equal(t, 10, *j.Total)
	assert.Equal(t, "checking files", j.Message)
}

func TestUpdate_StampsUpdatedAt(t *testing.T) {
	m := NewManager()
	cur := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return cur }

	id := m.Create("Category:Cats", "en")
	cur = cur.Add(time.Minute)

	require.NoError(t, m.Update(id, WithMessage("working")))

	j, _ := m.Snapshot(id)
	assert.Equal(t, cur, j.UpdatedAt)
	assert.True(t, j.UpdatedAt.After(j.CreatedAt))
}

func TestUpdate_UnknownJob(t *testing.T) {
	m := NewManager()

	err := m.Update(uuid.New(), WithMessage("nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_TerminalJobIsFrozen(t *testing.T) {
	m := NewManager()
	id := m.Create("Category:Cats", "en")
	require.NoError(t, m.Update(id, WithStatus(StatusDone), WithPhase(PhaseDone)))

	err := m.Update(id, WithMessage("too late"), WithProgress(99, nil))
	assert.ErrorIs(t, err, ErrTerminal)

	j, _ := m.Snapshot(id)
	assert.Equal(t, StatusDone, j.Status)
	assert.Equal(t, 0, j.Processed)
	assert.NotEqual(t, "too late", j.Message)
}

func TestCancel_RunningJob(t *testing.T) {
	m := NewManager()
	id := m.Create("Category:Cats", "en")
	require.NoError(t, m.Update(id, WithStatus(StatusRunning)))

	assert.False(t, m.Cancelled(id))
	assert.True(t, m.Cancel(id))
	assert.True(t, m.Cancelled(id))

	j, _ := m.Snapshot(id)
	assert.Equal(t, StatusCancelled, j.Status)
	assert.Equal(t, PhaseCancelled, j.Phase)
}

func TestCancel_DoneJobReturnsFalse(t *testing.T) {
	m := NewManager()
	id := m.Create("Category:Cats", "en")
	require.NoError(t, m.Update(id, WithStatus(StatusDone)))

	assert.False(t, m.Cancel(id))

	j, _ := m.Snapshot(id)
	assert.Equal(t, StatusDone, j.Status, "cancel must not touch a terminal job")
}

func TestCancel_UnknownJob(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Cancel(uuid.New()))
}

func TestSnapshot_IsACopy(t *testing.T) {
	m := NewManager()
	id := m.Create("Category:Cats", "en")
	require.NoError(t, m.Update(id, WithProgress(1, intPtr(10))))

	snap, _ := m.Snapshot(id)
	*snap.Total = 999
	snap.Processed = 999

	fresh, _ := m.Snapshot(id)
	assert.Equal(t, 1, fresh.Processed)
	assert.Equal(t, 10, *fresh.Total)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want int
	}{
		{"known total", Job{Processed: 3, Total: intPtr(10), Phase: PhaseChecking}, 30},
		{"known total complete", Job{Processed: 10, Total: intPtr(10), Phase: PhaseFinalizing}, 100},
		{"capped at 100", Job{Processed: 15, Total: intPtr(10)}, 100},
		{"queued", Job{Phase: PhaseQueued}, 0},
		{"fetching with unknown total", Job{Phase: PhaseFetching}, 5},
		{"checking with unknown total", Job{Phase: PhaseChecking}, 50},
		{"finalizing with unknown total", Job{Phase: PhaseFinalizing}, 95},
		{"done with unknown total", Job{Phase: PhaseDone}, 100},
		{"zero total falls back to phase", Job{Total: intPtr(0), Phase: PhaseFetching}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.job))
		})
	}
}

func TestConcurrentUpdatesAndReads(t *testing.T) {
	m := NewManager()
	id := m.Create("Category:Cats", "en")
	require.NoError(t, m.Update(id, WithStatus(StatusRunning)))

	total := 200
	var wg sync.WaitGroup

	// Single writer, as in production.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= total; i++ {
			m.Update(id, WithProgress(i, &total), WithPhase(PhaseChecking))
		}
	}()

	// Multiple readers must never see processed > total.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				j, ok := m.Snapshot(id)
				if !ok {
					t.Error("job disappeared")
					return
				}
				if j.Total != nil && j.Processed > *j.Total {
					t.Errorf("processed %d exceeds total %d", j.Processed, *j.Total)
					return
				}
			}
		}()
	}
	wg.Wait()
}
