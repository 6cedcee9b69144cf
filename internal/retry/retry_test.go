package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleeps replaces the backoff sleep with a recorder for the duration of
// the test, so no real delays occur.
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var recorded []time.Duration
	orig := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		recorded = append(recorded, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })
	return &recorded
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	slept := recordSleeps(t)

	calls := 0
	v, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Second}, "op",
		func(context.Context) (int, error) {
			calls++
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDo_TransientFailuresThenSuccess(t *testing.T) {
	slept := recordSleeps(t)

	calls := 0
	v, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond}, "op",
		func(context.Context) (string, error) {
			calls++
			if calls <= 3 {
				return "", Transient(errors.New("connection reset"))
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 4, calls)
	// Delays double each retry: base, 2·base, 4·base.
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
	}, *slept)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	recordSleeps(t)

	calls := 0
	cause := errors.New("dial tcp: connection refused")
	_, err := Do(context.Background(), Policy{MaxRetries: 2, BaseDelay: time.Second}, "fetch",
		func(context.Context) (int, error) {
			calls++
			return 0, Transient(cause)
		})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, cause)
}

func TestDo_NonTransientNotRetried(t *testing.T) {
	slept := recordSleeps(t)

	calls := 0
	cause := errors.New("category does not exist")
	_, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Second}, "op",
		func(context.Context) (int, error) {
			calls++
			return 0, cause
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestDo_ZeroRetries(t *testing.T) {
	recordSleeps(t)

	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 0, BaseDelay: time.Second}, "op",
		func(context.Context) (int, error) {
			calls++
			return 0, Transient(errors.New("timeout"))
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	orig := sleep
	sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	t.Cleanup(func() { sleep = orig })

	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Second}, "op",
		func(context.Context) (int, error) {
			calls++
			return 0, Transient(errors.New("timeout"))
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	base := errors.New("boom")
	assert.False(t, IsTransient(base))
	assert.True(t, IsTransient(Transient(base)))
	// Wrapping preserves the marker.
	assert.True(t, IsTransient(errors.Join(errors.New("ctx"), Transient(base))))
	assert.Nil(t, Transient(nil))
}
