package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var backoffs []time.Duration
	p := Policy{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     3 * time.Millisecond,
		OnRetry: func(_ int, _ error, b time.Duration) {
			backoffs = append(backoffs, b)
		},
	}

	got, err := Do(context.Background(), p, Always, func(context.Context) (int, error) {
		calls++
		if calls < 4 {
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, backoffs)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("bad payload")
	err := DoVoid(context.Background(), Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond},
		func(error) Action { return Stop },
		func(context.Context) error {
			calls++
			return permanent
		})

	var pe *PermanentError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := DoVoid(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, Always,
		func(context.Context) error {
			calls++
			return errTransient
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := DoVoid(ctx, Policy{MaxAttempts: 3, InitialBackoff: time.Hour}, Always,
		func(context.Context) error {
			cancel()
			return errTransient
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_RejectsZeroAttempts(t *testing.T) {
	err := DoVoid(context.Background(), Policy{}, Always, func(context.Context) error { return nil })
	require.Error(t, err)
}
