package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestBreaker(clock *time.Time, cfg Config) *CircuitBreaker {
	cb := NewCircuitBreaker("test", cfg)
	cb.now = func() time.Time { return *clock }
	cb.toNewGeneration(*clock)
	return cb
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	var transitions []State
	cb := newTestBreaker(&clock, Config{
		FailureThreshold: 2,
		Timeout:          time.Second,
		OnStateChange: func(_ string, _ State, to State) {
			transitions = append(transitions, to)
		},
	})
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	cb := newTestBreaker(&clock, Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		MaxRequests:      5,
		Timeout:          time.Second,
	})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errBoom }))
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(2 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	cb := newTestBreaker(&clock, Config{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
	})

	err := cb.Execute(context.Background(), func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().TotalSuccesses)
}

func TestCircuitBreaker_DoneContextShortCircuits(t *testing.T) {
	cb := NewCircuitBreaker("ctx", Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error { t.Fatal("must not run"); return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(0), cb.Counts().Requests)
}

func TestExecuteWithResult(t *testing.T) {
	cb := NewCircuitBreaker("result", Config{})
	got, err := ExecuteWithResult(context.Background(), cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, "result", cb.Name())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
