package saga

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyCall fails its first n attempts.
func flakyCall(n int, calls *atomic.Int32) Call {
	return NamedCall("flaky", func(_ context.Context, sgctx ActionContext, _ ...any) (ActionData, error) {
		calls.Add(1)
		if sgctx.Attempt <= n {
			return nil, fmt.Errorf("attempt %d: %w", sgctx.Attempt, errBoom)
		}
		return sgctx.Attempt, nil
	})
}

func TestRetrySucceedsOnLastAttempt(t *testing.T) {
	for _, mode := range []Mode{Orchestration, Choreography} {
		t.Run(mode.String(), func(t *testing.T) {
			var calls atomic.Int32
			s, err := NewBuilder("retry", WithRetry(RetryPolicy{Attempts: 3})).
				Operation(flakyCall(2, &calls), Call{}).
				Build()
			require.NoError(t, err)

			exec, err := s.Run(context.Background(), mode)
			require.NoError(t, err)
			assert.Equal(t, []ActionData{3}, exec.Results)
			assert.EqualValues(t, 3, calls.Load())

			events := exec.Log.Events()
			require.Len(t, events, 2)
			assert.Equal(t, EventSucceeded, events[1].EventType)
			assert.Equal(t, 3, events[1].Attempts)
		})
	}
}

func TestRetryExhausted(t *testing.T) {
	var calls atomic.Int32
	s, err := NewBuilder("retry", WithRetry(RetryPolicy{Attempts: 3})).
		Operation(flakyCall(3, &calls), Call{}).
		Build()
	require.NoError(t, err)

	_, err = s.OrchestratorExecute(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())

	sagaErr, ok := AsSagaError(err)
	require.True(t, ok)

	var opErr *OperationError
	require.True(t, errors.As(sagaErr.OperationError, &opErr))
	assert.Equal(t, 3, opErr.Attempts)
	assert.Equal(t, ActionName("flaky"), opErr.Name)
	assert.Contains(t, opErr.Error(), "attempt 3")
	assert.ErrorIs(t, err, errBoom)
}

func TestRetryDefaultsToSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	s, err := NewBuilder("once").Operation(flakyCall(1, &calls), Call{}).Build()
	require.NoError(t, err)

	_, err = s.OrchestratorExecute(context.Background())
	require.ErrorIs(t, err, ErrOperationFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRetryWaitsForBackoff(t *testing.T) {
	var calls atomic.Int32
	s, err := NewBuilder("backoff").
		Operation(flakyCall(2, &calls), Call{}, Retry(RetryPolicy{Attempts: 3, Backoff: 15 * time.Millisecond})).
		Build()
	require.NoError(t, err)

	start := time.Now()
	_, err = s.OrchestratorExecute(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRetryStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	action := NamedCall("cancelling", func(context.Context, ActionContext, ...any) (ActionData, error) {
		calls.Add(1)
		cancel()
		return nil, errBoom
	})
	s, err := NewBuilder("cancel").
		Operation(action, Call{}, Retry(RetryPolicy{Attempts: 5, Backoff: time.Hour})).
		Build()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.OrchestratorExecute(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, errBoom)
		var opErr *OperationError
		require.True(t, errors.As(err, &opErr))
		assert.Equal(t, 1, opErr.Attempts)
		assert.EqualValues(t, 1, calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("saga kept waiting after the context was cancelled")
	}
}

func TestPanickingActionFailsOperation(t *testing.T) {
	rec := &recorder{}
	explode := NamedCall("explode", func(context.Context, ActionContext, ...any) (ActionData, error) {
		panic("kaboom")
	})
	s, err := NewBuilder("panic").
		Operation(okCall(rec, "a", 1), okCall(rec, "undo_a", "a undone")).
		Operation(explode, Call{}).
		Build()
	require.NoError(t, err)

	_, err = s.OrchestratorExecute(context.Background())
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "kaboom", pe.Value)

	sagaErr, _ := AsSagaError(err)
	assert.Equal(t, []ActionData{"a undone"}, sagaErr.CompensationSuccessResult)
}

func TestCompensationRetry(t *testing.T) {
	rec := &recorder{}
	var calls atomic.Int32
	undo := NamedCall("undo", func(_ context.Context, sgctx ActionContext, _ ...any) (ActionData, error) {
		calls.Add(1)
		if sgctx.Attempt < 2 {
			return nil, errBoom
		}
		return fmt.Sprintf("undid %v", sgctx.Output), nil
	})

	s, err := NewBuilder("comp").
		Operation(okCall(rec, "a", "A"), undo, CompensationRetry(RetryPolicy{Attempts: 2})).
		Operation(failCall(rec, "b", errBoom), Call{}).
		Build()
	require.NoError(t, err)

	_, err = s.OrchestratorExecute(context.Background())
	sagaErr, ok := AsSagaError(err)
	require.True(t, ok)
	assert.Equal(t, []ActionData{"undid A"}, sagaErr.CompensationSuccessResult)
	assert.Empty(t, sagaErr.CompensationErrors)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCompensationNotRetriedByDefault(t *testing.T) {
	rec := &recorder{}
	var calls atomic.Int32
	undo := NamedCall("undo", func(context.Context, ActionContext, ...any) (ActionData, error) {
		calls.Add(1)
		return nil, errBoom
	})

	s, err := NewBuilder("comp", WithRetry(RetryPolicy{Attempts: 4})).
		Operation(okCall(rec, "a", "A"), undo).
		Operation(failCall(rec, "b", errBoom), Call{}).
		Build()
	require.NoError(t, err)

	_, err = s.OrchestratorExecute(context.Background())
	sagaErr, ok := AsSagaError(err)
	require.True(t, ok)
	assert.EqualValues(t, 1, calls.Load())
	require.Len(t, sagaErr.CompensationErrors, 1)

	var compErr *CompensationError
	require.True(t, errors.As(sagaErr.CompensationErrors[0], &compErr))
	assert.Equal(t, 0, compErr.Index)
	assert.Equal(t, 1, compErr.Attempts)
	assert.ErrorIs(t, compErr, ErrCompensationFailed)
	assert.ErrorIs(t, compErr, errBoom)
}

func TestRetryThenCompensation(t *testing.T) {
	for _, mode := range []Mode{Orchestration, Choreography} {
		t.Run(mode.String(), func(t *testing.T) {
			undone := &recorder{}
			var flakyCalls atomic.Int32
			var failing atomic.Int32
			broken := NamedCall("broken", func(context.Context, ActionContext, ...any) (ActionData, error) {
				failing.Add(1)
				return nil, errBoom
			})

			s, err := NewBuilder("retry-comp", WithRetry(RetryPolicy{Attempts: 3})).
				Operation(okCall(&recorder{}, "a", "A"), okCall(undone, "undo_a", "ua")).
				Operation(flakyCall(2, &flakyCalls), okCall(undone, "undo_flaky", "uf")).
				Operation(broken, okCall(undone, "undo_broken", "ub")).
				Build()
			require.NoError(t, err)

			exec, err := s.Run(context.Background(), mode)
			sagaErr, ok := AsSagaError(err)
			require.True(t, ok)

			assert.Equal(t, 2, sagaErr.OperationIndex)
			assert.EqualValues(t, 3, flakyCalls.Load())
			assert.EqualValues(t, 3, failing.Load())
			assert.Empty(t, sagaErr.CompensationErrors)
			assert.NotContains(t, undone.list(), "undo_broken")

			if mode == Orchestration {
				assert.Equal(t, []ActionData{"uf", "ua"}, sagaErr.CompensationSuccessResult)
				assert.Equal(t, []string{"undo_flaky", "undo_a"}, undone.list())
			} else {
				assert.ElementsMatch(t, []ActionData{"uf", "ua"}, sagaErr.CompensationSuccessResult)
				assert.ElementsMatch(t, []string{"undo_flaky", "undo_a"}, undone.list())
			}

			assert.Equal(t, StatusUndoFinished, exec.Log.Status(0))
			assert.Equal(t, StatusUndoFinished, exec.Log.Status(1))
			assert.Equal(t, StatusFailed, exec.Log.Status(2))
		})
	}
}
