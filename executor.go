package saga

import (
	"context"
	"time"
)

// outcome is the explicit success/failure value of one action or
// compensation call.
type outcome struct {
	index    int
	output   ActionData
	err      error
	attempts int
}

func (o outcome) ok() bool {
	return o.err == nil
}

// execute invokes one half of op, retrying per policy, and records the run
// log and lifecycle events. The final failure is wrapped in *OperationError
// for actions and *CompensationError for compensations.
func (r *run) execute(ctx context.Context, op Operation, role Role, policy RetryPolicy, sgctx ActionContext) outcome {
	call := op.action
	startEvent, okEvent, failEvent := EventStarted, EventSucceeded, EventFailed
	if role == RoleCompensation {
		call = op.compensation
		startEvent, okEvent, failEvent = EventUndoStarted, EventUndoFinished, EventUndoFailed
	}

	logger := r.logger.With().
		Int("index", op.index).
		Str("name", string(call.Name)).
		Stringer("role", role).
		Logger()

	r.record(op, call.Name, startEvent, 0, nil)
	r.emitStart(op, call.Name, role)
	logger.Debug().Msg("operation started")

	started := time.Now()
	attempts := policy.attempts()
	var (
		lastErr error
		attempt int
	)

retry:
	for attempt = 1; attempt <= attempts; attempt++ {
		sgctx.Attempt = attempt
		out, err := call.invoke(ctx, sgctx)
		if err == nil {
			logger.Debug().
				Int("attempt", attempt).
				Dur("duration", time.Since(started)).
				Msg("operation succeeded")
			r.record(op, call.Name, okEvent, attempt, nil)
			r.emitSuccess(op, call.Name, role, out, time.Since(started))
			return outcome{index: op.index, output: out, attempts: attempt}
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("operation attempt failed, retrying")
		emitEvent(r.saga.events, func() {
			if role == RoleAction && r.saga.events.OnStepRetry != nil {
				r.saga.events.OnStepRetry(op.index, call.Name, attempt+1, err)
			}
		})

		if policy.Backoff > 0 {
			timer := time.NewTimer(policy.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				break retry
			case <-timer.C:
			}
		}
	}

	var wrapped error
	if role == RoleCompensation {
		wrapped = &CompensationError{Index: op.index, Name: call.Name, Attempts: attempt, Err: lastErr}
		logger.Error().Err(lastErr).Int("attempts", attempt).Msg("compensation failed")
	} else {
		wrapped = &OperationError{Index: op.index, Name: call.Name, Attempts: attempt, Err: lastErr}
		logger.Warn().Err(lastErr).Int("attempts", attempt).Msg("operation failed")
	}
	r.record(op, call.Name, failEvent, attempt, lastErr)
	r.emitFailure(op, call.Name, role, lastErr, attempt)
	return outcome{index: op.index, err: wrapped, attempts: attempt}
}

// compensate runs op's compensation with the output of its action.
func (r *run) compensate(ctx context.Context, op Operation, output ActionData) outcome {
	sgctx := r.actionContext(op, RoleCompensation)
	sgctx.Name = op.compensation.Name
	sgctx.Output = output
	return r.execute(ctx, op, RoleCompensation, op.compensationRetry, sgctx)
}

func (r *run) record(op Operation, name ActionName, eventType SagaNodeEventType, attempts int, err error) {
	event := &SagaNodeEvent{
		SagaID:    r.id,
		Index:     op.index,
		Name:      name,
		EventType: eventType,
		Attempts:  attempts,
		Err:       err,
		At:        time.Now(),
	}
	if recErr := r.log.Record(event); recErr != nil {
		r.logger.Error().Err(recErr).Msg("saga log rejected event")
	}
}

func (r *run) emitStart(op Operation, name ActionName, role Role) {
	events := r.saga.events
	emitEvent(events, func() {
		if role == RoleAction && events.OnStepStart != nil {
			events.OnStepStart(op.index, name)
		}
		if role == RoleCompensation && events.OnCompensationStart != nil {
			events.OnCompensationStart(op.index, name)
		}
	})
}

func (r *run) emitSuccess(op Operation, name ActionName, role Role, out ActionData, d time.Duration) {
	events := r.saga.events
	emitEvent(events, func() {
		if role == RoleAction && events.OnStepComplete != nil {
			events.OnStepComplete(op.index, name, out, d)
		}
		if role == RoleCompensation && events.OnCompensationComplete != nil {
			events.OnCompensationComplete(op.index, name, out)
		}
	})
}

func (r *run) emitFailure(op Operation, name ActionName, role Role, err error, attempts int) {
	events := r.saga.events
	emitEvent(events, func() {
		if role == RoleAction && events.OnStepFailed != nil {
			events.OnStepFailed(op.index, name, err, attempts)
		}
		if role == RoleCompensation && events.OnCompensationFailed != nil {
			events.OnCompensationFailed(op.index, name, err)
		}
	})
}
