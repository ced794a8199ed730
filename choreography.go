package saga

import (
	"context"
	"sync"

	"github.com/fortressi/saga/set"
)

// choreograph starts one goroutine per action and waits for all of them
// before deciding anything. Running actions are never cancelled when a
// sibling fails. If any action failed, every operation whose action succeeded
// is compensated, concurrently and in no particular order. The failed
// operation with the lowest index is reported as the primary failure.
func (s *Saga) choreograph(ctx context.Context, r *run) ([]ActionData, error) {
	results := newResultSet(len(s.ops))

	r.setState(StateRunning)
	var wg sync.WaitGroup
	for _, op := range s.ops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results.set(r.execute(ctx, op, RoleAction, op.actionRetry, r.actionContext(op, RoleAction)))
		}()
	}
	wg.Wait()

	failures := results.failures()
	if len(failures) == 0 {
		r.setState(StateSucceeded)
		return results.values(), nil
	}

	r.setState(StateCompensating)
	succeeded := results.succeeded()
	r.logger.Warn().
		Int("failed", len(failures)).
		Int("to_compensate", succeeded.Len()).
		Msg("compensating succeeded operations")

	sweep := &compensationSweep{}
	var cwg sync.WaitGroup
	for _, i := range set.Sorted(succeeded) {
		op := s.ops[i]
		if !op.HasCompensation() {
			continue
		}
		done, _ := results.get(i)
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			sweep.add(r.compensate(ctx, op, done.output))
		}()
	}
	cwg.Wait()

	r.setState(StateFailed)
	primary := failures[0]
	return nil, r.sagaError(s.ops[primary.index], primary, sweep)
}
