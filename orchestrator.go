package saga

import (
	"context"

	"github.com/tidwall/btree"
)

// orchestrate drives the operations strictly in declaration order:
//
//	Pending -> Running(i) -> Succeeded
//	                      -> Compensating -> Failed
//
// Each action sees a snapshot of every earlier result. When operation i
// fails, operations i-1 ... 0 are compensated in that order; every
// compensation is attempted whatever its predecessors did.
func (s *Saga) orchestrate(ctx context.Context, r *run) ([]ActionData, error) {
	results := newResultSet(len(s.ops))
	prior := btree.NewMap[int, priorResult](10)
	completed := make([]int, 0, len(s.ops))

	r.setState(StateRunning)
	for i, op := range s.ops {

		sgctx := r.actionContext(op, RoleAction)
		sgctx.prior = prior.Copy()
		o := r.execute(ctx, op, RoleAction, op.actionRetry, sgctx)
		results.set(o)

		if !o.ok() {
			r.setState(StateCompensating)
			r.logger.Warn().
				Int("failed_index", i).
				Int("to_compensate", len(completed)).
				Msg("compensating in reverse order")

			sweep := &compensationSweep{}
			for k := len(completed) - 1; k >= 0; k-- {
				prev := s.ops[completed[k]]
				if !prev.HasCompensation() {
					continue
				}
				done, _ := results.get(prev.index)
				sweep.add(r.compensate(ctx, prev, done.output))
			}

			r.setState(StateFailed)
			return nil, r.sagaError(op, o, sweep)
		}

		prior.Set(i, priorResult{name: op.Name(), data: o.output})
		completed = append(completed, i)
	}

	r.setState(StateSucceeded)
	return results.values(), nil
}
