package saga

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SagaName represents a human-readable name for a particular saga.
type SagaName string

// String returns the string representation of the SagaName.
func (s SagaName) String() string {
	return string(s)
}

// SagaID represents a unique identifier for one saga execution.
type SagaID struct {
	UUID uuid.UUID
}

// NewSagaID returns a random SagaID.
func NewSagaID() SagaID {
	return SagaID{UUID: uuid.New()}
}

// String returns the string representation of the SagaID.
func (s SagaID) String() string {
	return s.UUID.String()
}

// Mode selects the execution strategy.
type Mode int

const (
	// Orchestration runs operations one at a time in declaration order and
	// compensates succeeded operations in reverse order.
	Orchestration Mode = iota
	// Choreography runs every action concurrently and compensates every
	// succeeded operation once all actions have finished.
	Choreography
)

func (m Mode) String() string {
	switch m {
	case Orchestration:
		return "orchestration"
	case Choreography:
		return "choreography"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// SagaState is the state of a run.
type SagaState int

const (
	StatePending SagaState = iota
	StateRunning
	StateSucceeded
	StateCompensating
	StateFailed
)

func (s SagaState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateCompensating:
		return "compensating"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Saga is a validated, immutable list of operations. A Saga can be executed
// any number of times, concurrently; every execution has its own state.
type Saga struct {
	name   SagaName
	ops    []Operation
	logger zerolog.Logger
	events *Events
}

func (s *Saga) Name() SagaName {
	return s.name
}

// Len returns the number of operations.
func (s *Saga) Len() int {
	return len(s.ops)
}

// Operations returns the operations in declaration order.
func (s *Saga) Operations() []Operation {
	return slices.Clone(s.ops)
}

// Execution describes one finished run.
type Execution struct {
	ID         SagaID
	Mode       Mode
	State      SagaState
	Results    []ActionData
	Log        *SagaLog
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall-clock time of the run.
func (e *Execution) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// OrchestratorExecute runs the operations sequentially in declaration order.
// It returns the results in declaration order, or a *SagaError after
// compensating the succeeded operations in reverse order.
func (s *Saga) OrchestratorExecute(ctx context.Context) ([]ActionData, error) {
	exec, err := s.Run(ctx, Orchestration)
	if err != nil {
		return nil, err
	}
	return exec.Results, nil
}

// ChoreographyExecute runs every action concurrently. It returns the results
// in declaration order, or a *SagaError after compensating every operation
// whose action succeeded.
func (s *Saga) ChoreographyExecute(ctx context.Context) ([]ActionData, error) {
	exec, err := s.Run(ctx, Choreography)
	if err != nil {
		return nil, err
	}
	return exec.Results, nil
}

// Run executes the saga in the given mode. On a failed run both the
// Execution and a *SagaError are returned.
func (s *Saga) Run(ctx context.Context, mode Mode) (*Execution, error) {
	if mode != Orchestration && mode != Choreography {
		return nil, fmt.Errorf("saga %q: unknown execution mode %s", s.name, mode)
	}

	r := s.newRun(mode)
	exec := &Execution{
		ID:        r.id,
		Mode:      mode,
		Log:       r.log,
		StartedAt: time.Now(),
	}

	emitEvent(s.events, func() {
		if s.events.OnSagaStart != nil {
			s.events.OnSagaStart(r.id, mode)
		}
	})
	r.logger.Debug().Int("operations", len(s.ops)).Msg("saga started")

	var (
		results []ActionData
		err     error
	)
	switch mode {
	case Orchestration:
		results, err = s.orchestrate(ctx, r)
	case Choreography:
		results, err = s.choreograph(ctx, r)
	}

	exec.FinishedAt = time.Now()
	exec.State = r.state

	if err != nil {
		sagaErr, _ := AsSagaError(err)
		r.logger.Warn().
			Err(err).
			Dur("duration", exec.Duration()).
			Msg("saga failed")
		emitEvent(s.events, func() {
			if s.events.OnSagaFailed != nil && sagaErr != nil {
				s.events.OnSagaFailed(r.id, sagaErr)
			}
		})
		return exec, err
	}

	exec.Results = results
	r.logger.Info().
		Int("operations", len(s.ops)).
		Dur("duration", exec.Duration()).
		Msg("saga completed")
	emitEvent(s.events, func() {
		if s.events.OnSagaComplete != nil {
			s.events.OnSagaComplete(r.id, results)
		}
	})
	return exec, nil
}

// run holds the state owned by a single execution.
type run struct {
	saga   *Saga
	id     SagaID
	mode   Mode
	state  SagaState
	log    *SagaLog
	logger zerolog.Logger
}

func (s *Saga) newRun(mode Mode) *run {
	id := NewSagaID()
	return &run{
		saga:  s,
		id:    id,
		mode:  mode,
		state: StatePending,
		log:   NewEmptySagaLog(id),
		logger: s.logger.With().
			Str("saga_id", id.String()).
			Str("mode", mode.String()).
			Logger(),
	}
}

// setState is only called from the goroutine driving the run.
func (r *run) setState(state SagaState) {
	r.state = state
}

func (r *run) actionContext(op Operation, role Role) ActionContext {
	return ActionContext{
		SagaID: r.id,
		Saga:   r.saga.name,
		Index:  op.index,
		Name:   op.Name(),
		Role:   role,
	}
}

// sagaError builds the terminal error once the compensation sweep is over.
func (r *run) sagaError(op Operation, failed outcome, sweep *compensationSweep) *SagaError {
	results, errs := sweep.snapshot()
	return &SagaError{
		SagaID:                    r.id,
		Saga:                      r.saga.name,
		Mode:                      r.mode,
		OperationIndex:            op.index,
		OperationName:             op.Name(),
		OperationError:            failed.err,
		CompensationSuccessResult: results,
		CompensationErrors:        errs,
	}
}
