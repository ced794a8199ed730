package saga

import "time"

// RetryPolicy configures how many times a call is attempted before it is
// considered failed. Zero fields of an operation policy are inherited from the
// saga-level policy.
type RetryPolicy struct {
	// Attempts is the total number of attempts, including the first one.
	// The effective minimum is 1.
	Attempts int
	// Backoff is the pause between two attempts.
	Backoff time.Duration
}

// DefaultRetryPolicy makes a single attempt.
var DefaultRetryPolicy = RetryPolicy{Attempts: 1}

func (p RetryPolicy) validate(index int, what string) error {
	if p.Attempts < 0 {
		return configErrorf(index, "%s attempts cannot be negative (got %d)", what, p.Attempts)
	}
	if p.Backoff < 0 {
		return configErrorf(index, "%s backoff cannot be negative (got %s)", what, p.Backoff)
	}
	return nil
}

// orDefault fills unset fields from def.
func (p RetryPolicy) orDefault(def RetryPolicy) RetryPolicy {
	if p.Attempts == 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff == 0 {
		p.Backoff = def.Backoff
	}
	return p
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Operation is one saga step: an action and an optional compensation, each
// with its bound arguments. Operations are immutable once added to a saga.
type Operation struct {
	index        int
	action       Call
	compensation Call

	actionRetry       RetryPolicy
	compensationRetry RetryPolicy
}

// OperationOption tunes a single operation.
type OperationOption func(*Operation)

// Retry overrides the saga's default retry policy for the operation's action.
func Retry(p RetryPolicy) OperationOption {
	return func(op *Operation) {
		op.actionRetry = p
	}
}

// CompensationRetry sets the retry policy of the operation's compensation.
// Compensations are attempted once unless this is set.
func CompensationRetry(p RetryPolicy) OperationOption {
	return func(op *Operation) {
		op.compensationRetry = p
	}
}

// Index is the operation's position in declaration order.
func (op Operation) Index() int {
	return op.index
}

// Name is the identity of the operation's action.
func (op Operation) Name() ActionName {
	return op.action.Name
}

// Action returns a copy of the action call.
func (op Operation) Action() Call {
	return op.action.clone()
}

// Compensation returns a copy of the compensation call, and false when the
// operation was declared without one.
func (op Operation) Compensation() (Call, bool) {
	if !op.HasCompensation() {
		return Call{}, false
	}
	return op.compensation.clone(), true
}

// HasCompensation reports whether the operation was declared with a
// compensation.
func (op Operation) HasCompensation() bool {
	return op.compensation.Fn != nil
}

// ActionRetry is the effective retry policy of the action.
func (op Operation) ActionRetry() RetryPolicy {
	return op.actionRetry
}

// CompensationRetryPolicy is the effective retry policy of the compensation.
func (op Operation) CompensationRetryPolicy() RetryPolicy {
	return op.compensationRetry
}
