package saga

import (
	"github.com/rs/zerolog"
)

type options struct {
	retry  RetryPolicy
	logger zerolog.Logger
	events *Events
}

// Option configures a saga.
type Option func(*options)

// WithRetry sets the default retry policy of every action in the saga.
// Operations can override it with Retry.
func WithRetry(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = p
	}
}

// WithLogger sets the logger. Sagas are silent by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEvents installs lifecycle hooks.
func WithEvents(events *Events) Option {
	return func(o *options) {
		o.events = events
	}
}

// Builder declares the operations of a saga. Operation calls can be chained;
// the first configuration error is kept and reported by Build.
type Builder struct {
	name SagaName
	opts options
	ops  []Operation
	err  error
}

// NewBuilder creates a new Builder.
func NewBuilder(name SagaName, opts ...Option) *Builder {
	o := options{
		retry:  DefaultRetryPolicy,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Builder{name: name, opts: o}
}

// Operation appends an operation made of an action and its compensation.
// Pass the zero Call as compensation for an operation that needs no undo.
func (b *Builder) Operation(action Call, compensation Call, opts ...OperationOption) *Builder {
	if b.err != nil {
		return b
	}

	index := len(b.ops)
	if action.Fn == nil {
		b.err = configErrorf(index, "action %q is missing or not callable", action.Name)
		return b
	}
	if compensation.Fn == nil && !compensation.IsZero() {
		b.err = configErrorf(index, "compensation %q is not callable", compensation.Name)
		return b
	}

	op := Operation{
		index:  index,
		action: action.clone(),
	}
	if !compensation.IsZero() {
		op.compensation = compensation.clone()
	}
	for _, opt := range opts {
		opt(&op)
	}
	if err := op.actionRetry.validate(index, "action retry"); err != nil {
		b.err = err
		return b
	}
	if err := op.compensationRetry.validate(index, "compensation retry"); err != nil {
		b.err = err
		return b
	}

	b.ops = append(b.ops, op)
	return b
}

// Err returns the first configuration error recorded so far.
func (b *Builder) Err() error {
	return b.err
}

// Build validates the declaration and returns an executable Saga.
func (b *Builder) Build() (*Saga, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.opts.retry.validate(-1, "saga retry"); err != nil {
		return nil, err
	}

	def := b.opts.retry.orDefault(DefaultRetryPolicy)
	ops := make([]Operation, len(b.ops))
	for i, op := range b.ops {
		op.actionRetry = op.actionRetry.orDefault(def)
		op.compensationRetry = op.compensationRetry.orDefault(DefaultRetryPolicy)
		ops[i] = op
	}

	s := &Saga{
		name: b.name,
		ops:  ops,
		logger: b.opts.logger.With().
			Str("component", "saga").
			Str("saga", string(b.name)).
			Logger(),
		events: b.opts.events,
	}
	return s, nil
}
