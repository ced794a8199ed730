package saga

import "time"

// Events provides hooks for observability. All callbacks are optional.
// Handlers run synchronously on the goroutine that produced the event, so in
// choreography mode they can be called concurrently. A panicking handler is
// recovered and never breaks the run.
type Events struct {
	OnSagaStart    func(id SagaID, mode Mode)
	OnSagaComplete func(id SagaID, results []ActionData)
	OnSagaFailed   func(id SagaID, err *SagaError)

	OnStepStart    func(index int, name ActionName)
	OnStepComplete func(index int, name ActionName, result ActionData, duration time.Duration)
	OnStepRetry    func(index int, name ActionName, attempt int, err error)
	OnStepFailed   func(index int, name ActionName, err error, attempts int)

	OnCompensationStart    func(index int, name ActionName)
	OnCompensationComplete func(index int, name ActionName, result ActionData)
	OnCompensationFailed   func(index int, name ActionName, err error)
}

// emitEvent safely calls an event handler, catching any panics.
func emitEvent(events *Events, handler func()) {
	if events == nil || handler == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	handler()
}
