package saga

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() support.
var (
	ErrConfiguration      = errors.New("saga configuration error")
	ErrOperationFailed    = errors.New("operation failed")
	ErrCompensationFailed = errors.New("compensation failed")
	ErrSagaFailed         = errors.New("saga failed")
	ErrActionNotFound     = errors.New("action not found")
	ErrActionExists       = errors.New("action already registered")
)

// ConfigurationError reports a malformed saga declaration. It is only ever
// returned while building a saga, never from an execute call.
type ConfigurationError struct {
	// Index is the offending operation, or -1 for saga-level settings.
	Index  int
	Reason string
}

func configErrorf(index int, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("saga configuration: %s", e.Reason)
	}
	return fmt.Sprintf("saga configuration: operation %d: %s", e.Index, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// OperationError wraps the cause of an action that failed every attempt.
type OperationError struct {
	Index    int
	Name     ActionName
	Attempts int
	Err      error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s) failed after %d attempt(s): %v", e.Index, e.Name, e.Attempts, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// CompensationError wraps the cause of a compensation that failed. These are
// collected on SagaError.CompensationErrors and never returned on their own.
type CompensationError struct {
	Index    int
	Name     ActionName
	Attempts int
	Err      error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation %d (%s) failed after %d attempt(s): %v", e.Index, e.Name, e.Attempts, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

func (e *CompensationError) Is(target error) bool {
	return target == ErrCompensationFailed
}

// PanicError carries a value recovered from a panicking action or compensation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// SagaError is the single terminal error returned by both engines when a run
// fails. It is built once, after every eligible compensation has been
// attempted, so the compensation fields are complete.
type SagaError struct {
	SagaID SagaID
	Saga   SagaName
	Mode   Mode

	// OperationIndex and OperationName identify the failing action. In
	// choreography mode this is the failed operation with the lowest index.
	OperationIndex int
	OperationName  ActionName
	// OperationError is the *OperationError of the failing action. Its
	// cause is reachable with errors.Is / errors.As.
	OperationError error

	CompensationSuccessResult []ActionData
	CompensationErrors        []error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("saga %q failed at operation %d (%s): %v; compensations: %d succeeded, %d failed",
		e.Saga, e.OperationIndex, e.OperationName, e.OperationError,
		len(e.CompensationSuccessResult), len(e.CompensationErrors))
}

func (e *SagaError) Unwrap() error {
	return e.OperationError
}

func (e *SagaError) Is(target error) bool {
	return target == ErrSagaFailed
}

// FullyCompensated reports whether every attempted compensation succeeded.
func (e *SagaError) FullyCompensated() bool {
	return len(e.CompensationErrors) == 0
}

// AsSagaError unwraps err to a *SagaError.
func AsSagaError(err error) (*SagaError, bool) {
	var se *SagaError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
