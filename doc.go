// Package saga implements the saga pattern: a transaction is split into
// operations, each an action with an optional compensation that undoes it.
// When an action fails, the compensations of the actions that already
// succeeded are run and the run ends with a single *SagaError.
//
// A saga runs in one of two modes.
//
// Orchestration runs the actions one after another in declaration order.
// Every action sees the results of the actions before it through
// ActionContext. When action i fails, compensations i-1 down to 0 are run
// in that order.
//
// Choreography starts every action at once and waits for all of them. If
// any failed, every operation whose action succeeded is compensated
// concurrently. The failed operation with the lowest index is reported.
//
// Overview
//
//  1. Write actions and compensations as ActionFn values.
//  2. Declare the saga with NewBuilder and Builder.Operation, binding
//     arguments with NewCall or NamedCall.
//  3. Build it, then call OrchestratorExecute or ChoreographyExecute. Run
//     returns the full Execution including the per-run SagaLog.
//
// Sagas can also be declared in TOML and loaded with LoadFile, resolving
// action names through a Registry.
//
// Example:
//
//	s, err := saga.NewBuilder("order").
//		Operation(saga.NewCall(reserve, "sku-1"), saga.NewCall(release, "sku-1")).
//		Operation(saga.NewCall(charge, 42), saga.Call{}).
//		Build()
//	if err != nil {
//		return err
//	}
//	results, err := s.OrchestratorExecute(ctx)
package saga
