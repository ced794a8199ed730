package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fortressi/saga"
)

var demoActions = map[saga.ActionName]saga.ActionFn{
	"echo":    echo,
	"fail":    fail,
	"flaky":   flaky,
	"sleep":   sleep,
	"collect": collect,
	"undo":    undo,
}

func demoRegistry() *saga.Registry {
	reg := saga.NewRegistry()
	for name, fn := range demoActions {
		reg.MustRegister(name, fn)
	}
	return reg
}

func actionNames() []string {
	names := make([]string, 0, len(demoActions))
	for _, name := range demoRegistry().Names() {
		names = append(names, string(name))
	}
	return names
}

// echo returns its single argument, or all of its arguments as a list.
func echo(_ context.Context, _ saga.ActionContext, args ...any) (saga.ActionData, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		return args[0], nil
	default:
		return args, nil
	}
}

// fail always fails with its arguments as the message.
func fail(_ context.Context, sgctx saga.ActionContext, args ...any) (saga.ActionData, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s failed", sgctx.Name)
	}
	return nil, errors.New(joinArgs(args))
}

// flaky fails its first n attempts, then returns "ok after <attempt>".
func flaky(_ context.Context, sgctx saga.ActionContext, args ...any) (saga.ActionData, error) {
	n, err := intArg(args, 0)
	if err != nil {
		return nil, err
	}
	if sgctx.Attempt <= n {
		return nil, fmt.Errorf("transient failure on attempt %d", sgctx.Attempt)
	}
	return fmt.Sprintf("ok after %d", sgctx.Attempt), nil
}

// sleep waits for the duration given as its first argument.
func sleep(ctx context.Context, _ saga.ActionContext, args ...any) (saga.ActionData, error) {
	if len(args) == 0 {
		return nil, errors.New("sleep: missing duration")
	}
	d, err := time.ParseDuration(fmt.Sprint(args[0]))
	if err != nil {
		return nil, fmt.Errorf("sleep: %w", err)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return d.String(), nil
	}
}

// collect returns the results of every earlier operation.
func collect(_ context.Context, sgctx saga.ActionContext, _ ...any) (saga.ActionData, error) {
	return sgctx.Results(), nil
}

// undo reports what it compensated.
func undo(_ context.Context, sgctx saga.ActionContext, args ...any) (saga.ActionData, error) {
	if len(args) > 0 {
		return fmt.Sprintf("undone %s", joinArgs(args)), nil
	}
	return fmt.Sprintf("undone %v", sgctx.Output), nil
}

func intArg(args []any, i int) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %d: want integer, got %T", i, args[i])
	}
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
