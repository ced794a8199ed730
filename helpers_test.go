package saga

import (
	"context"
	"errors"
	"sync"
)

// recorder collects call names in the order they happened.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, name)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

func okCall(rec *recorder, name string, out ActionData) Call {
	return NamedCall(ActionName(name), func(context.Context, ActionContext, ...any) (ActionData, error) {
		rec.add(name)
		return out, nil
	})
}

func failCall(rec *recorder, name string, err error) Call {
	return NamedCall(ActionName(name), func(context.Context, ActionContext, ...any) (ActionData, error) {
		rec.add(name)
		return nil, err
	})
}

var errBoom = errors.New("boom")
