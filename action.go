package saga

import (
	"context"
	"reflect"
	"runtime"
	"slices"
	"strings"

	"github.com/tidwall/btree"
)

// ActionData represents the value produced by an action or a compensation.
type ActionData interface{}

// ActionName identifies an action or compensation in logs and errors.
type ActionName string

// ActionFn is the signature shared by actions and compensations. args are the
// arguments bound when the operation was declared; sgctx carries the per-call
// saga context (prior results for orchestrated actions, the action's own
// output for compensations).
type ActionFn func(ctx context.Context, sgctx ActionContext, args ...any) (ActionData, error)

// Call is a function together with its bound arguments.
type Call struct {
	Name ActionName
	Fn   ActionFn
	Args []any
}

// NewCall binds args to fn. The call is named after the function symbol.
func NewCall(fn ActionFn, args ...any) Call {
	return Call{Name: funcName(fn), Fn: fn, Args: args}
}

// NamedCall binds args to fn under an explicit name.
func NamedCall(name ActionName, fn ActionFn, args ...any) Call {
	return Call{Name: name, Fn: fn, Args: args}
}

// IsZero reports whether c is the zero Call, used to declare an operation
// without a compensation.
func (c Call) IsZero() bool {
	return c.Name == "" && c.Fn == nil && len(c.Args) == 0
}

// clone returns a copy of c whose argument slice is not shared with the caller.
func (c Call) clone() Call {
	if c.Name == "" {
		c.Name = funcName(c.Fn)
	}
	if c.Args != nil {
		c.Args = append([]any(nil), c.Args...)
	}
	return c
}

// invoke calls Fn with a private copy of the bound arguments.
func (c Call) invoke(ctx context.Context, sgctx ActionContext) (out ActionData, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &PanicError{Value: r}
		}
	}()
	return c.Fn(ctx, sgctx, slices.Clone(c.Args)...)
}

// funcName turns "github.com/acme/svc.(*Client).Reserve-fm" into
// "(*Client).Reserve".
func funcName(fn ActionFn) ActionName {
	if fn == nil {
		return ""
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return ActionName(strings.TrimSuffix(name, "-fm"))
}

// Role tells the executor which half of an operation it is running.
type Role int

const (
	RoleAction Role = iota
	RoleCompensation
)

func (r Role) String() string {
	switch r {
	case RoleAction:
		return "action"
	case RoleCompensation:
		return "compensation"
	default:
		return "unknown"
	}
}

type priorResult struct {
	name ActionName
	data ActionData
}

// ActionContext provides context to an individual action or compensation
// invocation. It is built fresh for every call and never shared between runs.
type ActionContext struct {
	SagaID  SagaID
	Saga    SagaName
	Index   int
	Name    ActionName
	Role    Role
	Attempt int

	// Output is the value returned by this operation's action. It is only set
	// when Role is RoleCompensation.
	Output ActionData

	prior *btree.Map[int, priorResult]
}

// Len returns the number of prior results visible to this call.
func (ac ActionContext) Len() int {
	if ac.prior == nil {
		return 0
	}
	return ac.prior.Len()
}

// Results returns the outputs of every previously succeeded operation in
// declaration order. Only orchestrated actions see prior results.
func (ac ActionContext) Results() []ActionData {
	out := make([]ActionData, 0, ac.Len())
	if ac.prior == nil {
		return out
	}
	ac.prior.Scan(func(_ int, r priorResult) bool {
		out = append(out, r.data)
		return true
	})
	return out
}

// Lookup retrieves the output of the operation declared at index.
func (ac ActionContext) Lookup(index int) (ActionData, bool) {
	if ac.prior == nil {
		return nil, false
	}
	r, ok := ac.prior.Get(index)
	return r.data, ok
}

// LookupName retrieves the output of the most recent prior operation whose
// action is called name.
func (ac ActionContext) LookupName(name ActionName) (ActionData, bool) {
	if ac.prior == nil {
		return nil, false
	}
	var (
		found ActionData
		ok    bool
	)
	ac.prior.Scan(func(_ int, r priorResult) bool {
		if r.name == name {
			found, ok = r.data, true
		}
		return true
	})
	return found, ok
}

// LookupTyped retrieves the output of the operation at index with a type
// assertion. It returns false when the index is unknown or the type differs.
func LookupTyped[R any](ac ActionContext, index int) (R, bool) {
	var zero R
	value, found := ac.Lookup(index)
	if !found {
		return zero, false
	}
	typed, ok := value.(R)
	if !ok {
		return zero, false
	}
	return typed, true
}
