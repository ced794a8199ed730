package saga

import (
	"fmt"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps action names to functions so sagas can be declared from data
// (see LoadFile) instead of Go code. A Registry is safe for concurrent use and
// can be shared by any number of sagas.
type Registry struct {
	actions *xsync.MapOf[ActionName, ActionFn]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: xsync.NewMapOf[ActionName, ActionFn](),
	}
}

// Register adds fn under name.
func (r *Registry) Register(name ActionName, fn ActionFn) error {
	if name == "" {
		return configErrorf(-1, "registry: action name is empty")
	}
	if fn == nil {
		return configErrorf(-1, "registry: action %q has no function", name)
	}
	if _, loaded := r.actions.LoadOrStore(name, fn); loaded {
		return fmt.Errorf("%w: %q", ErrActionExists, name)
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name ActionName, fn ActionFn) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Get retrieves an action by its name.
func (r *Registry) Get(name ActionName) (ActionFn, error) {
	fn, ok := r.actions.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrActionNotFound, name)
	}
	return fn, nil
}

// Call resolves name and binds args to it.
func (r *Registry) Call(name ActionName, args ...any) (Call, error) {
	fn, err := r.Get(name)
	if err != nil {
		return Call{}, err
	}
	return NamedCall(name, fn, args...), nil
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []ActionName {
	names := make([]ActionName, 0, r.actions.Size())
	r.actions.Range(func(name ActionName, _ ActionFn) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}
