package runtime

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
	"go.uber.org/zap"
)

// InternalCalls is the table of Go functions exposed to managed code,
// keyed by fully-qualified managed name.
type InternalCalls struct {
	adapters map[string]*transcoder.Adapter
	mu       sync.RWMutex
}

func newInternalCalls() *InternalCalls {
	return &InternalCalls{adapters: make(map[string]*transcoder.Adapter)}
}

// Lookup returns the adapter registered under name.
func (ic *InternalCalls) Lookup(name string) (*transcoder.Adapter, bool) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	a, ok := ic.adapters[name]
	return a, ok
}

// Names returns the registered names in sorted order.
func (ic *InternalCalls) Names() []string {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	names := make([]string, 0, len(ic.adapters))
	for name := range ic.adapters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (ic *InternalCalls) reserve(name string, a *transcoder.Adapter) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if _, ok := ic.adapters[name]; ok {
		return errors.Registration(errors.PhaseBind, name, fmt.Errorf("internal call already registered"))
	}
	ic.adapters[name] = a
	return nil
}

func (ic *InternalCalls) drop(name string) {
	ic.mu.Lock()
	delete(ic.adapters, name)
	ic.mu.Unlock()
}

// InternalCalls returns the runtime's internal call table.
func (rt *Runtime) InternalCalls() *InternalCalls {
	return rt.calls
}

// AddInternalCall exposes fn to managed code as the static extern method
// name, for example "Tests.MyObject::Create" or, for one overload,
// "Tests.WrapperVector2f::.ctor(single,single)". fn takes the managed
// parameters in order and may return one value and a trailing error. A
// returned error raises a managed exception in the caller.
func (rt *Runtime) AddInternalCall(name string, fn any) error {
	return rt.addInternal(name, fn, false)
}

// AddInternalMethod is AddInternalCall for instance extern methods: the
// first parameter of fn receives the managed instance, as a *Object or as
// a registered shared wrapper type.
func (rt *Runtime) AddInternalMethod(name string, fn any) error {
	return rt.addInternal(name, fn, true)
}

func (rt *Runtime) addInternal(name string, fn any, hasThis bool) error {
	if err := rt.check(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if !strings.Contains(name, "::") {
		return errors.InvalidInput(errors.PhaseBind,
			fmt.Sprintf("internal call name %q must be Namespace.Class::Method", name))
	}

	a, err := transcoder.NewAdapter(rt.compiler, name, fn, hasThis)
	if err != nil {
		return err
	}
	if err := rt.calls.reserve(name, a); err != nil {
		return err
	}
	if err := rt.api.AddInternalCall(a.NativeCall(rt.nativeContext)); err != nil {
		rt.calls.drop(name)
		return errors.Registration(errors.PhaseBind, name, err)
	}

	Logger().Debug("internal call registered",
		zap.String("name", name),
		zap.Int("arity", a.Signature().Arity()),
		zap.Bool("instance", hasThis))
	return nil
}
