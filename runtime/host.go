package runtime

import (
	"reflect"
	"slices"
	"strings"

	"github.com/wippyai/mono-runtime/errors"
)

// Host is the interface for struct-based internal call providers. All
// exported methods (except Class and the optional interface methods below)
// are registered as internal calls of the managed class Class returns,
// under their Go method name.
type Host interface {
	// Class returns the managed class name (e.g., "Tests.MyObject").
	Class() string
}

// InstanceHost extends Host with methods whose first parameter receives
// the managed instance as a shared wrapper value. Methods taking a
// *Object first are instance methods without being listed.
type InstanceHost interface {
	Host
	InstanceMethods() []string
}

// ExplicitRegistrar allows hosts to provide exact managed method names,
// for constructors or overloads that need a signature suffix
// (e.g., ".ctor(single,single)").
type ExplicitRegistrar interface {
	Register() map[string]any
}

var objectType = reflect.TypeFor[*Object]()

// RegisterHost registers every function of h as an internal call. The
// first failure stops registration; calls registered before it stay
// registered.
func (rt *Runtime) RegisterHost(h Host) error {
	cls := strings.TrimSpace(h.Class())
	if cls == "" {
		return errors.InvalidInput(errors.PhaseBind, "host class cannot be empty")
	}

	instance := make(map[string]bool)
	if ih, ok := h.(InstanceHost); ok {
		for _, name := range ih.InstanceMethods() {
			instance[name] = true
		}
	}

	funcs := hostFuncs(h)
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		fn := funcs[name]
		full := cls + "::" + name
		var err error
		if instance[name] || takesObject(fn) {
			err = rt.AddInternalMethod(full, fn)
		} else {
			err = rt.AddInternalCall(full, fn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func hostFuncs(h Host) map[string]any {
	if er, ok := h.(ExplicitRegistrar); ok {
		return er.Register()
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	funcs := make(map[string]any, rt.NumMethod())
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() {
			continue
		}
		switch method.Name {
		case "Class", "InstanceMethods", "Register":
			continue
		}
		funcs[method.Name] = rv.Method(i).Interface()
	}
	return funcs
}

func takesObject(fn any) bool {
	t := reflect.TypeOf(fn)
	return t != nil && t.Kind() == reflect.Func && t.NumIn() > 0 && t.In(0) == objectType
}
