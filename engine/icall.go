package engine

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"

	"github.com/ebitengine/purego"
	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"go.uber.org/zap"
)

var (
	uintptrType = reflect.TypeFor[uintptr]()
	pointerType = reflect.TypeFor[unsafe.Pointer]()
	float32Type = reflect.TypeFor[float32]()
	float64Type = reflect.TypeFor[float64]()
)

// trampoline is a C-callable function generated for one internal call. It
// receives the native arguments, spills value arguments to scratch storage
// and hands the slot array to the registered NativeCall.
type trampoline struct {
	call *monoruntime.NativeCall
	fn   reflect.Value
	ptr  uintptr
}

// AddInternalCall registers call under its managed name. Registering a
// name again replaces the previous trampoline for methods bound after
// this point.
func (m *Mono) AddInternalCall(call *monoruntime.NativeCall) error {
	if call == nil || call.Invoke == nil {
		return errors.InvalidInput(errors.PhaseBind, "internal call has no implementation")
	}
	if !strings.Contains(call.Name, "::") {
		return errors.InvalidInput(errors.PhaseBind, fmt.Sprintf("internal call name %q is not of the form Namespace.Class::Method", call.Name))
	}

	ft, err := CallbackType(call)
	if err != nil {
		return err
	}

	t := &trampoline{call: call}
	t.fn = reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		return m.dispatch(t, in)
	})
	if t.ptr, err = newCallback(t.fn.Interface()); err != nil {
		return errors.Registration(errors.PhaseBind, call.Name, err)
	}

	m.mu.Lock()
	m.calls[call.Name] = t
	m.mu.Unlock()

	m.sym.addInternalCall(call.Name, t.ptr)
	Logger().Debug("internal call registered",
		zap.String("method", call.Name),
		zap.Int("params", len(call.Params)))
	return nil
}

// newCallback wraps purego.NewCallback, which panics when the callback
// table is exhausted.
func newCallback(fn any) (ptr uintptr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return purego.NewCallback(fn), nil
}

// CallbackType returns the native function type of the trampoline for
// call. Object handles, the receiver and plain-data arguments (passed by
// reference) arrive as pointers; floating point values in float registers;
// every other primitive as a full integer register.
func CallbackType(call *monoruntime.NativeCall) (reflect.Type, error) {
	in := make([]reflect.Type, 0, len(call.Params)+1)
	if call.HasThis {
		in = append(in, pointerType)
	}
	for _, code := range call.Params {
		in = append(in, nativeType(code))
	}

	var out []reflect.Type
	switch call.Result {
	case monoruntime.TypeVoid, monoruntime.TypeEnd:
	case monoruntime.TypeR4, monoruntime.TypeR8:
		return nil, errors.New(errors.PhaseBind, errors.KindUnsupported).
			Path(call.Name).
			ManagedType(call.Result.String()).
			Detail("native callbacks cannot return floating point values").
			Build()
	case monoruntime.TypeValueType:
		return nil, errors.New(errors.PhaseBind, errors.KindUnsupported).
			Path(call.Name).
			ManagedType(call.Result.String()).
			Detail("native callbacks cannot return value types").
			Build()
	default:
		out = []reflect.Type{uintptrType}
	}
	return reflect.FuncOf(in, out, false), nil
}

func nativeType(code monoruntime.TypeCode) reflect.Type {
	switch {
	case code == monoruntime.TypeR4:
		return float32Type
	case code == monoruntime.TypeR8:
		return float64Type
	case passedByPointer(code):
		return pointerType
	}
	return uintptrType
}

func passedByPointer(code monoruntime.TypeCode) bool {
	return code.IsReference() || code == monoruntime.TypeValueType || code == monoruntime.TypeByRef
}

// dispatch runs on the calling runtime thread. It never lets a panic
// unwind into native frames.
func (m *Mono) dispatch(t *trampoline, in []reflect.Value) (out []reflect.Value) {
	call := t.call
	zero := func() []reflect.Value {
		if t.fn.Type().NumOut() == 0 {
			return nil
		}
		return []reflect.Value{reflect.Zero(uintptrType)}
	}
	defer func() {
		if r := recover(); r != nil {
			m.raise(call.Name, errors.Panic(errors.PhaseInvoke, call.Name, r))
			out = zero()
		}
	}()

	args, this := spillArgs(call, in)

	var ret uint64
	if err := call.Invoke(this, args, unsafe.Pointer(&ret)); err != nil {
		m.raise(call.Name, err)
		return zero()
	}
	if t.fn.Type().NumOut() == 0 {
		return nil
	}
	return []reflect.Value{reflect.ValueOf(uintptr(ret))}
}

// spillArgs converts the native arguments into the slot convention used by
// NativeCall: value kinds by the address of their storage, handles as is.
func spillArgs(call *monoruntime.NativeCall, in []reflect.Value) ([]unsafe.Pointer, monoruntime.ObjectRef) {
	var this monoruntime.ObjectRef
	if call.HasThis {
		this = monoruntime.ObjectRef(in[0].UnsafePointer())
		in = in[1:]
	}

	storage := make([]uint64, len(call.Params))
	args := make([]unsafe.Pointer, len(call.Params))
	for i, code := range call.Params {
		v := in[i]
		switch {
		case code == monoruntime.TypeR4:
			*(*float32)(unsafe.Pointer(&storage[i])) = float32(v.Float())
			args[i] = unsafe.Pointer(&storage[i])
		case code == monoruntime.TypeR8:
			*(*float64)(unsafe.Pointer(&storage[i])) = v.Float()
			args[i] = unsafe.Pointer(&storage[i])
		case passedByPointer(code):
			args[i] = v.UnsafePointer()
		default:
			// little-endian: the low bytes hold the narrower value
			storage[i] = uint64(v.Uint())
			args[i] = unsafe.Pointer(&storage[i])
		}
	}
	return args, this
}

// InternalCalls returns the names registered through this backend.
func (m *Mono) InternalCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.calls))
	for name := range m.calls {
		names = append(names, name)
	}
	return names
}
