package transcoder

import (
	"reflect"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
)

// Adapter exposes a Go function to managed code as an internal call. It
// decodes the untyped argument slots positionally, calls the function and
// stores the result in caller-supplied return storage.
type Adapter struct {
	fn   reflect.Value
	sig  *Signature
	name string
}

// NewAdapter compiles fn for the internal call name. With hasThis the first
// parameter of fn receives the managed instance, decoded by its registered
// converter. Functions may take up to MaxArity parameters and may return
// one value and an optional trailing error. Plain-data parameters arrive by
// address and must be declared ref in managed code; plain-data results are
// not supported.
func NewAdapter(c *Compiler, name string, fn any, hasThis bool) (*Adapter, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			Path(name).
			Detail("expected a non-nil function, got %T", fn).
			Build()
	}

	sig, err := c.CompileNative(v.Type(), hasThis)
	if err != nil {
		return nil, atPath(err, name)
	}
	if sig.Result != nil && sig.Result.Kind() == KindPOD {
		return nil, errors.New(errors.PhaseBind, errors.KindUnsupported).
			Path(name).
			GoType(sig.Result.GoType().String()).
			Detail("internal calls cannot return plain-data structs").
			Build()
	}

	return &Adapter{fn: v, sig: sig, name: name}, nil
}

// Name returns the managed method name the adapter is bound to.
func (a *Adapter) Name() string {
	return a.name
}

// Signature returns the compiled signature of the wrapped function.
func (a *Adapter) Signature() *Signature {
	return a.sig
}

// Call runs the wrapped function for one managed invocation. Panics are
// recovered and reported as errors so they never unwind into the runtime.
func (a *Adapter) Call(c *Context, this monoruntime.ObjectRef, args []unsafe.Pointer, ret unsafe.Pointer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseInvoke, a.name, r)
		}
	}()

	if len(args) != len(a.sig.Params) {
		return errors.Arity(errors.PhaseDecode, a.name, len(a.sig.Params), len(args))
	}

	in := make([]reflect.Value, 0, len(args)+1)
	if a.sig.Receiver != nil {
		if this == nil {
			return errors.NilHandle(errors.PhaseDecode, a.name+" receiver")
		}
		recv, err := a.sig.Receiver.Decode(c, unsafe.Pointer(this))
		if err != nil {
			return atPath(atPath(err, "receiver"), a.name)
		}
		in = append(in, recv)
	}

	for i, conv := range a.sig.Params {
		v, err := conv.Decode(c, args[i])
		if err != nil {
			return atPath(atArg(err, i), a.name)
		}
		in = append(in, v)
	}

	out := a.fn.Call(in)

	if a.sig.HasError {
		if e := out[len(out)-1]; !e.IsNil() {
			return e.Interface().(error)
		}
	}

	if a.sig.Result != nil {
		if ret == nil {
			return errors.NilHandle(errors.PhaseEncode, a.name+" return storage")
		}
		if err := Store(c, a.sig.Result, out[0], ret); err != nil {
			return atPath(atPath(err, "return"), a.name)
		}
	}
	return nil
}

// NativeCall builds the registration record handed to the runtime. ctx is
// called once per invocation to obtain the current marshaling context.
func (a *Adapter) NativeCall(ctx func() *Context) *monoruntime.NativeCall {
	params := make([]monoruntime.TypeCode, len(a.sig.Params))
	for i, p := range a.sig.Params {
		params[i] = nativeCode(p)
	}

	result := monoruntime.TypeVoid
	var size uintptr
	if r := a.sig.Result; r != nil {
		result = nativeCode(r)
		size = r.Size()
		if r.ByRef() {
			size = unsafe.Sizeof(uintptr(0))
		}
	}

	return &monoruntime.NativeCall{
		Name:       a.name,
		Params:     params,
		Result:     result,
		ResultSize: size,
		HasThis:    a.sig.Receiver != nil,
		Invoke: func(this monoruntime.ObjectRef, args []unsafe.Pointer, ret unsafe.Pointer) error {
			return a.Call(ctx(), this, args, ret)
		},
	}
}

// nativeCode returns the type code an internal call sees for conv. Enums
// arrive as their underlying integer.
func nativeCode(conv Converter) monoruntime.TypeCode {
	if e, ok := conv.(*enumConverter); ok {
		return e.kind.Code()
	}
	return conv.TypeCode()
}
