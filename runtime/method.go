package runtime

import (
	stderrors "errors"
	"reflect"
	"strconv"
	"strings"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
	"go.uber.org/zap"
)

// Method is a managed method with its signature.
type Method struct {
	class *Class
	ref   monoruntime.MethodRef
	name  string
	sig   monoruntime.Signature
}

func (m *Method) Name() string                     { return m.name }
func (m *Method) Class() *Class                    { return m.class }
func (m *Method) Ref() monoruntime.MethodRef       { return m.ref }
func (m *Method) Signature() monoruntime.Signature { return m.sig }
func (m *Method) IsStatic() bool                   { return m.sig.Static }
func (m *Method) Arity() int                       { return len(m.sig.Params) }

// Descriptor returns the method as "Name(type,type)".
func (m *Method) Descriptor() string {
	names := make([]string, len(m.sig.Params))
	for i, p := range m.sig.Params {
		names[i] = p.Name
	}
	return m.name + "(" + strings.Join(names, ",") + ")"
}

// FullName returns "Namespace.Class::Name(type,type)".
func (m *Method) FullName() string {
	return m.class.FullName() + "::" + m.Descriptor()
}

// Invoke calls the method with untyped arguments. this must be nil for
// static methods and non-nil otherwise; a receiver passed to a static
// method is an invalid_input error. Each argument is marshaled by its registered converter,
// and a nil argument passes a null reference. The result is decoded from
// the managed return type: primitives and strings into their default Go
// types, objects into *Object and value types into a boxed *Object. Void
// methods return nil.
func (m *Method) Invoke(this *Object, args ...any) (any, error) {
	v, err := m.invokeDynamic(this, args)
	if err != nil || !v.IsValid() {
		return nil, err
	}
	return v.Interface(), nil
}

func (m *Method) invokeDynamic(this *Object, args []any) (reflect.Value, error) {
	rt := m.class.runtime()
	if len(args) != len(m.sig.Params) {
		return reflect.Value{}, errors.Arity(errors.PhaseInvoke, m.FullName(), len(m.sig.Params), len(args))
	}
	thisRef, err := m.receiver(this)
	if err != nil {
		return reflect.Value{}, err
	}

	d := m.class.domain
	if err := rt.enter(d); err != nil {
		return reflect.Value{}, err
	}
	ctx := d.context()

	f := transcoder.AcquireFrame(len(args))
	defer f.Release()
	for i, a := range args {
		slot, err := m.encodeDynamic(ctx, f, i, a)
		if err != nil {
			return reflect.Value{}, atMember(err, m.FullName(), i)
		}
		f.Args[i] = slot
	}

	ret, exc := rt.api.Invoke(m.ref, thisRef, f.Args)
	if exc != nil {
		return reflect.Value{}, rt.raised(m.FullName(), exc)
	}
	return m.decodeDynamic(ctx, ret)
}

// encodeDynamic encodes one untyped argument for parameter i. Numeric Go
// values are converted to the parameter's primitive type.
func (m *Method) encodeDynamic(ctx *transcoder.Context, f *transcoder.Frame, i int, a any) (unsafe.Pointer, error) {
	param := m.sig.Params[i]
	if a == nil {
		if !param.Code.IsReference() {
			return nil, errors.NilHandle(errors.PhaseEncode, param.Name+" value")
		}
		return nil, nil
	}

	rt := m.class.runtime()
	v := reflect.ValueOf(a)
	conv, err := rt.registry.Lookup(v.Type())
	if err != nil {
		return nil, err
	}
	if !compatible(conv, param) {
		def, ok := rt.registry.ForTypeCode(param.Code)
		if !ok || def.ByRef() || !isNumeric(v.Kind()) || !v.CanConvert(def.GoType()) {
			return nil, errors.TypeMismatch(errors.PhaseEncode, nil, v.Type().String(), param.Name)
		}
		conv, v = def, v.Convert(def.GoType())
	}
	return conv.Encode(ctx, v, f)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (m *Method) receiver(this *Object) (monoruntime.ObjectRef, error) {
	if m.sig.Static {
		if this != nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Path(m.FullName()).
				Detail("static method called with a receiver").
				Build()
		}
		return nil, nil
	}
	if this == nil {
		return nil, errors.NilHandle(errors.PhaseInvoke, m.FullName()+" receiver")
	}
	return this.handle()
}

func (m *Method) decodeDynamic(ctx *transcoder.Context, ret monoruntime.ObjectRef) (reflect.Value, error) {
	rt := m.class.runtime()
	r := m.sig.Return
	switch {
	case r.Code == monoruntime.TypeVoid:
		return reflect.Value{}, nil
	case r.Code == monoruntime.TypeString:
		if ret == nil {
			return reflect.ValueOf(""), nil
		}
		return reflect.ValueOf(transcoder.DecodeUTF16(rt.api.StringUnits(ret))), nil
	case r.Code.IsReference() || r.Code == monoruntime.TypeValueType:
		if ret == nil {
			return reflect.ValueOf((*Object)(nil)), nil
		}
		return reflect.ValueOf(rt.wrapObject(m.class.domain, ret)), nil
	}
	conv, ok := rt.registry.ForTypeCode(r.Code)
	if !ok {
		return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindUnsupported).
			Path(m.FullName(), "return").
			ManagedType(r.Name).
			Detail("no default Go type").
			Build()
	}
	return transcoder.DecodeBoxed(ctx, conv, ret)
}

// descriptorFor builds "name(type,...)" from the converters of types. It
// reports false when a type has no converter, including nil arguments.
func (rt *Runtime) descriptorFor(name string, types []reflect.Type) (string, bool) {
	names := make([]string, len(types))
	for i, t := range types {
		if t == nil {
			return "", false
		}
		conv, err := rt.registry.Lookup(t)
		if err != nil {
			return "", false
		}
		names[i] = conv.ManagedName()
	}
	return name + "(" + strings.Join(names, ",") + ")", true
}

// invoke runs one typed call: encode, invoke, surface a managed exception
// without decoding, decode.
func (rt *Runtime) invoke(m *Method, sig *transcoder.Signature, this monoruntime.ObjectRef, args []reflect.Value) (reflect.Value, error) {
	d := m.class.domain
	if err := rt.enter(d); err != nil {
		return reflect.Value{}, err
	}
	ctx := d.context()

	f := transcoder.AcquireFrame(len(args))
	defer f.Release()
	if err := sig.EncodeArgs(ctx, args, f); err != nil {
		return reflect.Value{}, atMember(err, m.FullName(), -1)
	}

	ret, exc := rt.api.Invoke(m.ref, this, f.Args)
	if exc != nil {
		return reflect.Value{}, rt.raised(m.FullName(), exc)
	}
	v, err := sig.DecodeResult(ctx, ret)
	if err != nil {
		return reflect.Value{}, atMember(err, m.FullName(), -1)
	}
	return v, nil
}

// bindThunk resolves name on cls for the Go function type fn and builds a
// function value that performs the call. obj is the receiver for instance
// methods and nil for static ones.
func bindThunk(cls *Class, obj *Object, name string, fn reflect.Type) (reflect.Value, error) {
	if err := cls.domain.check(); err != nil {
		return reflect.Value{}, err
	}
	rt := cls.runtime()
	sig, err := rt.compiler.CompileCall(fn)
	if err != nil {
		return reflect.Value{}, atMember(err, cls.FullName()+"::"+name, -1)
	}
	m, err := resolve(cls, name, sig)
	if err != nil {
		return reflect.Value{}, err
	}

	static := obj == nil
	if m.sig.Static != static {
		want := "an instance"
		if static {
			want = "a static"
		}
		return reflect.Value{}, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			Path(m.FullName()).
			Detail("expected %s method", want).
			Build()
	}

	return reflect.MakeFunc(fn, func(in []reflect.Value) []reflect.Value {
		var this monoruntime.ObjectRef
		if obj != nil {
			ref, err := obj.handle()
			if err != nil {
				return sig.Out(reflect.Value{}, err)
			}
			this = ref
		}
		return sig.Out(rt.invoke(m, sig, this, in))
	}), nil
}

// resolve finds the method name matching sig: by descriptor first, then by
// name and parameter count with a per-parameter compatibility check.
func resolve(cls *Class, name string, sig *transcoder.Signature) (*Method, error) {
	desc := sig.Descriptor(name)
	var m *Method
	if ref := cls.findDesc(desc); ref != nil {
		m = cls.wrapMethod(ref)
	} else if ref := cls.api().ClassMethod(cls.ref, name, sig.Arity()); ref != nil {
		m = cls.wrapMethod(ref)
		for i, p := range sig.Params {
			if !compatible(p, m.sig.Params[i]) {
				return nil, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
					Path(m.FullName(), "arg"+strconv.Itoa(i)).
					GoType(p.GoType().String()).
					ManagedType(m.sig.Params[i].Name).
					Build()
			}
		}
	} else {
		return nil, errors.NotFound(errors.PhaseLookup, "method", desc, cls.FullName())
	}

	if !resultCompatible(sig.Result, m.sig.Return) {
		b := errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			Path(m.FullName(), "return").
			ManagedType(m.sig.Return.Name)
		if sig.Result != nil {
			b.GoType(sig.Result.GoType().String())
		} else {
			b.Detail("function has no result value")
		}
		return nil, b.Build()
	}
	return m, nil
}

// compatible reports whether conv can marshal a value of managed type t.
// Object handles fit every reference slot; the runtime checks object
// classes itself.
func compatible(conv transcoder.Converter, t monoruntime.TypeInfo) bool {
	if conv.ByRef() {
		switch conv.TypeCode() {
		case monoruntime.TypeString:
			return t.Code == monoruntime.TypeString || t.Code == monoruntime.TypeObject
		case monoruntime.TypeObject:
			return t.Code.IsReference()
		default:
			return t.Code.IsReference() && t.Code != monoruntime.TypeString
		}
	}
	if conv.TypeCode() != t.Code {
		return false
	}
	if t.Code == monoruntime.TypeValueType {
		return conv.ManagedName() == t.Name
	}
	return true
}

func resultCompatible(conv transcoder.Converter, t monoruntime.TypeInfo) bool {
	if conv == nil {
		return t.Code == monoruntime.TypeVoid
	}
	return compatible(conv, t)
}

// raised converts a managed exception into an error of kind
// managed_exception.
func (rt *Runtime) raised(method string, exc monoruntime.ObjectRef) error {
	me := rt.exception(exc)
	Logger().Debug("managed exception",
		zap.String("method", method),
		zap.String("type", me.Type),
		zap.String("message", me.Message))
	return errors.Exception(method, me)
}

// exception reads the type name and Message of a managed exception.
func (rt *Runtime) exception(exc monoruntime.ObjectRef) *errors.ManagedException {
	cls := rt.api.ObjectClass(exc)
	out := &errors.ManagedException{
		Type: joinName(rt.api.ClassNamespace(cls), rt.api.ClassName(cls)),
	}
	p := rt.api.ClassProperty(cls, "Message")
	if p == nil {
		return out
	}
	getter := rt.api.PropertyGetter(p)
	if getter == nil {
		return out
	}
	msg, raised := rt.api.Invoke(getter, exc, nil)
	if raised == nil && msg != nil {
		out.Message = transcoder.DecodeUTF16(rt.api.StringUnits(msg))
	}
	return out
}

// atMember prefixes a structured error path with the member and, when
// arg is not negative, the argument position.
func atMember(err error, member string, arg int) error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err
	}
	cp := *e
	prefix := []string{member}
	if arg >= 0 {
		prefix = append(prefix, "arg"+strconv.Itoa(arg))
	}
	cp.Path = append(prefix, e.Path...)
	return &cp
}

