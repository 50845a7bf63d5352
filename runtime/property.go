package runtime

import (
	"reflect"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
)

// Property is a managed property with its accessor methods. Either
// accessor may be nil.
type Property struct {
	class  *Class
	ref    monoruntime.PropertyRef
	name   string
	getter *Method
	setter *Method
}

func (p *Property) Name() string                 { return p.name }
func (p *Property) Class() *Class                { return p.class }
func (p *Property) Ref() monoruntime.PropertyRef { return p.ref }
func (p *Property) Getter() *Method              { return p.getter }
func (p *Property) Setter() *Method              { return p.setter }
func (p *Property) FullName() string             { return p.class.FullName() + "::" + p.name }

var errorType = reflect.TypeFor[error]()

// get calls the getter through a typed thunk. obj is nil for static
// properties.
func (p *Property) get(obj *Object, t reflect.Type) (reflect.Value, error) {
	if p.getter == nil {
		return reflect.Value{}, errors.NotFound(errors.PhaseLookup, "getter", p.name, p.class.FullName())
	}
	fn := reflect.FuncOf(nil, []reflect.Type{t, errorType}, false)
	thunk, err := p.bind(obj, p.getter, fn)
	if err != nil {
		return reflect.Value{}, err
	}
	out := thunk.Call(nil)
	if err, _ := out[1].Interface().(error); err != nil {
		return reflect.Value{}, err
	}
	return out[0], nil
}

func (p *Property) set(obj *Object, v reflect.Value) error {
	if p.setter == nil {
		return errors.NotFound(errors.PhaseLookup, "setter", p.name, p.class.FullName())
	}
	fn := reflect.FuncOf([]reflect.Type{v.Type()}, []reflect.Type{errorType}, false)
	thunk, err := p.bind(obj, p.setter, fn)
	if err != nil {
		return err
	}
	out := thunk.Call([]reflect.Value{v})
	err, _ = out[0].Interface().(error)
	return err
}

// bind builds a thunk for an accessor. Accessors are resolved by handle,
// so only the converter compatibility checks of resolve apply.
func (p *Property) bind(obj *Object, m *Method, fn reflect.Type) (reflect.Value, error) {
	rt := p.class.runtime()
	sig, err := rt.compiler.CompileCall(fn)
	if err != nil {
		return reflect.Value{}, atMember(err, m.FullName(), -1)
	}
	if m.IsStatic() != (obj == nil) {
		return reflect.Value{}, errors.New(errors.PhaseBind, errors.KindInvalidInput).
			Path(p.FullName()).
			Detail("static property accessed through an instance or the reverse").
			Build()
	}
	if len(sig.Params) != len(m.sig.Params) {
		return reflect.Value{}, errors.Arity(errors.PhaseBind, m.FullName(), len(m.sig.Params), len(sig.Params))
	}
	for i, c := range sig.Params {
		if !compatible(c, m.sig.Params[i]) {
			return reflect.Value{}, errors.TypeMismatch(errors.PhaseBind, []string{p.FullName()}, c.GoType().String(), m.sig.Params[i].Name)
		}
	}
	if !resultCompatible(sig.Result, m.sig.Return) {
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseBind, []string{p.FullName()}, fn.String(), m.sig.Return.Name)
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

// GetPropertyValue reads the property name of obj through its getter.
func GetPropertyValue[T any](obj *Object, name string) (T, error) {
	var zero T
	if obj == nil {
		return zero, errors.NilHandle(errors.PhaseDecode, "object")
	}
	cls, err := obj.classOf()
	if err != nil {
		return zero, err
	}
	p, err := cls.Property(name)
	if err != nil {
		return zero, err
	}
	v, err := p.get(obj, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// SetPropertyValue writes the property name of obj through its setter.
func SetPropertyValue[T any](obj *Object, name string, value T) error {
	if obj == nil {
		return errors.NilHandle(errors.PhaseEncode, "object")
	}
	cls, err := obj.classOf()
	if err != nil {
		return err
	}
	p, err := cls.Property(name)
	if err != nil {
		return err
	}
	return p.set(obj, reflect.ValueOf(&value).Elem())
}

// GetStaticPropertyValue reads the static property name of cls.
func GetStaticPropertyValue[T any](cls *Class, name string) (T, error) {
	var zero T
	p, err := cls.Property(name)
	if err != nil {
		return zero, err
	}
	v, err := p.get(nil, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// SetStaticPropertyValue writes the static property name of cls.
func SetStaticPropertyValue[T any](cls *Class, name string, value T) error {
	p, err := cls.Property(name)
	if err != nil {
		return err
	}
	return p.set(nil, reflect.ValueOf(&value).Elem())
}
