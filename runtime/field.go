package runtime

import (
	"reflect"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
)

// Field is a managed field.
type Field struct {
	class  *Class
	ref    monoruntime.FieldRef
	name   string
	typ    monoruntime.TypeInfo
	static bool
}

func (f *Field) Name() string               { return f.name }
func (f *Field) Class() *Class              { return f.class }
func (f *Field) Ref() monoruntime.FieldRef  { return f.ref }
func (f *Field) Type() monoruntime.TypeInfo { return f.typ }
func (f *Field) IsStatic() bool             { return f.static }
func (f *Field) FullName() string           { return f.class.FullName() + "::" + f.name }

// converter returns the converter for T after checking it can hold values
// of the field's type.
func (f *Field) converter(t reflect.Type, phase errors.Phase) (transcoder.Converter, error) {
	conv, err := f.class.runtime().registry.Lookup(t)
	if err != nil {
		return nil, atMember(err, f.FullName(), -1)
	}
	if !compatible(conv, f.typ) {
		return nil, errors.TypeMismatch(phase, []string{f.FullName()}, t.String(), f.typ.Name)
	}
	return conv, nil
}

func (f *Field) expectStatic(static bool, phase errors.Phase) error {
	if f.static == static {
		return nil
	}
	detail := "field is static"
	if static {
		detail = "field is not static"
	}
	return errors.New(phase, errors.KindInvalidInput).Path(f.FullName()).Detail("%s", detail).Build()
}

// load reads the field into a Go value. obj is nil for static fields.
func (f *Field) load(obj *Object, t reflect.Type) (reflect.Value, error) {
	if err := f.expectStatic(obj == nil, errors.PhaseDecode); err != nil {
		return reflect.Value{}, err
	}
	conv, err := f.converter(t, errors.PhaseDecode)
	if err != nil {
		return reflect.Value{}, err
	}
	d := f.class.domain
	if err := d.check(); err != nil {
		return reflect.Value{}, err
	}

	api := f.class.api()
	var fill func(out unsafe.Pointer)
	if obj == nil {
		fill = func(out unsafe.Pointer) { api.GetStaticFieldValue(d.ref, f.ref, out) }
	} else {
		ref, err := obj.handle()
		if err != nil {
			return reflect.Value{}, err
		}
		fill = func(out unsafe.Pointer) { api.GetFieldValue(ref, f.ref, out) }
	}

	frame := transcoder.AcquireFrame(0)
	defer frame.Release()
	v, err := transcoder.Fetch(d.context(), conv, frame, fill)
	if err != nil {
		return reflect.Value{}, atMember(err, f.FullName(), -1)
	}
	return v, nil
}

// store writes a Go value into the field. obj is nil for static fields.
func (f *Field) store(obj *Object, v reflect.Value) error {
	if err := f.expectStatic(obj == nil, errors.PhaseEncode); err != nil {
		return err
	}
	conv, err := f.converter(v.Type(), errors.PhaseEncode)
	if err != nil {
		return err
	}
	d := f.class.domain
	if err := d.check(); err != nil {
		return err
	}

	size := conv.Size()
	if conv.ByRef() {
		size = unsafe.Sizeof(uintptr(0))
	}
	frame := transcoder.AcquireFrame(0)
	defer frame.Release()
	out := frame.Alloc(size)
	if err := transcoder.Store(d.context(), conv, v, out); err != nil {
		return atMember(err, f.FullName(), -1)
	}

	api := f.class.api()
	if obj == nil {
		api.SetStaticFieldValue(d.ref, f.ref, out)
		return nil
	}
	ref, err := obj.handle()
	if err != nil {
		return err
	}
	api.SetFieldValue(ref, f.ref, out)
	return nil
}

// GetFieldValue reads the instance field name of obj as T.
func GetFieldValue[T any](obj *Object, name string) (T, error) {
	var zero T
	if obj == nil {
		return zero, errors.NilHandle(errors.PhaseDecode, "object")
	}
	cls, err := obj.classOf()
	if err != nil {
		return zero, err
	}
	f, err := cls.Field(name)
	if err != nil {
		return zero, err
	}
	v, err := f.load(obj, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// SetFieldValue writes value into the instance field name of obj.
func SetFieldValue[T any](obj *Object, name string, value T) error {
	if obj == nil {
		return errors.NilHandle(errors.PhaseEncode, "object")
	}
	cls, err := obj.classOf()
	if err != nil {
		return err
	}
	f, err := cls.Field(name)
	if err != nil {
		return err
	}
	return f.store(obj, reflect.ValueOf(&value).Elem())
}

// GetStaticFieldValue reads the static field name of cls as T. Reading a
// static field runs the class's static constructor if it has not run yet.
func GetStaticFieldValue[T any](cls *Class, name string) (T, error) {
	var zero T
	f, err := cls.Field(name)
	if err != nil {
		return zero, err
	}
	v, err := f.load(nil, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// SetStaticFieldValue writes value into the static field name of cls.
func SetStaticFieldValue[T any](cls *Class, name string, value T) error {
	f, err := cls.Field(name)
	if err != nil {
		return err
	}
	return f.store(nil, reflect.ValueOf(&value).Elem())
}
