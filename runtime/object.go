package runtime

import (
	"reflect"
	"sync"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
)

// Object is a reference to a managed object. It does not keep the object
// alive: call Root to protect it across collections.
type Object struct {
	domain *Domain
	ref    monoruntime.ObjectRef
	class  *Class
	gch    monoruntime.GCHandle
	mu     sync.Mutex
}

func (rt *Runtime) wrapObject(d *Domain, ref monoruntime.ObjectRef) *Object {
	return &Object{domain: d, ref: ref}
}

// Domain returns the domain the object lives in.
func (o *Object) Domain() *Domain {
	return o.domain
}

// Class returns the runtime class of the object, or nil once its domain
// is closed.
func (o *Object) Class() *Class {
	cls, _ := o.classOf()
	return cls
}

// classOf returns the runtime class, failing with nil_handle for a nil
// object or a closed domain.
func (o *Object) classOf() (*Class, error) {
	if o == nil {
		return nil, errors.NilHandle(errors.PhaseLookup, "object")
	}
	if err := o.domain.check(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.class == nil {
		rt := o.domain.rt
		o.class = rt.wrapClass(o.domain, rt.api.ObjectClass(o.refLocked()))
	}
	return o.class, nil
}

// Ref returns the current object handle. For a rooted object this is the
// handle target, which follows the object if the collector moves it. Ref
// returns nil once the object's domain is closed.
func (o *Object) Ref() monoruntime.ObjectRef {
	if o == nil || !o.domain.live() {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refLocked()
}

func (o *Object) refLocked() monoruntime.ObjectRef {
	if o.gch != 0 {
		return o.domain.rt.api.GCHandleTarget(o.gch)
	}
	return o.ref
}

func (o *Object) handle() (monoruntime.ObjectRef, error) {
	if o == nil {
		return nil, errors.NilHandle(errors.PhaseEncode, "object")
	}
	if err := o.domain.check(); err != nil {
		return nil, err
	}
	ref := o.Ref()
	if ref == nil {
		return nil, errors.NilHandle(errors.PhaseEncode, "object")
	}
	return ref, nil
}

// Root takes a GC handle on the object. Rooting twice is a no-op.
func (o *Object) Root() error {
	if err := o.domain.check(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gch != 0 {
		return nil
	}
	h := o.domain.rt.api.NewGCHandle(o.ref, false)
	if h == 0 {
		return errors.NilHandle(errors.PhaseBind, "gc handle")
	}
	o.gch = h
	return nil
}

// Unroot frees the GC handle taken by Root. Handles of a closed domain
// were released with it and are only forgotten.
func (o *Object) Unroot() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gch == 0 {
		return
	}
	if !o.domain.live() {
		o.gch = 0
		o.ref = nil
		return
	}
	api := o.domain.rt.api
	o.ref = api.GCHandleTarget(o.gch)
	api.FreeGCHandle(o.gch)
	o.gch = 0
}

// IsRooted reports whether the object holds a GC handle.
func (o *Object) IsRooted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gch != 0
}

// Method looks up a method on the object's class.
func (o *Object) Method(name string, argc int) (*Method, error) {
	cls, err := o.classOf()
	if err != nil {
		return nil, err
	}
	return cls.Method(name, argc)
}

// MethodDesc looks up a method on the object's class by descriptor.
func (o *Object) MethodDesc(desc string) (*Method, error) {
	cls, err := o.classOf()
	if err != nil {
		return nil, err
	}
	return cls.MethodDesc(desc)
}

// Invoke calls the instance method name with untyped arguments, choosing
// the overload with len(args) parameters. Static methods are rejected.
func (o *Object) Invoke(name string, args ...any) (any, error) {
	m, err := o.Method(name, len(args))
	if err != nil {
		return nil, err
	}
	return m.Invoke(o, args...)
}

// Bind resolves the instance method name with the signature of the
// function fptr points to, and stores a thunk calling it on o in *fptr.
//
//	var set func(int32) error
//	err := obj.Bind("MethodWithParameter", &set)
func (o *Object) Bind(name string, fptr any) error {
	fv, err := funcPointer(fptr)
	if err != nil {
		return err
	}
	cls, err := o.classOf()
	if err != nil {
		return err
	}
	thunk, err := bindThunk(cls, o, name, fv.Type())
	if err != nil {
		return err
	}
	fv.Set(thunk)
	return nil
}

// BindMethod returns a typed thunk for the instance method name of obj.
func BindMethod[F any](obj *Object, name string) (F, error) {
	var zero F
	cls, err := obj.classOf()
	if err != nil {
		return zero, err
	}
	thunk, err := bindThunk(cls, obj, name, reflect.TypeFor[F]())
	if err != nil {
		return zero, err
	}
	return thunk.Interface().(F), nil
}

// Unbox reads a boxed value type into T, which must have a registered
// converter for the object's class.
func Unbox[T any](obj *Object) (T, error) {
	var zero T
	ref, err := obj.handle()
	if err != nil {
		return zero, err
	}
	rt := obj.domain.rt
	conv, err := rt.registry.Lookup(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	cls, err := obj.classOf()
	if err != nil {
		return zero, err
	}
	if conv.ByRef() || !cls.IsValueType() {
		return zero, errors.TypeMismatch(errors.PhaseDecode, nil, conv.GoType().String(), cls.FullName())
	}
	want := conv.ManagedName()
	if conv.TypeCode() != monoruntime.TypeValueType {
		want = boxedClasses[conv.TypeCode()]
	}
	if want != cls.FullName() {
		return zero, errors.TypeMismatch(errors.PhaseDecode, nil, conv.GoType().String(), cls.FullName())
	}
	v, err := transcoder.DecodeBoxed(obj.domain.context(), conv, ref)
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// boxedClasses names the corlib class a boxed primitive carries.
var boxedClasses = map[monoruntime.TypeCode]string{
	monoruntime.TypeBoolean: "System.Boolean",
	monoruntime.TypeChar:    "System.Char",
	monoruntime.TypeI1:      "System.SByte",
	monoruntime.TypeU1:      "System.Byte",
	monoruntime.TypeI2:      "System.Int16",
	monoruntime.TypeU2:      "System.UInt16",
	monoruntime.TypeI4:      "System.Int32",
	monoruntime.TypeU4:      "System.UInt32",
	monoruntime.TypeI8:      "System.Int64",
	monoruntime.TypeU8:      "System.UInt64",
	monoruntime.TypeI:       "System.IntPtr",
	monoruntime.TypeU:       "System.UIntPtr",
	monoruntime.TypeR4:      "System.Single",
	monoruntime.TypeR8:      "System.Double",
}
