package runtime

import (
	"reflect"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
)

// Class is a managed class or value type.
type Class struct {
	domain    *Domain
	ref       monoruntime.ClassRef
	name      string
	namespace string
	valueType bool
}

func (rt *Runtime) wrapClass(d *Domain, ref monoruntime.ClassRef) *Class {
	return &Class{
		domain:    d,
		ref:       ref,
		name:      rt.api.ClassName(ref),
		namespace: rt.api.ClassNamespace(ref),
		valueType: rt.api.ClassIsValueType(ref),
	}
}

func (c *Class) Name() string                 { return c.name }
func (c *Class) Namespace() string            { return c.namespace }
func (c *Class) FullName() string             { return joinName(c.namespace, c.name) }
func (c *Class) Domain() *Domain              { return c.domain }
func (c *Class) IsValueType() bool            { return c.valueType }
func (c *Class) String() string               { return c.FullName() }
func (c *Class) api() monoruntime.API         { return c.domain.rt.api }
func (c *Class) runtime() *Runtime            { return c.domain.rt }
func (c *Class) context() *transcoder.Context { return c.domain.context() }

// Ref returns the raw class handle, or nil once the domain is closed.
func (c *Class) Ref() monoruntime.ClassRef {
	if !c.domain.live() {
		return nil
	}
	return c.ref
}

// ValueSize returns the unboxed size of a value type, or 0 once the domain
// is closed.
func (c *Class) ValueSize() uintptr {
	if !c.domain.live() {
		return 0
	}
	return c.api().ClassValueSize(c.ref)
}

// Parent returns the base class, or nil for System.Object and for classes
// of a closed domain.
func (c *Class) Parent() *Class {
	if !c.domain.live() {
		return nil
	}
	p := c.api().ClassParent(c.ref)
	if p == nil {
		return nil
	}
	return c.runtime().wrapClass(c.domain, p)
}

// IsSubclassOf reports whether c is base or derives from it.
func (c *Class) IsSubclassOf(base *Class) bool {
	if base == nil || !c.domain.live() {
		return false
	}
	for cls := c.ref; cls != nil; cls = c.api().ClassParent(cls) {
		if cls == base.ref {
			return true
		}
	}
	return false
}

// Field looks up a field declared by c or one of its ancestors.
func (c *Class) Field(name string) (*Field, error) {
	if err := c.domain.check(); err != nil {
		return nil, err
	}
	ref := c.api().ClassField(c.ref, name)
	if ref == nil {
		return nil, errors.NotFound(errors.PhaseLookup, "field", name, c.FullName())
	}
	return c.wrapField(ref), nil
}

func (c *Class) wrapField(ref monoruntime.FieldRef) *Field {
	api := c.api()
	return &Field{
		class:  c,
		ref:    ref,
		name:   api.FieldName(ref),
		typ:    api.FieldType(ref),
		static: api.FieldIsStatic(ref),
	}
}

// Property looks up a property declared by c or one of its ancestors.
func (c *Class) Property(name string) (*Property, error) {
	if err := c.domain.check(); err != nil {
		return nil, err
	}
	ref := c.api().ClassProperty(c.ref, name)
	if ref == nil {
		return nil, errors.NotFound(errors.PhaseLookup, "property", name, c.FullName())
	}
	return c.wrapProperty(ref), nil
}

func (c *Class) wrapProperty(ref monoruntime.PropertyRef) *Property {
	api := c.api()
	p := &Property{class: c, ref: ref, name: api.PropertyName(ref)}
	if g := api.PropertyGetter(ref); g != nil {
		p.getter = c.wrapMethod(g)
	}
	if s := api.PropertySetter(ref); s != nil {
		p.setter = c.wrapMethod(s)
	}
	return p
}

// Method looks up a method by name and parameter count. A negative argc
// matches any count.
func (c *Class) Method(name string, argc int) (*Method, error) {
	if err := c.domain.check(); err != nil {
		return nil, err
	}
	ref := c.api().ClassMethod(c.ref, name, argc)
	if ref == nil {
		return nil, errors.NotFound(errors.PhaseLookup, "method", name, c.FullName())
	}
	return c.wrapMethod(ref), nil
}

// MethodDesc looks up a method by descriptor, for example
// "MethodWithParameterAndReturnValue(string,int)". Ancestors are searched
// after c.
func (c *Class) MethodDesc(desc string) (*Method, error) {
	if err := c.domain.check(); err != nil {
		return nil, err
	}
	if ref := c.findDesc(desc); ref != nil {
		return c.wrapMethod(ref), nil
	}
	return nil, errors.NotFound(errors.PhaseLookup, "method", desc, c.FullName())
}

func (c *Class) findDesc(desc string) monoruntime.MethodRef {
	api := c.api()
	for cls := c.ref; cls != nil; cls = api.ClassParent(cls) {
		if m := api.FindMethod(cls, desc); m != nil {
			return m
		}
	}
	return nil
}

func (c *Class) wrapMethod(ref monoruntime.MethodRef) *Method {
	api := c.api()
	owner := c
	if mc := api.MethodClass(ref); mc != nil && mc != c.ref {
		owner = c.runtime().wrapClass(c.domain, mc)
	}
	return &Method{
		class: owner,
		ref:   ref,
		name:  api.MethodName(ref),
		sig:   api.MethodSignature(ref),
	}
}

// Fields returns the fields declared by c, not including inherited ones.
// A class of a closed domain has none.
func (c *Class) Fields() []*Field {
	if !c.domain.live() {
		return nil
	}
	refs := c.api().ClassFields(c.ref)
	out := make([]*Field, len(refs))
	for i, r := range refs {
		out[i] = c.wrapField(r)
	}
	return out
}

// Properties returns the properties declared by c.
func (c *Class) Properties() []*Property {
	if !c.domain.live() {
		return nil
	}
	refs := c.api().ClassProperties(c.ref)
	out := make([]*Property, len(refs))
	for i, r := range refs {
		out[i] = c.wrapProperty(r)
	}
	return out
}

// Methods returns the methods declared by c, constructors included.
func (c *Class) Methods() []*Method {
	if !c.domain.live() {
		return nil
	}
	refs := c.api().ClassMethods(c.ref)
	out := make([]*Method, len(refs))
	for i, r := range refs {
		out[i] = c.wrapMethod(r)
	}
	return out
}

// New allocates an instance and runs the constructor matching args. With
// no arguments and no parameterless constructor the instance is only
// allocated.
func (c *Class) New(args ...any) (*Object, error) {
	if err := c.domain.check(); err != nil {
		return nil, err
	}
	rt := c.runtime()

	ctor, err := c.constructor(args)
	if err != nil {
		return nil, err
	}

	ref := rt.api.NewObject(c.domain.ref, c.ref)
	if ref == nil {
		return nil, errors.NilHandle(errors.PhaseInvoke, c.FullName()+" instance")
	}
	obj := rt.wrapObject(c.domain, ref)
	if ctor != nil {
		if _, err := ctor.invokeDynamic(obj, args); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// constructor picks the .ctor overload for args, by descriptor first and
// by parameter count second.
func (c *Class) constructor(args []any) (*Method, error) {
	types := make([]reflect.Type, len(args))
	for i, a := range args {
		types[i] = reflect.TypeOf(a)
	}
	if desc, ok := c.runtime().descriptorFor(".ctor", types); ok {
		if m := c.api().FindMethod(c.ref, desc); m != nil {
			return c.wrapMethod(m), nil
		}
	}
	if m := c.api().ClassMethod(c.ref, ".ctor", len(args)); m != nil && c.api().MethodClass(m) == c.ref {
		return c.wrapMethod(m), nil
	}
	if len(args) == 0 {
		return nil, nil
	}
	return nil, errors.NotFound(errors.PhaseLookup, "constructor", ".ctor", c.FullName())
}

// Bind resolves the static method name with the signature of the function
// fptr points to, and stores a thunk calling it in *fptr. The function
// type must end with an error result.
//
//	var add func(int32) (int32, error)
//	err := cls.Bind("FunctionWithIntParam", &add)
func (c *Class) Bind(name string, fptr any) error {
	fv, err := funcPointer(fptr)
	if err != nil {
		return err
	}
	thunk, err := bindThunk(c, nil, name, fv.Type())
	if err != nil {
		return err
	}
	fv.Set(thunk)
	return nil
}

// BindStatic returns a typed thunk for the static method name of cls.
//
//	add, err := runtime.BindStatic[func(int32) (int32, error)](cls, "FunctionWithIntParam")
func BindStatic[F any](cls *Class, name string) (F, error) {
	var zero F
	thunk, err := bindThunk(cls, nil, name, reflect.TypeFor[F]())
	if err != nil {
		return zero, err
	}
	return thunk.Interface().(F), nil
}

func funcPointer(fptr any) (reflect.Value, error) {
	v := reflect.ValueOf(fptr)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Func {
		return reflect.Value{}, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			Detail("expected a pointer to a function variable, got %T", fptr).
			Build()
	}
	return v.Elem(), nil
}
