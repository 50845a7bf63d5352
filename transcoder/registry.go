package transcoder

import (
	"fmt"
	"reflect"
	"sync"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/resource"
	"github.com/wippyai/mono-runtime/transcoder/internal/layout"
	"github.com/wippyai/mono-runtime/transcoder/internal/types"
)

// Registry maps Go types to converters. Primitives, strings and Char are
// available from the start; enums, plain-data structs, shared wrappers and
// handle types must be registered before first use.
//
// A Registry is safe for concurrent use. Finalizer-driven token releases
// may arrive from runtime threads.
type Registry struct {
	converters map[reflect.Type]Converter
	byCode     map[monoruntime.TypeCode]Converter
	table      *resource.UnifiedTable
	layouts    *layout.Calculator
	mu         sync.RWMutex
	nextTypeID uint32
	closed     bool
}

// NewRegistry creates a registry whose shared wrappers keep their ownership
// tokens in table.
func NewRegistry(table *resource.UnifiedTable) *Registry {
	r := &Registry{
		converters: make(map[reflect.Type]Converter),
		byCode:     make(map[monoruntime.TypeCode]Converter),
		table:      table,
		layouts:    layout.NewCalculator(),
	}

	for _, t := range []reflect.Type{
		reflect.TypeFor[bool](),
		reflect.TypeFor[int8](),
		reflect.TypeFor[uint8](),
		reflect.TypeFor[int16](),
		reflect.TypeFor[uint16](),
		reflect.TypeFor[int32](),
		reflect.TypeFor[uint32](),
		reflect.TypeFor[int64](),
		reflect.TypeFor[uint64](),
		reflect.TypeFor[int](),
		reflect.TypeFor[uint](),
		reflect.TypeFor[uintptr](),
		reflect.TypeFor[float32](),
		reflect.TypeFor[float64](),
	} {
		kind, _ := types.KindOf(t.Kind())
		conv := newPrimitive(t, kind)
		r.converters[t] = conv
		if _, ok := r.byCode[conv.code]; !ok {
			r.byCode[conv.code] = conv
		}
	}

	char := newPrimitive(reflect.TypeFor[Char](), KindChar)
	r.converters[char.goType] = char
	r.byCode[monoruntime.TypeChar] = char

	str := &stringConverter{goType: reflect.TypeFor[string]()}
	r.converters[str.goType] = str
	r.byCode[monoruntime.TypeString] = str

	return r
}

// Table returns the ownership-token table backing shared wrappers.
func (r *Registry) Table() *resource.UnifiedTable {
	return r.table
}

// Lookup returns the converter for a Go type. Named types whose underlying
// kind is a primitive or string fall back to that category when they were
// not registered as enums.
func (r *Registry) Lookup(t reflect.Type) (Converter, error) {
	if t == nil {
		return nil, errors.InvalidInput(errors.PhaseCompile, "nil type")
	}

	r.mu.RLock()
	conv, ok := r.converters[t]
	closed := r.closed
	r.mu.RUnlock()

	if closed {
		return nil, errors.NotInitialized(errors.PhaseCompile, "registry")
	}
	if ok {
		return conv, nil
	}

	kind, ok := types.KindOf(t.Kind())
	if !ok {
		return nil, errors.Unsupported(errors.PhaseCompile, t.String())
	}

	if kind == KindString {
		conv = &stringConverter{goType: t}
	} else {
		conv = newPrimitive(t, kind)
	}

	r.mu.Lock()
	if existing, ok := r.converters[t]; ok {
		conv = existing
	} else {
		r.converters[t] = conv
	}
	r.mu.Unlock()
	return conv, nil
}

// ForTypeCode returns the default converter for a managed primitive or
// string element type.
func (r *Registry) ForTypeCode(code monoruntime.TypeCode) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.byCode[code]
	return conv, ok
}

// Register adds a converter for its Go type. Registering a type twice fails.
func (r *Registry) Register(conv Converter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.NotInitialized(errors.PhaseRegister, "registry")
	}

	t := conv.GoType()
	if existing, ok := r.converters[t]; ok && !isImplicit(existing, t) {
		return errors.Registration(errors.PhaseRegister, t.String(),
			fmt.Errorf("already registered as %s", existing.ManagedName()))
	}
	r.converters[t] = conv
	return nil
}

// isImplicit reports whether conv was created by the Lookup fallback for a
// named type rather than by explicit registration.
func isImplicit(conv Converter, t reflect.Type) bool {
	if t.PkgPath() == "" || t == reflect.TypeFor[Char]() {
		return false
	}
	switch conv.(type) {
	case *primitiveConverter, *stringConverter:
		return true
	}
	return false
}

// RegisterEnum pairs a named integer type with a managed enum.
func (r *Registry) RegisterEnum(t reflect.Type, managedName string) error {
	kind, ok := types.KindOf(t.Kind())
	if !ok || !kind.IsPrimitive() || kind == KindBool || kind == KindF32 || kind == KindF64 {
		return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			GoType(t.String()).
			ManagedType(managedName).
			Detail("enum must have an integer underlying type").
			Build()
	}
	return r.Register(newEnum(t, kind, managedName))
}

// RegisterPOD pairs a plain-data Go struct with a managed value type. The
// Go struct must match the managed field count, order, kinds, offsets and
// size exactly.
func (r *Registry) RegisterPOD(api monoruntime.API, t reflect.Type, class monoruntime.ClassRef) error {
	conv, err := r.podFor(api, t, class)
	if err != nil {
		return err
	}
	return r.Register(conv)
}

// RegisterMapped pairs Go type T with managed value type class through the
// plain-data layout type L. Values are converted with to on the way in and
// from on the way out.
func RegisterMapped[T, L any](r *Registry, api monoruntime.API, class monoruntime.ClassRef, to func(T) L, from func(L) T) error {
	pod, err := r.podFor(api, reflect.TypeFor[L](), class)
	if err != nil {
		return err
	}
	return r.Register(&mappedConverter{
		goType: reflect.TypeFor[T](),
		layout: pod,
		to:     reflect.ValueOf(to),
		from:   reflect.ValueOf(from),
	})
}

func (r *Registry) podFor(api monoruntime.API, t reflect.Type, class monoruntime.ClassRef) (*podConverter, error) {
	if class == nil {
		return nil, errors.NilHandle(errors.PhaseRegister, "class")
	}
	name := fullName(api, class)

	if !api.ClassIsValueType(class) {
		return nil, errors.LayoutMismatch([]string{name}, t.String(), name, "managed type is not a value type")
	}

	l, err := r.layouts.Of(t)
	if err != nil {
		return nil, errors.LayoutMismatch([]string{name}, t.String(), name, err.Error())
	}

	var managed []layout.ManagedField
	for _, f := range api.ClassFields(class) {
		if api.FieldIsStatic(f) {
			continue
		}
		managed = append(managed, layout.ManagedField{
			Name:   api.FieldName(f),
			Offset: api.FieldOffset(f),
			Code:   api.FieldType(f).Code,
		})
	}

	size := api.ClassValueSize(class)
	if diff := layout.Compare(l, managed, size); diff != "" {
		return nil, errors.LayoutMismatch([]string{name}, t.String(), name, diff)
	}

	return &podConverter{
		goType: t,
		class:  class,
		name:   name,
		size:   size,
	}, nil
}

// RegisterWrapper pairs a Go type with a managed proxy class. tokenField is
// the native-int field that stores the ownership token.
func (r *Registry) RegisterWrapper(api monoruntime.API, t reflect.Type, class monoruntime.ClassRef, tokenField monoruntime.FieldRef) error {
	if class == nil {
		return errors.NilHandle(errors.PhaseRegister, "class")
	}
	if tokenField == nil {
		return errors.NilHandle(errors.PhaseRegister, "token field")
	}
	if code := api.FieldType(tokenField).Code; code != monoruntime.TypeI && code != monoruntime.TypeU {
		return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			Path(api.FieldName(tokenField)).
			ManagedType(code.String()).
			Detail("token field must be a native int").
			Build()
	}

	r.mu.Lock()
	r.nextTypeID++
	typeID := r.nextTypeID
	r.mu.Unlock()

	return r.Register(&wrapperConverter{
		goType: t,
		table:  r.table,
		class:  class,
		token:  tokenField,
		name:   fullName(api, class),
		typeID: typeID,
	})
}

// Bind attaches value to an existing proxy object, typically from inside a
// managed constructor implemented as an internal call.
func (r *Registry) Bind(c *Context, obj monoruntime.ObjectRef, value any) error {
	if obj == nil {
		return errors.NilHandle(errors.PhaseBind, "object")
	}
	if value == nil {
		return errors.InvalidInput(errors.PhaseBind, "cannot bind nil")
	}
	conv, err := r.Lookup(reflect.TypeOf(value))
	if err != nil {
		return err
	}
	w, ok := conv.(*wrapperConverter)
	if !ok {
		return errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			GoType(reflect.TypeOf(value).String()).
			Detail("type is not registered as a shared wrapper").
			Build()
	}
	return w.bind(c, obj, reflect.ValueOf(value))
}

// Release drops one reference to an ownership token. It is called from the
// managed finalizer of a proxy.
func (r *Registry) Release(tok resource.Token) bool {
	return r.table.Release(tok)
}

// Share makes the proxy dst refer to the same Go value as the proxy src by
// retaining src's token. Any token dst held before is released. Both
// objects must be instances of the same registered wrapper class.
func (r *Registry) Share(c *Context, dst, src monoruntime.ObjectRef) error {
	if dst == nil || src == nil {
		return errors.NilHandle(errors.PhaseBind, "object")
	}
	class := c.API.ObjectClass(src)
	var candidates []*wrapperConverter
	r.mu.RLock()
	for _, conv := range r.converters {
		if wc, ok := conv.(*wrapperConverter); ok && wc.class == class {
			candidates = append(candidates, wc)
		}
	}
	r.mu.RUnlock()
	if len(candidates) == 0 {
		return errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			ManagedType(fullName(c.API, class)).
			Detail("class is not registered as a shared wrapper").
			Build()
	}
	if got := c.API.ObjectClass(dst); got != class {
		return errors.TypeMismatch(errors.PhaseBind, nil, fullName(c.API, got), candidates[0].name)
	}

	// Several Go types may share one proxy class; the token's type ID
	// picks the converter.
	w := candidates[0]
	for _, wc := range candidates {
		if _, ok := r.table.GetTyped(wc.tokenOf(c, src), wc.typeID); ok {
			w = wc
			break
		}
	}
	return w.share(c, dst, src)
}

// Close drops every registration, drops every live shared value and
// closes the token table. Lookups fail afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.converters = nil
	r.byCode = nil
	r.mu.Unlock()

	r.table.Clear()
	return r.table.Close()
}

func fullName(api monoruntime.API, class monoruntime.ClassRef) string {
	ns := api.ClassNamespace(class)
	if ns == "" {
		return api.ClassName(class)
	}
	return ns + "." + api.ClassName(class)
}
