package transcoder

import (
	"reflect"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/resource"
)

// wrapperConverter marshals a shared Go value as a managed proxy object
// whose token field holds a reference-counted ownership token.
type wrapperConverter struct {
	goType reflect.Type
	table  *resource.UnifiedTable
	class  monoruntime.ClassRef
	token  monoruntime.FieldRef
	name   string
	typeID uint32
}

func (w *wrapperConverter) Kind() Kind                     { return KindWrapper }
func (w *wrapperConverter) GoType() reflect.Type           { return w.goType }
func (w *wrapperConverter) TypeCode() monoruntime.TypeCode { return monoruntime.TypeClass }
func (w *wrapperConverter) ManagedName() string            { return w.name }
func (w *wrapperConverter) ByRef() bool                    { return true }
func (w *wrapperConverter) Size() uintptr                  { return 0 }

// Encode allocates a new proxy without running a managed constructor and
// binds v to it. A nil Go value encodes as a null reference.
func (w *wrapperConverter) Encode(c *Context, v reflect.Value, _ *Frame) (unsafe.Pointer, error) {
	if !v.Type().AssignableTo(w.goType) {
		return nil, errors.TypeMismatch(errors.PhaseEncode, nil, v.Type().String(), w.name)
	}
	if isNil(v) {
		return nil, nil
	}
	obj := c.API.NewObject(c.Domain, w.class)
	if obj == nil {
		return nil, errors.NilHandle(errors.PhaseEncode, w.name)
	}
	if err := w.bind(c, obj, v); err != nil {
		return nil, err
	}
	return unsafe.Pointer(obj), nil
}

func (w *wrapperConverter) Decode(c *Context, slot unsafe.Pointer) (reflect.Value, error) {
	out := reflect.New(w.goType).Elem()
	if slot == nil {
		return out, nil
	}
	tok := w.tokenOf(c, monoruntime.ObjectRef(slot))
	value, ok := w.table.GetTyped(tok, w.typeID)
	if !ok {
		return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			ManagedType(w.name).
			Detail("object holds no live token (%d)", tok).
			Build()
	}
	out.Set(reflect.ValueOf(value))
	return out, nil
}

// bind acquires a token for v and stores it in obj, releasing any token
// obj already held.
func (w *wrapperConverter) bind(c *Context, obj monoruntime.ObjectRef, v reflect.Value) error {
	tok := w.table.Acquire(w.typeID, v.Interface())
	if tok == 0 {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			ManagedType(w.name).
			Detail("cannot acquire ownership token").
			Build()
	}
	if prev := w.tokenOf(c, obj); prev != 0 {
		w.table.Release(prev)
	}
	raw := uintptr(tok)
	c.API.SetFieldValue(obj, w.token, unsafe.Pointer(&raw))
	return nil
}

// share adds a reference to src's token and stores it in dst.
func (w *wrapperConverter) share(c *Context, dst, src monoruntime.ObjectRef) error {
	tok := w.tokenOf(c, src)
	if _, ok := w.table.GetTyped(tok, w.typeID); !ok || !w.table.Retain(tok) {
		return errors.New(errors.PhaseBind, errors.KindInvalidData).
			ManagedType(w.name).
			Detail("source object holds no live token (%d)", tok).
			Build()
	}
	if prev := w.tokenOf(c, dst); prev != 0 {
		w.table.Release(prev)
	}
	raw := uintptr(tok)
	c.API.SetFieldValue(dst, w.token, unsafe.Pointer(&raw))
	return nil
}

func (w *wrapperConverter) tokenOf(c *Context, obj monoruntime.ObjectRef) resource.Token {
	var raw uintptr
	c.API.GetFieldValue(obj, w.token, unsafe.Pointer(&raw))
	return resource.Token(raw)
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// HandleFuncs connects a Go handle type to the object reference it wraps.
type HandleFuncs struct {
	// Wrap builds the Go value for a non-nil reference.
	Wrap func(c *Context, ref monoruntime.ObjectRef) (reflect.Value, error)

	// Unwrap returns the reference held by a non-nil Go value.
	Unwrap func(v reflect.Value) (monoruntime.ObjectRef, error)
}

// handleConverter passes Go handle types that already wrap an object
// reference (such as runtime objects and strings) as the raw reference.
type handleConverter struct {
	goType reflect.Type
	funcs  HandleFuncs
	name   string
	code   monoruntime.TypeCode
}

// NewHandleConverter returns a converter for a Go type that wraps an object
// reference. A nil Go value and a null reference map to each other.
func NewHandleConverter(goType reflect.Type, code monoruntime.TypeCode, managedName string, funcs HandleFuncs) Converter {
	return &handleConverter{
		goType: goType,
		code:   code,
		name:   managedName,
		funcs:  funcs,
	}
}

func (h *handleConverter) Kind() Kind                     { return KindObject }
func (h *handleConverter) GoType() reflect.Type           { return h.goType }
func (h *handleConverter) TypeCode() monoruntime.TypeCode { return h.code }
func (h *handleConverter) ManagedName() string            { return h.name }
func (h *handleConverter) ByRef() bool                    { return true }
func (h *handleConverter) Size() uintptr                  { return 0 }

func (h *handleConverter) Encode(_ *Context, v reflect.Value, _ *Frame) (unsafe.Pointer, error) {
	if v.Type() != h.goType {
		return nil, errors.TypeMismatch(errors.PhaseEncode, nil, v.Type().String(), h.name)
	}
	if isNil(v) {
		return nil, nil
	}
	ref, err := h.funcs.Unwrap(v)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(ref), nil
}

func (h *handleConverter) Decode(c *Context, slot unsafe.Pointer) (reflect.Value, error) {
	if slot == nil {
		return reflect.Zero(h.goType), nil
	}
	return h.funcs.Wrap(c, monoruntime.ObjectRef(slot))
}
