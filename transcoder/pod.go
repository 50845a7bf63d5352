package transcoder

import (
	"reflect"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
)

// podConverter copies a plain-data Go struct byte for byte into a managed
// value type with an identical layout.
type podConverter struct {
	goType reflect.Type
	class  monoruntime.ClassRef
	name   string
	size   uintptr
}

func (p *podConverter) Kind() Kind                     { return KindPOD }
func (p *podConverter) GoType() reflect.Type           { return p.goType }
func (p *podConverter) TypeCode() monoruntime.TypeCode { return monoruntime.TypeValueType }
func (p *podConverter) ManagedName() string            { return p.name }
func (p *podConverter) ByRef() bool                    { return false }
func (p *podConverter) Size() uintptr                  { return p.size }

// Class returns the managed value type.
func (p *podConverter) Class() monoruntime.ClassRef { return p.class }

func (p *podConverter) Encode(_ *Context, v reflect.Value, f *Frame) (unsafe.Pointer, error) {
	if v.Type() != p.goType {
		return nil, errors.TypeMismatch(errors.PhaseEncode, nil, v.Type().String(), p.name)
	}
	if !v.CanAddr() {
		tmp := reflect.New(p.goType)
		tmp.Elem().Set(v)
		v = tmp.Elem()
	}
	slot := f.Alloc(p.size)
	copyBytes(slot, v.Addr().UnsafePointer(), p.size)
	return slot, nil
}

func (p *podConverter) Decode(_ *Context, slot unsafe.Pointer) (reflect.Value, error) {
	if slot == nil {
		return reflect.Value{}, errors.NilHandle(errors.PhaseDecode, p.name+" slot")
	}
	out := reflect.New(p.goType)
	copyBytes(out.UnsafePointer(), slot, p.size)
	return out.Elem(), nil
}

// mappedConverter marshals a Go type through a registered layout type,
// using a pair of conversion functions on the way in and out.
type mappedConverter struct {
	goType reflect.Type
	layout *podConverter
	to     reflect.Value // func(T) L
	from   reflect.Value // func(L) T
}

func (m *mappedConverter) Kind() Kind                     { return KindPOD }
func (m *mappedConverter) GoType() reflect.Type           { return m.goType }
func (m *mappedConverter) TypeCode() monoruntime.TypeCode { return monoruntime.TypeValueType }
func (m *mappedConverter) ManagedName() string            { return m.layout.name }
func (m *mappedConverter) ByRef() bool                    { return false }
func (m *mappedConverter) Size() uintptr                  { return m.layout.size }

func (m *mappedConverter) Encode(c *Context, v reflect.Value, f *Frame) (unsafe.Pointer, error) {
	if v.Type() != m.goType {
		return nil, errors.TypeMismatch(errors.PhaseEncode, nil, v.Type().String(), m.layout.name)
	}
	return m.layout.Encode(c, m.to.Call([]reflect.Value{v})[0], f)
}

func (m *mappedConverter) Decode(c *Context, slot unsafe.Pointer) (reflect.Value, error) {
	l, err := m.layout.Decode(c, slot)
	if err != nil {
		return reflect.Value{}, err
	}
	return m.from.Call([]reflect.Value{l})[0], nil
}
