package transcoder

import (
	"reflect"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
)

// primitiveConverter copies numbers and booleans bit for bit.
type primitiveConverter struct {
	goType reflect.Type
	name   string
	code   monoruntime.TypeCode
	kind   Kind
}

func newPrimitive(goType reflect.Type, kind Kind) *primitiveConverter {
	return &primitiveConverter{
		goType: goType,
		kind:   kind,
		code:   kind.Code(),
		name:   kind.Code().String(),
	}
}

func (p *primitiveConverter) Kind() Kind                     { return p.kind }
func (p *primitiveConverter) GoType() reflect.Type           { return p.goType }
func (p *primitiveConverter) TypeCode() monoruntime.TypeCode { return p.code }
func (p *primitiveConverter) ManagedName() string            { return p.name }
func (p *primitiveConverter) ByRef() bool                    { return false }
func (p *primitiveConverter) Size() uintptr                  { return p.kind.Size() }

func (p *primitiveConverter) Encode(_ *Context, v reflect.Value, f *Frame) (unsafe.Pointer, error) {
	if v.Type() != p.goType {
		return nil, errors.TypeMismatch(errors.PhaseEncode, nil, v.Type().String(), p.name)
	}
	slot := f.Alloc(p.Size())
	writePrimitive(p.kind, slot, v)
	return slot, nil
}

func (p *primitiveConverter) Decode(_ *Context, slot unsafe.Pointer) (reflect.Value, error) {
	if slot == nil {
		return reflect.Value{}, errors.NilHandle(errors.PhaseDecode, p.name+" slot")
	}
	v := reflect.New(p.goType).Elem()
	readPrimitive(p.kind, slot, v)
	return v, nil
}

func writePrimitive(kind Kind, slot unsafe.Pointer, v reflect.Value) {
	switch kind {
	case KindBool:
		var b uint8
		if v.Bool() {
			b = 1
		}
		*(*uint8)(slot) = b
	case KindI8:
		*(*int8)(slot) = int8(v.Int())
	case KindU8:
		*(*uint8)(slot) = uint8(v.Uint())
	case KindI16:
		*(*int16)(slot) = int16(v.Int())
	case KindU16, KindChar:
		*(*uint16)(slot) = uint16(v.Uint())
	case KindI32:
		*(*int32)(slot) = int32(v.Int())
	case KindU32:
		*(*uint32)(slot) = uint32(v.Uint())
	case KindI64:
		*(*int64)(slot) = v.Int()
	case KindU64:
		*(*uint64)(slot) = v.Uint()
	case KindInt:
		*(*int)(slot) = int(v.Int())
	case KindUint:
		*(*uintptr)(slot) = uintptr(v.Uint())
	case KindF32:
		*(*float32)(slot) = float32(v.Float())
	case KindF64:
		*(*float64)(slot) = v.Float()
	}
}

func readPrimitive(kind Kind, slot unsafe.Pointer, v reflect.Value) {
	switch kind {
	case KindBool:
		v.SetBool(*(*uint8)(slot) != 0)
	case KindI8:
		v.SetInt(int64(*(*int8)(slot)))
	case KindU8:
		v.SetUint(uint64(*(*uint8)(slot)))
	case KindI16:
		v.SetInt(int64(*(*int16)(slot)))
	case KindU16, KindChar:
		v.SetUint(uint64(*(*uint16)(slot)))
	case KindI32:
		v.SetInt(int64(*(*int32)(slot)))
	case KindU32:
		v.SetUint(uint64(*(*uint32)(slot)))
	case KindI64:
		v.SetInt(*(*int64)(slot))
	case KindU64:
		v.SetUint(*(*uint64)(slot))
	case KindInt:
		v.SetInt(int64(*(*int)(slot)))
	case KindUint:
		v.SetUint(uint64(*(*uintptr)(slot)))
	case KindF32:
		v.SetFloat(float64(*(*float32)(slot)))
	case KindF64:
		v.SetFloat(*(*float64)(slot))
	}
}

// enumConverter marshals a named integer type registered with a managed
// enum name as its underlying primitive.
type enumConverter struct {
	primitiveConverter
}

func newEnum(goType reflect.Type, kind Kind, managedName string) *enumConverter {
	return &enumConverter{primitiveConverter{
		goType: goType,
		kind:   kind,
		code:   monoruntime.TypeValueType,
		name:   managedName,
	}}
}

func (e *enumConverter) Kind() Kind { return KindEnum }
