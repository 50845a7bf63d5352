package types

import (
	"reflect"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
)

// Field is one primitive member of a plain-data aggregate.
type Field struct {
	Name   string
	Offset uintptr
	Kind   Kind
}

// Layout is the flattened description of a plain-data aggregate.
type Layout struct {
	GoType reflect.Type
	Fields []Field
	Size   uintptr
}

// KindOf returns the primitive kind for a Go reflect kind.
func KindOf(k reflect.Kind) (Kind, bool) {
	switch k {
	case reflect.Bool:
		return KindBool, true
	case reflect.Int8:
		return KindI8, true
	case reflect.Uint8:
		return KindU8, true
	case reflect.Int16:
		return KindI16, true
	case reflect.Uint16:
		return KindU16, true
	case reflect.Int32:
		return KindI32, true
	case reflect.Uint32:
		return KindU32, true
	case reflect.Int64:
		return KindI64, true
	case reflect.Uint64:
		return KindU64, true
	case reflect.Int:
		return KindInt, true
	case reflect.Uint, reflect.Uintptr:
		return KindUint, true
	case reflect.Float32:
		return KindF32, true
	case reflect.Float64:
		return KindF64, true
	case reflect.String:
		return KindString, true
	}
	return 0, false
}

// Size returns the storage size of a primitive kind.
func (k Kind) Size() uintptr {
	switch k {
	case KindBool, KindI8, KindU8:
		return 1
	case KindI16, KindU16, KindChar:
		return 2
	case KindI32, KindU32, KindF32:
		return 4
	case KindI64, KindU64, KindF64:
		return 8
	case KindInt, KindUint:
		return unsafe.Sizeof(uintptr(0))
	}
	return 0
}

var kindCodes = [...]monoruntime.TypeCode{
	KindBool:    monoruntime.TypeBoolean,
	KindI8:      monoruntime.TypeI1,
	KindU8:      monoruntime.TypeU1,
	KindI16:     monoruntime.TypeI2,
	KindU16:     monoruntime.TypeU2,
	KindChar:    monoruntime.TypeChar,
	KindI32:     monoruntime.TypeI4,
	KindU32:     monoruntime.TypeU4,
	KindI64:     monoruntime.TypeI8,
	KindU64:     monoruntime.TypeU8,
	KindInt:     monoruntime.TypeI,
	KindUint:    monoruntime.TypeU,
	KindF32:     monoruntime.TypeR4,
	KindF64:     monoruntime.TypeR8,
	KindString:  monoruntime.TypeString,
	KindEnum:    monoruntime.TypeValueType,
	KindPOD:     monoruntime.TypeValueType,
	KindWrapper: monoruntime.TypeClass,
	KindObject:  monoruntime.TypeClass,
}

// Code returns the managed element type for a kind.
func (k Kind) Code() monoruntime.TypeCode {
	if int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return monoruntime.TypeEnd
}
