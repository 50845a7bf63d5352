package monotest

import (
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
)

// Type is the declared type of a field, parameter or return value.
type Type struct {
	Class *Class
	Code  monoruntime.TypeCode
}

// Void is the return type of methods without a result.
var Void = Type{Code: monoruntime.TypeVoid}

// Built-in types. Their classes live in the corlib image.
var (
	Bool       = Type{Code: monoruntime.TypeBoolean}
	Char       = Type{Code: monoruntime.TypeChar}
	SByte      = Type{Code: monoruntime.TypeI1}
	Byte       = Type{Code: monoruntime.TypeU1}
	Int16      = Type{Code: monoruntime.TypeI2}
	UInt16     = Type{Code: monoruntime.TypeU2}
	Int32      = Type{Code: monoruntime.TypeI4}
	UInt32     = Type{Code: monoruntime.TypeU4}
	Int64      = Type{Code: monoruntime.TypeI8}
	UInt64     = Type{Code: monoruntime.TypeU8}
	IntPtr     = Type{Code: monoruntime.TypeI}
	UIntPtr    = Type{Code: monoruntime.TypeU}
	Single     = Type{Code: monoruntime.TypeR4}
	Double     = Type{Code: monoruntime.TypeR8}
	String     = Type{Code: monoruntime.TypeString}
	ObjectType = Type{Code: monoruntime.TypeObject}
)

// ClassType returns the type of values of c: a value type for structs and
// enums, a class reference otherwise.
func ClassType(c *Class) Type {
	if c.valueType {
		return Type{Class: c, Code: monoruntime.TypeValueType}
	}
	return Type{Class: c, Code: monoruntime.TypeClass}
}

// IsReference reports whether values of t are stored as object references.
func (t Type) IsReference() bool {
	return t.Code.IsReference()
}

// class returns the declaring class of t, resolving built-in types
// through corlib.
func (t Type) class() *Class {
	if t.Class != nil {
		return t.Class
	}
	return corlib.byCode[t.Code]
}

// Name returns the full managed name, for example "System.Int32".
func (t Type) Name() string {
	if c := t.class(); c != nil {
		return c.FullName()
	}
	return "System.Void"
}

// descName returns the name used in method descriptors and internal call
// signatures.
func (t Type) descName() string {
	switch t.Code {
	case monoruntime.TypeValueType, monoruntime.TypeClass:
		return t.Class.FullName()
	}
	return t.Code.String()
}

// size returns the storage size of a value of t.
func (t Type) size() uintptr {
	if t.IsReference() {
		return unsafe.Sizeof(uintptr(0))
	}
	if t.Code == monoruntime.TypeValueType {
		return t.Class.ValueSize()
	}
	return t.Code.Size()
}

func (t Type) align() uintptr {
	if t.IsReference() {
		return unsafe.Alignof(uintptr(0))
	}
	if t.Code == monoruntime.TypeValueType {
		return t.Class.alignment()
	}
	if s := t.Code.Size(); s > 0 {
		return s
	}
	return 1
}

func (t Type) info() monoruntime.TypeInfo {
	return monoruntime.TypeInfo{
		Class: classRef(t.class()),
		Name:  t.descName(),
		Code:  t.Code,
	}
}
