package types

// Kind is the marshaling category of a Go type.
type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindU8
	KindI16
	KindU16
	KindChar
	KindI32
	KindU32
	KindI64
	KindU64
	KindInt
	KindUint
	KindF32
	KindF64
	KindString
	KindEnum
	KindPOD
	KindWrapper
	KindObject
)

var kindNames = [...]string{
	KindBool:    "bool",
	KindI8:      "i8",
	KindU8:      "u8",
	KindI16:     "i16",
	KindU16:     "u16",
	KindChar:    "char",
	KindI32:     "i32",
	KindU32:     "u32",
	KindI64:     "i64",
	KindU64:     "u64",
	KindInt:     "int",
	KindUint:    "uint",
	KindF32:     "f32",
	KindF64:     "f64",
	KindString:  "string",
	KindEnum:    "enum",
	KindPOD:     "pod",
	KindWrapper: "wrapper",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether values are plain numbers or booleans.
func (k Kind) IsPrimitive() bool {
	return k <= KindF64
}

// IsValue reports whether values travel by address to their storage.
func (k Kind) IsValue() bool {
	return k <= KindPOD && k != KindString
}

// IsReference reports whether values travel as an object handle.
func (k Kind) IsReference() bool {
	return !k.IsValue()
}
