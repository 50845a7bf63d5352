package monoruntime

import "unsafe"

// Opaque handles owned by the embedded runtime. A nil handle always means
// "not found" and must never be passed back into the runtime.
type (
	DomainRef   unsafe.Pointer
	AssemblyRef unsafe.Pointer
	ImageRef    unsafe.Pointer
	ClassRef    unsafe.Pointer
	MethodRef   unsafe.Pointer
	FieldRef    unsafe.Pointer
	PropertyRef unsafe.Pointer
	ObjectRef   unsafe.Pointer
)

// GCHandle roots a managed object against collection. Zero is invalid.
type GCHandle uint32

// TypeCode is the managed element type of a signature slot, field or value.
// Values match the runtime's MONO_TYPE_* encoding.
type TypeCode uint8

const (
	TypeEnd       TypeCode = 0x00
	TypeVoid      TypeCode = 0x01
	TypeBoolean   TypeCode = 0x02
	TypeChar      TypeCode = 0x03
	TypeI1        TypeCode = 0x04
	TypeU1        TypeCode = 0x05
	TypeI2        TypeCode = 0x06
	TypeU2        TypeCode = 0x07
	TypeI4        TypeCode = 0x08
	TypeU4        TypeCode = 0x09
	TypeI8        TypeCode = 0x0a
	TypeU8        TypeCode = 0x0b
	TypeR4        TypeCode = 0x0c
	TypeR8        TypeCode = 0x0d
	TypeString    TypeCode = 0x0e
	TypePtr       TypeCode = 0x0f
	TypeByRef     TypeCode = 0x10
	TypeValueType TypeCode = 0x11
	TypeClass     TypeCode = 0x12
	TypeArray     TypeCode = 0x14
	TypeGeneric   TypeCode = 0x15
	TypeI         TypeCode = 0x18
	TypeU         TypeCode = 0x19
	TypeObject    TypeCode = 0x1c
	TypeSZArray   TypeCode = 0x1d
)

var typeCodeNames = map[TypeCode]string{
	TypeVoid:      "void",
	TypeBoolean:   "bool",
	TypeChar:      "char",
	TypeI1:        "sbyte",
	TypeU1:        "byte",
	TypeI2:        "short",
	TypeU2:        "ushort",
	TypeI4:        "int",
	TypeU4:        "uint",
	TypeI8:        "long",
	TypeU8:        "ulong",
	TypeR4:        "single",
	TypeR8:        "double",
	TypeString:    "string",
	TypePtr:       "ptr",
	TypeByRef:     "byref",
	TypeValueType: "valuetype",
	TypeClass:     "class",
	TypeArray:     "array",
	TypeGeneric:   "genericinst",
	TypeI:         "intptr",
	TypeU:         "uintptr",
	TypeObject:    "object",
	TypeSZArray:   "szarray",
}

// String returns the name used for the type in method descriptors
// ("int", "single", "string", ...).
func (c TypeCode) String() string {
	if n, ok := typeCodeNames[c]; ok {
		return n
	}
	return "unknown"
}

// IsReference reports whether values of this type travel as object handles.
func (c TypeCode) IsReference() bool {
	switch c {
	case TypeString, TypeClass, TypeObject, TypeArray, TypeSZArray, TypeGeneric:
		return true
	}
	return false
}

// Size returns the storage size of a primitive value, or 0 for types whose
// size depends on the class (value types) or that travel by handle.
func (c TypeCode) Size() uintptr {
	switch c {
	case TypeBoolean, TypeI1, TypeU1:
		return 1
	case TypeChar, TypeI2, TypeU2:
		return 2
	case TypeI4, TypeU4, TypeR4:
		return 4
	case TypeI8, TypeU8, TypeR8:
		return 8
	case TypeI, TypeU, TypePtr:
		return unsafe.Sizeof(uintptr(0))
	}
	return 0
}

// TypeInfo describes the managed type of a field, parameter or return slot.
type TypeInfo struct {
	Class ClassRef
	Name  string
	Code  TypeCode
}

// Signature is the managed signature of a method.
type Signature struct {
	Params []TypeInfo
	Return TypeInfo
	Static bool
}

// InitOptions configures the embedded runtime at process start.
type InitOptions struct {
	RootDomain  string // friendly name of the root domain
	Version     string // runtime version, empty selects the default
	AssemblyDir string // framework assembly directory
	ConfigDir   string // runtime configuration directory
	ConfigFile  string // runtime config file, empty loads the default
}

// NativeCall is a process-side function exposed to managed code under a
// fully-qualified method name. Arguments arrive as an untyped slot array:
// value types by address, reference types as the object handle. A non-void
// result is written to ret using the same convention as field storage.
type NativeCall struct {
	Invoke     func(this ObjectRef, args []unsafe.Pointer, ret unsafe.Pointer) error
	Name       string
	Params     []TypeCode
	Result     TypeCode
	ResultSize uintptr
	HasThis    bool
}

// API is the embedding surface of the managed runtime. Implementations are
// thin call-throughs; they never cache and never own managed memory.
//
// Calls are not safe for concurrent use unless the implementation says so.
type API interface {
	Init(opts InitOptions) (DomainRef, error)
	Cleanup(root DomainRef)

	RootDomain() DomainRef
	CreateDomain(name string) DomainRef
	SetDomain(d DomainRef) bool
	UnloadDomain(d DomainRef)

	OpenAssembly(d DomainRef, path string) AssemblyRef
	AssemblyImage(a AssemblyRef) ImageRef
	AssemblyName(a AssemblyRef) string
	Corlib() ImageRef

	ClassFromName(img ImageRef, namespace, name string) ClassRef
	ClassName(c ClassRef) string
	ClassNamespace(c ClassRef) string
	ClassParent(c ClassRef) ClassRef
	ClassIsValueType(c ClassRef) bool
	ClassValueSize(c ClassRef) uintptr
	ClassFields(c ClassRef) []FieldRef
	ClassProperties(c ClassRef) []PropertyRef
	ClassMethods(c ClassRef) []MethodRef
	ClassField(c ClassRef, name string) FieldRef
	ClassProperty(c ClassRef, name string) PropertyRef
	ClassMethod(c ClassRef, name string, argc int) MethodRef
	FindMethod(c ClassRef, desc string) MethodRef

	MethodName(m MethodRef) string
	MethodClass(m MethodRef) ClassRef
	MethodSignature(m MethodRef) Signature

	FieldName(f FieldRef) string
	FieldType(f FieldRef) TypeInfo
	FieldIsStatic(f FieldRef) bool
	FieldOffset(f FieldRef) uintptr
	// Field values travel in out-storage form: the value bytes for value
	// types, a pointer-sized cell holding the object for reference types.
	GetFieldValue(obj ObjectRef, f FieldRef, out unsafe.Pointer)
	SetFieldValue(obj ObjectRef, f FieldRef, value unsafe.Pointer)
	GetStaticFieldValue(d DomainRef, f FieldRef, out unsafe.Pointer)
	SetStaticFieldValue(d DomainRef, f FieldRef, value unsafe.Pointer)

	PropertyName(p PropertyRef) string
	PropertyGetter(p PropertyRef) MethodRef
	PropertySetter(p PropertyRef) MethodRef

	// Invoke calls m. A non-nil exc means the call raised and ret is undefined.
	Invoke(m MethodRef, this ObjectRef, args []unsafe.Pointer) (ret ObjectRef, exc ObjectRef)

	NewObject(d DomainRef, c ClassRef) ObjectRef
	ObjectClass(o ObjectRef) ClassRef
	Unbox(o ObjectRef) unsafe.Pointer
	Box(d DomainRef, c ClassRef, value unsafe.Pointer) ObjectRef

	NewString(d DomainRef, units []uint16) ObjectRef
	StringUnits(s ObjectRef) []uint16

	NewGCHandle(o ObjectRef, pinned bool) GCHandle
	GCHandleTarget(h GCHandle) ObjectRef
	FreeGCHandle(h GCHandle)

	AddInternalCall(call *NativeCall) error
}
