package transcoder

import (
	"reflect"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/transcoder/internal/types"
)

type Kind = types.Kind

const (
	KindBool    = types.KindBool
	KindI8      = types.KindI8
	KindU8      = types.KindU8
	KindI16     = types.KindI16
	KindU16     = types.KindU16
	KindChar    = types.KindChar
	KindI32     = types.KindI32
	KindU32     = types.KindU32
	KindI64     = types.KindI64
	KindU64     = types.KindU64
	KindInt     = types.KindInt
	KindUint    = types.KindUint
	KindF32     = types.KindF32
	KindF64     = types.KindF64
	KindString  = types.KindString
	KindEnum    = types.KindEnum
	KindPOD     = types.KindPOD
	KindWrapper = types.KindWrapper
	KindObject  = types.KindObject
)

// Char is a UTF-16 code unit, marshaled as the managed char type.
type Char uint16

// Context carries the runtime and the domain that new managed values are
// allocated in.
type Context struct {
	API    monoruntime.API
	Domain monoruntime.DomainRef
}

// Converter maps one Go type to and from its managed representation.
//
// A slot is what the runtime expects in an argument array position: the
// address of value storage when ByRef is false, or the object handle itself
// when ByRef is true.
type Converter interface {
	// Kind returns the marshaling category.
	Kind() Kind

	// GoType returns the Go type this converter handles.
	GoType() reflect.Type

	// TypeCode returns the managed element type.
	TypeCode() monoruntime.TypeCode

	// ManagedName returns the type name used in method descriptors.
	ManagedName() string

	// ByRef reports whether a slot is an object handle.
	ByRef() bool

	// Size returns the value storage size when ByRef is false.
	Size() uintptr

	// Encode converts v into a slot. Storage for value kinds is taken from f.
	Encode(c *Context, v reflect.Value, f *Frame) (unsafe.Pointer, error)

	// Decode converts a slot back into a Go value.
	Decode(c *Context, slot unsafe.Pointer) (reflect.Value, error)
}

// Store encodes v into out-storage form: the object handle for reference
// converters, or a copy of the value bytes otherwise. out must be large
// enough for a pointer or for Size bytes.
func Store(c *Context, conv Converter, v reflect.Value, out unsafe.Pointer) error {
	f := AcquireFrame(0)
	defer f.Release()

	slot, err := conv.Encode(c, v, f)
	if err != nil {
		return err
	}
	if conv.ByRef() {
		*(*unsafe.Pointer)(out) = slot
		return nil
	}
	copyBytes(out, slot, conv.Size())
	return nil
}

// Load decodes a value from out-storage form, as written by a field read or
// an internal call result.
func Load(c *Context, conv Converter, out unsafe.Pointer) (reflect.Value, error) {
	if conv.ByRef() {
		return conv.Decode(c, *(*unsafe.Pointer)(out))
	}
	return conv.Decode(c, out)
}

// Fetch lets fill write a value in out-storage form into scratch storage
// from f, then decodes it.
func Fetch(c *Context, conv Converter, f *Frame, fill func(out unsafe.Pointer)) (reflect.Value, error) {
	size := conv.Size()
	if conv.ByRef() {
		size = unsafe.Sizeof(uintptr(0))
	}
	out := f.Alloc(size)
	fill(out)
	return Load(c, conv, out)
}

// DecodeBoxed decodes an invoke result. Value kinds come back boxed and are
// unboxed first; reference kinds are the handle itself.
func DecodeBoxed(c *Context, conv Converter, ret monoruntime.ObjectRef) (reflect.Value, error) {
	if conv.ByRef() {
		return conv.Decode(c, unsafe.Pointer(ret))
	}
	if ret == nil {
		return reflect.Zero(conv.GoType()), nil
	}
	return conv.Decode(c, c.API.Unbox(ret))
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
