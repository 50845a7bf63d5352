package monotest

import (
	"fmt"
	"math"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
)

// Object is a managed heap object: a class instance, a boxed value or a
// string. Value field bytes live in data; reference fields live in refs.
type Object struct {
	class     *Class
	domain    *Domain
	data      []uint64
	refs      []*Object
	chars     []uint16
	mark      bool
	finalized bool
	dead      bool
}

func newObject(d *Domain, c *Class) *Object {
	c.layout()
	o := &Object{class: c, domain: d}
	if words := (c.instSize + 7) / 8; words > 0 {
		o.data = make([]uint64, words)
	}
	if c.nrefs > 0 {
		o.refs = make([]*Object, c.nrefs)
	}
	return o
}

// Class returns the runtime class of o.
func (o *Object) Class() *Class { return o.class }

// Alive reports whether o has not been collected or unloaded.
func (o *Object) Alive() bool { return !o.dead }

// Finalized reports whether the finalizer of o has run.
func (o *Object) Finalized() bool { return o.finalized }

// Text returns the contents of a string object. Unpaired surrogates are
// replaced with U+FFFD.
func (o *Object) Text() string {
	if o == nil {
		return ""
	}
	o.check()
	return decodeUnits(o.chars)
}

// Value returns the address of the instance data. For boxed values it is
// the unboxed value.
func (o *Object) Value() unsafe.Pointer {
	o.check()
	if len(o.data) == 0 {
		return unsafe.Pointer(&zeroWord)
	}
	return unsafe.Pointer(&o.data[0])
}

var zeroWord uint64

func (o *Object) check() {
	if o.dead {
		panic(fmt.Sprintf("monotest: use of collected %s instance", o.class.FullName()))
	}
}

func (o *Object) field(name string) *Field {
	f := o.class.Field(name)
	if f == nil || f.Static {
		panic(fmt.Sprintf("monotest: %s has no instance field %q", o.class.FullName(), name))
	}
	return f
}

func (o *Object) load(f *Field, out unsafe.Pointer) {
	o.loadAt(f.Type, f.offset, f.refIndex, out)
}

func (o *Object) store(f *Field, value unsafe.Pointer) {
	o.storeAt(f.Type, f.offset, f.refIndex, value)
}

func (o *Object) loadAt(t Type, offset uintptr, refIndex int, out unsafe.Pointer) {
	o.check()
	if t.IsReference() {
		*(*unsafe.Pointer)(out) = unsafe.Pointer(o.refs[refIndex])
		return
	}
	copyMem(out, unsafe.Add(o.Value(), offset), t.size())
}

func (o *Object) storeAt(t Type, offset uintptr, refIndex int, value unsafe.Pointer) {
	o.check()
	if t.IsReference() {
		o.refs[refIndex] = (*Object)(*(*unsafe.Pointer)(value))
		return
	}
	copyMem(unsafe.Add(o.Value(), offset), value, t.size())
}

// Int32 reads an int field.
func (o *Object) Int32(name string) int32 {
	var v int32
	o.load(o.field(name), unsafe.Pointer(&v))
	return v
}

// SetInt32 writes an int field.
func (o *Object) SetInt32(name string, v int32) {
	o.store(o.field(name), unsafe.Pointer(&v))
}

// Float32 reads a single field.
func (o *Object) Float32(name string) float32 {
	var v float32
	o.load(o.field(name), unsafe.Pointer(&v))
	return v
}

// SetFloat32 writes a single field.
func (o *Object) SetFloat32(name string, v float32) {
	o.store(o.field(name), unsafe.Pointer(&v))
}

// IntPtr reads a native int field.
func (o *Object) IntPtr(name string) uintptr {
	var v uintptr
	o.load(o.field(name), unsafe.Pointer(&v))
	return v
}

// SetIntPtr writes a native int field.
func (o *Object) SetIntPtr(name string, v uintptr) {
	o.store(o.field(name), unsafe.Pointer(&v))
}

// Ref reads a reference field.
func (o *Object) Ref(name string) *Object {
	var p unsafe.Pointer
	o.load(o.field(name), unsafe.Pointer(&p))
	return (*Object)(p)
}

// SetRef writes a reference field.
func (o *Object) SetRef(name string, v *Object) {
	p := unsafe.Pointer(v)
	o.store(o.field(name), unsafe.Pointer(&p))
}

func copyMem(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}

// slotFor converts a Go argument into an Invoke slot.
func slotFor(rt *Runtime, d *Domain, v any) unsafe.Pointer {
	switch x := v.(type) {
	case nil:
		return nil
	case *Object:
		return unsafe.Pointer(x)
	case string:
		return unsafe.Pointer(rt.newString(d, encodeUnits(x)))
	case unsafe.Pointer:
		return x
	case bool:
		b := new(uint8)
		if x {
			*b = 1
		}
		return unsafe.Pointer(b)
	case int32:
		return unsafe.Pointer(&x)
	case uint32:
		return unsafe.Pointer(&x)
	case int64:
		return unsafe.Pointer(&x)
	case uint64:
		return unsafe.Pointer(&x)
	case uintptr:
		return unsafe.Pointer(&x)
	case float32:
		return unsafe.Pointer(&x)
	case float64:
		return unsafe.Pointer(&x)
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			panic(fmt.Sprintf("monotest: int argument %d overflows int32", x))
		}
		n := int32(x)
		return unsafe.Pointer(&n)
	}
	panic(fmt.Sprintf("monotest: unsupported argument %T", v))
}

func objectRef(o *Object) monoruntime.ObjectRef {
	if o == nil {
		return nil
	}
	return monoruntime.ObjectRef(unsafe.Pointer(o))
}

func toObject(r monoruntime.ObjectRef) *Object {
	return (*Object)(unsafe.Pointer(r))
}
