package monotest

import (
	"unsafe"
)

// Call is the activation of a managed method body.
type Call struct {
	rt     *Runtime
	domain *Domain
	Method *Method
	This   *Object
	args   []unsafe.Pointer
	ret    *Object
	exc    *Object
}

// Runtime returns the runtime executing the call.
func (c *Call) Runtime() *Runtime { return c.rt }

// Arg returns the raw slot of argument i.
func (c *Call) Arg(i int) unsafe.Pointer { return c.args[i] }

// Value returns the address of value-type argument i.
func (c *Call) Value(i int) unsafe.Pointer { return c.args[i] }

// Bool reads a bool argument.
func (c *Call) Bool(i int) bool { return *(*uint8)(c.args[i]) != 0 }

// Int32 reads an int argument.
func (c *Call) Int32(i int) int32 { return *(*int32)(c.args[i]) }

// Int64 reads a long argument.
func (c *Call) Int64(i int) int64 { return *(*int64)(c.args[i]) }

// IntPtr reads a native int argument.
func (c *Call) IntPtr(i int) uintptr { return *(*uintptr)(c.args[i]) }

// Float32 reads a single argument.
func (c *Call) Float32(i int) float32 { return *(*float32)(c.args[i]) }

// Float64 reads a double argument.
func (c *Call) Float64(i int) float64 { return *(*float64)(c.args[i]) }

// Object reads a reference argument.
func (c *Call) Object(i int) *Object { return (*Object)(c.args[i]) }

// String reads a string argument. A null string reads as "".
func (c *Call) String(i int) string { return c.Object(i).Text() }

// ReturnBool sets a bool result.
func (c *Call) ReturnBool(v bool) {
	var b uint8
	if v {
		b = 1
	}
	c.returnValue(unsafe.Pointer(&b))
}

// ReturnInt32 sets an int result.
func (c *Call) ReturnInt32(v int32) { c.returnValue(unsafe.Pointer(&v)) }

// ReturnFloat32 sets a single result.
func (c *Call) ReturnFloat32(v float32) { c.returnValue(unsafe.Pointer(&v)) }

// ReturnFloat64 sets a double result.
func (c *Call) ReturnFloat64(v float64) { c.returnValue(unsafe.Pointer(&v)) }

// ReturnValue sets a value-type result from the value at p.
func (c *Call) ReturnValue(p unsafe.Pointer) { c.returnValue(p) }

// ReturnString sets a string result.
func (c *Call) ReturnString(s string) {
	c.ret = c.rt.newString(c.domain, encodeUnits(s))
}

// ReturnObject sets a reference result.
func (c *Call) ReturnObject(o *Object) { c.ret = o }

func (c *Call) returnValue(p unsafe.Pointer) {
	c.ret = c.rt.box(c.domain, c.Method.Return.class(), p)
}

// NewString allocates a string in the calling domain.
func (c *Call) NewString(s string) *Object {
	return c.rt.newString(c.domain, encodeUnits(s))
}

// Throw raises System.Exception with msg.
func (c *Call) Throw(msg string) {
	c.exc = c.rt.newException(c.domain, corlib.exception, msg)
}

// ThrowNew raises an exception of class cls.
func (c *Call) ThrowNew(cls *Class, msg string) {
	c.exc = c.rt.newException(c.domain, cls, msg)
}

// Failed reports whether the call has raised.
func (c *Call) Failed() bool { return c.exc != nil }

// New allocates an instance of cls and runs the constructor taking
// len(args) parameters. An exception from the constructor is raised by c
// and New returns nil.
func (c *Call) New(cls *Class, args ...any) *Object {
	o := c.rt.newInstance(c.domain, cls)
	if ctor := cls.Method(".ctor", len(args)); ctor != nil {
		c.Invoke(ctor, o, args...)
		if c.exc != nil {
			return nil
		}
	}
	return o
}

// Invoke calls m. An exception from m is raised by c and Invoke returns nil.
func (c *Call) Invoke(m *Method, this *Object, args ...any) *Object {
	slots := make([]unsafe.Pointer, len(args))
	for i, a := range args {
		slots[i] = slotFor(c.rt, c.domain, a)
	}
	ret, exc := c.rt.invoke(c.domain, m, this, slots)
	if exc != nil {
		c.exc = exc
		return nil
	}
	return ret
}
