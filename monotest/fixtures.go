package monotest

import "unsafe"

// Paths the sample assemblies are registered under by LoadFixtures.
const (
	CoreAssemblyPath  = "monort_managed.dll"
	TestsAssemblyPath = "tests_managed.dll"
)

// Vector2f mirrors the layout of the Tests.Vector2f value type.
type Vector2f struct {
	X float32
	Y float32
}

// LoadFixtures builds the sample assemblies and registers them with rt. The
// core image holds the wrapper base class; the tests image depends on it.
func LoadFixtures(rt *Runtime) (core, tests *Image) {
	core = CoreImage()
	tests = TestsImage(core)
	rt.AddAssembly(CoreAssemblyPath, core)
	rt.AddAssembly(TestsAssemblyPath, tests)
	return core, tests
}

// CoreImage builds monort_managed: MonoRt.NativeObject, the base class of
// managed proxies for shared Go values. Its finalizer hands the ownership
// token in handle to the ReleaseHandle internal call.
func CoreImage() *Image {
	img := NewImage("monort_managed")
	native := img.AddClass("MonoRt", "NativeObject", nil)
	native.AddField("handle", IntPtr)
	release := native.AddInternalStaticMethod("ReleaseHandle", Void, []Type{IntPtr})
	native.SetFinalizer(func(c *Call) {
		h := c.This.IntPtr("handle")
		if h == 0 {
			return
		}
		c.Invoke(release, nil, h)
		c.This.SetIntPtr("handle", 0)
	})
	return img
}

// TestsImage builds tests_managed. core must be the image from CoreImage.
func TestsImage(core *Image) *Image {
	img := NewImage("tests_managed")
	native := core.Class("MonoRt", "NativeObject")

	vec := img.AddValueType("Tests", "Vector2f")
	vec.AddField("x", Single)
	vec.AddField("y", Single)

	color := img.AddEnum("Tests", "Color", Int32)

	wrapper := img.AddClass("Tests", "WrapperVector2f", native)
	wrapper.AddInternalConstructor([]Type{Single, Single})
	wrapper.AddInternalConstructor([]Type{ClassType(wrapper)})
	wrapper.AddMethod("Copy", ClassType(wrapper), nil, func(c *Call) {
		c.ReturnObject(c.New(wrapper, c.This))
	})

	addClassInstanceTest(img, vec, color, wrapper)
	addMyObject(img)
	addEcho(img, vec, color)
	addGrid(img)
	return img
}

func addClassInstanceTest(img *Image, vec, color, wrapper *Class) {
	cls := img.AddClass("", "ClassInstanceTest", nil)
	cls.AddField("someField", Int32)
	cls.AddField("_someProperty", Int32)
	cls.AddStaticField("instances", Int32)
	cls.AddStaticField("greeting", String)
	cls.AddStaticField("lastString", String)

	cls.AddStaticConstructor(func(c *Call) {
		c.rt.setStatic(c.domain, cls.Field("greeting"), c.NewString("hello"))
	})
	cls.AddConstructor(nil, func(c *Call) {
		c.This.SetInt32("someField", 12)
		c.This.SetInt32("_someProperty", 12)
		f := cls.Field("instances")
		n := c.rt.staticInt32(c.domain, f)
		c.rt.setStaticInt32(c.domain, f, n+1)
	})
	cls.AddProperty("someProperty", Int32,
		func(c *Call) { c.ReturnInt32(c.This.Int32("_someProperty")) },
		func(c *Call) { c.This.SetInt32("_someProperty", c.Int32(0)) },
	)

	cls.AddStaticMethod("FunctionWithIntParam", Int32, []Type{Int32}, func(c *Call) {
		c.ReturnInt32(c.Int32(0) + 1337)
	})
	cls.AddStaticMethod("VoidFunction", Void, []Type{Single, Int32, Single}, func(*Call) {})
	cls.AddStaticMethod("FunctionWithStringParam", Void, []Type{String}, func(c *Call) {
		c.rt.setStatic(c.domain, cls.Field("lastString"), c.Object(0))
	})
	cls.AddStaticMethod("StringReturnFunction", String, []Type{String}, func(c *Call) {
		c.ReturnString("The string value was: " + c.String(0))
	})
	cls.AddStaticMethod("ExceptionFunction", Void, nil, func(c *Call) {
		c.Throw("Hello exception")
	})
	cls.AddStaticMethod("ArgumentExceptionFunction", Int32, []Type{Int32}, func(c *Call) {
		c.ThrowNew(corlib.argument, "value out of range")
	})
	cls.AddStaticMethod("CreateStruct", Void, nil, func(c *Call) {
		v := Vector2f{X: 1, Y: 2}
		c.rt.box(c.domain, vec, unsafe.Pointer(&v))
	})
	cls.AddStaticMethod("NextColor", ClassType(color), []Type{ClassType(color)}, func(c *Call) {
		next := (c.Int32(0) + 1) % 3
		c.ReturnValue(unsafe.Pointer(&next))
	})

	cls.AddMethod("Method", Void, nil, func(*Call) {})
	cls.AddMethod("MethodWithParameter", Void, []Type{Int32}, func(c *Call) {
		c.This.SetInt32("someField", c.Int32(0))
	})
	cls.AddMethod("MethodWithParameterAndReturnValue", String, []Type{String, Int32}, func(c *Call) {
		c.ReturnString("Return Value: " + c.String(0))
	})
	cls.AddMethod("MethodPodAR", ClassType(vec), []Type{ClassType(vec)}, func(c *Call) {
		in := *(*Vector2f)(c.Value(0))
		out := Vector2f{X: in.X*in.Y - in.Y, Y: in.Y - 8}
		c.ReturnValue(unsafe.Pointer(&out))
	})
	cls.AddMethod("MethodPodARW", ClassType(wrapper), []Type{ClassType(wrapper)}, func(c *Call) {
		c.ReturnObject(c.New(wrapper, float32(55), float32(66)))
	})
	cls.AddMethod("Identity", ClassType(wrapper), []Type{ClassType(wrapper)}, func(c *Call) {
		c.ReturnObject(c.Object(0))
	})
}

func addMyObject(img *Image) {
	cls := img.AddClass("Tests", "MyObject", nil)
	create := cls.AddInternalMethod("CreateInternal", Void, []Type{Single, String})
	destroy := cls.AddInternalMethod("DestroyInternal", Void, nil)
	doStuff := cls.AddInternalMethod("DoStuff", Void, []Type{String})
	returnString := cls.AddInternalMethod("ReturnAString", String, []Type{String})

	cls.AddConstructor(nil, func(c *Call) {
		c.Invoke(create, c.This, float32(0), "")
	})
	cls.AddConstructor([]Type{Single, String}, func(c *Call) {
		c.Invoke(create, c.This, c.Float32(0), c.Object(1))
	})
	cls.SetFinalizer(func(c *Call) {
		c.Invoke(destroy, c.This)
	})
	cls.AddMethod("Test", String, []Type{String}, func(c *Call) {
		c.Invoke(doStuff, c.This, c.Object(0))
		if c.Failed() {
			return
		}
		ret := c.Invoke(returnString, c.This, c.Object(0))
		if c.Failed() {
			return
		}
		c.ReturnObject(ret)
	})
}

// addEcho defines Tests.Echo with an Identity overload per built-in type.
func addEcho(img *Image, vec, color *Class) {
	cls := img.AddClass("Tests", "Echo", nil)
	for _, t := range []Type{
		Bool, Char, SByte, Byte, Int16, UInt16, Int32, UInt32,
		Int64, UInt64, IntPtr, UIntPtr, Single, Double,
		ClassType(vec), ClassType(color),
	} {
		cls.AddStaticMethod("Identity", t, []Type{t}, func(c *Call) {
			c.ReturnValue(c.Value(0))
		})
	}
	cls.AddStaticMethod("Identity", String, []Type{String}, func(c *Call) {
		c.ReturnObject(c.Object(0))
	})
	cls.AddStaticMethod("Length", Int32, []Type{String}, func(c *Call) {
		if s := c.Object(0); s != nil {
			c.ReturnInt32(int32(len(s.chars)))
			return
		}
		c.ReturnInt32(0)
	})
}

// addGrid defines Tests.Grid, whose Item indexer doubles the index and
// remembers the last value stored.
func addGrid(img *Image) {
	cls := img.AddClass("Tests", "Grid", nil)
	cls.AddField("last", Int32)
	cls.AddConstructor(nil, func(*Call) {})
	cls.AddIndexer("Item", Int32, []Type{Int32},
		func(c *Call) { c.ReturnInt32(c.Int32(0) * 2) },
		func(c *Call) { c.This.SetInt32("last", c.Int32(1)) },
	)
}
