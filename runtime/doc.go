// Package runtime provides the high-level API for embedding the Mono
// managed runtime.
//
// # Quick Start
//
//	eng, err := engine.Open(config.DefaultLibrary())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := runtime.Init(eng, config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	asm, err := rt.RootDomain().Assembly("tests_managed.dll")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cls, err := asm.Class("ClassInstanceTest")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	add, err := runtime.BindStatic[func(int32) (int32, error)](cls, "FunctionWithIntParam")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, err := add(1000)
//
// Only one Runtime may exist per process. Init fails with
// already_initialized until Shutdown has run.
//
// # Calling Managed Code
//
// Typed calls bind a Go function type to a managed method once and reuse
// the resolved method on every call:
//
//	BindStatic[F](cls, name)   - static method thunk
//	BindMethod[F](obj, name)   - instance method thunk bound to obj
//	cls.Bind(name, &fn)        - same as BindStatic, into a variable
//	obj.Bind(name, &fn)        - same as BindMethod, into a variable
//
// The function type must return error last, optionally preceded by one
// value. The method is looked up by descriptor first, built from the
// managed names of the parameter converters ("Name(string,int)"), then by
// name and parameter count. A managed exception is returned as an error of
// kind managed_exception whose cause is *errors.ManagedException; the
// result is not decoded.
//
// Method.Invoke and Object.Invoke take untyped arguments and decode the
// result by its managed type.
//
// # Fields and Properties
//
//	GetFieldValue[T](obj, name)        SetFieldValue(obj, name, v)
//	GetStaticFieldValue[T](cls, name)  SetStaticFieldValue(cls, name, v)
//	GetPropertyValue[T](obj, name)     SetPropertyValue(obj, name, v)
//
// # Types
//
// Primitives, strings and transcoder.Char work without registration.
// Enums, plain-data structs and shared wrappers are registered with
// RegisterEnum, RegisterPOD (or RegisterMapped) and RegisterWrapper. Shared
// wrappers need the managed interface from InitManagedInterface, which
// wires proxy finalizers to the ownership-token table.
//
// # Internal Calls
//
// Go functions become managed extern methods with AddInternalCall and
// AddInternalMethod, or in bulk with RegisterHost:
//
//	rt.AddInternalMethod("Tests.MyObject::DoStuff", func(this *runtime.Object, s string) error {
//	    ...
//	})
//
// A returned error or a panic raises a managed exception in the calling
// managed frame. Registering a name twice fails.
//
// # Domains
//
// CreateDomain makes a child domain; Domain.Close unloads it and
// invalidates everything obtained through it. Calls switch to the domain
// of the class being called.
package runtime
