// Package monoruntime provides a Go object wrapper over the Mono embedding API.
//
// Domains, assemblies, classes, instances, methods, fields, properties and
// strings are exposed as typed handles over opaque runtime pointers, and a
// reflection-based binding layer generates the glue for calls in both
// directions: Go calling managed methods, and managed code calling Go
// functions registered as internal calls.
//
// # Architecture Overview
//
//	monoruntime/        Root package: the API embedding surface and handle types
//	├── runtime/        Handle wrappers, invocation, internal calls, managed interface
//	├── transcoder/     Converters, registry and signature marshaling
//	├── resource/       Reference-counted ownership tokens for shared wrapper objects
//	├── engine/         libmono backend (purego, no cgo)
//	├── monotest/       In-process reference runtime for tests
//	├── config/         YAML configuration
//	└── errors/         Structured error types
//
// # Quick Start
//
//	eng, err := engine.Open(cfg.Library)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := runtime.Init(eng, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	dom, err := rt.CreateDomain("scripts")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dom.Close()
//
//	asm, err := dom.Assembly("tests_managed.dll")
//	cls, err := asm.Class("ClassInstanceTest")
//	add, err := runtime.BindStatic[func(int32) (int32, error)](cls, "FunctionWithIntParam")
//	sum, err := add(1000)
//
// # Argument Convention
//
// The runtime's invoke entry point takes an untyped argument array. Value
// types (primitives and plain-data structs) are passed by address; strings
// and objects are passed as the handle itself. The same convention is used
// for field storage and for the arguments of internal calls.
//
// # Thread Safety
//
// All calls are synchronous on the calling goroutine. Init, Shutdown, domain
// teardown and internal call registration are process-wide and must be
// serialized by the caller. Managed handles are not safe to share between
// goroutines without external synchronization.
package monoruntime
