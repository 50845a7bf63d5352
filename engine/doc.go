// Package engine binds the Mono shared runtime library without cgo.
//
// The library is opened with purego at run time and each mono_* entry point
// is registered as a Go function value. Mono implements monoruntime.API, so
// the runtime package can drive either this backend or the in-process
// monotest runtime.
//
// # Loading
//
//	eng, err := engine.Open(config.DefaultLibrary())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Bare library names are searched in the working directory, next to the
// executable and in a sibling lib directory before the system loader is
// asked. Absolute paths are used as given. mono_set_pending_exception is
// optional; every other symbol must be present.
//
// # Argument Arrays
//
// Invoke passes the slot array straight to mono_runtime_invoke. Value slots
// point into Go memory, so the array and each slot are pinned with a
// runtime.Pinner for the duration of the call.
//
// # Internal Calls
//
// AddInternalCall builds a trampoline per registration: reflect.FuncOf
// derives the native function type from the parameter type codes and
// purego.NewCallback turns a reflect.MakeFunc implementation into a C
// function pointer for mono_add_internal_call.
//
//	Managed type          Native argument     Slot passed on
//	────────────────────────────────────────────────────────
//	bool, ints, char      uintptr             address of spilled copy
//	single, double        float32, float64    address of spilled copy
//	string, class         unsafe.Pointer      the object handle
//	ref value type        unsafe.Pointer      the address as given
//
// Results are returned in the integer register. Floating point and value
// type results are rejected at registration.
//
// A failing internal call is logged and, when the runtime supports it,
// raised as a pending System.Exception in the calling managed frame.
// Panics never unwind into native frames.
//
// # Thread Safety
//
// Calls must come from threads attached to the runtime. Registration and
// teardown are process-wide and must be serialized by the caller.
package engine
