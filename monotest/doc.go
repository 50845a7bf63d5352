// Package monotest provides an in-process implementation of the
// monoruntime.API embedding surface for tests.
//
// Assemblies are built in Go as images of classes whose method bodies are
// Go closures over a Call. Extern methods dispatch to registered internal
// calls exactly as the embedded runtime would, so the whole binding stack
// can be exercised without loading libmono:
//
//	rt := monotest.New()
//	monotest.LoadFixtures(rt)
//	root, _ := rt.Init(monoruntime.InitOptions{})
//	asm := rt.OpenAssembly(root, monotest.TestsAssemblyPath)
//
// Objects stay alive until Collect, which finalizes everything not reachable
// from a GC handle or a static field. Unloading a domain finalizes the
// objects allocated in it. Using a collected object panics.
package monotest
