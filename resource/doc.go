// Package resource provides reference-counted ownership tokens for
// process-side values shared with managed code.
//
// A shared wrapper object is a managed proxy whose token field holds one
// of these tokens. The proxy's constructor acquires a reference, its
// finalizer releases one, and the Go value stays alive for as long as any
// proxy refers to it.
//
// # Token Table
//
// The UnifiedTable maps integer tokens to Go values:
//
//	table := resource.NewTable()
//
//	// Acquire a reference, get a token
//	token := table.Acquire(typeID, vec)
//
//	// Retrieve value by token
//	value, ok := table.Get(token)
//
//	// Drop one reference
//	table.Release(token)
//
// # Identity
//
// Acquiring the same pointer twice under one type ID returns the same token
// with a count of two, so every proxy for a Go value decodes back to the
// identical pointer. Observers see the second acquisition as EventRetained.
// Non-pointer values always get a fresh token.
//
// # Type Safety
//
// Each wrapper type gets a unique type ID:
//
//	value, ok := table.GetTyped(token, vectorTypeID) // ok
//	value, ok := table.GetTyped(token, meshTypeID)   // !ok
//
// # Observers
//
// Register observers to track token lifecycle events:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    if e.Type == resource.EventDropped {
//	        log.Printf("token %d dropped", e.Token)
//	    }
//	}))
//
// # Memory Management
//
// Values are released only when managed code calls back into the process
// from a finalizer. Values implementing Dropper are dropped when their last
// reference goes away, or on Close for whatever is still live.
package resource
