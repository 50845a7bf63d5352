// Package transcoder marshals Go values to and from the managed runtime's
// argument-array calling convention.
//
// The runtime's invoke entry point takes an untyped array of slots. Value
// types are passed by the address of their storage; strings and objects are
// passed as the object handle itself:
//
//	┌────────────────────────────────────────────────────────────┐
//	│ Go values ←→ [Signature + Converters] ←→ []unsafe.Pointer │
//	└────────────────────────────────────────────────────────────┘
//
// # Categories
//
//	Category     Go type                      Slot
//	──────────────────────────────────────────────────────────────
//	primitive    bool, intN, uintN, floatN    address of storage
//	char         transcoder.Char              address of storage
//	enum         registered named integer     address of storage
//	pod          registered plain struct      address of storage
//	string       string                       managed string handle
//	wrapper      registered shared Go value   proxy object handle
//	object       registered handle type       object handle
//
// Go int, uint and uintptr map to the managed native integers.
//
// # Key Types
//
//	Registry   - Go type → Converter table, plus ownership tokens
//	Compiler   - Go func type → cached Signature
//	Signature  - per-position converters, descriptor, result decoding
//	Frame      - pooled argument array and scratch storage for one call
//	Adapter    - Go func exposed to managed code as an internal call
//
// # Calling Flow
//
//  1. Compiler.CompileCall(funcType) → Signature
//  2. Signature.EncodeArgs(ctx, args, frame) fills frame.Args
//  3. The runtime invokes the method
//  4. Signature.DecodeResult(ctx, ret) unboxes value results
//
// # Strings
//
// Go text is converted to UTF-16 on the way in. Invalid UTF-8 is rejected
// with invalid_utf8. On the way out unpaired surrogates are replaced with
// U+FFFD. A null string reference decodes as "".
//
// # Plain-Data Structs
//
// A struct registered with RegisterPOD is copied byte for byte, so its
// field count, order, kinds, offsets and size must match the managed value
// type. Registration fails with layout_mismatch otherwise. RegisterMapped
// lets a Go type with a different shape travel through such a layout type.
//
// # Shared Wrappers
//
// A wrapper type is carried by a managed proxy object whose token field
// holds a reference-counted ownership token. Encoding allocates a proxy
// and acquires a token; decoding returns the identical Go value. The
// proxy's finalizer releases the token through Registry.Release.
//
// # Thread Safety
//
// Registry, Compiler and Signature are safe for concurrent use. A Frame
// belongs to one call.
package transcoder
