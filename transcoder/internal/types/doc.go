// Package types defines the marshaling categories shared by the transcoder.
//
// Kind classifies every Go type the transcoder can move across the managed
// boundary. Value kinds (primitives, enums and plain-data aggregates) are
// passed by the address of their storage; reference kinds (strings, shared
// wrappers and objects) are passed as the object handle.
//
// This package is internal to the transcoder.
package types
