// Package layout flattens Go plain-data structs and compares them with the
// field layout of a managed value type.
//
// A plain-data aggregate is marshaled as a raw byte copy, so the Go struct
// and the managed value type must agree on field count, field order,
// primitive kinds, offsets and total size. Any difference is reported when
// the pair is registered rather than on first use.
//
// # Usage
//
//	calc := layout.NewCalculator()
//	l, err := calc.Of(reflect.TypeFor[Vec2]())
//	if diff := layout.Compare(l, managedFields, managedSize); diff != "" {
//	    // registration fails with layout_mismatch
//	}
//
// This package is internal to the transcoder.
package layout
