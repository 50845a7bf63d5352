package runtime

import (
	"reflect"

	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
)

// RegisterEnum pairs the named integer type T with the managed enum cls.
func RegisterEnum[T any](rt *Runtime, cls *Class) error {
	if err := enumClass(cls); err != nil {
		return err
	}
	return rt.registry.RegisterEnum(reflect.TypeFor[T](), cls.FullName())
}

func enumClass(cls *Class) error {
	if cls == nil {
		return errors.NilHandle(errors.PhaseRegister, "class")
	}
	if !cls.IsValueType() {
		return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			ManagedType(cls.FullName()).
			Detail("enum class must be a value type").
			Build()
	}
	return nil
}

// RegisterPOD pairs the plain-data struct T with the managed value type
// cls. Field count, order, kinds and offsets must match exactly.
//
//	type Vector2f struct{ X, Y float32 }
//	err := runtime.RegisterPOD[Vector2f](rt, vecClass)
func RegisterPOD[T any](rt *Runtime, cls *Class) error {
	if cls == nil {
		return errors.NilHandle(errors.PhaseRegister, "class")
	}
	return rt.registry.RegisterPOD(rt.api, reflect.TypeFor[T](), cls.ref)
}

// RegisterMapped pairs T with the managed value type cls through the
// plain-data layout L, converting with to and from.
func RegisterMapped[T, L any](rt *Runtime, cls *Class, to func(T) L, from func(L) T) error {
	if cls == nil {
		return errors.NilHandle(errors.PhaseRegister, "class")
	}
	if to == nil || from == nil {
		return errors.InvalidInput(errors.PhaseRegister, "mapped conversions cannot be nil")
	}
	return transcoder.RegisterMapped(rt.registry, rt.api, cls.ref, to, from)
}
