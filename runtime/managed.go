package runtime

import (
	"reflect"

	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/resource"
	"go.uber.org/zap"
)

// Names in the core managed assembly.
const (
	NativeObjectClass = "MonoRt.NativeObject"
	NativeObjectField = "handle"
	releaseHandle     = NativeObjectClass + "::ReleaseHandle"
)

// ManagedInterface connects the runtime to the core managed assembly. It
// owns the base class of shared wrapper proxies and the internal call
// their finalizers use to drop ownership tokens.
type ManagedInterface struct {
	rt       *Runtime
	assembly *Assembly
	base     *Class
	token    *Field
}

// InitManagedInterface locates NativeObjectClass in asm and registers its
// ReleaseHandle internal call. It must run once, before managed code
// creates any proxy.
func (rt *Runtime) InitManagedInterface(asm *Assembly) (*ManagedInterface, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	rt.mu.Lock()
	initialized := rt.managed != nil
	rt.mu.Unlock()
	if initialized {
		return nil, errors.AlreadyInitialized("managed interface")
	}

	base, err := asm.Class(NativeObjectClass)
	if err != nil {
		return nil, err
	}
	token, err := base.Field(NativeObjectField)
	if err != nil {
		return nil, err
	}
	if token.IsStatic() {
		return nil, errors.New(errors.PhaseLookup, errors.KindTypeMismatch).
			Path(token.FullName()).
			Detail("token field must be an instance field").
			Build()
	}

	err = rt.AddInternalCall(releaseHandle, func(tok uintptr) {
		if !rt.registry.Release(resource.Token(tok)) {
			Logger().Debug("release of unknown token", zap.Uint64("token", uint64(tok)))
		}
	})
	if err != nil {
		return nil, err
	}

	mi := &ManagedInterface{rt: rt, assembly: asm, base: base, token: token}
	rt.mu.Lock()
	rt.managed = mi
	rt.mu.Unlock()

	Logger().Debug("managed interface initialized", zap.String("assembly", asm.Name()))
	return mi, nil
}

// ManagedInterface returns the interface set up by InitManagedInterface,
// or nil.
func (rt *Runtime) ManagedInterface() *ManagedInterface {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.managed
}

// Assembly returns the core managed assembly.
func (mi *ManagedInterface) Assembly() *Assembly { return mi.assembly }

// Base returns the proxy base class.
func (mi *ManagedInterface) Base() *Class { return mi.base }

// Live returns the number of ownership tokens currently held by proxies.
func (mi *ManagedInterface) Live() int {
	return mi.rt.registry.Table().Len()
}

// Bind attaches value to the proxy this, typically from an internal call
// implementing the proxy's constructor. value's type must have been
// registered with RegisterWrapper.
func (mi *ManagedInterface) Bind(this *Object, value any) error {
	ref, err := this.handle()
	if err != nil {
		return err
	}
	return mi.rt.registry.Bind(this.domain.context(), ref, value)
}

// Share makes the proxy dst refer to the Go value src is bound to, for
// example from a copy constructor. Both must be instances of the same
// registered wrapper class.
func (mi *ManagedInterface) Share(dst, src *Object) error {
	if dst == nil || src == nil {
		return errors.NilHandle(errors.PhaseBind, "object")
	}
	to, err := dst.handle()
	if err != nil {
		return err
	}
	from, err := src.handle()
	if err != nil {
		return err
	}
	return mi.rt.registry.Share(dst.domain.context(), to, from)
}

// RegisterWrapper pairs Go type T with the proxy class cls, which must
// derive from the proxy base class. Values of T then marshal as proxies
// sharing the Go value by ownership token.
func RegisterWrapper[T any](mi *ManagedInterface, cls *Class) error {
	if mi == nil {
		return errors.NotInitialized(errors.PhaseRegister, "managed interface")
	}
	if cls == nil {
		return errors.NilHandle(errors.PhaseRegister, "class")
	}
	t := reflect.TypeFor[T]()
	if !cls.IsSubclassOf(mi.base) {
		return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			GoType(t.String()).
			ManagedType(cls.FullName()).
			Detail("class does not derive from %s", NativeObjectClass).
			Build()
	}
	return mi.rt.registry.RegisterWrapper(mi.rt.api, t, cls.ref, mi.token.ref)
}
