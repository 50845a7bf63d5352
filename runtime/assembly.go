package runtime

import (
	"strings"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
)

// Assembly is a loaded assembly within a domain.
type Assembly struct {
	domain *Domain
	ref    monoruntime.AssemblyRef
	image  monoruntime.ImageRef
	name   string
	path   string
}

// Name returns the assembly's simple name.
func (a *Assembly) Name() string { return a.name }

// Path returns the path the assembly was opened from.
func (a *Assembly) Path() string { return a.path }

// Domain returns the domain the assembly was loaded into.
func (a *Assembly) Domain() *Domain { return a.domain }

// Ref returns the raw assembly handle.
func (a *Assembly) Ref() monoruntime.AssemblyRef { return a.ref }

// Image returns the raw metadata image handle.
func (a *Assembly) Image() monoruntime.ImageRef { return a.image }

// Class looks a class up by full name. The namespace is everything before
// the last dot; a name without a dot is in the global namespace.
func (a *Assembly) Class(fullName string) (*Class, error) {
	ns, name := splitName(fullName)
	return a.ClassIn(ns, name)
}

// ClassIn looks a class up by namespace and name.
func (a *Assembly) ClassIn(namespace, name string) (*Class, error) {
	if err := a.domain.check(); err != nil {
		return nil, err
	}
	ref := a.domain.rt.api.ClassFromName(a.image, namespace, name)
	if ref == nil {
		return nil, errors.NotFound(errors.PhaseLookup, "class", joinName(namespace, name), a.name)
	}
	return a.domain.rt.wrapClass(a.domain, ref), nil
}

// NewInstance allocates cls and runs its parameterless constructor.
func (a *Assembly) NewInstance(cls *Class) (*Object, error) {
	return cls.New()
}

func splitName(full string) (namespace, name string) {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

func joinName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}
