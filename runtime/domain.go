package runtime

import (
	"sync"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
	"go.uber.org/zap"
)

// Domain is an isolated execution context. Assemblies, classes and objects
// obtained through a domain become invalid when it is closed.
type Domain struct {
	rt         *Runtime
	ref        monoruntime.DomainRef
	assemblies map[string]*Assembly
	name       string
	mu         sync.Mutex
	closed     bool
}

// Name returns the friendly name the domain was created with.
func (d *Domain) Name() string {
	return d.name
}

// Ref returns the raw domain handle, or nil once the domain is closed.
func (d *Domain) Ref() monoruntime.DomainRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ref
}

// Runtime returns the owning runtime.
func (d *Domain) Runtime() *Runtime {
	return d.rt
}

// IsRoot reports whether d is the root domain.
func (d *Domain) IsRoot() bool {
	return d == d.rt.root
}

// Activate makes d the current domain for subsequent calls.
func (d *Domain) Activate() error {
	return d.rt.enter(d)
}

// Assembly opens the assembly at path, or returns the one already opened
// under that path. Relative paths are resolved against the configured
// assembly search paths.
func (d *Domain) Assembly(path string) (*Assembly, error) {
	if err := d.check(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if asm, ok := d.assemblies[path]; ok {
		d.mu.Unlock()
		return asm, nil
	}
	d.mu.Unlock()

	resolved := d.rt.cfg.ResolveAssembly(path)
	ref := d.rt.api.OpenAssembly(d.ref, resolved)
	if ref == nil {
		Logger().Debug("assembly not found",
			zap.String("domain", d.name),
			zap.String("path", resolved))
		return nil, errors.AssemblyNotFound(path)
	}

	asm := &Assembly{
		domain: d,
		ref:    ref,
		image:  d.rt.api.AssemblyImage(ref),
		name:   d.rt.api.AssemblyName(ref),
		path:   resolved,
	}

	d.mu.Lock()
	d.assemblies[path] = asm
	d.mu.Unlock()

	Logger().Debug("assembly loaded",
		zap.String("domain", d.name),
		zap.String("assembly", asm.name),
		zap.String("path", resolved))
	return asm, nil
}

// Assemblies returns the assemblies opened in this domain.
func (d *Domain) Assemblies() []*Assembly {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Assembly, 0, len(d.assemblies))
	for _, a := range d.assemblies {
		out = append(out, a)
	}
	return out
}

// Corlib returns the core library image as an assembly-less class source.
func (d *Domain) Corlib() *Assembly {
	return &Assembly{
		domain: d,
		image:  d.rt.api.Corlib(),
		name:   "mscorlib",
	}
}

// NewString allocates a managed string in this domain.
func (d *Domain) NewString(text string) (*String, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	s := &String{domain: d}
	if err := s.Assign(text); err != nil {
		return nil, err
	}
	return s, nil
}

// Close unloads the domain. The root domain is released by
// Runtime.Shutdown and cannot be closed. Closing twice is a no-op.
func (d *Domain) Close() error {
	if d.IsRoot() {
		return errors.InvalidInput(errors.PhaseInit, "the root domain is released by Shutdown")
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	ref := d.ref
	d.mu.Unlock()

	d.rt.api.UnloadDomain(ref)
	d.rt.forget(d)
	d.invalidate()

	Logger().Debug("domain unloaded", zap.String("domain", d.name))
	return nil
}

func (d *Domain) invalidate() {
	d.mu.Lock()
	d.closed = true
	d.ref = nil
	d.assemblies = make(map[string]*Assembly)
	d.mu.Unlock()
}

// live reports whether handles obtained through d may still be used.
func (d *Domain) live() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

func (d *Domain) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New(errors.PhaseLookup, errors.KindNilHandle).
			Path(d.name).
			Detail("domain has been unloaded").
			Build()
	}
	return nil
}

func (d *Domain) context() *transcoder.Context {
	return &transcoder.Context{API: d.rt.api, Domain: d.ref}
}
