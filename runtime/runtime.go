package runtime

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/config"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/resource"
	"github.com/wippyai/mono-runtime/transcoder"
	"go.uber.org/zap"
)

// active guards the process-wide runtime session.
var active atomic.Bool

// Runtime is the process-wide embedding session. It owns the root domain,
// the converter registry and the internal call table.
type Runtime struct {
	api      monoruntime.API
	cfg      *config.Config
	registry *transcoder.Registry
	compiler *transcoder.Compiler
	calls    *InternalCalls
	root     *Domain
	current  *Domain
	domains  map[monoruntime.DomainRef]*Domain
	managed  *ManagedInterface
	mu       sync.Mutex
	closed   bool
}

// Init starts the managed runtime through api. Only one Runtime may be
// live per process; a second Init before Shutdown fails with
// already_initialized. A nil cfg uses config.Default.
func Init(api monoruntime.API, cfg *config.Config) (*Runtime, error) {
	if api == nil {
		return nil, errors.NilHandle(errors.PhaseInit, "runtime api")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !active.CompareAndSwap(false, true) {
		return nil, errors.AlreadyInitialized("runtime")
	}

	rootRef, err := api.Init(cfg.InitOptions())
	if err != nil || rootRef == nil {
		active.Store(false)
		return nil, errors.New(errors.PhaseInit, errors.KindNotInitialized).
			Cause(err).
			Detail("runtime failed to initialize root domain %q", cfg.RootDomain).
			Build()
	}

	table := resource.NewTable()
	table.Subscribe(resource.ObserverFunc(logTokenEvent))
	registry := transcoder.NewRegistry(table)
	rt := &Runtime{
		api:      api,
		cfg:      cfg,
		registry: registry,
		compiler: transcoder.NewCompiler(registry),
		calls:    newInternalCalls(),
		domains:  make(map[monoruntime.DomainRef]*Domain),
	}
	rt.root = rt.track(rootRef, cfg.RootDomain)
	rt.current = rt.root

	if err := rt.registerHandles(); err != nil {
		rt.Shutdown()
		return nil, err
	}

	Logger().Info("runtime initialized", zap.String("root_domain", cfg.RootDomain))
	return rt, nil
}

func logTokenEvent(e resource.Event) {
	Logger().Debug("ownership token",
		zap.Stringer("event", e.Type),
		zap.Uint32("token", uint32(e.Token)),
		zap.Int32("refs", e.Refs))
}

// Shutdown tears the runtime down. Every domain and handle obtained from
// it is invalid afterwards. Calling Shutdown twice is a no-op.
func (rt *Runtime) Shutdown() {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	domains := rt.domains
	rt.domains = nil
	rt.mu.Unlock()

	rt.api.Cleanup(rt.root.ref)
	for _, d := range domains {
		d.invalidate()
	}
	if err := rt.registry.Close(); err != nil {
		Logger().Warn("closing converter registry", zap.Error(err))
	}
	active.Store(false)
	Logger().Info("runtime shut down")
}

// API returns the embedding backend.
func (rt *Runtime) API() monoruntime.API {
	return rt.api
}

// Config returns the configuration the runtime was started with.
func (rt *Runtime) Config() *config.Config {
	return rt.cfg
}

// Registry returns the converter registry used for every call.
func (rt *Runtime) Registry() *transcoder.Registry {
	return rt.registry
}

// RootDomain returns the domain created by Init.
func (rt *Runtime) RootDomain() *Domain {
	return rt.root
}

// CurrentDomain returns the domain calls are executing in.
func (rt *Runtime) CurrentDomain() *Domain {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.current
}

// CreateDomain creates a child domain. An empty name gets a generated
// unique one. The current domain is not changed.
func (rt *Runtime) CreateDomain(name string) (*Domain, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	if name == "" {
		name = "domain-" + uuid.NewString()
	}
	ref := rt.api.CreateDomain(name)
	if ref == nil {
		return nil, errors.New(errors.PhaseInit, errors.KindNilHandle).
			Path(name).
			Detail("runtime refused to create domain").
			Build()
	}
	Logger().Debug("domain created", zap.String("domain", name))
	return rt.track(ref, name), nil
}

func (rt *Runtime) track(ref monoruntime.DomainRef, name string) *Domain {
	d := &Domain{
		rt:         rt,
		ref:        ref,
		name:       name,
		assemblies: make(map[string]*Assembly),
	}
	rt.mu.Lock()
	rt.domains[ref] = d
	rt.mu.Unlock()
	return d
}

// domainFor returns the wrapper for a domain handle handed back by the
// backend, falling back to the current domain.
func (rt *Runtime) domainFor(ref monoruntime.DomainRef) *Domain {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if d, ok := rt.domains[ref]; ok {
		return d
	}
	return rt.current
}

func (rt *Runtime) forget(d *Domain) {
	rt.mu.Lock()
	delete(rt.domains, d.ref)
	if rt.current == d {
		rt.current = rt.root
	}
	rt.mu.Unlock()
}

// enter makes d the current domain.
func (rt *Runtime) enter(d *Domain) error {
	if err := d.check(); err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.current == d {
		return nil
	}
	if !rt.api.SetDomain(d.ref) {
		return errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Path(d.name).
			Detail("cannot switch to domain").
			Build()
	}
	rt.current = d
	return nil
}

// nativeContext is the marshaling context for internal calls, which run in
// whatever domain is current.
func (rt *Runtime) nativeContext() *transcoder.Context {
	return rt.CurrentDomain().context()
}

func (rt *Runtime) check() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return errors.NotInitialized(errors.PhaseInit, "runtime")
	}
	return nil
}

// registerHandles makes *Object and *String usable in bound signatures.
// Both pass as the raw object reference.
func (rt *Runtime) registerHandles() error {
	obj := transcoder.NewHandleConverter(reflect.TypeFor[*Object](), monoruntime.TypeObject, "object", transcoder.HandleFuncs{
		Wrap: func(c *transcoder.Context, ref monoruntime.ObjectRef) (reflect.Value, error) {
			return reflect.ValueOf(rt.wrapObject(rt.domainFor(c.Domain), ref)), nil
		},
		Unwrap: func(v reflect.Value) (monoruntime.ObjectRef, error) {
			return v.Interface().(*Object).handle()
		},
	})
	str := transcoder.NewHandleConverter(reflect.TypeFor[*String](), monoruntime.TypeString, "string", transcoder.HandleFuncs{
		Wrap: func(c *transcoder.Context, ref monoruntime.ObjectRef) (reflect.Value, error) {
			return reflect.ValueOf(&String{domain: rt.domainFor(c.Domain), ref: ref}), nil
		},
		Unwrap: func(v reflect.Value) (monoruntime.ObjectRef, error) {
			s := v.Interface().(*String)
			if s.ref == nil {
				return nil, errors.NilHandle(errors.PhaseEncode, "string")
			}
			if err := s.domain.check(); err != nil {
				return nil, err
			}
			return s.ref, nil
		},
	})
	for _, conv := range []transcoder.Converter{obj, str} {
		if err := rt.registry.Register(conv); err != nil {
			return err
		}
	}
	return nil
}
