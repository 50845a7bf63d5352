package monotest

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
)

// Domain is an application domain: a unit of assembly loading, static
// storage and unloading.
type Domain struct {
	name        string
	assemblies  map[string]*Assembly
	statics     map[*Field]*Object
	initialized map[*Class]bool
	unloaded    bool
}

// Name returns the friendly name of the domain.
func (d *Domain) Name() string { return d.name }

// Assembly is an image loaded into a domain.
type Assembly struct {
	image  *Image
	domain *Domain
	path   string
}

// Runtime is an in-process implementation of monoruntime.API. Assemblies
// are registered up front as images built in Go; objects live on a heap
// that is only collected by an explicit Collect.
//
// A Runtime is not safe for concurrent use.
type Runtime struct {
	images      map[string]*Image
	icalls      map[string]*monoruntime.NativeCall
	handles     map[monoruntime.GCHandle]*Object
	root        *Domain
	current     *Domain
	domains     []*Domain
	heap        []*Object
	nextHandle  monoruntime.GCHandle
	finalized   int
	initialized bool
	opts        monoruntime.InitOptions
}

var _ monoruntime.API = (*Runtime)(nil)

// New creates a runtime with no assemblies.
func New() *Runtime {
	return &Runtime{
		images:  make(map[string]*Image),
		icalls:  make(map[string]*monoruntime.NativeCall),
		handles: make(map[monoruntime.GCHandle]*Object),
	}
}

// AddAssembly makes img loadable under path. OpenAssembly also matches the
// base name of path.
func (rt *Runtime) AddAssembly(path string, img *Image) {
	rt.images[path] = img
}

// Options returns the options passed to Init.
func (rt *Runtime) Options() monoruntime.InitOptions { return rt.opts }

// Initialized reports whether Init has run without a matching Cleanup.
func (rt *Runtime) Initialized() bool { return rt.initialized }

// Live returns the number of objects that have not been collected.
func (rt *Runtime) Live() int {
	n := 0
	for _, o := range rt.heap {
		if !o.dead {
			n++
		}
	}
	return n
}

// Finalized returns the number of finalizers run since Init.
func (rt *Runtime) Finalized() int { return rt.finalized }

// InternalCalls returns the registered internal call names, sorted.
func (rt *Runtime) InternalCalls() []string {
	names := make([]string, 0, len(rt.icalls))
	for n := range rt.icalls {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Current returns the current domain.
func (rt *Runtime) Current() *Domain { return rt.current }

func (rt *Runtime) Init(opts monoruntime.InitOptions) (monoruntime.DomainRef, error) {
	if rt.initialized {
		return nil, errors.AlreadyInitialized("monotest runtime")
	}
	if opts.RootDomain == "" {
		opts.RootDomain = "mono"
	}
	rt.opts = opts
	rt.root = rt.newDomain(opts.RootDomain)
	rt.current = rt.root
	rt.initialized = true
	return domainRef(rt.root), nil
}

func (rt *Runtime) Cleanup(root monoruntime.DomainRef) {
	if !rt.initialized || toDomain(root) != rt.root {
		return
	}
	rt.finalizeAll(func(*Object) bool { return true })
	for _, d := range rt.domains {
		d.unloaded = true
	}
	rt.heap = nil
	rt.domains = nil
	rt.root = nil
	rt.current = nil
	clear(rt.handles)
	rt.initialized = false
}

func (rt *Runtime) newDomain(name string) *Domain {
	d := &Domain{
		name:        name,
		assemblies:  make(map[string]*Assembly),
		statics:     make(map[*Field]*Object),
		initialized: make(map[*Class]bool),
	}
	rt.domains = append(rt.domains, d)
	return d
}

func (rt *Runtime) domainOr(d monoruntime.DomainRef) *Domain {
	if d == nil {
		return rt.current
	}
	return toDomain(d)
}

func (rt *Runtime) RootDomain() monoruntime.DomainRef { return domainRef(rt.root) }

func (rt *Runtime) CreateDomain(name string) monoruntime.DomainRef {
	if !rt.initialized {
		return nil
	}
	return domainRef(rt.newDomain(name))
}

func (rt *Runtime) SetDomain(d monoruntime.DomainRef) bool {
	dom := toDomain(d)
	if dom == nil || dom.unloaded {
		return false
	}
	rt.current = dom
	return true
}

// UnloadDomain runs the finalizers of every object in d and releases its
// assemblies and statics. The root domain cannot be unloaded.
func (rt *Runtime) UnloadDomain(d monoruntime.DomainRef) {
	dom := toDomain(d)
	if dom == nil || dom == rt.root || dom.unloaded {
		return
	}
	rt.finalizeAll(func(o *Object) bool { return o.domain == dom })
	dom.unloaded = true
	clear(dom.assemblies)
	clear(dom.statics)
	rt.domains = slices.DeleteFunc(rt.domains, func(x *Domain) bool { return x == dom })
	if rt.current == dom {
		rt.current = rt.root
	}
}

func (rt *Runtime) OpenAssembly(d monoruntime.DomainRef, path string) monoruntime.AssemblyRef {
	dom := rt.domainOr(d)
	if dom == nil || dom.unloaded {
		return nil
	}
	if a, ok := dom.assemblies[path]; ok {
		return assemblyRef(a)
	}
	img, ok := rt.images[path]
	if !ok {
		base := filepath.Base(path)
		for p, candidate := range rt.images {
			if filepath.Base(p) == base {
				img, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return nil
	}
	a := &Assembly{image: img, domain: dom, path: path}
	dom.assemblies[path] = a
	return assemblyRef(a)
}

func (rt *Runtime) AssemblyImage(a monoruntime.AssemblyRef) monoruntime.ImageRef {
	return imageRef(toAssembly(a).image)
}

func (rt *Runtime) AssemblyName(a monoruntime.AssemblyRef) string {
	return toAssembly(a).image.Name
}

func (rt *Runtime) Corlib() monoruntime.ImageRef { return imageRef(corlib.image) }

func (rt *Runtime) ClassFromName(img monoruntime.ImageRef, namespace, name string) monoruntime.ClassRef {
	return classRef(toImage(img).Class(namespace, name))
}

func (rt *Runtime) ClassName(c monoruntime.ClassRef) string      { return toClass(c).Name }
func (rt *Runtime) ClassNamespace(c monoruntime.ClassRef) string { return toClass(c).Namespace }

func (rt *Runtime) ClassParent(c monoruntime.ClassRef) monoruntime.ClassRef {
	return classRef(toClass(c).parent)
}

func (rt *Runtime) ClassIsValueType(c monoruntime.ClassRef) bool { return toClass(c).valueType }

func (rt *Runtime) ClassValueSize(c monoruntime.ClassRef) uintptr { return toClass(c).ValueSize() }

func (rt *Runtime) ClassFields(c monoruntime.ClassRef) []monoruntime.FieldRef {
	cls := toClass(c)
	cls.layout()
	out := make([]monoruntime.FieldRef, len(cls.fields))
	for i, f := range cls.fields {
		out[i] = fieldRef(f)
	}
	return out
}

func (rt *Runtime) ClassProperties(c monoruntime.ClassRef) []monoruntime.PropertyRef {
	cls := toClass(c)
	out := make([]monoruntime.PropertyRef, len(cls.properties))
	for i, p := range cls.properties {
		out[i] = propertyRef(p)
	}
	return out
}

func (rt *Runtime) ClassMethods(c monoruntime.ClassRef) []monoruntime.MethodRef {
	cls := toClass(c)
	out := make([]monoruntime.MethodRef, len(cls.methods))
	for i, m := range cls.methods {
		out[i] = methodRef(m)
	}
	return out
}

func (rt *Runtime) ClassField(c monoruntime.ClassRef, name string) monoruntime.FieldRef {
	cls := toClass(c)
	cls.layout()
	return fieldRef(cls.Field(name))
}

func (rt *Runtime) ClassProperty(c monoruntime.ClassRef, name string) monoruntime.PropertyRef {
	return propertyRef(toClass(c).Property(name))
}

func (rt *Runtime) ClassMethod(c monoruntime.ClassRef, name string, argc int) monoruntime.MethodRef {
	return methodRef(toClass(c).Method(name, argc))
}

func (rt *Runtime) FindMethod(c monoruntime.ClassRef, desc string) monoruntime.MethodRef {
	return methodRef(toClass(c).findDesc(desc))
}

func (rt *Runtime) MethodName(m monoruntime.MethodRef) string { return toMethod(m).Name }

func (rt *Runtime) MethodClass(m monoruntime.MethodRef) monoruntime.ClassRef {
	return classRef(toMethod(m).class)
}

func (rt *Runtime) MethodSignature(m monoruntime.MethodRef) monoruntime.Signature {
	meth := toMethod(m)
	sig := monoruntime.Signature{
		Params: make([]monoruntime.TypeInfo, len(meth.Params)),
		Return: meth.Return.info(),
		Static: meth.Static,
	}
	for i, p := range meth.Params {
		sig.Params[i] = p.info()
	}
	return sig
}

func (rt *Runtime) FieldName(f monoruntime.FieldRef) string   { return toField(f).Name }
func (rt *Runtime) FieldIsStatic(f monoruntime.FieldRef) bool { return toField(f).Static }

func (rt *Runtime) FieldType(f monoruntime.FieldRef) monoruntime.TypeInfo {
	return toField(f).Type.info()
}

func (rt *Runtime) FieldOffset(f monoruntime.FieldRef) uintptr {
	fld := toField(f)
	fld.owner.layout()
	return fld.offset
}

func (rt *Runtime) GetFieldValue(obj monoruntime.ObjectRef, f monoruntime.FieldRef, out unsafe.Pointer) {
	toObject(obj).load(rt.instanceField(obj, f), out)
}

func (rt *Runtime) SetFieldValue(obj monoruntime.ObjectRef, f monoruntime.FieldRef, value unsafe.Pointer) {
	toObject(obj).store(rt.instanceField(obj, f), value)
}

func (rt *Runtime) instanceField(obj monoruntime.ObjectRef, f monoruntime.FieldRef) *Field {
	o, fld := toObject(obj), toField(f)
	if o == nil {
		panic("monotest: field access on null object")
	}
	if fld.Static || !o.class.IsSubclassOf(fld.owner) {
		panic(fmt.Sprintf("monotest: field %s is not an instance field of %s", fld.Name, o.class.FullName()))
	}
	fld.owner.layout()
	return fld
}

func (rt *Runtime) GetStaticFieldValue(d monoruntime.DomainRef, f monoruntime.FieldRef, out unsafe.Pointer) {
	fld := toField(f)
	rt.staticCell(rt.domainOr(d), fld).loadAt(fld.Type, 0, 0, out)
}

func (rt *Runtime) SetStaticFieldValue(d monoruntime.DomainRef, f monoruntime.FieldRef, value unsafe.Pointer) {
	fld := toField(f)
	rt.staticCell(rt.domainOr(d), fld).storeAt(fld.Type, 0, 0, value)
}

// staticCell returns the per-domain storage of a static field: an object
// with a single slot, so the collector can trace static references.
func (rt *Runtime) staticCell(d *Domain, f *Field) *Object {
	if !f.Static {
		panic(fmt.Sprintf("monotest: field %s is not static", f.Name))
	}
	rt.runTypeInitializer(d, f.owner)
	cell, ok := d.statics[f]
	if !ok {
		cell = &Object{class: f.owner, domain: d}
		if f.Type.IsReference() {
			cell.refs = make([]*Object, 1)
		} else {
			cell.data = make([]uint64, (f.Type.size()+7)/8+1)
		}
		d.statics[f] = cell
	}
	return cell
}

func (rt *Runtime) setStatic(d *Domain, f *Field, o *Object) {
	p := unsafe.Pointer(o)
	rt.staticCell(d, f).storeAt(f.Type, 0, 0, unsafe.Pointer(&p))
}

func (rt *Runtime) staticInt32(d *Domain, f *Field) int32 {
	var v int32
	rt.staticCell(d, f).loadAt(f.Type, 0, 0, unsafe.Pointer(&v))
	return v
}

func (rt *Runtime) setStaticInt32(d *Domain, f *Field, v int32) {
	rt.staticCell(d, f).storeAt(f.Type, 0, 0, unsafe.Pointer(&v))
}

func (rt *Runtime) runTypeInitializer(d *Domain, c *Class) {
	if d.initialized[c] {
		return
	}
	d.initialized[c] = true
	if cctor := c.typeInitializer(); cctor != nil {
		rt.invoke(d, cctor, nil, nil)
	}
}

func (rt *Runtime) PropertyName(p monoruntime.PropertyRef) string { return toProperty(p).Name }

func (rt *Runtime) PropertyGetter(p monoruntime.PropertyRef) monoruntime.MethodRef {
	return methodRef(toProperty(p).Getter)
}

func (rt *Runtime) PropertySetter(p monoruntime.PropertyRef) monoruntime.MethodRef {
	return methodRef(toProperty(p).Setter)
}

func (rt *Runtime) Invoke(m monoruntime.MethodRef, this monoruntime.ObjectRef, args []unsafe.Pointer) (monoruntime.ObjectRef, monoruntime.ObjectRef) {
	ret, exc := rt.invoke(rt.current, toMethod(m), toObject(this), args)
	return objectRef(ret), objectRef(exc)
}

func (rt *Runtime) invoke(d *Domain, m *Method, this *Object, args []unsafe.Pointer) (*Object, *Object) {
	if !m.Static && this == nil {
		return nil, rt.newException(d, corlib.nullReference, "Object reference not set to an instance of an object")
	}
	if len(args) != len(m.Params) {
		return nil, rt.newException(d, corlib.paramCount, "Parameter count mismatch.")
	}
	if this != nil {
		this.check()
	}
	if m.Static && m.Name != ".cctor" {
		rt.runTypeInitializer(d, m.class)
	}
	if m.Extern {
		return rt.callInternal(d, m, this, args)
	}
	c := &Call{rt: rt, domain: d, Method: m, This: this, args: args}
	if m.impl != nil {
		m.impl(c)
	}
	if c.exc != nil {
		return nil, c.exc
	}
	return c.ret, nil
}

func (rt *Runtime) callInternal(d *Domain, m *Method, this *Object, args []unsafe.Pointer) (*Object, *Object) {
	name := m.InternalName()
	nc, ok := rt.icalls[name+"("+m.Signature()+")"]
	if !ok {
		nc, ok = rt.icalls[name]
	}
	if !ok {
		return nil, rt.newException(d, corlib.missingMethod, name)
	}

	var ret unsafe.Pointer
	if m.Return.Code != monoruntime.TypeVoid {
		buf := make([]uint64, (m.Return.size()+7)/8+1)
		ret = unsafe.Pointer(&buf[0])
	}

	if err := nc.Invoke(objectRef(this), args, ret); err != nil {
		return nil, rt.newException(d, corlib.exception, err.Error())
	}

	switch {
	case ret == nil:
		return nil, nil
	case m.Return.IsReference():
		return (*Object)(*(*unsafe.Pointer)(ret)), nil
	default:
		return rt.box(d, m.Return.class(), ret), nil
	}
}

func (rt *Runtime) alloc(d *Domain, c *Class) *Object {
	o := newObject(d, c)
	rt.heap = append(rt.heap, o)
	return o
}

func (rt *Runtime) newInstance(d *Domain, c *Class) *Object {
	rt.runTypeInitializer(d, c)
	return rt.alloc(d, c)
}

func (rt *Runtime) box(d *Domain, c *Class, value unsafe.Pointer) *Object {
	o := rt.alloc(d, c)
	copyMem(o.Value(), value, c.ValueSize())
	return o
}

func (rt *Runtime) newString(d *Domain, units []uint16) *Object {
	o := rt.alloc(d, corlib.stringClass)
	o.chars = slices.Clone(units)
	return o
}

func (rt *Runtime) newException(d *Domain, c *Class, msg string) *Object {
	o := rt.alloc(d, c)
	o.SetRef(corlib.messageField.Name, rt.newString(d, encodeUnits(msg)))
	return o
}

func (rt *Runtime) NewObject(d monoruntime.DomainRef, c monoruntime.ClassRef) monoruntime.ObjectRef {
	dom := rt.domainOr(d)
	if dom == nil || dom.unloaded {
		return nil
	}
	return objectRef(rt.newInstance(dom, toClass(c)))
}

func (rt *Runtime) ObjectClass(o monoruntime.ObjectRef) monoruntime.ClassRef {
	return classRef(toObject(o).class)
}

func (rt *Runtime) Unbox(o monoruntime.ObjectRef) unsafe.Pointer {
	return toObject(o).Value()
}

func (rt *Runtime) Box(d monoruntime.DomainRef, c monoruntime.ClassRef, value unsafe.Pointer) monoruntime.ObjectRef {
	return objectRef(rt.box(rt.domainOr(d), toClass(c), value))
}

func (rt *Runtime) NewString(d monoruntime.DomainRef, units []uint16) monoruntime.ObjectRef {
	return objectRef(rt.newString(rt.domainOr(d), units))
}

func (rt *Runtime) StringUnits(s monoruntime.ObjectRef) []uint16 {
	o := toObject(s)
	if o == nil {
		return nil
	}
	o.check()
	return slices.Clone(o.chars)
}

func (rt *Runtime) NewGCHandle(o monoruntime.ObjectRef, _ bool) monoruntime.GCHandle {
	rt.nextHandle++
	rt.handles[rt.nextHandle] = toObject(o)
	return rt.nextHandle
}

func (rt *Runtime) GCHandleTarget(h monoruntime.GCHandle) monoruntime.ObjectRef {
	o, ok := rt.handles[h]
	if !ok || o == nil || o.dead {
		return nil
	}
	return objectRef(o)
}

func (rt *Runtime) FreeGCHandle(h monoruntime.GCHandle) {
	delete(rt.handles, h)
}

// Handles returns the number of live GC handles.
func (rt *Runtime) Handles() int { return len(rt.handles) }

func (rt *Runtime) AddInternalCall(call *monoruntime.NativeCall) error {
	if call == nil || call.Invoke == nil {
		return errors.InvalidInput(errors.PhaseBind, "internal call has no function")
	}
	name := strings.TrimSpace(call.Name)
	if !strings.Contains(name, "::") {
		return errors.InvalidInput(errors.PhaseBind, fmt.Sprintf("internal call name %q is not qualified", call.Name))
	}
	rt.icalls[name] = call
	return nil
}

func domainRef(d *Domain) monoruntime.DomainRef {
	if d == nil {
		return nil
	}
	return monoruntime.DomainRef(unsafe.Pointer(d))
}

func toDomain(r monoruntime.DomainRef) *Domain { return (*Domain)(unsafe.Pointer(r)) }

func assemblyRef(a *Assembly) monoruntime.AssemblyRef {
	if a == nil {
		return nil
	}
	return monoruntime.AssemblyRef(unsafe.Pointer(a))
}

func toAssembly(r monoruntime.AssemblyRef) *Assembly { return (*Assembly)(unsafe.Pointer(r)) }

func imageRef(i *Image) monoruntime.ImageRef {
	if i == nil {
		return nil
	}
	return monoruntime.ImageRef(unsafe.Pointer(i))
}

func toImage(r monoruntime.ImageRef) *Image { return (*Image)(unsafe.Pointer(r)) }

func classRef(c *Class) monoruntime.ClassRef {
	if c == nil {
		return nil
	}
	return monoruntime.ClassRef(unsafe.Pointer(c))
}

func toClass(r monoruntime.ClassRef) *Class { return (*Class)(unsafe.Pointer(r)) }

func methodRef(m *Method) monoruntime.MethodRef {
	if m == nil {
		return nil
	}
	return monoruntime.MethodRef(unsafe.Pointer(m))
}

func toMethod(r monoruntime.MethodRef) *Method { return (*Method)(unsafe.Pointer(r)) }

func fieldRef(f *Field) monoruntime.FieldRef {
	if f == nil {
		return nil
	}
	return monoruntime.FieldRef(unsafe.Pointer(f))
}

func toField(r monoruntime.FieldRef) *Field { return (*Field)(unsafe.Pointer(r)) }

func propertyRef(p *Property) monoruntime.PropertyRef {
	if p == nil {
		return nil
	}
	return monoruntime.PropertyRef(unsafe.Pointer(p))
}

func toProperty(r monoruntime.PropertyRef) *Property { return (*Property)(unsafe.Pointer(r)) }
