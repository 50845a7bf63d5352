package engine

import (
	goruntime "runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"go.uber.org/zap"
)

// fieldAttrStatic is FIELD_ATTRIBUTE_STATIC from the ECMA-335 field flags.
const fieldAttrStatic = 0x0010

// objectHeader is the size of the MonoObject header (vtable and sync
// pointers) that precedes instance data.
const objectHeader = 2 * unsafe.Sizeof(uintptr(0))

// Mono implements monoruntime.API on top of the shared runtime library,
// loaded at run time through purego. No cgo is involved.
//
// All methods are thin call-throughs. Like the library itself, a Mono is
// not safe for concurrent use from goroutines that are not attached to
// the runtime.
type Mono struct {
	sym    symbols
	calls  map[string]*trampoline
	path   string
	lib    uintptr
	mu     sync.Mutex
	closed bool
}

var _ monoruntime.API = (*Mono)(nil)

// Open loads the runtime library by path or soname and binds its symbols.
// The library stays loaded for the life of the process.
func Open(library string) (*Mono, error) {
	path := resolveLibrary(library)
	lib, err := purego.Dlopen(path, rtldLazyGlobal)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Path(library).
			Cause(err).
			Detail("cannot load runtime library %s", path).
			Build()
	}

	m := &Mono{
		lib:   lib,
		path:  path,
		calls: make(map[string]*trampoline),
	}
	if err := m.sym.bind(lib); err != nil {
		return nil, err
	}
	Logger().Debug("runtime library loaded", zap.String("path", path))
	return m, nil
}

// Path returns the resolved path of the loaded library.
func (m *Mono) Path() string {
	return m.path
}

// Init starts the runtime. It fails with already_shutdown once Cleanup
// has run, since the library cannot start twice in one process.
func (m *Mono) Init(opts monoruntime.InitOptions) (monoruntime.DomainRef, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, errors.AlreadyShutdown("mono jit")
	}

	if opts.AssemblyDir != "" || opts.ConfigDir != "" {
		m.sym.setDirs(cstring(opts.AssemblyDir), cstring(opts.ConfigDir))
	}
	m.sym.configParse(cstring(opts.ConfigFile))

	name := opts.RootDomain
	if name == "" {
		name = "mono"
	}

	var root unsafe.Pointer
	if opts.Version != "" {
		root = m.sym.jitInitVersion(name, opts.Version)
	} else {
		root = m.sym.jitInit(name)
	}
	if root == nil {
		return nil, errors.NotInitialized(errors.PhaseInit, "mono jit")
	}
	Logger().Info("runtime initialized",
		zap.String("domain", name),
		zap.String("version", opts.Version))
	return monoruntime.DomainRef(root), nil
}

// Cleanup shuts the runtime down. The library cannot be initialized again
// in the same process.
func (m *Mono) Cleanup(root monoruntime.DomainRef) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.sym.jitCleanup(unsafe.Pointer(root))
	Logger().Info("runtime shut down")
}

func (m *Mono) RootDomain() monoruntime.DomainRef {
	return monoruntime.DomainRef(m.sym.getRootDomain())
}

func (m *Mono) CreateDomain(name string) monoruntime.DomainRef {
	return monoruntime.DomainRef(m.sym.domainCreate(name, nil))
}

func (m *Mono) SetDomain(d monoruntime.DomainRef) bool {
	return m.sym.domainSet(unsafe.Pointer(d), 0) != 0
}

// UnloadDomain switches back to the root domain first when d is current;
// the runtime refuses to unload the active domain.
func (m *Mono) UnloadDomain(d monoruntime.DomainRef) {
	if d == nil {
		return
	}
	if m.sym.domainGet() == unsafe.Pointer(d) {
		m.sym.domainSet(m.sym.getRootDomain(), 0)
	}
	m.sym.domainUnload(unsafe.Pointer(d))
}

func (m *Mono) OpenAssembly(d monoruntime.DomainRef, path string) monoruntime.AssemblyRef {
	return monoruntime.AssemblyRef(m.sym.domainAsmOpen(unsafe.Pointer(d), path))
}

func (m *Mono) AssemblyImage(a monoruntime.AssemblyRef) monoruntime.ImageRef {
	return monoruntime.ImageRef(m.sym.assemblyImage(unsafe.Pointer(a)))
}

func (m *Mono) AssemblyName(a monoruntime.AssemblyRef) string {
	return m.sym.asmNameGetName(m.sym.assemblyName(unsafe.Pointer(a)))
}

func (m *Mono) Corlib() monoruntime.ImageRef {
	return monoruntime.ImageRef(m.sym.getCorlib())
}

func (m *Mono) ClassFromName(img monoruntime.ImageRef, namespace, name string) monoruntime.ClassRef {
	return monoruntime.ClassRef(m.sym.classFromName(unsafe.Pointer(img), namespace, name))
}

func (m *Mono) ClassName(c monoruntime.ClassRef) string {
	return m.sym.className(unsafe.Pointer(c))
}

func (m *Mono) ClassNamespace(c monoruntime.ClassRef) string {
	return m.sym.classNamespace(unsafe.Pointer(c))
}

func (m *Mono) ClassParent(c monoruntime.ClassRef) monoruntime.ClassRef {
	return monoruntime.ClassRef(m.sym.classParent(unsafe.Pointer(c)))
}

func (m *Mono) ClassIsValueType(c monoruntime.ClassRef) bool {
	return m.sym.classIsValue(unsafe.Pointer(c)) != 0
}

func (m *Mono) ClassValueSize(c monoruntime.ClassRef) uintptr {
	var align uint32
	n := m.sym.classValueSize(unsafe.Pointer(c), &align)
	if n < 0 {
		return 0
	}
	return uintptr(n)
}

// iterate drains one of the runtime's gpointer-iterator enumerations.
func iterate[T ~unsafe.Pointer](next func(unsafe.Pointer, *unsafe.Pointer) unsafe.Pointer, owner unsafe.Pointer) []T {
	var (
		iter unsafe.Pointer
		out  []T
	)
	for {
		p := next(owner, &iter)
		if p == nil {
			return out
		}
		out = append(out, T(p))
	}
}

func (m *Mono) ClassFields(c monoruntime.ClassRef) []monoruntime.FieldRef {
	return iterate[monoruntime.FieldRef](m.sym.classFields, unsafe.Pointer(c))
}

func (m *Mono) ClassProperties(c monoruntime.ClassRef) []monoruntime.PropertyRef {
	return iterate[monoruntime.PropertyRef](m.sym.classProperties, unsafe.Pointer(c))
}

func (m *Mono) ClassMethods(c monoruntime.ClassRef) []monoruntime.MethodRef {
	return iterate[monoruntime.MethodRef](m.sym.classMethods, unsafe.Pointer(c))
}

func (m *Mono) ClassField(c monoruntime.ClassRef, name string) monoruntime.FieldRef {
	return monoruntime.FieldRef(m.sym.classField(unsafe.Pointer(c), name))
}

func (m *Mono) ClassProperty(c monoruntime.ClassRef, name string) monoruntime.PropertyRef {
	return monoruntime.PropertyRef(m.sym.classProperty(unsafe.Pointer(c), name))
}

// ClassMethod searches c and then its ancestors. argc < 0 matches any
// parameter count.
func (m *Mono) ClassMethod(c monoruntime.ClassRef, name string, argc int) monoruntime.MethodRef {
	for cls := unsafe.Pointer(c); cls != nil; cls = m.sym.classParent(cls) {
		if p := m.sym.classMethod(cls, name, int32(argc)); p != nil {
			return monoruntime.MethodRef(p)
		}
	}
	return nil
}

// FindMethod resolves a "Name(type,type)" descriptor against the methods
// declared by c.
func (m *Mono) FindMethod(c monoruntime.ClassRef, desc string) monoruntime.MethodRef {
	d := m.sym.descNew(":"+desc, 0)
	if d == nil {
		return nil
	}
	defer m.sym.descFree(d)
	return monoruntime.MethodRef(m.sym.descSearch(d, unsafe.Pointer(c)))
}

func (m *Mono) MethodName(mt monoruntime.MethodRef) string {
	return m.sym.methodName(unsafe.Pointer(mt))
}

func (m *Mono) MethodClass(mt monoruntime.MethodRef) monoruntime.ClassRef {
	return monoruntime.ClassRef(m.sym.methodClass(unsafe.Pointer(mt)))
}

func (m *Mono) MethodSignature(mt monoruntime.MethodRef) monoruntime.Signature {
	sig := m.sym.methodSignature(unsafe.Pointer(mt))
	if sig == nil {
		return monoruntime.Signature{}
	}
	out := monoruntime.Signature{
		Return: m.typeInfo(m.sym.sigReturn(sig)),
		Static: m.sym.sigIsInstance(sig) == 0,
	}
	var iter unsafe.Pointer
	for {
		t := m.sym.sigParams(sig, &iter)
		if t == nil {
			break
		}
		out.Params = append(out.Params, m.typeInfo(t))
	}
	return out
}

// typeInfo describes a MonoType. Primitive slots are named by their
// descriptor keyword, class and value types by their full name.
func (m *Mono) typeInfo(t unsafe.Pointer) monoruntime.TypeInfo {
	if t == nil {
		return monoruntime.TypeInfo{Code: monoruntime.TypeVoid, Name: "void"}
	}
	code := monoruntime.TypeCode(m.sym.typeType(t))
	info := monoruntime.TypeInfo{
		Code:  code,
		Class: monoruntime.ClassRef(m.sym.classFromType(t)),
		Name:  code.String(),
	}
	switch code {
	case monoruntime.TypeValueType, monoruntime.TypeClass, monoruntime.TypeGeneric:
		if info.Class != nil {
			info.Name = m.fullName(info.Class)
		}
	}
	return info
}

func (m *Mono) fullName(c monoruntime.ClassRef) string {
	ns := m.ClassNamespace(c)
	if ns == "" {
		return m.ClassName(c)
	}
	return ns + "." + m.ClassName(c)
}

func (m *Mono) FieldName(f monoruntime.FieldRef) string {
	return m.sym.fieldName(unsafe.Pointer(f))
}

func (m *Mono) FieldType(f monoruntime.FieldRef) monoruntime.TypeInfo {
	return m.typeInfo(m.sym.fieldType(unsafe.Pointer(f)))
}

func (m *Mono) FieldIsStatic(f monoruntime.FieldRef) bool {
	return m.sym.fieldFlags(unsafe.Pointer(f))&fieldAttrStatic != 0
}

// FieldOffset returns the offset within unboxed value storage for fields
// of value types and within the object for everything else.
func (m *Mono) FieldOffset(f monoruntime.FieldRef) uintptr {
	off := uintptr(m.sym.fieldOffset(unsafe.Pointer(f)))
	if parent := m.sym.fieldParent(unsafe.Pointer(f)); parent != nil && m.sym.classIsValue(parent) != 0 && off >= objectHeader {
		off -= objectHeader
	}
	return off
}

func (m *Mono) GetFieldValue(obj monoruntime.ObjectRef, f monoruntime.FieldRef, out unsafe.Pointer) {
	m.sym.fieldGet(unsafe.Pointer(obj), unsafe.Pointer(f), out)
}

func (m *Mono) SetFieldValue(obj monoruntime.ObjectRef, f monoruntime.FieldRef, value unsafe.Pointer) {
	var pin goruntime.Pinner
	defer pin.Unpin()
	pinAll(&pin, value)
	m.sym.fieldSet(unsafe.Pointer(obj), unsafe.Pointer(f), m.fieldValue(f, value))
}

// fieldValue converts out-storage form into what the field setters take:
// the object itself for reference fields, the value address otherwise.
func (m *Mono) fieldValue(f monoruntime.FieldRef, value unsafe.Pointer) unsafe.Pointer {
	if value != nil && m.FieldType(f).Code.IsReference() {
		return *(*unsafe.Pointer)(value)
	}
	return value
}

// vtable returns the vtable of the field's class in d, which also runs the
// class's static constructor on first use.
func (m *Mono) vtable(d monoruntime.DomainRef, f monoruntime.FieldRef) unsafe.Pointer {
	return m.sym.classVTable(unsafe.Pointer(d), m.sym.fieldParent(unsafe.Pointer(f)))
}

func (m *Mono) GetStaticFieldValue(d monoruntime.DomainRef, f monoruntime.FieldRef, out unsafe.Pointer) {
	if vt := m.vtable(d, f); vt != nil {
		m.sym.fieldStaticGet(vt, unsafe.Pointer(f), out)
	}
}

func (m *Mono) SetStaticFieldValue(d monoruntime.DomainRef, f monoruntime.FieldRef, value unsafe.Pointer) {
	vt := m.vtable(d, f)
	if vt == nil {
		return
	}
	var pin goruntime.Pinner
	defer pin.Unpin()
	pinAll(&pin, value)
	m.sym.fieldStaticSet(vt, unsafe.Pointer(f), m.fieldValue(f, value))
}

func (m *Mono) PropertyName(p monoruntime.PropertyRef) string {
	return m.sym.propertyName(unsafe.Pointer(p))
}

func (m *Mono) PropertyGetter(p monoruntime.PropertyRef) monoruntime.MethodRef {
	return monoruntime.MethodRef(m.sym.propertyGetter(unsafe.Pointer(p)))
}

func (m *Mono) PropertySetter(p monoruntime.PropertyRef) monoruntime.MethodRef {
	return monoruntime.MethodRef(m.sym.propertySetter(unsafe.Pointer(p)))
}

// Invoke pins the argument array and every Go-allocated slot for the
// duration of the call. Slots that point into the managed heap are left
// alone.
func (m *Mono) Invoke(mt monoruntime.MethodRef, this monoruntime.ObjectRef, args []unsafe.Pointer) (monoruntime.ObjectRef, monoruntime.ObjectRef) {
	var pin goruntime.Pinner
	defer pin.Unpin()

	var params *unsafe.Pointer
	if len(args) > 0 {
		params = &args[0]
		pin.Pin(params)
		pinAll(&pin, args...)
	}

	var exc unsafe.Pointer
	ret := m.sym.runtimeInvoke(unsafe.Pointer(mt), unsafe.Pointer(this), params, &exc)
	if exc != nil {
		return nil, monoruntime.ObjectRef(exc)
	}
	return monoruntime.ObjectRef(ret), nil
}

func (m *Mono) NewObject(d monoruntime.DomainRef, c monoruntime.ClassRef) monoruntime.ObjectRef {
	return monoruntime.ObjectRef(m.sym.objectNew(unsafe.Pointer(d), unsafe.Pointer(c)))
}

func (m *Mono) ObjectClass(o monoruntime.ObjectRef) monoruntime.ClassRef {
	return monoruntime.ClassRef(m.sym.objectClass(unsafe.Pointer(o)))
}

func (m *Mono) Unbox(o monoruntime.ObjectRef) unsafe.Pointer {
	return m.sym.objectUnbox(unsafe.Pointer(o))
}

func (m *Mono) Box(d monoruntime.DomainRef, c monoruntime.ClassRef, value unsafe.Pointer) monoruntime.ObjectRef {
	var pin goruntime.Pinner
	defer pin.Unpin()
	pinAll(&pin, value)
	return monoruntime.ObjectRef(m.sym.valueBox(unsafe.Pointer(d), unsafe.Pointer(c), value))
}

func (m *Mono) NewString(d monoruntime.DomainRef, units []uint16) monoruntime.ObjectRef {
	var text *uint16
	if len(units) > 0 {
		text = &units[0]
	}
	return monoruntime.ObjectRef(m.sym.stringNewUTF16(unsafe.Pointer(d), text, int32(len(units))))
}

// StringUnits copies the UTF-16 content out of the managed heap.
func (m *Mono) StringUnits(s monoruntime.ObjectRef) []uint16 {
	if s == nil {
		return nil
	}
	n := m.sym.stringLength(unsafe.Pointer(s))
	if n <= 0 {
		return []uint16{}
	}
	chars := m.sym.stringChars(unsafe.Pointer(s))
	out := make([]uint16, n)
	copy(out, unsafe.Slice((*uint16)(chars), n))
	return out
}

func (m *Mono) NewGCHandle(o monoruntime.ObjectRef, pinned bool) monoruntime.GCHandle {
	var p int32
	if pinned {
		p = 1
	}
	return monoruntime.GCHandle(m.sym.gchandleNew(unsafe.Pointer(o), p))
}

func (m *Mono) GCHandleTarget(h monoruntime.GCHandle) monoruntime.ObjectRef {
	if h == 0 {
		return nil
	}
	return monoruntime.ObjectRef(m.sym.gchandleTarget(uint32(h)))
}

func (m *Mono) FreeGCHandle(h monoruntime.GCHandle) {
	if h != 0 {
		m.sym.gchandleFree(uint32(h))
	}
}

// pinAll pins each non-nil pointer. Pointers outside the Go heap are
// ignored by the pinner.
func pinAll(pin *goruntime.Pinner, ptrs ...unsafe.Pointer) {
	for _, p := range ptrs {
		if p != nil {
			pin.Pin(p)
		}
	}
}

// raise turns an internal call failure into a pending System.Exception in
// the calling managed frame. Runtimes without pending exception support
// only get the log entry.
func (m *Mono) raise(name string, err error) {
	Logger().Warn("internal call failed", zap.String("method", name), zap.Error(err))
	if m.sym.setPendingException == nil {
		return
	}
	exc := m.sym.exceptionFromMsg(m.sym.getCorlib(), "System", "Exception", err.Error())
	if exc != nil {
		m.sym.setPendingException(exc)
	}
}
