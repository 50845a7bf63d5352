package engine

import (
	"os"
	"path/filepath"
	goruntime "runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/wippyai/mono-runtime/errors"
)

const rtldLazyGlobal = purego.RTLD_LAZY | purego.RTLD_GLOBAL

// symbols holds the libmono entry points. Handles travel as unsafe.Pointer,
// mono_bool as int32.
type symbols struct {
	setDirs        func(assemblyDir, configDir *byte)
	configParse    func(file *byte)
	jitInit        func(domain string) unsafe.Pointer
	jitInitVersion func(domain, version string) unsafe.Pointer
	jitCleanup     func(domain unsafe.Pointer)

	getRootDomain   func() unsafe.Pointer
	domainGet       func() unsafe.Pointer
	domainSet       func(domain unsafe.Pointer, force int32) int32
	domainCreate    func(name string, config *byte) unsafe.Pointer
	domainUnload    func(domain unsafe.Pointer)
	domainAsmOpen   func(domain unsafe.Pointer, path string) unsafe.Pointer
	assemblyImage   func(asm unsafe.Pointer) unsafe.Pointer
	assemblyName    func(asm unsafe.Pointer) unsafe.Pointer
	asmNameGetName  func(name unsafe.Pointer) string
	getCorlib       func() unsafe.Pointer
	classFromName   func(img unsafe.Pointer, namespace, name string) unsafe.Pointer
	className       func(cls unsafe.Pointer) string
	classNamespace  func(cls unsafe.Pointer) string
	classParent     func(cls unsafe.Pointer) unsafe.Pointer
	classIsValue    func(cls unsafe.Pointer) int32
	classValueSize  func(cls unsafe.Pointer, align *uint32) int32
	classVTable     func(domain, cls unsafe.Pointer) unsafe.Pointer
	classFields     func(cls unsafe.Pointer, iter *unsafe.Pointer) unsafe.Pointer
	classProperties func(cls unsafe.Pointer, iter *unsafe.Pointer) unsafe.Pointer
	classMethods    func(cls unsafe.Pointer, iter *unsafe.Pointer) unsafe.Pointer
	classField      func(cls unsafe.Pointer, name string) unsafe.Pointer
	classProperty   func(cls unsafe.Pointer, name string) unsafe.Pointer
	classMethod     func(cls unsafe.Pointer, name string, argc int32) unsafe.Pointer
	classFromType   func(typ unsafe.Pointer) unsafe.Pointer

	descNew    func(desc string, includeNamespace int32) unsafe.Pointer
	descSearch func(desc, cls unsafe.Pointer) unsafe.Pointer
	descFree   func(desc unsafe.Pointer)

	methodName      func(m unsafe.Pointer) string
	methodClass     func(m unsafe.Pointer) unsafe.Pointer
	methodSignature func(m unsafe.Pointer) unsafe.Pointer
	sigParams       func(sig unsafe.Pointer, iter *unsafe.Pointer) unsafe.Pointer
	sigReturn       func(sig unsafe.Pointer) unsafe.Pointer
	sigIsInstance   func(sig unsafe.Pointer) int32
	typeType        func(typ unsafe.Pointer) int32

	fieldName      func(f unsafe.Pointer) string
	fieldType      func(f unsafe.Pointer) unsafe.Pointer
	fieldParent    func(f unsafe.Pointer) unsafe.Pointer
	fieldFlags     func(f unsafe.Pointer) uint32
	fieldOffset    func(f unsafe.Pointer) uint32
	fieldGet       func(obj, f, out unsafe.Pointer)
	fieldSet       func(obj, f, value unsafe.Pointer)
	fieldStaticGet func(vtable, f, out unsafe.Pointer)
	fieldStaticSet func(vtable, f, value unsafe.Pointer)

	propertyName   func(p unsafe.Pointer) string
	propertyGetter func(p unsafe.Pointer) unsafe.Pointer
	propertySetter func(p unsafe.Pointer) unsafe.Pointer

	runtimeInvoke func(m, obj unsafe.Pointer, params *unsafe.Pointer, exc *unsafe.Pointer) unsafe.Pointer
	objectNew     func(domain, cls unsafe.Pointer) unsafe.Pointer
	objectClass   func(obj unsafe.Pointer) unsafe.Pointer
	objectUnbox   func(obj unsafe.Pointer) unsafe.Pointer
	valueBox      func(domain, cls, value unsafe.Pointer) unsafe.Pointer

	stringNewUTF16 func(domain unsafe.Pointer, text *uint16, length int32) unsafe.Pointer
	stringChars    func(s unsafe.Pointer) unsafe.Pointer
	stringLength   func(s unsafe.Pointer) int32

	gchandleNew    func(obj unsafe.Pointer, pinned int32) uint32
	gchandleTarget func(h uint32) unsafe.Pointer
	gchandleFree   func(h uint32)

	addInternalCall  func(name string, fn uintptr)
	exceptionFromMsg func(img unsafe.Pointer, namespace, name, msg string) unsafe.Pointer

	// optional: absent in older runtimes
	setPendingException func(exc unsafe.Pointer)
}

// bind resolves every required symbol. purego panics on a missing symbol,
// which is reported as a load error naming it.
func (s *symbols) bind(lib uintptr) (err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.PhaseLoad, errors.KindNotFound).
				Path(current).
				Detail("missing runtime symbol: %v", r).
				Build()
		}
	}()

	required := []struct {
		fn   any
		name string
	}{
		{&s.setDirs, "mono_set_dirs"},
		{&s.configParse, "mono_config_parse"},
		{&s.jitInit, "mono_jit_init"},
		{&s.jitInitVersion, "mono_jit_init_version"},
		{&s.jitCleanup, "mono_jit_cleanup"},
		{&s.getRootDomain, "mono_get_root_domain"},
		{&s.domainGet, "mono_domain_get"},
		{&s.domainSet, "mono_domain_set"},
		{&s.domainCreate, "mono_domain_create_appdomain"},
		{&s.domainUnload, "mono_domain_unload"},
		{&s.domainAsmOpen, "mono_domain_assembly_open"},
		{&s.assemblyImage, "mono_assembly_get_image"},
		{&s.assemblyName, "mono_assembly_get_name"},
		{&s.asmNameGetName, "mono_assembly_name_get_name"},
		{&s.getCorlib, "mono_get_corlib"},
		{&s.classFromName, "mono_class_from_name"},
		{&s.className, "mono_class_get_name"},
		{&s.classNamespace, "mono_class_get_namespace"},
		{&s.classParent, "mono_class_get_parent"},
		{&s.classIsValue, "mono_class_is_valuetype"},
		{&s.classValueSize, "mono_class_value_size"},
		{&s.classVTable, "mono_class_vtable"},
		{&s.classFields, "mono_class_get_fields"},
		{&s.classProperties, "mono_class_get_properties"},
		{&s.classMethods, "mono_class_get_methods"},
		{&s.classField, "mono_class_get_field_from_name"},
		{&s.classProperty, "mono_class_get_property_from_name"},
		{&s.classMethod, "mono_class_get_method_from_name"},
		{&s.classFromType, "mono_class_from_mono_type"},
		{&s.descNew, "mono_method_desc_new"},
		{&s.descSearch, "mono_method_desc_search_in_class"},
		{&s.descFree, "mono_method_desc_free"},
		{&s.methodName, "mono_method_get_name"},
		{&s.methodClass, "mono_method_get_class"},
		{&s.methodSignature, "mono_method_signature"},
		{&s.sigParams, "mono_signature_get_params"},
		{&s.sigReturn, "mono_signature_get_return_type"},
		{&s.sigIsInstance, "mono_signature_is_instance"},
		{&s.typeType, "mono_type_get_type"},
		{&s.fieldName, "mono_field_get_name"},
		{&s.fieldType, "mono_field_get_type"},
		{&s.fieldParent, "mono_field_get_parent"},
		{&s.fieldFlags, "mono_field_get_flags"},
		{&s.fieldOffset, "mono_field_get_offset"},
		{&s.fieldGet, "mono_field_get_value"},
		{&s.fieldSet, "mono_field_set_value"},
		{&s.fieldStaticGet, "mono_field_static_get_value"},
		{&s.fieldStaticSet, "mono_field_static_set_value"},
		{&s.propertyName, "mono_property_get_name"},
		{&s.propertyGetter, "mono_property_get_get_method"},
		{&s.propertySetter, "mono_property_get_set_method"},
		{&s.runtimeInvoke, "mono_runtime_invoke"},
		{&s.objectNew, "mono_object_new"},
		{&s.objectClass, "mono_object_get_class"},
		{&s.objectUnbox, "mono_object_unbox"},
		{&s.valueBox, "mono_value_box"},
		{&s.stringNewUTF16, "mono_string_new_utf16"},
		{&s.stringChars, "mono_string_chars"},
		{&s.stringLength, "mono_string_length"},
		{&s.gchandleNew, "mono_gchandle_new"},
		{&s.gchandleTarget, "mono_gchandle_get_target"},
		{&s.gchandleFree, "mono_gchandle_free"},
		{&s.addInternalCall, "mono_add_internal_call"},
		{&s.exceptionFromMsg, "mono_exception_from_name_msg"},
	}
	for _, sym := range required {
		current = sym.name
		purego.RegisterLibFunc(sym.fn, lib, sym.name)
	}

	registerOptionalFunc(&s.setPendingException, lib, "mono_set_pending_exception")
	return nil
}

// registerOptionalFunc binds name if the library exports it and leaves fn
// nil otherwise.
func registerOptionalFunc[T any](fn *T, lib uintptr, name string) {
	if _, err := purego.Dlsym(lib, name); err != nil {
		debugf("optional symbol %s not available: %v", name, err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			debugf("optional symbol %s not bound: %v", name, r)
		}
	}()
	purego.RegisterLibFunc(fn, lib, name)
}

// LibraryCandidates returns the paths tried, in order, when opening name.
// Absolute paths and paths with a directory are used as given; bare
// library names are also looked up next to the executable and under a
// sibling lib directory before falling back to the system loader.
func LibraryCandidates(name string) []string {
	if filepath.IsAbs(name) || filepath.Base(name) != name {
		return []string{name}
	}

	candidates := []string{filepath.Join(".", name)}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, name),
			filepath.Join(dir, "..", "lib", name),
		)
	}
	if goruntime.GOOS == "darwin" {
		candidates = append(candidates, filepath.Join("/Library/Frameworks/Mono.framework/Versions/Current/lib", name))
	}
	return append(candidates, name)
}

// resolveLibrary returns the first candidate that exists on disk, or the
// bare name so the system loader can search its own paths.
func resolveLibrary(name string) string {
	candidates := LibraryCandidates(name)
	for _, c := range candidates[:len(candidates)-1] {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			if abs, err := filepath.Abs(c); err == nil {
				return abs
			}
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// cstring returns a NUL-terminated copy of s, or nil for the empty string
// where the runtime treats NULL as "use the default".
func cstring(s string) *byte {
	if s == "" {
		return nil
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}
