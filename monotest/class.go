package monotest

import (
	"fmt"
	"strings"
	"sync"

	monoruntime "github.com/wippyai/mono-runtime"
)

// Impl is the body of a managed method.
type Impl func(c *Call)

// Image is an assembly's metadata: the classes it defines.
type Image struct {
	byName  map[string]*Class
	Name    string
	classes []*Class
}

// NewImage creates an empty image. name is the assembly name without
// extension.
func NewImage(name string) *Image {
	return &Image{Name: name, byName: make(map[string]*Class)}
}

// AddClass defines a reference class. A nil parent means System.Object.
func (img *Image) AddClass(namespace, name string, parent *Class) *Class {
	if parent == nil && corlib != nil {
		parent = corlib.objectClass
	}
	return img.add(&Class{Namespace: namespace, Name: name, parent: parent})
}

// AddValueType defines a struct.
func (img *Image) AddValueType(namespace, name string) *Class {
	return img.add(&Class{Namespace: namespace, Name: name, parent: corlib.valueTypeClass, valueType: true})
}

// AddEnum defines an enum whose values are stored as base.
func (img *Image) AddEnum(namespace, name string, base Type) *Class {
	c := img.add(&Class{Namespace: namespace, Name: name, parent: corlib.enumClass, valueType: true})
	c.AddField("value__", base)
	return c
}

func (img *Image) add(c *Class) *Class {
	key := c.FullName()
	if _, ok := img.byName[key]; ok {
		panic(fmt.Sprintf("monotest: class %s defined twice in %s", key, img.Name))
	}
	c.image = img
	img.classes = append(img.classes, c)
	img.byName[key] = c
	return c
}

// Class returns a defined class or nil.
func (img *Image) Class(namespace, name string) *Class {
	if namespace == "" {
		return img.byName[name]
	}
	return img.byName[namespace+"."+name]
}

// Classes returns every class in definition order.
func (img *Image) Classes() []*Class {
	return img.classes
}

// Class is a type definition. Instance fields of parents come first in the
// object layout.
type Class struct {
	parent     *Class
	image      *Image
	Namespace  string
	Name       string
	fields     []*Field
	properties []*Property
	methods    []*Method
	layoutOnce sync.Once
	instSize   uintptr
	maxAlign   uintptr
	nrefs      int
	primitive  monoruntime.TypeCode
	valueType  bool
}

// FullName returns Namespace.Name, or Name without a namespace.
func (c *Class) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "." + c.Name
}

// Parent returns the base class or nil.
func (c *Class) Parent() *Class { return c.parent }

// IsValueType reports whether c is a struct or enum.
func (c *Class) IsValueType() bool { return c.valueType }

// IsSubclassOf reports whether c is base or derives from it.
func (c *Class) IsSubclassOf(base *Class) bool {
	for k := c; k != nil; k = k.parent {
		if k == base {
			return true
		}
	}
	return false
}

// Field describes a field.
type Field struct {
	owner    *Class
	Name     string
	Type     Type
	offset   uintptr
	refIndex int
	Static   bool
}

// Method describes a method. Extern methods dispatch to internal calls.
type Method struct {
	class  *Class
	impl   Impl
	Name   string
	Params []Type
	Return Type
	Static bool
	Extern bool
}

// Class returns the declaring class.
func (m *Method) Class() *Class { return m.class }

// Signature returns the internal call signature, "single,single".
func (m *Method) Signature() string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.descName()
	}
	return strings.Join(names, ",")
}

// InternalName returns the fully-qualified name an extern method is bound
// under, without signature: "Tests.MyObject::DoStuff".
func (m *Method) InternalName() string {
	return m.class.FullName() + "::" + m.Name
}

// Property pairs accessor methods.
type Property struct {
	owner  *Class
	Getter *Method
	Setter *Method
	Name   string
	Type   Type
}

// AddField defines an instance field.
func (c *Class) AddField(name string, t Type) *Field {
	f := &Field{owner: c, Name: name, Type: t, refIndex: -1}
	c.fields = append(c.fields, f)
	return f
}

// AddStaticField defines a static field, stored per domain.
func (c *Class) AddStaticField(name string, t Type) *Field {
	f := &Field{owner: c, Name: name, Type: t, refIndex: -1, Static: true}
	c.fields = append(c.fields, f)
	return f
}

func (c *Class) addMethod(m *Method) *Method {
	m.class = c
	c.methods = append(c.methods, m)
	return m
}

// AddMethod defines an instance method.
func (c *Class) AddMethod(name string, ret Type, params []Type, impl Impl) *Method {
	return c.addMethod(&Method{Name: name, Return: ret, Params: params, impl: impl})
}

// AddStaticMethod defines a static method.
func (c *Class) AddStaticMethod(name string, ret Type, params []Type, impl Impl) *Method {
	return c.addMethod(&Method{Name: name, Return: ret, Params: params, impl: impl, Static: true})
}

// AddConstructor defines an instance constructor.
func (c *Class) AddConstructor(params []Type, impl Impl) *Method {
	return c.addMethod(&Method{Name: ".ctor", Return: Void, Params: params, impl: impl})
}

// AddStaticConstructor defines the type initializer, run once per domain
// before the first static access or call.
func (c *Class) AddStaticConstructor(impl Impl) *Method {
	return c.addMethod(&Method{Name: ".cctor", Return: Void, impl: impl, Static: true})
}

// AddInternalMethod defines an extern instance method.
func (c *Class) AddInternalMethod(name string, ret Type, params []Type) *Method {
	return c.addMethod(&Method{Name: name, Return: ret, Params: params, Extern: true})
}

// AddInternalStaticMethod defines an extern static method.
func (c *Class) AddInternalStaticMethod(name string, ret Type, params []Type) *Method {
	return c.addMethod(&Method{Name: name, Return: ret, Params: params, Extern: true, Static: true})
}

// AddInternalConstructor defines an extern constructor.
func (c *Class) AddInternalConstructor(params []Type) *Method {
	return c.addMethod(&Method{Name: ".ctor", Return: Void, Params: params, Extern: true})
}

// SetFinalizer defines the finalizer run when an unreachable instance is
// collected.
func (c *Class) SetFinalizer(impl Impl) *Method {
	return c.addMethod(&Method{Name: "Finalize", Return: Void, impl: impl})
}

// AddProperty defines an instance property with get_Name and set_Name
// accessors. Either accessor may be nil.
func (c *Class) AddProperty(name string, t Type, get, set Impl) *Property {
	p := &Property{owner: c, Name: name, Type: t}
	if get != nil {
		p.Getter = c.AddMethod("get_"+name, t, nil, get)
	}
	if set != nil {
		p.Setter = c.AddMethod("set_"+name, Void, []Type{t}, set)
	}
	c.properties = append(c.properties, p)
	return p
}

// AddIndexer defines an indexed property: get_Name takes the index
// parameters and set_Name takes them followed by the value.
func (c *Class) AddIndexer(name string, t Type, index []Type, get, set Impl) *Property {
	p := &Property{owner: c, Name: name, Type: t}
	if get != nil {
		p.Getter = c.AddMethod("get_"+name, t, index, get)
	}
	if set != nil {
		params := append(append([]Type(nil), index...), t)
		p.Setter = c.AddMethod("set_"+name, Void, params, set)
	}
	c.properties = append(c.properties, p)
	return p
}

// Field finds a field on c or its parents.
func (c *Class) Field(name string) *Field {
	for k := c; k != nil; k = k.parent {
		for _, f := range k.fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// Property finds a property on c or its parents.
func (c *Class) Property(name string) *Property {
	for k := c; k != nil; k = k.parent {
		for _, p := range k.properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// Method finds a method by name and parameter count on c or its parents.
// A negative argc matches any count.
func (c *Class) Method(name string, argc int) *Method {
	for k := c; k != nil; k = k.parent {
		for _, m := range k.methods {
			if m.Name == name && (argc < 0 || len(m.Params) == argc) {
				return m
			}
		}
	}
	return nil
}

// findDesc matches a descriptor such as "Name(int,string)" against the
// methods declared on c itself. A descriptor without parentheses matches
// any signature.
func (c *Class) findDesc(desc string) *Method {
	name, sig, hasSig := strings.Cut(desc, "(")
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	if hasSig {
		sig = strings.TrimSuffix(strings.TrimSpace(sig), ")")
		sig = strings.ReplaceAll(sig, " ", "")
	}
	for _, m := range c.methods {
		if m.Name != name {
			continue
		}
		if !hasSig || m.Signature() == sig {
			return m
		}
	}
	return nil
}

func (c *Class) finalizer() *Method {
	for k := c; k != nil; k = k.parent {
		for _, m := range k.methods {
			if m.Name == "Finalize" && m.impl != nil {
				return m
			}
		}
	}
	return nil
}

func (c *Class) typeInitializer() *Method {
	for _, m := range c.methods {
		if m.Name == ".cctor" {
			return m
		}
	}
	return nil
}

// layout assigns instance field offsets, parents first. Reference fields
// get a slot in the reference table as well as an offset.
func (c *Class) layout() {
	c.layoutOnce.Do(func() {
		var off uintptr
		maxAlign := uintptr(1)
		nrefs := 0
		if c.parent != nil {
			c.parent.layout()
			off = c.parent.instSize
			maxAlign = c.parent.maxAlign
			nrefs = c.parent.nrefs
		}
		for _, f := range c.fields {
			if f.Static {
				continue
			}
			a := f.Type.align()
			off = (off + a - 1) &^ (a - 1)
			f.offset = off
			off += f.Type.size()
			if a > maxAlign {
				maxAlign = a
			}
			if f.Type.IsReference() {
				f.refIndex = nrefs
				nrefs++
			}
		}
		if size := c.primitive.Size(); size > 0 {
			off = size
			maxAlign = size
		}
		c.instSize = (off + maxAlign - 1) &^ (maxAlign - 1)
		c.maxAlign = maxAlign
		c.nrefs = nrefs
	})
}

// ValueSize returns the size of an instance's data.
func (c *Class) ValueSize() uintptr {
	c.layout()
	return c.instSize
}

func (c *Class) alignment() uintptr {
	c.layout()
	return c.maxAlign
}
