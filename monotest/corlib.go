package monotest

import (
	monoruntime "github.com/wippyai/mono-runtime"
)

// CorlibName is the assembly name of the core library image.
const CorlibName = "mscorlib"

type corlibImage struct {
	image          *Image
	byCode         map[monoruntime.TypeCode]*Class
	objectClass    *Class
	valueTypeClass *Class
	enumClass      *Class
	stringClass    *Class
	exception      *Class
	nullReference  *Class
	argument       *Class
	missingMethod  *Class
	paramCount     *Class
	invalidOp      *Class
	messageField   *Field
}

var corlib *corlibImage

func init() {
	corlib = newCorlib()
}

var primitiveNames = []struct {
	name string
	code monoruntime.TypeCode
}{
	{"Boolean", monoruntime.TypeBoolean},
	{"Char", monoruntime.TypeChar},
	{"SByte", monoruntime.TypeI1},
	{"Byte", monoruntime.TypeU1},
	{"Int16", monoruntime.TypeI2},
	{"UInt16", monoruntime.TypeU2},
	{"Int32", monoruntime.TypeI4},
	{"UInt32", monoruntime.TypeU4},
	{"Int64", monoruntime.TypeI8},
	{"UInt64", monoruntime.TypeU8},
	{"IntPtr", monoruntime.TypeI},
	{"UIntPtr", monoruntime.TypeU},
	{"Single", monoruntime.TypeR4},
	{"Double", monoruntime.TypeR8},
}

func newCorlib() *corlibImage {
	img := NewImage(CorlibName)
	cl := &corlibImage{image: img, byCode: make(map[monoruntime.TypeCode]*Class)}

	cl.objectClass = img.add(&Class{Namespace: "System", Name: "Object"})
	cl.valueTypeClass = img.add(&Class{Namespace: "System", Name: "ValueType", parent: cl.objectClass})
	cl.enumClass = img.add(&Class{Namespace: "System", Name: "Enum", parent: cl.valueTypeClass})
	cl.stringClass = img.add(&Class{Namespace: "System", Name: "String", parent: cl.objectClass})
	cl.byCode[monoruntime.TypeObject] = cl.objectClass
	cl.byCode[monoruntime.TypeString] = cl.stringClass

	for _, p := range primitiveNames {
		c := img.add(&Class{
			Namespace: "System",
			Name:      p.name,
			parent:    cl.valueTypeClass,
			valueType: true,
			primitive: p.code,
		})
		cl.byCode[p.code] = c
	}

	exc := img.add(&Class{Namespace: "System", Name: "Exception", parent: cl.objectClass})
	cl.messageField = exc.AddField("_message", String)
	exc.AddConstructor(nil, func(*Call) {})
	exc.AddConstructor([]Type{String}, func(c *Call) {
		c.This.SetRef("_message", c.Object(0))
	})
	exc.AddProperty("Message", String, func(c *Call) {
		c.ReturnObject(c.This.Ref("_message"))
	}, nil)
	cl.exception = exc

	derive := func(namespace, name string, parent *Class) *Class {
		k := img.add(&Class{Namespace: namespace, Name: name, parent: parent})
		k.AddConstructor([]Type{String}, func(c *Call) {
			c.This.SetRef("_message", c.Object(0))
		})
		return k
	}
	system := derive("System", "SystemException", exc)
	cl.nullReference = derive("System", "NullReferenceException", system)
	cl.argument = derive("System", "ArgumentException", system)
	cl.invalidOp = derive("System", "InvalidOperationException", system)
	memberAccess := derive("System", "MemberAccessException", system)
	missingMember := derive("System", "MissingMemberException", memberAccess)
	cl.missingMethod = derive("System", "MissingMethodException", missingMember)
	cl.paramCount = derive("System.Reflection", "TargetParameterCountException", exc)

	return cl
}

// Corlib returns the core library image. Its classes are shared by every
// Runtime.
func Corlib() *Image {
	return corlib.image
}

// ExceptionClass returns System.Exception.
func ExceptionClass() *Class {
	return corlib.exception
}

// ObjectClass returns System.Object.
func ObjectClass() *Class {
	return corlib.objectClass
}
