package transcoder

import (
	stderrors "errors"
	"reflect"
	"testing"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/monotest"
	"github.com/wippyai/mono-runtime/resource"
)

// testEnv is a registry and compiler wired to an initialized monotest
// runtime with the sample assemblies loaded.
type testEnv struct {
	rt       *monotest.Runtime
	ctx      *Context
	img      monoruntime.ImageRef
	core     monoruntime.ImageRef
	registry *Registry
	compiler *Compiler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rt := monotest.New()
	monotest.LoadFixtures(rt)
	root, err := rt.Init(monoruntime.InitOptions{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	reg := NewRegistry(resource.NewTable())
	t.Cleanup(func() {
		rt.Cleanup(root)
		_ = reg.Close()
	})

	tests := rt.OpenAssembly(root, monotest.TestsAssemblyPath)
	core := rt.OpenAssembly(root, monotest.CoreAssemblyPath)
	if tests == nil || core == nil {
		t.Fatal("fixture assemblies not found")
	}

	return &testEnv{
		rt:       rt,
		ctx:      &Context{API: rt, Domain: root},
		img:      rt.AssemblyImage(tests),
		core:     rt.AssemblyImage(core),
		registry: reg,
		compiler: NewCompiler(reg),
	}
}

func (e *testEnv) class(t *testing.T, namespace, name string) monoruntime.ClassRef {
	t.Helper()
	c := e.rt.ClassFromName(e.img, namespace, name)
	if c == nil {
		t.Fatalf("class %s.%s not found", namespace, name)
	}
	return c
}

// newInstance allocates cls and runs its default constructor.
func (e *testEnv) newInstance(t *testing.T, cls monoruntime.ClassRef) monoruntime.ObjectRef {
	t.Helper()
	obj := e.rt.NewObject(e.ctx.Domain, cls)
	if ctor := e.rt.ClassMethod(cls, ".ctor", 0); ctor != nil {
		if _, exc := e.rt.Invoke(ctor, obj, nil); exc != nil {
			t.Fatal("constructor raised")
		}
	}
	return obj
}

// call resolves desc on cls with the parameter types of fn, invokes it and
// decodes the result. fn is only used for its type.
func (e *testEnv) call(t *testing.T, cls monoruntime.ClassRef, this monoruntime.ObjectRef, name string, fn any, args ...any) (reflect.Value, error) {
	t.Helper()
	sig, err := e.compiler.CompileCall(reflect.TypeOf(fn))
	if err != nil {
		t.Fatalf("CompileCall: %v", err)
	}
	desc := sig.Descriptor(name)
	m := e.rt.FindMethod(cls, desc)
	if m == nil {
		t.Fatalf("method %s not found", desc)
	}

	f := AcquireFrame(len(args))
	defer f.Release()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	if err := sig.EncodeArgs(e.ctx, in, f); err != nil {
		return reflect.Value{}, err
	}

	ret, exc := e.rt.Invoke(m, this, f.Args)
	if exc != nil {
		return reflect.Value{}, errors.Exception(desc, e.exception(exc))
	}
	return sig.DecodeResult(e.ctx, ret)
}

func (e *testEnv) exception(exc monoruntime.ObjectRef) *errors.ManagedException {
	cls := e.rt.ObjectClass(exc)
	out := &errors.ManagedException{Type: fullName(e.rt, cls)}
	if p := e.rt.ClassProperty(cls, "Message"); p != nil {
		if msg, raised := e.rt.Invoke(e.rt.PropertyGetter(p), exc, nil); raised == nil && msg != nil {
			out.Message = DecodeUTF16(e.rt.StringUnits(msg))
		}
	}
	return out
}

// proxy is a Go handle for an arbitrary managed object, used as the
// receiver of internal calls.
type proxy struct {
	ref monoruntime.ObjectRef
}

func (e *testEnv) registerProxy(t *testing.T) {
	t.Helper()
	conv := NewHandleConverter(reflect.TypeFor[*proxy](), monoruntime.TypeObject, "object", HandleFuncs{
		Wrap: func(_ *Context, ref monoruntime.ObjectRef) (reflect.Value, error) {
			return reflect.ValueOf(&proxy{ref: ref}), nil
		},
		Unwrap: func(v reflect.Value) (monoruntime.ObjectRef, error) {
			return v.Interface().(*proxy).ref, nil
		},
	})
	if err := e.registry.Register(conv); err != nil {
		t.Fatalf("Register proxy: %v", err)
	}
}

// addInternalCall adapts fn and registers it with the runtime.
func (e *testEnv) addInternalCall(t *testing.T, name string, fn any, hasThis bool) *Adapter {
	t.Helper()
	a, err := NewAdapter(e.compiler, name, fn, hasThis)
	if err != nil {
		t.Fatalf("NewAdapter(%s): %v", name, err)
	}
	if err := e.rt.AddInternalCall(a.NativeCall(func() *Context { return e.ctx })); err != nil {
		t.Fatalf("AddInternalCall(%s): %v", name, err)
	}
	return a
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
