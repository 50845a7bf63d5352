package transcoder

import (
	"reflect"
	"testing"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/resource"
)

// setupWrapper registers *vec2 as a shared wrapper for Tests.WrapperVector2f
// together with the internal calls the managed proxy needs.
func setupWrapper(t *testing.T, e *testEnv) monoruntime.ClassRef {
	t.Helper()
	cls := e.class(t, "Tests", "WrapperVector2f")
	handle := e.rt.ClassField(cls, "handle")
	if err := e.registry.RegisterWrapper(e.rt, reflect.TypeFor[*vec2](), cls, handle); err != nil {
		t.Fatalf("RegisterWrapper: %v", err)
	}
	e.registerProxy(t)

	e.addInternalCall(t, "MonoRt.NativeObject::ReleaseHandle", func(tok uintptr) {
		e.registry.Release(resource.Token(tok))
	}, false)
	e.addInternalCall(t, "Tests.WrapperVector2f::.ctor(single,single)", func(this *proxy, x, y float32) error {
		return e.registry.Bind(e.ctx, this.ref, &vec2{X: x, Y: y})
	}, true)
	e.addInternalCall(t, "Tests.WrapperVector2f::.ctor(Tests.WrapperVector2f)", func(this *proxy, rhs *vec2) error {
		return e.registry.Bind(e.ctx, this.ref, &vec2{X: rhs.X, Y: rhs.Y})
	}, true)
	return cls
}

func TestWrapper_Identity(t *testing.T) {
	e := newTestEnv(t)
	setupWrapper(t, e)

	conv, err := e.registry.Lookup(reflect.TypeFor[*vec2]())
	if err != nil {
		t.Fatal(err)
	}
	if conv.Kind() != KindWrapper || !conv.ByRef() {
		t.Fatalf("kind = %v", conv.Kind())
	}

	p := &vec2{X: 1, Y: 2}
	f := AcquireFrame(0)
	defer f.Release()

	first, err := conv.Encode(e.ctx, reflect.ValueOf(p), f)
	if err != nil {
		t.Fatal(err)
	}
	second, err := conv.Encode(e.ctx, reflect.ValueOf(p), f)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("each encode should allocate a new proxy")
	}

	table := e.registry.Table()
	if table.Len() != 1 {
		t.Errorf("table holds %d entries, want 1", table.Len())
	}

	for _, slot := range []unsafe.Pointer{first, second} {
		got, err := conv.Decode(e.ctx, slot)
		if err != nil {
			t.Fatal(err)
		}
		if got.Interface().(*vec2) != p {
			t.Error("decode did not return the original pointer")
		}
	}

	var tok uintptr
	e.rt.GetFieldValue(monoruntime.ObjectRef(first), e.rt.ClassField(e.rt.ObjectClass(monoruntime.ObjectRef(first)), "handle"), unsafe.Pointer(&tok))
	if refs := table.Refs(resource.Token(tok)); refs != 2 {
		t.Errorf("refs = %d, want 2", refs)
	}
}

func TestWrapper_Nil(t *testing.T) {
	e := newTestEnv(t)
	setupWrapper(t, e)
	conv, _ := e.registry.Lookup(reflect.TypeFor[*vec2]())

	f := AcquireFrame(0)
	defer f.Release()
	slot, err := conv.Encode(e.ctx, reflect.ValueOf((*vec2)(nil)), f)
	if err != nil || slot != nil {
		t.Errorf("nil encode = %v, %v", slot, err)
	}
	got, err := conv.Decode(e.ctx, nil)
	if err != nil || !got.IsNil() {
		t.Errorf("nil decode = %v, %v", got, err)
	}
}

func TestWrapper_ManagedRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	setupWrapper(t, e)
	cls := e.class(t, "", "ClassInstanceTest")
	obj := e.newInstance(t, cls)

	p := &vec2{X: 3, Y: 4}
	got, err := e.call(t, cls, obj, "Identity", (func(*vec2) (*vec2, error))(nil), p)
	if err != nil {
		t.Fatal(err)
	}
	if got.Interface().(*vec2) != p {
		t.Error("identity through managed code lost the Go pointer")
	}
}

func TestWrapper_ConstructedByManagedCode(t *testing.T) {
	e := newTestEnv(t)
	setupWrapper(t, e)
	cls := e.class(t, "", "ClassInstanceTest")
	obj := e.newInstance(t, cls)

	in := &vec2{X: 12, Y: 15}
	got, err := e.call(t, cls, obj, "MethodPodARW", (func(*vec2) (*vec2, error))(nil), in)
	if err != nil {
		t.Fatalf("MethodPodARW: %v", err)
	}
	out := got.Interface().(*vec2)
	if out == nil {
		t.Fatal("result is nil")
	}
	if out == in {
		t.Error("result should be a distinct allocation")
	}
	if out.X != 55 || out.Y != 66 {
		t.Errorf("got (%v, %v), want (55, 66)", out.X, out.Y)
	}
	if in.X != 12 || in.Y != 15 {
		t.Error("input was modified")
	}
}

func TestWrapper_CopyConstructor(t *testing.T) {
	e := newTestEnv(t)
	wrapper := setupWrapper(t, e)

	in := &vec2{X: 7, Y: 8}
	conv, _ := e.registry.Lookup(reflect.TypeFor[*vec2]())
	f := AcquireFrame(0)
	defer f.Release()
	this, err := conv.Encode(e.ctx, reflect.ValueOf(in), f)
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.call(t, wrapper, monoruntime.ObjectRef(this), "Copy", (func() (*vec2, error))(nil))
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	out := got.Interface().(*vec2)
	if out == in || *out != *in {
		t.Errorf("copy = %p %+v, input %p %+v", out, *out, in, *in)
	}
}

func TestWrapper_ReleasedByFinalizer(t *testing.T) {
	e := newTestEnv(t)
	setupWrapper(t, e)
	conv, _ := e.registry.Lookup(reflect.TypeFor[*vec2]())

	var events []resource.EventType
	e.registry.Table().Subscribe(resource.ObserverFunc(func(ev resource.Event) {
		events = append(events, ev.Type)
	}))

	f := AcquireFrame(0)
	p := &vec2{X: 1, Y: 1}
	for range 3 {
		if _, err := conv.Encode(e.ctx, reflect.ValueOf(p), f); err != nil {
			t.Fatal(err)
		}
	}
	f.Release()

	if e.registry.Table().Len() != 1 {
		t.Fatalf("table len = %d", e.registry.Table().Len())
	}
	want := []resource.EventType{resource.EventAcquired, resource.EventRetained, resource.EventRetained}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("event %d = %v, want %v", i, events[i], w)
		}
	}

	e.rt.Collect()

	if n := e.registry.Table().Len(); n != 0 {
		t.Errorf("table len after collect = %d, want 0", n)
	}
	if last := events[len(events)-1]; last != resource.EventDropped {
		t.Errorf("last event = %v, want dropped", last)
	}
}

func TestWrapper_Bind(t *testing.T) {
	e := newTestEnv(t)
	cls := setupWrapper(t, e)

	obj := e.rt.NewObject(e.ctx.Domain, cls)
	first, second := &vec2{X: 1}, &vec2{X: 2}
	if err := e.registry.Bind(e.ctx, obj, first); err != nil {
		t.Fatal(err)
	}
	if err := e.registry.Bind(e.ctx, obj, second); err != nil {
		t.Fatal(err)
	}
	if n := e.registry.Table().Len(); n != 1 {
		t.Errorf("rebinding should release the previous token, table len = %d", n)
	}

	if err := e.registry.Bind(e.ctx, nil, first); kindOf(err) != errors.KindNilHandle {
		t.Errorf("nil object: %v", err)
	}
	if err := e.registry.Bind(e.ctx, obj, int32(1)); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("non-wrapper value: %v", err)
	}
}

func TestWrapper_TokenFieldType(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "", "ClassInstanceTest")
	err := e.registry.RegisterWrapper(e.rt, reflect.TypeFor[*vec2](), cls, e.rt.ClassField(cls, "someField"))
	if kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("got %v, want type_mismatch", err)
	}
}

type droppedVec struct {
	drops int
}

func (d *droppedVec) Drop() { d.drops++ }

func TestRegistry_CloseDropsLiveValues(t *testing.T) {
	e := newTestEnv(t)
	cls := setupWrapper(t, e)

	var dropped int
	e.registry.Table().Subscribe(resource.ObserverFunc(func(ev resource.Event) {
		if ev.Type == resource.EventDropped {
			dropped++
		}
	}))

	v := &droppedVec{}
	obj := e.rt.NewObject(e.ctx.Domain, cls)
	other := e.rt.NewObject(e.ctx.Domain, cls)
	if err := e.registry.RegisterWrapper(e.rt, reflect.TypeFor[*droppedVec](), cls, e.rt.ClassField(cls, "handle")); err != nil {
		t.Fatal(err)
	}
	if err := e.registry.Bind(e.ctx, obj, v); err != nil {
		t.Fatal(err)
	}
	if err := e.registry.Share(e.ctx, other, obj); err != nil {
		t.Fatal(err)
	}

	if err := e.registry.Close(); err != nil {
		t.Fatal(err)
	}
	if v.drops != 1 {
		t.Errorf("Drop called %d times, want 1", v.drops)
	}
	if dropped != 1 {
		t.Errorf("observer saw %d drops, want 1", dropped)
	}
}
