package runtime

import (
	stderrors "errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type Vector2f struct {
	X, Y float32
}

type Color int32

const (
	Red Color = iota
	Green
	Blue
)

func TestBindStatic_IntParam(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	add, err := BindStatic[func(int32) (int32, error)](cls, "FunctionWithIntParam")
	if err != nil {
		t.Fatal(err)
	}
	got, err := add(1000)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2337 {
		t.Errorf("FunctionWithIntParam(1000) = %d, want 2337", got)
	}

	var add2 func(int32) (int32, error)
	if err := cls.Bind("FunctionWithIntParam", &add2); err != nil {
		t.Fatal(err)
	}
	if got, _ := add2(-1337); got != 0 {
		t.Errorf("via Bind: %d", got)
	}
}

func TestBindStatic_Void(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	fn, err := BindStatic[func(float32, int32, float32) error](cls, "VoidFunction")
	if err != nil {
		t.Fatal(err)
	}
	if err := fn(1.5, 2, 3.5); err != nil {
		t.Fatal(err)
	}
}

func TestBindStatic_Strings(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	fn, err := BindStatic[func(string) (string, error)](cls, "StringReturnFunction")
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range []string{"", "Hello", "héllo wörld", "emoji 🎉 and 中文"} {
		got, err := fn(in)
		if err != nil {
			t.Fatal(err)
		}
		if want := "The string value was: " + in; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if _, err := fn("bad \xff utf8"); kindOf(err) != errors.KindInvalidUTF8 {
		t.Errorf("invalid UTF-8: got %v", err)
	}

	store, err := BindStatic[func(string) error](cls, "FunctionWithStringParam")
	if err != nil {
		t.Fatal(err)
	}
	if err := store("remembered"); err != nil {
		t.Fatal(err)
	}
	last, err := GetStaticFieldValue[string](cls, "lastString")
	if err != nil {
		t.Fatal(err)
	}
	if last != "remembered" {
		t.Errorf("lastString = %q", last)
	}
}

func TestBindStatic_Exception(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	throw, err := BindStatic[func() error](cls, "ExceptionFunction")
	if err != nil {
		t.Fatal(err)
	}
	err = throw()
	if kindOf(err) != errors.KindManagedException {
		t.Fatalf("got %v, want managed_exception", err)
	}
	var me *errors.ManagedException
	if !stderrors.As(err, &me) {
		t.Fatal("cause is not a ManagedException")
	}
	if me.Type != "System.Exception" || me.Message != "Hello exception" {
		t.Errorf("exception = %s: %s", me.Type, me.Message)
	}

	// The result is not decoded when the call raises.
	arg, err := BindStatic[func(int32) (int32, error)](cls, "ArgumentExceptionFunction")
	if err != nil {
		t.Fatal(err)
	}
	got, err := arg(5)
	if got != 0 || !stderrors.As(err, &me) || me.Type != "System.ArgumentException" {
		t.Errorf("got %d, %v", got, err)
	}
}

func TestBindStatic_ExceptionLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	e := newTestEnv(t)
	throw, err := BindStatic[func() error](e.class(t, "ClassInstanceTest"), "ExceptionFunction")
	if err != nil {
		t.Fatal(err)
	}
	if err := throw(); kindOf(err) != errors.KindManagedException {
		t.Fatalf("got %v", err)
	}

	entries := logs.FilterMessage("managed exception").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d managed exceptions, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if method, _ := fields["method"].(string); !strings.HasPrefix(method, "ClassInstanceTest::ExceptionFunction") {
		t.Errorf("method = %v", fields["method"])
	}
	if fields["type"] != "System.Exception" || fields["message"] != "Hello exception" {
		t.Errorf("type = %v message = %v", fields["type"], fields["message"])
	}
}

func TestBind_Mismatch(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")
	obj := e.instance(t)

	tests := []struct {
		name string
		bind func() error
		want errors.Kind
	}{
		{"parameter type", func() error {
			_, err := BindStatic[func(string) (int32, error)](cls, "FunctionWithIntParam")
			return err
		}, errors.KindTypeMismatch},
		{"result type", func() error {
			_, err := BindStatic[func(int32) (string, error)](cls, "FunctionWithIntParam")
			return err
		}, errors.KindTypeMismatch},
		{"missing result", func() error {
			_, err := BindStatic[func(int32) error](cls, "FunctionWithIntParam")
			return err
		}, errors.KindTypeMismatch},
		{"no error result", func() error {
			_, err := BindStatic[func(int32) int32](cls, "FunctionWithIntParam")
			return err
		}, errors.KindTypeMismatch},
		{"static via instance", func() error {
			_, err := BindMethod[func(int32) (int32, error)](obj, "FunctionWithIntParam")
			return err
		}, errors.KindTypeMismatch},
		{"instance via class", func() error {
			_, err := BindStatic[func(int32) error](cls, "MethodWithParameter")
			return err
		}, errors.KindTypeMismatch},
		{"unregistered type", func() error {
			_, err := BindStatic[func(Vector2f) error](cls, "FunctionWithIntParam")
			return err
		}, errors.KindUnsupported},
		{"not a function pointer", func() error {
			var n int
			return cls.Bind("FunctionWithIntParam", &n)
		}, errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.bind(); kindOf(err) != tt.want {
				t.Errorf("got %v, want %s", err, tt.want)
			}
		})
	}
}

func TestBindMethod_Instance(t *testing.T) {
	e := newTestEnv(t)
	obj := e.instance(t)

	call, err := BindMethod[func() error](obj, "Method")
	if err != nil {
		t.Fatal(err)
	}
	if err := call(); err != nil {
		t.Fatal(err)
	}

	var ret func(string, int32) (string, error)
	if err := obj.Bind("MethodWithParameterAndReturnValue", &ret); err != nil {
		t.Fatal(err)
	}
	got, err := ret("test", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Return Value: test" {
		t.Errorf("got %q", got)
	}
}

func TestEcho_Identity(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "Tests.Echo")

	check := func(t *testing.T, fnType reflect.Type, values ...any) {
		t.Helper()
		fn, err := bindThunk(cls, nil, "Identity", fnType)
		if err != nil {
			t.Fatalf("bind %v: %v", fnType, err)
		}
		for _, v := range values {
			out := fn.Call([]reflect.Value{reflect.ValueOf(v)})
			if err, _ := out[1].Interface().(error); err != nil {
				t.Fatalf("Identity(%v): %v", v, err)
			}
			if got := out[0].Interface(); !reflect.DeepEqual(got, v) {
				t.Errorf("Identity(%v) = %v", v, got)
			}
		}
	}

	identity := func(v any) reflect.Type {
		t := reflect.TypeOf(v)
		return reflect.FuncOf([]reflect.Type{t}, []reflect.Type{t, errorType}, false)
	}

	cases := [][]any{
		{true, false},
		{transcoder.Char('A'), transcoder.Char(0x263A)},
		{int8(math.MinInt8), int8(math.MaxInt8)},
		{uint8(0), uint8(math.MaxUint8)},
		{int16(math.MinInt16), int16(math.MaxInt16)},
		{uint16(0), uint16(math.MaxUint16)},
		{int32(math.MinInt32), int32(0), int32(math.MaxInt32)},
		{uint32(0), uint32(math.MaxUint32)},
		{int64(math.MinInt64), int64(math.MaxInt64)},
		{uint64(0), uint64(math.MaxUint64)},
		{int(-42), int(math.MaxInt)},
		{uint(0), uint(math.MaxUint)},
		{float32(-1.5), float32(math.MaxFloat32), float32(math.SmallestNonzeroFloat32)},
		{float64(math.Pi), math.Inf(-1), float64(math.MaxFloat64)},
		{"", "plain", "ünïcödé", "🎉"},
	}
	for _, values := range cases {
		t.Run(reflect.TypeOf(values[0]).String(), func(t *testing.T) {
			check(t, identity(values[0]), values...)
		})
	}
}

func TestEcho_NaN(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "Tests.Echo")

	fn, err := BindStatic[func(float64) (float64, error)](cls, "Identity")
	if err != nil {
		t.Fatal(err)
	}
	got, err := fn(math.NaN())
	if err != nil || !math.IsNaN(got) {
		t.Errorf("Identity(NaN) = %v, %v", got, err)
	}
}

func TestPOD_MethodPodAR(t *testing.T) {
	e := newTestEnv(t)
	if err := RegisterPOD[Vector2f](e.rt, e.class(t, "Tests.Vector2f")); err != nil {
		t.Fatal(err)
	}
	obj := e.instance(t)

	fn, err := BindMethod[func(Vector2f) (Vector2f, error)](obj, "MethodPodAR")
	if err != nil {
		t.Fatal(err)
	}
	got, err := fn(Vector2f{X: 12, Y: 15})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Vector2f{X: 165, Y: 7}, got); diff != "" {
		t.Errorf("MethodPodAR mismatch (-want +got):\n%s", diff)
	}

	echo, err := BindStatic[func(Vector2f) (Vector2f, error)](e.class(t, "Tests.Echo"), "Identity")
	if err != nil {
		t.Fatal(err)
	}
	in := Vector2f{X: -3.25, Y: 1e9}
	if got, err := echo(in); err != nil || got != in {
		t.Errorf("Identity(%v) = %v, %v", in, got, err)
	}
}

func TestPOD_LayoutMismatch(t *testing.T) {
	e := newTestEnv(t)

	type wrong struct {
		X float64
		Y float32
	}
	err := RegisterPOD[wrong](e.rt, e.class(t, "Tests.Vector2f"))
	if kindOf(err) != errors.KindLayoutMismatch {
		t.Errorf("got %v, want layout_mismatch", err)
	}
}

func TestPOD_Mapped(t *testing.T) {
	e := newTestEnv(t)

	type point struct{ A, B float64 }
	err := RegisterMapped(e.rt, e.class(t, "Tests.Vector2f"),
		func(p point) Vector2f { return Vector2f{X: float32(p.A), Y: float32(p.B)} },
		func(v Vector2f) point { return point{A: float64(v.X), B: float64(v.Y)} },
	)
	if err != nil {
		t.Fatal(err)
	}
	obj := e.instance(t)
	fn, err := BindMethod[func(point) (point, error)](obj, "MethodPodAR")
	if err != nil {
		t.Fatal(err)
	}
	got, err := fn(point{A: 12, B: 15})
	if err != nil {
		t.Fatal(err)
	}
	if got != (point{A: 165, B: 7}) {
		t.Errorf("got %+v", got)
	}
}

func TestEnum_NextColor(t *testing.T) {
	e := newTestEnv(t)
	if err := RegisterEnum[Color](e.rt, e.class(t, "Tests.Color")); err != nil {
		t.Fatal(err)
	}
	if err := RegisterEnum[Color](e.rt, e.class(t, "Tests.Color")); kindOf(err) != errors.KindRegistration {
		t.Errorf("second registration: got %v", err)
	}
	if err := RegisterEnum[Color](e.rt, e.class(t, "ClassInstanceTest")); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("reference class as enum: got %v", err)
	}

	next, err := BindStatic[func(Color) (Color, error)](e.class(t, "ClassInstanceTest"), "NextColor")
	if err != nil {
		t.Fatal(err)
	}
	for in, want := range map[Color]Color{Red: Green, Green: Blue, Blue: Red} {
		got, err := next(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("NextColor(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestMethod_InvokeDynamic(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	m, err := cls.MethodDesc("FunctionWithIntParam(int)")
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsStatic() || m.Arity() != 1 || m.FullName() != "ClassInstanceTest::FunctionWithIntParam(int)" {
		t.Errorf("method = %s static=%v", m.FullName(), m.IsStatic())
	}

	got, err := m.Invoke(nil, int32(1000))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(2337) {
		t.Errorf("Invoke = %v (%T)", got, got)
	}

	// Untyped Go numbers convert to the parameter type.
	if got, err := m.Invoke(nil, 1); err != nil || got != int32(1338) {
		t.Errorf("Invoke(int) = %v, %v", got, err)
	}

	if _, err := m.Invoke(nil); kindOf(err) != errors.KindArity {
		t.Errorf("wrong arity: got %v", err)
	}
	if _, err := m.Invoke(nil, "x"); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("wrong type: got %v", err)
	}

	obj := e.instance(t)
	ret, err := obj.Invoke("MethodWithParameterAndReturnValue", "dyn", int32(1))
	if err != nil {
		t.Fatal(err)
	}
	if ret != "Return Value: dyn" {
		t.Errorf("got %v", ret)
	}
	if ret, err := obj.Invoke("Method"); err != nil || ret != nil {
		t.Errorf("void Invoke = %v, %v", ret, err)
	}

	inst, err := cls.Method("MethodWithParameter", 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Invoke(nil, int32(1)); kindOf(err) != errors.KindNilHandle {
		t.Errorf("instance method without receiver: got %v", err)
	}

	if _, err := m.Invoke(obj, int32(1)); kindOf(err) != errors.KindInvalidInput {
		t.Errorf("static method with receiver: got %v", err)
	}
	if _, err := obj.Invoke("FunctionWithIntParam", int32(1)); kindOf(err) != errors.KindInvalidInput {
		t.Errorf("static method through an object: got %v", err)
	}
}

func TestMethod_InvokeDynamicValueTypes(t *testing.T) {
	e := newTestEnv(t)
	if err := RegisterPOD[Vector2f](e.rt, e.class(t, "Tests.Vector2f")); err != nil {
		t.Fatal(err)
	}
	obj := e.instance(t)

	ret, err := obj.Invoke("MethodPodAR", Vector2f{X: 12, Y: 15})
	if err != nil {
		t.Fatal(err)
	}
	boxed, ok := ret.(*Object)
	if !ok {
		t.Fatalf("value type result is %T, want *Object", ret)
	}
	if boxed.Class().FullName() != "Tests.Vector2f" {
		t.Errorf("boxed class = %s", boxed.Class().FullName())
	}
	v, err := Unbox[Vector2f](boxed)
	if err != nil {
		t.Fatal(err)
	}
	if v != (Vector2f{X: 165, Y: 7}) {
		t.Errorf("unboxed %+v", v)
	}
	if _, err := Unbox[int32](boxed); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("Unbox to wrong type: got %v", err)
	}

	if _, err := obj.Invoke("MethodPodAR", nil); kindOf(err) != errors.KindNilHandle {
		t.Errorf("nil value type argument: got %v", err)
	}
}

func TestClass_New(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	for i := 0; i < 3; i++ {
		if _, err := cls.New(); err != nil {
			t.Fatal(err)
		}
	}
	n, err := GetStaticFieldValue[int32](cls, "instances")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("instances = %d, want 3", n)
	}

	if _, err := cls.New("no", "such", "ctor"); kindOf(err) != errors.KindNotFound {
		t.Errorf("missing constructor: got %v", err)
	}

	exc, err := e.rt.RootDomain().Corlib().Class("System.Exception")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := exc.New("built from Go")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := GetPropertyValue[string](obj, "Message")
	if err != nil {
		t.Fatal(err)
	}
	if msg != "built from Go" {
		t.Errorf("Message = %q", msg)
	}
}
