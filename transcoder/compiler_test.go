package transcoder

import (
	"reflect"
	"testing"

	"github.com/wippyai/mono-runtime/errors"
)

func TestCompiler_Descriptor(t *testing.T) {
	e := newTestEnv(t)
	_ = e.registry.RegisterEnum(reflect.TypeFor[color](), "Tests.Color")

	tests := []struct {
		fn   any
		want string
	}{
		{(func() error)(nil), "M()"},
		{(func(int32) (int32, error))(nil), "M(int)"},
		{(func(float32, int32, float32) error)(nil), "M(single,int,single)"},
		{(func(string, int32) (string, error))(nil), "M(string,int)"},
		{(func(color, bool, Char) error)(nil), "M(Tests.Color,bool,char)"},
		{(func(int64, uint64, int, uintptr) error)(nil), "M(long,ulong,intptr,uintptr)"},
	}

	for _, tt := range tests {
		sig, err := e.compiler.CompileCall(reflect.TypeOf(tt.fn))
		if err != nil {
			t.Fatalf("CompileCall(%T): %v", tt.fn, err)
		}
		if got := sig.Descriptor("M"); got != tt.want {
			t.Errorf("%T: got %q, want %q", tt.fn, got, tt.want)
		}
	}
}

func TestCompiler_Shape(t *testing.T) {
	e := newTestEnv(t)

	sig, err := e.compiler.CompileCall(reflect.TypeFor[func(string, int32) (string, error)]())
	if err != nil {
		t.Fatal(err)
	}
	if sig.Arity() != 2 || sig.IsVoid() || !sig.HasError {
		t.Errorf("arity=%d void=%v hasError=%v", sig.Arity(), sig.IsVoid(), sig.HasError)
	}

	void, err := e.compiler.CompileCall(reflect.TypeFor[func() error]())
	if err != nil {
		t.Fatal(err)
	}
	if !void.IsVoid() || void.Arity() != 0 {
		t.Error("func() error should be void with no parameters")
	}
}

func TestCompiler_Cache(t *testing.T) {
	e := newTestEnv(t)
	typ := reflect.TypeFor[func(int32) (int32, error)]()

	a, err := e.compiler.CompileCall(typ)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.compiler.CompileCall(typ)
	if a != b {
		t.Error("second compile should hit the cache")
	}
	native, err := e.compiler.CompileNative(typ, false)
	if err != nil {
		t.Fatal(err)
	}
	if native == a {
		t.Error("call and native signatures must be cached separately")
	}
}

func TestCompiler_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.registerProxy(t)

	tests := []struct {
		name    string
		typ     reflect.Type
		native  bool
		hasThis bool
		kind    errors.Kind
	}{
		{"not a function", reflect.TypeFor[int](), false, false, errors.KindTypeMismatch},
		{"no trailing error", reflect.TypeFor[func(int32) int32](), false, false, errors.KindTypeMismatch},
		{"variadic", reflect.TypeFor[func(...int32) error](), false, false, errors.KindUnsupported},
		{"two results", reflect.TypeFor[func() (int32, int32, error)](), false, false, errors.KindUnsupported},
		{"unsupported param", reflect.TypeFor[func(chan int) error](), false, false, errors.KindUnsupported},
		{"unsupported result", reflect.TypeFor[func() (map[string]int, error)](), false, false, errors.KindUnsupported},
		{
			"too many native params",
			reflect.TypeFor[func(int32, int32, int32, int32, int32, int32, int32, int32, int32, int32, int32, int32, int32)](),
			true, false, errors.KindArity,
		},
		{"missing receiver", reflect.TypeFor[func()](), true, true, errors.KindArity},
		{"value receiver", reflect.TypeFor[func(int32)](), true, true, errors.KindTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.native {
				_, err = e.compiler.CompileNative(tt.typ, tt.hasThis)
			} else {
				_, err = e.compiler.CompileCall(tt.typ)
			}
			if kindOf(err) != tt.kind {
				t.Errorf("got %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestCompiler_MaxArity(t *testing.T) {
	e := newTestEnv(t)
	e.registerProxy(t)

	in := []reflect.Type{reflect.TypeFor[*proxy]()}
	for range MaxArity {
		in = append(in, reflect.TypeFor[int32]())
	}
	fn := reflect.FuncOf(in, nil, false)

	sig, err := e.compiler.CompileNative(fn, true)
	if err != nil {
		t.Fatalf("receiver plus %d params: %v", MaxArity, err)
	}
	if sig.Arity() != MaxArity || sig.Receiver == nil {
		t.Errorf("arity = %d, receiver = %v", sig.Arity(), sig.Receiver)
	}
}

func TestSignature_Out(t *testing.T) {
	e := newTestEnv(t)
	sig, _ := e.compiler.CompileCall(reflect.TypeFor[func() (int32, error)]())

	out := sig.Out(reflect.ValueOf(int32(5)), nil)
	if len(out) != 2 || out[0].Int() != 5 || !out[1].IsNil() {
		t.Errorf("success out = %v", out)
	}

	failure := errors.InvalidInput(errors.PhaseInvoke, "boom")
	out = sig.Out(reflect.ValueOf(int32(5)), failure)
	if out[0].Int() != 0 {
		t.Error("value should be zeroed on error")
	}
	if out[1].Interface().(error) != failure {
		t.Error("error not passed through")
	}
}

func TestSignature_EncodeArgsArity(t *testing.T) {
	e := newTestEnv(t)
	sig, _ := e.compiler.CompileCall(reflect.TypeFor[func(int32, int32) error]())

	f := AcquireFrame(2)
	defer f.Release()
	err := sig.EncodeArgs(e.ctx, []reflect.Value{reflect.ValueOf(int32(1))}, f)
	if kindOf(err) != errors.KindArity {
		t.Errorf("got %v, want arity", err)
	}
}
