package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:       PhaseEncode,
				Kind:        KindTypeMismatch,
				Path:        []string{"Tests.Vector2f", "x"},
				GoType:      "int32",
				ManagedType: "single",
				Detail:      "field kinds differ",
			},
			contains: []string{"[encode]", "type_mismatch", "Tests.Vector2f.x", "int32", "single", "field kinds differ"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindNilHandle,
			},
			contains: []string{"[decode]", "nil_handle"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInvoke,
				Kind:   KindManagedException,
				Detail: "boom",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[invoke]", "managed_exception", "boom", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseLookup,
		Kind:  KindNotFound,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseLookup, Kind: KindNotFound}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseLoad, Kind: KindNotFound}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseLookup, Kind: KindNilHandle}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseLookup, Kind: KindNotFound}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseEncode, KindTypeMismatch).
		Path("Tests.Vector2f", "y").
		GoType("string").
		ManagedType("single").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "single", "string").
		Build()

	if err.Phase != PhaseEncode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseEncode)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "Tests.Vector2f" || err.Path[1] != "y" {
		t.Errorf("Path = %v, want [Tests.Vector2f y]", err.Path)
	}
	if err.GoType != "string" {
		t.Errorf("GoType = %v, want 'string'", err.GoType)
	}
	if err.ManagedType != "single" {
		t.Errorf("ManagedType = %v, want 'single'", err.ManagedType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected single, got string" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("AssemblyNotFound", func(t *testing.T) {
		err := AssemblyNotFound("doesnt_exist_12345.dll")
		if err.Kind != KindNotFound || err.Phase != PhaseLoad {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Error(), "could not open assembly with path : doesnt_exist_12345.dll") {
			t.Errorf("message %q does not name the path", err.Error())
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseLookup, "field", "someInvalidField", "ClassInstanceTest")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		for _, s := range []string{"someInvalidField", "ClassInstanceTest"} {
			if !strings.Contains(err.Error(), s) {
				t.Errorf("message %q does not contain %q", err.Error(), s)
			}
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(PhaseEncode, []string{"str"}, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
	})

	t.Run("Arity", func(t *testing.T) {
		err := Arity(PhaseInvoke, "VoidFunction", 3, 1)
		if err.Kind != KindArity {
			t.Errorf("Kind = %v, want %v", err.Kind, KindArity)
		}
		if !strings.Contains(err.Detail, "expected 3") {
			t.Errorf("Detail = %v", err.Detail)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseCompile, "chan int")
		if err.Kind != KindUnsupported || err.GoType != "chan int" {
			t.Errorf("got %+v", err)
		}
	})

	t.Run("AlreadyInitialized", func(t *testing.T) {
		err := AlreadyInitialized("runtime")
		if err.Kind != KindAlreadyInitialized || err.Phase != PhaseInit {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("AlreadyShutdown", func(t *testing.T) {
		err := AlreadyShutdown("mono jit")
		if err.Kind != KindAlreadyShutdown || err.Phase != PhaseInit {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Error(), "mono jit already shut down") {
			t.Errorf("message = %q", err.Error())
		}
	})
}

func TestManagedException(t *testing.T) {
	exc := &ManagedException{Type: "System.Exception", Message: "Hello exception"}
	err := Exception("ExceptionFunction", exc)

	if err.Kind != KindManagedException {
		t.Fatalf("Kind = %v", err.Kind)
	}

	var got *ManagedException
	if !errors.As(err, &got) {
		t.Fatal("errors.As did not find ManagedException")
	}
	if got.Message != "Hello exception" {
		t.Errorf("Message = %q", got.Message)
	}
	if s := got.Error(); s != "System.Exception: Hello exception" {
		t.Errorf("Error() = %q", s)
	}
	if s := (&ManagedException{Type: "X"}).Error(); s != "X" {
		t.Errorf("Error() = %q", s)
	}
}

func TestPanic(t *testing.T) {
	err := Panic(PhaseInvoke, "Tests.MyObject::DoStuff", "boom")
	if err.Kind != KindPanic || err.Value != "boom" {
		t.Fatalf("got %+v", err)
	}
	if !strings.Contains(err.Error(), "panic: boom") {
		t.Errorf("message %q", err.Error())
	}
}
