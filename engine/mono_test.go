package engine

import (
	stderrors "errors"
	"os"
	"slices"
	"testing"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/config"
	"github.com/wippyai/mono-runtime/errors"
)

// openRuntime loads the library named by MONO_RUNTIME_LIBRARY. The runtime
// can only be initialized once per process, so the whole smoke test runs
// against a single instance.
func openRuntime(t *testing.T) *Mono {
	t.Helper()
	lib := os.Getenv(config.EnvLibrary)
	if lib == "" {
		t.Skipf("%s not set", config.EnvLibrary)
	}
	m, err := Open(lib)
	if err != nil {
		t.Skipf("runtime library unavailable: %v", err)
	}
	return m
}

func TestMono_InitAfterCleanup(t *testing.T) {
	m := &Mono{closed: true}

	root, err := m.Init(monoruntime.InitOptions{RootDomain: "again"})
	if root != nil {
		t.Error("Init after Cleanup returned a domain")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindAlreadyShutdown {
		t.Fatalf("got %v, want already_shutdown", err)
	}
}

func TestMono_Smoke(t *testing.T) {
	m := openRuntime(t)

	root, err := m.Init(monoruntime.InitOptions{RootDomain: "engine-test"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer m.Cleanup(root)

	if m.RootDomain() != root {
		t.Error("RootDomain differs from the domain returned by Init")
	}

	corlib := m.Corlib()
	if corlib == nil {
		t.Fatal("corlib image is nil")
	}

	t.Run("class metadata", func(t *testing.T) {
		str := m.ClassFromName(corlib, "System", "String")
		if str == nil {
			t.Fatal("System.String not found")
		}
		if m.ClassName(str) != "String" || m.ClassNamespace(str) != "System" {
			t.Errorf("got %s.%s", m.ClassNamespace(str), m.ClassName(str))
		}
		if m.ClassIsValueType(str) {
			t.Error("System.String reported as value type")
		}
		if m.ClassMethod(str, "Concat", 2) == nil {
			t.Error("String.Concat/2 not found")
		}
		if m.FindMethod(str, "Concat(string,string)") == nil {
			t.Error("Concat(string,string) descriptor not resolved")
		}
		if m.ClassFromName(corlib, "System", "NoSuchType12345") != nil {
			t.Error("lookup of a missing class returned a handle")
		}

		i32 := m.ClassFromName(corlib, "System", "Int32")
		if !m.ClassIsValueType(i32) || m.ClassValueSize(i32) != 4 {
			t.Errorf("System.Int32 value type %v size %d", m.ClassIsValueType(i32), m.ClassValueSize(i32))
		}
	})

	t.Run("strings", func(t *testing.T) {
		units := []uint16{'h', 0xe9, 'l', 'l', 'o'}
		s := m.NewString(root, units)
		got := m.StringUnits(s)
		if !slices.Equal(got, units) {
			t.Errorf("round trip = %v, want %v", got, units)
		}
		if n := len(m.StringUnits(m.NewString(root, nil))); n != 0 {
			t.Errorf("empty string has %d units", n)
		}
	})

	t.Run("invoke", func(t *testing.T) {
		str := m.ClassFromName(corlib, "System", "String")
		concat := m.FindMethod(str, "Concat(string,string)")
		a, b := m.NewString(root, []uint16{'a'}), m.NewString(root, []uint16{'b'})
		ret, exc := m.Invoke(concat, nil, []unsafe.Pointer{unsafe.Pointer(a), unsafe.Pointer(b)})
		if exc != nil {
			t.Fatal("Concat raised")
		}
		if got := m.StringUnits(ret); len(got) != 2 || got[0] != 'a' || got[1] != 'b' {
			t.Errorf("Concat = %v", got)
		}
	})

	t.Run("gc handles", func(t *testing.T) {
		s := m.NewString(root, []uint16{'x'})
		h := m.NewGCHandle(s, false)
		if h == 0 {
			t.Fatal("zero gc handle")
		}
		if m.GCHandleTarget(h) != s {
			t.Error("handle target differs")
		}
		m.FreeGCHandle(h)
	})
}
