package main

import (
	stderrors "errors"
	"strings"
	"testing"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/config"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/monotest"
	"github.com/wippyai/mono-runtime/transcoder"
)

func newTestSession(t *testing.T, class string) *session {
	t.Helper()
	mono := monotest.New()
	monotest.LoadFixtures(mono)
	s, err := openSession(mono, config.Default(), monotest.TestsAssemblyPath, class)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func TestOpenSession_MissingClass(t *testing.T) {
	mono := monotest.New()
	monotest.LoadFixtures(mono)

	_, err := openSession(mono, config.Default(), monotest.TestsAssemblyPath, "Tests.Nope")
	if kindOf(err) != errors.KindNotFound {
		t.Fatalf("got %v, want not_found", err)
	}
	if mono.Initialized() {
		t.Error("failed session left the runtime initialized")
	}
}

func TestSession_Find(t *testing.T) {
	s := newTestSession(t, "Tests.Echo")

	if _, err := s.find("Identity", 1); kindOf(err) != errors.KindInvalidInput {
		t.Errorf("overloaded name: got %v", err)
	} else if !strings.Contains(err.Error(), "Identity(int)") {
		t.Errorf("overload list missing from %v", err)
	}

	m, err := s.find("Identity(int)", 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Descriptor() != "Identity(int)" {
		t.Errorf("Descriptor = %s", m.Descriptor())
	}

	m, err = s.find("Length", 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "Length" {
		t.Errorf("Name = %s", m.Name())
	}

	if _, err := s.find("Length", 2); kindOf(err) != errors.KindNotFound {
		t.Errorf("wrong argument count: got %v", err)
	}
}

func TestSession_StaticMethodsSorted(t *testing.T) {
	s := newTestSession(t, "Tests.Echo")

	methods := s.staticMethods()
	if len(methods) == 0 {
		t.Fatal("no static methods")
	}
	for i := 1; i < len(methods); i++ {
		if methods[i-1].Descriptor() > methods[i].Descriptor() {
			t.Errorf("%s listed before %s", methods[i-1].Descriptor(), methods[i].Descriptor())
		}
	}
}

func TestSession_Call(t *testing.T) {
	s := newTestSession(t, "Tests.Echo")

	tests := []struct {
		desc string
		args []string
		want string
	}{
		{"Identity(int)", []string{"42"}, "42"},
		{"Identity(int)", []string{"0x10"}, "16"},
		{"Identity(bool)", []string{"true"}, "true"},
		{"Identity(char)", []string{"é"}, "'é'"},
		{"Identity(double)", []string{"1.5"}, "1.5"},
		{"Identity(string)", []string{"hi there"}, `"hi there"`},
		{"Length(string)", []string{"héllo"}, "5"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			m, err := s.find(tt.desc, len(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			got, err := s.call(m, tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSession_CallErrors(t *testing.T) {
	s := newTestSession(t, "Tests.Echo")

	m, err := s.find("Identity(int)", 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.call(m, nil); kindOf(err) != errors.KindArity {
		t.Errorf("missing argument: got %v", err)
	}
	if _, err := s.call(m, []string{"forty"}); err == nil {
		t.Error("unparsable argument was accepted")
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code monoruntime.TypeCode
		want any
		kind errors.Kind
	}{
		{"sbyte", "-8", monoruntime.TypeI1, int8(-8), ""},
		{"byte", "255", monoruntime.TypeU1, uint8(255), ""},
		{"ushort", "0xffff", monoruntime.TypeU2, uint16(0xffff), ""},
		{"long", "-9000000000", monoruntime.TypeI8, int64(-9000000000), ""},
		{"single", "0.25", monoruntime.TypeR4, float32(0.25), ""},
		{"intptr", "7", monoruntime.TypeI, int(7), ""},
		{"uintptr", "7", monoruntime.TypeU, uint(7), ""},
		{"char", "x", monoruntime.TypeChar, transcoder.Char('x'), ""},
		{"two chars", "xy", monoruntime.TypeChar, nil, errors.KindInvalidInput},
		{"astral char", "𝄞", monoruntime.TypeChar, nil, errors.KindInvalidInput},
		{"object", "x", monoruntime.TypeObject, nil, errors.KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArg(tt.raw, monoruntime.TypeInfo{Code: tt.code, Name: tt.code.String()})
			if tt.kind != "" {
				if kindOf(err) != tt.kind {
					t.Fatalf("got %v, want %s", err, tt.kind)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	if _, err := parseArg("300", monoruntime.TypeInfo{Code: monoruntime.TypeU1}); err == nil {
		t.Error("out of range byte was accepted")
	}
}
