package runtime

import (
	"testing"

	"github.com/wippyai/mono-runtime/errors"
)

func TestField_Instance(t *testing.T) {
	e := newTestEnv(t)
	obj := e.instance(t)

	got, err := GetFieldValue[int32](obj, "someField")
	if err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Fatalf("someField = %d, want 12", got)
	}

	set, err := BindMethod[func(int32) error](obj, "MethodWithParameter")
	if err != nil {
		t.Fatal(err)
	}
	if err := set(6); err != nil {
		t.Fatal(err)
	}
	if got, _ := GetFieldValue[int32](obj, "someField"); got != 6 {
		t.Errorf("after MethodWithParameter(6): %d", got)
	}

	if err := SetFieldValue(obj, "someField", int32(-99)); err != nil {
		t.Fatal(err)
	}
	if got, _ := GetFieldValue[int32](obj, "someField"); got != -99 {
		t.Errorf("after SetFieldValue: %d", got)
	}
}

func TestField_Errors(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")
	obj := e.instance(t)

	tests := []struct {
		name string
		fn   func() error
		want errors.Kind
	}{
		{"wrong type", func() error { _, err := GetFieldValue[string](obj, "someField"); return err }, errors.KindTypeMismatch},
		{"wrong width", func() error { return SetFieldValue(obj, "someField", int64(1)) }, errors.KindTypeMismatch},
		{"static through instance", func() error { _, err := GetFieldValue[int32](obj, "instances"); return err }, errors.KindInvalidInput},
		{"instance through class", func() error { _, err := GetStaticFieldValue[int32](cls, "someField"); return err }, errors.KindInvalidInput},
		{"nil object", func() error { _, err := GetFieldValue[int32](nil, "someField"); return err }, errors.KindNilHandle},
		{"missing", func() error { return SetFieldValue(obj, "nope", int32(1)) }, errors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); kindOf(err) != tt.want {
				t.Errorf("got %v, want %s", err, tt.want)
			}
		})
	}

	// A failed store leaves the field untouched.
	if got, _ := GetFieldValue[int32](obj, "someField"); got != 12 {
		t.Errorf("someField = %d after failed stores", got)
	}
}

func TestField_Static(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	greeting, err := GetStaticFieldValue[string](cls, "greeting")
	if err != nil {
		t.Fatal(err)
	}
	if greeting != "hello" {
		t.Errorf("greeting = %q, want value set by the static constructor", greeting)
	}

	if err := SetStaticFieldValue(cls, "greeting", "bonjour ☀"); err != nil {
		t.Fatal(err)
	}
	if got, _ := GetStaticFieldValue[string](cls, "greeting"); got != "bonjour ☀" {
		t.Errorf("greeting = %q", got)
	}

	last, err := GetStaticFieldValue[string](cls, "lastString")
	if err != nil {
		t.Fatal(err)
	}
	if last != "" {
		t.Errorf("unset string field = %q, want empty", last)
	}

	if err := SetStaticFieldValue(cls, "greeting", "bad \xc3"); kindOf(err) != errors.KindInvalidUTF8 {
		t.Errorf("invalid UTF-8: got %v", err)
	}
}

func TestField_StringHandle(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "ClassInstanceTest")

	s, err := GetStaticFieldValue[*String](cls, "greeting")
	if err != nil {
		t.Fatal(err)
	}
	if s.Text() != "hello" || s.Len() != 5 {
		t.Errorf("greeting = %q (%d units)", s.Text(), s.Len())
	}

	if err := s.Assign("𝄞 clef"); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 7 {
		t.Errorf("Len = %d, want 7 UTF-16 units", s.Len())
	}
	if err := s.Assign("\xff"); kindOf(err) != errors.KindInvalidUTF8 {
		t.Errorf("Assign invalid UTF-8: got %v", err)
	}
	if s.Text() != "𝄞 clef" {
		t.Errorf("failed Assign changed the text to %q", s.Text())
	}

	// The handle was replaced, not the managed string behind the field.
	if got, _ := GetStaticFieldValue[string](cls, "greeting"); got != "hello" {
		t.Errorf("greeting = %q", got)
	}
	if err := SetStaticFieldValue(cls, "greeting", s); err != nil {
		t.Fatal(err)
	}
	if got, _ := GetStaticFieldValue[string](cls, "greeting"); got != "𝄞 clef" {
		t.Errorf("greeting = %q after storing the handle", got)
	}

	var null *String
	if null.Text() != "" || null.Len() != 0 {
		t.Error("nil string should read as empty")
	}
}

func TestDomain_NewString(t *testing.T) {
	e := newTestEnv(t)
	cls := e.class(t, "Tests.Echo")

	s, err := e.rt.RootDomain().NewString("héllo")
	if err != nil {
		t.Fatal(err)
	}
	length, err := BindStatic[func(*String) (int32, error)](cls, "Length")
	if err != nil {
		t.Fatal(err)
	}
	if n, err := length(s); err != nil || n != 5 {
		t.Errorf("Length = %d, %v", n, err)
	}

	identity, err := BindStatic[func(*String) (*String, error)](cls, "Identity")
	if err != nil {
		t.Fatal(err)
	}
	back, err := identity(s)
	if err != nil {
		t.Fatal(err)
	}
	if back.Ref() != s.Ref() || back.Text() != "héllo" {
		t.Errorf("Identity returned %q", back.Text())
	}

	if _, err := length(&String{domain: e.rt.RootDomain()}); kindOf(err) != errors.KindNilHandle {
		t.Errorf("null string handle: got %v", err)
	}
}

func TestProperty_Instance(t *testing.T) {
	e := newTestEnv(t)
	obj := e.instance(t)

	got, err := GetPropertyValue[int32](obj, "someProperty")
	if err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Fatalf("someProperty = %d, want 12", got)
	}

	if err := SetPropertyValue(obj, "someProperty", int32(55)); err != nil {
		t.Fatal(err)
	}
	if got, _ := GetPropertyValue[int32](obj, "someProperty"); got != 55 {
		t.Errorf("someProperty = %d, want 55", got)
	}
	if got, _ := GetFieldValue[int32](obj, "_someProperty"); got != 55 {
		t.Errorf("backing field = %d, want 55", got)
	}

	if _, err := GetPropertyValue[string](obj, "someProperty"); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("wrong type: got %v", err)
	}
	cls := e.class(t, "ClassInstanceTest")
	if _, err := GetStaticPropertyValue[int32](cls, "someProperty"); kindOf(err) != errors.KindInvalidInput {
		t.Errorf("instance property through class: got %v", err)
	}
}

func TestProperty_ReadOnly(t *testing.T) {
	e := newTestEnv(t)

	exc, err := e.rt.RootDomain().Corlib().Class("System.Exception")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := exc.New("read only")
	if err != nil {
		t.Fatal(err)
	}
	if err := SetPropertyValue(obj, "Message", "changed"); kindOf(err) != errors.KindNotFound {
		t.Errorf("setting a get-only property: got %v", err)
	}
	if msg, _ := GetPropertyValue[string](obj, "Message"); msg != "read only" {
		t.Errorf("Message = %q", msg)
	}
}

func TestProperty_IndexerArity(t *testing.T) {
	e := newTestEnv(t)
	grid, err := e.class(t, "Tests.Grid").New()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := GetPropertyValue[int32](grid, "Item"); kindOf(err) != errors.KindArity {
		t.Errorf("indexer getter without index: got %v", err)
	}
	if err := SetPropertyValue(grid, "Item", int32(3)); kindOf(err) != errors.KindArity {
		t.Errorf("indexer setter without index: got %v", err)
	}
	if got, _ := GetFieldValue[int32](grid, "last"); got != 0 {
		t.Errorf("rejected setter ran: last = %d", got)
	}

	get, err := BindMethod[func(int32) (int32, error)](grid, "get_Item")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := get(21); err != nil || got != 42 {
		t.Errorf("get_Item(21) = %d, %v", got, err)
	}
}
