package runtime

import (
	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"github.com/wippyai/mono-runtime/transcoder"
)

// String holds a managed string. Text decodes the current content on every
// call.
type String struct {
	domain *Domain
	ref    monoruntime.ObjectRef
}

// Text returns the string content. A null string, or one from a closed
// domain, reads as "".
func (s *String) Text() string {
	if !s.usable() {
		return ""
	}
	return transcoder.DecodeUTF16(s.domain.rt.api.StringUnits(s.ref))
}

// String implements fmt.Stringer.
func (s *String) String() string {
	return s.Text()
}

// Len returns the length in UTF-16 code units.
func (s *String) Len() int {
	if !s.usable() {
		return 0
	}
	return len(s.domain.rt.api.StringUnits(s.ref))
}

// Assign replaces the held string with a new managed string for text.
// Invalid UTF-8 is rejected and the held string is left unchanged.
func (s *String) Assign(text string) error {
	if s == nil {
		return errors.NilHandle(errors.PhaseEncode, "string")
	}
	if err := s.domain.check(); err != nil {
		return err
	}
	units, err := transcoder.EncodeUTF16(text)
	if err != nil {
		return err
	}
	ref := s.domain.rt.api.NewString(s.domain.ref, units)
	if ref == nil {
		return errors.NilHandle(errors.PhaseEncode, "string")
	}
	s.ref = ref
	return nil
}

// Ref returns the raw string handle, or nil once its domain is closed.
func (s *String) Ref() monoruntime.ObjectRef {
	if !s.usable() {
		return nil
	}
	return s.ref
}

// Object returns the string as a generic object, or nil for a null string
// or a closed domain.
func (s *String) Object() *Object {
	if !s.usable() {
		return nil
	}
	return s.domain.rt.wrapObject(s.domain, s.ref)
}

func (s *String) usable() bool {
	return s != nil && s.ref != nil && s.domain.live()
}
