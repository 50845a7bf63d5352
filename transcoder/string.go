package transcoder

import (
	"encoding/binary"
	"reflect"
	"unicode/utf16"
	"unicode/utf8"
	"unsafe"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"golang.org/x/text/encoding/unicode"
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUTF16 converts Go text to UTF-16 code units. Invalid UTF-8 is
// rejected rather than substituted.
func EncodeUTF16(s string) ([]uint16, error) {
	if !utf8.ValidString(s) {
		return nil, errors.InvalidUTF8(errors.PhaseEncode, nil, []byte(s))
	}
	if s == "" {
		return []uint16{}, nil
	}
	encoded, err := utf16LE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "utf-16 encode")
	}
	units := make([]uint16, len(encoded)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(encoded[2*i:])
	}
	return units, nil
}

// DecodeUTF16 converts UTF-16 code units to Go text. Each unpaired
// surrogate becomes U+FFFD and the surrounding text is kept.
func DecodeUTF16(units []uint16) string {
	if len(units) == 0 {
		return ""
	}
	return string(utf16.Decode(units))
}

// stringConverter allocates a new managed string on encode and copies the
// content out on decode.
type stringConverter struct {
	goType reflect.Type
}

func (s *stringConverter) Kind() Kind                     { return KindString }
func (s *stringConverter) GoType() reflect.Type           { return s.goType }
func (s *stringConverter) TypeCode() monoruntime.TypeCode { return monoruntime.TypeString }
func (s *stringConverter) ManagedName() string            { return "string" }
func (s *stringConverter) ByRef() bool                    { return true }
func (s *stringConverter) Size() uintptr                  { return 0 }

func (s *stringConverter) Encode(c *Context, v reflect.Value, _ *Frame) (unsafe.Pointer, error) {
	if v.Kind() != reflect.String {
		return nil, errors.TypeMismatch(errors.PhaseEncode, nil, v.Type().String(), "string")
	}
	units, err := EncodeUTF16(v.String())
	if err != nil {
		return nil, err
	}
	ref := c.API.NewString(c.Domain, units)
	if ref == nil {
		return nil, errors.NilHandle(errors.PhaseEncode, "string")
	}
	return unsafe.Pointer(ref), nil
}

// Decode returns "" for a null string reference.
func (s *stringConverter) Decode(c *Context, slot unsafe.Pointer) (reflect.Value, error) {
	v := reflect.New(s.goType).Elem()
	if slot == nil {
		return v, nil
	}
	v.SetString(DecodeUTF16(c.API.StringUnits(monoruntime.ObjectRef(slot))))
	return v, nil
}
