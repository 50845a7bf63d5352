package monotest

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeUnits converts s to UTF-16. Invalid UTF-8 becomes U+FFFD.
func encodeUnits(s string) []uint16 {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return units
}

// decodeUnits converts UTF-16 to a Go string. Unpaired surrogates become
// U+FFFD.
func decodeUnits(units []uint16) string {
	if len(units) == 0 {
		return ""
	}
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(out)
}
