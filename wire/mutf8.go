package wire

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"
)

var errBadUTF = errors.New("wire: invalid modified UTF-8")

// Strings travel as modified UTF-8: NUL is encoded on two bytes and
// characters outside the BMP as two three-byte surrogates.

// isASCII reports whether every byte of s is in 0x01..0x7F, in which case the
// modified UTF-8 form is s itself.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == 0 || c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// mutf8Len returns the encoded length of s.
func mutf8Len(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r != 0 && r < 0x80:
			n++
		case r < 0x800:
			n += 2
		case r < 0x10000:
			n += 3
		default:
			n += 6
		}
	}
	return n
}

func appendMUTF8(dst []byte, s string) []byte {
	for _, r := range s {
		switch {
		case r != 0 && r < 0x80:
			dst = append(dst, byte(r))
		case r < 0x800:
			dst = append(dst, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			dst = appendUnit(dst, uint16(r))
		default:
			hi, lo := utf16.EncodeRune(r)
			dst = appendUnit(dst, uint16(hi))
			dst = appendUnit(dst, uint16(lo))
		}
	}
	return dst
}

func appendUnit(dst []byte, u uint16) []byte {
	return append(dst, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
}

// decodeMUTF8 converts modified UTF-8 back into a Go string.
func decodeMUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errBadUTF
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errBadUTF
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", errBadUTF
		}
	}
	return string(utf16.Decode(units)), nil
}
