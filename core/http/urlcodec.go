package http

import "strings"

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// DecodeURL percent-decodes s in a single pass: '+' becomes a space, %HH
// becomes the encoded byte, and a '%' not followed by two hex digits is
// preserved literally. The second return is false when such a malformed
// sequence was seen (the caller logs a warning).
func DecodeURL(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	clean := true

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHexDigit(s[i+1]) && isHexDigit(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case c == '%':
			clean = false
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), clean
}

// EncodeURL is the inverse of DecodeURL over the URL-safe alphabet:
// unreserved characters pass through, space becomes '+', everything else
// becomes %HH.
func EncodeURL(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		}
	}
	return b.String()
}
