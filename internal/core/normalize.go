package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ContactDigits is the length of a canonical contact number.
const ContactDigits = 10

// NormalizeContact reduces a raw contact cell to its canonical digit string.
//
// The cell is rendered as text, compatibility-folded (full-width digits become
// ASCII), and stripped of everything but the digits 0-9. When ten or more
// digits remain, only the last ten are kept; shorter runs are returned as is.
// The result is never longer than ContactDigits and may be empty.
func NormalizeContact(c Cell) string {
	if c.IsMissing() {
		return ""
	}

	s := c.String()
	if !isASCII(s) {
		s = norm.NFKC.String(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if ch := s[i]; ch >= '0' && ch <= '9' {
			b.WriteByte(ch)
		}
	}

	digits := b.String()
	if len(digits) >= ContactDigits {
		return digits[len(digits)-ContactDigits:]
	}
	return digits
}

// NormalizeName renders a name cell as trimmed text. Missing yields "".
func NormalizeName(c Cell) string {
	return strings.TrimSpace(c.String())
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
