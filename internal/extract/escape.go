package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// softBreak is a quoted-printable soft line break.
const softBreak = `(?:=\r?\n)?`

// escapedChar matches one character of an escaped body: a hex escape, a soft
// line break, or a literal byte.
const escapedChar = `(?:=[0-9A-F]{2}|=\r?\n|[^=])`

// escapedLiteral returns a pattern matching s as it appears in a raw
// quoted-printable body. Printable ASCII may appear literally or escaped; every
// other byte must be escaped. A soft break may fall between any two bytes.
func escapedLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 {
			b.WriteString(softBreak)
		}
		c := s[i]
		hex := fmt.Sprintf("=%02X", c)
		if c >= ' ' && c < 0x7f && c != '=' {
			b.WriteString("(?:" + regexp.QuoteMeta(string(c)) + "|" + hex + ")")
			continue
		}
		b.WriteString(hex)
	}
	return b.String()
}

// anyOf joins patterns into one non-capturing alternation.
func anyOf(patterns ...string) string {
	return "(?:" + strings.Join(patterns, "|") + ")"
}

// escapedAnyOf is anyOf over the escaped forms of literals.
func escapedAnyOf(literals ...string) string {
	out := make([]string, len(literals))
	for i, l := range literals {
		out[i] = escapedLiteral(l)
	}
	return anyOf(out...)
}

// plainAnyOf is anyOf over quoted literals.
func plainAnyOf(literals ...string) string {
	out := make([]string, len(literals))
	for i, l := range literals {
		out[i] = regexp.QuoteMeta(l)
	}
	return anyOf(out...)
}

// decodeCapture turns an escaped capture back into collapsed text.
func decodeCapture(s string) (string, bool) {
	d, ok := decodeQP(s)
	if !ok {
		return "", false
	}
	return collapse(d), true
}
