package extract

import (
	"io"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"
)

// Normalize decodes quoted-printable escapes mixed with literal text and collapses
// every whitespace run to a single space. If the body cannot be decoded to valid
// UTF-8 the input is returned unchanged, so escaped-form strategies can still run.
func Normalize(raw string) string {
	decoded, ok := decodeQP(raw)
	if !ok {
		return raw
	}
	return collapse(decoded)
}

func decodeQP(s string) (string, bool) {
	b, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(s)))
	if err != nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
