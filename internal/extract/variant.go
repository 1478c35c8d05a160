package extract

import (
	"regexp"
	"strings"
)

var variantRes = []*regexp.Regexp{
	regexp.MustCompile(`^(.*?)\s*（([^（）]+)）$`),
	regexp.MustCompile(`^(.*?)\s*\(([^()]+)\)$`),
}

// SplitVariant separates a trailing parenthetical suffix from a product name.
// Names that are nothing but a parenthetical are returned whole.
func SplitVariant(name string) (base, variant string) {
	for _, re := range variantRes {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		b, v := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if b == "" || v == "" {
			continue
		}
		return b, v
	}
	return name, ""
}
