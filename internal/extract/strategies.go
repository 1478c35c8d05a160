package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/imrishuroy/salesmail-ingest/internal/sales"
)

// strategy is one step of a field cascade. Cascades are tried in order and the
// first strategy that reports ok wins.
type strategy[T any] struct {
	name string
	run  func(text string) (T, bool)
}

func firstMatch[T any](cascade []strategy[T], text string) (T, string, bool) {
	for _, s := range cascade {
		if v, ok := s.run(text); ok {
			return v, s.name, true
		}
	}
	var zero T
	return zero, "", false
}

// sep is whitespace or soft line breaks inside an escaped body.
const sep = `(?:\s|=\r?\n)*`

// --- payment kind

var (
	instantPhrases  = []string{"商品が購入されました", "ご注文が確定しました"}
	deferredPhrases = []string{"お支払いが確認されました", "入金が確認されました"}

	instantRe  = regexp.MustCompile(anyOf(plainAnyOf(instantPhrases...), escapedAnyOf(instantPhrases...)))
	deferredRe = regexp.MustCompile(anyOf(plainAnyOf(deferredPhrases...), escapedAnyOf(deferredPhrases...)))
)

// detectKind checks both phrase families. Deferred notices quote the purchase
// wording, so deferred wins when both are present.
func detectKind(text string) (sales.PaymentKind, bool) {
	switch {
	case deferredRe.MatchString(text):
		return sales.PaymentDeferred, true
	case instantRe.MatchString(text):
		return sales.PaymentInstant, true
	}
	return "", false
}

// --- order id

var (
	labelledOrderRe    = regexp.MustCompile(`注文(?:番号|ID)\s*[:：]?\s*#?\s*([0-9０-９]+)`)
	labelledOrderEscRe = regexp.MustCompile(escapedLiteral("注文") + softBreak +
		anyOf(escapedLiteral("番号"), escapedLiteral("ID")) + sep +
		anyOf(":", escapedLiteral("：")) + "?" + sep + `#?` + sep + `([0-9]+)`)
	// Any long digit run. Permissive: phone or tracking numbers can match too.
	// The prefix keeps the second digit of a hex escape out of the run.
	longDigitsRe = regexp.MustCompile(`(?:^|[^0-9=]|=[0-9A-F]{2})([0-9]{8,})`)
)

var orderIDStrategies = []strategy[string]{
	{name: "labelled", run: submatch(labelledOrderRe, 1)},
	{name: "labelled_escaped", run: submatch(labelledOrderEscRe, 1)},
	{name: "digit_run", run: submatch(longDigitsRe, 1)},
}

func submatch(re *regexp.Regexp, group int) func(string) (string, bool) {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil || m[group] == "" {
			return "", false
		}
		return m[group], true
	}
}

// --- order timestamp

type clock struct {
	year, month, day, hour, minute int
}

const wideDigit = `[0-9０-９]`

var (
	plainTimeRe = regexp.MustCompile(`(` + wideDigit + `{4})\s*年\s*(` + wideDigit + `{1,2})\s*月\s*(` +
		wideDigit + `{1,2})\s*日[^0-9０-９]{0,8}?(` + wideDigit + `{1,2})\s*時\s*(` + wideDigit + `{1,2})\s*分`)
	escapedTimeRe = regexp.MustCompile(`([0-9]{4})` + sep + escapedLiteral("年") + sep + `([0-9]{1,2})` + sep +
		escapedLiteral("月") + sep + `([0-9]{1,2})` + sep + escapedLiteral("日") +
		`(?:=[0-9A-F]{2}|=\r?\n|[^0-9=]){0,30}?([0-9]{1,2})` + sep + escapedLiteral("時") + sep +
		`([0-9]{1,2})` + sep + escapedLiteral("分"))
)

var timestampStrategies = []strategy[clock]{
	{name: "kanji", run: clockFrom(plainTimeRe)},
	{name: "kanji_escaped", run: clockFrom(escapedTimeRe)},
}

func clockFrom(re *regexp.Regexp) func(string) (clock, bool) {
	return func(text string) (clock, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return clock{}, false
		}
		var n [5]int
		for i := range n {
			v, err := strconv.Atoi(width.Fold.String(m[i+1]))
			if err != nil {
				return clock{}, false
			}
			n[i] = v
		}
		c := clock{year: n[0], month: n[1], day: n[2], hour: n[3], minute: n[4]}
		if c.month < 1 || c.month > 12 || c.day < 1 || c.day > 31 || c.hour > 23 || c.minute > 59 {
			return clock{}, false
		}
		return c, true
	}
}

// --- product name and amount

type product struct {
	name   string
	amount string
}

var (
	instantAmountLabels  = []string{"販売価格", "価格"}
	deferredAmountLabels = []string{"お支払い金額", "支払金額", "合計金額", "金額"}

	stopWords = []string{"注文", "番号", "日時", "日付", "支払", "決済"}

	fieldDelimiters = "：:。"

	yenAmountRe = regexp.MustCompile(`[¥￥]\s*([0-9０-９][0-9０-９,，]*)`)
)

// bracketPattern matches 【category】name, an optional amount label, then a
// yen-marked amount. Groups: category, name, amount.
func bracketPattern(escaped bool, labels []string) *regexp.Regexp {
	if !escaped {
		label := `(?:` + plainAnyOf(labels...) + `\s*[:：]?\s*)?`
		return regexp.MustCompile(`【([^【】]{1,40})】\s*([^【】¥￥]{1,80}?)\s*` + label +
			`[¥￥]\s*([0-9０-９][0-9０-９,，]*)`)
	}
	label := `(?:` + escapedAnyOf(labels...) + sep + anyOf(":", escapedLiteral("：")) + "?" + sep + `)?`
	return regexp.MustCompile(escapedLiteral("【") + `(` + escapedChar + `+?)` + escapedLiteral("】") + sep +
		`(` + escapedChar + `+?)` + sep + label + escapedAnyOf("¥", "￥") + sep + `([0-9][0-9,]*)`)
}

func bracketStrategy(re *regexp.Regexp, escaped bool) func(string) (product, bool) {
	return func(text string) (product, bool) {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			category, name := text[loc[2]:loc[3]], text[loc[4]:loc[5]]
			if escaped {
				var ok bool
				if category, ok = decodeCapture(category); !ok {
					continue
				}
				if name, ok = decodeCapture(name); !ok {
					continue
				}
			}
			full := strings.TrimSpace(strings.TrimSpace(category) + strings.TrimSpace(name))
			// A name spanning a field label means the match ran across lines.
			if full == "" || looksLikeField(full) || strings.ContainsAny(full, fieldDelimiters) {
				continue
			}
			if hasDecimalPoint(text, loc[6], loc[7]) {
				continue
			}
			return product{name: full, amount: text[loc[6]:loc[7]]}, true
		}
		return product{}, false
	}
}

// genericProduct takes the text in front of the first yen amount as the name.
// The name is dropped, but the amount kept, when it looks like another field.
func genericProduct(text string) (product, bool) {
	for _, loc := range yenAmountRe.FindAllStringSubmatchIndex(text, -1) {
		if hasDecimalPoint(text, loc[2], loc[3]) {
			continue
		}
		return product{name: nameBefore(text[:loc[0]]), amount: text[loc[2]:loc[3]]}, true
	}
	return product{}, false
}

func nameBefore(prefix string) string {
	r := []rune(prefix)
	if len(r) > 40 {
		r = r[len(r)-40:]
	}
	s := string(r)
	if i := strings.LastIndexAny(s, fieldDelimiters+"|】"); i >= 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		s = s[i+size:]
	}
	s = strings.TrimSpace(s)
	if looksLikeField(s) {
		return ""
	}
	return s
}

func looksLikeField(s string) bool {
	for _, w := range stopWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// hasDecimalPoint reports whether the amount at text[start:end] is part of a
// decimal such as 1.000. Only commas are read as thousands separators.
func hasDecimalPoint(text string, start, end int) bool {
	before, after := text[:start], text[end:]
	for _, p := range []string{".", "．"} {
		if rest, ok := strings.CutPrefix(after, p); ok && startsWithDigit(rest) {
			return true
		}
		if head, ok := strings.CutSuffix(before, p); ok && endsWithDigit(head) {
			return true
		}
	}
	return false
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return isDigit(r)
}

func endsWithDigit(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return isDigit(r)
}

func isDigit(r rune) bool {
	return ('0' <= r && r <= '9') || ('０' <= r && r <= '９')
}

var amountOnlyRes = []*regexp.Regexp{
	regexp.MustCompile(`([0-9０-９][0-9０-９,，]*)\s*円`),
	regexp.MustCompile(escapedAnyOf("¥", "￥") + sep + `([0-9][0-9,]*)`),
	regexp.MustCompile(`(?:^|[^0-9A-F=]|=[0-9A-F]{2})([0-9][0-9,]*)` + sep + escapedLiteral("円")),
}

func amountOnly(text string) (product, bool) {
	for _, re := range amountOnlyRes {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if hasDecimalPoint(text, loc[2], loc[3]) {
				continue
			}
			return product{amount: text[loc[2]:loc[3]]}, true
		}
	}
	return product{}, false
}

func productCascade(labels []string) []strategy[product] {
	return []strategy[product]{
		{name: "bracket", run: bracketStrategy(bracketPattern(false, labels), false)},
		{name: "bracket_escaped", run: bracketStrategy(bracketPattern(true, labels), true)},
		{name: "generic", run: genericProduct},
		{name: "amount_only", run: amountOnly},
	}
}

var productStrategies = map[sales.PaymentKind][]strategy[product]{
	sales.PaymentInstant:  productCascade(instantAmountLabels),
	sales.PaymentDeferred: productCascade(deferredAmountLabels),
}
