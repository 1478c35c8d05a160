package extract

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/salesmail-ingest/internal/sales"
)

// qp escapes every non-ASCII byte the way a mail client would, without line wrapping.
func qp(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || c == '=' {
			fmt.Fprintf(&b, "=%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// undecodable appends a dangling lead byte so the body fails UTF-8 validation
// after decoding and stays in escaped form.
func undecodable(s string) string { return s + "\r\n=E5" }

var fixedNow = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

func newTestExtractor(variants bool) *Extractor {
	e := New(Options{ExtractVariants: variants})
	e.nowFunc = func() time.Time { return fixedNow }
	return e
}

const instantBody = "商品が購入されました。\r\n" +
	"注文番号：20250001\r\n" +
	"注文日時：2025年3月1日 14時05分\r\n" +
	"【Category】ItemName（Variant A） ¥3,000\r\n"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "a \r\n\t  b  ", "a b"},
		{"decodes escapes", "=E5=95=86=E5=93=81", "商品"},
		{"mixed literal and escaped", "注文番号=EF=BC=9A 123", "注文番号： 123"},
		{"soft line break", "Item=\r\nName", "ItemName"},
		{"lone equals is literal", "a=b c", "a=b c"},
		{"truncated sequence returns input", "=E5=95 x", "=E5=95 x"},
		{"control byte returns input", "a\x01b", "a\x01b"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestExtract_BracketWithVariant(t *testing.T) {
	f, err := newTestExtractor(true).Extract(instantBody)
	require.NoError(t, err)

	assert.Equal(t, sales.PaymentInstant, f.PaymentKind)
	assert.Equal(t, "20250001", f.OrderID)
	assert.Equal(t, "labelled", f.OrderIDStrategy)
	assert.Equal(t, "CategoryItemName", f.ProductName)
	assert.Equal(t, "Variant A", f.ProductVariant)
	assert.Equal(t, "3,000", f.Amount)
	assert.Equal(t, "bracket", f.ProductStrategy)

	require.True(t, f.TimestampFound)
	assert.Equal(t, "kanji", f.TimestampStrategy)
	want := time.Date(2025, 3, 1, 14, 5, 0, 0, DefaultLocation)
	assert.True(t, want.Equal(f.OrderedAt), "got %v", f.OrderedAt)
}

func TestExtract_VariantsDisabled(t *testing.T) {
	f, err := newTestExtractor(false).Extract(instantBody)
	require.NoError(t, err)
	assert.Equal(t, "CategoryItemName（Variant A）", f.ProductName)
	assert.Empty(t, f.ProductVariant)
}

func TestExtract_EscapedBody(t *testing.T) {
	body := undecodable(qp(instantBody))
	require.Equal(t, body, Normalize(body))

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)

	assert.Equal(t, sales.PaymentInstant, f.PaymentKind)
	assert.Equal(t, "20250001", f.OrderID)
	assert.Equal(t, "labelled_escaped", f.OrderIDStrategy)
	assert.Equal(t, "kanji_escaped", f.TimestampStrategy)
	assert.True(t, time.Date(2025, 3, 1, 14, 5, 0, 0, DefaultLocation).Equal(f.OrderedAt))
	assert.Equal(t, "bracket_escaped", f.ProductStrategy)
	assert.Equal(t, "CategoryItemName", f.ProductName)
	assert.Equal(t, "Variant A", f.ProductVariant)
	assert.Equal(t, "3,000", f.Amount)
}

func TestExtract_EscapedSoftBreakInName(t *testing.T) {
	body := undecodable(qp("商品が購入されました 注文番号：20250009 【Cat】Long") + "=\r\n" + qp("Name ¥1,500"))

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "CatLongName", f.ProductName)
	assert.Equal(t, "1,500", f.Amount)
}

func TestExtract_EscapedAmountOnly(t *testing.T) {
	body := undecodable(qp("商品が購入されました 注文番号：20250007 合計 1,800円"))

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "amount_only", f.ProductStrategy)
	assert.Equal(t, "1,800", f.Amount)
	assert.Equal(t, sales.UnknownProductName, f.ProductName)
	assert.Empty(t, f.ProductVariant)
}

func TestExtract_DeferredWinsAndAllowsLabel(t *testing.T) {
	body := "入金が確認されました。商品が購入されました 注文番号：20250004 【本】入門書 お支払い金額：¥2,500"

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, sales.PaymentDeferred, f.PaymentKind)
	assert.Equal(t, "本入門書", f.ProductName)
	assert.Equal(t, "2,500", f.Amount)
	assert.Equal(t, "bracket", f.ProductStrategy)
}

func TestExtract_OrderIDCascade(t *testing.T) {
	e := newTestExtractor(true)

	f, err := e.Extract("商品が購入されました お問い合わせ 0312345678 注文番号：20250001 ¥500")
	require.NoError(t, err)
	assert.Equal(t, "20250001", f.OrderID)
	assert.Equal(t, "labelled", f.OrderIDStrategy)

	f, err = e.Extract("商品が購入されました 受付 98765432 ¥500")
	require.NoError(t, err)
	assert.Equal(t, "98765432", f.OrderID)
	assert.Equal(t, "digit_run", f.OrderIDStrategy)

	f, err = e.Extract("商品が購入されました 注文番号：２０２５０００６ ￥１，５００")
	require.NoError(t, err)
	assert.Equal(t, "２０２５０００６", f.OrderID)
	assert.Equal(t, "１，５００", f.Amount)
}

func TestExtract_DigitRunIgnoresEscapeDigits(t *testing.T) {
	// 号 ends in the escape =B7, directly followed by the literal id.
	body := undecodable(qp("商品が購入されました 号") + "20250010")

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "20250010", f.OrderID)
	assert.Equal(t, "digit_run", f.OrderIDStrategy)
}

func TestExtract_ProductCascadeOrder(t *testing.T) {
	body := "商品が購入されました 注文番号：20250008 商品名：C ¥200 【A】B ¥100"

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "bracket", f.ProductStrategy)
	assert.Equal(t, "AB", f.ProductName)
	assert.Equal(t, "100", f.Amount)
}

func TestExtract_GenericFallback(t *testing.T) {
	body := "商品が購入されました。注文番号：20250003。商品名：スニーカー ¥5,000"

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "generic", f.ProductStrategy)
	assert.Equal(t, "スニーカー", f.ProductName)
	assert.Equal(t, "5,000", f.Amount)
}

func TestExtract_HeaderBracketIsNotAProduct(t *testing.T) {
	body := "【BOOTH】商品が購入されました\r\n注文番号：20250001\r\n商品名：猫ステッカー\r\n¥500"

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "generic", f.ProductStrategy)
	assert.Equal(t, "猫ステッカー", f.ProductName)
	assert.Equal(t, "500", f.Amount)
}

func TestExtract_HeaderBracketBeforeProductBracket(t *testing.T) {
	body := "【BOOTH】商品が購入されました 注文番号：20250001 【Cat】Item ¥800"

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "bracket", f.ProductStrategy)
	assert.Equal(t, "CatItem", f.ProductName)
	assert.Equal(t, "800", f.Amount)
}

func TestExtract_DecimalPointAmountIsRefused(t *testing.T) {
	e := newTestExtractor(true)

	for _, body := range []string{
		"商品が購入されました 注文番号：20250011 【Cat】Item ¥1.000",
		"商品が購入されました 注文番号：20250011 商品名：Item ¥1.000",
		"商品が購入されました 注文番号：20250011 1.500円",
	} {
		f, err := e.Extract(body)
		require.NoError(t, err, body)
		assert.Empty(t, f.Amount, body)
	}

	f, err := e.Extract("商品が購入されました 注文番号：20250011 ¥1.000 【Cat】Item ¥1,000")
	require.NoError(t, err)
	assert.Equal(t, "1,000", f.Amount)
}

func TestExtract_GenericStopWordUsesSentinel(t *testing.T) {
	body := "商品が購入されました 注文番号 20250002 合計 ¥1,200"

	f, err := newTestExtractor(true).Extract(body)
	require.NoError(t, err)
	assert.Equal(t, "generic", f.ProductStrategy)
	assert.Equal(t, sales.UnknownProductName, f.ProductName)
	assert.Equal(t, "1,200", f.Amount)
}

func TestExtract_NoAmount(t *testing.T) {
	f, err := newTestExtractor(true).Extract("商品が購入されました 注文番号：20250005 【Cat】Item")
	require.NoError(t, err)
	assert.Empty(t, f.Amount)
	assert.Empty(t, f.ProductName)
	assert.Empty(t, f.ProductStrategy)
}

func TestExtract_TimestampFallsBackToNow(t *testing.T) {
	e := newTestExtractor(true)

	f, err := e.Extract("商品が購入されました 注文番号：20250005 ¥100")
	require.NoError(t, err)
	assert.False(t, f.TimestampFound)
	assert.Equal(t, TimestampProcessingTime, f.TimestampStrategy)
	assert.True(t, fixedNow.Equal(f.OrderedAt))

	f, err = e.Extract("商品が購入されました 注文番号：20250005 2025年2月30日 10時00分 ¥100")
	require.NoError(t, err)
	assert.False(t, f.TimestampFound, "Feb 30 must not roll over")
}

func TestExtract_Errors(t *testing.T) {
	e := newTestExtractor(true)

	_, err := e.Extract("ご利用ありがとうございます 注文番号：20250001 ¥100")
	assert.ErrorIs(t, err, ErrNotSaleNotification)

	f, err := e.Extract("商品が購入されました ¥1,000")
	assert.ErrorIs(t, err, ErrNoOrderID)
	assert.Equal(t, sales.PaymentInstant, f.PaymentKind)
}

func TestSplitVariant(t *testing.T) {
	cases := []struct {
		in, base, variant string
	}{
		{"ItemName（Variant A）", "ItemName", "Variant A"},
		{"T-Shirt (Red)", "T-Shirt", "Red"},
		{"Plain", "Plain", ""},
		{"(商品名不明)", "(商品名不明)", ""},
		{"Empty（）", "Empty（）", ""},
	}
	for _, tc := range cases {
		b, v := SplitVariant(tc.in)
		assert.Equal(t, tc.base, b, tc.in)
		assert.Equal(t, tc.variant, v, tc.in)
	}
}
