package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/imrishuroy/salesmail-ingest/internal/extract"
	"github.com/imrishuroy/salesmail-ingest/internal/sales"
)

func fields(orderID, amount string) extract.Fields {
	return extract.Fields{
		OrderID:     orderID,
		OrderedAt:   time.Date(2025, 3, 1, 14, 5, 0, 0, extract.DefaultLocation),
		ProductName: "CategoryItemName",
		Amount:      amount,
		PaymentKind: sales.PaymentInstant,
	}
}

func TestValidate_Valid(t *testing.T) {
	rec, err := Validate(New(), fields("20250001", "1,200"))
	if err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	if rec.OrderID != 20250001 || rec.Amount != 1200 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestValidate_FullWidthTokens(t *testing.T) {
	rec, err := Validate(New(), fields("２０２５０００６", "１，５００"))
	if err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	if rec.OrderID != 20250006 || rec.Amount != 1500 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestValidate_AmountBoundary(t *testing.T) {
	v := New()
	for _, amount := range []string{"0", "-100", "abc", "", "1.5"} {
		_, err := Validate(v, fields("20250001", amount))
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %q: expected ErrInvalidAmount, got %v", amount, err)
		}
		var re *RejectionError
		if !errors.As(err, &re) || re.Reason == "" {
			t.Fatalf("amount %q: expected RejectionError with reason, got %v", amount, err)
		}
	}

	if _, err := Validate(v, fields("20250001", "1")); err != nil {
		t.Fatalf("amount 1 should be valid: %v", err)
	}
}

func TestValidate_OrderID(t *testing.T) {
	v := New()
	for _, id := range []string{"", "0", "x123", "99999999999999999999"} {
		_, err := Validate(v, fields(id, "100"))
		if !errors.Is(err, ErrMissingOrderID) {
			t.Fatalf("order id %q: expected ErrMissingOrderID, got %v", id, err)
		}
	}
}

func TestValidate_MissingNameUsesSentinel(t *testing.T) {
	f := fields("20250001", "100")
	f.ProductName = "  "
	rec, err := Validate(New(), f)
	if err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	if rec.ProductName != sales.UnknownProductName {
		t.Fatalf("expected sentinel name, got %q", rec.ProductName)
	}
}

func TestValidate_SentinelWithVariantRejected(t *testing.T) {
	f := fields("20250001", "100")
	f.ProductName = sales.UnknownProductName
	f.ProductVariant = "Red"
	_, err := Validate(New(), f)
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestValidate_UnknownPaymentKind(t *testing.T) {
	f := fields("20250001", "100")
	f.PaymentKind = "barter"
	_, err := Validate(New(), f)
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestExtractRequest_RequiresBody(t *testing.T) {
	if err := New().Struct(ExtractRequest{}); err == nil {
		t.Fatal("expected validation error for empty body, got nil")
	}
}
