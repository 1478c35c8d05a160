package validation

import (
	"errors"
	"strconv"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"golang.org/x/text/width"

	"github.com/imrishuroy/salesmail-ingest/internal/extract"
	"github.com/imrishuroy/salesmail-ingest/internal/sales"
)

// Validate turns extracted fields into a sale record or a *RejectionError.
// It does no I/O. A missing product name becomes the sentinel, never a rejection.
func Validate(v *validatorv10.Validate, f extract.Fields) (sales.SaleRecord, error) {
	id, err := parseNumber(f.OrderID)
	if err != nil {
		return sales.SaleRecord{}, reject(ErrMissingOrderID, "order id %q", f.OrderID)
	}
	amount, err := parseNumber(f.Amount)
	if err != nil {
		if f.Amount == "" {
			return sales.SaleRecord{}, reject(ErrInvalidAmount, "no amount found")
		}
		return sales.SaleRecord{}, reject(ErrInvalidAmount, "amount %q", f.Amount)
	}

	name := strings.TrimSpace(f.ProductName)
	if name == "" {
		name = sales.UnknownProductName
	}
	orderedAt := f.OrderedAt
	if orderedAt.IsZero() {
		orderedAt = time.Now().In(extract.DefaultLocation)
	}

	rec := sales.SaleRecord{
		OrderID:        id,
		OrderedAt:      orderedAt,
		ProductName:    name,
		ProductVariant: strings.TrimSpace(f.ProductVariant),
		Amount:         amount,
		PaymentKind:    f.PaymentKind,
	}
	if err := v.Struct(rec); err != nil {
		return sales.SaleRecord{}, toRejection(err)
	}
	return rec, nil
}

// parseNumber accepts full-width digits and thousands separators.
func parseNumber(raw string) (int64, error) {
	s := width.Fold.String(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseInt(s, 10, 64)
}

func toRejection(err error) *RejectionError {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return reject(ErrInvalidRecord, "%v", err)
	}
	fe := ve[0]
	switch fe.StructField() {
	case "OrderID":
		return reject(ErrMissingOrderID, "order id %v fails %s", fe.Value(), fe.Tag())
	case "Amount":
		return reject(ErrInvalidAmount, "amount %v fails %s", fe.Value(), fe.Tag())
	default:
		return reject(ErrInvalidRecord, "%s fails %s", fe.Field(), fe.Tag())
	}
}
