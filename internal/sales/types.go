package sales

import (
	"errors"
	"time"
)

// PaymentKind tells which notification phrasing produced the record.
type PaymentKind string

// Payment kinds
const (
	PaymentInstant  PaymentKind = "instant"
	PaymentDeferred PaymentKind = "deferred"
)

// UnknownProductName stands in for a product name the extractor could not recover
// from a notification that still carried an amount.
const UnknownProductName = "(商品名不明)"

// ErrDuplicate is returned by a sink when the order id is already recorded.
var ErrDuplicate = errors.New("order already recorded")

// SaleRecord is one recorded sale. It is written once and never updated.
type SaleRecord struct {
	OrderID        int64       `dynamodbav:"order_id" json:"order_id" validate:"required,gt=0"` // PK
	OrderedAt      time.Time   `dynamodbav:"ordered_at" json:"ordered_at" validate:"required"`
	ProductName    string      `dynamodbav:"product_name" json:"product_name" validate:"required"`
	ProductVariant string      `dynamodbav:"product_variant,omitempty" json:"product_variant,omitempty"`
	Amount         int64       `dynamodbav:"amount" json:"amount" validate:"gt=0"` // yen, no minor unit
	PaymentKind    PaymentKind `dynamodbav:"payment_kind" json:"payment_kind" validate:"oneof=instant deferred"`
	RecordedAt     time.Time   `dynamodbav:"recorded_at" json:"recorded_at"`
}
