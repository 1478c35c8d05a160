package extract

import (
	"errors"
	"time"

	"github.com/imrishuroy/salesmail-ingest/internal/sales"
)

var (
	// ErrNotSaleNotification means the body carries neither payment phrase.
	// Such messages are skipped, not rejected.
	ErrNotSaleNotification = errors.New("not a sale notification")
	// ErrNoOrderID means no order id strategy matched.
	ErrNoOrderID = errors.New("no order id found")
)

// DefaultLocation is the zone notification timestamps are written in.
var DefaultLocation = time.FixedZone("JST", 9*60*60)

// Strategy name reported when no timestamp was found in the body.
const TimestampProcessingTime = "processing_time"

// Options tune extraction.
type Options struct {
	ExtractVariants bool
	Location        *time.Location
}

// Fields holds the raw tokens pulled from one notification body.
// OrderID and Amount are unparsed; see validation.Validate.
type Fields struct {
	OrderID        string            `json:"order_id"`
	OrderedAt      time.Time         `json:"ordered_at"`
	TimestampFound bool              `json:"timestamp_found"`
	ProductName    string            `json:"product_name"`
	ProductVariant string            `json:"product_variant,omitempty"`
	Amount         string            `json:"amount"`
	PaymentKind    sales.PaymentKind `json:"payment_kind"`

	OrderIDStrategy   string `json:"order_id_strategy"`
	TimestampStrategy string `json:"timestamp_strategy"`
	ProductStrategy   string `json:"product_strategy,omitempty"`
}

// Extractor runs the field cascades over notification bodies.
type Extractor struct {
	opts    Options
	nowFunc func() time.Time
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.Location == nil {
		opts.Location = DefaultLocation
	}
	return &Extractor{opts: opts, nowFunc: time.Now}
}

// Extract normalizes body and resolves each field through its cascade.
// Payment kind is resolved first; without it the body is not a sale.
func (e *Extractor) Extract(body string) (Fields, error) {
	text := Normalize(body)

	kind, ok := detectKind(text)
	if !ok {
		return Fields{}, ErrNotSaleNotification
	}
	f := Fields{PaymentKind: kind}

	id, how, ok := firstMatch(orderIDStrategies, text)
	if !ok {
		return f, ErrNoOrderID
	}
	f.OrderID, f.OrderIDStrategy = id, how

	f.OrderedAt, f.TimestampStrategy = e.nowFunc().In(e.opts.Location), TimestampProcessingTime
	if c, how, ok := firstMatch(timestampStrategies, text); ok {
		if t, ok := e.at(c); ok {
			f.OrderedAt, f.TimestampFound, f.TimestampStrategy = t, true, how
		}
	}

	if p, how, ok := firstMatch(productStrategies[kind], text); ok {
		f.ProductName, f.Amount, f.ProductStrategy = p.name, p.amount, how
		if f.ProductName == "" && f.Amount != "" {
			f.ProductName = sales.UnknownProductName
		}
	}

	if e.opts.ExtractVariants && f.ProductName != sales.UnknownProductName {
		f.ProductName, f.ProductVariant = SplitVariant(f.ProductName)
	}
	return f, nil
}

// at builds the timestamp, refusing dates that time.Date would roll over.
func (e *Extractor) at(c clock) (time.Time, bool) {
	t := time.Date(c.year, time.Month(c.month), c.day, c.hour, c.minute, 0, 0, e.opts.Location)
	if t.Day() != c.day || int(t.Month()) != c.month {
		return time.Time{}, false
	}
	return t, true
}
