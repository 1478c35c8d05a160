package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/salesmail-ingest/internal/sales"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their json name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterStructValidation(saleRecordStructValidation, sales.SaleRecord{})

	return v
}

// saleRecordStructValidation rejects a variant attached to the unknown-name sentinel;
// the variant is split from the name, so it cannot exist without one.
func saleRecordStructValidation(sl validatorv10.StructLevel) {
	rec := sl.Current().Interface().(sales.SaleRecord)
	if rec.ProductName == sales.UnknownProductName && rec.ProductVariant != "" {
		sl.ReportError(rec.ProductVariant, "product_variant", "ProductVariant", "variant_without_name", "")
	}
}
