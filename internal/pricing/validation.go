package pricing

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// descriptorForm carries the amount twice: Amount for the tag rules and
// Exact for bounds that must not lose precision.
type descriptorForm struct {
	Type   string          `json:"change_type" validate:"required,oneof=discount_percentage increase_percentage discount_absolute increase_absolute fixed_price"`
	Amount float64         `json:"change_amount" validate:"gte=0"`
	Exact  decimal.Decimal `json:"-" validate:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		form := sl.Current().Interface().(descriptorForm)
		if form.Exact.IsNegative() && form.Amount >= 0 {
			sl.ReportError(form.Amount, "change_amount", "Amount", "gte", "0")
			return
		}
		if ChangeType(form.Type).IsPercentage() && form.Exact.GreaterThan(hundred) {
			sl.ReportError(form.Amount, "change_amount", "Amount", "percent", "100")
		}
	}, descriptorForm{})
	return v
}

// ValidateDescriptor rejects descriptors the input controls must refuse:
// unknown types, negative amounts and percentages above 100. The engine
// itself never calls it.
func ValidateDescriptor(d ChangeDescriptor) error {
	form := descriptorForm{Type: string(d.Type), Amount: d.Amount.InexactFloat64(), Exact: d.Amount}
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must not be negative"
	case "percent":
		return "must not exceed 100 for percentage changes"
	default:
		return fe.Error()
	}
}
