package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("decimal", decimalWithin(14, 2))
		_ = v.RegisterValidation("quantity", decimalWithin(12, 3))
		_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			return clockPattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// decimalWithin accepts non-negative decimal strings that fit a decimal(precision,
// scale) column without rounding.
func decimalWithin(precision, scale int32) validator.Func {
	limit := decimal.New(1, precision-scale)
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		if err != nil || d.IsNegative() {
			return false
		}
		return d.LessThan(limit) && d.Equal(d.Truncate(scale))
	}
}

// Struct runs the validate tags of v and returns every failure as Errors, keyed by
// the json field name.
func Struct(v any) error {
	return Collect(v).Err()
}

func Collect(v any) Errors {
	out := Errors{}
	err := engine().Struct(v)
	if err == nil {
		return out
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out.Add("body", "The request body is invalid.")
		return out
	}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

// Merge copies other into e.
func (e Errors) Merge(other Errors) {
	for field, messages := range other {
		e[field] = append(e[field], messages...)
	}
}

func message(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("The %s field is required.", label)
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", label, fe.Param())
	case "decimal":
		return fmt.Sprintf("The %s must be a non-negative amount below 10^12 with at most 2 decimal places.", label)
	case "quantity":
		return fmt.Sprintf("The %s must be a non-negative quantity below 10^9 with at most 3 decimal places.", label)
	case "datetime":
		return fmt.Sprintf("The %s does not match the format YYYY-MM-DD.", label)
	case "clock":
		return fmt.Sprintf("The %s must be a time in HH:MM or HH:MM:SS format.", label)
	case "base64":
		return fmt.Sprintf("The %s must be base64 encoded.", label)
	case "gte":
		return fmt.Sprintf("The %s must be at least %s.", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", label)
	default:
		return fmt.Sprintf("The %s field is invalid.", label)
	}
}
