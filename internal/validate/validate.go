// Package validate checks input structs with go-playground/validator and reports
// problems as errorz.InvalidInput, keyed by the JSON name of each field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/willemschots/rentals/internal/errorz"
)

// Validator wraps go-playground/validator with errorz conversion.
// It's safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a validator. Besides the builtin tags it understands
// "decimal=P.S": a decimal number with at most P digits of which at most S
// are decimals, the notation used by SQL for DECIMAL(P,S).
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names as keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// The error can only be caused by an invalid tag name or a nil
	// function, both are programming errors.
	err := v.RegisterValidation("decimal", validateDecimal)
	if err != nil {
		panic(err)
	}

	return &Validator{v: v}
}

// Validate validates a struct. Field failures are returned as errorz.InvalidInput
// holding an errorz.Keyed for every offending field, in field order.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	out := make(errorz.InvalidInput, 0, len(validationErrs))
	for _, e := range validationErrs {
		out = append(out, errorz.Keyed{
			Key: e.Field(),
			Err: errors.New(friendlyMessage(e)),
		})
	}

	return out
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return "must be less than or equal to " + e.Param()
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return "must be greater than or equal to " + e.Param()
	case "url":
		return "must be a valid URL"
	case "decimal":
		precision, scale, _ := parseDecimalParam(e.Param())
		return fmt.Sprintf("must be a number with at most %d digits and %d decimal places", precision, scale)
	default:
		return "is invalid"
	}
}

func validateDecimal(fl validator.FieldLevel) bool {
	precision, scale, ok := parseDecimalParam(fl.Param())
	if !ok || fl.Field().Kind() != reflect.String {
		return false
	}

	return FitsDecimal(fl.Field().String(), precision, scale)
}

// FitsDecimal reports whether s is a decimal number with at most precision
// digits in total and at most scale digits after the decimal point.
func FitsDecimal(s string, precision, scale int) bool {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}

	// Count the decimals as written, "5.10" has two decimals.
	exp := int(d.Exponent())
	decimals := 0
	if exp < 0 {
		decimals = -exp
	}

	if decimals > scale {
		return false
	}

	// Digits in front of the decimal point. Derived from the coefficient and
	// exponent, so "1e1000000000" is never expanded.
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return true
	}

	intDigits := len(coef.Abs(coef).String()) + exp
	if intDigits < 0 {
		intDigits = 0
	}

	return intDigits <= precision-scale
}

func parseDecimalParam(param string) (int, int, bool) {
	p, s, found := strings.Cut(param, ".")
	if !found {
		return 0, 0, false
	}

	precision, err := strconv.Atoi(p)
	if err != nil {
		return 0, 0, false
	}

	scale, err := strconv.Atoi(s)
	if err != nil || scale > precision || scale < 0 {
		return 0, 0, false
	}

	return precision, scale, true
}
