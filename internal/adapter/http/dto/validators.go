package dto

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	safeIDRe       = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	currencyCodeRe = regexp.MustCompile(`^[a-zA-Z]{3}$`)
)

func init() {
	// Amounts are rendered as JSON numbers (5.05), not strings.
	decimal.MarshalJSONWithoutQuotes = true

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
// Gateway and user ids all fit.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeIDRe.MatchString(fl.Field().String())
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyCodeRe.MatchString(fl.Field().String())
}

// SanitizeStruct trims surrounding whitespace from every exported string
// field (including *string) of a struct pointer. Values are otherwise kept
// as given.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			if elem := f.Elem(); elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return strings.TrimSpace(s)
}
