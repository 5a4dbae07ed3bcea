// Package validation содержит проверку входных данных API.
package validation

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct проверяет структуру запроса по её validate-тегам.
func Struct(s any) error {
	return validate.Struct(s)
}

// IsValidInvoiceNumber проверяет формат номера счёта: "INV-" и не менее
// четырёх цифр порядкового номера.
func IsValidInvoiceNumber(number string) bool {
	const prefix = "INV-"
	if !strings.HasPrefix(number, prefix) {
		return false
	}

	digits := number[len(prefix):]
	if len(digits) < 4 {
		return false
	}
	for _, ch := range digits {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}
