// Package validation collects per-field request violations.
package validation

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"invoice-service/internal/apperror"
)

// Violations maps a field name to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns a validation error carrying v as details, or nil when v is empty.
func (v Violations) Err(message string) error {
	if v.Empty() {
		return nil
	}
	details := make(map[string]any, len(v))
	for field, code := range v {
		details[field] = code
	}
	return apperror.NewValidation(message).WithDetails(details)
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Email flags value unless it is a bare address. Empty values are left to Required.
func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v[field] = "invalid_email"
	}
}

func MinLength(field, value string, n int, v Violations) {
	if utf8.RuneCountInString(value) < n {
		v[field] = "too_short"
	}
}
