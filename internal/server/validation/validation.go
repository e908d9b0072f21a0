// Package validation checks request fields and collects every failure into a
// single *Error so clients can show them all at once.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when one or more fields fail validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator returns an error message for v, or "" when v is acceptable.
type Validator func(v string) string

var (
	emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z\s]+$`)
)

// Required rejects blank values and values longer than maxLen runes.
func Required(label string, maxLen int) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return label + " is required"
		}
		if utf8.RuneCountInString(v) > maxLen {
			return fmt.Sprintf("%s must be less than %d characters", label, maxLen)
		}
		return ""
	}
}

// MaxLen rejects values longer than maxLen runes. Blank is accepted.
func MaxLen(label string, maxLen int) Validator {
	return func(v string) string {
		if utf8.RuneCountInString(strings.TrimSpace(v)) > maxLen {
			return fmt.Sprintf("%s must be less than %d characters", label, maxLen)
		}
		return ""
	}
}

// LengthRange requires between minLen and maxLen runes after trimming.
func LengthRange(label string, minLen, maxLen int) Validator {
	return func(v string) string {
		n := utf8.RuneCountInString(strings.TrimSpace(v))
		if n < minLen || n > maxLen {
			return fmt.Sprintf("%s must be between %d and %d characters", label, minLen, maxLen)
		}
		return ""
	}
}

// ByteRange bounds the raw byte length. Passwords are not trimmed and bcrypt
// limits input by bytes.
func ByteRange(label string, minLen, maxLen int) Validator {
	return func(v string) string {
		if len(v) < minLen || len(v) > maxLen {
			return fmt.Sprintf("%s must be between %d and %d characters", label, minLen, maxLen)
		}
		return ""
	}
}

func Pattern(re *regexp.Regexp, message string) Validator {
	return func(v string) string {
		if !re.MatchString(strings.TrimSpace(v)) {
			return message
		}
		return ""
	}
}

// Email accepts a conventional address.
func Email() Validator {
	return Pattern(emailPattern, "Please provide a valid email")
}

// PersonName accepts 2 to 50 letters and spaces.
func PersonName(label string) []Validator {
	return []Validator{
		LengthRange(label, 2, 50),
		Pattern(namePattern, label+" can only contain letters and spaces"),
	}
}

// OneOf accepts exactly one of options (case-sensitive).
func OneOf(label string, options ...string) Validator {
	return func(v string) string {
		for _, opt := range options {
			if v == opt {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(options, ", "))
	}
}

// FieldValidator accumulates failures across fields in the order checked.
type FieldValidator struct {
	fields []FieldError
	failed map[string]bool
}

func New() *FieldValidator {
	return &FieldValidator{failed: make(map[string]bool)}
}

// Validate runs validators against value and records the first failure.
// A field that already failed is not checked again.
func (fv *FieldValidator) Validate(field, value string, validators ...Validator) *FieldValidator {
	if fv.failed[field] {
		return fv
	}
	for _, v := range validators {
		if msg := v(value); msg != "" {
			fv.Add(field, msg)
			break
		}
	}
	return fv
}

// Optional validates value only when it is set.
func (fv *FieldValidator) Optional(field string, value *string, validators ...Validator) *FieldValidator {
	if value == nil {
		return fv
	}
	return fv.Validate(field, *value, validators...)
}

// Check records message for field when ok is false.
func (fv *FieldValidator) Check(ok bool, field, message string) *FieldValidator {
	if !ok && !fv.failed[field] {
		fv.Add(field, message)
	}
	return fv
}

func (fv *FieldValidator) Add(field, message string) {
	fv.failed[field] = true
	fv.fields = append(fv.fields, FieldError{Field: field, Message: message})
}

// Err returns the collected failures as *Error, or nil when there are none.
func (fv *FieldValidator) Err() error {
	if len(fv.fields) == 0 {
		return nil
	}
	return &Error{Fields: fv.fields}
}
