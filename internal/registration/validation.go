package registration

// validation.go decides whether a raw row can become an account.
//
// CheckRow reports the first failing rule so that rejected rows can carry a
// reason in the summary. Accept is the boolean form used by the batch.
// Neither function mutates its arguments.

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	PhoneNumberLength = 10
	SocialIDLength    = 9
)

// ValidationError describes the first rule a row failed.
type ValidationError struct {
	Field   string // Field name
	Value   string // The offending value
	Message string // Human-readable reason
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Accept reports whether row passes every rule given the known identifiers.
func Accept(row RawRow, phones, socialIDs KnownSet) bool {
	return CheckRow(row, phones, socialIDs) == nil
}

// CheckRow validates row and returns the first failure, or nil if the row is
// acceptable.
func CheckRow(row RawRow, phones, socialIDs KnownSet) *ValidationError {
	if err := checkName("first name", row.FirstName()); err != nil {
		return err
	}
	if err := checkName("last name", row.LastName()); err != nil {
		return err
	}
	if err := checkIdentifier("phone number", row.PhoneNumber(), PhoneNumberLength, phones); err != nil {
		return err
	}
	if err := checkIdentifier("social id", row.SocialID(), SocialIDLength, socialIDs); err != nil {
		return err
	}
	return nil
}

func checkName(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Value: value, Message: "must not be empty"}
	}
	if isNumeric(value) {
		return &ValidationError{Field: field, Value: value, Message: "must not be numeric"}
	}
	return nil
}

func checkIdentifier(field, value string, length int, known KnownSet) *ValidationError {
	if len(value) != length {
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be exactly %d digits", length)}
	}
	if !isDigits(value) {
		return &ValidationError{Field: field, Value: value, Message: "must contain only digits"}
	}
	if known.Has(value) {
		return &ValidationError{Field: field, Value: value, Message: "already registered"}
	}
	return nil
}

// isNumeric reports whether s is non-empty and made only of numeric runes.
// Whitespace counts as non-numeric, so " 42" is a valid (if odd) name.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

// isDigits reports whether s consists only of ASCII digits.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
