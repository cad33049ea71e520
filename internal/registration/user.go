package registration

import (
	"fmt"
	"strings"
	"time"
)

// UserFields are the inputs needed to build a UserRecord.
type UserFields struct {
	FirstName   string
	MiddleName  string
	LastName    string
	PhoneNumber string
	SocialID    string
	CreatedAt   time.Time
}

// UserRecord is an accepted registration. Its account number is generated on
// first access and never changes afterwards.
type UserRecord struct {
	FirstName   string
	MiddleName  string
	LastName    string
	PhoneNumber string
	SocialID    string
	CreatedAt   time.Time

	accountNumber *string
	generator     *AccountNumberGenerator
}

// NewUserRecord builds a record from f. Every field except MiddleName is
// required; a missing one yields an error wrapping ErrMissingField.
// A nil generator falls back to the global random source.
func NewUserRecord(f UserFields, gen *AccountNumberGenerator) (*UserRecord, error) {
	var missing []string
	if strings.TrimSpace(f.FirstName) == "" {
		missing = append(missing, "first name")
	}
	if strings.TrimSpace(f.LastName) == "" {
		missing = append(missing, "last name")
	}
	if f.PhoneNumber == "" {
		missing = append(missing, "phone number")
	}
	if f.SocialID == "" {
		missing = append(missing, "social id")
	}
	if f.CreatedAt.IsZero() {
		missing = append(missing, "created date")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	return &UserRecord{
		FirstName:   f.FirstName,
		MiddleName:  f.MiddleName,
		LastName:    f.LastName,
		PhoneNumber: f.PhoneNumber,
		SocialID:    f.SocialID,
		CreatedAt:   f.CreatedAt,
		generator:   gen,
	}, nil
}

// FullName joins first, middle and last name with single spaces.
// An empty middle name leaves a double space.
func (u *UserRecord) FullName() string {
	return u.FirstName + " " + u.MiddleName + " " + u.LastName
}

// AccountNumber returns the record's account number, generating it on the
// first call.
func (u *UserRecord) AccountNumber() string {
	if u.accountNumber == nil {
		n := u.generator.Generate(u.CreatedAt)
		u.accountNumber = &n
	}
	return *u.accountNumber
}

// HasAccountNumber reports whether the account number was already generated.
func (u *UserRecord) HasAccountNumber() bool {
	return u.accountNumber != nil
}

// Account returns the summary view of the record.
func (u *UserRecord) Account() Account {
	return Account{
		FullName:      u.FullName(),
		PhoneNumber:   u.PhoneNumber,
		SocialID:      u.SocialID,
		AccountNumber: u.AccountNumber(),
	}
}
