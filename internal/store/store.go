// Package store persists registered accounts and loads the phone numbers and
// social ids that earlier runs already claimed.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/register/internal/registration"
)

// ErrDuplicateAccount is returned when a saved account reuses a phone number
// or social id that is already stored. Nothing from the failing call is kept.
var ErrDuplicateAccount = errors.New("duplicate account: phone number or social id already registered")

// AccountStore is the persistence boundary used by the registration service.
type AccountStore interface {
	// KnownIdentifiers returns every stored phone number and social id.
	KnownIdentifiers(ctx context.Context) (registration.Seed, error)

	// SaveAccounts stores accounts from one upload atomically.
	SaveAccounts(ctx context.Context, uploadID uuid.UUID, accounts []registration.Account, createdAt time.Time) error
}

// StoredAccount is a registered account together with its upload metadata.
type StoredAccount struct {
	UploadID  uuid.UUID
	CreatedAt time.Time
	registration.Account
}
