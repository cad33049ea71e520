package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/register/internal/registration"
)

// Memory is an AccountStore kept in process memory. It is used when no
// database is configured and in tests.
type Memory struct {
	mu       sync.RWMutex
	accounts []StoredAccount
	phones   registration.KnownSet
	socials  registration.KnownSet
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		phones:  registration.NewKnownSet(),
		socials: registration.NewKnownSet(),
	}
}

// KnownIdentifiers implements AccountStore.
func (m *Memory) KnownIdentifiers(ctx context.Context) (registration.Seed, error) {
	if err := ctx.Err(); err != nil {
		return registration.Seed{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seed := registration.Seed{
		PhoneNumbers: make([]string, 0, len(m.accounts)),
		SocialIDs:    make([]string, 0, len(m.accounts)),
	}
	for _, a := range m.accounts {
		seed.PhoneNumbers = append(seed.PhoneNumbers, a.PhoneNumber)
		seed.SocialIDs = append(seed.SocialIDs, a.SocialID)
	}
	return seed, nil
}

// SaveAccounts implements AccountStore.
func (m *Memory) SaveAccounts(ctx context.Context, uploadID uuid.UUID, accounts []registration.Account, createdAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check the whole batch first so a conflict leaves the store untouched.
	phones := registration.NewKnownSet()
	socials := registration.NewKnownSet()
	for _, a := range accounts {
		if m.phones.Has(a.PhoneNumber) || phones.Has(a.PhoneNumber) {
			return fmt.Errorf("phone number %s: %w", a.PhoneNumber, ErrDuplicateAccount)
		}
		if m.socials.Has(a.SocialID) || socials.Has(a.SocialID) {
			return fmt.Errorf("social id %s: %w", a.SocialID, ErrDuplicateAccount)
		}
		phones.Add(a.PhoneNumber)
		socials.Add(a.SocialID)
	}

	for _, a := range accounts {
		m.accounts = append(m.accounts, StoredAccount{UploadID: uploadID, CreatedAt: createdAt, Account: a})
		m.phones.Add(a.PhoneNumber)
		m.socials.Add(a.SocialID)
	}
	return nil
}

// Accounts returns a copy of everything stored, in insertion order.
func (m *Memory) Accounts() []StoredAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StoredAccount, len(m.accounts))
	copy(out, m.accounts)
	return out
}
