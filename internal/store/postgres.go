package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/register/internal/registration"
)

// Schema creates the accounts table. Phone numbers and social ids are unique
// across all uploads.
const Schema = `
CREATE TABLE IF NOT EXISTS registered_accounts (
    id             BIGSERIAL PRIMARY KEY,
    upload_id      UUID        NOT NULL,
    full_name      TEXT        NOT NULL,
    phone_number   TEXT        NOT NULL UNIQUE,
    social_id      TEXT        NOT NULL UNIQUE,
    account_number TEXT        NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS registered_accounts_upload_id_idx ON registered_accounts (upload_id);
`

const uniqueViolation = "23505"

var accountColumns = []string{
	"upload_id", "full_name", "phone_number", "social_id", "account_number", "created_at",
}

// Postgres is an AccountStore backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate registered_accounts: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// KnownIdentifiers implements AccountStore.
func (p *Postgres) KnownIdentifiers(ctx context.Context) (registration.Seed, error) {
	rows, err := p.pool.Query(ctx, `SELECT phone_number, social_id FROM registered_accounts ORDER BY id`)
	if err != nil {
		return registration.Seed{}, fmt.Errorf("query known identifiers: %w", err)
	}
	defer rows.Close()

	var seed registration.Seed
	for rows.Next() {
		var phone, social string
		if err := rows.Scan(&phone, &social); err != nil {
			return registration.Seed{}, fmt.Errorf("scan known identifiers: %w", err)
		}
		seed.PhoneNumbers = append(seed.PhoneNumbers, phone)
		seed.SocialIDs = append(seed.SocialIDs, social)
	}
	if err := rows.Err(); err != nil {
		return registration.Seed{}, fmt.Errorf("iterate known identifiers: %w", err)
	}
	return seed, nil
}

// SaveAccounts implements AccountStore. All accounts are copied inside one
// transaction.
func (p *Postgres) SaveAccounts(ctx context.Context, uploadID uuid.UUID, accounts []registration.Account, createdAt time.Time) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	id := pgtype.UUID{Bytes: [16]byte(uploadID), Valid: true}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"registered_accounts"},
		accountColumns,
		pgx.CopyFromSlice(len(accounts), func(i int) ([]any, error) {
			a := accounts[i]
			return []any{id, a.FullName, a.PhoneNumber, a.SocialID, a.AccountNumber, createdAt}, nil
		}),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("copy accounts: %w: %s", ErrDuplicateAccount, pgErr.ConstraintName)
		}
		return fmt.Errorf("copy accounts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}

// AccountsByUpload returns the accounts stored for one upload in insertion order.
func (p *Postgres) AccountsByUpload(ctx context.Context, uploadID uuid.UUID) ([]StoredAccount, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT upload_id, full_name, phone_number, social_id, account_number, created_at
		FROM registered_accounts
		WHERE upload_id = $1
		ORDER BY id`,
		pgtype.UUID{Bytes: [16]byte(uploadID), Valid: true},
	)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []StoredAccount
	for rows.Next() {
		var (
			sa StoredAccount
			id pgtype.UUID
		)
		if err := rows.Scan(&id, &sa.FullName, &sa.PhoneNumber, &sa.SocialID, &sa.AccountNumber, &sa.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		sa.UploadID = uuid.UUID(id.Bytes)
		out = append(out, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}
