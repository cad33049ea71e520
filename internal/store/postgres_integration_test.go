//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/JonMunkholm/register/internal/registration"
	"github.com/JonMunkholm/register/internal/store"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	store     *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("register"),
		tcpostgres.WithUsername("register"),
		tcpostgres.WithPassword("register"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err, "failed to start postgres container")
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, dsn)
	s.Require().NoError(err)

	s.store = store.NewPostgres(s.pool)
	s.Require().NoError(s.store.Migrate(ctx))
	s.Require().NoError(s.store.Migrate(ctx), "migrate must be idempotent")
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if err := testcontainers.TerminateContainer(s.container); err != nil {
		s.T().Logf("terminate postgres container: %v", err)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE registered_accounts")
	s.Require().NoError(err)
}

func newAccount(phone, social string) registration.Account {
	return registration.Account{
		FullName:      "Jane  Roe",
		PhoneNumber:   phone,
		SocialID:      social,
		AccountNumber: "IB01062187654321",
	}
}

func (s *PostgresStoreSuite) TestSaveAndLoadIdentifiers() {
	ctx := context.Background()
	uploadID := uuid.New()
	created := time.Date(2021, time.June, 1, 10, 30, 0, 0, time.UTC)

	err := s.store.SaveAccounts(ctx, uploadID, []registration.Account{
		newAccount("0123456789", "123456789"),
		newAccount("1111111111", "222222222"),
	}, created)
	s.Require().NoError(err)

	seed, err := s.store.KnownIdentifiers(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"0123456789", "1111111111"}, seed.PhoneNumbers)
	s.Equal([]string{"123456789", "222222222"}, seed.SocialIDs)

	stored, err := s.store.AccountsByUpload(ctx, uploadID)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.Equal(uploadID, stored[0].UploadID)
	s.True(created.Equal(stored[0].CreatedAt))
	s.Equal("IB01062187654321", stored[1].AccountNumber)
}

func (s *PostgresStoreSuite) TestDuplicateRollsBack() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveAccounts(ctx, uuid.New(), []registration.Account{
		newAccount("0123456789", "123456789"),
	}, time.Now()))

	second := uuid.New()
	err := s.store.SaveAccounts(ctx, second, []registration.Account{
		newAccount("5555555555", "555555555"),
		newAccount("0123456789", "999999999"),
	}, time.Now())
	s.Require().ErrorIs(err, store.ErrDuplicateAccount)

	stored, err := s.store.AccountsByUpload(ctx, second)
	s.Require().NoError(err)
	s.Empty(stored)
}

func (s *PostgresStoreSuite) TestSaveEmptyIsNoop() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveAccounts(ctx, uuid.New(), nil, time.Now()))

	seed, err := s.store.KnownIdentifiers(ctx)
	s.Require().NoError(err)
	s.Empty(seed.PhoneNumbers)
}
