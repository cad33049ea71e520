package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/register/internal/config"
	"github.com/JonMunkholm/register/internal/metrics"
	"github.com/JonMunkholm/register/internal/registration"
	"github.com/JonMunkholm/register/internal/store"
)

const header = "first_name,middle_name,last_name,phone_number,social_id\n"

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func uploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:   1 << 20,
		Timeout:       time.Minute,
		ResultTTL:     time.Hour,
		MaxConcurrent: 2,
		MaxWait:       50 * time.Millisecond,
	}
}

func newTestService(t *testing.T, st store.AccountStore, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2021, time.June, 1, 10, 30, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithRandSource(rand.NewPCG(1, 1))}, opts...)
	return New(st, uploadConfig(), opts...), clock
}

func TestRegister_Success(t *testing.T) {
	mem := store.NewMemory()
	m := metrics.New()
	svc, _ := newTestService(t, mem, WithMetrics(m))

	input := header +
		"John,,Doe,0123456789,123456789\n" +
		"Jane,,Roe,0123456789,987654321\n" +
		"12345,,Smith,1111111111,111111111\n"

	res, err := svc.Register(context.Background(), strings.NewReader(input), "accounts.csv")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.UploadID)
	assert.Equal(t, "accounts.csv", res.FileName)
	assert.Equal(t, int64(len(input)), res.BytesRead)
	assert.Equal(t, 3, res.TotalRowsUpload)
	assert.Equal(t, 1, res.TotalSuccess)
	assert.Equal(t, 2, res.TotalError)
	require.Len(t, res.NewAccounts, 1)
	assert.Equal(t, "John  Doe", res.NewAccounts[0].FullName)
	assert.True(t, strings.HasPrefix(res.NewAccounts[0].AccountNumber, "IB010621"))
	require.Len(t, res.FailedRows, 2)
	assert.Equal(t, 3, res.FailedRows[0].LineNumber)

	stored := mem.Accounts()
	require.Len(t, stored, 1)
	assert.Equal(t, res.UploadID, stored[0].UploadID)
	assert.Equal(t, res.NewAccounts[0], stored[0].Account)

	got, err := svc.Get(res.UploadID)
	require.NoError(t, err)
	assert.Same(t, res, got)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Rows.WithLabelValues(metrics.OutcomeAccepted)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Rows.WithLabelValues(metrics.OutcomeRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Batches.WithLabelValues("ok")))
}

func TestRegister_StoreSeedsLaterRuns(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())
	ctx := context.Background()

	first, err := svc.Register(ctx, strings.NewReader(header+"John,,Doe,0123456789,123456789\n"), "a.csv")
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalSuccess)

	second, err := svc.Register(ctx, strings.NewReader(header+
		"Jane,,Roe,0123456789,999999999\n"+
		"Jim,,Poe,2222222222,123456789\n"+
		"Ann,,Lee,3333333333,333333333\n"), "b.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalSuccess)
	assert.Equal(t, 2, second.TotalError)
}

func TestRegister_WithSeed(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory(), WithSeed(registration.Seed{
		PhoneNumbers: []string{"0123456789"},
	}))

	res, err := svc.Register(context.Background(), strings.NewReader(header+"John,,Doe,0123456789,123456789\n"), "a.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalSuccess)
	assert.Equal(t, 1, res.TotalError)
	assert.Empty(t, res.NewAccounts)
	assert.NotNil(t, res.NewAccounts)
}

func TestRegister_NoFile(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())
	_, err := svc.Register(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrNoFile)
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (f *failingStore) KnownIdentifiers(context.Context) (registration.Seed, error) {
	if f.loadErr != nil {
		return registration.Seed{}, f.loadErr
	}
	return registration.Seed{}, nil
}

func (f *failingStore) SaveAccounts(context.Context, uuid.UUID, []registration.Account, time.Time) error {
	return f.saveErr
}

func TestRegister_StoreFailures(t *testing.T) {
	input := header + "John,,Doe,0123456789,123456789\n"

	t.Run("load", func(t *testing.T) {
		m := metrics.New()
		loadErr := errors.New("dial tcp: connection refused")
		svc, _ := newTestService(t, &failingStore{loadErr: loadErr}, WithMetrics(m))

		_, err := svc.Register(context.Background(), strings.NewReader(input), "a.csv")
		require.ErrorIs(t, err, loadErr)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.Batches.WithLabelValues("error")))
	})

	t.Run("save", func(t *testing.T) {
		m := metrics.New()
		svc, _ := newTestService(t, &failingStore{saveErr: store.ErrDuplicateAccount}, WithMetrics(m))

		_, err := svc.Register(context.Background(), strings.NewReader(input), "a.csv")
		require.ErrorIs(t, err, store.ErrDuplicateAccount)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
		assert.Equal(t, 0, svc.PurgeExpired())
	})
}

func TestRegister_Cancelled(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Register(ctx, strings.NewReader(header), "a.csv")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, svc.ActiveRegistrations())
}

func TestGet_Expiry(t *testing.T) {
	svc, clock := newTestService(t, store.NewMemory())

	res, err := svc.Register(context.Background(), strings.NewReader(header+"John,,Doe,0123456789,123456789\n"), "a.csv")
	require.NoError(t, err)

	_, err = svc.Get(uuid.New())
	require.ErrorIs(t, err, ErrUploadNotFound)

	clock.t = clock.t.Add(59 * time.Minute)
	_, err = svc.Get(res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.PurgeExpired())

	clock.t = clock.t.Add(time.Minute)
	_, err = svc.Get(res.UploadID)
	require.ErrorIs(t, err, ErrUploadNotFound)
	assert.Equal(t, 1, svc.PurgeExpired())
}

func TestExports(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())

	res, err := svc.Register(context.Background(), strings.NewReader(header+
		"John,,Doe,0123456789,123456789\n"+
		",,Roe,1111111111,111111111\n"), "a.csv")
	require.NoError(t, err)

	var accounts bytes.Buffer
	require.NoError(t, svc.ExportAccounts(res.UploadID, &accounts))

	rows, err := csv.NewReader(&accounts).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, registration.ExportHeader, rows[0])
	assert.Equal(t, []string{"John  Doe", "0123456789", "123456789", res.NewAccounts[0].AccountNumber}, rows[1])

	var failed bytes.Buffer
	require.NoError(t, svc.ExportFailedRows(res.UploadID, &failed))

	r := csv.NewReader(&failed)
	r.FieldsPerRecord = -1
	rows, err = r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[1][0])
	assert.Equal(t, "first name: must not be empty", rows[1][1])

	require.ErrorIs(t, svc.ExportAccounts(uuid.New(), &accounts), ErrUploadNotFound)
	require.ErrorIs(t, svc.ExportFailedRows(uuid.New(), &failed), ErrUploadNotFound)
}

func TestStartCleanup_StopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartCleanup(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
}

func TestExportAccountsFile(t *testing.T) {
	svc, _ := newTestService(t, store.NewMemory())
	res, err := svc.Register(context.Background(), strings.NewReader(header+"John,,Doe,0123456789,123456789\n"), "a.csv")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "registered_accounts.csv")
	require.NoError(t, svc.ExportAccountsFile(res.UploadID, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Full name,Phone number,Social ID,Account number\nJohn  Doe,0123456789,123456789,"+res.NewAccounts[0].AccountNumber+"\n", string(data))

	err = svc.ExportAccountsFile(res.UploadID, filepath.Join(t.TempDir(), "missing", "out.csv"))
	require.ErrorIs(t, err, registration.ErrSinkUnavailable)
}
