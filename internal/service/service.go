// Package service runs registrations on behalf of the HTTP server and the
// command line. It has no transport dependencies.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/register/internal/config"
	"github.com/JonMunkholm/register/internal/csvio"
	"github.com/JonMunkholm/register/internal/logging"
	"github.com/JonMunkholm/register/internal/metrics"
	"github.com/JonMunkholm/register/internal/registration"
	"github.com/JonMunkholm/register/internal/store"
)

var (
	// ErrUploadNotFound is returned for unknown or expired upload ids.
	ErrUploadNotFound = errors.New("upload not found")

	// ErrNoFile is returned when a registration is started without input.
	ErrNoFile = errors.New("no file provided")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Service runs registrations and keeps their results for a limited time.
type Service struct {
	store   store.AccountStore
	metrics *metrics.Metrics
	limiter *Limiter

	timeout   time.Duration
	resultTTL time.Duration
	seed      registration.Seed
	now       func() time.Time
	generator *registration.AccountNumberGenerator

	mu      sync.RWMutex
	results map[uuid.UUID]*Result
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records batch outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSeed adds identifiers that count as already registered in every run,
// on top of those loaded from the store.
func WithSeed(seed registration.Seed) Option {
	return func(s *Service) { s.seed = seed }
}

// WithClock sets the clock used for creation dates and result expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandSource sets the entropy behind account number suffixes.
func WithRandSource(src rand.Source) Option {
	return func(s *Service) { s.generator = registration.NewAccountNumberGenerator(src) }
}

// New creates a Service persisting to st and sized by cfg.Upload.
func New(st store.AccountStore, cfg config.UploadConfig, opts ...Option) *Service {
	s := &Service{
		store:     st,
		limiter:   NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		timeout:   cfg.Timeout,
		resultTTL: cfg.ResultTTL,
		now:       time.Now,
		results:   make(map[uuid.UUID]*Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.generator == nil {
		s.generator = registration.NewAccountNumberGenerator(nil)
	}
	return s
}

// Register ingests one CSV stream, persists the accepted accounts and keeps
// the result until it expires. Rejected rows never cause an error.
func (s *Service) Register(ctx context.Context, r io.Reader, fileName string) (*Result, error) {
	if r == nil {
		return nil, ErrNoFile
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	uploadID := uuid.New()
	logger := logging.WithFields(ctx, "upload_id", uploadID, "file", fileName)
	start := time.Now()

	seed, err := s.loadSeed(ctx)
	if err != nil {
		s.metrics.ObserveBatch(0, 0, err, start)
		return nil, err
	}

	batch := registration.NewBatch(seed,
		registration.WithClock(s.now),
		registration.WithGenerator(s.generator),
		registration.WithLogger(logger),
	)

	src := csvio.NewReader(r)
	err = batch.Ingest(ctx, src)
	s.metrics.ObserveBatch(batch.Accepted(), batch.Rejected(), err, start)
	if err != nil {
		logger.Warn("registration failed", "error", err, "rows", batch.TotalRows())
		return nil, err
	}

	createdAt := s.now()
	summary := batch.Summary()
	if err := s.store.SaveAccounts(ctx, uploadID, summary.NewAccounts, createdAt); err != nil {
		s.metrics.IncrementPersistFailures()
		logger.Error("failed to persist accounts", "error", err, "accounts", len(summary.NewAccounts))
		return nil, fmt.Errorf("persist accounts: %w", err)
	}

	res := &Result{
		UploadID:  uploadID,
		FileName:  fileName,
		CreatedAt: createdAt,
		BytesRead: src.BytesRead(),
		Summary:   summary,
		batch:     batch,
		expires:   createdAt.Add(s.resultTTL),
	}

	s.mu.Lock()
	s.results[uploadID] = res
	s.mu.Unlock()

	logger.Info("registration complete",
		"total", summary.TotalRowsUpload,
		"accepted", summary.TotalSuccess,
		"rejected", summary.TotalError,
		"bytes", res.BytesRead,
	)
	return res, nil
}

// loadSeed merges the configured seed with identifiers from the store.
func (s *Service) loadSeed(ctx context.Context) (registration.Seed, error) {
	stored, err := s.store.KnownIdentifiers(ctx)
	if err != nil {
		return registration.Seed{}, fmt.Errorf("load known identifiers: %w", err)
	}

	seed := registration.Seed{
		PhoneNumbers: make([]string, 0, len(s.seed.PhoneNumbers)+len(stored.PhoneNumbers)),
		SocialIDs:    make([]string, 0, len(s.seed.SocialIDs)+len(stored.SocialIDs)),
	}
	seed.PhoneNumbers = append(append(seed.PhoneNumbers, s.seed.PhoneNumbers...), stored.PhoneNumbers...)
	seed.SocialIDs = append(append(seed.SocialIDs, s.seed.SocialIDs...), stored.SocialIDs...)
	return seed, nil
}

// Get returns a result that has not yet expired.
func (s *Service) Get(uploadID uuid.UUID) (*Result, error) {
	s.mu.RLock()
	res, ok := s.results[uploadID]
	s.mu.RUnlock()

	if !ok || res.expired(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}
	return res, nil
}

// ExportAccounts writes the accepted accounts of an upload as CSV.
func (s *Service) ExportAccounts(uploadID uuid.UUID, w io.Writer) error {
	res, err := s.Get(uploadID)
	if err != nil {
		return err
	}
	return writeCSV(w, res.batch.Export)
}

// ExportAccountsFile writes the accepted accounts of an upload to a CSV file.
func (s *Service) ExportAccountsFile(uploadID uuid.UUID, path string) error {
	res, err := s.Get(uploadID)
	if err != nil {
		return err
	}
	return res.batch.ExportFile(path)
}

// ExportFailedRows writes the rejected rows of an upload as CSV.
func (s *Service) ExportFailedRows(uploadID uuid.UUID, w io.Writer) error {
	res, err := s.Get(uploadID)
	if err != nil {
		return err
	}
	return writeCSV(w, res.batch.ExportFailed)
}

func writeCSV(w io.Writer, export func(registration.RowSink) error) error {
	cw := csvio.NewWriter(w)
	if err := export(cw); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("%w: %v", registration.ErrSinkUnavailable, err)
	}
	return nil
}

// ActiveRegistrations returns the number of registrations currently running.
func (s *Service) ActiveRegistrations() int {
	return s.limiter.Active()
}

// WaitForRegistrations blocks until running registrations finish or ctx is done.
func (s *Service) WaitForRegistrations(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
