package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/JonMunkholm/register/internal/csvio"
)

// ContextCheckInterval is how often (in rows) Ingest checks for cancellation.
var ContextCheckInterval = 100

// fieldPositioner is implemented by sources that know where a record starts
// in the file, such as *csv.Reader.
type fieldPositioner interface {
	FieldPos(field int) (line, column int)
}

// Batch runs one registration: it ingests a record source exactly once and
// can then be queried repeatedly. A Batch is not safe for concurrent use.
type Batch struct {
	phones    KnownSet
	socialIDs KnownSet

	records []*UserRecord
	failed  []FailedRow

	totalRows int
	accepted  int
	rejected  int
	ingested  bool

	now       func() time.Time
	generator *AccountNumberGenerator
	logger    *slog.Logger
}

// Option configures a Batch.
type Option func(*Batch)

// WithClock sets the clock used for record creation dates.
func WithClock(now func() time.Time) Option {
	return func(b *Batch) { b.now = now }
}

// WithGenerator sets the account number generator.
func WithGenerator(g *AccountNumberGenerator) Option {
	return func(b *Batch) { b.generator = g }
}

// WithLogger sets the logger for ingestion events.
func WithLogger(l *slog.Logger) Option {
	return func(b *Batch) { b.logger = l }
}

// NewBatch creates an idle batch whose uniqueness sets start with seed.
func NewBatch(seed Seed, opts ...Option) *Batch {
	b := &Batch{
		phones:    NewKnownSet(seed.PhoneNumbers...),
		socialIDs: NewKnownSet(seed.SocialIDs...),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.generator == nil {
		b.generator = NewAccountNumberGenerator(nil)
	}
	return b
}

// IngestFile opens the CSV file at path and ingests it. The file is closed on
// every exit path. An empty or missing path yields ErrSourceUnavailable with
// zero rows processed.
func (b *Batch) IngestFile(ctx context.Context, path string) error {
	r, err := csvio.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer r.Close()

	return b.Ingest(ctx, r)
}

// Ingest consumes src to completion. The first row is treated as a header.
//
// Invalid rows are counted as rejections and never returned as errors. A read
// failure returns an error wrapping ErrSourceUnavailable; counters keep the
// state reached before the failure.
func (b *Batch) Ingest(ctx context.Context, src RowSource) error {
	if b.ingested {
		return ErrAlreadyIngested
	}
	b.ingested = true

	if _, err := src.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: read header: %v", ErrSourceUnavailable, err)
	}

	pos, hasPos := src.(fieldPositioner)

	for i := 0; ; i++ {
		// Without position info, records are assumed to sit on consecutive lines.
		lineNum := i + 2

		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("ingest cancelled at record %d: %w", i+1, err)
			}
		}

		cells, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: record %d (line %d): %v", ErrSourceUnavailable, i+1, lineNum, err)
		}

		if hasPos && len(cells) > 0 {
			if line, _ := pos.FieldPos(0); line > 0 {
				lineNum = line
			}
		}
		b.ingestRow(lineNum, RawRow(cells))
	}

	b.logger.Info("registration batch ingested",
		"rows", b.totalRows,
		"accepted", b.accepted,
		"rejected", b.rejected,
	)
	return nil
}

func (b *Batch) ingestRow(lineNum int, row RawRow) {
	b.totalRows++

	if verr := CheckRow(row, b.phones, b.socialIDs); verr != nil {
		b.reject(lineNum, row, verr.Error())
		return
	}

	rec, err := NewUserRecord(UserFields{
		FirstName:   row.FirstName(),
		MiddleName:  row.MiddleName(),
		LastName:    row.LastName(),
		PhoneNumber: row.PhoneNumber(),
		SocialID:    row.SocialID(),
		CreatedAt:   b.now(),
	}, b.generator)
	if err != nil {
		b.reject(lineNum, row, err.Error())
		return
	}

	b.records = append(b.records, rec)
	b.phones.Add(rec.PhoneNumber)
	b.socialIDs.Add(rec.SocialID)
	b.accepted++
}

func (b *Batch) reject(lineNum int, row RawRow, reason string) {
	b.rejected++
	b.failed = append(b.failed, FailedRow{
		LineNumber: lineNum,
		Reason:     reason,
		Data:       append([]string(nil), row...),
	})
	b.logger.Debug("row rejected", "line", lineNum, "reason", reason)
}

// Records returns the accepted records in acceptance order.
func (b *Batch) Records() []*UserRecord {
	return b.records
}

// TotalRows returns the number of data rows seen.
func (b *Batch) TotalRows() int { return b.totalRows }

// Accepted returns the number of accepted rows.
func (b *Batch) Accepted() int { return b.accepted }

// Rejected returns the number of rejected rows.
func (b *Batch) Rejected() int { return b.rejected }

// Summary returns the aggregate result. Account numbers not yet generated are
// generated here.
func (b *Batch) Summary() Summary {
	s := Summary{
		TotalRowsUpload: b.totalRows,
		TotalSuccess:    b.accepted,
		TotalError:      b.rejected,
		NewAccounts:     make([]Account, 0, len(b.records)),
	}
	for _, rec := range b.records {
		s.NewAccounts = append(s.NewAccounts, rec.Account())
	}
	if len(b.failed) > 0 {
		s.FailedRows = append([]FailedRow(nil), b.failed...)
	}
	return s
}

// Export writes ExportHeader followed by one row per accepted record.
// A write failure returns an error wrapping ErrSinkUnavailable and leaves the
// batch untouched.
func (b *Batch) Export(sink RowSink) error {
	if err := sink.Write(ExportHeader); err != nil {
		return fmt.Errorf("%w: write header: %v", ErrSinkUnavailable, err)
	}
	for _, rec := range b.records {
		row := []string{rec.FullName(), rec.PhoneNumber, rec.SocialID, rec.AccountNumber()}
		if err := sink.Write(row); err != nil {
			return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
		}
	}
	return nil
}

// ExportFile writes the accepted records to a CSV file at path.
func (b *Batch) ExportFile(path string) (err error) {
	w, err := csvio.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrSinkUnavailable, cerr)
		}
	}()

	return b.Export(w)
}

// ExportFailed writes the rejected rows, each prefixed by its line number and
// rejection reason.
func (b *Batch) ExportFailed(sink RowSink) error {
	if err := sink.Write(FailedExportHeader); err != nil {
		return fmt.Errorf("%w: write header: %v", ErrSinkUnavailable, err)
	}
	for _, f := range b.failed {
		row := append([]string{strconv.Itoa(f.LineNumber), f.Reason}, f.Data...)
		if err := sink.Write(row); err != nil {
			return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
		}
	}
	return nil
}
