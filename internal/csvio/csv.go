// Package csvio reads and writes the delimited files consumed and produced by
// the registration pipeline.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEmptyPath is returned when a file operation is given no path.
var ErrEmptyPath = errors.New("empty file path")

// Reader yields CSV records from a sanitized stream.
type Reader struct {
	csv    *csv.Reader
	count  *CountingReader
	closer io.Closer
}

// NewReader reads CSV records from r. Rows may have any number of fields and
// stray quotes are tolerated.
func NewReader(r io.Reader) *Reader {
	count := Wrap(r)
	cr := csv.NewReader(count)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return &Reader{csv: cr, count: count}
}

// Open opens the CSV file at path for reading. Close releases the file.
func Open(path string) (*Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Read returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Read() ([]string, error) {
	return r.csv.Read()
}

// FieldPos returns the file line and column where the given field of the
// most recently read record starts.
func (r *Reader) FieldPos(field int) (line, column int) {
	return r.csv.FieldPos(field)
}

// BytesRead returns the number of input bytes consumed so far.
func (r *Reader) BytesRead() int64 {
	return r.count.BytesRead
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Writer writes CSV records and flushes them on Close.
type Writer struct {
	csv    *csv.Writer
	closer io.Closer
}

// NewWriter writes CSV records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Create creates (or truncates) the file at path for writing.
func Create(path string) (*Writer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write writes one record.
func (w *Writer) Write(record []string) error {
	return w.csv.Write(record)
}

// Close flushes buffered records and closes the underlying file, if any.
// The flush error takes precedence over the close error.
func (w *Writer) Close() error {
	w.csv.Flush()
	flushErr := w.csv.Error()
	if w.closer == nil {
		return flushErr
	}
	closeErr := w.closer.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
