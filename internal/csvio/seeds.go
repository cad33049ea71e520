package csvio

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column names looked up by ReadSeeds. They match the header written by an
// account export.
const (
	PhoneNumberColumn = "Phone number"
	SocialIDColumn    = "Social ID"
)

// HeaderIndex maps lowercase column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(CleanCell(h))] = i
	}
	return idx
}

// Cell returns the cleaned value of column name in row, or "" if absent.
func (h HeaderIndex) Cell(row []string, name string) string {
	pos, ok := h[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// CleanCell trims whitespace and strips an Excel text-formula wrapper
// (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else {
		s = strings.TrimPrefix(s, "=")
	}
	return strings.Trim(s, `"'`)
}

// ReadSeeds reads the phone numbers and social ids from a previous account
// export at path. Blank cells are skipped.
func ReadSeeds(path string) (phones, socialIDs []string, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read seed header: %w", err)
	}

	idx := MakeHeaderIndex(header)
	var missing []string
	for _, col := range []string{PhoneNumberColumn, SocialIDColumn} {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("seed file %s: missing required columns: %s", path, strings.Join(missing, ", "))
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read seed row: %w", err)
		}
		if v := idx.Cell(row, PhoneNumberColumn); v != "" {
			phones = append(phones, v)
		}
		if v := idx.Cell(row, SocialIDColumn); v != "" {
			socialIDs = append(socialIDs, v)
		}
	}
	return phones, socialIDs, nil
}
