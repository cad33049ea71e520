package registration

import "errors"

var (
	// ErrSourceUnavailable is returned when the record source cannot be
	// opened or read.
	ErrSourceUnavailable = errors.New("record source unavailable")

	// ErrSinkUnavailable is returned when accepted records cannot be written
	// to the record sink.
	ErrSinkUnavailable = errors.New("record sink unavailable")

	// ErrMissingField is returned when a UserRecord is built without one of
	// its required fields.
	ErrMissingField = errors.New("missing required field")
)

// ErrAlreadyIngested is returned when Ingest is called on a batch that has
// already consumed a source.
var ErrAlreadyIngested = errors.New("batch already ingested")
