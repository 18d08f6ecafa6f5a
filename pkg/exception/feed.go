package exception

import "github.com/yanun0323/errors"

// Feed errors
var (
	// ErrNoData is returned by a source when no record is available yet.
	ErrNoData = errors.New("feed: no data available")

	// ErrSourceUnavailable is returned when a source cannot be opened at all.
	ErrSourceUnavailable = errors.New("feed: source unavailable")

	ErrSourceClosed = errors.New("feed: source closed")
	ErrNilSource    = errors.New("feed: nil source")
	ErrNilStore     = errors.New("feed: nil store")
)

// Record errors
var (
	ErrRecordMalformed     = errors.New("record: malformed")
	ErrRecordMissingSymbol = errors.New("record: missing symbol")
	ErrRecordInvalidValue  = errors.New("record: invalid value")
)
