package model

import "errors"

// Input failures are surfaced to the caller immediately — a malformed series
// must never be silently coerced into findings. Too little data is NOT an
// error: detectors degrade to an empty result instead.
var (
	ErrEmptySeries     = errors.New("empty candle series")
	ErrUnorderedSeries = errors.New("candle timestamps not strictly increasing")
	ErrMalformedCandle = errors.New("malformed candle")

	// ErrBadParam rejects an invalid detector parameter before any
	// computation starts.
	ErrBadParam = errors.New("invalid parameter")

	// ErrUnknownOp is returned for operation names the registry does not know.
	ErrUnknownOp = errors.New("unknown operation")
)

// IsInputError reports whether err is a series-shape validation failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptySeries) ||
		errors.Is(err, ErrUnorderedSeries) ||
		errors.Is(err, ErrMalformedCandle)
}
