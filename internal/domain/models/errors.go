package models

import "errors"

var (
	// ErrInsufficientData is fatal to a request: no partial report is produced.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateInput marks a sub-computation with zero variance or zero volume.
	// Detectors recover from it locally with a neutral signal.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrInvalidSample rejects a window with unordered timestamps, a non-finite or
	// non-positive close, or a negative volume. Retrying the same data cannot succeed.
	ErrInvalidSample = errors.New("invalid sample")
	// ErrDataUnavailable is returned when the market-data provider fails.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrNarrativeUnavailable is returned by narrators; it only affects prose.
	ErrNarrativeUnavailable = errors.New("narrative unavailable")
)
