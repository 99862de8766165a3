package topics

import "errors"

// Domain-specific errors for the topic registry.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidFilter is returned for filters that break MQTT wildcard rules.
	ErrInvalidFilter = errors.New("topics: invalid filter syntax")

	// ErrInvalidTier is returned for tier requests outside 1..6.
	ErrInvalidTier = errors.New("topics: invalid priority tier")

	// ErrDuplicateTopic is returned when the catalog declares the same
	// filter in more than one tier. This is a load-time error.
	ErrDuplicateTopic = errors.New("topics: duplicate topic declaration")
)
