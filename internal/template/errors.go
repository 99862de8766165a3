package template

import "errors"

// Domain-specific errors for the template manager.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrLoadFailed is returned when the template tree cannot be read or parsed.
	ErrLoadFailed = errors.New("template: loading templates failed")

	// ErrDuplicateTemplate is returned when two files declare the same exact topic.
	ErrDuplicateTemplate = errors.New("template: duplicate exact topic")

	// ErrUnknownTopic is returned by Validate when no template covers a topic.
	ErrUnknownTopic = errors.New("template: no template for topic")
)
