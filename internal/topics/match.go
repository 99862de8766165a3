package topics

import (
	"fmt"
	"strings"
)

// Match reports whether a concrete topic matches a subscription filter
// using MQTT wildcard semantics:
//
//   - "+" matches exactly one topic level
//   - "#" matches the remaining levels (zero or more) and must be last
//
// A topic beginning with "/" (the TXT controller channels) has an empty
// first level, which "+" matches like any other level.
func Match(topic, filter string) bool {
	if topic == "" || filter == "" {
		return false
	}

	topicLevels := strings.Split(topic, "/")
	filterLevels := strings.Split(filter, "/")

	for i, level := range filterLevels {
		if level == "#" {
			// Valid filters only carry "#" at the end; it matches the
			// parent level itself plus everything below.
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if level == "+" {
			continue
		}
		if level != topicLevels[i] {
			return false
		}
	}

	return len(topicLevels) == len(filterLevels)
}

// ValidateFilter checks a subscription filter for MQTT syntax errors.
//
// Rules enforced:
//   - filter must be non-empty
//   - "#" may appear only once, as the final level
//   - "+" must occupy a whole level ("foo/+bar" is invalid)
//
// Returns:
//   - error: Description of the violation, or nil if the filter is valid
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: filter is empty", ErrInvalidFilter)
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q has '#' before the final level", ErrInvalidFilter, filter)
			}
		case strings.Contains(level, "#"):
			return fmt.Errorf("%w: %q mixes '#' with other characters", ErrInvalidFilter, filter)
		case level == "+":
			// Whole-level single wildcard, fine anywhere.
		case strings.Contains(level, "+"):
			return fmt.Errorf("%w: %q mixes '+' with other characters", ErrInvalidFilter, filter)
		}
	}

	return nil
}

// PatternToFilter converts a template topic pattern into an MQTT filter.
//
// Template topics use "{var}" placeholders that resolve against a single
// path level, equivalent to "+":
//
//	module/v1/ff/{serial}/state  →  module/v1/ff/+/state
//
// Levels without placeholders pass through unchanged.
func PatternToFilter(pattern string) string {
	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		if strings.HasPrefix(level, "{") && strings.HasSuffix(level, "}") && len(level) > 2 {
			levels[i] = "+"
		}
	}
	return strings.Join(levels, "/")
}

// MatchPattern reports whether a concrete topic matches a "{var}" pattern.
func MatchPattern(topic, pattern string) bool {
	return Match(topic, PatternToFilter(pattern))
}
