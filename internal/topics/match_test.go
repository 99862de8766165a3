package topics

import (
	"errors"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		filter string
		want   bool
	}{
		{"exact", "ccu/order/request", "ccu/order/request", true},
		{"exact mismatch", "ccu/order/request", "ccu/order/response", false},
		{"plus one level", "module/v1/ff/SVR4H76449/state", "module/v1/ff/+/state", true},
		{"plus wrong depth", "module/v1/ff/SVR4H76449/state/extra", "module/v1/ff/+/state", false},
		{"plus must consume a level", "module/v1/ff/state", "module/v1/ff/+/state", false},
		{"hash matches deep suffix", "ccu/pairing/state/detail", "ccu/pairing/#", true},
		{"hash matches parent level", "ccu/pairing", "ccu/pairing/#", true},
		{"hash matches zero extra levels", "ccu/pairing/state", "ccu/pairing/#", true},
		{"bare hash matches everything", "/j1/txt/1/i1", "#", true},
		{"leading slash empty level", "/j1/txt/1/i1", "/j1/txt/1/#", true},
		{"leading slash not matched by named level", "/j1/txt/1/i1", "j1/txt/1/#", false},
		{"plus matches empty leading level", "/j1/txt", "+/j1/txt", true},
		{"filter longer than topic", "ccu/order", "ccu/order/request", false},
		{"empty topic", "", "#", false},
		{"empty filter", "ccu/order/request", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.topic, tt.filter); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.topic, tt.filter, got, tt.want)
			}
		})
	}
}

func TestValidateFilter(t *testing.T) {
	valid := []string{
		"#",
		"ccu/#",
		"ccu/order/request",
		"module/v1/ff/+/state",
		"+/+/+",
		"/j1/txt/1/#",
	}
	for _, filter := range valid {
		if err := ValidateFilter(filter); err != nil {
			t.Errorf("ValidateFilter(%q) error = %v, want nil", filter, err)
		}
	}

	invalid := []string{
		"",
		"ccu/#/state",
		"ccu/order#",
		"ccu/+order/request",
		"#/ccu",
	}
	for _, filter := range invalid {
		err := ValidateFilter(filter)
		if err == nil {
			t.Errorf("ValidateFilter(%q) = nil, want error", filter)
			continue
		}
		if !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("ValidateFilter(%q) error = %v, want ErrInvalidFilter", filter, err)
		}
	}
}

func TestPatternToFilter(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"module/v1/ff/{serial}/state", "module/v1/ff/+/state"},
		{"fts/v1/ff/{serial}/{channel}", "fts/v1/ff/+/+"},
		{"ccu/order/request", "ccu/order/request"},
		{"a/{}/b", "a/{}/b"}, // empty placeholder is not a variable
	}

	for _, tt := range tests {
		if got := PatternToFilter(tt.pattern); got != tt.want {
			t.Errorf("PatternToFilter(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestMatchPattern(t *testing.T) {
	if !MatchPattern("module/v1/ff/SVR4H76449/connection", "module/v1/ff/{serial}/connection") {
		t.Error("MatchPattern() = false for matching serial pattern")
	}
	if MatchPattern("module/v1/ff/SVR4H76449/state", "module/v1/ff/{serial}/connection") {
		t.Error("MatchPattern() = true for mismatched channel")
	}
}
