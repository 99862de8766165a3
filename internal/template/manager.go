package template

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/aps-observer/internal/topics"
)

// Manager loads per-category template files and answers validation
// questions about wire payloads.
//
// Loading is lazy on first access but idempotent; subsequent calls see
// the cached catalog. Construct one Manager per process and pass it
// through; tests may construct isolated instances against a temp dir.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Manager struct {
	dir string

	loadOnce sync.Once
	loadErr  error

	// exact maps concrete topics to their template.
	exact map[string]*Template

	// patterns holds "{var}" templates in declared order; the first
	// declared match wins when no exact template exists.
	patterns []*Template

	categories map[string]struct{}

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional load-time diagnostics.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// NewManager creates a Manager rooted at the given template directory.
// Nothing is read until the first Get, Validate, or Statistics call.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:        dir,
		exact:      make(map[string]*Template),
		categories: make(map[string]struct{}),
	}
}

// SetLogger sets a logger for load-time warnings (pattern collisions).
// If not set, collisions are silently tolerated.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// Load forces the template tree to be read now. Optional: accessors load
// lazily, but startup paths call Load to make configuration errors fatal
// before connecting to the broker.
func (m *Manager) Load() error {
	m.ensureLoaded()
	return m.loadErr
}

// Get returns the template governing a concrete topic.
//
// Matching rule: an exact topic entry wins; otherwise "{var}" patterns
// are tried in declared order and the first match wins.
//
// Returns:
//   - *Template: The matched template
//   - bool: false if no template covers the topic
func (m *Manager) Get(topic string) (*Template, bool) {
	m.ensureLoaded()
	if m.loadErr != nil {
		return nil, false
	}

	if tpl, ok := m.exact[topic]; ok {
		return tpl, true
	}
	for _, tpl := range m.patterns {
		if topics.MatchPattern(topic, tpl.Topic) {
			return tpl, true
		}
	}
	return nil, false
}

// Validate checks a parsed payload against the template for a topic.
//
// Rules checked: required fields present, value types match the declared
// type, enum membership, ISO 8601 format on marked strings. Unknown extra
// fields are allowed but reported as warnings.
//
// Parameters:
//   - topic: Concrete topic the payload arrived on
//   - payload: Parsed JSON object (as unmarshalled into map[string]any)
//
// Returns:
//   - Result: Validation outcome
//   - error: ErrUnknownTopic if no template covers the topic, or a
//     load error if the template tree is unreadable
func (m *Manager) Validate(topic string, payload map[string]any) (Result, error) {
	m.ensureLoaded()
	if m.loadErr != nil {
		return Result{}, m.loadErr
	}

	tpl, ok := m.Get(topic)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	res := Result{Valid: true}

	// Deterministic error ordering keeps log output and tests stable.
	names := make([]string, 0, len(tpl.Fields))
	for name := range tpl.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := tpl.Fields[name]
		value, present := payload[name]
		if !present {
			if field.Required {
				res.Errors = append(res.Errors, fmt.Sprintf("missing required field %q", name))
			}
			continue
		}
		res.Errors = append(res.Errors, checkField(name, field, value)...)
	}

	for name := range payload {
		if _, declared := tpl.Fields[name]; !declared {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown field %q", name))
		}
	}
	sort.Strings(res.Warnings)

	res.Valid = len(res.Errors) == 0
	return res, nil
}

// Statistics returns counts over the loaded template tree.
func (m *Manager) Statistics() (Statistics, error) {
	m.ensureLoaded()
	if m.loadErr != nil {
		return Statistics{}, m.loadErr
	}

	stats := Statistics{
		Templates:  len(m.exact) + len(m.patterns),
		Categories: len(m.categories),
	}
	for _, tpl := range m.exact {
		stats.Examples += len(tpl.Examples)
		stats.ValidationRules += len(tpl.ValidationRules)
	}
	for _, tpl := range m.patterns {
		stats.Examples += len(tpl.Examples)
		stats.ValidationRules += len(tpl.ValidationRules)
	}
	return stats, nil
}

// checkField validates a single present field value.
func checkField(name string, field Field, value any) []string {
	var errs []string

	switch field.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("field %q must be a string", name)}
		}
		if field.Format == FormatISO8601 && !isISO8601(s) {
			errs = append(errs, fmt.Sprintf("field %q must be an ISO 8601 timestamp", name))
		}
		if len(field.Enum) > 0 && !containsString(field.Enum, s) {
			errs = append(errs, fmt.Sprintf("field %q value %q not in enum [%s]",
				name, s, strings.Join(field.Enum, ", ")))
		}
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int64, json.Number:
			// Accepted numeric representations from encoding/json.
		default:
			errs = append(errs, fmt.Sprintf("field %q must be a number", name))
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			errs = append(errs, fmt.Sprintf("field %q must be a boolean", name))
		}
	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			errs = append(errs, fmt.Sprintf("field %q must be an object", name))
		}
	case TypeArray:
		if _, ok := value.([]any); !ok {
			errs = append(errs, fmt.Sprintf("field %q must be an array", name))
		}
	default:
		errs = append(errs, fmt.Sprintf("field %q has unknown declared type %q", name, field.Type))
	}

	return errs
}

// isISO8601 accepts RFC 3339 timestamps with or without fractional seconds.
func isISO8601(s string) bool {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse("2006-01-02T15:04:05.000Z", s)
	return err == nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
