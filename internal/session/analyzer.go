package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/database"
	"github.com/nerrad567/aps-observer/internal/topics"
)

// Analyzer runs read-only queries against a recorded session file.
//
// It holds an independent read-only connection, so a live recording can
// be inspected while the recorder writes, and no query can ever mutate
// a session.
type Analyzer struct {
	db *database.DB
}

// TimelineFilter narrows a Timeline query. Zero values are unbounded.
type TimelineFilter struct {
	// From/To bound the timestamp range (inclusive from, exclusive to).
	From time.Time
	To   time.Time

	// Label restricts to one session label.
	Label string

	// Topic restricts to an exact topic.
	Topic string

	// ModuleLike restricts to topics containing this substring,
	// typically a module serial number.
	ModuleLike string

	// Limit caps the number of rows returned. 0 means no cap.
	Limit int
}

// NewAnalyzer opens a session file for analysis.
//
// Parameters:
//   - path: Session database file
//
// Returns:
//   - *Analyzer: Ready analyzer; caller must Close
//   - error: If the file does not exist or cannot be opened
func NewAnalyzer(path string) (*Analyzer, error) {
	db, err := database.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	return &Analyzer{db: db}, nil
}

// Close releases the session file.
func (a *Analyzer) Close() error {
	return a.db.Close()
}

// MessageCount returns the total number of recorded messages.
func (a *Analyzer) MessageCount(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return n, nil
}

// CountByPrefix counts messages whose topic starts with prefix.
//
// Parameters:
//   - ctx: Query context
//   - prefix: Literal topic prefix (no wildcards)
func (a *Analyzer) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE substr(topic, 1, ?) = ?`,
		len(prefix), prefix,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return n, nil
}

// CountByPattern counts messages whose topic matches an MQTT filter.
//
// Wildcard matching runs in Go over the distinct-topic set, so the
// usual `+`/`#` semantics apply rather than SQL LIKE semantics.
//
// Parameters:
//   - ctx: Query context
//   - filter: MQTT topic filter, wildcards allowed
func (a *Analyzer) CountByPattern(ctx context.Context, filter string) (int64, error) {
	if err := topics.ValidateFilter(filter); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	counts, err := a.TopicCounts(ctx)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, tc := range counts {
		if topics.Match(tc.Topic, filter) {
			n += tc.Count
		}
	}
	return n, nil
}

// TopicCounts returns every distinct topic with its message count,
// busiest first.
func (a *Analyzer) TopicCounts(ctx context.Context) ([]TopicCount, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT topic, COUNT(*) AS n
		FROM messages
		GROUP BY topic
		ORDER BY n DESC, topic ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []TopicCount
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return out, nil
}

// FirstOccurrences returns the first captured message on each topic,
// ordered by topic.
func (a *Analyzer) FirstOccurrences(ctx context.Context) ([]FirstSeen, error) {
	// SQLite resolves the bare columns from the MIN(id) row.
	rows, err := a.db.QueryContext(ctx, `
		SELECT topic, timestamp, payload, MIN(id)
		FROM messages
		GROUP BY topic
		ORDER BY topic ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []FirstSeen
	for rows.Next() {
		var (
			fs    FirstSeen
			tsRaw string
			id    int64
		)
		if err := rows.Scan(&fs.Topic, &tsRaw, &fs.Payload, &id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		ts, err := parseTimestamp(tsRaw)
		if err == nil {
			fs.Timestamp = ts
		}
		out = append(out, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return out, nil
}

// Timeline returns records matching the filter in ascending timestamp
// order.
//
// Parameters:
//   - ctx: Query context
//   - f: Filter; zero-value fields are unbounded
func (a *Analyzer) Timeline(ctx context.Context, f TimelineFilter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTimestamp(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, formatTimestamp(f.To))
	}
	if f.Label != "" {
		where = append(where, "session_label = ?")
		args = append(args, f.Label)
	}
	if f.Topic != "" {
		where = append(where, "topic = ?")
		args = append(args, f.Topic)
	}
	if f.ModuleLike != "" {
		where = append(where, "instr(topic, ?) > 0")
		args = append(args, f.ModuleLike)
	}

	query := `SELECT id, timestamp, topic, payload, qos, retain, session_label FROM messages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []Record
	for rows.Next() {
		var (
			rec    Record
			tsRaw  string
			retain int
		)
		if err := rows.Scan(&rec.ID, &tsRaw, &rec.Topic, &rec.Payload, &rec.QoS, &retain, &rec.SessionLabel); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		if ts, err := parseTimestamp(tsRaw); err == nil {
			rec.Timestamp = ts
		}
		rec.Retain = retain != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return out, nil
}

// Labels returns the distinct session labels present in the file.
func (a *Analyzer) Labels(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT DISTINCT session_label FROM messages ORDER BY session_label ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		out = append(out, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return out, nil
}
