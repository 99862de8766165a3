package session

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
	"github.com/nerrad567/aps-observer/internal/infrastructure/database"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
	"github.com/nerrad567/aps-observer/internal/infrastructure/mqtt"
)

// schemaSQL creates the session message table on first use.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     TEXT    NOT NULL,
	topic         TEXT    NOT NULL,
	payload       TEXT    NOT NULL,
	qos           INTEGER NOT NULL,
	retain        INTEGER NOT NULL,
	session_label TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic);
`

const insertSQL = `
INSERT INTO messages (timestamp, topic, payload, qos, retain, session_label)
VALUES (?, ?, ?, ?, ?, ?)`

// Recorder captures MQTT traffic into per-session SQLite files.
//
// Multiple sessions may record concurrently under distinct labels;
// every received message is appended to each active session. Messages
// arrive on the network callback and are handed to a bounded work
// queue per session; a writer goroutine drains each queue into SQLite.
// The queues never block the caller: on overflow the oldest queued
// message is dropped and counted.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Recorder struct {
	cfg    config.SessionsConfig
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*sessionWriter
}

// sessionWriter is one active recording: its database handle, work
// queue and writer goroutine.
type sessionWriter struct {
	label    string
	db       *database.DB
	queue    chan Record
	wg       sync.WaitGroup
	recorded atomic.Uint64
	dropped  atomic.Uint64
}

// RecorderStats is a snapshot of one session's health counters.
type RecorderStats struct {
	Label    string
	Recorded uint64
	Dropped  uint64
}

// NewRecorder creates a Recorder. No database is touched until Start.
//
// Parameters:
//   - cfg: Sessions configuration (root directory, queue size, pragmas)
//   - logger: Structured logger
func NewRecorder(cfg config.SessionsConfig, logger *logging.Logger) *Recorder {
	return &Recorder{
		cfg:      cfg,
		logger:   logger.With("component", "recorder"),
		sessions: make(map[string]*sessionWriter),
	}
}

// Start begins recording under the given label.
//
// The session database is created at <root>/<label>.db with the schema
// applied on first use. Distinct labels record concurrently; reusing a
// live label returns ErrSessionActive.
//
// Parameters:
//   - label: Session label, used as the database filename stem
//
// Returns:
//   - error: nil on success, ErrSessionActive or ErrInvalidLabel otherwise
func (r *Recorder) Start(label string) error {
	if label == "" || strings.ContainsAny(label, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.sessions[label]; live {
		return fmt.Errorf("%w: %q", ErrSessionActive, label)
	}

	path := filepath.Join(r.cfg.Root, label+".db")
	db, err := database.Open(path, database.Config{
		WALMode:     r.cfg.WALMode,
		BusyTimeout: r.cfg.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("starting session %q: %w", label, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("creating session schema: %w", err)
	}

	sw := &sessionWriter{
		label: label,
		db:    db,
		queue: make(chan Record, r.cfg.QueueSize),
	}
	r.sessions[label] = sw

	sw.wg.Add(1)
	go r.writeLoop(sw)

	r.logger.Info("session recording started", "label", label, "path", path)
	return nil
}

// Record enqueues one captured message into every active session.
//
// Intended to be wired as an mqtt message hook. Never blocks: if a
// session's queue is full its oldest queued message is discarded first.
//
// Parameters:
//   - msg: The captured message
//
// Returns:
//   - error: ErrNoActiveSession when nothing is recording
func (r *Recorder) Record(msg mqtt.Message) error {
	rec := Record{
		Timestamp: msg.ReceivedAt,
		Topic:     msg.Topic,
		Payload:   string(msg.Payload),
		QoS:       int(msg.QoS),
		Retain:    msg.Retained,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) == 0 {
		return ErrNoActiveSession
	}

	for _, sw := range r.sessions {
		rec.SessionLabel = sw.label
		sw.enqueue(rec, r.logger)
	}
	return nil
}

// enqueue performs the non-blocking drop-oldest append. Called with
// the recorder lock held, so it cannot race with Stop's close.
func (sw *sessionWriter) enqueue(rec Record, logger *logging.Logger) {
	select {
	case sw.queue <- rec:
		return
	default:
	}

	// Queue full: evict the oldest entry, then retry once. The writer
	// may have drained concurrently, so both selects stay non-blocking.
	select {
	case <-sw.queue:
		sw.dropped.Add(1)
	default:
	}
	select {
	case sw.queue <- rec:
	default:
		sw.dropped.Add(1)
	}
	logger.Warn("recorder queue full, oldest message dropped",
		"label", sw.label, "topic", rec.Topic)
}

// Stop ends the recording for one label.
//
// Stop drains the session's work queue synchronously: every message
// accepted by Record before Stop was called is on disk when Stop
// returns.
//
// Parameters:
//   - label: Label passed to Start
//
// Returns:
//   - error: nil on success, ErrNoActiveSession if the label is not recording
func (r *Recorder) Stop(label string) error {
	r.mu.Lock()
	sw, live := r.sessions[label]
	if !live {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNoActiveSession, label)
	}
	delete(r.sessions, label)
	close(sw.queue)
	r.mu.Unlock()

	sw.wg.Wait()

	if err := sw.db.Close(); err != nil {
		return fmt.Errorf("stopping session %q: %w", label, err)
	}
	r.logger.Info("session recording stopped",
		"label", label,
		"recorded", sw.recorded.Load(),
		"dropped", sw.dropped.Load(),
	)
	return nil
}

// StopAll ends every active recording, draining each synchronously.
// The first error is returned; remaining sessions are still stopped.
func (r *Recorder) StopAll() error {
	r.mu.Lock()
	labels := make([]string, 0, len(r.sessions))
	for label := range r.sessions {
		labels = append(labels, label)
	}
	r.mu.Unlock()

	var firstErr error
	for _, label := range labels {
		if err := r.Stop(label); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Active returns the labels of all recording sessions, sorted.
func (r *Recorder) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	labels := make([]string, 0, len(r.sessions))
	for label := range r.sessions {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Stats returns a snapshot of counters for every active session,
// sorted by label.
func (r *Recorder) Stats() []RecorderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RecorderStats, 0, len(r.sessions))
	for _, sw := range r.sessions {
		out = append(out, RecorderStats{
			Label:    sw.label,
			Recorded: sw.recorded.Load(),
			Dropped:  sw.dropped.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// writeLoop persists queued records until the queue closes.
// Insert failures are logged and counted, never fatal: one bad row
// must not end a recording.
func (r *Recorder) writeLoop(sw *sessionWriter) {
	defer sw.wg.Done()

	for rec := range sw.queue {
		_, err := sw.db.Exec(insertSQL,
			formatTimestamp(rec.Timestamp),
			rec.Topic,
			rec.Payload,
			rec.QoS,
			boolToInt(rec.Retain),
			rec.SessionLabel,
		)
		if err != nil {
			sw.dropped.Add(1)
			r.logger.Error("failed to persist message",
				"label", sw.label, "topic", rec.Topic, "error", err)
			continue
		}
		sw.recorded.Add(1)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
