package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/database"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
)

const replaySelectSQL = `
SELECT timestamp, topic, payload, qos, retain
FROM messages
ORDER BY timestamp ASC, id ASC`

// Publisher is the outbound surface the replayer needs. *mqtt.Client
// satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ReplayOptions controls replay pacing and flag handling.
type ReplayOptions struct {
	// Speed is the time-compression factor. 1.0 replays at recorded
	// pace, 2.0 at double speed. 0 replays flat out with no sleeps.
	Speed float64

	// KeepRetained preserves the recorded retain flag on republish.
	// Off by default: replaying retained state would overwrite the
	// broker's current retained values for the whole estate.
	KeepRetained bool
}

// ReplayStats summarises one replay run.
type ReplayStats struct {
	Published int
	Skipped   int
	Retried   int
}

// Replayer republishes a recorded session through a live client,
// reproducing original topics, payloads, QoS and inter-message timing.
type Replayer struct {
	db     *database.DB
	pub    Publisher
	opts   ReplayOptions
	logger *logging.Logger

	// sleep paces the replay; swapped out in tests to assert the
	// requested inter-message delays without waiting them out.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReplayer opens a session file read-only for replay.
//
// Parameters:
//   - path: Session database file
//   - pub: Publisher to replay through
//   - opts: Pacing and flag options
//   - logger: Structured logger
//
// Returns:
//   - *Replayer: Ready replayer; caller must Close
//   - error: ErrInvalidSpeed, or if the file cannot be opened
func NewReplayer(path string, pub Publisher, opts ReplayOptions, logger *logging.Logger) (*Replayer, error) {
	if opts.Speed < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpeed, opts.Speed)
	}

	db, err := database.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}

	return &Replayer{
		db:     db,
		pub:    pub,
		opts:   opts,
		logger: logger.With("component", "replayer"),
		sleep:  sleepCtx,
	}, nil
}

// Close releases the session file.
func (r *Replayer) Close() error {
	return r.db.Close()
}

// Replay publishes every recorded message in ascending timestamp order.
//
// Between messages it sleeps the recorded delta divided by Speed.
// Cancellation is honoured at publish boundaries: the in-flight message
// completes, nothing further is sent. A failed publish is retried once;
// a second failure aborts the run with ErrReplayAborted. Rows whose
// timestamp cannot be parsed are skipped with a warning.
//
// Parameters:
//   - ctx: Cancels the replay between publishes
//
// Returns:
//   - ReplayStats: Counters for the run, valid even on error
//   - error: nil, ctx.Err(), or wrapped ErrReplayAborted
func (r *Replayer) Replay(ctx context.Context) (ReplayStats, error) {
	var stats ReplayStats

	rows, err := r.db.QueryContext(ctx, replaySelectSQL)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var prev time.Time
	havePrev := false

	for rows.Next() {
		var (
			tsRaw, topic, payload string
			qos, retain           int
		)
		if err := rows.Scan(&tsRaw, &topic, &payload, &qos, &retain); err != nil {
			return stats, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}

		ts, err := parseTimestamp(tsRaw)
		if err != nil {
			stats.Skipped++
			r.logger.Warn("skipping row with unreadable timestamp",
				"topic", topic, "timestamp", tsRaw)
			continue
		}

		if havePrev && r.opts.Speed > 0 {
			delta := ts.Sub(prev)
			if delta > 0 {
				if err := r.sleep(ctx, time.Duration(float64(delta)/r.opts.Speed)); err != nil {
					return stats, err
				}
			}
		}
		prev = ts
		havePrev = true

		if err := ctx.Err(); err != nil {
			return stats, err
		}

		retained := retain != 0 && r.opts.KeepRetained
		if err := r.pub.Publish(topic, []byte(payload), byte(qos), retained); err != nil {
			stats.Retried++
			r.logger.Warn("publish failed, retrying once", "topic", topic, "error", err)
			if err := r.pub.Publish(topic, []byte(payload), byte(qos), retained); err != nil {
				return stats, fmt.Errorf("%w: topic %q: %w", ErrReplayAborted, topic, err)
			}
		}
		stats.Published++
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	r.logger.Info("replay complete",
		"published", stats.Published,
		"skipped", stats.Skipped,
		"retried", stats.Retried,
	)
	return stats, nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
