package session

import "errors"

// Session errors.
var (
	// ErrSessionActive is returned when starting a recording while one
	// is already running.
	ErrSessionActive = errors.New("session: recording already active")

	// ErrNoActiveSession is returned by operations that need a running
	// recording when none exists.
	ErrNoActiveSession = errors.New("session: no active recording")

	// ErrInvalidLabel is returned for empty labels or labels containing
	// path separators.
	ErrInvalidLabel = errors.New("session: invalid session label")

	// ErrInvalidSpeed is returned for negative replay speed factors.
	ErrInvalidSpeed = errors.New("session: invalid replay speed")

	// ErrReplayAborted is returned when a publish fails twice during replay.
	ErrReplayAborted = errors.New("session: replay aborted")

	// ErrQueryFailed wraps analyzer query errors.
	ErrQueryFailed = errors.New("session: query failed")
)
