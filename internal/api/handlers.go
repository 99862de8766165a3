package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/aps-observer/internal/session"
)

// timelineMaxRows caps a single timeline response.
const timelineMaxRows = 1000

// handleHealth returns broker and recorder health counters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	broker := s.broker.GetStats()

	recordings := make([]map[string]any, 0)
	for _, rs := range s.recorder.Stats() {
		recordings = append(recordings, map[string]any{
			"label":    rs.Label,
			"recorded": rs.Recorded,
			"dropped":  rs.Dropped,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"broker": map[string]any{
			"state":          broker.State,
			"subscriptions":  broker.Subscriptions,
			"buffered":       broker.BufferedTotal,
			"buffer_dropped": broker.BufferDropped,
			"offline_queued": broker.OfflineQueued,
		},
		"recordings": recordings,
	})
}

// handleListSessions returns every session file under the root plus the
// currently recording labels.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.sessionsRoot)
	if err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to read sessions root", "error", err)
		writeInternalError(w, "failed to read sessions directory")
		return
	}

	sessions := make([]string, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".db") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".db"))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":  sessions,
		"recording": s.recorder.Active(),
	})
}

// handleSessionTopics returns distinct topics with counts for a session.
func (s *Server) handleSessionTopics(w http.ResponseWriter, r *http.Request) {
	a, ok := s.openSession(w, chi.URLParam(r, "label"))
	if !ok {
		return
	}
	defer a.Close() //nolint:errcheck // Read-only handle

	counts, err := a.TopicCounts(r.Context())
	if err != nil {
		s.logger.Error("topic count query failed", "error", err)
		writeInternalError(w, "query failed")
		return
	}

	topics := make([]map[string]any, 0, len(counts))
	for _, tc := range counts {
		topics = append(topics, map[string]any{"topic": tc.Topic, "count": tc.Count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// handleSessionTimeline returns session rows filtered by query
// parameters: from/to (RFC 3339), topic, module, limit.
func (s *Server) handleSessionTimeline(w http.ResponseWriter, r *http.Request) {
	filter := session.TimelineFilter{Limit: timelineMaxRows}

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid from timestamp")
			return
		}
		filter.From = ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid to timestamp")
			return
		}
		filter.To = ts
	}
	filter.Topic = q.Get("topic")
	filter.ModuleLike = q.Get("module")
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > timelineMaxRows {
			writeBadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	a, ok := s.openSession(w, chi.URLParam(r, "label"))
	if !ok {
		return
	}
	defer a.Close() //nolint:errcheck // Read-only handle

	rows, err := a.Timeline(r.Context(), filter)
	if err != nil {
		s.logger.Error("timeline query failed", "error", err)
		writeInternalError(w, "query failed")
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"id":        row.ID,
			"timestamp": row.Timestamp.UTC().Format(time.RFC3339Nano),
			"topic":     row.Topic,
			"payload":   row.Payload,
			"qos":       row.QoS,
			"retain":    row.Retain,
			"label":     row.SessionLabel,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// openSession validates a label and opens its session file read-only.
// Writes the error response itself when the label is bad or absent.
func (s *Server) openSession(w http.ResponseWriter, label string) (*session.Analyzer, bool) {
	if label == "" || strings.ContainsAny(label, `/\`) || strings.Contains(label, "..") {
		writeBadRequest(w, "invalid session label")
		return nil, false
	}

	path := filepath.Join(s.sessionsRoot, label+".db")
	a, err := session.NewAnalyzer(path)
	if err != nil {
		writeNotFound(w, "session not found")
		return nil, false
	}
	return a, true
}
