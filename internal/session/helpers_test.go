package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/aps-observer/internal/infrastructure/config"
	"github.com/nerrad567/aps-observer/internal/infrastructure/database"
	"github.com/nerrad567/aps-observer/internal/infrastructure/logging"
)

// testLogger returns a quiet logger for tests.
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New(config.LoggingConfig{
		Level:  "error",
		Format: "text",
		Output: "stderr",
	}, "test")
}

func testSessionsConfig(t *testing.T) config.SessionsConfig {
	t.Helper()
	return config.SessionsConfig{
		Root:        t.TempDir(),
		QueueSize:   64,
		WALMode:     true,
		BusyTimeout: 5,
	}
}

// seedRow is one message to pre-load into a session file.
type seedRow struct {
	ts      time.Time
	topic   string
	payload string
	qos     int
	retain  bool
	label   string
}

// seedSession writes rows into a fresh session file and returns its path.
func seedSession(t *testing.T, rows []seedRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seeded.db")
	db, err := database.Open(path, database.Config{WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening seed database: %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("creating seed schema: %v", err)
	}
	for _, row := range rows {
		_, err := db.Exec(insertSQL,
			formatTimestamp(row.ts),
			row.topic,
			row.payload,
			row.qos,
			boolToInt(row.retain),
			row.label,
		)
		if err != nil {
			t.Fatalf("seeding row: %v", err)
		}
	}
	return path
}
