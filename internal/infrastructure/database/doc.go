// Package database provides SQLite connectivity for session files.
//
// Each recording session lives in its own database file under the configured
// sessions root. The recorder holds the single writable connection; analyzers
// open additional independent read-only connections to the same file.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Session files are created with 0600 permissions
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//
// Usage:
//
//	db, err := database.Open("sessions/morning.db", database.Config{
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// There is no migration chain: each session file carries the single
// messages table, created on first use by the recorder.
package database
