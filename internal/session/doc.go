// Package session records, replays and analyses MQTT traffic captured
// from the factory estate.
//
// Each recording session is one SQLite file under the configured root,
// named after its label. Multiple sessions may record concurrently
// under distinct labels. Three components share the schema:
//
//   - Recorder: captures live traffic through a bounded work queue so a
//     slow disk never stalls the network callback. Stop drains the
//     queue synchronously.
//   - Replayer: republishes a session through a live client at a
//     configurable speed, preserving topics, payloads, QoS and
//     inter-message timing. Retain flags are stripped unless explicitly
//     kept, so a replay cannot clobber the broker's retained state.
//   - Analyzer: read-only queries over a session file (counts, distinct
//     topics, first occurrences, filtered timelines). Uses an
//     independent read-only connection and may run against a session
//     that is still being recorded.
//
// Usage:
//
//	rec := session.NewRecorder(cfg.Sessions, logger)
//	client.AddMessageHook(func(msg mqtt.Message) { _ = rec.Record(msg) })
//	if err := rec.Start("morning-run"); err != nil { ... }
//	...
//	if err := rec.Stop("morning-run"); err != nil { ... }
package session
