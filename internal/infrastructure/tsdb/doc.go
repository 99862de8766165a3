// Package tsdb mirrors high-frequency TXT controller telemetry into
// InfluxDB v2.
//
// The mirror is optional and config-gated. When enabled it attaches as
// a message hook on the shared MQTT client and forwards numeric
// readings from the /j1/txt/... namespace as batched, non-blocking
// point writes. Async write failures surface through an error
// callback; a broken time-series store never affects monitoring or
// recording.
package tsdb
