// Package mqtt provides the persistent MQTT client for the APS observer.
//
// This package manages:
//   - The single broker connection per process with auto-reconnect
//   - Refcounted topic subscriptions with wildcard support
//   - Per-filter bounded ring buffers drained by snapshot reads
//   - An offline publish queue for QoS >= 1 control messages
//   - An outbound audit log for test assertions
//
// # Architecture
//
// The physical factory's CCU, modules, shuttle and TXT controllers all
// speak through one Mosquitto broker. The observer holds exactly one
// connection to it; every component (subscription gateway, session
// recorder, order tracker, refresh publisher) shares this client.
//
//	CCU / modules / FTS / TXT ↔ MQTT Broker ↔ APS observer (this client)
//
// Repeatedly constructing clients from UI or script code is the
// "connection loop" failure mode this package exists to prevent: the
// runtime builds one Client and hands it to everything else.
//
// # Connection Lifecycle
//
//	DISCONNECTED → CONNECTING → CONNECTED ⇄ BACKOFF
//
// Backoff is exponential with jitter, capped by mqtt.reconnect.max_delay.
// Subscriptions are restored and the offline queue flushed on every
// reconnect.
//
// # Threading Model
//
// The network loop runs on a thread owned by paho; message handlers and
// hooks execute there and must only append to lock-guarded buffers or
// enqueue to worker queues. All exported methods are callable from any
// goroutine. One mutex guards all shared state; no I/O happens under it.
//
// # Ordering
//
// Per subscription, buffer order matches broker delivery order. Across
// subscriptions no ordering is promised.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeMany([]string{"ccu/order/#"}, 1)
//	for _, msg := range client.Buffer("ccu/order/#") {
//	    log.Printf("%s: %s", msg.Topic, msg.Payload)
//	}
package mqtt
