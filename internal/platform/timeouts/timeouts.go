// Package timeouts defines shared timeout constants used by the monitor binaries.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// Dispatch caps one dispatch run: loading records, evaluating every category
// and delivering the results.
const Dispatch = 2 * time.Minute

// KafkaWrite caps a single batch write to the message topic.
const KafkaWrite = 10 * time.Second
