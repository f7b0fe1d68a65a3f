// Package broadcast fans payloads out to all connected WebSocket clients.
// A single actor goroutine owns the client set, so the fan-out of one
// payload is fully enqueued before the next begins.
package broadcast
