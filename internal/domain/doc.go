// Package domain holds the core types and interfaces shared across the
// application: chat messages, upstream events, WebSocket payloads, and the
// service interfaces the HTTP layer depends on.
package domain
