// Package upstream implements the live-stream client behind the
// domain.UpstreamClient capability interface. It talks to a webcast bridge:
// an HTTP room lookup followed by a WebSocket event feed, translated into
// domain events.
package upstream
