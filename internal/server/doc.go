// Package server exposes the HTTP and WebSocket surface: stream control
// endpoints, chat history, health checks, metrics, and the client fan-out
// socket with layered connection limits.
package server
