// Package supervisor owns the single upstream live-stream subscription.
// It serializes connect/disconnect requests behind one mutex, fences stale
// events with a monotonic session generation, and drives the broadcaster
// and the persistence sink for every accepted comment.
package supervisor
