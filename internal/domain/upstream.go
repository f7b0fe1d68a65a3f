package domain

import "context"

// Event is the tagged union of everything an upstream client can emit.
type Event interface{ isUpstreamEvent() }

type baseEvent struct{}

func (baseEvent) isUpstreamEvent() {}

// JoinedEvent signals that the live stream subscription is established.
type JoinedEvent struct {
	baseEvent
	Username string
}

// CommentEvent carries one chat comment from the stream.
type CommentEvent struct {
	baseEvent
	User string
	Text string
}

// LeftEvent signals that the upstream terminated the subscription.
type LeftEvent struct {
	baseEvent
}

// ViewerCountEvent carries the current viewer count of the stream.
type ViewerCountEvent struct {
	baseEvent
	Count int
}

// UpstreamClient is the capability interface every upstream implementation
// must provide in full. Start blocks for the life of the subscription and
// returns when the stream ends, the context is cancelled, or startup fails
// (ErrUserOffline, ErrUserNotFound, or a transport error). Stop is
// best-effort and bounded by its context.
type UpstreamClient interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// UpstreamFactory builds a client bound to one username. Events are
// delivered through onEvent from the client's own goroutine, in upstream
// order.
type UpstreamFactory func(username string, onEvent func(Event)) UpstreamClient
