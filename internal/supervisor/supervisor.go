package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
	"github.com/elcreado/TiktokTTS-Web/internal/metrics"
)

// State is the supervisor's connection state. Connecting and Disconnecting
// are transitional; both always resolve to Connected or Disconnected.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnecting State = "disconnecting"
)

// Teardown budgets. Bounded, not load-bearing: cancellation that times out
// is absorbed, never retried.
const (
	startCancelWait      = 2 * time.Second
	stopTimeout          = 5 * time.Second
	forceStartCancelWait = 500 * time.Millisecond
	forceStopTimeout     = 1 * time.Second
	saveTimeout          = 2 * time.Second
)

// Supervisor owns at most one upstream subscription at a time. All state
// mutation happens under mu; the event intake filter reads generation and
// accepting atomically so event delivery never contends with the mutex.
type Supervisor struct {
	factory     domain.UpstreamFactory
	broadcaster domain.Broadcaster
	sink        domain.ChatSink
	clock       clockwork.Clock

	generation atomic.Uint64
	accepting  atomic.Bool
	ttsEnabled atomic.Bool

	mu          sync.Mutex
	state       State
	username    string
	client      domain.UpstreamClient
	cancelStart context.CancelFunc
	startDone   chan struct{}
}

var _ domain.SupervisorService = (*Supervisor)(nil)

// New creates a supervisor in the Disconnected state. sink may be nil if
// persistence is not configured. TTS starts enabled.
func New(factory domain.UpstreamFactory, broadcaster domain.Broadcaster, sink domain.ChatSink, clock clockwork.Clock) *Supervisor {
	s := &Supervisor{
		factory:     factory,
		broadcaster: broadcaster,
		sink:        sink,
		clock:       clock,
		state:       StateDisconnected,
	}
	s.ttsEnabled.Store(true)
	return s
}

// Connect requests a subscription to rawUsername's live stream. It returns
// as soon as the new session exists; whether the stream is actually live
// arrives later as a connection_status broadcast. Any existing session is
// fully torn down first, so no handler or task from a prior generation can
// fire into the new one.
func (s *Supervisor) Connect(rawUsername string) error {
	username := normalizeUsername(rawUsername)
	if username == "" {
		metrics.SupervisorConnectsTotal.WithLabelValues("rejected").Inc()
		return domain.ErrEmptyUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil || s.state != StateDisconnected {
		s.teardownLocked(startCancelWait, stopTimeout)
	}

	gen := s.generation.Add(1)
	onEvent := func(ev domain.Event) { s.handleEvent(gen, ev) }
	client := s.factory(username, onEvent)

	s.client = client
	s.username = username
	s.state = StateConnecting
	s.accepting.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelStart = cancel
	done := make(chan struct{})
	s.startDone = done

	go s.runClient(ctx, client, gen, username, done)

	metrics.SupervisorConnectsTotal.WithLabelValues("accepted").Inc()
	slog.Info("Connect accepted", "stream_user", username, "generation", gen)
	return nil
}

// Disconnect tears the current session down and forces the supervisor back
// to Disconnected. It never fails from the caller's point of view: teardown
// errors are logged and absorbed. Calling it when already disconnected is a
// no-op that still broadcasts the disconnected status.
func (s *Supervisor) Disconnect() {
	s.disconnect(startCancelWait, stopTimeout, "graceful")
}

// ForceDisconnect is Disconnect with shorter timeout budgets and no attempt
// at graceful upstream negotiation. Used when Disconnect failed to converge.
func (s *Supervisor) ForceDisconnect() {
	s.disconnect(forceStartCancelWait, forceStopTimeout, "forced")
}

func (s *Supervisor) disconnect(cancelWait, stopBudget time.Duration, mode string) {
	s.mu.Lock()
	s.teardownLocked(cancelWait, stopBudget)
	s.state = StateDisconnected
	s.username = ""
	s.mu.Unlock()

	metrics.SupervisorDisconnectsTotal.WithLabelValues(mode).Inc()
	metrics.SupervisorConnected.Set(0)
	s.broadcastStatus(false, "", "")
	slog.Info("Disconnected", "mode", mode)
}

// teardownLocked dismantles the current session. Callers hold mu. The
// accepting flag flips first so any event still in flight is discarded by
// the intake filter instead of processed mid-teardown.
func (s *Supervisor) teardownLocked(cancelWait, stopBudget time.Duration) {
	s.accepting.Store(false)
	s.state = StateDisconnecting

	if s.cancelStart != nil {
		s.cancelStart()
		s.cancelStart = nil
	}

	if s.startDone != nil {
		timer := s.clock.NewTimer(cancelWait)
		select {
		case <-s.startDone:
		case <-timer.Chan():
			metrics.SupervisorTeardownFailuresTotal.Inc()
			slog.Warn("Start task did not stop in time", "timeout", cancelWait)
		}
		timer.Stop()
		s.startDone = nil
	}

	if s.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopBudget)
		if err := s.client.Stop(ctx); err != nil {
			metrics.SupervisorTeardownFailuresTotal.Inc()
			slog.Warn("Upstream stop failed", "error", err)
		}
		cancel()
		s.client = nil
	}
}

// runClient drives one upstream subscription for its lifetime. gen is the
// generation captured at creation; every outcome is checked against the
// current generation before it may touch session state.
func (s *Supervisor) runClient(ctx context.Context, client domain.UpstreamClient, gen uint64, username string, done chan struct{}) {
	defer close(done)

	err := client.Start(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	// Cheap pre-check without the lock; the authoritative check repeats
	// under mu below.
	if gen != s.generation.Load() || !s.accepting.Load() {
		return
	}

	s.mu.Lock()
	if gen != s.generation.Load() || !s.accepting.Load() {
		s.mu.Unlock()
		return
	}
	s.accepting.Store(false)
	s.state = StateDisconnected
	s.username = ""
	s.client = nil
	s.cancelStart = nil
	s.mu.Unlock()

	msg := classifyStartError(err, username)
	metrics.SupervisorConnected.Set(0)
	s.broadcastStatus(false, "", msg)
	slog.Warn("Upstream start failed", "stream_user", username, "generation", gen, "error", err)
}

// handleEvent is the intake filter: events tagged with a stale generation,
// or arriving after accepting flipped off, are discarded without touching
// any state. This is the core correctness property of the supervisor.
func (s *Supervisor) handleEvent(gen uint64, ev domain.Event) {
	if gen != s.generation.Load() {
		metrics.SupervisorEventsDiscardedTotal.WithLabelValues("stale_generation").Inc()
		return
	}
	if !s.accepting.Load() {
		metrics.SupervisorEventsDiscardedTotal.WithLabelValues("not_accepting").Inc()
		return
	}

	switch e := ev.(type) {
	case domain.JoinedEvent:
		s.handleJoined(gen, e)
	case domain.CommentEvent:
		s.handleComment(e.User, e.Text, "upstream")
	case domain.LeftEvent:
		s.handleLeft(gen)
	case domain.ViewerCountEvent:
		s.broadcaster.Fanout(domain.ViewerCountPayload{
			Type:      domain.FrameViewerCount,
			Count:     e.Count,
			Timestamp: s.clock.Now().Format(time.RFC3339),
		})
	default:
		slog.Warn("Unknown upstream event", "event_type", fmt.Sprintf("%T", ev))
	}
}

func (s *Supervisor) handleJoined(gen uint64, ev domain.JoinedEvent) {
	s.mu.Lock()
	if gen != s.generation.Load() || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	username := s.username
	s.mu.Unlock()

	metrics.SupervisorConnected.Set(1)
	s.broadcastStatus(true, username, "")
	slog.Info("Upstream joined", "stream_user", username, "generation", gen)
}

func (s *Supervisor) handleComment(user, text, source string) {
	s.mu.Lock()
	streamUser := s.username
	s.mu.Unlock()

	msg := domain.NewChatMessage(user, text, streamUser, s.clock.Now())
	metrics.ChatMessagesTotal.WithLabelValues(source).Inc()

	// Fan-out first; persistence is best-effort and must never delay it.
	s.broadcaster.Fanout(msg.AsPayload(s.ttsEnabled.Load()))

	if s.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := s.sink.Save(ctx, msg); err != nil {
			slog.Error("Failed to persist chat message", "stream_user", streamUser, "error", err)
		}
		cancel()
	}
}

// handleLeft handles unsolicited upstream termination.
func (s *Supervisor) handleLeft(gen uint64) {
	s.mu.Lock()
	if gen != s.generation.Load() || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.accepting.Store(false)
	s.state = StateDisconnected
	s.username = ""
	s.client = nil
	s.mu.Unlock()

	metrics.SupervisorDisconnectsTotal.WithLabelValues("upstream").Inc()
	metrics.SupervisorConnected.Set(0)
	s.broadcastStatus(false, "", "")
	slog.Info("Upstream ended the stream", "generation", gen)
}

// InjectComment runs the comment pipeline for a synthetic message. It
// bypasses the intake filter: test messages work without a live upstream.
func (s *Supervisor) InjectComment(user, text string) {
	s.handleComment(user, text, "injected")
}

// ToggleTTS flips the process-wide TTS flag, broadcasts the new value, and
// returns it.
func (s *Supervisor) ToggleTTS() bool {
	var enabled bool
	for {
		old := s.ttsEnabled.Load()
		if s.ttsEnabled.CompareAndSwap(old, !old) {
			enabled = !old
			break
		}
	}

	s.broadcaster.Fanout(domain.TTSStatusPayload{
		Type:      domain.FrameTTSStatus,
		Enabled:   enabled,
		Timestamp: s.clock.Now().Format(time.RFC3339),
	})
	return enabled
}

// TTSEnabled reports the current TTS flag.
func (s *Supervisor) TTSEnabled() bool {
	return s.ttsEnabled.Load()
}

// Snapshot returns the diagnostic view of the session.
func (s *Supervisor) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionSnapshot{
		State:           string(s.state),
		Connected:       s.state == StateConnected,
		Username:        s.username,
		Generation:      s.generation.Load(),
		HasClient:       s.client != nil,
		AcceptingEvents: s.accepting.Load(),
		TTSEnabled:      s.ttsEnabled.Load(),
	}
}

func (s *Supervisor) broadcastStatus(connected bool, username, errMsg string) {
	s.broadcaster.Fanout(domain.ConnectionStatusPayload{
		Type:      domain.FrameConnectionStatus,
		Connected: connected,
		Username:  username,
		Error:     errMsg,
		Timestamp: s.clock.Now().Format(time.RFC3339),
	})
}

// normalizeUsername strips surrounding whitespace and one leading @.
func normalizeUsername(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}

// classifyStartError maps upstream startup failures to user-facing
// messages for the status broadcast.
func classifyStartError(err error, username string) string {
	switch {
	case errors.Is(err, domain.ErrUserOffline):
		return fmt.Sprintf("@%s is not currently live. Please try again when they start streaming.", username)
	case errors.Is(err, domain.ErrUserNotFound):
		return fmt.Sprintf("Could not find live stream for @%s. Please check the username and try again.", username)
	default:
		return fmt.Sprintf("Failed to connect to @%s's live stream: %v", username, err)
	}
}
