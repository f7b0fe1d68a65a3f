package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
)

// fakeBridge imitates the webcast bridge: a room lookup endpoint and a
// WebSocket event feed per room.
type fakeBridge struct {
	t       *testing.T
	server  *httptest.Server
	rooms   map[string]roomInfo
	frames  []string
	mu      sync.Mutex
	apiKeys []string
	feeds   chan *ws.Conn
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	b := &fakeBridge{
		t:     t,
		rooms: make(map[string]roomInfo),
		feeds: make(chan *ws.Conn, 4),
	}

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/room", func(w http.ResponseWriter, r *http.Request) {
		b.recordAPIKey(r)
		info, ok := b.rooms[r.URL.Query().Get("unique_id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(info)
	})
	mux.HandleFunc("/ws/room/", func(w http.ResponseWriter, r *http.Request) {
		b.recordAPIKey(r)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range b.frames {
			if err := conn.WriteMessage(ws.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		b.feeds <- conn
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBridge) recordAPIKey(r *http.Request) {
	b.mu.Lock()
	b.apiKeys = append(b.apiKeys, r.Header.Get("X-Api-Key"))
	b.mu.Unlock()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) record(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) snapshot() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func runClient(t *testing.T, client *Client) (<-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- client.Start(ctx) }()
	return errCh, cancel
}

func TestStart_UnknownUserReturnsNotFound(t *testing.T) {
	bridge := newFakeBridge(t)
	client := NewClient(Options{
		Username:  "ghost",
		BridgeURL: bridge.server.URL,
		OnEvent:   func(domain.Event) {},
	})

	err := client.Start(context.Background())
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStart_OfflineUserReturnsOffline(t *testing.T) {
	bridge := newFakeBridge(t)
	bridge.rooms["alice"] = roomInfo{RoomID: "", Live: false}

	client := NewClient(Options{
		Username:  "alice",
		BridgeURL: bridge.server.URL,
		OnEvent:   func(domain.Event) {},
	})

	err := client.Start(context.Background())
	require.ErrorIs(t, err, domain.ErrUserOffline)
}

func TestStart_EmitsJoinedAndComments(t *testing.T) {
	bridge := newFakeBridge(t)
	bridge.rooms["alice"] = roomInfo{RoomID: "room-1", Live: true}
	bridge.frames = []string{
		`{"type":"comment","user":{"nickname":"Bob"},"comment":"hello"}`,
		`{"type":"chat","user":{"unique_id":"carol123"},"comment":"hi"}`,
		`{"type":"gift","user":{"nickname":"Dan"}}`,
		`{"type":"viewer_count","viewer_count":42}`,
	}

	recorder := &eventRecorder{}
	client := NewClient(Options{
		Username:  "alice",
		BridgeURL: bridge.server.URL,
		OnEvent:   recorder.record,
	})

	_, cancel := runClient(t, client)

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) >= 4
	}, 2*time.Second, 5*time.Millisecond)

	events := recorder.snapshot()
	require.IsType(t, domain.JoinedEvent{}, events[0])
	assert.Equal(t, "alice", events[0].(domain.JoinedEvent).Username)

	first := events[1].(domain.CommentEvent)
	assert.Equal(t, "Bob", first.User)
	assert.Equal(t, "hello", first.Text)

	// Nickname falls back to the unique ID
	second := events[2].(domain.CommentEvent)
	assert.Equal(t, "carol123", second.User)

	// The gift frame is skipped; the viewer count comes next
	count := events[3].(domain.ViewerCountEvent)
	assert.Equal(t, 42, count.Count)

	cancel()
}

func TestStart_FeedClosureEmitsLeft(t *testing.T) {
	bridge := newFakeBridge(t)
	bridge.rooms["alice"] = roomInfo{RoomID: "room-1", Live: true}

	recorder := &eventRecorder{}
	client := NewClient(Options{
		Username:  "alice",
		BridgeURL: bridge.server.URL,
		OnEvent:   recorder.record,
	})

	errCh, _ := runClient(t, client)

	feed := <-bridge.feeds
	feed.Close()

	require.NoError(t, <-errCh)

	events := recorder.snapshot()
	require.NotEmpty(t, events)
	assert.IsType(t, domain.LeftEvent{}, events[len(events)-1])
}

func TestStart_CancellationReturnsContextError(t *testing.T) {
	bridge := newFakeBridge(t)
	bridge.rooms["alice"] = roomInfo{RoomID: "room-1", Live: true}

	recorder := &eventRecorder{}
	client := NewClient(Options{
		Username:  "alice",
		BridgeURL: bridge.server.URL,
		OnEvent:   recorder.record,
	})

	errCh, cancel := runClient(t, client)

	require.Eventually(t, client.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, client.IsRunning())

	// No LeftEvent on cancellation: the caller asked for the teardown.
	for _, ev := range recorder.snapshot() {
		assert.NotEqual(t, domain.LeftEvent{}, ev)
	}
}

func TestStop_ClosesFeed(t *testing.T) {
	bridge := newFakeBridge(t)
	bridge.rooms["alice"] = roomInfo{RoomID: "room-1", Live: true}

	client := NewClient(Options{
		Username:  "alice",
		BridgeURL: bridge.server.URL,
		OnEvent:   func(domain.Event) {},
	})

	errCh, _ := runClient(t, client)
	require.Eventually(t, client.IsRunning, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, client.Stop(ctx))

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestStop_WithoutStartIsSafe(t *testing.T) {
	client := NewClient(Options{
		Username:  "alice",
		BridgeURL: "http://localhost:0",
		OnEvent:   func(domain.Event) {},
	})
	require.NoError(t, client.Stop(context.Background()))
}

func TestRequests_CarryAPIKey(t *testing.T) {
	bridge := newFakeBridge(t)
	bridge.rooms["alice"] = roomInfo{RoomID: "room-1", Live: true}

	client := NewClient(Options{
		Username:  "alice",
		BridgeURL: bridge.server.URL,
		APIKey:    "secret-key",
		OnEvent:   func(domain.Event) {},
	})

	_, cancel := runClient(t, client)
	require.Eventually(t, client.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	require.NotEmpty(t, bridge.apiKeys)
	for _, key := range bridge.apiKeys {
		assert.Equal(t, "secret-key", key)
	}
}

func TestFeedURL_SchemeMapping(t *testing.T) {
	u, err := feedURL("http://bridge:8081", "room-1")
	require.NoError(t, err)
	assert.Equal(t, "ws://bridge:8081/ws/room/room-1", u)

	u, err = feedURL("https://bridge.example.com/base/", "room-2")
	require.NoError(t, err)
	assert.Equal(t, "wss://bridge.example.com/base/ws/room/room-2", u)
}
