package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elcreado/TiktokTTS-Web/internal/domain"
)

const (
	roomLookupTimeout = 10 * time.Second
	dialTimeout       = 10 * time.Second
	maxFrameSize      = 1 << 20
)

// Options configures a Client.
type Options struct {
	Username  string
	BridgeURL string
	APIKey    string
	OnEvent   func(domain.Event)

	// HTTPClient overrides the default client, used in tests.
	HTTPClient *http.Client
}

// Client subscribes to one live stream through the webcast bridge.
// It implements domain.UpstreamClient.
type Client struct {
	username   string
	bridgeURL  string
	apiKey     string
	onEvent    func(domain.Event)
	httpClient *http.Client

	running atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ domain.UpstreamClient = (*Client)(nil)

// NewClient creates a client bound to one username. It does not touch the
// network until Start is called.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: roomLookupTimeout}
	}
	return &Client{
		username:   opts.Username,
		bridgeURL:  strings.TrimRight(opts.BridgeURL, "/"),
		apiKey:     opts.APIKey,
		onEvent:    opts.OnEvent,
		httpClient: httpClient,
	}
}

// Factory returns a domain.UpstreamFactory that builds bridge clients with
// the given endpoint and API key.
func Factory(bridgeURL, apiKey string) domain.UpstreamFactory {
	return func(username string, onEvent func(domain.Event)) domain.UpstreamClient {
		return NewClient(Options{
			Username:  username,
			BridgeURL: bridgeURL,
			APIKey:    apiKey,
			OnEvent:   onEvent,
		})
	}
}

// Start resolves the user's live room, opens the event feed, and blocks
// reading events until the stream ends or ctx is cancelled. A successful
// feed connection emits JoinedEvent; a clean stream end emits LeftEvent.
func (c *Client) Start(ctx context.Context) error {
	roomID, err := c.lookupRoom(ctx)
	if err != nil {
		return err
	}

	conn, err := c.dialFeed(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to open event feed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.running.Store(true)
	defer func() {
		c.running.Store(false)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	// Unblock the read loop when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	conn.SetReadLimit(maxFrameSize)
	c.onEvent(domain.JoinedEvent{Username: c.username})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The upstream closed the feed: the stream ended.
			c.onEvent(domain.LeftEvent{})
			return nil
		}
		c.dispatch(data)
	}
}

// Stop closes the event feed. Safe to call concurrently with Start and
// when the client never started.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to close event feed: %w", err)
	}
	return conn.Close()
}

// IsRunning reports whether the event feed is currently open.
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

type roomInfo struct {
	RoomID string `json:"room_id"`
	Live   bool   `json:"live"`
}

func (c *Client) lookupRoom(ctx context.Context) (string, error) {
	lookupURL := fmt.Sprintf("%s/api/room?unique_id=%s", c.bridgeURL, url.QueryEscape(c.username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build room lookup request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("room lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", domain.ErrUserNotFound
	default:
		return "", fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var info roomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode room info: %w", err)
	}
	if !info.Live || info.RoomID == "" {
		return "", domain.ErrUserOffline
	}
	return info.RoomID, nil
}

func (c *Client) dialFeed(ctx context.Context, roomID string) (*websocket.Conn, error) {
	feedURL, err := feedURL(c.bridgeURL, roomID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-Api-Key", c.apiKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, feedURL, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, domain.ErrUserOffline
		}
		return nil, err
	}
	return conn, nil
}

func feedURL(bridgeURL, roomID string) (string, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return "", fmt.Errorf("invalid bridge URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/room/" + url.PathEscape(roomID)
	return u.String(), nil
}

// wireFrame is one JSON message on the bridge event feed. Only the fields
// used by the relay are decoded; unknown frame types are skipped.
type wireFrame struct {
	Type string `json:"type"`
	User struct {
		Nickname string `json:"nickname"`
		UniqueID string `json:"unique_id"`
	} `json:"user"`
	Comment     string `json:"comment"`
	ViewerCount int    `json:"viewer_count"`
}

func (c *Client) dispatch(data []byte) {
	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Debug("Skipping malformed feed frame", "error", err)
		return
	}

	switch frame.Type {
	case "comment", "chat":
		user := frame.User.Nickname
		if user == "" {
			user = frame.User.UniqueID
		}
		c.onEvent(domain.CommentEvent{User: user, Text: frame.Comment})
	case "viewer_count", "room_user":
		c.onEvent(domain.ViewerCountEvent{Count: frame.ViewerCount})
	case "live_end":
		c.onEvent(domain.LeftEvent{})
	default:
		// Gift, like, share and other frame types are not relayed.
	}
}
