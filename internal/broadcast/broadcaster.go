package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/elcreado/TiktokTTS-Web/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	connection *websocket.Conn
}

type fanoutCmd struct {
	baseBroadcasterCmd
	data []byte
}

type clientCountCmd struct {
	baseBroadcasterCmd
	replyChannel chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns the set of connected WebSocket clients and delivers
// every fan-out payload to all of them. Slow clients (full send buffer)
// are evicted so one stalled subscriber cannot hold back the rest.
type Broadcaster struct {
	cmdCh      chan broadcasterCmd
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*clientWriter
	done       chan struct{}
	maxClients int
}

// NewBroadcaster creates a broadcaster and starts its actor goroutine.
// maxClients caps concurrent connections (0 means unlimited).
func NewBroadcaster(clock clockwork.Clock, maxClients int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:      make(chan broadcasterCmd, 256),
		clock:      clock,
		clients:    make(map[*websocket.Conn]*clientWriter),
		done:       make(chan struct{}),
		maxClients: maxClients,
	}
	go b.run()
	return b
}

// Register adds a client. Returns an error only if the client cap is
// reached or the broadcaster is stuck.
func (b *Broadcaster) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client. Safe to call twice.
func (b *Broadcaster) Unregister(conn *websocket.Conn) {
	b.cmdCh <- unregisterCmd{connection: conn}
}

// Fanout marshals payload to JSON and enqueues it for delivery to every
// currently registered client. Delivery to one event's subscribers is
// fully enqueued before the next event's payload is processed.
func (b *Broadcaster) Fanout(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal broadcast payload", "error", err)
		return
	}
	b.cmdCh <- fanoutCmd{data: data}
}

// ClientCount returns the number of connected clients, or -1 on timeout.
func (b *Broadcaster) ClientCount() int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts the broadcaster down, closing all client connections. Blocks
// until the actor goroutine exits or the stop budget is exceeded.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}

	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped")
	case <-timer.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			metrics.BroadcasterPanicsTotal.Inc()
			b.closeAllClients("broadcaster panic")
			close(b.done)
		}
	}()

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c.connection)
		case fanoutCmd:
			b.handleFanout(c.data)
		case clientCountCmd:
			c.replyChannel <- len(b.clients)
		case stopCmd:
			b.closeAllClients("Server shutting down")
			close(b.done)
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", b.maxClients)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients (%d) reached", b.maxClients)
		return
	}

	b.clients[c.connection] = newClientWriter(c.connection, b.clock)
	metrics.BroadcasterConnectedClients.Set(float64(len(b.clients)))
	slog.Debug("Client registered", "total_clients", len(b.clients))
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(conn *websocket.Conn) {
	cw, exists := b.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(b.clients, conn)
	metrics.BroadcasterConnectedClients.Set(float64(len(b.clients)))
	slog.Debug("Client unregistered", "remaining_clients", len(b.clients))
}

func (b *Broadcaster) handleFanout(data []byte) {
	metrics.BroadcasterFanoutsTotal.Inc()

	var slow []*websocket.Conn
	for conn, writer := range b.clients {
		select {
		case writer.sendChannel <- data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client")
		metrics.BroadcasterSlowClientsEvictedTotal.Inc()
		b.handleUnregister(conn)
	}
}

func (b *Broadcaster) closeAllClients(reason string) {
	slog.Info("Closing all clients", "clients", len(b.clients), "reason", reason)
	for conn, cw := range b.clients {
		cw.stopGraceful(reason)
		delete(b.clients, conn)
	}
	metrics.BroadcasterConnectedClients.Set(0)
}
