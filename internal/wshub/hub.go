package wshub

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleylabs/parley/internal/relay"
)

const (
	// defaultWriteTimeout bounds a single frame write to a client
	defaultWriteTimeout = 10 * time.Second
	// maxMessageSize caps inbound frames; extracted responses are text,
	// anything larger is a misbehaving client
	maxMessageSize = 1 << 20
	// maxPendingFrames bounds the per-client outbound queue; a client
	// that stops reading loses broadcast frames rather than stalling the
	// coordinator
	maxPendingFrames = 32
)

// Relay is the slice of the coordinator the hub drives. Defined here so the
// hub can be tested against a fake without a full coordinator.
type Relay interface {
	HandleAnnounce(platform relay.Platform, target relay.DeliveryTarget)
	HandleExtraction(ctx context.Context, ext relay.Extraction)
	HandleHealthReport(ctx context.Context, report relay.HealthReport)
	Snapshot() relay.Snapshot
}

// Hub accepts platform client connections and adapts their wire messages to
// typed relay calls. It holds no relay state of its own: registrations go
// to the coordinator's registry, deliveries return through the per-client
// DeliveryTarget, and coordinator notifications fan out to every client.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	relay   Relay
	clients map[int64]*client
	nextID  int64
}

// NewHub creates a hub. Attach must be called before serving.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Platform clients are browser extensions; the page origin is
			// the chat site, not this server.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[int64]*client),
	}
}

// Attach binds the hub to its relay coordinator
func (h *Hub) Attach(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

// Handler returns the HTTP handler serving the hub
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "Parley relay server running")
	})
	mux.HandleFunc("/ws", h.handleWS)
	return mux
}

// handleWS upgrades a platform client connection and starts its read loop
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	h.mu.Lock()
	h.nextID++
	c := &client{
		id:   h.nextID,
		hub:  h,
		conn: conn,
		send: make(chan any, maxPendingFrames),
		done: make(chan struct{}),
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Info("client connected", "client_id", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.enqueue(welcomeMessage{
		Type:     MsgConnected,
		ClientID: c.id,
		Message:  "Connected to Parley relay server",
	})

	// The handler owns the connection for its lifetime; returning would
	// cancel the request context mid-session.
	c.readLoop(r.Context())
}

// Close disconnects all clients
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[int64]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}

// Notify implements relay.Notifier by broadcasting the notification to all
// connected clients. Never blocks the coordinator: frames are queued per
// client and dropped when a client's queue is full.
func (h *Hub) Notify(ctx context.Context, n relay.Notification) {
	h.broadcast(notificationMessage{Type: n.Type(), Payload: n}, 0)
}

// broadcast queues a message for every client except excludeID (0 = none)
func (h *Hub) broadcast(message any, excludeID int64) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		if id == excludeID {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(message)
	}
}

// remove drops a client after its connection ends
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.stop()
}

// getRelay returns the attached coordinator, or nil before Attach
func (h *Hub) getRelay() Relay {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.relay
}

// connectedPlatforms lists the platforms of currently connected clients
func (h *Hub) connectedPlatforms() []relay.Platform {
	h.mu.RLock()
	defer h.mu.RUnlock()

	platforms := make([]relay.Platform, 0, len(h.clients))
	for _, c := range h.clients {
		if p := c.getPlatform(); p != "" {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// client is one connected platform endpoint. It doubles as the delivery
// target the registry hands to the scheduler. Hub-initiated frames go
// through the buffered send queue and the write pump; deliveries write
// directly so the scheduler sees the outcome.
type client struct {
	id   int64
	hub  *Hub
	conn *websocket.Conn

	send     chan any
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex // guards platform and conn writes
	platform relay.Platform
}

// ID returns a diagnostic handle name
func (c *client) ID() string {
	if p := c.getPlatform(); p != "" {
		return fmt.Sprintf("ws-%d/%s", c.id, p)
	}
	return fmt.Sprintf("ws-%d", c.id)
}

// Deliver implements relay.DeliveryTarget by pushing the formatted content
// to this client. The write is bounded by the context deadline.
func (c *client) Deliver(ctx context.Context, content string) error {
	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	handle := c.ID()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(deliveryMessage{Type: MsgMessageReceived, Content: content}); err != nil {
		return fmt.Errorf("failed to deliver to %s: %w", handle, err)
	}
	return nil
}

// enqueue hands a frame to the write pump without blocking; when the
// queue is full the frame is dropped, since hub-to-client traffic is
// best-effort
func (c *client) enqueue(message any) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- message:
	default:
		c.hub.logger.Debug("client send queue full, dropping frame", "client_id", c.id)
	}
}

// writePump drains the send queue onto the connection until the client
// stops
func (c *client) writePump() {
	for {
		select {
		case message := <-c.send:
			c.writeFrame(message)
		case <-c.done:
			return
		}
	}
}

// writeFrame sends one frame with the default write timeout; errors are
// logged, not returned
func (c *client) writeFrame(message any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	if err := c.conn.WriteJSON(message); err != nil {
		c.hub.logger.Debug("write to client failed", "client_id", c.id, "error", err)
	}
}

// stop ends the write pump and closes the connection. Safe to call more
// than once.
func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) getPlatform() relay.Platform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.platform
}

func (c *client) setPlatform(p relay.Platform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.platform = p
}

// readLoop consumes inbound frames until the connection drops
func (c *client) readLoop(ctx context.Context) {
	defer c.hub.remove(c)

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("client read error", "client_id", c.id, "error", err)
			} else {
				c.hub.logger.Info("client disconnected", "client_id", c.id)
			}
			return
		}
		c.handleMessage(ctx, msg)
	}
}

// handleMessage dispatches one inbound frame
func (c *client) handleMessage(ctx context.Context, msg inboundMessage) {
	coordinator := c.hub.getRelay()
	if coordinator == nil {
		c.hub.logger.Warn("message received before relay attached", "type", msg.Type)
		return
	}

	switch msg.Type {
	case MsgRegisterPlatform:
		platform := relay.Platform(msg.Platform)
		if platform == "" {
			c.hub.logger.Warn("registration without platform", "client_id", c.id)
			return
		}
		c.setPlatform(platform)
		coordinator.HandleAnnounce(platform, c)
		c.hub.broadcast(registeredMessage{
			Type:     MsgPlatformRegistered,
			ClientID: c.id,
			Platform: platform,
		}, c.id)

	case MsgMessageExtracted:
		var timestamp time.Time
		if msg.Timestamp > 0 {
			timestamp = time.UnixMilli(msg.Timestamp)
		}
		coordinator.HandleExtraction(ctx, relay.Extraction{
			Platform:  relay.Platform(msg.Platform),
			Content:   msg.Content,
			Timestamp: timestamp,
		})

	case MsgHealthCheck:
		coordinator.HandleHealthReport(ctx, relay.HealthReport{
			Platform: relay.Platform(msg.Platform),
			Checks:   msg.Results,
		})

	case MsgRequestStatus:
		c.hub.mu.RLock()
		connected := len(c.hub.clients)
		c.hub.mu.RUnlock()
		c.enqueue(statusMessage{
			Type:             MsgStatus,
			ConnectedClients: connected,
			Platforms:        c.hub.connectedPlatforms(),
			Session:          coordinator.Snapshot(),
		})

	default:
		c.hub.logger.Warn("unknown message type", "client_id", c.id, "type", msg.Type)
	}
}
