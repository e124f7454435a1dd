// Package ws pushes dashboard events to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed event kinds, "*" suffix allowed
	mu   sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to change the event kinds
// it receives.
type subscribeMsg struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Kinds  []string `json:"kinds"`
}

// envelope frames every outgoing message.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Config configures a Hub.
type Config struct {
	// AllowedOrigins restricts upgrades; empty or "*" allows all.
	AllowedOrigins []string
	// Snapshot, when set, is sent to each client on connect.
	Snapshot func() any
	// OnClients observes the connected client count.
	OnClients func(n int)
}

// Hub manages connected clients and fans dashboard events out to them.
// Events come from Broadcast or, when a bus is attached, from the bus.
type Hub struct {
	cfg        Config
	upgrader   websocket.Upgrader
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	channel    string
	mu         sync.RWMutex
	logger     *slog.Logger
}

// broadcastMsg carries an event with its kind so the hub can route it only
// to clients subscribed to that kind.
type broadcastMsg struct {
	kind string
	data []byte
}

// NewHub creates a Hub.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	h := &Hub{
		cfg:        cfg,
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// WithBus makes Run relay events published on channel of bus instead of
// relying on local Broadcast calls only.
func (h *Hub) WithBus(bus domain.SignalBus, channel string) *Hub {
	h.bus = bus
	h.channel = channel
	return h
}

// Broadcast queues a JSON-encoded domain.Event for delivery. It never blocks;
// events are dropped when the queue is full.
func (h *Hub) Broadcast(data []byte) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		h.logger.Warn("ws: dropping malformed event", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- broadcastMsg{kind: head.Kind, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full; dropping event", slog.String("kind", head.Kind))
	}
}

// Run starts the hub's main event loop. It handles client registration,
// unregistration, and message broadcasting until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		go h.relay(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.observeClients()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.observeClients()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.observeClients()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case msg := <-h.broadcast:
			frame, err := json.Marshal(envelope{Type: "event", Payload: json.RawMessage(msg.data)})
			if err != nil {
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.kind) {
					select {
					case c.send <- frame:
					default:
						h.logger.Warn("ws: dropping message for slow client")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// relay forwards events from the bus channel into the broadcast queue.
func (h *Hub) relay(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: subscribed to channel", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", h.channel),
				)
				return
			}
			h.Broadcast(data)
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. Clients start subscribed to every event kind.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: map[string]bool{"*": true},
	}

	h.register <- c
	c.sendSnapshot()

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) observeClients() {
	if h.cfg.OnClients != nil {
		h.cfg.OnClients(h.ClientCount())
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) || strings.EqualFold(o, u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

// readPump reads subscription changes from the connection until it closes.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if json.Unmarshal(message, &sub) == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

// handleSubscription processes subscribe/unsubscribe requests from the client.
func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, k := range msg.Kinds {
			c.subs[k] = true
		}
	case "unsubscribe":
		for _, k := range msg.Kinds {
			delete(c.subs, k)
		}
	}
}

// sendSnapshot pushes the current dashboard state so a new client can render
// before the next event arrives.
func (c *client) sendSnapshot() {
	if c.hub.cfg.Snapshot == nil {
		return
	}
	msg, err := json.Marshal(envelope{Type: "snapshot", Payload: c.hub.cfg.Snapshot()})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// isSubscribed checks whether the client receives events of kind.
func (c *client) isSubscribed(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return matches(c.subs, kind)
}

// matches reports whether kind is in subs directly or via a trailing "*"
// wildcard ("order_*" matches "order_placed").
func matches(subs map[string]bool, kind string) bool {
	if subs[kind] {
		return true
	}
	for sub := range subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(kind, prefix) {
			return true
		}
	}
	return false
}

// writePump pumps messages from the hub to the connection as text frames
// and sends periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
