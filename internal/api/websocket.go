package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/shopgate/internal/audit"
	"github.com/nerrad567/shopgate/internal/auth"
	"github.com/nerrad567/shopgate/internal/infrastructure/config"
	"github.com/nerrad567/shopgate/internal/infrastructure/logging"
)

// Feed message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelAuthEvents carries audit events. Every new client starts on it.
const ChannelAuthEvents = "auth.events"

// wsSendBufferSize is how many outbound frames a slow client may lag
// before frames are dropped for it.
const wsSendBufferSize = 256

// WSMessage is a frame on the admin event feed, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists channels to join or leave.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inboundFrame defers decoding the payload until the type is known.
type inboundFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// upgrader accepts handshakes without an Origin header (non-browser
// clients) and otherwise applies the CORS allow-list.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
}

// Hub tracks feed clients and fans events out to their subscriptions.
// It doubles as an audit.Sink.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one connected admin. mu guards subscriptions and closed.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	username string

	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}
	closed        bool
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger.With("component", "event-feed"),
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds c to the hub.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("feed client connected", "username", c.username, "clients", n)
}

// Unregister removes c and closes its outbound queue. Repeated calls are safe.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Debug("feed client disconnected", "username", c.username, "clients", n)
}

// Broadcast encodes payload once and queues it for every client on channel.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding feed event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.subscribed(channel) {
			c.enqueue(frame)
		}
	}
}

// Write implements audit.Sink.
func (h *Hub) Write(_ context.Context, e *audit.Event) error {
	h.Broadcast(ChannelAuthEvents, e)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket serves GET /events/ws. The access policy has required a
// principal; the feed itself is limited to ADMIN.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	if !principal.HasRole(auth.RoleAdmin) {
		writeForbidden(w, "insufficient role")
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("event feed upgrade failed", "username", principal.Username, "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		username:      principal.Username,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelAuthEvents: {}},
	}
	s.hub.Register(c)

	keepalive := time.Duration(s.wsCfg.PingInterval) * time.Second
	grace := time.Duration(s.wsCfg.PongTimeout) * time.Second
	go c.writeLoop(keepalive, grace)
	go c.readLoop(int64(s.wsCfg.MaxMessageSize), keepalive+grace)
}

// readLoop handles client frames until the connection fails. Any frame,
// including a pong, extends the read deadline by idle.
func (c *WSClient) readLoop(limit int64, idle time.Duration) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(limit)
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("feed read failed", "username", c.username, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // see above
		c.dispatch(data)
	}
}

// writeLoop drains the outbound queue and pings every keepalive.
func (c *WSClient) writeLoop(keepalive, writeWait time.Duration) {
	ticker := time.NewTicker(keepalive)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // surfaces on write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
				return
			}
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) dispatch(data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch in.Type {
	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var req WSSubscribePayload
		if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &req) != nil {
			c.reply(in.ID, WSTypeError, map[string]string{"message": "invalid " + in.Type + " payload"})
			return
		}
		c.setSubscriptions(req.Channels, in.Type == WSTypeSubscribe)
		key := "subscribed"
		if in.Type == WSTypeUnsubscribe {
			key = "unsubscribed"
		}
		c.reply(in.ID, WSTypeResponse, map[string]any{key: req.Channels})
	default:
		c.reply(in.ID, WSTypeError, map[string]string{"message": "unknown message type: " + in.Type})
	}
}

func (c *WSClient) setSubscriptions(channels []string, join bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if join {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// enqueue queues frame without blocking. Frames for a closed or lagging
// client are dropped.
func (c *WSClient) enqueue(frame []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(frame)
}
