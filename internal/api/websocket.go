package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/remo-relay/internal/infrastructure/config"
	"github.com/nerrad567/remo-relay/internal/infrastructure/logging"
	"github.com/nerrad567/remo-relay/internal/signal"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelSignalSent carries one event per send attempt, successful or not.
const ChannelSignalSent = "signal.sent"

// wsSendBufferSize is the per-connection outbound queue. Events for a
// connection whose queue is full are dropped.
const wsSendBufferSize = 256

// wsChannels are the channels the relay publishes; anything else is
// refused at subscribe time.
var wsChannels = []string{ChannelSignalSent}

// WSMessage is the envelope for every frame the server writes.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is a frame read from a client. The payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, on subscribe, the signals of
// interest. An empty Names list means every signal. Each subscribe replaces
// the connection's name filter.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Names    []string `json:"names,omitempty"`
}

// Hub fans send events out to WebSocket connections.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one WebSocket connection and what it asked to receive.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}
	names         map[string]struct{} // nil: every signal
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is applied by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub with no connections.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a connection. Whoever removes it from the map closes
// its send channel, so Run and Unregister never both close it.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if present {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SignalSent implements signal.SendListener.
func (h *Hub) SignalSent(ev signal.SendEvent) {
	h.publish(ChannelSignalSent, ev.Name, ev.Summary())
}

// publish delivers an event about the named signal to every connection that
// wants it. The client list is copied so no client lock is taken while the
// hub lock is held.
func (h *Hub) publish(channel, name string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.wants(channel, name) {
			c.trySend(data)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("websocket event delivered", "channel", channel, "name", name, "recipients", delivered)
	}
}

// handleWebSocket upgrades the request. The connection receives nothing
// until it subscribes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as alive.
		extend() //nolint:errcheck // as above
		c.handleMessage(frame)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
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

func (c *WSClient) handleMessage(frame []byte) {
	var req wsRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.subscribe(req)
	case WSTypeUnsubscribe:
		c.unsubscribe(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.sendError(req.ID, "unknown message type: "+req.Type)
	}
}

// subscribe adds channels and sets the name filter. The request is applied
// in full or not at all.
func (c *WSClient) subscribe(req wsRequest) {
	sub, err := parseSubscription(req.Payload)
	if err != nil {
		c.sendError(req.ID, err.Error())
		return
	}
	for _, name := range sub.Names {
		if err := signal.ValidateName(name); err != nil {
			c.sendError(req.ID, err.Error())
			return
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.names = nil
	if len(sub.Names) > 0 {
		c.names = make(map[string]struct{}, len(sub.Names))
		for _, name := range sub.Names {
			c.names[name] = struct{}{}
		}
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{
		"subscribed": sub.Channels,
		"names":      sub.Names,
	})
}

func (c *WSClient) unsubscribe(req wsRequest) {
	sub, err := parseSubscription(req.Payload)
	if err != nil {
		c.sendError(req.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{
		"unsubscribed": sub.Channels,
	})
}

// parseSubscription decodes a subscribe or unsubscribe payload and checks
// that it names at least one channel, all of them published by the relay.
func parseSubscription(raw json.RawMessage) (WSSubscribePayload, error) {
	var sub WSSubscribePayload
	if len(raw) == 0 {
		return sub, fmt.Errorf("payload with channels is required")
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, fmt.Errorf("invalid subscription payload")
	}
	if len(sub.Channels) == 0 {
		return sub, fmt.Errorf("at least one channel is required")
	}
	for _, ch := range sub.Channels {
		if !slices.Contains(wsChannels, ch) {
			return sub, fmt.Errorf("unknown channel %q", ch)
		}
	}
	return sub, nil
}

// wants reports whether an event about the named signal on channel should
// reach this connection.
func (c *WSClient) wants(channel, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.subscriptions[channel]; !ok {
		return false
	}
	if c.names == nil {
		return true
	}
	_, ok := c.names[name]
	return ok
}

// trySend queues data without blocking. A full queue drops the frame; a
// channel closed by a concurrent Unregister is tolerated.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
