// Package websocket pushes committed changes to connected clients. Clients
// subscribe to topics, one per collection ("patients", "invoices", ...),
// and receive an Event for every create, update and delete in them.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/changefeed"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// Event is the message sent to subscribers. Data holds the entity in its
// wire shape and is absent for deletes.
type Event struct {
	Type       string          `json:"type"`
	Topic      string          `json:"topic"`
	ResourceID string          `json:"resourceId"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ClientMessage represents an inbound message from a WebSocket client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Presenter converts a persisted document into the value clients see.
type Presenter func(doc docstore.Document) (any, error)

// Client represents a single WebSocket connection.
type Client struct {
	ID     string
	Topics []string
	Roles  []string
	Send   chan []byte
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}

	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

func NewHub(logger zerolog.Logger, metrics *telemetry.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "websocket").Logger(),
		metrics: metrics,
	}
}

// Register adds a client to the hub and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.addLocked(client, topic)
	}
	h.metrics.WebsocketClients(1)
}

func (h *Hub) addLocked(client *Client, topic string) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) removeLocked(client *Client, topic string) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Unregister removes a client from every topic and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.removeLocked(client, topic)
	}
	delete(h.all, client)
	close(client.Send)
	h.metrics.WebsocketClients(-1)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if _, already := h.clients[topic][client]; already {
			continue
		}
		h.addLocked(client, topic)
		client.Topics = append(client.Topics, topic)
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
		h.removeLocked(client, t)
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// Broadcast sends an event to all clients subscribed to the given topic. A
// client whose buffer is full misses the event rather than blocking the hub.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client", client.ID).Str("topic", topic).Msg("client buffer full, event dropped")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Relay broadcasts every change from sub until ctx is done or sub closes.
// Collections without a presenter are never sent to clients.
func (h *Hub) Relay(ctx context.Context, sub *changefeed.Subscription, presenters map[string]Presenter) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			present, known := presenters[c.Collection]
			if !known {
				continue
			}
			event, err := EventFor(c, present)
			if err != nil {
				h.logger.Error().Err(err).Str("collection", c.Collection).Str("id", c.ID).Msg("presenting change")
				continue
			}
			h.Broadcast(c.Collection, event)
		}
	}
}

// EventFor renders a change as the Event clients receive.
func EventFor(c changefeed.Change, present Presenter) (Event, error) {
	event := Event{Type: string(c.Op), Topic: c.Collection, ResourceID: c.ID, Timestamp: c.At}
	if c.Op == changefeed.OpDelete || c.Doc == nil {
		return event, nil
	}
	v, err := present(c.Doc)
	if err != nil {
		return Event{}, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	event.Data = data
	return event, nil
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler upgrades /api/ws requests and pumps messages.
type Handler struct {
	hub       *Hub
	upgrader  gorillawebsocket.Upgrader
	rolesFn   func(ctx context.Context) []string
	authorize func(roles []string, topic string) bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAllowedOrigins restricts the Origin header of upgrade requests. With
// no origins configured every origin is accepted.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin] || allowed["*"]
		}
	}
}

// WithTopicAuthorizer decides which topics a caller with roles may join.
func WithTopicAuthorizer(rolesFn func(ctx context.Context) []string, authorize func(roles []string, topic string) bool) HandlerOption {
	return func(h *Handler) {
		h.rolesFn = rolesFn
		h.authorize = authorize
	}
}

func NewHandler(hub *Hub, opts ...HandlerOption) *Handler {
	h := &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

func (wsh *Handler) HandleConnect(c echo.Context) error {
	var roles []string
	if wsh.rolesFn != nil {
		roles = wsh.rolesFn(c.Request().Context())
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		return nil
	}

	client := &Client{
		ID:     uuid.New().String(),
		Topics: []string{},
		Roles:  roles,
		Send:   make(chan []byte, 256),
	}
	wsh.hub.Register(client)

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)
	return nil
}

// ProcessMessage applies a subscribe or unsubscribe request, dropping topics
// the client may not see.
func (wsh *Handler) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		topics := make([]string, 0, len(msg.Topics))
		for _, t := range msg.Topics {
			if wsh.authorize == nil || wsh.authorize(client.Roles, t) {
				topics = append(topics, t)
			}
		}
		wsh.hub.Subscribe(client, topics)
	case "unsubscribe":
		wsh.hub.Unsubscribe(client, msg.Topics)
	}
}

func (wsh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}
		wsh.ProcessMessage(client, msg)
	}
}

func (wsh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
