// Package websocket pushes dashboard events (feedback notices, record
// changes) to connected browsers. Clients subscribe to topics and receive
// every event published on them.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Topics published by the server.
const (
	TopicFeedback = "feedback"
	TopicPatients = "patients"
)

type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an Event. Data that cannot be marshalled is
// dropped.
func NewEvent(topic, typ string, data any) Event {
	ev := Event{Type: typ, Topic: topic, Timestamp: time.Now().UTC()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

// ClientMessage is what a browser sends to change its subscriptions.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

func NewClient(topics ...string) *Client {
	return &Client{ID: uuid.NewString(), Topics: topics, Send: make(chan []byte, 64)}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	h.subscribeLocked(client, client.Topics)
}

// Unregister drops the client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	h.unsubscribeLocked(client, client.Topics)
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribeLocked(client, topics)
	for _, t := range topics {
		if !contains(client.Topics, t) {
			client.Topics = append(client.Topics, t)
		}
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unsubscribeLocked(client, topics)
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if !contains(topics, t) {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) subscribeLocked(client *Client, topics []string) {
	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

func (h *Hub) unsubscribeLocked(client *Client, topics []string) {
	for _, topic := range topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}
}

func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Publish sends the event to every subscriber of its topic. Slow clients
// whose buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("topic", event.Topic).Msg("websocket client buffer full, event dropped")
		}
	}
	return nil
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

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Handler upgrades GET /ws to a websocket. Clients start subscribed to the
// topics named in ?topics=a,b or, by default, to feedback notices.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.Connect)
}

func (h *Handler) Connect(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	topics := []string{TopicFeedback}
	if q := c.QueryParam("topics"); q != "" {
		topics = strings.Split(q, ",")
	}
	client := NewClient(topics...)
	h.hub.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	for {
		var msg ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				continue
			}
			return
		}
		h.hub.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// originChecker allows requests without an Origin header, a wildcard, or an
// origin from the configured CORS list.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimSpace(a), origin) {
				return true
			}
		}
		return false
	}
}
