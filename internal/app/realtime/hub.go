package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Yassin6up/somoo-sub000/internal/app/metrics"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// AuthorizeFunc decides whether userID may subscribe to a conversation.
type AuthorizeFunc func(ctx context.Context, userID, conversationID string) error

// command is a client request read from the socket.
type command struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// Hub tracks connected clients and their topic subscriptions.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	authorize AuthorizeFunc
	upgrader  websocket.Upgrader
	log       *logger.Logger
	closed    bool
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	topics map[string]struct{}
	send   chan Event
	once   sync.Once
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub. allowedOrigins of nil or ["*"] accepts any origin.
func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	h := &Hub{clients: make(map[*client]struct{}), log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// SetAuthorizer installs the conversation access check.
func (h *Hub) SetAuthorizer(fn AuthorizeFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authorize = fn
}

func (h *Hub) Name() string { return "realtime" }

func (h *Hub) Start(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = false
	return nil
}

// Stop disconnects every client.
func (h *Hub) Stop(context.Context) error {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers the event to every client subscribed to topic. Clients
// whose buffers are full are disconnected.
func (h *Hub) Publish(topic, eventType string, payload any) {
	evt := Event{Type: eventType, Topic: topic, Payload: payload, At: time.Now().UTC()}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if _, ok := c.topics[topic]; !ok {
			continue
		}
		select {
		case c.send <- evt:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("user_id", c.userID).Warn("dropping slow realtime client")
		h.remove(c)
	}
}

// ServeWS upgrades the request and registers a client for userID. The client
// is subscribed to its own user topic.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		topics: map[string]struct{}{UserTopic(userID): {}},
		send:   make(chan Event, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	metrics.SetRealtimeClients(len(h.clients))
	h.mu.Unlock()

	go c.writePump()
	c.readPump(r.Context())
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	metrics.SetRealtimeClients(len(h.clients))
	h.mu.Unlock()
	c.close()
}

func (h *Hub) subscribe(ctx context.Context, c *client, topic string) error {
	kind, id, ok := ParseTopic(topic)
	if !ok {
		return errInvalidTopic
	}
	switch kind {
	case "user":
		if id != c.userID {
			return errForbiddenTopic
		}
	case "conversation":
		h.mu.RLock()
		authorize := h.authorize
		h.mu.RUnlock()
		if authorize == nil {
			return errForbiddenTopic
		}
		if err := authorize(ctx, c.userID, id); err != nil {
			return err
		}
	}
	h.mu.Lock()
	c.topics[topic] = struct{}{}
	h.mu.Unlock()
	return nil
}

func (h *Hub) unsubscribe(c *client, topic string) {
	h.mu.Lock()
	delete(c.topics, topic)
	h.mu.Unlock()
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *client) readPump(ctx context.Context) {
	defer c.hub.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).Debug("realtime client closed unexpectedly")
			}
			return
		}
		reply := Event{Topic: cmd.Topic, At: time.Now().UTC()}
		switch cmd.Action {
		case "subscribe":
			if err := c.hub.subscribe(ctx, c, cmd.Topic); err != nil {
				reply.Type, reply.Payload = eventError, map[string]string{"message": err.Error()}
			} else {
				reply.Type = eventSubscribed
			}
		case "unsubscribe":
			c.hub.unsubscribe(c, cmd.Topic)
			reply.Type = eventUnsubscribed
		default:
			reply.Type, reply.Payload = eventError, map[string]string{"message": "unknown action"}
		}
		if !c.trySend(reply) {
			return
		}
	}
}

func (c *client) trySend(evt Event) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
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
