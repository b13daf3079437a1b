package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

// Send pings to peer with this period. Must be less than pongWait.
var pingPeriod = (pongWait * 9) / 10

// Time an unauthenticated connection may stay open.
var authWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     safeCheckOrigin,
}

// safeCheckOrigin validates WebSocket connection origins.
// It allows:
// - Empty origin (non-browser clients)
// - Same host:port as the request
// - Same host (ignoring port) for development scenarios
func safeCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	originHost := strings.Split(u.Host, ":")[0]
	requestHost := strings.Split(r.Host, ":")[0]

	return strings.EqualFold(originHost, requestHost)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan BaseMessage

	// auth validates tokens sent in auth messages. May be nil.
	auth Authenticator

	// userID is the authenticated owner whose events this client receives.
	// Empty until the client authenticates. Guarded by mu.
	userID string

	// knownTable reports whether a table id may be subscribed to.
	knownTable func(id string) bool

	// Subscriptions by client-chosen id
	subscriptions map[string]Subscription
	mu            sync.Mutex

	logger *slog.Logger
}

type Subscription struct {
	Table string
}

// readPump pumps messages from the websocket connection to the hub.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	c.logger.Info("WebSocket connection established")

	if c.currentUser() == "" {
		timer := time.AfterFunc(authWait, func() {
			if c.currentUser() == "" {
				c.hub.logger.Info("Closing unauthenticated WebSocket connection")
				c.conn.Close()
			}
		})
		defer timer.Stop()
	}

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket connection closed", "error", err)
			} else {
				c.logger.Info("WebSocket connection closed")
			}
			break
		}

		var msg BaseMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("Failed to decode websocket message", "error", err)
			c.sendError("", "bad_request", "invalid message")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg BaseMessage) {
	if msg.Type == TypeAuth {
		c.handleAuth(msg)
		return
	}
	if msg.Type == TypeSubscribe || msg.Type == TypeUnsubscribe {
		if c.currentUser() == "" {
			c.sendError(msg.ID, "unauthorized", "auth required")
			return
		}
	}

	switch msg.Type {
	case TypeSubscribe:
		var payload SubscribePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.sendError(msg.ID, "bad_request", "invalid subscribe payload")
				return
			}
		}
		if msg.ID == "" {
			c.sendError(msg.ID, "bad_request", "subscription id is required")
			return
		}
		if payload.Table != "" && c.knownTable != nil && !c.knownTable(payload.Table) {
			c.sendError(msg.ID, "unknown_table", "unknown table "+payload.Table)
			return
		}

		c.mu.Lock()
		c.subscriptions[msg.ID] = Subscription{Table: payload.Table}
		c.mu.Unlock()
		c.logger.Debug("Subscribed", "id", msg.ID, "table", payload.Table)

		c.send <- BaseMessage{ID: msg.ID, Type: TypeSubscribeAck}

	case TypeUnsubscribe:
		var payload UnsubscribePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError(msg.ID, "bad_request", "invalid unsubscribe payload")
			return
		}
		c.mu.Lock()
		delete(c.subscriptions, payload.ID)
		c.mu.Unlock()
		c.send <- BaseMessage{ID: msg.ID, Type: TypeUnsubscribeAck}

	default:
		c.sendError(msg.ID, "bad_request", "unknown message type "+msg.Type)
	}
}

func (c *Client) handleAuth(msg BaseMessage) {
	if c.auth == nil {
		c.sendError(msg.ID, "unauthorized", "token auth is not available")
		return
	}

	var payload AuthPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Token == "" {
		c.sendError(msg.ID, "invalid_auth", "invalid payload")
		return
	}

	claims, err := c.auth.ValidateToken(payload.Token)
	if err != nil {
		c.logger.Debug("WebSocket auth rejected", "error", err)
		c.sendError(msg.ID, "unauthorized", "invalid token")
		return
	}

	c.mu.Lock()
	if c.userID != "" && c.userID != claims.Subject {
		c.mu.Unlock()
		c.sendError(msg.ID, "unauthorized", "connection belongs to another user")
		return
	}
	first := c.userID == ""
	c.userID = claims.Subject
	c.mu.Unlock()

	if first {
		c.logger = c.logger.With("user", claims.Subject)
		c.logger.Debug("WebSocket authenticated")
	}
	c.send <- BaseMessage{ID: msg.ID, Type: TypeAuthAck}
}

func (c *Client) currentUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) sendError(id, code, message string) {
	c.send <- BaseMessage{
		ID:      id,
		Type:    TypeError,
		Payload: mustMarshal(ErrorPayload{Code: code, Message: message}),
	}
}

// writePump pumps messages from the hub to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches the connection to hub. userID
// is empty when the handshake carried no credentials.
func ServeWs(hub *Hub, auth Authenticator, userID string, knownTable func(string) bool, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	client := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan BaseMessage, 256),
		auth:          auth,
		userID:        userID,
		knownTable:    knownTable,
		subscriptions: make(map[string]Subscription),
		logger:        hub.logger,
	}
	if userID != "" {
		client.logger = hub.logger.With("user", userID)
	}
	if !client.hub.Register(client) {
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
}
