package websocket

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"snapbooth/internal/session"
	"snapbooth/pkg/interfaces"
	"snapbooth/pkg/types"
)

// Upgrader with settings shared by all handler instances. Origin checking is
// left to the deployment's proxy layer; kiosks and phones connect from
// arbitrary origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionGetter is the handler's view of the session layer: existence checks
// only, no mutation.
type SessionGetter interface {
	Get(token string) (types.Session, error)
}

// Subscriptions is the handler's view of the notification hub.
type Subscriptions interface {
	Subscribe(token string, ch interfaces.PushChannel) error
	Unsubscribe(token string, ch interfaces.PushChannel)
}

// Config holds connection tuning knobs.
type Config struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	BufferSize   int
}

// Handler upgrades kiosk and mobile clients to WebSocket push channels and
// ties their lifecycle to the hub's subscriber sets.
type Handler struct {
	sessions SessionGetter
	hub      Subscriptions
	config   Config
}

// NewHandler creates a WebSocket handler.
func NewHandler(sessions SessionGetter, hub Subscriptions, config Config) *Handler {
	return &Handler{
		sessions: sessions,
		hub:      hub,
		config:   config,
	}
}

// HandleWebSocket handles /ws?token=... connection requests. The session
// token arrives as a query parameter (sessionId is accepted as an alias);
// missing or unknown tokens are rejected before the upgrade.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.URL.Query().Get("sessionId")
	}
	if token == "" {
		http.Error(w, "Missing required query parameter: token", http.StatusBadRequest)
		return
	}

	if _, err := h.sessions.Get(token); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
		} else {
			http.Error(w, "Session lookup failed", http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, token, h.config.BufferSize)

	if err := h.hub.Subscribe(token, wsConn); err != nil {
		log.Printf("Failed to subscribe connection for session %s: %v", token, err)
		_ = wsConn.Close()
		return
	}

	// Welcome message confirms the subscription; current state is learned
	// through the status endpoint, not replayed here.
	welcome := &types.Notification{
		Type:      types.NotificationStatusUpdate,
		SessionID: token,
		Message:   "Connected to session",
	}
	if err := wsConn.SendJSON(welcome); err != nil {
		log.Printf("Failed to send welcome message: %v", err)
	}

	go h.handleConnection(wsConn)
}

// handleConnection owns the connection's read side and heartbeat, and
// guarantees the subscription is released exactly once on exit regardless of
// which event (peer close, read error, ping failure) triggers it.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.hub.Unsubscribe(conn.Token(), conn)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	// Push channels are effectively one-way; inbound frames are drained to
	// run the close/pong machinery and otherwise ignored.
	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for session %s: %v", conn.Token(), err)
			}
			return
		}
	}
}
