package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/events"
	"github.com/evetabi/sportsbook/internal/metrics"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 64               // messages in each client send channel
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte // buffered outbound message queue
	username string      // "" = anonymous, receives broadcasts only
}

// directMessage is routed to every connection of one user.
type directMessage struct {
	username string
	data     []byte
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub maintains the set of active clients and routes messages to them.
// Run() must be called in a dedicated goroutine before ServeWs is used.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	byUser  map[string]map[*Client]bool

	// channels consumed by Run()
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client

	// JWT signing key (optional: if empty, all connections are anonymous)
	jwtSecret []byte

	upgrader websocket.Upgrader
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(jwtSecret []byte, allowedOrigins []string, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		jwtSecret:  jwtSecret,
		log:        log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// SetMetrics injects the Prometheus collectors.
func (h *Hub) SetMetrics(m *metrics.Metrics) { h.metrics = m }

// ──────────────────────────────────────────────────────────────────────────────
// Run: hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration and message events sequentially
// until ctx is cancelled. Call it once as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]bool)
			h.byUser = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.username != "" {
				if h.byUser[client.username] == nil {
					h.byUser[client.username] = make(map[*Client]bool)
				}
				h.byUser[client.username][client] = true
			}
			h.mu.Unlock()
			h.metrics.ClientConnected()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if conns := h.byUser[client.username]; conns != nil {
					delete(conns, client)
					if len(conns) == 0 {
						delete(h.byUser, client.username)
					}
				}
				close(client.send)
				h.metrics.ClientDisconnected()
			}
			h.mu.Unlock()

		case msg := <-h.direct:
			h.mu.RLock()
			for client := range h.byUser[msg.username] {
				trySend(client, msg.data)
			}
			h.mu.RUnlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				trySend(client, message)
			}
			h.mu.RUnlock()
		}
	}
}

// trySend drops the message when the client's buffer is full; the writePump
// detects a stalled connection separately.
func trySend(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// ConnectedCount returns the current number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs: HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket connection, authenticates
// the caller via a JWT in the ?token= query parameter when present, and
// starts the read/write pumps.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	var username string
	if token := r.URL.Query().Get("token"); token != "" && len(h.jwtSecret) > 0 {
		username = h.parseJWT(token)
		if username == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		username: username,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// parseJWT extracts the username from a signed access token.
// Returns "" on any failure.
func (h *Hub) parseJWT(tokenString string) string {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	if typ, _ := claims["type"].(string); typ != "access" {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection. It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames until the connection drops, then unregisters the
// client. Inbound data frames are discarded; the protocol is push-only.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("username", c.username), zap.Error(err))
			}
			return
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Notifications (implement service.Notifier and scheduler.OddsBroadcaster)
// ──────────────────────────────────────────────────────────────────────────────

// NotifyBetPlaced pushes the new bet and balance to the owner's connections.
func (h *Hub) NotifyBetPlaced(username string, res *domain.PlacementResult) {
	h.sendTo(username, BetPlacedMessage{
		Type:      MsgTypeBetPlaced,
		Bet:       res.Bet,
		Balance:   res.Balance,
		Timestamp: time.Now().UTC(),
	})
}

// NotifyBetSettled pushes the settled bet and balance to the owner's connections.
func (h *Hub) NotifyBetSettled(username string, res *domain.SettlementResult) {
	h.sendTo(username, BetSettledMessage{
		Type:      MsgTypeBetSettled,
		Bet:       res.Bet,
		Credited:  res.Credited,
		Balance:   res.Balance,
		Timestamp: time.Now().UTC(),
	})
}

// RelayBetSettled forwards a BetSettled event consumed from Kafka to the
// owner's connections.
func (h *Hub) RelayBetSettled(_ context.Context, e events.BetSettled) {
	h.sendTo(e.Username, BetSettledEventMessage{
		Type:      MsgTypeBetSettled,
		BetID:     e.BetID,
		Outcome:   e.Outcome,
		Credited:  e.Credited,
		Balance:   e.Balance,
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastOddsUpdated tells every client that sport has fresh quotes.
func (h *Hub) BroadcastOddsUpdated(sport string, games int) {
	data, err := json.Marshal(OddsUpdatedMessage{
		Type:      MsgTypeOddsUpdated,
		Sport:     sport,
		Games:     games,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("marshal broadcast", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, message dropped")
	}
}

func (h *Hub) sendTo(username string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal direct message", zap.Error(err))
		return
	}
	select {
	case h.direct <- directMessage{username: username, data: data}:
	default:
		h.log.Warn("direct channel full, message dropped", zap.String("username", username))
	}
}
