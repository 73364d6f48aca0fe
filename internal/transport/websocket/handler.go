package websocket

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	gw "github.com/gorilla/websocket"
	jwtinfra "github.com/storefront-api/internal/infrastructure/jwt"
)

type Conn = gw.Conn

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type tokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

type Handler struct {
	hub      *Hub
	tokens   tokenVerifier
	upgrader gw.Upgrader
	logger   *slog.Logger
}

// NewHandler serves the order status stream. A "*" entry in allowedOrigins
// accepts any origin.
func NewHandler(hub *Hub, tokens tokenVerifier, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub, tokens: tokens, logger: slog.Default()}
	h.upgrader = gw.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// ServeWS authenticates the token query parameter before upgrading.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
		return
	}
	claims, err := h.tokens.Verify(token)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: claims.UserID,
	}
	if !h.hub.join(client) {
		_ = conn.Close()
		return
	}
	h.logger.Debug("order stream opened", "client_id", client.id, "user_id", client.userID)

	go client.writePump()
	go client.readPump(h.logger)
}

func (c *Client) readPump(logger *slog.Logger) {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
		logger.Debug("order stream closed", "client_id", c.id, "user_id", c.userID)
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gw.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gw.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
