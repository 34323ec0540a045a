package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/auth"
	"github.com/pushit/marketplace/internal/events"
	"go.uber.org/zap"
)

// wsClient serialises writes to one socket; events from several streams
// arrive on different goroutines.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub pushes notification and payment events to the sockets of the
// user they belong to.
type WSHub struct {
	jwtSecret   string
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[uuid.UUID][]*wsClient
}

func NewWSHub(jwtSecret string, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		jwtSecret:   jwtSecret,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	for _, stream := range []string{events.StreamNotifications, events.StreamPayments} {
		if err := h.subscriber.Subscribe(ctx, stream, h.route); err != nil {
			return err
		}
	}
	return nil
}

func (h *WSHub) route(event events.Event) {
	userID, err := uuid.Parse(event.UserID())
	if err != nil {
		h.log.Debug("event without user dropped", zap.String("type", event.Type))
		return
	}
	h.SendToUser(userID, event)
}

func (h *WSHub) SendToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := append([]*wsClient(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
}

// Connected returns the number of open sockets for a user.
func (h *WSHub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.jwtSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	userID := claims.UserID
	client := &wsClient{conn: conn}
	h.register(userID, client)
	defer func() {
		h.unregister(userID, client)
		conn.Close()
	}()

	// Read until the peer goes away; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *WSHub) register(userID uuid.UUID, c *wsClient) {
	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], c)
	h.mu.Unlock()
}

func (h *WSHub) unregister(userID uuid.UUID, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.connections[userID]
	for i, existing := range clients {
		if existing == c {
			h.connections[userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
	}
}
