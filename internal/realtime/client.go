package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/models"
)

// NewUpgrader returns a websocket upgrader accepting the given origins ("*" for any).
func NewUpgrader(allowedOrigins string) *websocket.Upgrader {
	allowAll := strings.TrimSpace(allowedOrigins) == "*"
	allowed := make(map[string]bool)
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one presenter screen watching a category's check-ins.
type Client struct {
	ID       string
	Category models.Category
	UserID   uuid.UUID
	JoinedAt time.Time
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	logger   *zap.Logger
}

// Authenticate validates a bearer token and returns the caller's id, or an
// error when the caller may not watch the board.
type Authenticate func(token string) (uuid.UUID, error)

// ResolveCategory maps a query value to a configured category.
type ResolveCategory func(name string) (models.Category, error)

// ServeLive handles GET /attendance/live?category&token: the websocket upgrade and client loop.
func ServeLive(hub *Hub, upgrader *websocket.Upgrader, logger *zap.Logger, authenticate Authenticate, resolve ResolveCategory) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if c.Query("category") == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "category and token required"})
			return
		}
		category, err := resolve(c.Query("category"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		userID, err := authenticate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, conn, category, userID, logger)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func newClient(hub *Hub, conn *websocket.Conn, category models.Category, userID uuid.UUID, logger *zap.Logger) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Category: category,
		UserID:   userID,
		JoinedAt: time.Now(),
		hub:      hub,
		conn:     conn,
		send:     make(chan WSMessage, 256),
		logger:   logger,
	}
}

// readPump only keeps the connection alive; presenters never write board events.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		if msg.Event == "ping" {
			select {
			case c.send <- WSMessage{Event: EventPong}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
