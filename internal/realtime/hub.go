package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Board events.
const (
	EventCheckIn     = "check_in"
	EventViewerCount = "viewer_count"
	EventPong        = "pong"
)

// Hub maintains category -> set of presenter connections and broadcasts new check-ins.
// Uses Redis pub/sub for horizontal scaling: every instance sees every check-in.
type Hub struct {
	// category -> map[clientID]*Client
	rooms    map[models.Category]map[string]*Client
	subs     map[models.Category]func() // cancel Redis subscription per category
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishCategoryEvent(ctx context.Context, category models.Category, event string, payload []byte) error
}

// RedisSubscriber subscribes to category channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeCategory(category models.Category, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new live board hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[models.Category]map[string]*Client),
		subs:     make(map[models.Category]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a category room and makes sure the category has a
// Redis subscription. The subscribe round-trip runs without holding the hub lock.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.Category] == nil {
		h.rooms[c.Category] = make(map[string]*Client)
	}
	h.rooms[c.Category][c.ID] = c
	count := len(h.rooms[c.Category])
	_, subscribed := h.subs[c.Category]
	h.mu.Unlock()

	if !subscribed && h.redisSub != nil {
		h.subscribe(c.Category)
	}

	h.Broadcast(c.Category, EventViewerCount, map[string]int{"count": count})
	h.logger.Debug("presenter joined live board", zap.String("client_id", c.ID), zap.String("category", string(c.Category)))
}

// subscribe opens the category channel and keeps it only if the room still
// exists and no concurrent Register already subscribed.
func (h *Hub) subscribe(cat models.Category) {
	cancel, err := h.redisSub.SubscribeCategory(cat, func(event string, payload []byte) {
		h.Broadcast(cat, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("live board subscribe failed", zap.Error(err), zap.String("category", string(cat)))
		return
	}

	h.mu.Lock()
	_, dup := h.subs[cat]
	_, live := h.rooms[cat]
	if !dup && live {
		h.subs[cat] = cancel
	}
	h.mu.Unlock()
	if dup || !live {
		cancel()
	}
}

// Unregister removes a client from its room. Cancels Redis subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	count := 0
	if m, ok := h.rooms[c.Category]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		count = len(m)
		if count == 0 {
			delete(h.rooms, c.Category)
			if cancel, ok := h.subs[c.Category]; ok {
				cancel()
				delete(h.subs, c.Category)
			}
		}
	}
	h.mu.Unlock()

	if count > 0 {
		h.Broadcast(c.Category, EventViewerCount, map[string]int{"count": count})
	}
	h.logger.Debug("presenter left live board", zap.String("client_id", c.ID), zap.String("category", string(c.Category)))
}

// Broadcast sends a message to all clients in a category room (local only).
func (h *Hub) Broadcast(category models.Category, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[category] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish implements attendance.Notifier. With Redis configured the record is
// published only there, so the subscriber callback broadcasts it once on every
// instance including this one.
func (h *Hub) Publish(ctx context.Context, rec *models.AttendanceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if h.redis != nil {
		return h.redis.PublishCategoryEvent(ctx, rec.Category, EventCheckIn, data)
	}
	h.Broadcast(rec.Category, EventCheckIn, json.RawMessage(data))
	return nil
}

// ViewerCount returns the number of connected presenters for a category.
func (h *Hub) ViewerCount(category models.Category) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[category])
}
