package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-support-be/internal/pkg/logger"
	"ai-support-be/pkg/chat/turn"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisChannel = "conversation_events"
	sendBuffer   = 256
)

// Hub pushes turn events to the clients watching a conversation.
type Hub struct {
	// Conversation ID -> clients (one customer may have several tabs open)
	clients map[uuid.UUID]map[*Client]struct{}
	mu      sync.RWMutex

	// Redis connection for cross-instance fan-out, optional
	rdb        *redis.Client
	instanceID string
	relay      chan []byte

	logger logger.ILogger
}

var _ turn.Sink = (*Hub)(nil)

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		relay:      make(chan []byte, 1024),
		logger:     log,
	}
}

// Run forwards local events to Redis and relays events published by other
// instances until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	go h.forward(ctx)

	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("HUB", "Invalid relay payload", map[string]interface{}{"error": err.Error()})
				continue
			}
			if env.Origin == h.instanceID {
				continue
			}
			h.deliver(env.ConversationID, env.Message)
		}
	}
}

func (h *Hub) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-h.relay:
			if err := h.rdb.Publish(ctx, redisChannel, payload).Err(); err != nil {
				h.logger.Debug("HUB", "Redis publish failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

type envelope struct {
	Origin         string          `json:"origin"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Message        json.RawMessage `json:"message"`
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.ConversationID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.ConversationID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("HUB", "Client registered", map[string]interface{}{"conversation_id": c.ConversationID.String()})
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.ConversationID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		delete(h.clients, c.ConversationID)
	}
}

// Publish never blocks: a client whose buffer is full is dropped.
func (h *Hub) Publish(conversationID uuid.UUID, ev turn.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.deliver(conversationID, data)

	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(envelope{Origin: h.instanceID, ConversationID: conversationID, Message: data})
	select {
	case h.relay <- payload:
	default:
		h.logger.Warn("HUB", "Relay buffer full, event not forwarded", map[string]interface{}{
			"conversation_id": conversationID.String(),
		})
	}
}

func (h *Hub) deliver(conversationID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[conversationID] {
		select {
		case c.Send <- data:
		default:
			h.logger.Warn("HUB", "Client send buffer full, dropping client", map[string]interface{}{
				"conversation_id": conversationID.String(),
			})
			h.removeLocked(c)
		}
	}
}

func (h *Hub) Clients(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[conversationID])
}
