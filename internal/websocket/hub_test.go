package websocket

import (
	"encoding/json"
	"testing"

	"ai-support-be/internal/pkg/logger"
	"ai-support-be/pkg/chat/turn"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(h *Hub, conversationID uuid.UUID, buffer int) *Client {
	c := &Client{Hub: h, ConversationID: conversationID, Send: make(chan []byte, buffer)}
	h.Register(c)
	return c
}

func TestHub_PublishReachesOnlyThatConversation(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	a, b := uuid.New(), uuid.New()
	ca := register(h, a, 4)
	cb := register(h, b, 4)

	h.Publish(a, turn.TokenEvent(a, "hi"))

	require.Len(t, ca.Send, 1)
	assert.Len(t, cb.Send, 0)

	var ev turn.Event
	require.NoError(t, json.Unmarshal(<-ca.Send, &ev))
	assert.Equal(t, turn.EventToken, ev.Type)
	assert.Equal(t, "hi", ev.Token)
	assert.Equal(t, a, ev.ConversationID)
}

func TestHub_DropsSlowClientWithoutBlocking(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	conv := uuid.New()
	slow := register(h, conv, 1)
	fast := register(h, conv, 8)

	for _, tok := range []string{"a", "b", "c"} {
		h.Publish(conv, turn.TokenEvent(conv, tok))
	}

	assert.Equal(t, 1, h.Clients(conv))
	assert.Len(t, fast.Send, 3)

	// The slow client's channel is closed after its buffered event
	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	conv := uuid.New()
	c := register(h, conv, 1)

	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.Clients(conv))
}
