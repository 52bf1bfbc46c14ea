package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches the connection to a conversation and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, conversationID uuid.UUID) {
	client := NewClient(hub, c, conversationID)
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
