package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartChatRequest struct {
	SenderId     string `json:"sender_id" validate:"required"`
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar" validate:"omitempty,url"`
}

type StartChatResponse struct {
	ConversationId uuid.UUID `json:"conversation_id"`
}

type ContinueChatRequest struct {
	Message string `json:"message" validate:"required,max=8000"`
}

type ContinueChatResponse struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	Message        string    `json:"message"`
}

type ConversationTurnResponse struct {
	Id               uuid.UUID `json:"id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	CreatedAt        time.Time `json:"created_at"`
}

type ConversationHistoryResponse struct {
	ConversationId uuid.UUID                   `json:"conversation_id"`
	Title          string                      `json:"title"`
	Status         string                      `json:"status"`
	TicketId       *uuid.UUID                  `json:"ticket_id,omitempty"`
	Turns          []*ConversationTurnResponse `json:"turns"`
}
