package entity

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies the customer on the other end of a conversation.
type Sender struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Conversation struct {
	Id             uuid.UUID
	OrganizationId uuid.UUID
	Sender         Sender
	Title          string
	TicketId       *uuid.UUID
	Status         string
	EndedAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}

type ConversationTurn struct {
	Id               uuid.UUID
	ConversationId   uuid.UUID
	UserMessage      string
	AssistantMessage string
	Sender           Sender
	CreatedAt        time.Time
}
