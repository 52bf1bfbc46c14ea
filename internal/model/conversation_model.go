package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Conversation struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationId uuid.UUID      `gorm:"type:uuid;not null;index"`
	SenderId       string         `gorm:"type:varchar(255);not null;index"`
	SenderName     string         `gorm:"type:varchar(255)"`
	SenderAvatar   string         `gorm:"type:text"`
	Title          string         `gorm:"type:text"`
	TicketId       *uuid.UUID     `gorm:"type:uuid;uniqueIndex"`
	Status         string         `gorm:"type:varchar(20);not null;default:'active'"`
	EndedAt        *time.Time
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationTurn is written by the background logger after each completed turn.
type ConversationTurn struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserMessage      string         `gorm:"type:text;not null"`
	AssistantMessage string         `gorm:"type:text;not null"`
	Sender           datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}
