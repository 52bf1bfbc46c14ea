package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Ticket struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationId  uuid.UUID      `gorm:"type:uuid;not null;index"`
	ConversationId  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex"` // one ticket per conversation
	Subject         string         `gorm:"type:varchar(500);not null"`
	Context         datatypes.JSON `gorm:"type:jsonb;default:'[]'"`
	Status          string         `gorm:"type:varchar(20);not null;default:'open';index"`
	Escalated       bool           `gorm:"default:false"`
	AssignedAgentId *uuid.UUID     `gorm:"type:uuid;index"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (Ticket) TableName() string {
	return "tickets"
}

type Agent struct {
	Id                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name              string    `gorm:"type:varchar(255);not null"`
	Email             string    `gorm:"type:varchar(255)"`
	Available         bool      `gorm:"default:true;index"`
	ActiveTicketCount int       `gorm:"default:0"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (Agent) TableName() string {
	return "agents"
}
