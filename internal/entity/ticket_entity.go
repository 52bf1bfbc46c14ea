package entity

import (
	"time"

	"github.com/google/uuid"
)

// TicketContextEntry is one line of a ticket's append-only context log.
type TicketContextEntry struct {
	At   time.Time `json:"at"`
	Kind string    `json:"kind"`
	Text string    `json:"text"`
}

type Ticket struct {
	Id              uuid.UUID
	OrganizationId  uuid.UUID
	ConversationId  uuid.UUID
	Subject         string
	Context         []TicketContextEntry
	Status          string
	Escalated       bool
	AssignedAgentId *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}

type Agent struct {
	Id                uuid.UUID
	OrganizationId    uuid.UUID
	Name              string
	Email             string
	Available         bool
	ActiveTicketCount int
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}
