package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByOrganizationID scopes every tenant-owned table.
type ByOrganizationID struct {
	OrganizationID uuid.UUID
}

func (s ByOrganizationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("organization_id = ?", s.OrganizationID)
}

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByDocumentID struct {
	DocumentID uuid.UUID
}

func (s ByDocumentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// AvailableAgents orders the least loaded agent first.
type AvailableAgents struct{}

func (s AvailableAgents) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("available = ?", true).Order("active_ticket_count ASC").Order("created_at ASC")
}
