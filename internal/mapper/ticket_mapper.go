package mapper

import (
	"encoding/json"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/model"

	"gorm.io/gorm"
)

type TicketMapper struct{}

func NewTicketMapper() *TicketMapper {
	return &TicketMapper{}
}

func (m *TicketMapper) ToEntity(t *model.Ticket) *entity.Ticket {
	if t == nil {
		return nil
	}

	var deletedAt *time.Time
	if t.DeletedAt.Valid {
		d := t.DeletedAt.Time
		deletedAt = &d
	}

	var updatedAt *time.Time
	if !t.UpdatedAt.IsZero() {
		u := t.UpdatedAt
		updatedAt = &u
	}

	entries := []entity.TicketContextEntry{}
	if len(t.Context) > 0 {
		_ = json.Unmarshal(t.Context, &entries)
	}

	return &entity.Ticket{
		Id:              t.Id,
		OrganizationId:  t.OrganizationId,
		ConversationId:  t.ConversationId,
		Subject:         t.Subject,
		Context:         entries,
		Status:          t.Status,
		Escalated:       t.Escalated,
		AssignedAgentId: t.AssignedAgentId,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
		IsDeleted:       t.DeletedAt.Valid,
	}
}

func (m *TicketMapper) ToModel(t *entity.Ticket) *model.Ticket {
	if t == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if t.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *t.DeletedAt, Valid: true}
	} else if t.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if t.UpdatedAt != nil {
		updatedAt = *t.UpdatedAt
	}

	entries := t.Context
	if entries == nil {
		entries = []entity.TicketContextEntry{}
	}
	ctxJSON, _ := json.Marshal(entries)

	return &model.Ticket{
		Id:              t.Id,
		OrganizationId:  t.OrganizationId,
		ConversationId:  t.ConversationId,
		Subject:         t.Subject,
		Context:         ctxJSON,
		Status:          t.Status,
		Escalated:       t.Escalated,
		AssignedAgentId: t.AssignedAgentId,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
	}
}

func (m *TicketMapper) AgentToEntity(a *model.Agent) *entity.Agent {
	if a == nil {
		return nil
	}
	var updatedAt *time.Time
	if !a.UpdatedAt.IsZero() {
		u := a.UpdatedAt
		updatedAt = &u
	}
	return &entity.Agent{
		Id:                a.Id,
		OrganizationId:    a.OrganizationId,
		Name:              a.Name,
		Email:             a.Email,
		Available:         a.Available,
		ActiveTicketCount: a.ActiveTicketCount,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         updatedAt,
	}
}

func (m *TicketMapper) AgentToModel(a *entity.Agent) *model.Agent {
	if a == nil {
		return nil
	}
	var updatedAt time.Time
	if a.UpdatedAt != nil {
		updatedAt = *a.UpdatedAt
	}
	return &model.Agent{
		Id:                a.Id,
		OrganizationId:    a.OrganizationId,
		Name:              a.Name,
		Email:             a.Email,
		Available:         a.Available,
		ActiveTicketCount: a.ActiveTicketCount,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         updatedAt,
	}
}
