package mapper

import (
	"encoding/json"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/model"

	"gorm.io/gorm"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:             c.Id,
		OrganizationId: c.OrganizationId,
		Sender: entity.Sender{
			Id:     c.SenderId,
			Name:   c.SenderName,
			Avatar: c.SenderAvatar,
		},
		Title:     c.Title,
		TicketId:  c.TicketId,
		Status:    c.Status,
		EndedAt:   c.EndedAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: c.DeletedAt.Valid,
	}
}

func (m *ConversationMapper) ToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:             c.Id,
		OrganizationId: c.OrganizationId,
		SenderId:       c.Sender.Id,
		SenderName:     c.Sender.Name,
		SenderAvatar:   c.Sender.Avatar,
		Title:          c.Title,
		TicketId:       c.TicketId,
		Status:         c.Status,
		EndedAt:        c.EndedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *ConversationMapper) TurnToEntity(t *model.ConversationTurn) *entity.ConversationTurn {
	if t == nil {
		return nil
	}
	var sender entity.Sender
	if len(t.Sender) > 0 {
		_ = json.Unmarshal(t.Sender, &sender)
	}
	return &entity.ConversationTurn{
		Id:               t.Id,
		ConversationId:   t.ConversationId,
		UserMessage:      t.UserMessage,
		AssistantMessage: t.AssistantMessage,
		Sender:           sender,
		CreatedAt:        t.CreatedAt,
	}
}

func (m *ConversationMapper) TurnToModel(t *entity.ConversationTurn) *model.ConversationTurn {
	if t == nil {
		return nil
	}
	sender, _ := json.Marshal(t.Sender)
	return &model.ConversationTurn{
		Id:               t.Id,
		ConversationId:   t.ConversationId,
		UserMessage:      t.UserMessage,
		AssistantMessage: t.AssistantMessage,
		Sender:           sender,
		CreatedAt:        t.CreatedAt,
	}
}

func (m *ConversationMapper) TurnsToEntities(turns []*model.ConversationTurn) []*entity.ConversationTurn {
	out := make([]*entity.ConversationTurn, len(turns))
	for i, t := range turns {
		out[i] = m.TurnToEntity(t)
	}
	return out
}
