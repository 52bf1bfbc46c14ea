package contract

import (
	"context"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	Update(ctx context.Context, conversation *entity.Conversation) error
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	// AttachTicket sets ticket_id only when it is still empty; false means another ticket won.
	AttachTicket(ctx context.Context, id uuid.UUID, ticketId uuid.UUID) (bool, error)
	MarkEnded(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
}

type ConversationTurnRepository interface {
	Create(ctx context.Context, turn *entity.ConversationTurn) error
	// FindRecent returns at most limit turns, oldest first.
	FindRecent(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.ConversationTurn, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationTurn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
