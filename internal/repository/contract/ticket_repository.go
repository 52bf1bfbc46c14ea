package contract

import (
	"context"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/repository/specification"

	"github.com/google/uuid"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *entity.Ticket) error
	Update(ctx context.Context, ticket *entity.Ticket) error
	// FindOneForUpdate locks the row until the surrounding transaction ends.
	FindOneForUpdate(ctx context.Context, specs ...specification.Specification) (*entity.Ticket, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Ticket, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Ticket, error)
}

type AgentRepository interface {
	Create(ctx context.Context, agent *entity.Agent) error
	Update(ctx context.Context, agent *entity.Agent) error
	// PickLeastLoaded locks and returns the available agent with the fewest active tickets.
	PickLeastLoaded(ctx context.Context, organizationId uuid.UUID) (*entity.Agent, error)
	AdjustActiveTickets(ctx context.Context, id uuid.UUID, delta int) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Agent, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Agent, error)
}
