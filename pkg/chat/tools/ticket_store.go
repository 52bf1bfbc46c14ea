package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/mailer"
	"ai-support-be/internal/repository/specification"
	"ai-support-be/internal/repository/unitofwork"
	"ai-support-be/pkg/events"

	"github.com/google/uuid"
)

var (
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// TicketExistsError is returned when a conversation already owns a ticket.
type TicketExistsError struct {
	TicketID uuid.UUID
}

func (e *TicketExistsError) Error() string {
	return fmt.Sprintf("This conversation already has an associated ticket (%s).", e.TicketID)
}

type Escalation struct {
	Ticket           *entity.Ticket
	Agent            *entity.Agent // nil when nobody is available
	AlreadyEscalated bool
}

// TicketStore is the durable side of the ticket tools.
type TicketStore interface {
	// CreateForConversation creates the ticket and links it to the conversation atomically.
	CreateForConversation(ctx context.Context, organizationID, conversationID uuid.UUID, subject, details string) (*entity.Ticket, error)
	Get(ctx context.Context, organizationID, ticketID uuid.UUID) (*entity.Ticket, error)
	Escalate(ctx context.Context, organizationID, ticketID uuid.UUID, reason string) (*Escalation, error)
}

// Runner runs work detached from the caller, such as the escalation mail.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type goRunner struct{}

func (goRunner) Go(_ string, fn func(ctx context.Context) error) {
	go func() { _ = fn(context.Background()) }()
}

type uowTicketStore struct {
	uowFactory unitofwork.RepositoryFactory
	mailer     mailer.IEmailService
	publisher  events.Publisher
	runner     Runner
	logger     logger.ILogger
}

func NewTicketStore(uowFactory unitofwork.RepositoryFactory, m mailer.IEmailService, publisher events.Publisher, runner Runner, log logger.ILogger) TicketStore {
	if m == nil {
		m = mailer.NopEmailService{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if runner == nil {
		runner = goRunner{}
	}
	return &uowTicketStore{uowFactory: uowFactory, mailer: m, publisher: publisher, runner: runner, logger: log}
}

func (s *uowTicketStore) CreateForConversation(ctx context.Context, organizationID, conversationID uuid.UUID, subject, details string) (*entity.Ticket, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationID},
		specification.ByOrganizationID{OrganizationID: organizationID},
	)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.TicketId != nil {
		return nil, &TicketExistsError{TicketID: *conv.TicketId}
	}

	ticket := &entity.Ticket{
		Id:             uuid.New(),
		OrganizationId: organizationID,
		ConversationId: conversationID,
		Subject:        subject,
		Status:         constant.TicketStatusOpen,
		Context: []entity.TicketContextEntry{{
			At:   time.Now(),
			Kind: constant.TicketContextKindCreated,
			Text: details,
		}},
	}
	if err := uow.TicketRepository().Create(ctx, ticket); err != nil {
		// Unique conversation_id: a concurrent call got there first
		if winner := s.existingTicket(ctx, conversationID); winner != nil {
			return nil, &TicketExistsError{TicketID: *winner}
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	attached, err := uow.ConversationRepository().AttachTicket(ctx, conversationID, ticket.Id)
	if err != nil {
		return nil, err
	}
	if !attached {
		if winner := s.existingTicket(ctx, conversationID); winner != nil {
			return nil, &TicketExistsError{TicketID: *winner}
		}
		return nil, fmt.Errorf("attach ticket to conversation %s", conversationID)
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeTicketCreated, ticket, nil)
	return ticket, nil
}

// existingTicket reads outside the failed transaction.
func (s *uowTicketStore) existingTicket(ctx context.Context, conversationID uuid.UUID) *uuid.UUID {
	conv, err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationID})
	if err != nil || conv == nil {
		return nil
	}
	return conv.TicketId
}

func (s *uowTicketStore) Get(ctx context.Context, organizationID, ticketID uuid.UUID) (*entity.Ticket, error) {
	ticket, err := s.uowFactory.NewUnitOfWork(ctx).TicketRepository().FindOne(ctx,
		specification.ByID{ID: ticketID},
		specification.ByOrganizationID{OrganizationID: organizationID},
	)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}

func (s *uowTicketStore) Escalate(ctx context.Context, organizationID, ticketID uuid.UUID, reason string) (*Escalation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	ticket, err := uow.TicketRepository().FindOneForUpdate(ctx,
		specification.ByID{ID: ticketID},
		specification.ByOrganizationID{OrganizationID: organizationID},
	)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	if ticket.Escalated {
		return &Escalation{Ticket: ticket, AlreadyEscalated: true}, nil
	}

	agent, err := uow.AgentRepository().PickLeastLoaded(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if agent != nil {
		if err := uow.AgentRepository().AdjustActiveTickets(ctx, agent.Id, 1); err != nil {
			return nil, err
		}
		ticket.AssignedAgentId = &agent.Id
	}

	ticket.Escalated = true
	ticket.Status = constant.TicketStatusEscalated
	ticket.Context = append(ticket.Context, entity.TicketContextEntry{
		At:   time.Now(),
		Kind: constant.TicketContextKindEscalation,
		Text: reason,
	})
	if err := uow.TicketRepository().Update(ctx, ticket); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if agent != nil && agent.Email != "" {
		// SMTP takes no ctx, so it must not run inside the tool call
		notice := mailer.EscalationNotice{
			AgentName:  agent.Name,
			AgentEmail: agent.Email,
			TicketID:   ticket.Id.String(),
			Subject:    ticket.Subject,
			Reason:     reason,
		}
		s.runner.Go("escalation_mail", func(context.Context) error {
			if err := s.mailer.SendEscalationNotice(notice); err != nil {
				s.logger.Warn("TICKET", "Failed to send escalation notice", map[string]interface{}{
					"ticket_id": notice.TicketID,
					"error":     err.Error(),
				})
				return err
			}
			return nil
		})
	}
	s.publish(ctx, events.TypeTicketEscalated, ticket, agent)
	return &Escalation{Ticket: ticket, Agent: agent}, nil
}

func (s *uowTicketStore) publish(ctx context.Context, eventType string, ticket *entity.Ticket, agent *entity.Agent) {
	data := map[string]interface{}{
		"ticket_id":       ticket.Id.String(),
		"organization_id": ticket.OrganizationId.String(),
		"conversation_id": ticket.ConversationId.String(),
		"status":          ticket.Status,
	}
	if agent != nil {
		data["agent_id"] = agent.Id.String()
	}
	if err := s.publisher.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn("TICKET", "Failed to publish ticket event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
