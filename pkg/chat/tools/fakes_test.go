package tools

import (
	"context"
	"sync"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/entity"

	"github.com/google/uuid"
)

type memConversation struct {
	org      uuid.UUID
	ticketID *uuid.UUID
}

type memTicketStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*memConversation
	tickets       map[uuid.UUID]*entity.Ticket
	agentName     string
}

func newMemTicketStore() *memTicketStore {
	return &memTicketStore{
		conversations: make(map[uuid.UUID]*memConversation),
		tickets:       make(map[uuid.UUID]*entity.Ticket),
	}
}

func (s *memTicketStore) addConversation(org, id uuid.UUID) {
	s.conversations[id] = &memConversation{org: org}
}

func (s *memTicketStore) CreateForConversation(_ context.Context, org, conversationID uuid.UUID, subject, details string) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok || conv.org != org {
		return nil, ErrConversationNotFound
	}
	if conv.ticketID != nil {
		return nil, &TicketExistsError{TicketID: *conv.ticketID}
	}
	t := &entity.Ticket{
		Id:             uuid.New(),
		OrganizationId: org,
		ConversationId: conversationID,
		Subject:        subject,
		Status:         constant.TicketStatusOpen,
		Context:        []entity.TicketContextEntry{{Kind: constant.TicketContextKindCreated, Text: details}},
	}
	s.tickets[t.Id] = t
	conv.ticketID = &t.Id
	return t, nil
}

func (s *memTicketStore) Get(_ context.Context, org, id uuid.UUID) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.OrganizationId != org {
		return nil, ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTicketStore) Escalate(_ context.Context, org, id uuid.UUID, reason string) (*Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.OrganizationId != org {
		return nil, ErrTicketNotFound
	}
	if t.Escalated {
		return &Escalation{Ticket: t, AlreadyEscalated: true}, nil
	}
	t.Escalated = true
	t.Status = constant.TicketStatusEscalated
	t.Context = append(t.Context, entity.TicketContextEntry{Kind: constant.TicketContextKindEscalation, Text: reason})

	var agent *entity.Agent
	if s.agentName != "" {
		agent = &entity.Agent{Id: uuid.New(), Name: s.agentName}
		t.AssignedAgentId = &agent.Id
	}
	return &Escalation{Ticket: t, Agent: agent}, nil
}
