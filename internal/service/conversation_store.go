package service

import (
	"context"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/repository/unitofwork"
	"ai-support-be/pkg/chat/turn"

	"github.com/google/uuid"
)

// conversationStore is the durable side of a turn; it runs on background tasks.
type conversationStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewConversationStore(uowFactory unitofwork.RepositoryFactory) turn.ConversationStore {
	return &conversationStore{uowFactory: uowFactory}
}

func (s *conversationStore) AppendTurn(ctx context.Context, t *entity.ConversationTurn) error {
	return s.uowFactory.NewUnitOfWork(ctx).ConversationTurnRepository().Create(ctx, t)
}

func (s *conversationStore) UpdateTitle(ctx context.Context, conversationID uuid.UUID, title string) error {
	return s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().UpdateTitle(ctx, conversationID, title)
}
