package unitofwork

import (
	"context"

	"ai-support-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	ConversationTurnRepository() contract.ConversationTurnRepository
	TicketRepository() contract.TicketRepository
	AgentRepository() contract.AgentRepository
	IngestDocumentRepository() contract.IngestDocumentRepository
	KnowledgeEmbeddingRepository() contract.KnowledgeEmbeddingRepository
}
