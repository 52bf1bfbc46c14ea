package service

import (
	"context"
	"errors"
	"fmt"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/dto"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/internal/repository/specification"
	"ai-support-be/internal/repository/unitofwork"
	"ai-support-be/pkg/chat/session"
	"ai-support-be/pkg/chat/turn"
	"ai-support-be/pkg/events"
	"ai-support-be/pkg/llm"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationEnded    = errors.New("conversation has ended")
)

type IChatService interface {
	StartChat(ctx context.Context, organizationID uuid.UUID, sender entity.Sender) (uuid.UUID, error)
	// ContinueChat streams tokens to the conversation's subscribers and returns the final reply.
	ContinueChat(ctx context.Context, organizationID, conversationID uuid.UUID, message string) (*turn.Result, error)
	EndChat(ctx context.Context, organizationID, conversationID uuid.UUID) error
	History(ctx context.Context, organizationID, conversationID uuid.UUID) (*dto.ConversationHistoryResponse, error)
	// AuthorizeConversation reports ErrConversationNotFound unless the organization owns the conversation.
	AuthorizeConversation(ctx context.Context, organizationID, conversationID uuid.UUID) error
}

type TurnRunner interface {
	Run(ctx context.Context, sess *session.Session, userMessage string) (*turn.Result, error)
}

type chatService struct {
	uowFactory   unitofwork.RepositoryFactory
	sessions     contract.SessionStore
	turns        TurnRunner
	publisher    events.Publisher
	systemPrompt string
	historyLimit int
	logger       logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	sessions contract.SessionStore,
	turns TurnRunner,
	publisher events.Publisher,
	systemPrompt string,
	historyLimit int,
	log logger.ILogger,
) IChatService {
	if systemPrompt == "" {
		systemPrompt = constant.DefaultSupportSystemPrompt
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &chatService{
		uowFactory:   uowFactory,
		sessions:     sessions,
		turns:        turns,
		publisher:    publisher,
		systemPrompt: systemPrompt,
		historyLimit: historyLimit,
		logger:       log,
	}
}

func (s *chatService) StartChat(ctx context.Context, organizationID uuid.UUID, sender entity.Sender) (uuid.UUID, error) {
	sess := s.sessions.Create(organizationID, sender, s.systemPrompt)

	conv := &entity.Conversation{
		Id:             sess.ConversationID,
		OrganizationId: organizationID,
		Sender:         sender,
		Status:         constant.ConversationStatusActive,
	}
	if err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().Create(ctx, conv); err != nil {
		s.sessions.Remove(sess.ConversationID)
		return uuid.Nil, fmt.Errorf("create conversation: %w", err)
	}

	s.publish(ctx, events.TypeConversationStarted, conv)
	s.logger.Info("CHAT", "Conversation started", map[string]interface{}{
		"conversation_id": conv.Id.String(),
		"organization_id": organizationID.String(),
		"sender_id":       sender.Id,
	})
	return conv.Id, nil
}

func (s *chatService) ContinueChat(ctx context.Context, organizationID, conversationID uuid.UUID, message string) (*turn.Result, error) {
	sess, err := s.session(ctx, organizationID, conversationID)
	if err != nil {
		return nil, err
	}

	res, err := s.turns.Run(ctx, sess, message)
	if err != nil {
		return nil, err
	}
	s.sessions.Touch(conversationID)
	return res, nil
}

// session returns the resident session or rebuilds it from durable turns.
func (s *chatService) session(ctx context.Context, organizationID, conversationID uuid.UUID) (*session.Session, error) {
	sess, err := s.sessions.Get(conversationID)
	if err == nil {
		if sess.OrganizationID != organizationID {
			return nil, contract.ErrSessionNotFound
		}
		return sess, nil
	}
	if !errors.Is(err, contract.ErrSessionNotFound) {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
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
	if conv.Status == constant.ConversationStatusEnded {
		return nil, ErrConversationEnded
	}

	limit := s.historyLimit / 2
	if limit <= 0 {
		limit = 50
	}
	recent, err := uow.ConversationTurnRepository().FindRecent(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	total, err := uow.ConversationTurnRepository().Count(ctx, specification.ByConversationID{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(recent)*2)
	for _, t := range recent {
		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: t.UserMessage},
			llm.Message{Role: llm.RoleAssistant, Content: t.AssistantMessage},
		)
	}

	fresh := session.New(conversationID, organizationID, conv.Sender, s.systemPrompt)
	// Not shared yet, so the gate is not needed
	fresh.SeedLocked(history, int(total))
	resident, loaded := s.sessions.Add(fresh)

	s.logger.Info("CHAT", "Session rehydrated", map[string]interface{}{
		"conversation_id": conversationID.String(),
		"turns":           len(recent),
		"raced":           loaded,
	})
	return resident, nil
}

func (s *chatService) EndChat(ctx context.Context, organizationID, conversationID uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationID},
		specification.ByOrganizationID{OrganizationID: organizationID},
	)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	s.sessions.Remove(conversationID)
	if conv.Status == constant.ConversationStatusEnded {
		return nil
	}
	if err := uow.ConversationRepository().MarkEnded(ctx, conversationID); err != nil {
		return err
	}
	conv.Status = constant.ConversationStatusEnded
	s.publish(ctx, events.TypeConversationEnded, conv)
	return nil
}

func (s *chatService) AuthorizeConversation(ctx context.Context, organizationID, conversationID uuid.UUID) error {
	_, err := s.findConversation(ctx, s.uowFactory.NewUnitOfWork(ctx), organizationID, conversationID)
	return err
}

func (s *chatService) findConversation(ctx context.Context, uow unitofwork.UnitOfWork, organizationID, conversationID uuid.UUID) (*entity.Conversation, error) {
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
	return conv, nil
}

func (s *chatService) History(ctx context.Context, organizationID, conversationID uuid.UUID) (*dto.ConversationHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conv, err := s.findConversation(ctx, uow, organizationID, conversationID)
	if err != nil {
		return nil, err
	}

	turns, err := uow.ConversationTurnRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationID},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.ConversationHistoryResponse{
		ConversationId: conv.Id,
		Title:          conv.Title,
		Status:         conv.Status,
		TicketId:       conv.TicketId,
		Turns:          make([]*dto.ConversationTurnResponse, 0, len(turns)),
	}
	for _, t := range turns {
		res.Turns = append(res.Turns, &dto.ConversationTurnResponse{
			Id:               t.Id,
			UserMessage:      t.UserMessage,
			AssistantMessage: t.AssistantMessage,
			CreatedAt:        t.CreatedAt,
		})
	}
	return res, nil
}

func (s *chatService) publish(ctx context.Context, eventType string, conv *entity.Conversation) {
	err := s.publisher.Publish(ctx, events.New(eventType, map[string]interface{}{
		"conversation_id": conv.Id.String(),
		"organization_id": conv.OrganizationId.String(),
		"sender_id":       conv.Sender.Id,
		"status":          conv.Status,
	}))
	if err != nil {
		s.logger.Warn("CHAT", "Failed to publish conversation event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
