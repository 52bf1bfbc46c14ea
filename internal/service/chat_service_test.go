package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/internal/repository/memory"
	"ai-support-be/internal/repository/specification"
	"ai-support-be/internal/repository/unitofwork"
	"ai-support-be/pkg/chat/session"
	"ai-support-be/pkg/chat/turn"
	"ai-support-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	conversations map[uuid.UUID]*entity.Conversation
	turns         []*entity.ConversationTurn
	createErr     error
	turnScans     int
}

type fakeConversationRepo struct {
	contract.ConversationRepository
	db *fakeDB
}

func (r *fakeConversationRepo) Create(_ context.Context, c *entity.Conversation) error {
	if r.db.createErr != nil {
		return r.db.createErr
	}
	cp := *c
	r.db.conversations[c.Id] = &cp
	return nil
}

func (r *fakeConversationRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	var id, org uuid.UUID
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			id = v.ID
		case specification.ByOrganizationID:
			org = v.OrganizationID
		}
	}
	c, ok := r.db.conversations[id]
	if !ok || c.OrganizationId != org {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) MarkEnded(_ context.Context, id uuid.UUID) error {
	r.db.conversations[id].Status = constant.ConversationStatusEnded
	return nil
}

func (r *fakeConversationRepo) UpdateTitle(_ context.Context, id uuid.UUID, title string) error {
	r.db.conversations[id].Title = title
	return nil
}

type fakeTurnRepo struct {
	contract.ConversationTurnRepository
	db *fakeDB
}

func (r *fakeTurnRepo) Create(_ context.Context, t *entity.ConversationTurn) error {
	r.db.turns = append(r.db.turns, t)
	return nil
}

func (r *fakeTurnRepo) forConversation(id uuid.UUID) []*entity.ConversationTurn {
	var out []*entity.ConversationTurn
	for _, t := range r.db.turns {
		if t.ConversationId == id {
			out = append(out, t)
		}
	}
	return out
}

func (r *fakeTurnRepo) FindRecent(_ context.Context, id uuid.UUID, limit int) ([]*entity.ConversationTurn, error) {
	all := r.forConversation(id)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *fakeTurnRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.ConversationTurn, error) {
	r.db.turnScans++
	for _, s := range specs {
		if v, ok := s.(specification.ByConversationID); ok {
			return r.forConversation(v.ConversationID), nil
		}
	}
	return r.db.turns, nil
}

func (r *fakeTurnRepo) Count(_ context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(context.Background(), specs...)
	return int64(len(all)), nil
}

type fakeUoW struct {
	unitofwork.UnitOfWork
	db *fakeDB
}

func (u *fakeUoW) ConversationRepository() contract.ConversationRepository {
	return &fakeConversationRepo{db: u.db}
}

func (u *fakeUoW) ConversationTurnRepository() contract.ConversationTurnRepository {
	return &fakeTurnRepo{db: u.db}
}

type fakeFactory struct{ db *fakeDB }

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return &fakeUoW{db: f.db} }

// echoRunner answers every message with "echo: <message>" and records the history it saw.
type echoRunner struct {
	seen [][]llm.Message
	err  error
}

func (r *echoRunner) Run(ctx context.Context, sess *session.Session, msg string) (*turn.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := sess.Acquire(ctx); err != nil {
		return nil, err
	}
	defer sess.Release()
	r.seen = append(r.seen, sess.History())
	sess.AppendLocked(llm.Message{Role: llm.RoleUser, Content: msg}, llm.Message{Role: llm.RoleAssistant, Content: "echo: " + msg})
	return &turn.Result{ConversationID: sess.ConversationID, Content: "echo: " + msg, AssistantTurns: sess.CompleteTurnLocked()}, nil
}

type chatFixture struct {
	db       *fakeDB
	sessions *memory.SessionStore
	runner   *echoRunner
	svc      IChatService
	org      uuid.UUID
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	store, err := memory.NewSessionStore(time.Minute, 100, logger.NewNopLogger())
	require.NoError(t, err)
	f := &chatFixture{
		db:       &fakeDB{conversations: make(map[uuid.UUID]*entity.Conversation)},
		sessions: store,
		runner:   &echoRunner{},
		org:      uuid.New(),
	}
	f.svc = NewChatService(&fakeFactory{db: f.db}, store, f.runner, nil, "be helpful", 10, logger.NewNopLogger())
	return f
}

func TestStartChat_CreatesSessionAndConversation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	id, err := f.svc.StartChat(ctx, f.org, entity.Sender{Id: "c1", Name: "Ana"})
	require.NoError(t, err)

	sess, err := f.sessions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{{Role: llm.RoleSystem, Content: "be helpful"}}, sess.History())

	conv := f.db.conversations[id]
	require.NotNil(t, conv)
	assert.Equal(t, constant.ConversationStatusActive, conv.Status)
	assert.Equal(t, "c1", conv.Sender.Id)
}

func TestStartChat_RemovesSessionWhenStoreFails(t *testing.T) {
	f := newChatFixture(t)
	f.db.createErr = errors.New("db down")

	_, err := f.svc.StartChat(context.Background(), f.org, entity.Sender{Id: "c1"})
	require.Error(t, err)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestContinueChat_UsesResidentSession(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	id, err := f.svc.StartChat(ctx, f.org, entity.Sender{Id: "c1"})
	require.NoError(t, err)

	res, err := f.svc.ContinueChat(ctx, f.org, id, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", res.Content)

	_, err = f.svc.ContinueChat(ctx, uuid.New(), id, "other tenant")
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
}

func TestContinueChat_RehydratesEvictedSession(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	id, err := f.svc.StartChat(ctx, f.org, entity.Sender{Id: "c1"})
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		f.db.turns = append(f.db.turns, &entity.ConversationTurn{
			Id: uuid.New(), ConversationId: id, UserMessage: "q", AssistantMessage: "a",
		})
	}
	f.sessions.Remove(id)

	_, err = f.svc.ContinueChat(ctx, f.org, id, "back again")
	require.NoError(t, err)

	seen := f.runner.seen[0]
	// system prompt plus the 5 most recent stored turns
	require.Len(t, seen, 11)
	assert.Equal(t, llm.RoleSystem, seen[0].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "q"}, seen[1])

	sess, err := f.sessions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 8, sess.AssistantTurns())
}

func TestContinueChat_EndedOrUnknown(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.svc.ContinueChat(ctx, f.org, uuid.New(), "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	id, err := f.svc.StartChat(ctx, f.org, entity.Sender{Id: "c1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.EndChat(ctx, f.org, id))

	_, err = f.svc.ContinueChat(ctx, f.org, id, "hi")
	assert.ErrorIs(t, err, ErrConversationEnded)
}

func TestEndChat_ClosesSession(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	id, err := f.svc.StartChat(ctx, f.org, entity.Sender{Id: "c1"})
	require.NoError(t, err)
	sess, err := f.sessions.Get(id)
	require.NoError(t, err)

	require.NoError(t, f.svc.EndChat(ctx, f.org, id))
	assert.True(t, sess.Closed())
	assert.Equal(t, constant.ConversationStatusEnded, f.db.conversations[id].Status)

	// Ending twice is harmless
	require.NoError(t, f.svc.EndChat(ctx, f.org, id))
	assert.ErrorIs(t, f.svc.EndChat(ctx, uuid.New(), id), ErrConversationNotFound)
}

func TestHistory(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	id, err := f.svc.StartChat(ctx, f.org, entity.Sender{Id: "c1"})
	require.NoError(t, err)

	store := NewConversationStore(&fakeFactory{db: f.db})
	require.NoError(t, store.AppendTurn(ctx, &entity.ConversationTurn{Id: uuid.New(), ConversationId: id, UserMessage: "hi", AssistantMessage: "hello"}))
	require.NoError(t, store.UpdateTitle(ctx, id, "Greeting"))

	h, err := f.svc.History(ctx, f.org, id)
	require.NoError(t, err)
	assert.Equal(t, "Greeting", h.Title)
	require.Len(t, h.Turns, 1)
	assert.Equal(t, "hello", h.Turns[0].AssistantMessage)
}

func TestAuthorizeConversation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	id, err := f.svc.StartChat(ctx, f.org, entity.Sender{Id: "c1"})
	require.NoError(t, err)
	f.db.turnScans = 0

	require.NoError(t, f.svc.AuthorizeConversation(ctx, f.org, id))
	assert.ErrorIs(t, f.svc.AuthorizeConversation(ctx, uuid.New(), id), ErrConversationNotFound)
	assert.ErrorIs(t, f.svc.AuthorizeConversation(ctx, f.org, uuid.New()), ErrConversationNotFound)
	assert.Zero(t, f.db.turnScans)
}
