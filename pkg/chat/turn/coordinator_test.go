package turn

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/pkg/chat/session"
	"ai-support-be/pkg/chat/tools"
	"ai-support-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// round is one scripted completion: tokens, then optional tool calls, then err or EOF.
type round struct {
	tokens []string
	calls  []llm.ToolCall
	err    error
}

type scriptedStream struct {
	events  []llm.StreamEvent
	err     error
	onRecv  func()
	onClose func()
}

func (s *scriptedStream) Recv() (llm.StreamEvent, error) {
	if s.onRecv != nil {
		s.onRecv()
	}
	if len(s.events) == 0 {
		if s.err != nil {
			return llm.StreamEvent{}, s.err
		}
		return llm.StreamEvent{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *scriptedStream) Close() error {
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
	return nil
}

type scriptedModel struct {
	mu       sync.Mutex
	rounds   []round
	requests [][]llm.Message
	tools    [][]llm.ToolDefinition
	onRecv   func()

	// open streams right now, and the most seen at once
	inFlight    int
	maxInFlight int
}

func (m *scriptedModel) peakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func (m *scriptedModel) CompletionStream(_ context.Context, history []llm.Message, defs []llm.ToolDefinition, _ ...llm.Option) (llm.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, append([]llm.Message(nil), history...))
	m.tools = append(m.tools, defs)
	if len(m.rounds) == 0 {
		return nil, errors.New("no scripted round left")
	}
	r := m.rounds[0]
	m.rounds = m.rounds[1:]

	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	s := &scriptedStream{err: r.err, onRecv: m.onRecv, onClose: func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}}
	for _, tok := range r.tokens {
		s.events = append(s.events, llm.StreamEvent{Token: tok})
	}
	if len(r.calls) > 0 {
		s.events = append(s.events, llm.StreamEvent{ToolCalls: r.calls})
	}
	return s, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ uuid.UUID, ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		if ev.Type == EventToken {
			out = append(out, ev.Token)
		}
	}
	return out
}

func (s *recordingSink) last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type memConversations struct {
	mu     sync.Mutex
	turns  []*entity.ConversationTurn
	titles map[uuid.UUID]string
}

func (m *memConversations) AppendTurn(_ context.Context, t *entity.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return nil
}

func (m *memConversations) UpdateTitle(_ context.Context, id uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.titles == nil {
		m.titles = make(map[uuid.UUID]string)
	}
	m.titles[id] = title
	return nil
}

type titleFunc func(ctx context.Context, msg string) (string, error)

func (f titleFunc) Title(ctx context.Context, msg string) (string, error) { return f(ctx, msg) }

// inlineRunner runs tasks synchronously so tests can assert on their effects.
type inlineRunner struct {
	mu    sync.Mutex
	names []string
}

func (r *inlineRunner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	_ = fn(context.Background())
}

func (r *inlineRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type fakeDispatcher struct {
	calls []llm.ToolCall
	reply string
}

func (d *fakeDispatcher) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{{Name: tools.NameSearchKnowledgeBase}}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ tools.Scope, call llm.ToolCall) string {
	d.calls = append(d.calls, call)
	return d.reply
}

type fixture struct {
	model      *scriptedModel
	sink       *recordingSink
	store      *memConversations
	runner     *inlineRunner
	dispatcher *fakeDispatcher
	coord      *Coordinator
	sess       *session.Session
}

func newFixture(cfg Config, rounds ...round) *fixture {
	f := &fixture{
		model:      &scriptedModel{rounds: rounds},
		sink:       &recordingSink{},
		store:      &memConversations{},
		runner:     &inlineRunner{},
		dispatcher: &fakeDispatcher{reply: "[1] (faq.md) Refunds are free within 30 days."},
		sess:       session.New(uuid.New(), uuid.New(), entity.Sender{Id: "c1"}, "You are a support agent."),
	}
	titles := titleFunc(func(_ context.Context, msg string) (string, error) { return "Refund policy", nil })
	f.coord = NewCoordinator(f.model, f.dispatcher, f.sink, f.store, titles, f.runner, cfg, logger.NewNopLogger())
	return f
}

func TestRun_StreamsTokensInOrder(t *testing.T) {
	f := newFixture(Config{HistoryLimit: 100}, round{tokens: []string{"Refunds", " are", " free."}})

	res, err := f.coord.Run(context.Background(), f.sess, "What's your refund policy?")
	require.NoError(t, err)

	assert.Equal(t, "Refunds are free.", res.Content)
	assert.Equal(t, []string{"Refunds", " are", " free."}, f.sink.tokens())
	assert.Equal(t, MessageEvent(f.sess.ConversationID, "Refunds are free."), f.sink.last())

	history := f.sess.History()
	require.Len(t, history, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What's your refund policy?"}, history[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Refunds are free."}, history[2])

	require.Len(t, f.store.turns, 1)
	assert.Equal(t, "Refunds are free.", f.store.turns[0].AssistantMessage)
	assert.Equal(t, "What's your refund policy?", f.store.turns[0].UserMessage)
	assert.Equal(t, "c1", f.store.turns[0].Sender.Id)
	assert.Equal(t, "Refund policy", f.store.titles[f.sess.ConversationID])
	assert.Equal(t, StateIdle, f.coord.State(f.sess.ConversationID))
}

func TestRun_TitleOnlyOnFirstTurn(t *testing.T) {
	f := newFixture(Config{}, round{tokens: []string{"a"}}, round{tokens: []string{"b"}})

	_, err := f.coord.Run(context.Background(), f.sess, "one")
	require.NoError(t, err)
	_, err = f.coord.Run(context.Background(), f.sess, "two")
	require.NoError(t, err)

	assert.Equal(t, []string{"append_turn", "title", "append_turn"}, f.runner.ran())
	assert.Equal(t, 2, f.sess.AssistantTurns())
}

func TestRun_ToolCallRoundTrip(t *testing.T) {
	call := llm.ToolCall{ID: "call_1", Name: tools.NameSearchKnowledgeBase, Arguments: `{"query":"refund"}`}
	f := newFixture(Config{},
		round{calls: []llm.ToolCall{call}},
		round{tokens: []string{"Refunds are free", " within 30 days."}},
	)

	res, err := f.coord.Run(context.Background(), f.sess, "Refunds?")
	require.NoError(t, err)
	assert.Equal(t, "Refunds are free within 30 days.", res.Content)
	assert.Equal(t, []llm.ToolCall{call}, f.dispatcher.calls)

	require.Len(t, f.model.requests, 2)
	second := f.model.requests[1]
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Equal(t, []llm.ToolCall{call}, second[2].ToolCalls)
	assert.Equal(t, llm.Message{
		Role:       llm.RoleTool,
		Content:    "[1] (faq.md) Refunds are free within 30 days.",
		ToolCallID: "call_1",
		Name:       tools.NameSearchKnowledgeBase,
	}, second[3])

	// The tool exchange is not kept in session history
	history := f.sess.History()
	require.Len(t, history, 3)
	assert.Equal(t, "Refunds are free within 30 days.", history[2].Content)
}

func TestRun_ToolRoundLimit(t *testing.T) {
	call := llm.ToolCall{ID: "c", Name: tools.NameSearchKnowledgeBase, Arguments: `{"query":"x"}`}
	rounds := []round{
		{calls: []llm.ToolCall{call}},
		{calls: []llm.ToolCall{call}},
		{calls: []llm.ToolCall{call}},
		{tokens: []string{"Sorry, I could not find it."}, calls: []llm.ToolCall{call}},
	}
	f := newFixture(Config{MaxToolRounds: 2}, rounds...)

	res, err := f.coord.Run(context.Background(), f.sess, "Find it")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I could not find it.", res.Content)
	assert.Len(t, f.dispatcher.calls, 2)

	require.Len(t, f.model.requests, 4)
	third := f.model.requests[3]
	assert.Equal(t, ToolLimitReached, third[len(third)-1].Content)
	assert.Nil(t, f.model.tools[3])
}

func TestRun_GenerationErrorRollsBack(t *testing.T) {
	f := newFixture(Config{}, round{tokens: []string{"Partial"}, err: errors.New("upstream reset")})
	before := f.sess.History()

	_, err := f.coord.Run(context.Background(), f.sess, "Hello?")
	require.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "upstream reset")

	assert.Equal(t, before, f.sess.History())
	assert.Equal(t, 0, f.sess.AssistantTurns())
	assert.Equal(t, EventError, f.sink.last().Type)
	assert.Empty(t, f.store.turns)

	// Gate is released
	require.NoError(t, f.sess.Acquire(context.Background()))
	f.sess.Release()
}

func TestRun_GateTimeout(t *testing.T) {
	f := newFixture(Config{GateWait: 20 * time.Millisecond}, round{tokens: []string{"x"}})
	require.NoError(t, f.sess.Acquire(context.Background()))
	defer f.sess.Release()

	_, err := f.coord.Run(context.Background(), f.sess, "hi")
	assert.ErrorIs(t, err, ErrGateTimeout)
	assert.Empty(t, f.model.requests)
}

func TestRun_ClosedSession(t *testing.T) {
	f := newFixture(Config{}, round{tokens: []string{"x"}})
	f.sess.Close()

	_, err := f.coord.Run(context.Background(), f.sess, "hi")
	assert.ErrorIs(t, err, session.ErrSessionClosed)
}

func TestRun_SerializesTurnsOnOneSession(t *testing.T) {
	f := newFixture(Config{}, round{tokens: []string{"first"}}, round{tokens: []string{"second"}})
	// Widen the generating window so an unguarded second turn would overlap it
	f.model.onRecv = func() { time.Sleep(5 * time.Millisecond) }

	var wg sync.WaitGroup
	for _, msg := range []string{"a", "b"} {
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			_, err := f.coord.Run(context.Background(), f.sess, msg)
			assert.NoError(t, err)
		}(msg)
	}
	wg.Wait()

	assert.Equal(t, 1, f.model.peakInFlight())
	assert.Len(t, f.runner.ran(), 3)

	history := f.sess.History()
	require.Len(t, history, 5)
	// Each reply directly follows its own question
	assert.Equal(t, llm.RoleUser, history[1].Role)
	assert.Equal(t, "first", history[2].Content)
	assert.Equal(t, llm.RoleUser, history[3].Role)
	assert.Equal(t, "second", history[4].Content)
}

func TestRun_NoTokensAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(Config{}, round{tokens: []string{"one", "two", "three"}})

	recvs := 0
	f.model.onRecv = func() {
		recvs++
		if recvs == 2 {
			cancel()
		}
	}

	_, err := f.coord.Run(ctx, f.sess, "hi")
	require.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"one"}, f.sink.tokens())
}

func TestRun_TrimsHistory(t *testing.T) {
	rounds := make([]round, 0, 5)
	for i := 0; i < 5; i++ {
		rounds = append(rounds, round{tokens: []string{"ok"}})
	}
	f := newFixture(Config{HistoryLimit: 4}, rounds...)

	for i := 0; i < 5; i++ {
		_, err := f.coord.Run(context.Background(), f.sess, "q")
		require.NoError(t, err)
	}
	history := f.sess.History()
	require.Len(t, history, 4)
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "ok"}, history[3])
}
