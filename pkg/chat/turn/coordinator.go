// Package turn runs one user message through the model, tools included,
// under the session gate.
package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/metrics"
	"ai-support-be/pkg/chat/session"
	"ai-support-be/pkg/chat/tools"
	"ai-support-be/pkg/llm"

	"github.com/google/uuid"
)

var (
	ErrGeneration  = errors.New("generation failed")
	ErrGateTimeout = errors.New("another turn is still in progress")
)

// ToolLimitReached is returned to the model for calls past the per-turn round limit.
const ToolLimitReached = "Tool call limit reached for this reply. Answer with the information you already have."

type State int

const (
	StateIdle State = iota
	StateLocked
	StateGenerating
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateGenerating:
		return "generating"
	case StatePersisting:
		return "persisting"
	default:
		return "idle"
	}
}

// ConversationStore is the durable log written after each turn.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn *entity.ConversationTurn) error
	UpdateTitle(ctx context.Context, conversationID uuid.UUID, title string) error
}

type TitleGenerator interface {
	Title(ctx context.Context, firstMessage string) (string, error)
}

type ToolDispatcher interface {
	Definitions() []llm.ToolDefinition
	Dispatch(ctx context.Context, scope tools.Scope, call llm.ToolCall) string
}

// Runner starts detached work. tasks.Supervisor implements it.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type Config struct {
	HistoryLimit  int
	MaxToolRounds int
	GateWait      time.Duration
}

type Result struct {
	ConversationID uuid.UUID
	Content        string
	AssistantTurns int
}

type Coordinator struct {
	llm    llm.CompletionStream
	tools  ToolDispatcher
	sink   Sink
	store  ConversationStore
	titles TitleGenerator
	runner Runner
	cfg    Config
	logger logger.ILogger

	states sync.Map // uuid.UUID -> State
}

func NewCoordinator(
	model llm.CompletionStream,
	dispatcher ToolDispatcher,
	sink Sink,
	store ConversationStore,
	titles TitleGenerator,
	runner Runner,
	cfg Config,
	log logger.ILogger,
) *Coordinator {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Coordinator{
		llm:    model,
		tools:  dispatcher,
		sink:   sink,
		store:  store,
		titles: titles,
		runner: runner,
		cfg:    cfg,
		logger: log,
	}
}

func (c *Coordinator) State(conversationID uuid.UUID) State {
	if v, ok := c.states.Load(conversationID); ok {
		return v.(State)
	}
	return StateIdle
}

func (c *Coordinator) setState(id uuid.UUID, s State) {
	if s == StateIdle {
		c.states.Delete(id)
		return
	}
	c.states.Store(id, s)
}

// Run executes one turn. Tokens go to the sink as they arrive; the assembled reply is returned.
// On failure the session history is left as it was before the turn.
func (c *Coordinator) Run(ctx context.Context, sess *session.Session, userMessage string) (*Result, error) {
	convID := sess.ConversationID

	if err := c.acquire(ctx, sess); err != nil {
		metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	started := time.Now()
	c.setState(convID, StateLocked)

	held := true
	release := func() {
		if held {
			held = false
			c.setState(convID, StateIdle)
			sess.Release()
		}
	}
	defer release()

	snap := sess.Snapshot()
	sess.AppendLocked(llm.Message{Role: llm.RoleUser, Content: userMessage})
	sess.TrimLocked(c.cfg.HistoryLimit)

	c.setState(convID, StateGenerating)
	content, err := c.generate(ctx, sess)
	if err != nil {
		sess.RestoreLocked(snap)
		release()
		c.sink.Publish(convID, ErrorEvent(convID, "The assistant could not complete this reply. Please try again."))
		metrics.TurnsTotal.WithLabelValues("error").Inc()
		c.logger.Error("TURN", "Generation failed", map[string]interface{}{
			"conversation_id": convID.String(),
			"error":           err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	c.setState(convID, StatePersisting)
	sess.AppendLocked(llm.Message{Role: llm.RoleAssistant, Content: content})
	sess.TrimLocked(c.cfg.HistoryLimit)
	turns := sess.CompleteTurnLocked()
	release()

	c.sink.Publish(convID, MessageEvent(convID, content))
	c.persist(sess, userMessage, content, turns)

	metrics.TurnsTotal.WithLabelValues("ok").Inc()
	metrics.TurnDuration.Observe(time.Since(started).Seconds())
	return &Result{ConversationID: convID, Content: content, AssistantTurns: turns}, nil
}

func (c *Coordinator) acquire(ctx context.Context, sess *session.Session) error {
	gateCtx := ctx
	if c.cfg.GateWait > 0 {
		var cancel context.CancelFunc
		gateCtx, cancel = context.WithTimeout(ctx, c.cfg.GateWait)
		defer cancel()
	}

	err := sess.Acquire(gateCtx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrSessionClosed):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return ErrGateTimeout
	}
}

// generate streams rounds until the model answers without calling a tool.
func (c *Coordinator) generate(ctx context.Context, sess *session.Session) (string, error) {
	scope := tools.Scope{ConversationID: sess.ConversationID, OrganizationID: sess.OrganizationID}
	base := sess.History()
	definitions := c.tools.Definitions()

	var (
		exchange []llm.Message
		reply    strings.Builder
	)
	for round := 0; ; round++ {
		limited := round > c.cfg.MaxToolRounds
		advertised := definitions
		if limited {
			advertised = nil
		}

		text, calls, err := c.stream(ctx, sess.ConversationID, append(base, exchange...), advertised)
		reply.WriteString(text)
		if err != nil {
			return "", err
		}
		if len(calls) == 0 || limited {
			return reply.String(), nil
		}

		exchange = append(exchange, llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: calls})
		for _, call := range calls {
			out := ToolLimitReached
			if round < c.cfg.MaxToolRounds {
				out = c.tools.Dispatch(ctx, scope, call)
			}
			exchange = append(exchange, llm.Message{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
		if round == c.cfg.MaxToolRounds {
			c.logger.Warn("TURN", "Tool round limit reached", map[string]interface{}{
				"conversation_id": sess.ConversationID.String(),
				"rounds":          round,
			})
		}
	}
}

// stream forwards tokens from one completion and returns its text and tool calls.
func (c *Coordinator) stream(ctx context.Context, convID uuid.UUID, history []llm.Message, defs []llm.ToolDefinition) (string, []llm.ToolCall, error) {
	s, err := c.llm.CompletionStream(ctx, history, defs)
	if err != nil {
		return "", nil, err
	}
	defer s.Close()

	var (
		text  strings.Builder
		calls []llm.ToolCall
	)
	for {
		if err := ctx.Err(); err != nil {
			return text.String(), nil, err
		}
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return text.String(), calls, nil
		}
		if err != nil {
			return text.String(), nil, err
		}
		if ev.Token != "" {
			if ctx.Err() != nil {
				return text.String(), nil, ctx.Err()
			}
			text.WriteString(ev.Token)
			c.sink.Publish(convID, TokenEvent(convID, ev.Token))
			metrics.TokensStreamed.Inc()
		}
		if len(ev.ToolCalls) > 0 {
			calls = append(calls, ev.ToolCalls...)
		}
	}
}

func (c *Coordinator) persist(sess *session.Session, userMessage, reply string, assistantTurns int) {
	if c.runner == nil || c.store == nil {
		return
	}
	turn := &entity.ConversationTurn{
		Id:               uuid.New(),
		ConversationId:   sess.ConversationID,
		UserMessage:      userMessage,
		AssistantMessage: reply,
		Sender:           sess.Sender,
		CreatedAt:        time.Now(),
	}
	c.runner.Go("append_turn", func(ctx context.Context) error {
		return c.store.AppendTurn(ctx, turn)
	})

	if assistantTurns != 1 || c.titles == nil {
		return
	}
	convID := sess.ConversationID
	c.runner.Go("title", func(ctx context.Context) error {
		title, err := c.titles.Title(ctx, userMessage)
		if err != nil {
			return err
		}
		return c.store.UpdateTitle(ctx, convID, title)
	})
}
