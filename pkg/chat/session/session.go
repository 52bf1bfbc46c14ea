// Package session holds the in-memory state of one live conversation.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/pkg/llm"

	"github.com/google/uuid"
)

var ErrSessionClosed = errors.New("session closed")

// Session is safe for concurrent use. The gate admits one turn at a time;
// methods with the Locked suffix must only be called while holding it.
type Session struct {
	ConversationID uuid.UUID
	OrganizationID uuid.UUID
	Sender         entity.Sender

	gate      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu             sync.RWMutex
	history        []llm.Message
	lastAccess     time.Time
	assistantTurns int
}

func New(conversationID, organizationID uuid.UUID, sender entity.Sender, systemPrompt string) *Session {
	s := &Session{
		ConversationID: conversationID,
		OrganizationID: organizationID,
		Sender:         sender,
		gate:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		lastAccess:     time.Now(),
	}
	if systemPrompt != "" {
		s.history = append(s.history, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	return s
}

// Acquire blocks until the gate is free, ctx is done or the session is closed.
func (s *Session) Acquire(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) Release() {
	select {
	case <-s.gate:
	default:
	}
}

// Close fails pending and future Acquire calls and drops the history.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.history = nil
		s.mu.Unlock()
	})
}

func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// History returns a copy.
func (s *Session) History() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]llm.Message(nil), s.history...)
}

func (s *Session) AppendLocked(msgs ...llm.Message) {
	s.mu.Lock()
	s.history = append(s.history, msgs...)
	s.mu.Unlock()
}

// TrimLocked keeps at most n messages: the leading system prompt, if any, and
// the most recent ones.
func (s *Session) TrimLocked(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = trim(s.history, n)
}

func trim(history []llm.Message, n int) []llm.Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	if n > 1 && history[0].Role == llm.RoleSystem {
		out := make([]llm.Message, 0, n)
		out = append(out, history[0])
		return append(out, history[len(history)-(n-1):]...)
	}
	return append([]llm.Message(nil), history[len(history)-n:]...)
}

type Snapshot struct {
	history        []llm.Message
	assistantTurns int
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		history:        append([]llm.Message(nil), s.history...),
		assistantTurns: s.assistantTurns,
	}
}

func (s *Session) RestoreLocked(snap Snapshot) {
	s.mu.Lock()
	s.history = snap.history
	s.assistantTurns = snap.assistantTurns
	s.mu.Unlock()
}

// SeedLocked appends turns loaded from durable storage.
func (s *Session) SeedLocked(history []llm.Message, assistantTurns int) {
	s.mu.Lock()
	s.history = append(s.history, history...)
	s.assistantTurns = assistantTurns
	s.mu.Unlock()
}

// CompleteTurnLocked counts one finished assistant reply and returns the new total.
func (s *Session) CompleteTurnLocked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistantTurns++
	return s.assistantTurns
}

func (s *Session) AssistantTurns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assistantTurns
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}
