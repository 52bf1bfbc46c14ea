package memory

import (
	"context"
	"testing"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/pkg/chat/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ttl time.Duration, capacity int) *SessionStore {
	t.Helper()
	s, err := NewSessionStore(ttl, capacity, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

func TestSessionStore_CreateGetRemove(t *testing.T) {
	s := newStore(t, time.Minute, 10)
	sess := s.Create(uuid.New(), entity.Sender{Id: "c"}, "sys")

	got, err := s.Get(sess.ConversationID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, s.Len())

	s.Remove(sess.ConversationID)
	_, err = s.Get(sess.ConversationID)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
	assert.True(t, sess.Closed())
	assert.Equal(t, 0, s.Len())
}

func TestSessionStore_AddKeepsResident(t *testing.T) {
	s := newStore(t, time.Minute, 10)
	id := uuid.New()
	first, loaded := s.Add(session.New(id, uuid.New(), entity.Sender{}, ""))
	assert.False(t, loaded)

	second, loaded := s.Add(session.New(id, uuid.New(), entity.Sender{}, ""))
	assert.True(t, loaded)
	assert.Same(t, first, second)
}

func TestSessionStore_IdleExpiry(t *testing.T) {
	s := newStore(t, 50*time.Millisecond, 10)
	sess := s.Create(uuid.New(), entity.Sender{}, "")

	time.Sleep(80 * time.Millisecond)

	_, err := s.Get(sess.ConversationID)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
	assert.True(t, sess.Closed())
	assert.ErrorIs(t, sess.Acquire(context.Background()), session.ErrSessionClosed)
}

func TestSessionStore_TouchSlidesDeadline(t *testing.T) {
	s := newStore(t, 100*time.Millisecond, 10)
	sess := s.Create(uuid.New(), entity.Sender{}, "")

	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		s.Touch(sess.ConversationID)
	}

	_, err := s.Get(sess.ConversationID)
	assert.NoError(t, err)
}

func TestSessionStore_CapacityEvictsLeastRecent(t *testing.T) {
	s := newStore(t, time.Minute, 2)
	a := s.Create(uuid.New(), entity.Sender{}, "")
	b := s.Create(uuid.New(), entity.Sender{}, "")

	_, err := s.Get(a.ConversationID)
	require.NoError(t, err)

	c := s.Create(uuid.New(), entity.Sender{}, "")

	_, err = s.Get(b.ConversationID)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
	assert.True(t, b.Closed())

	for _, sess := range []*session.Session{a, c} {
		_, err := s.Get(sess.ConversationID)
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())
}

func TestSessionStore_TouchDropsClosedSession(t *testing.T) {
	s := newStore(t, time.Minute, 10)
	sess := s.Create(uuid.New(), entity.Sender{}, "")
	sess.Close()

	s.Touch(sess.ConversationID)

	_, err := s.Get(sess.ConversationID)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
	assert.Zero(t, s.Len())
}

func TestSessionStore_TouchRacingRemove(t *testing.T) {
	s := newStore(t, time.Minute, 10)

	for i := 0; i < 50; i++ {
		sess := s.Create(uuid.New(), entity.Sender{}, "")
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.Touch(sess.ConversationID)
		}()
		s.Remove(sess.ConversationID)
		<-done

		_, err := s.Get(sess.ConversationID)
		require.ErrorIs(t, err, contract.ErrSessionNotFound)
		require.True(t, sess.Closed())
	}
	assert.Zero(t, s.Len())
}
