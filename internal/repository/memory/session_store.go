package memory

import (
	"sync"
	"time"

	"ai-support-be/internal/entity"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/metrics"
	"ai-support-be/internal/repository/contract"
	"ai-support-be/pkg/chat/session"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/patrickmn/go-cache"
)

const (
	EvictTTL      = "ttl"
	EvictCapacity = "capacity"
	EvictEnded    = "ended"
)

// SessionStore keeps sessions in go-cache for the idle TTL and in an LRU for the
// capacity bound. Leaving either one removes the session from both.
type SessionStore struct {
	cache   *cache.Cache
	recent  *lru.Cache
	reasons sync.Map
	mu      sync.Mutex
	logger  logger.ILogger
}

var _ contract.SessionStore = (*SessionStore)(nil)

func NewSessionStore(ttl time.Duration, capacity int, log logger.ILogger) (*SessionStore, error) {
	purge := ttl / 3
	if purge < time.Second {
		purge = time.Second
	}
	s := &SessionStore{
		cache:  cache.New(ttl, purge),
		logger: log,
	}

	recent, err := lru.NewWithEvict(capacity, func(key, _ interface{}) {
		id := key.(uuid.UUID)
		// Also called after the cache entry is already gone
		if _, found := s.cache.Get(id.String()); !found {
			return
		}
		s.reasons.Store(id, EvictCapacity)
		s.cache.Delete(id.String())
	})
	if err != nil {
		return nil, err
	}
	s.recent = recent
	s.cache.OnEvicted(s.onEvicted)
	return s, nil
}

func (s *SessionStore) onEvicted(key string, value interface{}) {
	sess := value.(*session.Session)
	reason := EvictTTL
	if r, ok := s.reasons.LoadAndDelete(sess.ConversationID); ok {
		reason = r.(string)
	}
	s.recent.Remove(sess.ConversationID)
	sess.Close()

	metrics.SessionsEvicted.WithLabelValues(reason).Inc()
	metrics.ActiveSessions.Set(float64(s.recent.Len()))
	s.logger.Debug("SESSION", "Session evicted", map[string]interface{}{
		"conversation_id": key,
		"reason":          reason,
	})
}

func (s *SessionStore) Create(organizationID uuid.UUID, sender entity.Sender, systemPrompt string) *session.Session {
	sess, _ := s.Add(session.New(uuid.New(), organizationID, sender, systemPrompt))
	return sess
}

func (s *SessionStore) Add(sess *session.Session) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if x, found := s.cache.Get(sess.ConversationID.String()); found {
		return x.(*session.Session), true
	}
	s.cache.Set(sess.ConversationID.String(), sess, cache.DefaultExpiration)
	s.recent.Add(sess.ConversationID, struct{}{})
	metrics.ActiveSessions.Set(float64(s.recent.Len()))
	return sess, false
}

func (s *SessionStore) Get(id uuid.UUID) (*session.Session, error) {
	x, found := s.cache.Get(id.String())
	if !found {
		// Expired entries linger until the janitor runs
		if s.recent.Contains(id) {
			s.evict(id, EvictTTL)
		}
		return nil, contract.ErrSessionNotFound
	}
	s.recent.Get(id)
	return x.(*session.Session), nil
}

// Touch slides the idle deadline. A session closed underneath is dropped
// instead of re-armed, so the next Get misses and the caller rehydrates.
func (s *SessionStore) Touch(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.cache.Get(id.String())
	if !found {
		return
	}
	sess := x.(*session.Session)
	if sess.Closed() || !s.recent.Contains(id) {
		s.evictLocked(id, EvictEnded)
		return
	}
	sess.Touch()
	s.cache.Set(id.String(), sess, cache.DefaultExpiration)
	s.recent.Get(id)
}

func (s *SessionStore) Remove(id uuid.UUID) {
	s.evict(id, EvictEnded)
}

func (s *SessionStore) evict(id uuid.UUID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(id, reason)
}

func (s *SessionStore) evictLocked(id uuid.UUID, reason string) {
	s.reasons.Store(id, reason)
	s.cache.Delete(id.String())
	s.recent.Remove(id)
	// Delete is a no-op for unknown keys, which leaves the reason behind
	s.reasons.Delete(id)
}

func (s *SessionStore) Len() int {
	return s.recent.Len()
}
