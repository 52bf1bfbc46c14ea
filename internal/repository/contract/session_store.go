package contract

import (
	"errors"

	"ai-support-be/internal/entity"
	"ai-support-be/pkg/chat/session"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore holds live sessions. Idle or over-capacity sessions are evicted
// and closed; durable conversation state is unaffected.
type SessionStore interface {
	Create(organizationID uuid.UUID, sender entity.Sender, systemPrompt string) *session.Session
	// Add stores sess unless a session with the same id is already resident,
	// in which case the resident one is returned with loaded=true.
	Add(sess *session.Session) (resident *session.Session, loaded bool)
	Get(id uuid.UUID) (*session.Session, error)
	Touch(id uuid.UUID)
	Remove(id uuid.UUID)
	Len() int
}
