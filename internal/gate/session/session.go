// Package session holds the per-token request state the gateway reads and
// writes: who is logged in, how far the second factor has progressed, where
// the user was originally headed, and any queued one-shot messages.
package session

import (
	"time"

	"github.com/hatchway/gatehouse/pkg/cryptox"
)

// SecondFactor tracks second-factor progress within one session.
//
// An empty value means no second factor is in flight: either the identity
// has no second factor configured, or nobody is logged in yet. Full trust
// from the primary factor alone is represented by the empty value.
type SecondFactor string

const (
	SecondFactorNone      SecondFactor = ""
	SecondFactorPending   SecondFactor = "pending"
	SecondFactorValidated SecondFactor = "validated"
)

// Flash is a one-shot human-readable message queued for the next page.
type Flash struct {
	Level   string `json:"level"` // "error" or "info"
	Message string `json:"message"`
}

// State is the serialized per-token payload held by the session store.
type State struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id,omitempty"`
	SecondFactor SecondFactor `json:"second_factor,omitempty"`
	AttemptedURL string       `json:"attempted_url,omitempty"`
	OAuthState   string       `json:"oauth_state,omitempty"`
	Flashes      []Flash      `json:"flashes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// NewState creates an anonymous session with a fresh random token.
func NewState(ttl time.Duration) (State, error) {
	id, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return State{}, err
	}

	now := time.Now().UTC()
	return State{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Authenticated reports whether a primary-factor login has happened.
func (s State) Authenticated() bool { return s.UserID != "" }

// PushFlash queues a one-shot message. The caller must persist the state.
func (s *State) PushFlash(level, message string) {
	s.Flashes = append(s.Flashes, Flash{Level: level, Message: message})
}

// TakeFlashes drains the queued messages. The caller must persist the state.
func (s *State) TakeFlashes() []Flash {
	out := s.Flashes
	s.Flashes = nil
	return out
}
