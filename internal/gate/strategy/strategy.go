// Package strategy implements credential verification strategies behind one
// uniform contract. A strategy inspects submitted credentials and reports an
// Outcome; it never mutates session state. Applying an outcome to a session
// is the gateway's job.
package strategy

import (
	"context"
	"fmt"

	"github.com/hatchway/gatehouse/internal/gate/domain"
)

// Strategy names for the non-provider strategies. Provider strategies are
// named after their provider.
const (
	NameLocal = "local"
	NameTOTP  = "totp"
)

// Rejection reasons. These are internal tags; user-facing messages are
// decided by the caller and stay generic.
const (
	ReasonBadCredentials = "bad_credentials"
	ReasonUnverified     = "unverified"
	ReasonBadCode        = "bad_code"
)

type OutcomeKind int

const (
	// KindAccepted grants the identity. Only the local and totp strategies
	// ever produce it.
	KindAccepted OutcomeKind = iota
	// KindRejected denies with an internal reason tag.
	KindRejected
	// KindDeferred hands back provider profile data without granting
	// access. Linking is a separate, explicit step by the caller.
	KindDeferred
)

// Outcome is the result of one credential submission.
type Outcome struct {
	Kind    OutcomeKind
	UserID  string   // set when Kind == KindAccepted
	Reason  string   // set when Kind == KindRejected
	Profile *Profile // set when Kind == KindDeferred
}

func Accept(userID string) Outcome { return Outcome{Kind: KindAccepted, UserID: userID} }
func Reject(reason string) Outcome { return Outcome{Kind: KindRejected, Reason: reason} }
func Defer(p Profile) Outcome      { return Outcome{Kind: KindDeferred, Profile: &p} }

// Profile carries the identity attributes a provider strategy obtained from
// a successful external handshake. It is ephemeral and never persisted as-is.
type Profile struct {
	Provider     domain.Provider
	ExternalID   string
	Email        string
	Name         string
	AccessToken  string
	RefreshToken string
}

// Credentials is the union of inputs the strategies understand. Each
// strategy reads only the fields it needs.
type Credentials struct {
	Email    string // local
	Password string // local
	UserID   string // totp
	Code     string // totp
	AuthCode string // provider callback code
}

// Strategy verifies one kind of credential submission.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, c Credentials) (Outcome, error)
}

// Registry holds the configured strategies and dispatches submissions.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry registers strategies by name. Names must be unique.
func NewRegistry(list ...Strategy) *Registry {
	m := make(map[string]Strategy, len(list))
	for _, s := range list {
		m[s.Name()] = s
	}
	return &Registry{strategies: m}
}

// Attempt dispatches a credential submission to the named strategy. An
// error means a collaborator failure, not a rejection.
func (r *Registry) Attempt(ctx context.Context, name string, c Credentials) (Outcome, error) {
	s, ok := r.strategies[name]
	if !ok {
		return Outcome{}, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return s.Attempt(ctx, c)
}

// Provider returns the OAuth strategy for a provider, if configured. Used
// by the handshake routes which need the authorization URL phase.
func (r *Registry) Provider(p domain.Provider) (*OAuthStrategy, bool) {
	s, ok := r.strategies[p.String()]
	if !ok {
		return nil, false
	}
	os, ok := s.(*OAuthStrategy)
	return os, ok
}
