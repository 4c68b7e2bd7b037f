package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/session"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/internal/gate/strategy"
	"github.com/hatchway/gatehouse/pkg/cryptox"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

var (
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrUnverifiedAccount     = errors.New("unverified_account")
	ErrInvalidSecondFactor   = errors.New("invalid_second_factor")
	ErrNoPendingSecondFactor = errors.New("no_pending_second_factor")
)

// AuthService owns session-state transitions for login, second-factor
// completion, and logout. Strategies report verification outcomes; only
// this service applies them to the session.
type AuthService struct {
	Registry   *strategy.Registry
	Sessions   session.Store
	Store      store.Store
	SessionTTL time.Duration
}

// LoginResult describes the session produced by a successful primary-factor
// login.
type LoginResult struct {
	State                session.State
	User                 domain.User
	SecondFactorRequired bool
}

// Login runs the local strategy and, on acceptance, rotates the session and
// binds it to the identity. When the identity has a second factor active
// the new session starts in the pending state and full trust is withheld
// until a code is verified.
func (s *AuthService) Login(ctx context.Context, current session.State, email, password string) (LoginResult, error) {
	outcome, err := s.Registry.Attempt(ctx, strategy.NameLocal, strategy.Credentials{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("login attempt: %w", err)
	}

	if outcome.Kind == strategy.KindRejected {
		if outcome.Reason == strategy.ReasonUnverified {
			return LoginResult{}, ErrUnverifiedAccount
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByID(ctx, outcome.UserID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load identity after login: %w", err)
	}

	// Rotate the session token on privilege change (fixation guard). The
	// attempted URL survives the rotation so the post-login redirect works.
	fresh, err := session.NewState(s.SessionTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("rotate session: %w", err)
	}
	fresh.UserID = user.ID
	fresh.AttemptedURL = current.AttemptedURL

	result := LoginResult{User: user}
	if user.MFAActive() {
		fresh.SecondFactor = session.SecondFactorPending
		result.SecondFactorRequired = true
	}

	if err := s.Sessions.Put(ctx, fresh); err != nil {
		return LoginResult{}, fmt.Errorf("persist session: %w", err)
	}
	if current.ID != "" {
		if err := s.Sessions.Delete(ctx, current.ID); err != nil {
			slogx.FromContext(ctx).Warn("failed to drop pre-login session", "err", err)
		}
	}

	// The token itself never reaches the log, only its fingerprint.
	slogx.FromContext(ctx).Info("session rotated after login",
		"user_id", user.ID,
		"sid", cryptox.FingerprintToken(fresh.ID),
	)

	result.State = fresh
	return result, nil
}

// CompleteSecondFactor verifies a one-time code for a session in the
// pending state. On success the session moves to validated; on a bad code
// the session is left untouched.
func (s *AuthService) CompleteSecondFactor(ctx context.Context, st session.State, code string) (session.State, error) {
	if !st.Authenticated() || st.SecondFactor != session.SecondFactorPending {
		return st, ErrNoPendingSecondFactor
	}

	outcome, err := s.Registry.Attempt(ctx, strategy.NameTOTP, strategy.Credentials{
		UserID: st.UserID,
		Code:   code,
	})
	if err != nil {
		return st, fmt.Errorf("second factor attempt: %w", err)
	}

	if outcome.Kind != strategy.KindAccepted {
		return st, ErrInvalidSecondFactor
	}

	st.SecondFactor = session.SecondFactorValidated
	if err := s.Sessions.Put(ctx, st); err != nil {
		return st, fmt.Errorf("persist session: %w", err)
	}
	return st, nil
}

// Logout discards the session entirely.
func (s *AuthService) Logout(ctx context.Context, st session.State) error {
	if st.ID == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, st.ID)
}
