package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/pkg/cryptox"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// LocalStrategy verifies an email/password pair against the identity
// directory. The identity must exist and be verified, and the password must
// match. A lookup miss and a password mismatch produce the same reason so
// callers cannot distinguish them.
type LocalStrategy struct {
	Store store.Store
}

func (s *LocalStrategy) Name() string { return NameLocal }

func (s *LocalStrategy) Attempt(ctx context.Context, c Credentials) (Outcome, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, c.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Reject(ReasonBadCredentials), nil
		}
		return Outcome{}, fmt.Errorf("strategy: directory lookup: %w", err)
	}

	if user.Status != domain.StatusVerified {
		return Reject(ReasonUnverified), nil
	}

	if err := cryptox.VerifyPassword(c.Password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return Reject(ReasonBadCredentials), nil
		}
		// Malformed stored hash. Treat as a mismatch but leave a trace.
		slogx.FromContext(ctx).Error("stored password hash unreadable", "user_id", user.ID, "err", err)
		return Reject(ReasonBadCredentials), nil
	}

	if err := s.Store.Users().TouchLastLogin(ctx, user.ID); err != nil {
		slogx.FromContext(ctx).Warn("failed to record last login", "user_id", user.ID, "err", err)
	}

	return Accept(user.ID), nil
}
