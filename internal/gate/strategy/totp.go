package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/pkg/cryptox"
)

// TOTPStrategy verifies a time-based one-time code for an already
// identified user. It fails closed: a user without an active second factor
// can never pass it.
type TOTPStrategy struct {
	Store store.Store
	Now   func() time.Time // defaults to time.Now
}

func (s *TOTPStrategy) Name() string { return NameTOTP }

func (s *TOTPStrategy) Attempt(ctx context.Context, c Credentials) (Outcome, error) {
	user, err := s.Store.Users().GetUserByID(ctx, c.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Reject(ReasonBadCode), nil
		}
		return Outcome{}, fmt.Errorf("strategy: directory lookup: %w", err)
	}

	if !user.MFAActive() {
		return Reject(ReasonBadCode), nil
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	if !cryptox.VerifyTOTP(*user.MFASecret, user.MFAPeriod, c.Code, now) {
		return Reject(ReasonBadCode), nil
	}

	return Accept(user.ID), nil
}
