package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/internal/gate/strategy"
)

// ErrLinkedElsewhere reports that a provider account is already linked to a
// different identity.
var ErrLinkedElsewhere = errors.New("provider account linked to another identity")

// LinkService applies linking decisions produced by provider strategies. A
// deferred handshake outcome never grants access by itself; these
// operations are the explicit create/link/reject step.
type LinkService struct {
	Store store.Store
}

// Resolve returns the identity id already holding this provider account,
// if any. This is the "pre-existing match" half of a linking decision.
func (s *LinkService) Resolve(ctx context.Context, p strategy.Profile) (string, bool, error) {
	link, err := s.Store.Links().GetLinkByExternalID(ctx, p.Provider, p.ExternalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve provider link: %w", err)
	}
	return link.UserID, true, nil
}

// Link attaches the provider account to the identity, replacing any
// previous link for the same provider. Refuses when another identity
// already owns the provider account.
func (s *LinkService) Link(ctx context.Context, userID string, p strategy.Profile) (domain.Link, error) {
	owner, found, err := s.Resolve(ctx, p)
	if err != nil {
		return domain.Link{}, err
	}
	if found && owner != userID {
		return domain.Link{}, ErrLinkedElsewhere
	}

	link := domain.Link{
		UserID:       userID,
		Provider:     p.Provider,
		ExternalID:   p.ExternalID,
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	if err := s.Store.Links().UpsertLink(ctx, link); err != nil {
		return domain.Link{}, fmt.Errorf("persist provider link: %w", err)
	}
	return link, nil
}

// Unlink removes the identity's link for a provider. Removing an absent
// link is a no-op.
func (s *LinkService) Unlink(ctx context.Context, userID string, provider domain.Provider) error {
	return s.Store.Links().DeleteLink(ctx, userID, provider)
}

// List returns the identity's provider links.
func (s *LinkService) List(ctx context.Context, userID string) ([]domain.Link, error) {
	return s.Store.Links().ListLinksByUser(ctx, userID)
}
