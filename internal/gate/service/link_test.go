package service

import (
	"context"
	"testing"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/strategy"

	"github.com/stretchr/testify/require"
)

func TestLinkAndResolve(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := seedUser(t, st, "linker@example.com", "hunter2hunter2", seedOpts{})
	svc := &LinkService{Store: st}

	profile := strategy.Profile{
		Provider:    domain.ProviderGitHub,
		ExternalID:  "gh-42",
		AccessToken: "tok",
	}

	_, found, err := svc.Resolve(ctx, profile)
	require.NoError(t, err)
	require.False(t, found)

	link, err := svc.Link(ctx, u.ID, profile)
	require.NoError(t, err)
	require.Equal(t, u.ID, link.UserID)

	owner, found, err := svc.Resolve(ctx, profile)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, u.ID, owner)

	// Relinking the same account to the same identity refreshes tokens.
	profile.AccessToken = "tok-2"
	_, err = svc.Link(ctx, u.ID, profile)
	require.NoError(t, err)

	links, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "tok-2", links[0].AccessToken)
}

func TestLinkRefusesForeignAccount(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	owner := seedUser(t, st, "owner@example.com", "hunter2hunter2", seedOpts{})
	intruder := seedUser(t, st, "intruder@example.com", "hunter2hunter2", seedOpts{})
	svc := &LinkService{Store: st}

	profile := strategy.Profile{Provider: domain.ProviderTwitter, ExternalID: "tw-7"}
	_, err := svc.Link(ctx, owner.ID, profile)
	require.NoError(t, err)

	_, err = svc.Link(ctx, intruder.ID, profile)
	require.ErrorIs(t, err, ErrLinkedElsewhere)

	// The original link is untouched.
	resolved, found, err := svc.Resolve(ctx, profile)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, owner.ID, resolved)
}

func TestUnlinkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := seedUser(t, st, "unlinker@example.com", "hunter2hunter2", seedOpts{})
	svc := &LinkService{Store: st}

	_, err := svc.Link(ctx, u.ID, strategy.Profile{Provider: domain.ProviderFacebook, ExternalID: "fb-1"})
	require.NoError(t, err)

	require.NoError(t, svc.Unlink(ctx, u.ID, domain.ProviderFacebook))
	require.NoError(t, svc.Unlink(ctx, u.ID, domain.ProviderFacebook))

	links, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestSecurityServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := seedUser(t, st, "secure@example.com", "hunter2hunter2", seedOpts{})
	svc := &SecurityService{Store: st, Issuer: "gatehouse"}

	resp, err := svc.Enroll(ctx, u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Secret)
	require.Contains(t, resp.OTPAuthURL, "otpauth://")

	// Enrolment alone never turns the second factor on.
	loaded, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, loaded.MFAActive())

	require.ErrorIs(t, svc.Activate(ctx, u.ID, "000000"), ErrInvalidTOTPCode)

	code := currentCode(t, resp.Secret)
	require.NoError(t, svc.Activate(ctx, u.ID, code))

	loaded, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, loaded.MFAActive())

	require.ErrorIs(t, svc.Disable(ctx, u.ID, "000000"), ErrInvalidTOTPCode)
	require.NoError(t, svc.Disable(ctx, u.ID, currentCode(t, resp.Secret)))

	loaded, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, loaded.MFAActive())
}
