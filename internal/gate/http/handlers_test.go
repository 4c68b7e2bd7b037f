package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/session"
	"github.com/hatchway/gatehouse/pkg/cryptox"

	"github.com/stretchr/testify/require"
)

func TestSignupThenVerifyThenLogin(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(t, http.MethodPost, "/signup", url.Values{
		"email":    {"joiner@example.com"},
		"password": {"longenoughpassword"},
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)

	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &body))
	require.Equal(t, "unverified", body.Status)

	// Login is refused until the address is verified.
	rec, cookie := env.login(t, "joiner@example.com", "longenoughpassword", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
	require.NotEmpty(t, env.state(t, cookie).Flashes)

	require.NoError(t, env.store.Users().SetStatus(t.Context(), body.ID, domain.StatusVerified))

	rec, _ = env.login(t, "joiner@example.com", "longenoughpassword", nil)
	require.Equal(t, "/api", rec.Header().Get("Location"))
}

func TestSignupRejectsDuplicatesAndBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "taken@example.com", "hunter2hunter2", userOpts{})

	dup := env.do(t, http.MethodPost, "/signup", url.Values{
		"email":    {"taken@example.com"},
		"password": {"longenoughpassword"},
	}, nil)
	require.Equal(t, http.StatusConflict, dup.Code)

	weak := env.do(t, http.MethodPost, "/signup", url.Values{
		"email":    {"weak@example.com"},
		"password": {"short"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, weak.Code)

	malformed := env.do(t, http.MethodPost, "/signup", url.Values{
		"email":    {"not an address"},
		"password": {"longenoughpassword"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestVerifyEmailEndpoint(t *testing.T) {
	env := newTestEnv(t)

	bad := env.do(t, http.MethodGet, "/verify-email?token=garbage", nil, nil)
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestAccountPageShowsLinksAndFlashes(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "me@example.com", "hunter2hunter2", userOpts{
		links: []domain.Provider{domain.ProviderGitHub, domain.ProviderGoogle},
	})

	_, cookie := env.login(t, "me@example.com", "hunter2hunter2", nil)

	rec := env.do(t, http.MethodGet, "/account", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Email string `json:"email"`
		Links []struct {
			Provider string `json:"provider"`
		} `json:"links"`
		TwoFactorEnabled bool `json:"two_factor_enabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, "me@example.com", page.Email)
	require.Len(t, page.Links, 2)
	require.False(t, page.TwoFactorEnabled)
}

func TestUnlinkEndpoint(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "cut@example.com", "hunter2hunter2", userOpts{
		links: []domain.Provider{domain.ProviderTwitter},
	})

	_, cookie := env.login(t, "cut@example.com", "hunter2hunter2", nil)

	rec := env.do(t, http.MethodPost, "/account/unlink/twitter", nil, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/account", rec.Header().Get("Location"))

	links, err := env.store.Links().ListLinksByUser(t.Context(), u.ID)
	require.NoError(t, err)
	require.Empty(t, links)

	missing := env.do(t, http.MethodPost, "/account/unlink/nonsense", nil, cookie)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "rotate@example.com", "hunter2hunter2", userOpts{})

	_, cookie := env.login(t, "rotate@example.com", "hunter2hunter2", nil)

	wrong := env.do(t, http.MethodPost, "/account/password", url.Values{
		"current_password": {"not-the-password"},
		"new_password":     {"replacementpassword"},
	}, cookie)
	require.Equal(t, http.StatusBadRequest, wrong.Code)

	ok := env.do(t, http.MethodPost, "/account/password", url.Values{
		"current_password": {"hunter2hunter2"},
		"new_password":     {"replacementpassword"},
	}, cookie)
	require.Equal(t, http.StatusOK, ok.Code)

	// The old password is dead, the new one logs in.
	rec, _ := env.login(t, "rotate@example.com", "hunter2hunter2", nil)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	rec, _ = env.login(t, "rotate@example.com", "replacementpassword", nil)
	require.Equal(t, "/api", rec.Header().Get("Location"))
}

func TestMFAEnrolmentOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "enrol@example.com", "hunter2hunter2", userOpts{})

	_, cookie := env.login(t, "enrol@example.com", "hunter2hunter2", nil)

	enrolled := env.do(t, http.MethodPost, "/account/mfa/enroll", nil, cookie)
	require.Equal(t, http.StatusOK, enrolled.Code)

	var material struct {
		Secret     string `json:"secret"`
		OTPAuthURL string `json:"otpauth_url"`
	}
	require.NoError(t, json.Unmarshal(enrolled.Body.Bytes(), &material))
	require.NotEmpty(t, material.Secret)

	bad := env.do(t, http.MethodPost, "/account/mfa/activate", url.Values{"code": {"000000"}}, cookie)
	require.Equal(t, http.StatusBadRequest, bad.Code)

	code, err := cryptox.GenerateTOTPCode(material.Secret, cryptox.DefaultTOTPPeriod, time.Now())
	require.NoError(t, err)
	good := env.do(t, http.MethodPost, "/account/mfa/activate", url.Values{"code": {code}}, cookie)
	require.Equal(t, http.StatusOK, good.Code)

	// This session predates activation and keeps its full trust; the next
	// login starts pending.
	still := env.do(t, http.MethodGet, "/api", nil, cookie)
	require.Equal(t, http.StatusOK, still.Code)

	rec, _ := env.login(t, "enrol@example.com", "hunter2hunter2", nil)
	require.Equal(t, "/verify", rec.Header().Get("Location"))
}

func TestOAuthStartUnknownOrUnconfigured(t *testing.T) {
	env := newTestEnv(t)

	// No providers are configured in the test registry, so even known
	// names answer not found.
	rec := env.do(t, http.MethodGet, "/auth/github", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/doesnotexist", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthCallbackRejectsStateMismatch(t *testing.T) {
	env := newTestEnv(t)

	// Reach the callback with a session that never started a handshake.
	st, err := session.NewState(time.Hour)
	require.NoError(t, err)
	require.NoError(t, env.sessions.Put(t.Context(), st))
	cookie := &http.Cookie{Name: session.CookieName, Value: st.ID}

	rec := env.do(t, http.MethodGet, "/auth/github/callback?state=forged&code=x", nil, cookie)
	// The registry has no github strategy configured, so the route answers
	// not found before any state handling.
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAccountManagement(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root@example.com", "hunter2hunter2", userOpts{role: domain.RoleAdmin})

	_, cookie := env.login(t, "root@example.com", "hunter2hunter2", nil)

	created := env.do(t, http.MethodPost, "/accounts", url.Values{
		"email":    {"minted@example.com"},
		"password": {"longenoughpassword"},
		"role":     {"admin"},
	}, cookie)
	require.Equal(t, http.StatusCreated, created.Code)

	badRole := env.do(t, http.MethodPost, "/accounts", url.Values{
		"email":    {"other@example.com"},
		"password": {"longenoughpassword"},
		"role":     {"superuser"},
	}, cookie)
	require.Equal(t, http.StatusBadRequest, badRole.Code)

	list := env.do(t, http.MethodGet, "/accounts", nil, cookie)
	require.Equal(t, http.StatusOK, list.Code)
	var page struct {
		Accounts []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &page))
	require.Len(t, page.Accounts, 2)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	live := env.do(t, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, live.Code)

	ready := env.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, ready.Code)

	require.NoError(t, env.store.Close())
	down := env.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, down.Code)
}
