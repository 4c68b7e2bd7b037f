package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/notify"
	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/internal/gate/session"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/internal/gate/store/drivers/sqlite"
	"github.com/hatchway/gatehouse/internal/gate/strategy"
	"github.com/hatchway/gatehouse/pkg/cryptox"
	"github.com/hatchway/gatehouse/pkg/idx"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "gatehouse-http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type testEnv struct {
	router   *Router
	store    store.Store
	sessions session.Store
	gateway  *Gateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sessions := session.NewMemoryStore()
	registry := strategy.NewRegistry(
		&strategy.LocalStrategy{Store: st},
		&strategy.TOTPStrategy{Store: st},
	)

	gateway := &Gateway{
		Sessions:   sessions,
		Store:      st,
		Cookie:     session.CookieOptions{Secure: false},
		SessionTTL: time.Hour,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &notify.LogSender{Logger: logger}
	router := NewRouter(gateway, "test", st, logger)
	router.Registry = registry
	router.AuthService = &service.AuthService{
		Registry:   registry,
		Sessions:   sessions,
		Store:      st,
		SessionTTL: time.Hour,
	}
	router.AccountService = &service.AccountService{
		Store:       st,
		Notify:      sender,
		Issuer:      "gatehouse",
		BaseURL:     "https://gate.example.com",
		TokenSecret: []byte("test-secret"),
		TokenTTL:    time.Hour,
	}
	router.LinkService = &service.LinkService{Store: st}
	router.SecurityService = &service.SecurityService{Store: st, Issuer: "gatehouse"}
	router.ApplyRoutes()

	return &testEnv{router: router, store: st, sessions: sessions, gateway: gateway}
}

type userOpts struct {
	role      domain.Role
	status    domain.Status
	mfaSecret string
	links     []domain.Provider
}

func (e *testEnv) seedUser(t *testing.T, email, password string, opts userOpts) domain.User {
	t.Helper()
	ctx := t.Context()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	status := opts.status
	if status == "" {
		status = domain.StatusVerified
	}
	role := opts.role
	if role == "" {
		role = domain.RoleUser
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Status:       status,
		Role:         role,
	}
	require.NoError(t, e.store.Users().CreateUser(ctx, u))

	if opts.mfaSecret != "" {
		require.NoError(t, e.store.Users().UpdateMFASecret(ctx, u.ID, opts.mfaSecret, cryptox.DefaultTOTPPeriod))
		require.NoError(t, e.store.Users().EnableMFA(ctx, u.ID))
	}
	for _, p := range opts.links {
		require.NoError(t, e.store.Links().UpsertLink(ctx, domain.Link{
			UserID:     u.ID,
			Provider:   p,
			ExternalID: string(p) + "-ext-" + u.ID,
		}))
	}

	loaded, err := e.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	return loaded
}

// do sends one request through the router, optionally carrying a session
// cookie, and returns the recorder.
func (e *testEnv) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// sessionCookie pulls the session cookie out of a response, or nil when the
// response did not set one. The last write wins: a login response carries
// both the freshly minted anonymous cookie and the rotated one.
func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge >= 0 {
			found = c
		}
	}
	return found
}

// cookieCleared reports whether the response instructed the client to drop
// the session cookie.
func cookieCleared(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

// login performs a primary-factor login and returns the rotated session
// cookie from the response.
func (e *testEnv) login(t *testing.T, email, password string, prior *http.Cookie) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/login", url.Values{
		"email":    {email},
		"password": {password},
	}, prior)

	return rec, sessionCookie(rec)
}

// state loads the session state behind a cookie straight from the store.
func (e *testEnv) state(t *testing.T, cookie *http.Cookie) session.State {
	t.Helper()
	require.NotNil(t, cookie)

	st, err := e.sessions.Get(t.Context(), cookie.Value)
	require.NoError(t, err)
	return st
}
