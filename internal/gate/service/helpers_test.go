package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/session"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/internal/gate/store/drivers/sqlite"
	"github.com/hatchway/gatehouse/internal/gate/strategy"
	"github.com/hatchway/gatehouse/pkg/cryptox"
	"github.com/hatchway/gatehouse/pkg/idx"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

type seedOpts struct {
	status    domain.Status
	role      domain.Role
	mfaSecret string
}

func seedUser(t *testing.T, st store.Store, email, password string, opts seedOpts) domain.User {
	t.Helper()
	ctx := context.Background()

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
	require.NoError(t, st.Users().CreateUser(ctx, u))

	if opts.mfaSecret != "" {
		require.NoError(t, st.Users().UpdateMFASecret(ctx, u.ID, opts.mfaSecret, cryptox.DefaultTOTPPeriod))
		require.NoError(t, st.Users().EnableMFA(ctx, u.ID))
	}

	loaded, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	return loaded
}

func newAuthService(st store.Store) (*AuthService, session.Store) {
	sessions := session.NewMemoryStore()
	return &AuthService{
		Registry:   strategy.NewRegistry(&strategy.LocalStrategy{Store: st}, &strategy.TOTPStrategy{Store: st}),
		Sessions:   sessions,
		Store:      st,
		SessionTTL: time.Hour,
	}, sessions
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := cryptox.GenerateTOTPCode(secret, cryptox.DefaultTOTPPeriod, time.Now())
	require.NoError(t, err)
	return code
}

// recordingSender captures notifications for assertions.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (r *recordingSender) all() []sentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMail(nil), r.sent...)
}
