package http

import (
	"net/http"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// AdminHandler owns the admin-only surface: the dashboard and account
// administration. Every route behind it sits behind the full gate chain
// ending in the admin role gate.
type AdminHandler struct {
	Accounts *service.AccountService
	Store    store.Store
	Gateway  *Gateway
}

type adminAccount struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	LastLogin string `json:"last_login,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Dashboard reports aggregate numbers for the operator landing view.
//
//	GET /dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.Store.Users().CountUsers(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to count identities", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"accounts": total})
}

// ListAccounts returns every identity, newest first.
//
//	GET /accounts
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.Store.Users().ListUsers(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list identities", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
		return
	}

	out := make([]adminAccount, 0, len(users))
	for _, u := range users {
		a := adminAccount{
			ID:        u.ID,
			Email:     u.Email,
			Role:      string(u.Role),
			Status:    string(u.Status),
			CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if u.LastLogin != nil {
			a.LastLogin = u.LastLogin.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, a)
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

// CreateAccount provisions an identity with an operator-chosen role. Runs
// the same creation workflow as signup, so the verification mail still goes
// out.
//
//	POST /accounts
func (h *AdminHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	role := domain.Role(r.PostFormValue("role"))
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_role", "role must be user or admin")
		return
	}

	user, err := h.Accounts.Create(ctx, service.CreateParams{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     role,
	})
	if err != nil {
		writeCreateError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":     user.ID,
		"email":  user.Email,
		"role":   user.Role,
		"status": user.Status,
	})
}
