package http

import (
	"net/http"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// APIHandler owns the protected landing page and the per-provider resource
// routes that sit behind the provider-link gate.
type APIHandler struct {
	Links   *service.LinkService
	Gateway *Gateway
}

// Landing is the default destination after login, draining queued flash
// messages for display.
//
//	GET /api
func (h *APIHandler) Landing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)
	user, _ := userFromContext(ctx)

	flashes := st.TakeFlashes()
	if len(flashes) > 0 {
		if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
			slogx.FromContext(ctx).Warn("failed to drain flashes", "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":   user.Email,
		"role":    user.Role,
		"flashes": flashes,
	})
}

// ProviderResource serves the resource for one linked provider. The
// provider-link gate has already proven the link exists; a race with an
// unlink between the gate and this read still answers, just without link
// detail.
//
//	GET /api/{provider}
func (h *APIHandler) ProviderResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	provider := domain.Provider(r.PathValue("provider"))

	link, err := h.Gateway.Store.Links().GetLink(ctx, user.ID, provider)
	if err != nil {
		slogx.FromContext(ctx).Warn("provider link read failed after gate", "provider", provider, "err", err)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"provider": provider})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"provider":    provider,
		"external_id": link.ExternalID,
		"linked_at":   link.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}
