package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hatchway/gatehouse/internal/gate/domain"

	"golang.org/x/oauth2"
)

// ProfileFetcher obtains the normalized identity attributes from a provider
// after a successful token exchange.
type ProfileFetcher func(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (Profile, error)

// OAuthStrategy is the shared implementation behind every external
// provider. The handshake outcome is always Deferred: a bare provider
// profile never grants access on its own. The caller decides whether to
// create, link, or reject.
type OAuthStrategy struct {
	provider domain.Provider
	config   *oauth2.Config
	fetch    ProfileFetcher
}

func NewOAuthStrategy(p domain.Provider, cfg *oauth2.Config, fetch ProfileFetcher) *OAuthStrategy {
	return &OAuthStrategy{provider: p, config: cfg, fetch: fetch}
}

func (s *OAuthStrategy) Name() string { return s.provider.String() }

// Provider returns the provider this strategy handles.
func (s *OAuthStrategy) Provider() domain.Provider { return s.provider }

// AuthCodeURL builds the provider's authorization URL. State is supplied by
// the caller and round-trips through the provider.
func (s *OAuthStrategy) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Attempt exchanges the callback authorization code for tokens, fetches the
// provider profile, and defers the access decision to the caller.
func (s *OAuthStrategy) Attempt(ctx context.Context, c Credentials) (Outcome, error) {
	if c.AuthCode == "" {
		return Reject(ReasonBadCredentials), nil
	}

	tok, err := s.config.Exchange(ctx, c.AuthCode)
	if err != nil {
		return Outcome{}, fmt.Errorf("strategy: %s token exchange: %w", s.provider, err)
	}

	profile, err := s.fetch(ctx, s.config, tok)
	if err != nil {
		return Outcome{}, fmt.Errorf("strategy: %s profile fetch: %w", s.provider, err)
	}

	profile.Provider = s.provider
	profile.AccessToken = tok.AccessToken
	profile.RefreshToken = tok.RefreshToken

	if profile.ExternalID == "" {
		return Outcome{}, fmt.Errorf("strategy: %s profile missing external id", s.provider)
	}

	return Defer(profile), nil
}

// fetchJSON performs an authenticated GET against a provider API and
// decodes the JSON body into out.
func fetchJSON(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, url string, out any) error {
	client := cfg.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
