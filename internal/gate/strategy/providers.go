package strategy

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hatchway/gatehouse/internal/gate/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// ProviderConfig is the per-provider OAuth client configuration.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c ProviderConfig) configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// NewGitHub builds the github strategy. The profile comes from the
// authenticated /user endpoint.
func NewGitHub(cfg ProviderConfig) (*OAuthStrategy, error) {
	if !cfg.configured() {
		return nil, errors.New("github oauth config missing required fields")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoints.GitHub,
		Scopes:       []string{"read:user", "user:email"},
	}

	fetch := func(ctx context.Context, c *oauth2.Config, tok *oauth2.Token) (Profile, error) {
		var payload struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := fetchJSON(ctx, c, tok, "https://api.github.com/user", &payload); err != nil {
			return Profile{}, err
		}
		name := payload.Name
		if name == "" {
			name = payload.Login
		}
		return Profile{
			ExternalID: strconv.FormatInt(payload.ID, 10),
			Email:      payload.Email,
			Name:       name,
		}, nil
	}

	return NewOAuthStrategy(domain.ProviderGitHub, oauthCfg, fetch), nil
}

// NewFacebook builds the facebook strategy using the Graph API.
func NewFacebook(cfg ProviderConfig) (*OAuthStrategy, error) {
	if !cfg.configured() {
		return nil, errors.New("facebook oauth config missing required fields")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoints.Facebook,
		Scopes:       []string{"email", "public_profile"},
	}

	fetch := func(ctx context.Context, c *oauth2.Config, tok *oauth2.Token) (Profile, error) {
		var payload struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		url := "https://graph.facebook.com/v19.0/me?fields=id,name,email"
		if err := fetchJSON(ctx, c, tok, url, &payload); err != nil {
			return Profile{}, err
		}
		return Profile{ExternalID: payload.ID, Email: payload.Email, Name: payload.Name}, nil
	}

	return NewOAuthStrategy(domain.ProviderFacebook, oauthCfg, fetch), nil
}

// NewTwitter builds the twitter strategy against the v2 API.
func NewTwitter(cfg ProviderConfig) (*OAuthStrategy, error) {
	if !cfg.configured() {
		return nil, errors.New("twitter oauth config missing required fields")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://twitter.com/i/oauth2/authorize",
			TokenURL: "https://api.twitter.com/2/oauth2/token",
		},
		Scopes: []string{"users.read", "tweet.read", "offline.access"},
	}

	fetch := func(ctx context.Context, c *oauth2.Config, tok *oauth2.Token) (Profile, error) {
		var payload struct {
			Data struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				Username string `json:"username"`
			} `json:"data"`
		}
		if err := fetchJSON(ctx, c, tok, "https://api.twitter.com/2/users/me", &payload); err != nil {
			return Profile{}, err
		}
		name := payload.Data.Name
		if name == "" {
			name = payload.Data.Username
		}
		return Profile{ExternalID: payload.Data.ID, Name: name}, nil
	}

	return NewOAuthStrategy(domain.ProviderTwitter, oauthCfg, fetch), nil
}

// NewGoogle builds the google strategy. Unlike the plain OAuth providers
// the profile comes from a verified OIDC id_token, not an API call.
func NewGoogle(ctx context.Context, cfg ProviderConfig) (*OAuthStrategy, error) {
	if !cfg.configured() {
		return nil, errors.New("google oauth config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	fetch := func(ctx context.Context, _ *oauth2.Config, tok *oauth2.Token) (Profile, error) {
		rawIDToken, ok := tok.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			return Profile{}, errors.New("google did not return id_token")
		}

		idToken, err := verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return Profile{}, fmt.Errorf("google id_token verification failed: %w", err)
		}

		var claims struct {
			Subject string `json:"sub"`
			Email   string `json:"email"`
			Name    string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return Profile{}, fmt.Errorf("google id_token claims parse failed: %w", err)
		}
		if claims.Subject == "" {
			return Profile{}, errors.New("google id_token missing subject")
		}

		return Profile{ExternalID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
	}

	return NewOAuthStrategy(domain.ProviderGoogle, oauthCfg, fetch), nil
}
