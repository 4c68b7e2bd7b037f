package domain

import "time"

// Provider identifies an external identity provider. The supported set is
// closed; anything else is an unknown provider name.
type Provider string

const (
	ProviderFacebook Provider = "facebook"
	ProviderGitHub   Provider = "github"
	ProviderTwitter  Provider = "twitter"
	ProviderGoogle   Provider = "google"
)

// Providers lists the supported providers in a stable order.
func Providers() []Provider {
	return []Provider{ProviderFacebook, ProviderGitHub, ProviderTwitter, ProviderGoogle}
}

// Known reports whether p is one of the supported providers.
func (p Provider) Known() bool {
	switch p {
	case ProviderFacebook, ProviderGitHub, ProviderTwitter, ProviderGoogle:
		return true
	}
	return false
}

func (p Provider) String() string { return string(p) }

// Link associates an identity with an external provider account. An
// identity holds at most one link per provider (schema constraint).
type Link struct {
	UserID       string
	Provider     Provider
	ExternalID   string // the user's unique id at the provider
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
