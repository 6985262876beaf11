// Package auth implements the OAuth2 authorization-code bridge to Google.
//
// A [Bridge] wraps an [oauth2.Config] for the YouTube Data API scope. It
// produces consent URLs bound to a CSRF state token and exchanges
// authorization codes for a [Credential] that the services package can
// use as a bearer token. The bridge never performs the redirect itself;
// the HTTP server and the CLI each run their own callback listener and
// hand the code here.
package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"shaztube/internal/shared"
)

// youtubeScope grants full playlist management on the user's channel.
const youtubeScope = "https://www.googleapis.com/auth/youtube"

// Credential holds the tokens obtained from a completed authorization.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Expired reports whether the access token is past its expiry time.
// Credentials without a recorded expiry are assumed live.
func (c *Credential) Expired() bool {
	if c.Expiry.IsZero() {
		return false
	}
	return time.Now().After(c.Expiry)
}

// Bridge mediates the authorization-code flow against Google's OAuth2
// endpoints.
type Bridge struct {
	config *oauth2.Config
}

// NewBridge creates a bridge from stored Google credentials.
func NewBridge(creds shared.GoogleConfig) (*Bridge, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: google client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if creds.RedirectURI == "" {
		return nil, fmt.Errorf("%w: google redirect_uri is required", shared.ErrMissingCredentials)
	}

	return &Bridge{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       []string{youtubeScope},
			Endpoint:     google.Endpoint,
		},
	}, nil
}

// AuthCodeURL returns the consent page URL bound to the given state token.
//
// Offline access plus forced approval makes Google return a refresh token
// on every authorization, not just the first.
func (b *Bridge) AuthCodeURL(state string) string {
	return b.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a credential.
func (b *Bridge) Exchange(ctx context.Context, code string) (*Credential, error) {
	token, err := b.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthExchange, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider returned an empty access token", shared.ErrAuthExchange)
	}

	return &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// Token converts a credential back to the oauth2 form used for
// persistence in the config file.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// StoredCredential reconstructs a credential from persisted config
// fields. Returns shared.ErrNotAuthenticated when no token is stored and
// shared.ErrTokenExpired when the stored token is stale.
func StoredCredential(creds shared.GoogleConfig) (*Credential, error) {
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: run the auth command first", shared.ErrNotAuthenticated)
	}

	cred := &Credential{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	if creds.TokenExpiry != "" {
		expiry, err := time.Parse(time.RFC3339, creds.TokenExpiry)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed token_expiry %q", shared.ErrInvalidConfig, creds.TokenExpiry)
		}
		cred.Expiry = expiry
	}

	if cred.Expired() {
		return nil, fmt.Errorf("%w: stored token expired at %s", shared.ErrTokenExpired, cred.Expiry.Format(time.RFC3339))
	}

	return cred, nil
}
