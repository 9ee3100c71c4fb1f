package grantflow

import (
	"time"
)

// Client is a registered OAuth 2.0 client as the model stores it. The engine
// treats it as read-only; the redirect URI pinned for a request is threaded
// through the call chain instead of being written back onto the client.
type Client struct {
	ID           string
	Secret       string
	Grants       []string
	RedirectURIs []string

	// Scope is the client's scope allowlist, consulted by the reference
	// model implementations. Models with their own scope policy ignore it.
	Scope string
}

// HasGrant reports whether the client is allowed to use the named grant type.
func (c *Client) HasGrant(grant string) bool {
	for _, g := range c.Grants {
		if g == grant {
			return true
		}
	}
	return false
}

// User is whatever the model considers a resource owner. The engine never
// inspects it beyond nil checks; it is handed back to the model on every save.
type User any

// AuthorizationCode is a short-lived, one-time-use artifact minted at the
// authorize endpoint and exchanged at the token endpoint (RFC 6749 section
// 4.1.2).
type AuthorizationCode struct {
	Code        string
	ExpiresAt   time.Time
	RedirectURI string
	Scope       string
	Client      *Client
	User        User
}

// Token is a persisted access token, optionally paired with a refresh token.
type Token struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Scope                 string
	Client                *Client
	User                  User
}

// BearerToken is the wire projection of a Token per RFC 6749 section 5.1. It
// is built for a response and never persisted.
type BearerToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// newBearerToken projects a saved token onto the wire shape. A zero access
// token lifetime means the token never expires, so expires_in is omitted.
func newBearerToken(token *Token, accessTokenLifetime time.Duration) *BearerToken {
	bearer := &BearerToken{
		AccessToken:  token.AccessToken,
		TokenType:    "bearer",
		RefreshToken: token.RefreshToken,
		Scope:        token.Scope,
	}
	if accessTokenLifetime != 0 {
		bearer.ExpiresIn = int(accessTokenLifetime / time.Second)
	}
	return bearer
}
