// Package grantflow implements the OAuth 2.0 authorization and token grant
// flows per RFC 6749. It is a library: a host HTTP layer feeds it requests
// and an injected Model owns all persistence and policy.
package grantflow

import (
	"context"
	"time"

	"github.com/averlon/oauth2-engine/internal/validation"
)

// Grant type names accepted at the token endpoint. The set is closed;
// extension grants are not supported.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// Response type names accepted at the authorize endpoint.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// GrantType handles a token endpoint request for one grant, producing a
// persisted token for an already authenticated client.
type GrantType interface {
	Handle(ctx context.Context, req *Request, client *Client) (*Token, error)
}

// epoch is the sentinel expiry for a zero lifetime: the artifact never
// expires. Comparison logic must treat it as "no expiry", never as a date in
// the past.
var epoch = time.Unix(0, 0).UTC()

// expiryFrom stamps an expiry for the given lifetime. Zero means the
// artifact never expires and maps to the epoch sentinel, not now+0.
func expiryFrom(lifetime time.Duration) time.Time {
	if lifetime == 0 {
		return epoch
	}
	return time.Now().Add(lifetime)
}

// expired reports whether t is a real expiry in the past. The epoch sentinel
// and the zero time both mean "never expires".
func expired(t time.Time) bool {
	if t.IsZero() || t.Equal(epoch) {
		return false
	}
	return t.Before(time.Now())
}

// baseGrant carries the state and helpers every grant shares: the model, the
// injected lifetimes, and the token generators resolved at construction.
type baseGrant struct {
	model                Model
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration

	accessGen  AccessTokenGenerator  // nil when the model supplies none
	refreshGen RefreshTokenGenerator // nil when the model supplies none
}

func newBaseGrant(model Model, accessTokenLifetime, refreshTokenLifetime time.Duration) (baseGrant, error) {
	if model == nil {
		return baseGrant{}, invalidArgument("Missing parameter: model")
	}
	g := baseGrant{
		model:                model,
		accessTokenLifetime:  accessTokenLifetime,
		refreshTokenLifetime: refreshTokenLifetime,
	}
	g.accessGen, _ = model.(AccessTokenGenerator)
	g.refreshGen, _ = model.(RefreshTokenGenerator)
	return g, nil
}

func (g *baseGrant) generateAccessToken(ctx context.Context, client *Client, user User, scope string) (string, error) {
	if g.accessGen != nil {
		return g.accessGen.GenerateAccessToken(ctx, client, user, scope)
	}
	return generateRandomToken()
}

func (g *baseGrant) generateRefreshToken(ctx context.Context, client *Client, user User, scope string) (string, error) {
	if g.refreshGen != nil {
		return g.refreshGen.GenerateRefreshToken(ctx, client, user, scope)
	}
	return generateRandomToken()
}

// scopeFromBody reads the optional scope parameter from the request body and
// enforces the NQSCHAR character set.
func (g *baseGrant) scopeFromBody(req *Request) (string, error) {
	scope := req.BodyValue("scope")
	if scope != "" && !validation.NQSChar(scope) {
		return "", invalidArgument("Invalid parameter: scope")
	}
	return scope, nil
}

// issueToken runs the shared tail of every non-refresh grant: validate scope,
// generate the token pair, persist, and return what the model stored.
// Generation and persistence are sequenced because the saved identifier and
// expiry may be model-assigned.
func (g *baseGrant) issueToken(ctx context.Context, client *Client, user User, scope string, withRefresh bool) (*Token, error) {
	validated, err := validateScope(ctx, g.model, user, client, scope)
	if err != nil {
		return nil, err
	}

	accessToken, err := g.generateAccessToken(ctx, client, user, validated)
	if err != nil {
		return nil, err
	}
	token := &Token{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: expiryFrom(g.accessTokenLifetime),
		Scope:                validated,
	}
	if withRefresh {
		refreshToken, err := g.generateRefreshToken(ctx, client, user, validated)
		if err != nil {
			return nil, err
		}
		token.RefreshToken = refreshToken
		token.RefreshTokenExpiresAt = expiryFrom(g.refreshTokenLifetime)
	}

	saved, err := g.model.SaveToken(ctx, token, client, user)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, serverErrorf("Server error: SaveToken did not return a token")
	}
	return saved, nil
}

// validateScope applies the model's scope policy: a returned value narrows
// the scope, ok keeps the requested one, and a rejection surfaces as
// invalid_scope.
func validateScope(ctx context.Context, model Model, user User, client *Client, scope string) (string, error) {
	validated, ok, err := model.ValidateScope(ctx, user, client, scope)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", invalidScope("Invalid scope: scope is invalid")
	}
	if validated != "" {
		return validated, nil
	}
	return scope, nil
}
