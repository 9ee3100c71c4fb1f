package grantflow

import (
	"context"
	"time"

	"github.com/averlon/oauth2-engine/internal/validation"
)

// AuthorizationCodeGrant exchanges a previously issued authorization code for
// a token per RFC 6749 section 4.1.3. Codes are single use: the code is
// revoked before the token is issued, the same rotate-then-issue shape as the
// refresh_token grant.
type AuthorizationCodeGrant struct {
	baseGrant
	model AuthorizationCodeModel
}

// NewAuthorizationCodeGrant fails with invalid_argument if the model is
// missing or lacks an authorization code capability.
func NewAuthorizationCodeGrant(model Model, accessTokenLifetime, refreshTokenLifetime time.Duration) (*AuthorizationCodeGrant, error) {
	base, err := newBaseGrant(model, accessTokenLifetime, refreshTokenLifetime)
	if err != nil {
		return nil, err
	}
	if _, ok := model.(interface {
		GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
	}); !ok {
		return nil, invalidArgument("Invalid argument: model does not implement GetAuthorizationCode")
	}
	if _, ok := model.(interface {
		RevokeAuthorizationCode(ctx context.Context, code *AuthorizationCode) (bool, error)
	}); !ok {
		return nil, invalidArgument("Invalid argument: model does not implement RevokeAuthorizationCode")
	}
	return &AuthorizationCodeGrant{baseGrant: base, model: model.(AuthorizationCodeModel)}, nil
}

// Handle validates the code and its redirect URI binding, revokes the code,
// and issues a token pair carrying the code's scope.
func (g *AuthorizationCodeGrant) Handle(ctx context.Context, req *Request, client *Client) (*Token, error) {
	if req == nil {
		return nil, invalidArgument("Missing parameter: request")
	}
	if client == nil {
		return nil, invalidArgument("Missing parameter: client")
	}

	code, err := g.authorizationCode(ctx, req, client)
	if err != nil {
		return nil, err
	}
	if err := g.validateRedirectURI(req, code); err != nil {
		return nil, err
	}
	if err := g.revokeCode(ctx, code); err != nil {
		return nil, err
	}
	return g.issueToken(ctx, client, code.User, code.Scope, true)
}

func (g *AuthorizationCodeGrant) authorizationCode(ctx context.Context, req *Request, client *Client) (*AuthorizationCode, error) {
	value := req.BodyValue("code")
	if value == "" {
		return nil, invalidRequest("Missing parameter: code")
	}
	if !validation.VSChar(value) {
		return nil, invalidRequest("Invalid parameter: code")
	}

	code, err := g.model.GetAuthorizationCode(ctx, value)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, invalidGrant("Invalid grant: authorization code is invalid")
	}
	if code.Client == nil {
		return nil, serverErrorf("Server error: GetAuthorizationCode did not return a client")
	}
	if code.User == nil {
		return nil, serverErrorf("Server error: GetAuthorizationCode did not return a user")
	}
	// Same message as "not found": a mismatched owner must not reveal that
	// the code exists.
	if code.Client.ID != client.ID {
		return nil, invalidGrant("Invalid grant: authorization code is invalid")
	}
	if code.ExpiresAt.IsZero() {
		return nil, serverErrorf("Server error: expiresAt must be a valid date")
	}
	if expired(code.ExpiresAt) {
		return nil, invalidGrant("Invalid grant: authorization code has expired")
	}
	if code.RedirectURI != "" && !validation.URI(code.RedirectURI) {
		return nil, invalidGrant("Invalid grant: redirect_uri is not a valid URI")
	}
	return code, nil
}

// validateRedirectURI checks that the token request repeats the redirect URI
// the code was bound to at authorize time (RFC 6749 section 4.1.3).
func (g *AuthorizationCodeGrant) validateRedirectURI(req *Request, code *AuthorizationCode) error {
	if code.RedirectURI == "" {
		return nil
	}
	redirectURI := req.Param("redirect_uri")
	if !validation.URI(redirectURI) {
		return invalidRequest("Invalid request: redirect_uri is not a valid URI")
	}
	if redirectURI != code.RedirectURI {
		return invalidRequest("Invalid request: redirect_uri is invalid")
	}
	return nil
}

func (g *AuthorizationCodeGrant) revokeCode(ctx context.Context, code *AuthorizationCode) error {
	revoked, err := g.model.RevokeAuthorizationCode(ctx, code)
	if err != nil {
		return err
	}
	if !revoked {
		return invalidGrant("Invalid grant: authorization code is invalid")
	}
	return nil
}
