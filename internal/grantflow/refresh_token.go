package grantflow

import (
	"context"
	"time"

	"github.com/averlon/oauth2-engine/internal/validation"
)

// RefreshTokenGrant implements the refresh_token grant per RFC 6749 section
// 6. A successful exchange rotates the credential: the presented refresh
// token is revoked exactly once and a fresh access/refresh pair replaces it.
type RefreshTokenGrant struct {
	baseGrant
	model RefreshTokenModel
}

// NewRefreshTokenGrant fails with invalid_argument if the model is missing or
// lacks a refresh token capability.
func NewRefreshTokenGrant(model Model, accessTokenLifetime, refreshTokenLifetime time.Duration) (*RefreshTokenGrant, error) {
	base, err := newBaseGrant(model, accessTokenLifetime, refreshTokenLifetime)
	if err != nil {
		return nil, err
	}
	if _, ok := model.(interface {
		GetRefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	}); !ok {
		return nil, invalidArgument("Invalid argument: model does not implement GetRefreshToken")
	}
	if _, ok := model.(interface {
		RevokeToken(ctx context.Context, token *Token) (*Token, error)
	}); !ok {
		return nil, invalidArgument("Invalid argument: model does not implement RevokeToken")
	}
	return &RefreshTokenGrant{baseGrant: base, model: model.(RefreshTokenModel)}, nil
}

// Handle validates the presented refresh token, revokes it, and issues a
// replacement token pair carrying the old token's scope.
func (g *RefreshTokenGrant) Handle(ctx context.Context, req *Request, client *Client) (*Token, error) {
	if req == nil {
		return nil, invalidArgument("Missing parameter: request")
	}
	if client == nil {
		return nil, invalidArgument("Missing parameter: client")
	}

	old, err := g.refreshToken(ctx, req, client)
	if err != nil {
		return nil, err
	}
	if err := g.revokeToken(ctx, old); err != nil {
		return nil, err
	}
	return g.saveToken(ctx, old, client)
}

func (g *RefreshTokenGrant) refreshToken(ctx context.Context, req *Request, client *Client) (*Token, error) {
	value := req.BodyValue("refresh_token")
	if value == "" {
		return nil, invalidRequest("Missing parameter: refresh_token")
	}
	if !validation.VSChar(value) {
		return nil, invalidRequest("Invalid parameter: refresh_token")
	}

	token, err := g.model.GetRefreshToken(ctx, value)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, invalidGrant("Invalid grant: refresh token is invalid")
	}
	if token.Client == nil {
		return nil, serverErrorf("Server error: GetRefreshToken did not return a client")
	}
	if token.User == nil {
		return nil, serverErrorf("Server error: GetRefreshToken did not return a user")
	}
	// An unknown token and a token owned by another client must be
	// indistinguishable to the caller; a distinct message would leak which
	// tokens exist.
	if token.Client.ID != client.ID {
		return nil, invalidGrant("Invalid grant: refresh token is invalid")
	}
	if expired(token.RefreshTokenExpiresAt) {
		return nil, invalidGrant("Invalid grant: refresh token has expired")
	}
	return token, nil
}

func (g *RefreshTokenGrant) revokeToken(ctx context.Context, token *Token) error {
	revoked, err := g.model.RevokeToken(ctx, token)
	if err != nil {
		return err
	}
	if revoked == nil {
		return invalidGrant("Invalid grant: refresh token is invalid")
	}
	if revoked.RefreshTokenExpiresAt.IsZero() {
		return serverErrorf("Server error: refreshTokenExpiresAt must be a valid date")
	}
	return nil
}

func (g *RefreshTokenGrant) saveToken(ctx context.Context, old *Token, client *Client) (*Token, error) {
	accessToken, err := g.generateAccessToken(ctx, client, old.User, old.Scope)
	if err != nil {
		return nil, err
	}
	refreshToken, err := g.generateRefreshToken(ctx, client, old.User, old.Scope)
	if err != nil {
		return nil, err
	}

	token := &Token{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  expiryFrom(g.accessTokenLifetime),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: expiryFrom(g.refreshTokenLifetime),
		Scope:                 old.Scope,
	}
	saved, err := g.model.SaveToken(ctx, token, client, old.User)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, serverErrorf("Server error: SaveToken did not return a token")
	}
	return saved, nil
}
