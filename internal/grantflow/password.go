package grantflow

import (
	"context"
	"time"

	"github.com/averlon/oauth2-engine/internal/validation"
)

// PasswordGrant implements the resource owner password credentials grant per
// RFC 6749 section 4.3.
type PasswordGrant struct {
	baseGrant
	model PasswordModel
}

// NewPasswordGrant fails with invalid_argument if the model is missing or
// cannot authenticate resource owners.
func NewPasswordGrant(model Model, accessTokenLifetime, refreshTokenLifetime time.Duration) (*PasswordGrant, error) {
	base, err := newBaseGrant(model, accessTokenLifetime, refreshTokenLifetime)
	if err != nil {
		return nil, err
	}
	m, ok := model.(PasswordModel)
	if !ok {
		return nil, invalidArgument("Invalid argument: model does not implement GetUser")
	}
	return &PasswordGrant{baseGrant: base, model: m}, nil
}

// Handle authenticates the resource owner's credentials and issues a token
// pair.
func (g *PasswordGrant) Handle(ctx context.Context, req *Request, client *Client) (*Token, error) {
	if req == nil {
		return nil, invalidArgument("Missing parameter: request")
	}
	if client == nil {
		return nil, invalidArgument("Missing parameter: client")
	}

	scope, err := g.scopeFromBody(req)
	if err != nil {
		return nil, err
	}
	user, err := g.user(ctx, req)
	if err != nil {
		return nil, err
	}
	return g.issueToken(ctx, client, user, scope, true)
}

func (g *PasswordGrant) user(ctx context.Context, req *Request) (User, error) {
	username := req.BodyValue("username")
	password := req.BodyValue("password")

	if username == "" {
		return nil, invalidRequest("Missing parameter: username")
	}
	if password == "" {
		return nil, invalidRequest("Missing parameter: password")
	}
	if !validation.UChar(username) {
		return nil, invalidRequest("Invalid parameter: username")
	}
	if !validation.UChar(password) {
		return nil, invalidRequest("Invalid parameter: password")
	}

	user, err := g.model.GetUser(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalidGrant("Invalid grant: user credentials are invalid")
	}
	return user, nil
}
