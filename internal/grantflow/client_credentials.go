package grantflow

import (
	"context"
	"time"
)

// ClientCredentialsGrant implements the client_credentials grant per RFC 6749
// section 4.4. There is no resource owner step; the model maps the client to
// the user it acts as. No refresh token is issued (RFC 6749 section 4.4.3).
type ClientCredentialsGrant struct {
	baseGrant
	model ClientCredentialsModel
}

// NewClientCredentialsGrant fails with invalid_argument if the model is
// missing or cannot resolve a user from a client.
func NewClientCredentialsGrant(model Model, accessTokenLifetime time.Duration) (*ClientCredentialsGrant, error) {
	base, err := newBaseGrant(model, accessTokenLifetime, 0)
	if err != nil {
		return nil, err
	}
	m, ok := model.(ClientCredentialsModel)
	if !ok {
		return nil, invalidArgument("Invalid argument: model does not implement GetUserFromClient")
	}
	return &ClientCredentialsGrant{baseGrant: base, model: m}, nil
}

// Handle resolves the user behind the client and issues an access token.
func (g *ClientCredentialsGrant) Handle(ctx context.Context, req *Request, client *Client) (*Token, error) {
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
	user, err := g.model.GetUserFromClient(ctx, client)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalidGrant("Invalid grant: user credentials are invalid")
	}
	return g.issueToken(ctx, client, user, scope, false)
}
