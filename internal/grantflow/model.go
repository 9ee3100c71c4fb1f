package grantflow

import "context"

// Model is the storage and business-logic contract the engine delegates to.
// The engine owns protocol validation and sequencing; the model owns
// persistence, credential checks and scope policy. Every call is a potential
// round trip, so methods take a context and are never issued concurrently
// except where steps are independent of each other.
//
// Flow-specific capabilities live on the narrower interfaces below and are
// checked once, when a handler or grant is constructed. A model missing a
// capability fails construction with invalid_argument naming the method.
type Model interface {
	// GetClient returns the client registered under clientID, or nil if
	// there is none or the supplied secret does not match. An empty secret
	// is passed for flows that identify but do not authenticate the client.
	GetClient(ctx context.Context, clientID, clientSecret string) (*Client, error)

	// SaveToken persists the token and returns the stored form. The saved
	// identifier and expiry may differ from the proposed ones; the engine
	// only ever hands out what SaveToken returned.
	SaveToken(ctx context.Context, token *Token, client *Client, user User) (*Token, error)

	// ValidateScope decides whether the requested scope may be granted to
	// this user and client. It may narrow the scope by returning a
	// different value; ok=false rejects the request with invalid_scope.
	ValidateScope(ctx context.Context, user User, client *Client, scope string) (validated string, ok bool, err error)
}

// AuthorizeModel is what the authorize endpoint needs on top of Model.
type AuthorizeModel interface {
	Model

	// SaveAuthorizationCode persists the code and returns the stored form.
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode, client *Client, user User) (*AuthorizationCode, error)

	// AuthorizationAllowed reports whether the resource owner consented to
	// the authorization request.
	AuthorizationAllowed(ctx context.Context, req *Request) (bool, error)
}

// AuthorizationCodeModel is what the authorization_code grant needs at the
// token endpoint.
type AuthorizationCodeModel interface {
	Model

	// GetAuthorizationCode returns the stored code, or nil if unknown.
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// RevokeAuthorizationCode deletes the code. Codes are single use; the
	// grant revokes before issuing. A false return aborts the exchange.
	RevokeAuthorizationCode(ctx context.Context, code *AuthorizationCode) (bool, error)
}

// RefreshTokenModel is what the refresh_token grant needs on top of Model.
type RefreshTokenModel interface {
	Model

	// GetRefreshToken returns the token holding refreshToken, or nil.
	GetRefreshToken(ctx context.Context, refreshToken string) (*Token, error)

	// RevokeToken invalidates the refresh token and returns the revoked
	// record, or nil if it could not be revoked.
	RevokeToken(ctx context.Context, token *Token) (*Token, error)
}

// PasswordModel is what the password grant needs on top of Model.
type PasswordModel interface {
	Model

	// GetUser returns the resource owner matching the credentials, or nil.
	GetUser(ctx context.Context, username, password string) (User, error)
}

// ClientCredentialsModel is what the client_credentials grant needs on top of
// Model.
type ClientCredentialsModel interface {
	Model

	// GetUserFromClient returns the user a client acts as, or nil.
	GetUserFromClient(ctx context.Context, client *Client) (User, error)
}

// AccessTokenModel is what bearer authentication needs on top of Model.
type AccessTokenModel interface {
	Model

	// GetAccessToken returns the token holding accessToken, or nil.
	GetAccessToken(ctx context.Context, accessToken string) (*Token, error)
}

// Optional capabilities. Each is resolved once at construction time; when the
// model does not provide one the engine falls back to its own behavior.

// AccessTokenGenerator lets the model control the access token format.
type AccessTokenGenerator interface {
	GenerateAccessToken(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// RefreshTokenGenerator lets the model control the refresh token format.
type RefreshTokenGenerator interface {
	GenerateRefreshToken(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// AuthorizationCodeGenerator lets the model control the code format.
type AuthorizationCodeGenerator interface {
	GenerateAuthorizationCode(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// RequestAuthorizer lets the model resolve the resource owner behind an
// authorize request itself, e.g. from a session cookie. Without it the
// authorize handler falls back to bearer token authentication.
type RequestAuthorizer interface {
	GetUserFromRequest(ctx context.Context, req *Request, resp *Response) (User, error)
}
