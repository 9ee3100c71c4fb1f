package grantflow

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// responseType mints the authorize endpoint artifact for an authorized
// {client, user, scope} triple and knows where the artifact belongs on the
// redirect. Placement is security-relevant, not cosmetic: authorization codes
// travel in the query string (visible to the redirect target server), access
// tokens in the fragment, which browsers never send to a server (RFC 6749
// sections 4.1.2 and 4.2.2).
type responseType interface {
	BuildRedirectURI(ctx context.Context, client *Client, user User, scope, redirectURI string) (*AuthorizeResult, error)
	UsesFragment() bool
}

// AuthorizeResult is what a successful authorize request produced: the code
// for response_type=code, the bearer projection for response_type=token, and
// the redirect carrying it.
type AuthorizeResult struct {
	Code  *AuthorizationCode
	Token *BearerToken

	redirect *url.URL
}

// RedirectURI returns the redirect the handler wrote, for hosts that want to
// log or inspect it.
func (r *AuthorizeResult) RedirectURI() string {
	if r.redirect == nil {
		return ""
	}
	return r.redirect.String()
}

// codeResponseType persists an authorization code and places it in the
// redirect query string.
type codeResponseType struct {
	model    AuthorizeModel
	lifetime time.Duration
	codeGen  AuthorizationCodeGenerator // nil when the model supplies none
}

func newCodeResponseType(model AuthorizeModel, lifetime time.Duration) *codeResponseType {
	rt := &codeResponseType{model: model, lifetime: lifetime}
	rt.codeGen, _ = model.(AuthorizationCodeGenerator)
	return rt
}

func (rt *codeResponseType) UsesFragment() bool { return false }

func (rt *codeResponseType) BuildRedirectURI(ctx context.Context, client *Client, user User, scope, redirectURI string) (*AuthorizeResult, error) {
	if client == nil {
		return nil, invalidArgument("Missing parameter: client")
	}
	if user == nil {
		return nil, invalidArgument("Missing parameter: user")
	}

	value, err := rt.generateCode(ctx, client, user, scope)
	if err != nil {
		return nil, err
	}
	code := &AuthorizationCode{
		Code:        value,
		ExpiresAt:   time.Now().Add(rt.lifetime),
		RedirectURI: redirectURI,
		Scope:       scope,
	}
	saved, err := rt.model.SaveAuthorizationCode(ctx, code, client, user)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, serverErrorf("Server error: SaveAuthorizationCode did not return a code")
	}

	uri, err := url.Parse(redirectURI)
	if err != nil {
		return nil, serverErrorf("Server error: parsing redirect uri: %v", err)
	}
	q := uri.Query()
	q.Set("code", saved.Code)
	uri.RawQuery = q.Encode()

	return &AuthorizeResult{Code: saved, redirect: uri}, nil
}

func (rt *codeResponseType) generateCode(ctx context.Context, client *Client, user User, scope string) (string, error) {
	if rt.codeGen != nil {
		return rt.codeGen.GenerateAuthorizationCode(ctx, client, user, scope)
	}
	return generateRandomToken()
}

// tokenResponseType persists an access token and merges its bearer projection
// into the redirect fragment, leaving the query string untouched.
type tokenResponseType struct {
	baseGrant
}

func newTokenResponseType(model Model, accessTokenLifetime time.Duration) *tokenResponseType {
	base, _ := newBaseGrant(model, accessTokenLifetime, 0)
	return &tokenResponseType{baseGrant: base}
}

func (rt *tokenResponseType) UsesFragment() bool { return true }

func (rt *tokenResponseType) BuildRedirectURI(ctx context.Context, client *Client, user User, scope, redirectURI string) (*AuthorizeResult, error) {
	if client == nil {
		return nil, invalidArgument("Missing parameter: client")
	}
	if user == nil {
		return nil, invalidArgument("Missing parameter: user")
	}

	accessToken, err := rt.generateAccessToken(ctx, client, user, scope)
	if err != nil {
		return nil, err
	}
	token := &Token{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: expiryFrom(rt.accessTokenLifetime),
		Scope:                scope,
	}
	saved, err := rt.model.SaveToken(ctx, token, client, user)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, serverErrorf("Server error: SaveToken did not return a token")
	}
	bearer := newBearerToken(saved, rt.accessTokenLifetime)

	uri, err := url.Parse(redirectURI)
	if err != nil {
		return nil, serverErrorf("Server error: parsing redirect uri: %v", err)
	}
	frag, err := url.ParseQuery(uri.Fragment)
	if err != nil {
		frag = url.Values{}
	}
	frag.Set("access_token", bearer.AccessToken)
	frag.Set("token_type", bearer.TokenType)
	if bearer.ExpiresIn != 0 {
		frag.Set("expires_in", strconv.Itoa(bearer.ExpiresIn))
	}
	if bearer.RefreshToken != "" {
		frag.Set("refresh_token", bearer.RefreshToken)
	}
	if bearer.Scope != "" {
		frag.Set("scope", bearer.Scope)
	}
	uri.Fragment = frag.Encode()

	return &AuthorizeResult{Token: bearer, redirect: uri}, nil
}
