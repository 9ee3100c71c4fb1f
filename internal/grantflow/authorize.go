package grantflow

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/averlon/oauth2-engine/internal/validation"
)

// AuthorizeHandler drives the authorization endpoint (RFC 6749 section 3.1):
// it resolves the client and the resource owner, checks consent and scope,
// dispatches to the requested response type, and writes the redirect. On
// failure after the client is known it still writes an error redirect before
// returning the error, so an OAuth-aware user agent always ends up back at
// the client while the host keeps the error for its own status mapping.
type AuthorizeHandler struct {
	model                     AuthorizeModel
	accessTokenLifetime       time.Duration
	authorizationCodeLifetime time.Duration

	// Exactly one of these resolves the resource owner: the model's own
	// resolver when it has one, bearer authentication otherwise.
	userResolver RequestAuthorizer
	authenticate *AuthenticateHandler
}

// NewAuthorizeHandler fails with invalid_argument if the model is missing a
// capability the endpoint depends on.
func NewAuthorizeHandler(model Model, authorizationCodeLifetime, accessTokenLifetime time.Duration) (*AuthorizeHandler, error) {
	if model == nil {
		return nil, invalidArgument("Missing parameter: model")
	}
	if authorizationCodeLifetime <= 0 {
		return nil, invalidArgument("Missing parameter: authorizationCodeLifetime")
	}
	if _, ok := model.(interface {
		SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode, client *Client, user User) (*AuthorizationCode, error)
	}); !ok {
		return nil, invalidArgument("Invalid argument: model does not implement SaveAuthorizationCode")
	}
	if _, ok := model.(interface {
		AuthorizationAllowed(ctx context.Context, req *Request) (bool, error)
	}); !ok {
		return nil, invalidArgument("Invalid argument: model does not implement AuthorizationAllowed")
	}

	h := &AuthorizeHandler{
		model:                     model.(AuthorizeModel),
		accessTokenLifetime:       accessTokenLifetime,
		authorizationCodeLifetime: authorizationCodeLifetime,
	}
	if resolver, ok := model.(RequestAuthorizer); ok {
		h.userResolver = resolver
	} else {
		authenticate, err := NewAuthenticateHandler(model)
		if err != nil {
			return nil, err
		}
		h.authenticate = authenticate
	}
	return h, nil
}

// Handle runs the authorize state machine. The returned result carries the
// minted code or token; the redirect has already been recorded on resp.
func (h *AuthorizeHandler) Handle(ctx context.Context, req *Request, resp *Response) (*AuthorizeResult, error) {
	if req == nil {
		return nil, invalidArgument("Missing parameter: request")
	}
	if resp == nil {
		return nil, invalidArgument("Missing parameter: response")
	}

	// Client and user resolution are independent of each other; everything
	// after consumes both.
	var (
		client      *Client
		redirectURI string
		user        User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		client, redirectURI, err = h.client(gctx, req)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = h.user(gctx, req, resp)
		return err
	})
	if err := g.Wait(); err != nil {
		// No validated redirect target yet; the error goes straight back
		// to the host instead of to the client's callback.
		return nil, asOAuthError(err)
	}

	// state and response_type are resolved before any step that can fail
	// below, so the error redirect can carry them on every path.
	state, stateErr := stateParam(req)
	rt, rtErr := h.responseType(req)

	result, err := func() (*AuthorizeResult, error) {
		if stateErr != nil {
			return nil, stateErr
		}
		if rtErr != nil {
			return nil, rtErr
		}
		if err := h.authorizationAllowed(ctx, req); err != nil {
			return nil, err
		}
		scope, err := scopeParam(req)
		if err != nil {
			return nil, err
		}
		scope, err = validateScope(ctx, h.model, user, client, scope)
		if err != nil {
			return nil, err
		}
		return rt.BuildRedirectURI(ctx, client, user, scope, redirectURI)
	}()
	if err != nil {
		oe := asOAuthError(err)
		h.writeErrorRedirect(resp, rt, redirectURI, oe, state)
		return nil, oe
	}

	appendState(result.redirect, rt.UsesFragment(), state)
	resp.Redirect(result.redirect.String())
	return result, nil
}

// client resolves and validates the requesting client, returning the pinned
// redirect URI alongside it. The client record itself is never mutated.
func (h *AuthorizeHandler) client(ctx context.Context, req *Request) (*Client, string, error) {
	clientID := req.Param("client_id")
	if clientID == "" {
		return nil, "", invalidRequest("Missing parameter: client_id")
	}
	if !validation.VSChar(clientID) {
		return nil, "", invalidRequest("Invalid parameter: client_id")
	}
	requestedURI := req.Param("redirect_uri")
	if requestedURI != "" && !validation.URI(requestedURI) {
		return nil, "", invalidRequest("Invalid request: redirect_uri is not a valid URI")
	}

	client, err := h.model.GetClient(ctx, clientID, "")
	if err != nil {
		return nil, "", err
	}
	if client == nil {
		return nil, "", invalidClient("Invalid client: client credentials are invalid")
	}
	if len(client.Grants) == 0 {
		return nil, "", invalidClient("Invalid client: missing client grants")
	}
	if !client.HasGrant(GrantAuthorizationCode) {
		return nil, "", unauthorizedClient("Unauthorized client: grant_type is invalid")
	}

	redirectURI, err := resolveRedirectURI(client, requestedURI)
	if err != nil {
		return nil, "", err
	}
	return client, redirectURI, nil
}

// resolveRedirectURI pins which registered redirect URI this request uses: a
// supplied URI must match a registered one; otherwise the first registration
// is used.
func resolveRedirectURI(client *Client, requested string) (string, error) {
	if len(client.RedirectURIs) == 0 {
		return "", invalidClient("Invalid client: missing client redirectUri")
	}
	if requested == "" {
		return client.RedirectURIs[0], nil
	}
	for _, uri := range client.RedirectURIs {
		if uri == requested {
			return requested, nil
		}
	}
	return "", invalidClient("Invalid client: redirect_uri does not match client value")
}

func (h *AuthorizeHandler) user(ctx context.Context, req *Request, resp *Response) (User, error) {
	if h.userResolver != nil {
		user, err := h.userResolver.GetUserFromRequest(ctx, req, resp)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, serverErrorf("Server error: GetUserFromRequest did not return a user")
		}
		return user, nil
	}
	token, err := h.authenticate.Handle(ctx, req, resp)
	if err != nil {
		return nil, err
	}
	return token.User, nil
}

func (h *AuthorizeHandler) authorizationAllowed(ctx context.Context, req *Request) error {
	allowed, err := h.model.AuthorizationAllowed(ctx, req)
	if err != nil {
		return err
	}
	if !allowed {
		return accessDenied("Access denied: user denied access to application")
	}
	return nil
}

func (h *AuthorizeHandler) responseType(req *Request) (responseType, error) {
	value := req.Param("response_type")
	if value == "" {
		return nil, invalidRequest("Missing parameter: response_type")
	}
	switch value {
	case ResponseTypeCode:
		return newCodeResponseType(h.model, h.authorizationCodeLifetime), nil
	case ResponseTypeToken:
		return newTokenResponseType(h.model, h.accessTokenLifetime), nil
	default:
		return nil, invalidRequest("Invalid parameter: response_type")
	}
}

func stateParam(req *Request) (string, error) {
	state := req.Param("state")
	if state != "" && !validation.VSChar(state) {
		return "", invalidRequest("Invalid parameter: state")
	}
	return state, nil
}

func scopeParam(req *Request) (string, error) {
	scope := req.Param("scope")
	if scope != "" && !validation.NQSChar(scope) {
		return "", invalidScope("Invalid parameter: scope")
	}
	return scope, nil
}

// writeErrorRedirect records the error redirect when a validated redirect
// target exists. The artifact location rule applies to errors too: query for
// code, fragment for token. With no response type resolved the query is used.
func (h *AuthorizeHandler) writeErrorRedirect(resp *Response, rt responseType, redirectURI string, oe *Error, state string) {
	if redirectURI == "" {
		return
	}
	usesFragment := rt != nil && rt.UsesFragment()
	if target := buildErrorRedirectURI(redirectURI, usesFragment, oe, state); target != "" {
		resp.Redirect(target)
	}
}

// buildErrorRedirectURI is deterministic: the same inputs always yield a
// byte-identical URI (url.Values encodes in sorted key order).
func buildErrorRedirectURI(redirectURI string, usesFragment bool, oe *Error, state string) string {
	uri, err := url.Parse(redirectURI)
	if err != nil {
		return ""
	}

	var params url.Values
	if usesFragment {
		params, err = url.ParseQuery(uri.Fragment)
		if err != nil {
			params = url.Values{}
		}
	} else {
		params = uri.Query()
	}
	params.Set("error", string(oe.Kind()))
	if oe.Error() != "" {
		params.Set("error_description", oe.Error())
	}
	if state != "" {
		params.Set("state", state)
	}

	if usesFragment {
		uri.Fragment = params.Encode()
	} else {
		uri.RawQuery = params.Encode()
	}
	return uri.String()
}

// appendState attaches the client's state parameter to the same location the
// artifact went.
func appendState(uri *url.URL, usesFragment bool, state string) {
	if state == "" {
		return
	}
	if usesFragment {
		params, err := url.ParseQuery(uri.Fragment)
		if err != nil {
			params = url.Values{}
		}
		params.Set("state", state)
		uri.Fragment = params.Encode()
	} else {
		q := uri.Query()
		q.Set("state", state)
		uri.RawQuery = q.Encode()
	}
}
