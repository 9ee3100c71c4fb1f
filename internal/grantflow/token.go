package grantflow

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/averlon/oauth2-engine/internal/validation"
)

// TokenHandler drives the token endpoint (RFC 6749 section 3.2): it
// authenticates the client, dispatches to the requested grant type, and
// writes the bearer projection of the issued token. Unlike the authorize
// handler it never redirects; errors become the JSON error response.
type TokenHandler struct {
	model                Model
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration
}

// NewTokenHandler fails with invalid_argument if the model is missing. Grant
// specific capabilities are checked when the grant is dispatched, so a model
// only needs the capabilities of the grants its clients use.
func NewTokenHandler(model Model, accessTokenLifetime, refreshTokenLifetime time.Duration) (*TokenHandler, error) {
	if model == nil {
		return nil, invalidArgument("Missing parameter: model")
	}
	return &TokenHandler{
		model:                model,
		accessTokenLifetime:  accessTokenLifetime,
		refreshTokenLifetime: refreshTokenLifetime,
	}, nil
}

// errorBody is the RFC 6749 section 5.2 error response.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Handle runs the token endpoint pipeline and records the HTTP response,
// success or error, on resp.
func (h *TokenHandler) Handle(ctx context.Context, req *Request, resp *Response) (*BearerToken, error) {
	if req == nil {
		return nil, invalidArgument("Missing parameter: request")
	}
	if resp == nil {
		return nil, invalidArgument("Missing parameter: response")
	}

	token, err := h.handle(ctx, req)
	if err != nil {
		oe := asOAuthError(err)
		h.writeError(resp, req, oe)
		return nil, oe
	}

	bearer := newBearerToken(token, h.accessTokenLifetime)
	resp.SetHeader("Cache-Control", "no-store")
	resp.SetHeader("Pragma", "no-cache")
	resp.WriteJSON(http.StatusOK, bearer)
	return bearer, nil
}

func (h *TokenHandler) handle(ctx context.Context, req *Request) (*Token, error) {
	if req.Method != http.MethodPost {
		return nil, invalidRequest("Invalid request: method must be POST")
	}
	if !req.isFormEncoded() {
		return nil, invalidRequest("Invalid request: content must be application/x-www-form-urlencoded")
	}

	client, err := h.client(ctx, req)
	if err != nil {
		return nil, err
	}
	grant, err := h.grantType(req, client)
	if err != nil {
		return nil, err
	}
	return grant.Handle(ctx, req, client)
}

// client authenticates the requesting client. Credentials come from the
// Authorization header or the body; which one a client must use is host
// policy, the model decides whether the secret is acceptable.
func (h *TokenHandler) client(ctx context.Context, req *Request) (*Client, error) {
	clientID, clientSecret := clientCredentials(req)
	if clientID == "" {
		return nil, invalidRequest("Missing parameter: client_id")
	}
	if !validation.VSChar(clientID) {
		return nil, invalidRequest("Invalid parameter: client_id")
	}
	if clientSecret != "" && !validation.VSChar(clientSecret) {
		return nil, invalidRequest("Invalid parameter: client_secret")
	}

	client, err := h.model.GetClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, invalidClient("Invalid client: client is invalid")
	}
	if len(client.Grants) == 0 {
		return nil, serverErrorf("Server error: missing client grants")
	}
	return client, nil
}

// clientCredentials reads client credentials from the Authorization header,
// falling back to the request body.
func clientCredentials(req *Request) (string, string) {
	if header := req.HeaderValue("Authorization"); header != "" {
		if id, secret, ok := parseBasicAuth(header); ok {
			return id, secret
		}
	}
	return req.BodyValue("client_id"), req.BodyValue("client_secret")
}

func parseBasicAuth(header string) (string, string, bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}
	return id, secret, true
}

// grantType selects the concrete grant for the request and verifies the
// client is registered for it.
func (h *TokenHandler) grantType(req *Request, client *Client) (GrantType, error) {
	name := req.BodyValue("grant_type")
	if name == "" {
		return nil, invalidRequest("Missing parameter: grant_type")
	}
	if !validation.NChar(name) {
		return nil, invalidRequest("Invalid parameter: grant_type")
	}

	var (
		grant GrantType
		err   error
	)
	switch name {
	case GrantAuthorizationCode:
		grant, err = NewAuthorizationCodeGrant(h.model, h.accessTokenLifetime, h.refreshTokenLifetime)
	case GrantClientCredentials:
		grant, err = NewClientCredentialsGrant(h.model, h.accessTokenLifetime)
	case GrantPassword:
		grant, err = NewPasswordGrant(h.model, h.accessTokenLifetime, h.refreshTokenLifetime)
	case GrantRefreshToken:
		grant, err = NewRefreshTokenGrant(h.model, h.accessTokenLifetime, h.refreshTokenLifetime)
	default:
		return nil, unsupportedGrantType("Unsupported grant type: grant_type is invalid")
	}
	if err != nil {
		return nil, err
	}
	if !client.HasGrant(name) {
		return nil, unauthorizedClient("Unauthorized client: grant_type is invalid")
	}
	return grant, nil
}

func (h *TokenHandler) writeError(resp *Response, req *Request, oe *Error) {
	status := oe.Status()
	// A client that authenticated via the Authorization header gets the 401
	// challenge form of invalid_client (RFC 6749 section 5.2).
	if oe.Kind() == KindInvalidClient && req.HeaderValue("Authorization") != "" {
		resp.SetHeader("WWW-Authenticate", `Basic realm="service"`)
		status = http.StatusUnauthorized
	}
	resp.SetHeader("Cache-Control", "no-store")
	resp.WriteJSON(status, errorBody{
		Error:            string(oe.Kind()),
		ErrorDescription: oe.Error(),
	})
}
