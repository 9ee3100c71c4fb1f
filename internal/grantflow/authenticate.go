package grantflow

import (
	"context"
	"strings"
)

// AuthenticateHandler resolves the bearer token presented on a request to a
// stored access token (RFC 6750). The authorize handler uses it to identify
// the current resource owner; hosts can also use it directly to protect
// resource endpoints.
type AuthenticateHandler struct {
	model AccessTokenModel
}

// NewAuthenticateHandler fails with invalid_argument if the model is missing
// or cannot look up access tokens.
func NewAuthenticateHandler(model Model) (*AuthenticateHandler, error) {
	if model == nil {
		return nil, invalidArgument("Missing parameter: model")
	}
	m, ok := model.(AccessTokenModel)
	if !ok {
		return nil, invalidArgument("Invalid argument: model does not implement GetAccessToken")
	}
	return &AuthenticateHandler{model: m}, nil
}

// Handle extracts the bearer token, looks it up, and validates its expiry.
func (h *AuthenticateHandler) Handle(ctx context.Context, req *Request, resp *Response) (*Token, error) {
	if req == nil {
		return nil, invalidArgument("Missing parameter: request")
	}
	if resp == nil {
		return nil, invalidArgument("Missing parameter: response")
	}

	value, err := bearerToken(req)
	if err != nil {
		return nil, err
	}
	token, err := h.model.GetAccessToken(ctx, value)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, invalidToken("Invalid token: access token is invalid")
	}
	if token.User == nil {
		return nil, serverErrorf("Server error: GetAccessToken did not return a user")
	}
	if token.AccessTokenExpiresAt.IsZero() {
		return nil, serverErrorf("Server error: accessTokenExpiresAt must be a valid date")
	}
	if expired(token.AccessTokenExpiresAt) {
		return nil, invalidToken("Invalid token: access token has expired")
	}
	return token, nil
}

// bearerToken reads the access token from the one place it was provided:
// Authorization header, query string, or body. Supplying it in more than one
// is an error per RFC 6750 section 2.
func bearerToken(req *Request) (string, error) {
	header := req.HeaderValue("Authorization")
	query := req.QueryValue("access_token")
	body := req.BodyValue("access_token")

	supplied := 0
	for _, v := range []string{header, query, body} {
		if v != "" {
			supplied++
		}
	}
	if supplied == 0 {
		return "", unauthorizedRequest("Unauthorized request: no authentication given")
	}
	if supplied > 1 {
		return "", invalidRequest("Invalid request: only one authentication method is allowed")
	}

	if header != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return "", invalidRequest("Invalid request: malformed authorization header")
		}
		return strings.TrimPrefix(header, prefix), nil
	}
	if query != "" {
		return query, nil
	}
	return body, nil
}
