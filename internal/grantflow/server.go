package grantflow

import (
	"context"
	"time"
)

// Server ties the engine's handlers to one model and one set of lifetimes.
// It is stateless across requests; every per-request value lives in locals
// of the handler invocation.
type Server struct {
	model                Model
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration

	authorizationCodeLifetime time.Duration
}

// NewServer builds a server around the model with default lifetimes, applying
// any options on top.
func NewServer(model Model, opts ...Option) (*Server, error) {
	if model == nil {
		return nil, invalidArgument("Missing parameter: model")
	}
	s := &Server{
		model:                     model,
		accessTokenLifetime:       DefaultAccessTokenLifetime,
		refreshTokenLifetime:      DefaultRefreshTokenLifetime,
		authorizationCodeLifetime: DefaultAuthorizationCodeLifetime,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authorize handles an authorization endpoint request.
func (s *Server) Authorize(ctx context.Context, req *Request, resp *Response) (*AuthorizeResult, error) {
	h, err := NewAuthorizeHandler(s.model, s.authorizationCodeLifetime, s.accessTokenLifetime)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, req, resp)
}

// Token handles a token endpoint request.
func (s *Server) Token(ctx context.Context, req *Request, resp *Response) (*BearerToken, error) {
	h, err := NewTokenHandler(s.model, s.accessTokenLifetime, s.refreshTokenLifetime)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, req, resp)
}

// Authenticate resolves the bearer token on a request to its stored access
// token.
func (s *Server) Authenticate(ctx context.Context, req *Request, resp *Response) (*Token, error) {
	h, err := NewAuthenticateHandler(s.model)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, req, resp)
}
