package grantflow

import "time"

// Default lifetimes applied by NewServer when no option overrides them.
const (
	DefaultAuthorizationCodeLifetime = 5 * time.Minute
	DefaultAccessTokenLifetime       = time.Hour
	DefaultRefreshTokenLifetime      = 14 * 24 * time.Hour
)

// Option configures a Server.
type Option func(*Server)

// WithAccessTokenLifetime sets the access token lifetime. Zero means issued
// access tokens never expire.
func WithAccessTokenLifetime(d time.Duration) Option {
	return func(s *Server) {
		s.accessTokenLifetime = d
	}
}

// WithRefreshTokenLifetime sets the refresh token lifetime. Zero means issued
// refresh tokens never expire.
func WithRefreshTokenLifetime(d time.Duration) Option {
	return func(s *Server) {
		s.refreshTokenLifetime = d
	}
}

// WithAuthorizationCodeLifetime sets how long authorization codes stay
// exchangeable. Codes always expire; a non-positive value is rejected when
// the authorize handler is built.
func WithAuthorizationCodeLifetime(d time.Duration) Option {
	return func(s *Server) {
		s.authorizationCodeLifetime = d
	}
}
