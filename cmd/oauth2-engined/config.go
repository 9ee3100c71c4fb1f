package main

import "time"

// Config holds server configuration loaded from environment variables. An
// empty REDIS_URL runs the server against the in-memory model, which is only
// useful for demos and tests.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	RedisURL string `envconfig:"REDIS_URL"`

	AccessTokenLifetime       time.Duration `envconfig:"ACCESS_TOKEN_LIFETIME" default:"1h"`
	RefreshTokenLifetime      time.Duration `envconfig:"REFRESH_TOKEN_LIFETIME" default:"336h"`
	AuthorizationCodeLifetime time.Duration `envconfig:"AUTHORIZATION_CODE_LIFETIME" default:"5m"`

	// JWTSigningKey switches access tokens from opaque strings to signed
	// JWTs. Leave empty for opaque tokens.
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY"`
	JWTIssuer     string `envconfig:"JWT_ISSUER" default:"oauth2-engine"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}
