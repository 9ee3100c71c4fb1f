package grantflow

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTGenerator is an AccessTokenGenerator issuing HS256-signed JWTs instead
// of opaque random strings, for hosts whose resource servers validate tokens
// locally. Plug it into a model's token format slot.
type JWTGenerator struct {
	key      []byte
	issuer   string
	lifetime time.Duration
}

// NewJWTGenerator builds a generator signing with key. A zero lifetime omits
// the exp claim, matching the never-expires sentinel.
func NewJWTGenerator(key []byte, issuer string, lifetime time.Duration) *JWTGenerator {
	return &JWTGenerator{key: key, issuer: issuer, lifetime: lifetime}
}

// GenerateAccessToken signs a token bound to the client, user and scope.
func (g *JWTGenerator) GenerateAccessToken(ctx context.Context, client *Client, user User, scope string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": g.issuer,
		"aud": client.ID,
		"iat": now.Unix(),
		"jti": uuid.NewString(),
	}
	if sub := subjectOf(user); sub != "" {
		claims["sub"] = sub
	}
	if scope != "" {
		claims["scope"] = scope
	}
	if g.lifetime != 0 {
		claims["exp"] = now.Add(g.lifetime).Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// subjectOf extracts a subject identifier from the opaque user value without
// imposing a shape on it: strings are used as-is, maps may carry an "id".
func subjectOf(user User) string {
	switch u := user.(type) {
	case string:
		return u
	case fmt.Stringer:
		return u.String()
	case map[string]any:
		if id, ok := u["id"].(string); ok {
			return id
		}
	}
	return ""
}
