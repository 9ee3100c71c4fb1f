package grantflow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	clientPrefix     = "oauth2:client:"
	codePrefix       = "oauth2:code:"
	accessPrefix     = "oauth2:access:"
	refreshPrefix    = "oauth2:refresh:"
	userPrefix       = "oauth2:user:"
	clientUserPrefix = "oauth2:clientuser:"
)

// RedisModel is a Redis-backed Model implementation. Artifacts are stored as
// JSON with TTLs derived from their expiry, so expired codes and tokens
// disappear without a reaper. The never-expires sentinel maps to keys without
// a TTL.
type RedisModel struct {
	client *redis.Client

	// TokenFormat overrides the access token format, e.g. with a
	// JWTGenerator. Nil means opaque random strings.
	TokenFormat AccessTokenGenerator
}

// NewRedisModel wraps an existing Redis client.
func NewRedisModel(client *redis.Client) *RedisModel {
	return &RedisModel{client: client}
}

// CheckHealth verifies Redis connectivity.
func (m *RedisModel) CheckHealth(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

type clientRecord struct {
	ID           string   `json:"id"`
	Secret       string   `json:"secret,omitempty"`
	Grants       []string `json:"grants"`
	RedirectURIs []string `json:"redirect_uris"`
	Scope        string   `json:"scope,omitempty"`
}

type userRecord struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	User     json.RawMessage `json:"user"`
}

type codeRecord struct {
	Code        string          `json:"code"`
	ExpiresAt   time.Time       `json:"expires_at"`
	RedirectURI string          `json:"redirect_uri,omitempty"`
	Scope       string          `json:"scope,omitempty"`
	ClientID    string          `json:"client_id"`
	User        json.RawMessage `json:"user"`
}

type tokenRecord struct {
	AccessToken           string          `json:"access_token"`
	AccessTokenExpiresAt  time.Time       `json:"access_token_expires_at"`
	RefreshToken          string          `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt time.Time       `json:"refresh_token_expires_at,omitempty"`
	Scope                 string          `json:"scope,omitempty"`
	ClientID              string          `json:"client_id"`
	User                  json.RawMessage `json:"user"`
}

// SeedClient registers a client. Hosts call this at provisioning time; the
// engine itself never writes clients.
func (m *RedisModel) SeedClient(ctx context.Context, client *Client) error {
	data, err := json.Marshal(clientRecord{
		ID:           client.ID,
		Secret:       client.Secret,
		Grants:       client.Grants,
		RedirectURIs: client.RedirectURIs,
		Scope:        client.Scope,
	})
	if err != nil {
		return fmt.Errorf("marshaling client: %w", err)
	}
	if err := m.client.Set(ctx, clientPrefix+client.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("saving client: %w", err)
	}
	return nil
}

// SeedUser registers a resource owner for the password grant.
func (m *RedisModel) SeedUser(ctx context.Context, username, password string, user User) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling user: %w", err)
	}
	data, err := json.Marshal(userRecord{Username: username, Password: password, User: rawUser})
	if err != nil {
		return fmt.Errorf("marshaling user record: %w", err)
	}
	if err := m.client.Set(ctx, userPrefix+username, data, 0).Err(); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// SeedClientUser maps a client to the user it acts as for client_credentials.
func (m *RedisModel) SeedClientUser(ctx context.Context, clientID string, user User) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling user: %w", err)
	}
	if err := m.client.Set(ctx, clientUserPrefix+clientID, rawUser, 0).Err(); err != nil {
		return fmt.Errorf("saving client user: %w", err)
	}
	return nil
}

func (m *RedisModel) GetClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	data, err := m.client.Get(ctx, clientPrefix+clientID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting client: %w", err)
	}
	var record clientRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling client: %w", err)
	}
	if record.Secret != "" && clientSecret != "" &&
		subtle.ConstantTimeCompare([]byte(record.Secret), []byte(clientSecret)) != 1 {
		return nil, nil
	}
	return &Client{
		ID:           record.ID,
		Secret:       record.Secret,
		Grants:       record.Grants,
		RedirectURIs: record.RedirectURIs,
		Scope:        record.Scope,
	}, nil
}

func (m *RedisModel) GetUser(ctx context.Context, username, password string) (User, error) {
	data, err := m.client.Get(ctx, userPrefix+username).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	var record userRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling user: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(record.Password), []byte(password)) != 1 {
		return nil, nil
	}
	return decodeUser(record.User)
}

func (m *RedisModel) GetUserFromClient(ctx context.Context, client *Client) (User, error) {
	data, err := m.client.Get(ctx, clientUserPrefix+client.ID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting client user: %w", err)
	}
	return decodeUser(data)
}

func (m *RedisModel) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode, client *Client, user User) (*AuthorizationCode, error) {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return nil, errors.New("authorization code has already expired")
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshaling user: %w", err)
	}
	data, err := json.Marshal(codeRecord{
		Code:        code.Code,
		ExpiresAt:   code.ExpiresAt,
		RedirectURI: code.RedirectURI,
		Scope:       code.Scope,
		ClientID:    client.ID,
		User:        rawUser,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling authorization code: %w", err)
	}
	if err := m.client.Set(ctx, codePrefix+code.Code, data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("saving authorization code: %w", err)
	}

	stored := *code
	stored.Client = client
	stored.User = user
	return &stored, nil
}

func (m *RedisModel) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	data, err := m.client.Get(ctx, codePrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting authorization code: %w", err)
	}
	var record codeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling authorization code: %w", err)
	}
	client, err := m.GetClient(ctx, record.ClientID, "")
	if err != nil {
		return nil, err
	}
	user, err := decodeUser(record.User)
	if err != nil {
		return nil, err
	}
	return &AuthorizationCode{
		Code:        record.Code,
		ExpiresAt:   record.ExpiresAt,
		RedirectURI: record.RedirectURI,
		Scope:       record.Scope,
		Client:      client,
		User:        user,
	}, nil
}

func (m *RedisModel) RevokeAuthorizationCode(ctx context.Context, code *AuthorizationCode) (bool, error) {
	deleted, err := m.client.Del(ctx, codePrefix+code.Code).Result()
	if err != nil {
		return false, fmt.Errorf("revoking authorization code: %w", err)
	}
	return deleted > 0, nil
}

func (m *RedisModel) SaveToken(ctx context.Context, token *Token, client *Client, user User) (*Token, error) {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshaling user: %w", err)
	}
	data, err := json.Marshal(tokenRecord{
		AccessToken:           token.AccessToken,
		AccessTokenExpiresAt:  token.AccessTokenExpiresAt,
		RefreshToken:          token.RefreshToken,
		RefreshTokenExpiresAt: token.RefreshTokenExpiresAt,
		Scope:                 token.Scope,
		ClientID:              client.ID,
		User:                  rawUser,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling token: %w", err)
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, accessPrefix+token.AccessToken, data, ttlFrom(token.AccessTokenExpiresAt))
	if token.RefreshToken != "" {
		pipe.Set(ctx, refreshPrefix+token.RefreshToken, data, ttlFrom(token.RefreshTokenExpiresAt))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}

	stored := *token
	stored.Client = client
	stored.User = user
	return &stored, nil
}

func (m *RedisModel) GetAccessToken(ctx context.Context, accessToken string) (*Token, error) {
	return m.getToken(ctx, accessPrefix+accessToken)
}

func (m *RedisModel) GetRefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return m.getToken(ctx, refreshPrefix+refreshToken)
}

func (m *RedisModel) getToken(ctx context.Context, key string) (*Token, error) {
	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting token: %w", err)
	}
	var record tokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling token: %w", err)
	}
	client, err := m.GetClient(ctx, record.ClientID, "")
	if err != nil {
		return nil, err
	}
	user, err := decodeUser(record.User)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken:           record.AccessToken,
		AccessTokenExpiresAt:  record.AccessTokenExpiresAt,
		RefreshToken:          record.RefreshToken,
		RefreshTokenExpiresAt: record.RefreshTokenExpiresAt,
		Scope:                 record.Scope,
		Client:                client,
		User:                  user,
	}, nil
}

func (m *RedisModel) RevokeToken(ctx context.Context, token *Token) (*Token, error) {
	stored, err := m.GetRefreshToken(ctx, token.RefreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	if err := m.client.Del(ctx, refreshPrefix+token.RefreshToken).Err(); err != nil {
		return nil, fmt.Errorf("revoking token: %w", err)
	}
	return stored, nil
}

// ValidateScope applies the same allowlist policy as MemoryModel.
func (m *RedisModel) ValidateScope(ctx context.Context, user User, client *Client, scope string) (string, bool, error) {
	return scope, scopeAllowed(client.Scope, scope), nil
}

// AuthorizationAllowed treats consent as granted unless the request carries
// allow=false.
func (m *RedisModel) AuthorizationAllowed(ctx context.Context, req *Request) (bool, error) {
	return req.Param("allow") != "false", nil
}

func (m *RedisModel) GenerateAccessToken(ctx context.Context, client *Client, user User, scope string) (string, error) {
	if m.TokenFormat != nil {
		return m.TokenFormat.GenerateAccessToken(ctx, client, user, scope)
	}
	return generateRandomToken()
}

// ttlFrom converts an expiry into a Redis TTL. The never-expires sentinel
// becomes a key with no TTL.
func ttlFrom(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() || expiresAt.Equal(epoch) {
		return 0
	}
	return time.Until(expiresAt)
}

func decodeUser(raw json.RawMessage) (User, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("unmarshaling user: %w", err)
	}
	return user, nil
}
