package grantflow

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryModel is an in-memory Model implementation covering every engine
// capability. It backs tests and single-process deployments; anything
// multi-node wants RedisModel or its own model. Safe for concurrent use.
type MemoryModel struct {
	mu            sync.Mutex
	clients       map[string]*Client
	users         map[string]memoryUser
	clientUsers   map[string]User
	codes         map[string]*AuthorizationCode
	accessTokens  map[string]*Token
	refreshTokens map[string]*Token

	// TokenFormat overrides the access token format, e.g. with a
	// JWTGenerator. Nil means opaque random strings.
	TokenFormat AccessTokenGenerator
}

type memoryUser struct {
	password string
	user     User
}

// NewMemoryModel returns an empty model; seed it with AddClient and AddUser.
func NewMemoryModel() *MemoryModel {
	return &MemoryModel{
		clients:       make(map[string]*Client),
		users:         make(map[string]memoryUser),
		clientUsers:   make(map[string]User),
		codes:         make(map[string]*AuthorizationCode),
		accessTokens:  make(map[string]*Token),
		refreshTokens: make(map[string]*Token),
	}
}

// AddClient registers a client.
func (m *MemoryModel) AddClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
}

// AddUser registers a resource owner for the password grant.
func (m *MemoryModel) AddUser(username, password string, user User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = memoryUser{password: password, user: user}
}

// SetClientUser maps a client to the user it acts as for client_credentials.
func (m *MemoryModel) SetClientUser(clientID string, user User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientUsers[clientID] = user
}

func (m *MemoryModel) GetClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[clientID]
	if !ok {
		return nil, nil
	}
	if client.Secret != "" && clientSecret != "" &&
		subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		return nil, nil
	}
	return client, nil
}

func (m *MemoryModel) GetUser(ctx context.Context, username, password string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	if subtle.ConstantTimeCompare([]byte(entry.password), []byte(password)) != 1 {
		return nil, nil
	}
	return entry.user, nil
}

func (m *MemoryModel) GetUserFromClient(ctx context.Context, client *Client) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientUsers[client.ID], nil
}

func (m *MemoryModel) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode, client *Client, user User) (*AuthorizationCode, error) {
	stored := *code
	stored.Client = client
	stored.User = user
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[stored.Code] = &stored
	return &stored, nil
}

func (m *MemoryModel) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	return stored, nil
}

func (m *MemoryModel) RevokeAuthorizationCode(ctx context.Context, code *AuthorizationCode) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[code.Code]; !ok {
		return false, nil
	}
	delete(m.codes, code.Code)
	return true, nil
}

func (m *MemoryModel) SaveToken(ctx context.Context, token *Token, client *Client, user User) (*Token, error) {
	stored := *token
	stored.Client = client
	stored.User = user
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessTokens[stored.AccessToken] = &stored
	if stored.RefreshToken != "" {
		m.refreshTokens[stored.RefreshToken] = &stored
	}
	return &stored, nil
}

func (m *MemoryModel) GetAccessToken(ctx context.Context, accessToken string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.accessTokens[accessToken]
	if !ok {
		return nil, nil
	}
	return token, nil
}

func (m *MemoryModel) GetRefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.refreshTokens[refreshToken]
	if !ok {
		return nil, nil
	}
	return token, nil
}

func (m *MemoryModel) RevokeToken(ctx context.Context, token *Token) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.refreshTokens[token.RefreshToken]
	if !ok {
		return nil, nil
	}
	delete(m.refreshTokens, token.RefreshToken)
	return stored, nil
}

// ValidateScope grants the requested scope when every element is on the
// client's allowlist. A client without an allowlist accepts any well-formed
// scope. Scopes are never widened.
func (m *MemoryModel) ValidateScope(ctx context.Context, user User, client *Client, scope string) (string, bool, error) {
	return scope, scopeAllowed(client.Scope, scope), nil
}

// AuthorizationAllowed treats consent as granted unless the request carries
// allow=false, the shape a host's consent form posts back.
func (m *MemoryModel) AuthorizationAllowed(ctx context.Context, req *Request) (bool, error) {
	return req.Param("allow") != "false", nil
}

// GenerateAuthorizationCode issues UUID codes so demo flows are easy to eye.
func (m *MemoryModel) GenerateAuthorizationCode(ctx context.Context, client *Client, user User, scope string) (string, error) {
	return uuid.NewString(), nil
}

func (m *MemoryModel) GenerateAccessToken(ctx context.Context, client *Client, user User, scope string) (string, error) {
	if m.TokenFormat != nil {
		return m.TokenFormat.GenerateAccessToken(ctx, client, user, scope)
	}
	return generateRandomToken()
}

// CheckHealth always succeeds; there is no backend to reach.
func (m *MemoryModel) CheckHealth(ctx context.Context) error {
	return nil
}

// scopeAllowed reports whether every requested scope element appears on the
// space-delimited allowlist. An empty request is always allowed.
func scopeAllowed(allowlist, requested string) bool {
	if requested == "" || allowlist == "" {
		return true
	}
	allowed := make(map[string]bool)
	for _, s := range strings.Fields(allowlist) {
		allowed[s] = true
	}
	for _, s := range strings.Fields(requested) {
		if !allowed[s] {
			return false
		}
	}
	return true
}
