package grantflow

import (
	"context"
	"net/url"
	"time"
)

// testClient returns a client registered for every grant with one redirect
// URI, the shape most tests want.
func testClient() *Client {
	return &Client{
		ID:     "test-client",
		Secret: "test-secret",
		Grants: []string{
			GrantAuthorizationCode,
			GrantClientCredentials,
			GrantPassword,
			GrantRefreshToken,
		},
		RedirectURIs: []string{"https://client.example.com/cb"},
	}
}

func testUser() User {
	return map[string]any{"id": "user-1"}
}

// bodyRequest builds a POST form request from the given values.
func bodyRequest(values url.Values) *Request {
	return &Request{
		Method: "POST",
		Header: map[string][]string{
			"Content-Type": {"application/x-www-form-urlencoded"},
		},
		Query: url.Values{},
		Body:  values,
	}
}

// coreModel implements only the base Model interface, no flow capabilities.
// Grants constructed over it fail their capability checks, which is exactly
// what the constructor tests need.
type coreModel struct {
	getClient     func(ctx context.Context, clientID, clientSecret string) (*Client, error)
	saveToken     func(ctx context.Context, token *Token, client *Client, user User) (*Token, error)
	validateScope func(ctx context.Context, user User, client *Client, scope string) (string, bool, error)
}

func (m *coreModel) GetClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if m.getClient != nil {
		return m.getClient(ctx, clientID, clientSecret)
	}
	return testClient(), nil
}

func (m *coreModel) SaveToken(ctx context.Context, token *Token, client *Client, user User) (*Token, error) {
	if m.saveToken != nil {
		return m.saveToken(ctx, token, client, user)
	}
	saved := *token
	saved.Client = client
	saved.User = user
	return &saved, nil
}

func (m *coreModel) ValidateScope(ctx context.Context, user User, client *Client, scope string) (string, bool, error) {
	if m.validateScope != nil {
		return m.validateScope(ctx, user, client, scope)
	}
	return scope, true, nil
}

// mockModel implements every flow interface with overridable hooks. The zero
// value behaves like a permissive store: lookups succeed, consent is granted,
// scope passes through.
type mockModel struct {
	coreModel

	getAuthorizationCode    func(ctx context.Context, code string) (*AuthorizationCode, error)
	revokeAuthorizationCode func(ctx context.Context, code *AuthorizationCode) (bool, error)
	saveAuthorizationCode   func(ctx context.Context, code *AuthorizationCode, client *Client, user User) (*AuthorizationCode, error)
	authorizationAllowed    func(ctx context.Context, req *Request) (bool, error)
	getRefreshToken         func(ctx context.Context, refreshToken string) (*Token, error)
	revokeToken             func(ctx context.Context, token *Token) (*Token, error)
	getUser                 func(ctx context.Context, username, password string) (User, error)
	getUserFromClient       func(ctx context.Context, client *Client) (User, error)
	getAccessToken          func(ctx context.Context, accessToken string) (*Token, error)
}

func (m *mockModel) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	if m.getAuthorizationCode != nil {
		return m.getAuthorizationCode(ctx, code)
	}
	return &AuthorizationCode{
		Code:      code,
		ExpiresAt: time.Now().Add(time.Minute),
		Scope:     "read",
		Client:    testClient(),
		User:      testUser(),
	}, nil
}

func (m *mockModel) RevokeAuthorizationCode(ctx context.Context, code *AuthorizationCode) (bool, error) {
	if m.revokeAuthorizationCode != nil {
		return m.revokeAuthorizationCode(ctx, code)
	}
	return true, nil
}

func (m *mockModel) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode, client *Client, user User) (*AuthorizationCode, error) {
	if m.saveAuthorizationCode != nil {
		return m.saveAuthorizationCode(ctx, code, client, user)
	}
	saved := *code
	saved.Client = client
	saved.User = user
	return &saved, nil
}

func (m *mockModel) AuthorizationAllowed(ctx context.Context, req *Request) (bool, error) {
	if m.authorizationAllowed != nil {
		return m.authorizationAllowed(ctx, req)
	}
	return true, nil
}

func (m *mockModel) GetRefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if m.getRefreshToken != nil {
		return m.getRefreshToken(ctx, refreshToken)
	}
	return &Token{
		AccessToken:           "old-access",
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: time.Now().Add(time.Hour),
		Scope:                 "read",
		Client:                testClient(),
		User:                  testUser(),
	}, nil
}

func (m *mockModel) RevokeToken(ctx context.Context, token *Token) (*Token, error) {
	if m.revokeToken != nil {
		return m.revokeToken(ctx, token)
	}
	revoked := *token
	revoked.RefreshTokenExpiresAt = time.Now().Add(-time.Hour)
	return &revoked, nil
}

func (m *mockModel) GetUser(ctx context.Context, username, password string) (User, error) {
	if m.getUser != nil {
		return m.getUser(ctx, username, password)
	}
	return testUser(), nil
}

func (m *mockModel) GetUserFromClient(ctx context.Context, client *Client) (User, error) {
	if m.getUserFromClient != nil {
		return m.getUserFromClient(ctx, client)
	}
	return testUser(), nil
}

func (m *mockModel) GetAccessToken(ctx context.Context, accessToken string) (*Token, error) {
	if m.getAccessToken != nil {
		return m.getAccessToken(ctx, accessToken)
	}
	return &Token{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: time.Now().Add(time.Hour),
		Scope:                "read",
		Client:               testClient(),
		User:                 testUser(),
	}, nil
}

// wantOAuthError asserts err is an *Error with the given kind and message.
func wantOAuthError(t testingT, err error, kind Kind, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s %q, got nil", kind, message)
	}
	oe := asOAuthError(err)
	if oe.Kind() != kind {
		t.Errorf("error kind = %s, want %s", oe.Kind(), kind)
	}
	if oe.Error() != message {
		t.Errorf("error message = %q, want %q", oe.Error(), message)
	}
}

// testingT is the subset of *testing.T the helpers use.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
}
