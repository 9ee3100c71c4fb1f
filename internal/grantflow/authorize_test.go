package grantflow

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

// sessionModel resolves the resource owner itself, as a model with its own
// session handling would.
type sessionModel struct {
	mockModel
	user User
}

func (m *sessionModel) GetUserFromRequest(ctx context.Context, req *Request, resp *Response) (User, error) {
	return m.user, nil
}

func newSessionModel() *sessionModel {
	return &sessionModel{user: testUser()}
}

// authorizeRequest builds a GET authorize request with the given query
// parameters on top of a valid baseline.
func authorizeRequest(overrides url.Values) *Request {
	q := url.Values{
		"client_id":     {"test-client"},
		"response_type": {"code"},
	}
	for name, values := range overrides {
		if len(values) == 1 && values[0] == "" {
			q.Del(name)
			continue
		}
		q[name] = values
	}
	return &Request{
		Method: "GET",
		Header: map[string][]string{},
		Query:  q,
		Body:   url.Values{},
	}
}

func TestNewAuthorizeHandler(t *testing.T) {
	tests := []struct {
		name     string
		model    Model
		lifetime time.Duration
		wantMsg  string
	}{
		{"nil model", nil, time.Minute, "Missing parameter: model"},
		{"zero code lifetime", newSessionModel(), 0, "Missing parameter: authorizationCodeLifetime"},
		{"model without SaveAuthorizationCode", &coreModel{}, time.Minute, "Invalid argument: model does not implement SaveAuthorizationCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthorizeHandler(tt.model, tt.lifetime, time.Hour)
			wantOAuthError(t, err, KindInvalidArgument, tt.wantMsg)
		})
	}

	t.Run("full model", func(t *testing.T) {
		if _, err := NewAuthorizeHandler(newSessionModel(), 5*time.Minute, time.Hour); err != nil {
			t.Fatalf("NewAuthorizeHandler: %v", err)
		}
	})
}

func TestAuthorizeErrorsBeforeClientValidation(t *testing.T) {
	// Until the client and its redirect URI are validated there is no safe
	// redirect target; these errors must not produce one.
	ctx := context.Background()

	tests := []struct {
		name     string
		req      *Request
		setup    func(*sessionModel)
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "missing client_id",
			req:      authorizeRequest(url.Values{"client_id": {""}}),
			wantKind: KindInvalidRequest,
			wantMsg:  "Missing parameter: client_id",
		},
		{
			name:     "malformed client_id",
			req:      authorizeRequest(url.Values{"client_id": {"bad\nid"}}),
			wantKind: KindInvalidRequest,
			wantMsg:  "Invalid parameter: client_id",
		},
		{
			name:     "malformed redirect_uri",
			req:      authorizeRequest(url.Values{"redirect_uri": {"not-a-uri"}}),
			wantKind: KindInvalidRequest,
			wantMsg:  "Invalid request: redirect_uri is not a valid URI",
		},
		{
			name: "unknown client",
			req:  authorizeRequest(nil),
			setup: func(m *sessionModel) {
				m.getClient = func(ctx context.Context, clientID, clientSecret string) (*Client, error) {
					return nil, nil
				}
			},
			wantKind: KindInvalidClient,
			wantMsg:  "Invalid client: client credentials are invalid",
		},
		{
			name: "client with no grants",
			req:  authorizeRequest(nil),
			setup: func(m *sessionModel) {
				m.getClient = func(ctx context.Context, clientID, clientSecret string) (*Client, error) {
					return &Client{ID: clientID, RedirectURIs: []string{"https://client.example.com/cb"}}, nil
				}
			},
			wantKind: KindInvalidClient,
			wantMsg:  "Invalid client: missing client grants",
		},
		{
			name: "client not registered for authorization_code",
			req:  authorizeRequest(nil),
			setup: func(m *sessionModel) {
				m.getClient = func(ctx context.Context, clientID, clientSecret string) (*Client, error) {
					return &Client{
						ID:           clientID,
						Grants:       []string{GrantClientCredentials},
						RedirectURIs: []string{"https://client.example.com/cb"},
					}, nil
				}
			},
			wantKind: KindUnauthorizedClient,
			wantMsg:  "Unauthorized client: grant_type is invalid",
		},
		{
			name: "client without registered redirect URIs",
			req:  authorizeRequest(nil),
			setup: func(m *sessionModel) {
				m.getClient = func(ctx context.Context, clientID, clientSecret string) (*Client, error) {
					return &Client{ID: clientID, Grants: []string{GrantAuthorizationCode}}, nil
				}
			},
			wantKind: KindInvalidClient,
			wantMsg:  "Invalid client: missing client redirectUri",
		},
		{
			name:     "redirect_uri not registered",
			req:      authorizeRequest(url.Values{"redirect_uri": {"https://attacker.example.com/cb"}}),
			wantKind: KindInvalidClient,
			wantMsg:  "Invalid client: redirect_uri does not match client value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newSessionModel()
			if tt.setup != nil {
				tt.setup(model)
			}
			h, err := NewAuthorizeHandler(model, 5*time.Minute, time.Hour)
			if err != nil {
				t.Fatalf("NewAuthorizeHandler: %v", err)
			}
			resp := NewResponse()
			_, err = h.Handle(ctx, tt.req, resp)
			wantOAuthError(t, err, tt.wantKind, tt.wantMsg)
			if resp.IsRedirect() {
				t.Errorf("error before client validation produced a redirect to %q", resp.Header.Get("Location"))
			}
		})
	}
}

func TestAuthorizeErrorsRedirectBackToClient(t *testing.T) {
	// Once the client is validated, failures are delivered to its callback.
	ctx := context.Background()

	tests := []struct {
		name      string
		req       *Request
		setup     func(*sessionModel)
		wantKind  Kind
		wantParam string
	}{
		{
			name:      "missing response_type",
			req:       authorizeRequest(url.Values{"response_type": {""}}),
			wantKind:  KindInvalidRequest,
			wantParam: "error=invalid_request",
		},
		{
			name:      "unknown response_type",
			req:       authorizeRequest(url.Values{"response_type": {"device"}}),
			wantKind:  KindInvalidRequest,
			wantParam: "error=invalid_request",
		},
		{
			name: "consent denied",
			req:  authorizeRequest(nil),
			setup: func(m *sessionModel) {
				m.authorizationAllowed = func(ctx context.Context, req *Request) (bool, error) {
					return false, nil
				}
			},
			wantKind:  KindAccessDenied,
			wantParam: "error=access_denied",
		},
		{
			name: "scope rejected",
			req:  authorizeRequest(url.Values{"scope": {"admin"}}),
			setup: func(m *sessionModel) {
				m.validateScope = func(ctx context.Context, user User, client *Client, scope string) (string, bool, error) {
					return "", false, nil
				}
			},
			wantKind:  KindInvalidScope,
			wantParam: "error=invalid_scope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newSessionModel()
			if tt.setup != nil {
				tt.setup(model)
			}
			h, err := NewAuthorizeHandler(model, 5*time.Minute, time.Hour)
			if err != nil {
				t.Fatalf("NewAuthorizeHandler: %v", err)
			}
			resp := NewResponse()
			_, handleErr := h.Handle(ctx, tt.req, resp)
			if handleErr == nil {
				t.Fatal("expected an error")
			}
			if asOAuthError(handleErr).Kind() != tt.wantKind {
				t.Errorf("error kind = %s, want %s", asOAuthError(handleErr).Kind(), tt.wantKind)
			}
			if !resp.IsRedirect() {
				t.Fatal("expected an error redirect to the client")
			}
			location := resp.Header.Get("Location")
			if !strings.HasPrefix(location, "https://client.example.com/cb") {
				t.Errorf("redirect = %q, want the registered callback", location)
			}
			if !strings.Contains(location, tt.wantParam) {
				t.Errorf("redirect = %q, want it to carry %q", location, tt.wantParam)
			}
		})
	}
}

func TestAuthorizeErrorRedirectCarriesState(t *testing.T) {
	model := newSessionModel()
	model.authorizationAllowed = func(ctx context.Context, req *Request) (bool, error) {
		return false, nil
	}
	h, err := NewAuthorizeHandler(model, 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewAuthorizeHandler: %v", err)
	}

	resp := NewResponse()
	req := authorizeRequest(url.Values{"state": {"xyz"}})
	if _, err := h.Handle(context.Background(), req, resp); err == nil {
		t.Fatal("expected an error")
	}
	uri, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect: %v", err)
	}
	if uri.Query().Get("state") != "xyz" {
		t.Errorf("redirect %q dropped the state parameter", resp.Header.Get("Location"))
	}
}

func TestAuthorizeErrorRedirectIsDeterministic(t *testing.T) {
	model := newSessionModel()
	model.authorizationAllowed = func(ctx context.Context, req *Request) (bool, error) {
		return false, nil
	}
	h, err := NewAuthorizeHandler(model, 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewAuthorizeHandler: %v", err)
	}

	locations := make(map[string]bool)
	for i := 0; i < 5; i++ {
		resp := NewResponse()
		req := authorizeRequest(url.Values{"state": {"xyz"}})
		if _, err := h.Handle(context.Background(), req, resp); err == nil {
			t.Fatal("expected an error")
		}
		locations[resp.Header.Get("Location")] = true
	}
	if len(locations) != 1 {
		t.Errorf("identical requests produced %d distinct error redirects", len(locations))
	}
}

func TestAuthorizeCodeFlow(t *testing.T) {
	model := newSessionModel()
	h, err := NewAuthorizeHandler(model, 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewAuthorizeHandler: %v", err)
	}

	resp := NewResponse()
	req := authorizeRequest(url.Values{"state": {"xyz"}, "scope": {"read"}})
	result, err := h.Handle(context.Background(), req, resp)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if result.Code == nil {
		t.Fatal("no authorization code in the result")
	}
	if result.Token != nil {
		t.Error("code flow produced a token")
	}
	uri, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect: %v", err)
	}
	q := uri.Query()
	if q.Get("code") != result.Code.Code {
		t.Errorf("redirect code = %q, want %q", q.Get("code"), result.Code.Code)
	}
	if q.Get("state") != "xyz" {
		t.Errorf("redirect state = %q, want %q", q.Get("state"), "xyz")
	}
	if uri.Fragment != "" {
		t.Errorf("code flow wrote a fragment: %q", uri.Fragment)
	}
}

func TestAuthorizeTokenFlow(t *testing.T) {
	model := newSessionModel()
	h, err := NewAuthorizeHandler(model, 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewAuthorizeHandler: %v", err)
	}

	resp := NewResponse()
	req := authorizeRequest(url.Values{"response_type": {"token"}, "state": {"xyz"}})
	result, err := h.Handle(context.Background(), req, resp)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if result.Token == nil {
		t.Fatal("no token in the result")
	}
	if result.Code != nil {
		t.Error("token flow produced an authorization code")
	}
	uri, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect: %v", err)
	}
	if uri.RawQuery != "" {
		t.Errorf("token flow wrote the query string: %q", uri.RawQuery)
	}
	frag, err := url.ParseQuery(uri.Fragment)
	if err != nil {
		t.Fatalf("parsing fragment: %v", err)
	}
	if frag.Get("access_token") != result.Token.AccessToken {
		t.Errorf("fragment access_token = %q, want %q", frag.Get("access_token"), result.Token.AccessToken)
	}
	if frag.Get("state") != "xyz" {
		t.Errorf("fragment state = %q, want %q", frag.Get("state"), "xyz")
	}
}

func TestAuthorizeFallsBackToBearerAuthentication(t *testing.T) {
	// A model without its own request authorizer identifies the resource
	// owner through the bearer token on the request.
	model := &mockModel{}
	h, err := NewAuthorizeHandler(model, 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewAuthorizeHandler: %v", err)
	}

	req := authorizeRequest(nil)
	req.Header = map[string][]string{"Authorization": {"Bearer user-session-token"}}
	resp := NewResponse()
	if _, err := h.Handle(context.Background(), req, resp); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	req = authorizeRequest(nil)
	resp = NewResponse()
	_, err = h.Handle(context.Background(), req, resp)
	wantOAuthError(t, err, KindUnauthorizedRequest, "Unauthorized request: no authentication given")
}

func TestAuthorizeInvalidStateParameter(t *testing.T) {
	h, err := NewAuthorizeHandler(newSessionModel(), 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewAuthorizeHandler: %v", err)
	}
	resp := NewResponse()
	_, err = h.Handle(context.Background(), authorizeRequest(url.Values{"state": {"bad\nstate"}}), resp)
	wantOAuthError(t, err, KindInvalidRequest, "Invalid parameter: state")
	if !resp.IsRedirect() {
		t.Error("state validation failure should still redirect to the validated client")
	}
}
