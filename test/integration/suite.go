// Package integration exercises the full HTTP surface of the engine: real
// requests against an httptest server, driven by the golang.org/x/oauth2
// client so the wire format is validated by an independent implementation.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/averlon/oauth2-engine/internal/grantflow"
)

const (
	clientID     = "integration-client"
	clientSecret = "integration-secret"
	username     = "alice"
	password     = "p4ssw0rd"

	// sessionToken identifies the resource owner at the authorize endpoint.
	sessionToken = "integration-session-token"
)

// Suite is one engine instance behind an httptest server.
type Suite struct {
	Server *httptest.Server
	Model  *grantflow.MemoryModel
	Engine *grantflow.Server
}

// NewSuite seeds an in-memory model with a client, a resource owner and a
// session token, and serves the engine over HTTP.
func NewSuite(t *testing.T) *Suite {
	t.Helper()

	model := grantflow.NewMemoryModel()
	model.AddClient(&grantflow.Client{
		ID:     clientID,
		Secret: clientSecret,
		Grants: []string{
			grantflow.GrantAuthorizationCode,
			grantflow.GrantClientCredentials,
			grantflow.GrantPassword,
			grantflow.GrantRefreshToken,
		},
		RedirectURIs: []string{"https://client.example.com/cb"},
	})
	user := map[string]any{"id": "user-1"}
	model.AddUser(username, password, user)
	model.SetClientUser(clientID, user)

	engine, err := grantflow.NewServer(model,
		grantflow.WithAccessTokenLifetime(time.Hour),
		grantflow.WithRefreshTokenLifetime(24*time.Hour),
		grantflow.WithAuthorizationCodeLifetime(5*time.Minute),
	)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}

	suite := &Suite{Model: model, Engine: engine}
	if _, err := model.SaveToken(context.Background(), &grantflow.Token{
		AccessToken:          sessionToken,
		AccessTokenExpiresAt: time.Now().Add(time.Hour),
	}, &grantflow.Client{ID: clientID}, user); err != nil {
		t.Fatalf("seeding session token: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", suite.handleToken)
	mux.HandleFunc("/authorize", suite.handleAuthorize)
	suite.Server = httptest.NewServer(mux)
	t.Cleanup(suite.Server.Close)
	return suite
}

func (s *Suite) handleToken(w http.ResponseWriter, r *http.Request) {
	req, err := grantflow.NewRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := grantflow.NewResponse()
	_, _ = s.Engine.Token(r.Context(), req, resp)
	_ = resp.WriteTo(w)
}

func (s *Suite) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	req, err := grantflow.NewRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := grantflow.NewResponse()
	if _, handleErr := s.Engine.Authorize(r.Context(), req, resp); handleErr != nil && !resp.IsRedirect() {
		var oe *grantflow.Error
		if errors.As(handleErr, &oe) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(oe.Status())
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             string(oe.Kind()),
				"error_description": oe.Error(),
			})
			return
		}
		http.Error(w, handleErr.Error(), http.StatusInternalServerError)
		return
	}
	_ = resp.WriteTo(w)
}

// noRedirectClient returns an HTTP client that surfaces redirects instead of
// following them, so tests can inspect the Location header.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 10 * time.Second,
	}
}
