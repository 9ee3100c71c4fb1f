package grantflow

import (
	"context"
	"net/url"
	"testing"
	"time"
)

func TestNewPasswordGrant(t *testing.T) {
	t.Run("nil model", func(t *testing.T) {
		_, err := NewPasswordGrant(nil, time.Hour, 24*time.Hour)
		wantOAuthError(t, err, KindInvalidArgument, "Missing parameter: model")
	})

	t.Run("model without GetUser", func(t *testing.T) {
		_, err := NewPasswordGrant(&coreModel{}, time.Hour, 24*time.Hour)
		wantOAuthError(t, err, KindInvalidArgument, "Invalid argument: model does not implement GetUser")
	})
}

func TestPasswordGrantHandle(t *testing.T) {
	ctx := context.Background()
	client := testClient()

	credentials := func(username, password string) url.Values {
		v := url.Values{}
		if username != "" {
			v.Set("username", username)
		}
		if password != "" {
			v.Set("password", password)
		}
		return v
	}

	tests := []struct {
		name     string
		body     url.Values
		setup    func(*mockModel)
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "missing username",
			body:     credentials("", "secret"),
			wantKind: KindInvalidRequest,
			wantMsg:  "Missing parameter: username",
		},
		{
			name:     "missing password",
			body:     credentials("alice", ""),
			wantKind: KindInvalidRequest,
			wantMsg:  "Missing parameter: password",
		},
		{
			name:     "control characters in username",
			body:     credentials("ali\x01ce", "secret"),
			wantKind: KindInvalidRequest,
			wantMsg:  "Invalid parameter: username",
		},
		{
			name:     "control characters in password",
			body:     credentials("alice", "sec\x01ret"),
			wantKind: KindInvalidRequest,
			wantMsg:  "Invalid parameter: password",
		},
		{
			name: "wrong credentials",
			body: credentials("alice", "wrong"),
			setup: func(m *mockModel) {
				m.getUser = func(ctx context.Context, username, password string) (User, error) {
					return nil, nil
				}
			},
			wantKind: KindInvalidGrant,
			wantMsg:  "Invalid grant: user credentials are invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &mockModel{}
			if tt.setup != nil {
				tt.setup(model)
			}
			g, err := NewPasswordGrant(model, time.Hour, 24*time.Hour)
			if err != nil {
				t.Fatalf("NewPasswordGrant: %v", err)
			}
			_, err = g.Handle(ctx, bodyRequest(tt.body), client)
			wantOAuthError(t, err, tt.wantKind, tt.wantMsg)
		})
	}
}

func TestPasswordGrantIssuesTokenPair(t *testing.T) {
	var gotUsername, gotPassword string
	model := &mockModel{}
	model.getUser = func(ctx context.Context, username, password string) (User, error) {
		gotUsername, gotPassword = username, password
		return testUser(), nil
	}

	g, err := NewPasswordGrant(model, time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewPasswordGrant: %v", err)
	}
	token, err := g.Handle(context.Background(), bodyRequest(url.Values{
		"username": {"alice"},
		"password": {"p4ssw0rd"},
		"scope":    {"read"},
	}), testClient())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if gotUsername != "alice" || gotPassword != "p4ssw0rd" {
		t.Errorf("GetUser called with %q/%q, want alice/p4ssw0rd", gotUsername, gotPassword)
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		t.Error("password grant issued an incomplete token pair")
	}
	if token.Scope != "read" {
		t.Errorf("scope = %q, want %q", token.Scope, "read")
	}
}

func TestPasswordGrantAcceptsUnicodeCredentials(t *testing.T) {
	g, err := NewPasswordGrant(&mockModel{}, time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewPasswordGrant: %v", err)
	}
	if _, err := g.Handle(context.Background(), bodyRequest(url.Values{
		"username": {"Łukasz"},
		"password": {"pässwörd"},
	}), testClient()); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}
