package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	tandemerrors "github.com/tessro/tandem/internal/errors"
)

func TestCognito_SignIn(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	idToken := signedJWT(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Amz-Target"); got != initiateAuthTarget {
			t.Errorf("X-Amz-Target = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != amzJSONContentType {
			t.Errorf("Content-Type = %q", got)
		}

		var req initiateAuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.AuthFlow != "USER_PASSWORD_AUTH" || req.ClientID != "client-1" {
			t.Errorf("request = %+v", req)
		}
		if req.AuthParameters["USERNAME"] != "ada" || req.AuthParameters["PASSWORD"] != "hunter2" {
			t.Errorf("AuthParameters = %v", req.AuthParameters)
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"AuthenticationResult": map[string]interface{}{
				"AccessToken":  "access",
				"IdToken":      idToken,
				"RefreshToken": "refresh",
				"TokenType":    "Bearer",
				"ExpiresIn":    3600,
			},
		})
	}))
	defer server.Close()

	c := NewCognito(server.URL, "client-1")
	token, err := c.SignIn(context.Background(), "ada", "hunter2")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if token.IDToken != idToken || token.RefreshToken != "refresh" {
		t.Errorf("token = %+v", token)
	}
	if !token.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v from the id token", token.ExpiresAt, exp)
	}
	if token.Username != "ada" {
		t.Errorf("Username = %q", token.Username)
	}
}

func TestCognito_Refresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req initiateAuthRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.AuthFlow != "REFRESH_TOKEN_AUTH" || req.AuthParameters["REFRESH_TOKEN"] != "r1" {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"AuthenticationResult":{"IdToken":"opaque","AccessToken":"a2","ExpiresIn":60}}`))
	}))
	defer server.Close()

	c := NewCognito(server.URL, "client-1")
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	token, err := c.Refresh(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !token.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want ExpiresIn fallback", token.ExpiresAt)
	}
	if token.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty", token.RefreshToken)
	}
}

func TestCognito_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantUnauth bool
	}{
		{"bad password", 400, `{"__type":"NotAuthorizedException","message":"Incorrect username or password."}`, true},
		{"unknown client", 400, `{"__type":"ResourceNotFoundException","message":"User pool client does not exist."}`, false},
		{"garbage", 502, `upstream exploded`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewCognito(server.URL, "c").SignIn(context.Background(), "u", "p")
			if err == nil {
				t.Fatal("SignIn() expected error")
			}
			if got := errors.Is(err, tandemerrors.ErrNotAuthenticated); got != tt.wantUnauth {
				t.Errorf("errors.Is(ErrNotAuthenticated) = %v, want %v (err = %v)", got, tt.wantUnauth, err)
			}
			var cerr *CognitoError
			if !errors.As(err, &cerr) {
				t.Errorf("error %v is not a *CognitoError", err)
			}
		})
	}
}

func TestCognito_Challenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ChallengeName":"NEW_PASSWORD_REQUIRED","Session":"s"}`))
	}))
	defer server.Close()

	_, err := NewCognito(server.URL, "c").SignIn(context.Background(), "u", "p")
	if err == nil {
		t.Fatal("SignIn() expected error for challenge")
	}
}
