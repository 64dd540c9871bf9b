package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tandemerrors "github.com/tessro/tandem/internal/errors"
)

const (
	amzJSONContentType  = "application/x-amz-json-1.1"
	initiateAuthTarget  = "AWSCognitoIdentityProviderService.InitiateAuth"
	globalSignOutTarget = "AWSCognitoIdentityProviderService.GlobalSignOut"
)

// Cognito talks to a Cognito user pool's JSON RPC endpoint.
type Cognito struct {
	endpoint   string
	clientID   string
	httpClient *http.Client
	now        func() time.Time
}

// NewCognito returns a client for the user pool app client clientID.
func NewCognito(endpoint, clientID string) *Cognito {
	return &Cognito{
		endpoint:   endpoint,
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type authenticationResult struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	TokenType    string `json:"TokenType"`
	ExpiresIn    int    `json:"ExpiresIn"`
}

type initiateAuthResponse struct {
	AuthenticationResult *authenticationResult `json:"AuthenticationResult"`
	ChallengeName        string                `json:"ChallengeName"`
}

// CognitoError is an error response from the user pool.
type CognitoError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *CognitoError) Error() string {
	return fmt.Sprintf("auth error %d: %s: %s", e.Status, e.Type, e.Message)
}

// IsNotAuthorized reports whether the credentials or refresh token were rejected.
func (e *CognitoError) IsNotAuthorized() bool {
	return strings.HasSuffix(e.Type, "NotAuthorizedException")
}

// SignIn exchanges a username and password for tokens.
func (c *Cognito) SignIn(ctx context.Context, username, password string) (*Token, error) {
	token, err := c.initiateAuth(ctx, "USER_PASSWORD_AUTH", map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	})
	if err != nil {
		return nil, err
	}
	token.Username = username
	return token, nil
}

// Refresh exchanges a refresh token for new id and access tokens.
func (c *Cognito) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	return c.initiateAuth(ctx, "REFRESH_TOKEN_AUTH", map[string]string{
		"REFRESH_TOKEN": refreshToken,
	})
}

// SignOut invalidates every token issued for the access token's user.
func (c *Cognito) SignOut(ctx context.Context, accessToken string) error {
	return c.call(ctx, globalSignOutTarget, map[string]string{"AccessToken": accessToken}, nil)
}

func (c *Cognito) initiateAuth(ctx context.Context, flow string, params map[string]string) (*Token, error) {
	req := initiateAuthRequest{AuthFlow: flow, ClientID: c.clientID, AuthParameters: params}

	var resp initiateAuthResponse
	if err := c.call(ctx, initiateAuthTarget, req, &resp); err != nil {
		return nil, err
	}
	if resp.AuthenticationResult == nil {
		if resp.ChallengeName != "" {
			return nil, fmt.Errorf("unsupported auth challenge %s", resp.ChallengeName)
		}
		return nil, fmt.Errorf("auth response carried no tokens")
	}

	r := resp.AuthenticationResult
	fallback := c.now().Add(time.Duration(r.ExpiresIn) * time.Second)
	return &Token{
		IDToken:      r.IDToken,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		ExpiresAt:    expiryFromJWT(r.IDToken, fallback),
	}, nil
}

func (c *Cognito) call(ctx context.Context, target string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", amzJSONContentType)
	req.Header.Set("X-Amz-Target", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: auth request failed: %v", tandemerrors.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		cerr := &CognitoError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, cerr) != nil || cerr.Type == "" {
			cerr.Type = "UnknownError"
			cerr.Message = strings.TrimSpace(string(respBody))
		}
		if cerr.IsNotAuthorized() {
			return fmt.Errorf("%w: %w", tandemerrors.ErrNotAuthenticated, cerr)
		}
		return cerr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
