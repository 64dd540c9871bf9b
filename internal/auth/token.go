package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryBuffer treats a token as expired slightly before its real expiry.
const expiryBuffer = 60 * time.Second

// Token holds the hosted-auth session tokens.
type Token struct {
	IDToken      string    `json:"id_token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	Username     string    `json:"username,omitempty"`
}

// IsExpired returns true if the token has expired or will expire within the buffer.
func (t *Token) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt reports expiry relative to now.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return now.Add(expiryBuffer).After(t.ExpiresAt)
}

// Claims returns the unverified claims of the id token. The backend verifies
// the signature; the client only reads expiry and identity.
func (t *Token) Claims() (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.IDToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}
	return claims, nil
}

// Subject returns the user's "sub" claim, or "" if the token cannot be read.
func (t *Token) Subject() string {
	claims, err := t.Claims()
	if err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// expiryFromJWT returns the "exp" claim of raw, or fallback when absent.
func expiryFromJWT(raw string, fallback time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}
