// Package auth manages the hosted-auth session used to call the backend.
package auth

import (
	"context"
	"fmt"
	"sync"

	tandemerrors "github.com/tessro/tandem/internal/errors"
)

// Refresher exchanges a refresh token for a new token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Source hands out a valid id token, refreshing and persisting it as needed.
type Source struct {
	storage   *TokenStorage
	refresher Refresher

	mu    sync.Mutex
	token *Token
}

// NewSource returns a Source backed by storage.
func NewSource(storage *TokenStorage, refresher Refresher) *Source {
	return &Source{storage: storage, refresher: refresher}
}

// Reload rereads the stored token, discarding the cached one.
func (s *Source) Reload() error {
	token, err := s.storage.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// SetToken stores and caches token.
func (s *Source) SetToken(token *Token) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return s.storage.Save(token)
}

// HasToken returns true if there's any token (even if expired).
func (s *Source) HasToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// Current returns a copy of the cached token, or nil.
func (s *Source) Current() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

// Token returns a valid id token for the Authorization header.
func (s *Source) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		token, err := s.storage.Load()
		if err != nil {
			return "", err
		}
		if token == nil {
			return "", tandemerrors.ErrNotAuthenticated
		}
		s.token = token
	}

	if !s.token.IsExpired() {
		return s.token.IDToken, nil
	}

	if s.token.RefreshToken == "" || s.refresher == nil {
		return "", tandemerrors.ErrTokenExpired
	}

	fresh, err := s.refresher.Refresh(ctx, s.token.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	// Refresh responses omit the refresh token
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = s.token.RefreshToken
	}
	if fresh.Username == "" {
		fresh.Username = s.token.Username
	}

	s.token = fresh
	if err := s.storage.Save(fresh); err != nil {
		return "", err
	}
	return fresh.IDToken, nil
}
