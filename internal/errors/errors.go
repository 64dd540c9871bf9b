package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrTokenExpired       = errors.New("session expired")
	ErrNoCurrentTrack     = errors.New("no current track")
	ErrTrackNotFound      = errors.New("track not found")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrResolveFailed      = errors.New("could not resolve playable url")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrRateLimited        = errors.New("rate limited")
	ErrNetworkError       = errors.New("network error")
	ErrServerError        = errors.New("server error")
	ErrTimeout            = errors.New("request timeout")
	ErrConfigNotFound     = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// TandemError wraps an error with a user-friendly suggestion.
type TandemError struct {
	Err        error
	Suggestion string
}

func (e *TandemError) Error() string {
	return e.Err.Error()
}

func (e *TandemError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &TandemError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var tandemErr *TandemError
	if errors.As(err, &tandemErr) && tandemErr.Suggestion != "" {
		return tandemErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrTokenExpired),
		strings.Contains(errStr, "not authenticated"), strings.Contains(errStr, "unauthorized"):
		return "Run 'tandem auth login' to sign in"

	case errors.Is(err, ErrNoCurrentTrack):
		return "Start something with 'tandem play' first"

	case errors.Is(err, ErrTrackNotFound), errors.Is(err, ErrResolveFailed):
		return "Check the track and artist ids, or try again in a moment"

	case errors.Is(err, ErrDeviceNotFound):
		return "Run 'tandem devices' to see known devices"

	case errors.Is(err, ErrRateLimited), strings.Contains(errStr, "rate limit"):
		return "Too many requests. Wait a moment and try again"

	case errors.Is(err, ErrNetworkError), errors.Is(err, ErrTimeout),
		strings.Contains(errStr, "timeout"), strings.Contains(errStr, "connection refused"):
		return "Check your internet connection and try again"

	case errors.Is(err, ErrConfigNotFound), errors.Is(err, ErrInvalidConfig):
		return "Run 'tandem config path' and check the file, or set TANDEM_GRAPHQL_URL"

	case errors.Is(err, ErrServerError), strings.Contains(errStr, "server error"):
		return "The service is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
