// Package gateway is the request/response and push-subscription wrapper
// around the backend's GraphQL API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	tandemerrors "github.com/tessro/tandem/internal/errors"
)

const (
	// Retry configuration for transient errors
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// TokenSource supplies the value of the Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is a GraphQL-over-HTTP client.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenSource
	timeout    time.Duration
	retryWait  time.Duration
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every call, retries included. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the GraphQL endpoint.
func New(endpoint string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		retryWait:  baseRetryWait,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "gateway").Logger()
	return c
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type graphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage    `json:"data"`
	Errors []GraphQLErrorItem `json:"errors"`
}

// Do executes a GraphQL operation and decodes its data into result.
func (c *Client) Do(ctx context.Context, operation, query string, variables map[string]interface{}, result interface{}) error {
	if c.endpoint == "" {
		return tandemerrors.WithSuggestion(
			fmt.Errorf("%w: no graphql endpoint configured", tandemerrors.ErrInvalidConfig),
			"Set backend.graphql_url in the config file or TANDEM_GRAPHQL_URL",
		)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables, OperationName: operation})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	c.logger.Debug().Str("operation", operation).RawJSON("variables", mustJSON(variables)).Msg("graphql request")

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			c.logger.Debug().Int("attempt", attempt).Dur("wait", wait).AnErr("last_error", lastErr).Msg("retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", tandemerrors.ErrTimeout, ctx.Err())
			}
			lastErr = fmt.Errorf("%w: %v", tandemerrors.ErrNetworkError, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		c.logger.Debug().Str("operation", operation).Int("status", resp.StatusCode).Msg("graphql response")

		// Retry on 5xx server errors
		if resp.StatusCode >= 500 {
			lastErr = newAPIError(resp.StatusCode, respBody)
			continue
		}

		// Don't retry 4xx errors
		if resp.StatusCode >= 400 {
			return newAPIError(resp.StatusCode, respBody)
		}

		var gqlResp graphQLResponse
		if err := json.Unmarshal(respBody, &gqlResp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if len(gqlResp.Errors) > 0 {
			return &GraphQLError{Operation: operation, Errors: gqlResp.Errors}
		}

		if result != nil && len(gqlResp.Data) > 0 && string(gqlResp.Data) != "null" {
			if err := json.Unmarshal(gqlResp.Data, result); err != nil {
				return fmt.Errorf("failed to parse %s data: %w", operation, err)
			}
		}
		return nil
	}

	return fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

func mustJSON(v interface{}) []byte {
	if v == nil {
		return []byte("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

// APIError is a non-2xx HTTP response from the GraphQL endpoint.
type APIError struct {
	Status  int
	Message string
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string             `json:"message"`
		Errors  []GraphQLErrorItem `json:"errors"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case len(payload.Errors) > 0:
			msg = payload.Errors[0].Message
		}
	}
	return &APIError{Status: status, Message: msg}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the shared error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.IsUnauthorized():
		return tandemerrors.ErrNotAuthenticated
	case e.IsRateLimited():
		return tandemerrors.ErrRateLimited
	case e.IsServerError():
		return tandemerrors.ErrServerError
	}
	return nil
}

// IsUnauthorized returns true for 401 and 403 responses.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsRateLimited returns true for 429 responses.
func (e *APIError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// IsServerError returns true for 5xx responses.
func (e *APIError) IsServerError() bool {
	return e.Status >= 500
}

// GraphQLErrorItem is one entry of a GraphQL "errors" array.
type GraphQLErrorItem struct {
	Message   string        `json:"message"`
	ErrorType string        `json:"errorType,omitempty"`
	Path      []interface{} `json:"path,omitempty"`
}

// GraphQLError is a 200 response that carried GraphQL errors.
type GraphQLError struct {
	Operation string
	Errors    []GraphQLErrorItem
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, item := range e.Errors {
		msgs[i] = item.Message
	}
	return fmt.Sprintf("%s: %s", e.Operation, strings.Join(msgs, "; "))
}

// Unwrap maps AppSync error types onto the shared error taxonomy.
func (e *GraphQLError) Unwrap() error {
	for _, item := range e.Errors {
		if item.ErrorType == "Unauthorized" || strings.Contains(item.ErrorType, "UnauthorizedException") {
			return tandemerrors.ErrNotAuthenticated
		}
	}
	return nil
}

// IsGraphQLError reports whether err carries GraphQL errors.
func IsGraphQLError(err error) bool {
	var gqlErr *GraphQLError
	return errors.As(err, &gqlErr)
}
