package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tessro/tandem/internal/auth"
	"github.com/tessro/tandem/internal/device"
	"github.com/tessro/tandem/internal/engine"
	tandemerrors "github.com/tessro/tandem/internal/errors"
	"github.com/tessro/tandem/internal/gateway"
	"github.com/tessro/tandem/internal/store"
)

// interruptible returns a context cancelled on Ctrl+C or SIGTERM.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newTokenSource() (*auth.Source, *auth.TokenStorage, error) {
	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token storage: %w", err)
	}
	src := auth.NewSource(storage, auth.NewCognito(cfg.Backend.AuthURL, cfg.Backend.UserPoolClientID))
	if err := src.Reload(); err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	return src, storage, nil
}

// newGateway returns a signed-in GraphQL client for one-shot commands.
func newGateway() (*gateway.Client, error) {
	if cfg.Backend.GraphQLURL == "" {
		return nil, fmt.Errorf("%w: backend.graphql_url is not set", tandemerrors.ErrInvalidConfig)
	}
	src, _, err := newTokenSource()
	if err != nil {
		return nil, err
	}
	if !src.HasToken() {
		return nil, tandemerrors.ErrNotAuthenticated
	}
	return gateway.New(cfg.Backend.GraphQLURL, src,
		gateway.WithTimeout(cfg.Sync.RequestTimeout.Duration),
		gateway.WithLogger(logger),
	), nil
}

// openEngine builds the full client. The caller must Close it.
func openEngine(ctx context.Context, opts ...engine.Option) (*engine.Engine, error) {
	if cfg.Backend.GraphQLURL == "" {
		return nil, fmt.Errorf("%w: backend.graphql_url is not set", tandemerrors.ErrInvalidConfig)
	}
	opts = append([]engine.Option{engine.WithLogger(logger)}, opts...)
	return engine.New(ctx, cfg, opts...)
}

// startEngine runs e until ctx is done. The returned function blocks until
// it has stopped and flushed.
func startEngine(ctx context.Context, e *engine.Engine) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.Run(ctx); err != nil {
			logger.Warn().Err(err).Msg("engine stopped")
		}
	}()
	return func() { <-done }
}

// localDeviceID returns this device's persisted id, creating it on first use.
func localDeviceID(ctx context.Context) (string, error) {
	db, err := store.Open(cfg.Data.Dir)
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()
	return device.LoadOrCreateID(ctx, db)
}
