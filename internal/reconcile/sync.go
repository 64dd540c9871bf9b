package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

// Bootstrapper fetches the pull-based starting state.
type Bootstrapper interface {
	FetchCloudState(ctx context.Context) (*core.CloudState, error)
	FetchDevices(ctx context.Context) ([]core.Device, error)
}

// Subscriber opens the push channels. Each returns a function that
// unsubscribes.
type Subscriber interface {
	SubscribeSessionEvents(ctx context.Context, onEvent func(core.CloudState), onError func(error)) (func(), error)
	SubscribeDevicePings(ctx context.Context, onEvent func(core.Device), onError func(error)) (func(), error)
}

// DeviceObserver records device registry updates.
type DeviceObserver interface {
	Replace(devices []core.Device)
	Observe(d core.Device)
}

// Backoff bounds for reconnecting after a lost connection.
const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

// Sync keeps the local session connected to the cloud session. Each
// connection opens both push subscriptions, then fetches the device registry
// and the session snapshot. Pushes that arrive during the fetch are held
// and applied after the snapshot, through the same Reconciler, one at a time
// and in arrival order.
type Sync struct {
	reconciler *Reconciler
	boot       Bootstrapper
	sub        Subscriber
	devices    DeviceObserver
	logger     zerolog.Logger
	clock      clock.Clock
	minBackoff time.Duration
	maxBackoff time.Duration

	restart chan struct{}
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithSyncClock sets the clock used for reconnect backoff.
func WithSyncClock(c clock.Clock) SyncOption {
	return func(s *Sync) { s.clock = c }
}

// WithBackoff sets the first and the largest reconnect delay.
func WithBackoff(first, limit time.Duration) SyncOption {
	return func(s *Sync) {
		s.minBackoff = first
		s.maxBackoff = limit
	}
}

// NewSync returns a sync loop feeding r.
func NewSync(r *Reconciler, boot Bootstrapper, sub Subscriber, devices DeviceObserver, logger zerolog.Logger, opts ...SyncOption) *Sync {
	s := &Sync{
		reconciler: r,
		boot:       boot,
		sub:        sub,
		devices:    devices,
		logger:     logger.With().Str("component", "sync").Logger(),
		clock:      clock.New(),
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		restart:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxBackoff < s.minBackoff {
		s.maxBackoff = s.minBackoff
	}
	return s
}

// Restart tears down the current connection and opens a new one. It is
// called when the signed-in session changes.
func (s *Sync) Restart() {
	select {
	case s.restart <- struct{}{}:
	default:
	}
}

// Run connects and stays connected until ctx is done. A connection that
// ends on its own is reopened after a delay that doubles on each failure up
// to the maximum; Restart reconnects at once.
func (s *Sync) Run(ctx context.Context) error {
	backoff := s.minBackoff
	for {
		connCtx, cancel := context.WithCancel(ctx)
		started := s.clock.Now()
		result := make(chan error, 1)
		go func() {
			result <- s.connect(connCtx)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-result
			return nil
		case <-s.restart:
			s.logger.Info().Msg("session changed, reconnecting")
			cancel()
			<-result
			backoff = s.minBackoff
			continue
		case err := <-result:
			cancel()
			if ctx.Err() != nil {
				return nil
			}
			if s.clock.Since(started) > s.maxBackoff {
				backoff = s.minBackoff
			}
			s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("connection lost")
		}

		switch s.wait(ctx, backoff) {
		case waitCancelled:
			return nil
		case waitRestarted:
			backoff = s.minBackoff
		case waitElapsed:
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
		}
	}
}

type waitResult int

const (
	waitElapsed waitResult = iota
	waitRestarted
	waitCancelled
)

func (s *Sync) wait(ctx context.Context, d time.Duration) waitResult {
	t := s.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return waitCancelled
	case <-s.restart:
		s.logger.Info().Msg("session changed, reconnecting")
		return waitRestarted
	case <-t.C:
		return waitElapsed
	}
}

// connect runs one connection until ctx is done or a subscription ends.
// It returns nil only when ctx is done.
func (s *Sync) connect(ctx context.Context) error {
	states := make(chan core.CloudState, 64)
	lost := make(chan error, 1)
	enqueue := func(cs core.CloudState) {
		select {
		case states <- cs:
		case <-ctx.Done():
		}
	}
	onError := func(name string) func(error) {
		return func(err error) {
			if errors.Is(err, tandemerrors.ErrSubscriptionClosed) {
				select {
				case lost <- fmt.Errorf("%s: %w", name, err):
				default:
				}
				return
			}
			s.logger.Warn().Err(err).Str("subscription", name).Msg("subscription error")
		}
	}

	var unsubs []func()
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	unsub, err := s.sub.SubscribeSessionEvents(ctx, enqueue, onError("session events"))
	if err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}
	unsubs = append(unsubs, unsub)

	unsub, err = s.sub.SubscribeDevicePings(ctx, s.devices.Observe, onError("device pings"))
	if err != nil {
		return fmt.Errorf("subscribe to device pings: %w", err)
	}
	unsubs = append(unsubs, unsub)

	if devices, err := s.boot.FetchDevices(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("fetch devices failed")
	} else {
		s.devices.Replace(devices)
	}

	if cs, err := s.boot.FetchCloudState(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("fetch cloud state failed")
	} else if cs != nil {
		s.reconciler.Apply(ctx, *cs)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-lost:
			return err
		case cs := <-states:
			s.reconciler.Apply(ctx, cs)
		}
	}
}
