package device

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/core"
)

// DefaultHeartbeatInterval is how often this device advertises itself.
const DefaultHeartbeatInterval = 5 * time.Minute

// HeartbeatPublisher writes a liveness ping for a device.
type HeartbeatPublisher interface {
	PublishHeartbeat(ctx context.Context, d core.Device) error
}

// Heartbeat periodically publishes this device's identity.
type Heartbeat struct {
	pub      HeartbeatPublisher
	device   core.Device
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	logger   zerolog.Logger
	onTick   func(err error)
}

// HeartbeatOption configures a Heartbeat.
type HeartbeatOption func(*Heartbeat)

// WithHeartbeatClock sets the clock driving the interval.
func WithHeartbeatClock(c clock.Clock) HeartbeatOption {
	return func(h *Heartbeat) { h.clock = c }
}

// WithHeartbeatLogger sets the logger.
func WithHeartbeatLogger(l zerolog.Logger) HeartbeatOption {
	return func(h *Heartbeat) { h.logger = l }
}

// WithHeartbeatTimeout bounds each publish.
func WithHeartbeatTimeout(d time.Duration) HeartbeatOption {
	return func(h *Heartbeat) { h.timeout = d }
}

// WithOnTick runs fn after every ping attempt with its result.
func WithOnTick(fn func(err error)) HeartbeatOption {
	return func(h *Heartbeat) { h.onTick = fn }
}

// NewHeartbeat returns a heartbeat for d.
func NewHeartbeat(pub HeartbeatPublisher, d core.Device, interval time.Duration, opts ...HeartbeatOption) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	h := &Heartbeat{
		pub:      pub,
		device:   d,
		interval: interval,
		clock:    clock.New(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("component", "heartbeat").Str("device_id", d.ID).Logger()
	return h
}

// Run pings once immediately and then on every interval until ctx is done.
// Failures are logged and never stop the loop.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	h.ping(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.ping(ctx)
		}
	}
}

func (h *Heartbeat) ping(ctx context.Context) {
	pctx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	err := h.pub.PublishHeartbeat(pctx, h.device)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn().Err(err).Msg("device ping failed")
		}
	} else {
		h.logger.Debug().Msg("device ping sent")
	}
	if h.onTick != nil {
		h.onTick(err)
	}
}
