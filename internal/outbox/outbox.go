// Package outbox coalesces outbound session mutations and publishes them
// from a single worker.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/debounce"
)

// Kind identifies an independently debounced class of mutation.
type Kind string

const (
	KindVolume    Kind = "volume"
	KindPlayState Kind = "play_state"
	KindShuffle   Kind = "shuffle"
	KindRepeat    Kind = "repeat"
	KindImmediate Kind = "immediate"
	KindBatch     Kind = "batch"
)

const queueSize = 64

// Publisher writes a session mutation to the backend.
type Publisher interface {
	PublishSessionMutation(ctx context.Context, m core.SessionMutation) error
}

// Windows holds the debounce window of each mutation kind.
type Windows struct {
	Volume    time.Duration
	PlayState time.Duration
	Shuffle   time.Duration
	Repeat    time.Duration
}

// DefaultWindows returns the standard debounce windows.
func DefaultWindows() Windows {
	return Windows{
		Volume:    500 * time.Millisecond,
		PlayState: 200 * time.Millisecond,
		Shuffle:   500 * time.Millisecond,
		Repeat:    500 * time.Millisecond,
	}
}

type envelope struct {
	kind     Kind
	mutation core.SessionMutation
}

// Outbox is a one-way channel of session mutations. Each kind has its own
// trailing-edge debouncer; firing one kind never cancels another.
type Outbox struct {
	publisher Publisher
	clock     clock.Clock
	logger    zerolog.Logger
	timeout   time.Duration

	debouncers map[Kind]*debounce.Debouncer
	queue      chan envelope

	mu     sync.Mutex
	closed bool
}

// Option configures an Outbox.
type Option func(*Outbox)

// WithClock sets the clock used for debounce windows and capture timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *Outbox) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Outbox) { o.logger = l }
}

// WithTimeout bounds each publish call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Outbox) { o.timeout = d }
}

// New returns an Outbox publishing through p.
func New(p Publisher, windows Windows, opts ...Option) *Outbox {
	o := &Outbox{
		publisher: p,
		clock:     clock.New(),
		logger:    zerolog.Nop(),
		queue:     make(chan envelope, queueSize),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "outbox").Logger()

	o.debouncers = map[Kind]*debounce.Debouncer{
		KindVolume:    debounce.New(o.clock, windows.Volume),
		KindPlayState: debounce.New(o.clock, windows.PlayState),
		KindShuffle:   debounce.New(o.clock, windows.Shuffle),
		KindRepeat:    debounce.New(o.clock, windows.Repeat),
	}
	return o
}

// Volume schedules a volume publish (0-100).
func (o *Outbox) Volume(percent int) {
	o.schedule(KindVolume, core.SessionMutation{Volume: core.Ptr(percent)})
}

// PlayState schedules a play-flag publish together with the position it was taken at.
func (o *Outbox) PlayState(playing bool, position time.Duration) {
	m := core.PositionMutation(position, o.clock.Now())
	m.IsPlaying = core.Ptr(playing)
	o.schedule(KindPlayState, m)
}

// Shuffle schedules a shuffle-mode publish.
func (o *Outbox) Shuffle(on bool) {
	o.schedule(KindShuffle, core.SessionMutation{Shuffle: core.Ptr(on)})
}

// Repeat schedules a repeat-mode publish.
func (o *Outbox) Repeat(mode core.RepeatMode) {
	o.schedule(KindRepeat, core.SessionMutation{RepeatMode: core.Ptr(mode)})
}

// Position publishes the position immediately with its capture timestamp.
func (o *Outbox) Position(position time.Duration) {
	o.Send(core.PositionMutation(position, o.clock.Now()))
}

// Send enqueues m without debouncing.
func (o *Outbox) Send(m core.SessionMutation) {
	o.enqueue(envelope{kind: KindImmediate, mutation: m})
}

func (o *Outbox) schedule(kind Kind, m core.SessionMutation) {
	d, ok := o.debouncers[kind]
	if !ok {
		o.Send(m)
		return
	}
	d.Schedule(func() {
		o.enqueue(envelope{kind: kind, mutation: m})
	})
}

// enqueue never blocks the caller; a full queue drops the mutation.
func (o *Outbox) enqueue(e envelope) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || e.mutation.IsEmpty() {
		return
	}
	select {
	case o.queue <- e:
	default:
		o.logger.Warn().Str("kind", string(e.kind)).Msg("outbox full, dropping mutation")
	}
}

// Run publishes queued mutations until ctx is cancelled or the outbox is closed.
// Mutations that queued up behind a slow publish go out as one.
// Publish failures are logged and not retried.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-o.queue:
			if !ok {
				return nil
			}
			o.publish(ctx, o.coalesce(e))
		}
	}
}

// coalesce merges every envelope already waiting in the queue into e. Later
// fields win.
func (o *Outbox) coalesce(e envelope) envelope {
	for {
		select {
		case next, ok := <-o.queue:
			if !ok {
				return e
			}
			e.mutation = e.mutation.Merge(next.mutation)
			if next.kind != e.kind {
				e.kind = KindBatch
			}
		default:
			return e
		}
	}
}

func (o *Outbox) publish(ctx context.Context, e envelope) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	if err := o.publisher.PublishSessionMutation(ctx, e.mutation); err != nil {
		o.logger.Warn().Err(err).Str("kind", string(e.kind)).Msg("publish session mutation failed")
		return
	}
	o.logger.Debug().Str("kind", string(e.kind)).Msg("published session mutation")
}

// Flush moves every pending debounced mutation onto the queue immediately.
func (o *Outbox) Flush() {
	for _, d := range o.debouncers {
		d.Flush()
	}
}

// Close stops all debouncers and closes the queue. Pending debounced
// mutations are dropped; call Flush first to keep them.
func (o *Outbox) Close() {
	for _, d := range o.debouncers {
		d.Stop()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
}
