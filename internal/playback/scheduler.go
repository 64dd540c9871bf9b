// Package playback implements the dual-buffer playback scheduler: transport
// operations over two output handles, lookahead preparation of the next
// track and timed crossfades between them.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/audio"
	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

// PrimeChecker answers whether this device may emit sound right now.
type PrimeChecker interface {
	IsPrime() bool
	PrimeDeviceID() string
}

// Resolver turns a track into a short-lived playable URL.
type Resolver interface {
	ResolvePlayableURL(ctx context.Context, req core.PlayRequest) (string, error)
}

// MutationSink receives the session changes this device originates.
// Implementations must not block.
type MutationSink interface {
	Volume(percent int)
	PlayState(playing bool, position time.Duration)
	Shuffle(on bool)
	Repeat(mode core.RepeatMode)
}

// Timing holds the ramp and lookahead parameters.
type Timing struct {
	FadeDuration      time.Duration
	FadeSteps         int
	CrossfadeDuration time.Duration
	CrossfadeSteps    int
	PrepareWindow     time.Duration
	PrepareFloor      time.Duration
	CrossfadeWindow   time.Duration
	RestartThreshold  time.Duration
	TickInterval      time.Duration
}

// DefaultTiming returns the standard timing.
func DefaultTiming() Timing {
	return Timing{
		FadeDuration:      200 * time.Millisecond,
		FadeSteps:         10,
		CrossfadeDuration: 5 * time.Second,
		CrossfadeSteps:    50,
		PrepareWindow:     20 * time.Second,
		PrepareFloor:      5 * time.Second,
		CrossfadeWindow:   10 * time.Second,
		RestartThreshold:  3 * time.Second,
		TickInterval:      250 * time.Millisecond,
	}
}

// Scheduler owns the two output handles and the playback session.
//
// The mutex guards session fields and handle mutations; it is never held
// across a network call or a ramp sleep. Three counters detect superseded
// work: playGen aborts a running crossfade when a track is played directly,
// trackGen marks resolutions that finished after the current track changed,
// and fadeGen lets a newer toggle cut short an older fade. queueGen marks
// preparations made stale by a shuffle or repeat change.
type Scheduler struct {
	handles  *audio.Pair
	resolver Resolver
	prime    PrimeChecker
	sink     MutationSink
	clock    clock.Clock
	logger   zerolog.Logger
	timing   Timing

	onTrackStarted func(core.Track, core.PlaybackContext)

	mu          sync.Mutex
	track       *core.Track
	pctx        core.PlaybackContext
	queue       *core.PlayQueue
	index       int
	prepared    *core.PreparedItem
	isPlaying   bool
	loading     bool
	exhausted   bool
	position    time.Duration
	duration    time.Duration
	volume      float64
	shuffle     bool
	repeat      core.RepeatMode
	crossfading bool
	preparing   bool
	xfStep      int

	playGen  uint64
	trackGen uint64
	fadeGen  uint64
	queueGen uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for ramps and the monitor.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithTiming sets ramp and lookahead parameters.
func WithTiming(t Timing) Option {
	return func(s *Scheduler) { s.timing = t }
}

// WithPrime sets the prime check. Without one the device is always prime.
func WithPrime(p PrimeChecker) Option {
	return func(s *Scheduler) { s.prime = p }
}

// WithSink sets where outbound mutations go.
func WithSink(m MutationSink) Option {
	return func(s *Scheduler) { s.sink = m }
}

// WithVolume sets the initial stored volume (0.0-1.0).
func WithVolume(v float64) Option {
	return func(s *Scheduler) { s.volume = core.ClampVolume(v) }
}

// WithTrackStarted registers a callback run whenever a track becomes current
// through local playback.
func WithTrackStarted(fn func(core.Track, core.PlaybackContext)) Option {
	return func(s *Scheduler) { s.onTrackStarted = fn }
}

// New returns a scheduler over handles.
func New(handles *audio.Pair, resolver Resolver, opts ...Option) *Scheduler {
	s := &Scheduler{
		handles:  handles,
		resolver: resolver,
		prime:    alwaysPrime{},
		sink:     nopSink{},
		clock:    clock.New(),
		logger:   zerolog.Nop(),
		timing:   DefaultTiming(),
		queue:    core.NewPlayQueue(nil),
		index:    -1,
		volume:   0.5,
		repeat:   core.RepeatNone,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timing.FadeSteps < 1 {
		s.timing.FadeSteps = 1
	}
	if s.timing.CrossfadeSteps < 1 {
		s.timing.CrossfadeSteps = 1
	}
	s.logger = s.logger.With().Str("component", "scheduler").Logger()
	return s
}

// ActionOption modifies a single transport action.
type ActionOption func(*actionConfig)

type actionConfig struct {
	noEcho bool
}

// WithoutEcho suppresses the outbound mutation. It is used when the action
// applies a change that arrived from the session.
func WithoutEcho() ActionOption {
	return func(c *actionConfig) { c.noEcho = true }
}

func applyActionOptions(opts []ActionOption) actionConfig {
	var c actionConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type alwaysPrime struct{}

func (alwaysPrime) IsPrime() bool         { return true }
func (alwaysPrime) PrimeDeviceID() string { return "" }

type nopSink struct{}

func (nopSink) Volume(int)                    {}
func (nopSink) PlayState(bool, time.Duration) {}
func (nopSink) Shuffle(bool)                  {}
func (nopSink) Repeat(core.RepeatMode)        {}

// effective scales v to what this device may emit at this instant.
func (s *Scheduler) effective(v float64) float64 {
	if !s.prime.IsPrime() {
		return 0
	}
	return v
}

// Play builds a queue from tracks and starts tracks[index].
func (s *Scheduler) Play(ctx context.Context, pctx core.PlaybackContext, tracks []core.Track, index int) error {
	if index < 0 || index >= len(tracks) {
		return fmt.Errorf("%w: index %d out of range", tandemerrors.ErrTrackNotFound, index)
	}
	track := tracks[index]

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	url, err := s.resolve(ctx, track, pctx)

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.PlayTrack(track, url, pctx, tracks)
	return nil
}

// PlayTrack makes track current and starts it on the active handle. A
// non-nil queue replaces the current queue. Any crossfade in progress is
// interrupted and the prepared item is discarded.
func (s *Scheduler) PlayTrack(track core.Track, url string, pctx core.PlaybackContext, queue []core.Track) {
	s.mu.Lock()
	s.playTrackLocked(track, url, pctx, queue)
	s.mu.Unlock()

	s.trackStarted(track, pctx)
}

func (s *Scheduler) playTrackLocked(track core.Track, url string, pctx core.PlaybackContext, queue []core.Track) {
	s.playGen++
	s.trackGen++
	s.fadeGen++
	s.crossfading = false
	s.prepared = nil
	s.exhausted = false

	if queue != nil {
		s.queue = core.NewPlayQueue(queue)
		if s.shuffle {
			s.queue.Shuffle(track.ID)
		}
		s.queueGen++
	}
	if s.queue.IsEmpty() {
		s.queue = core.NewPlayQueue([]core.Track{track})
	}
	s.index = s.queue.IndexOf(track.ID)

	s.track = &track
	s.pctx = pctx
	s.isPlaying = true
	s.position = 0
	s.duration = track.Duration

	active := s.handles.Active()
	s.handles.Standby().Clear()
	active.Clear()
	if err := active.Load(url); err != nil {
		s.logger.Warn().Err(err).Str("track_id", track.ID).Msg("load failed")
	}
	active.SetVolume(s.effective(s.volume))
	if err := active.Play(); err != nil {
		s.logger.Warn().Err(err).Str("track_id", track.ID).Msg("play failed")
	}
}

// SwitchTrack makes track current without starting playback. Both handles
// are cleared, so the next TogglePlay resolves a fresh URL. The queue is
// kept as is.
func (s *Scheduler) SwitchTrack(track core.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playGen++
	s.trackGen++
	s.fadeGen++
	s.crossfading = false
	s.prepared = nil
	s.exhausted = false
	s.handles.ClearAll()

	s.track = &track
	s.index = s.queue.IndexOf(track.ID)
	s.isPlaying = false
	s.position = 0
	s.duration = track.Duration
}

// Clear ends the session: no current track, both handles unloaded.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playGen++
	s.trackGen++
	s.fadeGen++
	s.crossfading = false
	s.prepared = nil
	s.exhausted = false
	s.handles.ClearAll()
	s.track = nil
	s.pctx = core.PlaybackContext{}
	s.queue = core.NewPlayQueue(nil)
	s.index = -1
	s.isPlaying = false
	s.position = 0
	s.duration = 0
}

// RefreshAudibility re-applies the effective volume after the prime device
// changed. A running crossfade applies it on its next step.
func (s *Scheduler) RefreshAudibility() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.crossfading {
		s.handles.Active().SetVolume(s.effective(s.volume))
	}
}

func (s *Scheduler) resolve(ctx context.Context, t core.Track, pctx core.PlaybackContext) (string, error) {
	url, err := s.resolver.ResolvePlayableURL(ctx, core.PlayRequest{
		TrackID:     t.ID,
		ArtistID:    t.ArtistID,
		ContextID:   pctx.ID,
		ContextType: pctx.Type,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("track_id", t.ID).Msg("resolve playable url failed")
		return "", err
	}
	return url, nil
}

func (s *Scheduler) trackStarted(t core.Track, pctx core.PlaybackContext) {
	if s.onTrackStarted != nil {
		s.onTrackStarted(t, pctx)
	}
}

// positionLocked reads the active handle, falling back to the last known
// position when nothing is loaded.
func (s *Scheduler) positionLocked() time.Duration {
	active := s.handles.Active()
	if active.Source() == "" {
		return s.position
	}
	return active.Position()
}

// Snapshot returns a copy of the session.
func (s *Scheduler) Snapshot() core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.Session{
		Context:     s.pctx,
		Queue:       s.queue.Tracks(),
		QueueIndex:  s.index,
		IsPlaying:   s.isPlaying,
		Position:    s.positionLocked(),
		Duration:    s.duration,
		Volume:      s.volume,
		Shuffle:     s.shuffle,
		Repeat:      s.repeat,
		Crossfading: s.crossfading,
		IsPrime:     s.prime.IsPrime(),
		PrimeID:     s.prime.PrimeDeviceID(),
	}
	if s.track != nil {
		t := *s.track
		sess.Track = &t
	}
	if s.prepared != nil {
		t := s.prepared.Track
		sess.Next = &t
	}
	if d := s.handles.Active().Duration(); d > 0 {
		sess.Duration = d
	}

	switch {
	case s.track == nil || s.exhausted:
		sess.State = core.StateIdle
	case s.loading:
		sess.State = core.StateLoading
	case s.crossfading:
		sess.State = core.StateCrossfading
	case s.isPlaying:
		sess.State = core.StatePlaying
	default:
		sess.State = core.StatePaused
	}
	return sess
}
