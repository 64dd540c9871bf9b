// Package engine builds the process-wide service graph: one playback
// session, one device registry and one signed-in backend session.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/audio"
	"github.com/tessro/tandem/internal/auth"
	"github.com/tessro/tandem/internal/config"
	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/device"
	tandemerrors "github.com/tessro/tandem/internal/errors"
	"github.com/tessro/tandem/internal/gateway"
	"github.com/tessro/tandem/internal/outbox"
	"github.com/tessro/tandem/internal/playback"
	"github.com/tessro/tandem/internal/reconcile"
	"github.com/tessro/tandem/internal/store"
)

const trackCacheSize = 512

// Backend is the remote state gateway as the engine uses it.
type Backend interface {
	playback.Resolver
	reconcile.TrackFetcher
	reconcile.Bootstrapper
	outbox.Publisher
	device.HeartbeatPublisher
	FetchAlbum(ctx context.Context, albumID, artistID string) (*gateway.Collection, error)
	FetchArtist(ctx context.Context, artistID string) (*gateway.Collection, error)
	FetchPlaylist(ctx context.Context, playlistID string) (*gateway.Collection, error)
}

// Engine owns every long-lived component of a running client.
type Engine struct {
	Device     core.Device
	Store      *store.DB
	Tokens     *auth.Source
	Election   *device.Election
	Registry   *device.Registry
	Heartbeat  *device.Heartbeat
	Outbox     *outbox.Outbox
	Tracks     *gateway.TrackCache
	Scheduler  *playback.Scheduler
	Reconciler *reconcile.Reconciler
	Sync       *reconcile.Sync

	backend      Backend
	tokenStorage *auth.TokenStorage
	clock        clock.Clock
	logger       zerolog.Logger

	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	clock        clock.Clock
	logger       zerolog.Logger
	handles      *audio.Pair
	headless     bool
	backend      Backend
	subscriber   reconcile.Subscriber
	tokenStorage *auth.TokenStorage
}

// WithClock sets the clock shared by every component.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the root logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHandles sets the output handles.
func WithHandles(p *audio.Pair) Option {
	return func(o *options) { o.handles = p }
}

// Headless uses silent handles that keep time without producing sound.
func Headless() Option {
	return func(o *options) { o.headless = true }
}

// WithBackend replaces the GraphQL gateway.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithSubscriber replaces the realtime gateway.
func WithSubscriber(s reconcile.Subscriber) Option {
	return func(o *options) { o.subscriber = s }
}

// WithTokenStorage sets where the signed-in session is stored.
func WithTokenStorage(s *auth.TokenStorage) Option {
	return func(o *options) { o.tokenStorage = s }
}

// New opens local state and wires the components together. Nothing runs
// until Run is called.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	o := options{clock: clock.New(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	db, err := store.Open(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	id, err := device.LoadOrCreateID(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load device id: %w", err)
	}
	self := device.Describe(id, device.Signals{
		Name:          cfg.Device.Name,
		UserAgent:     cfg.Device.UserAgent,
		ViewportWidth: cfg.Device.ViewportWidth,
	})

	tokenStorage := o.tokenStorage
	if tokenStorage == nil {
		if tokenStorage, err = auth.NewTokenStorage(""); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	tokens := auth.NewSource(tokenStorage, auth.NewCognito(cfg.Backend.AuthURL, cfg.Backend.UserPoolClientID))
	if err := tokens.Reload(); err != nil {
		logger.Warn().Err(err).Msg("failed to read stored session")
	}

	timeout := cfg.Sync.RequestTimeout.Duration
	backend := o.backend
	if backend == nil {
		backend = gateway.New(cfg.Backend.GraphQLURL, tokens,
			gateway.WithTimeout(timeout),
			gateway.WithLogger(logger),
		)
	}
	subscriber := o.subscriber
	if subscriber == nil {
		subscriber = gateway.NewRealtime(cfg.Backend.RealtimeURL, cfg.Backend.GraphQLURL, tokens,
			gateway.WithRealtimeLogger(logger),
		)
	}
	tracks, err := gateway.NewTrackCache(backend, trackCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	handles := o.handles
	if handles == nil {
		if o.headless {
			handles = audio.NewPair(audio.NewSilentHandle(o.clock), audio.NewSilentHandle(o.clock))
		} else {
			handles = audio.NewOutputPair(audio.Options{Clock: o.clock, Logger: logger})
		}
	}

	e := &Engine{
		Device:       self,
		Store:        db,
		Tokens:       tokens,
		Election:     device.NewElection(id),
		Registry:     device.NewRegistry(o.clock, cfg.Sync.DeviceTTL.Duration),
		Tracks:       tracks,
		backend:      backend,
		tokenStorage: tokenStorage,
		clock:        o.clock,
		logger:       logger.With().Str("component", "engine").Str("device_id", id).Logger(),
	}

	e.Outbox = outbox.New(backend, outbox.Windows{
		Volume:    cfg.Sync.VolumeDebounce.Duration,
		PlayState: cfg.Sync.PlayDebounce.Duration,
		Shuffle:   cfg.Sync.ShuffleDebounce.Duration,
		Repeat:    cfg.Sync.RepeatDebounce.Duration,
	},
		outbox.WithClock(o.clock),
		outbox.WithLogger(logger),
		outbox.WithTimeout(timeout),
	)

	e.Scheduler = playback.New(handles, backend,
		playback.WithClock(o.clock),
		playback.WithLogger(logger),
		playback.WithTiming(TimingFrom(cfg.Playback)),
		playback.WithPrime(e.Election),
		playback.WithSink(e.Outbox),
		playback.WithVolume(core.PercentToVolume(cfg.Playback.DefaultVolume)),
		playback.WithTrackStarted(e.trackStarted),
	)

	e.Reconciler = reconcile.New(e.Scheduler, e.Election, tracks,
		reconcile.WithClock(o.clock),
		reconcile.WithLogger(logger),
		reconcile.WithSeekTolerance(cfg.Sync.SeekTolerance.Duration),
	)
	e.Sync = reconcile.NewSync(e.Reconciler, backend, subscriber, e.Registry, logger,
		reconcile.WithSyncClock(o.clock),
	)

	e.Heartbeat = device.NewHeartbeat(backend, self, cfg.Sync.HeartbeatInterval.Duration,
		device.WithHeartbeatClock(o.clock),
		device.WithHeartbeatLogger(logger),
		device.WithHeartbeatTimeout(timeout),
		device.WithOnTick(func(error) {
			if n := e.Registry.Prune(id); n > 0 {
				e.logger.Debug().Int("pruned", n).Msg("dropped stale devices")
			}
		}),
	)

	return e, nil
}

// TimingFrom converts playback configuration into scheduler timing.
func TimingFrom(p config.PlaybackConfig) playback.Timing {
	return playback.Timing{
		FadeDuration:      p.FadeDuration.Duration,
		FadeSteps:         p.FadeSteps,
		CrossfadeDuration: p.CrossfadeDuration.Duration,
		CrossfadeSteps:    p.CrossfadeSteps,
		PrepareWindow:     p.PrepareWindow.Duration,
		PrepareFloor:      p.PrepareFloor.Duration,
		CrossfadeWindow:   p.CrossfadeWindow.Duration,
		RestartThreshold:  p.RestartThreshold.Duration,
		TickInterval:      p.TickInterval.Duration,
	}
}

// Run starts the outbox worker, the scheduler monitor, the heartbeat, the
// cloud-state sync and the session watcher, and blocks until ctx is done.
// Pending mutations are published before it returns.
func (e *Engine) Run(ctx context.Context) error {
	// The outbox outlives ctx so that the final flush is still published.
	outboxDone := make(chan struct{})
	go func() {
		defer close(outboxDone)
		_ = e.Outbox.Run(context.Background())
	}()

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn().Err(err).Str("worker", name).Msg("worker stopped")
			}
		}()
	}

	start("scheduler", e.Scheduler.Run)
	start("heartbeat", e.Heartbeat.Run)
	start("sync", e.Sync.Run)
	start("session", func(ctx context.Context) error {
		return e.tokenStorage.Watch(ctx, e.logger, e.sessionChanged)
	})

	e.logger.Info().Str("device", e.Device.Name).Msg("engine started")
	<-ctx.Done()
	wg.Wait()

	e.Outbox.Flush()
	e.Outbox.Close()
	<-outboxDone
	return nil
}

func (e *Engine) sessionChanged() {
	if err := e.Tokens.Reload(); err != nil {
		e.logger.Warn().Err(err).Msg("failed to reload session")
	}
	e.Sync.Restart()
}

func (e *Engine) trackStarted(t core.Track, pctx core.PlaybackContext) {
	e.Tracks.Remember(t)
	err := e.Store.RecordPlay(context.Background(), core.HistoryEntry{
		Track:    t,
		Context:  pctx,
		DeviceID: e.Device.ID,
		PlayedAt: e.clock.Now(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("track_id", t.ID).Msg("failed to record play")
	}
}

// PlayRequest names what to play. Index is the position in the collection
// to start at.
type PlayRequest struct {
	Type     core.ContextType
	ID       string
	ArtistID string
	Index    int
}

// ParseRequest reads a play reference of the form "album:ID[:ARTIST]",
// "artist:ID", "playlist:ID" or "song:ID:ARTIST". A trailing "@N" starts at the
// one-based position N.
func ParseRequest(ref string) (PlayRequest, error) {
	ref = strings.TrimSpace(ref)
	var req PlayRequest

	if at := strings.LastIndex(ref, "@"); at >= 0 {
		n, err := strconv.Atoi(ref[at+1:])
		if err != nil || n < 1 {
			return req, fmt.Errorf("%w: bad position in %q", tandemerrors.ErrInvalidConfig, ref)
		}
		req.Index = n - 1
		ref = ref[:at]
	}

	parts := strings.Split(ref, ":")
	if len(parts) < 2 || parts[1] == "" {
		return req, fmt.Errorf("%w: expected TYPE:ID, got %q", tandemerrors.ErrInvalidConfig, ref)
	}
	req.Type = core.ContextType(strings.ToUpper(parts[0]))
	req.ID = parts[1]
	if len(parts) > 2 {
		req.ArtistID = parts[2]
	}

	switch req.Type {
	case core.ContextAlbum, core.ContextPlaylist:
	case core.ContextArtist:
		req.ArtistID = req.ID
	case core.ContextSong:
		if req.ArtistID == "" {
			return req, fmt.Errorf("%w: a song needs an artist id", tandemerrors.ErrInvalidConfig)
		}
	default:
		return req, fmt.Errorf("%w: cannot play %q", tandemerrors.ErrInvalidConfig, parts[0])
	}
	return req, nil
}

// Play loads the requested album, artist, playlist or song and starts it.
func (e *Engine) Play(ctx context.Context, req PlayRequest) error {
	var (
		pctx   core.PlaybackContext
		tracks []core.Track
	)

	switch req.Type {
	case core.ContextAlbum:
		c, err := e.backend.FetchAlbum(ctx, req.ID, req.ArtistID)
		if err != nil {
			return err
		}
		pctx, tracks = c.Context, c.Tracks
	case core.ContextArtist:
		c, err := e.backend.FetchArtist(ctx, req.ID)
		if err != nil {
			return err
		}
		pctx, tracks = c.Context, c.Tracks
	case core.ContextPlaylist:
		c, err := e.backend.FetchPlaylist(ctx, req.ID)
		if err != nil {
			return err
		}
		pctx, tracks = c.Context, c.Tracks
	case core.ContextSong:
		t, err := e.Tracks.FetchTrack(ctx, req.ID, req.ArtistID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("song %s: %w", req.ID, tandemerrors.ErrTrackNotFound)
		}
		pctx = core.PlaybackContext{ID: t.ID, Type: core.ContextSong, Name: t.Title}
		tracks = []core.Track{*t}
	default:
		return fmt.Errorf("%w: cannot play a %q context", tandemerrors.ErrInvalidConfig, req.Type)
	}

	if len(tracks) == 0 {
		return fmt.Errorf("%s %s has no tracks: %w", req.Type, req.ID, tandemerrors.ErrTrackNotFound)
	}
	e.Tracks.Remember(tracks...)
	return e.Scheduler.Play(ctx, pctx, tracks, req.Index)
}

// ClaimPrime makes this device the prime device.
func (e *Engine) ClaimPrime() {
	e.SetPrime(e.Device.ID)
}

// SetPrime hands the prime role to deviceID, optimistically, and publishes
// the change.
func (e *Engine) SetPrime(deviceID string) {
	if deviceID == "" {
		return
	}
	if e.Election.SetPrimeDeviceID(deviceID) {
		e.Scheduler.RefreshAudibility()
	}
	e.Outbox.Send(core.SessionMutation{PrimeDeviceID: core.Ptr(deviceID)})
	e.logger.Info().Str("prime", deviceID).Msg("prime device changed")
}

// Seek moves the current track to position and publishes the new position
// right away.
func (e *Engine) Seek(position time.Duration) {
	if position < 0 {
		position = 0
	}
	e.Scheduler.SetProgress(position)
	e.Outbox.Position(position)
}

// History returns recently played tracks, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	return e.Store.Recent(ctx, limit)
}

// Close stops playback and releases local state.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.Scheduler.Clear()
		e.Outbox.Close()
		err = e.Store.Close()
	})
	return err
}
