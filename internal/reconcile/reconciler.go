// Package reconcile merges remote session state into the local scheduler.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/core"
	"github.com/tessro/tandem/internal/playback"
)

// DefaultSeekTolerance is how far a remote position may drift from the local
// one before the reconciler seeks.
const DefaultSeekTolerance = 500 * time.Millisecond

// Player is the part of the scheduler the reconciler drives.
type Player interface {
	Snapshot() core.Session
	SetVolume(v float64, opts ...playback.ActionOption)
	RefreshAudibility()
	SwitchTrack(track core.Track)
	TogglePlay(ctx context.Context, opts ...playback.ActionOption) error
	SetProgress(position time.Duration)
	ToggleShuffle(opts ...playback.ActionOption) bool
	ToggleRepeat(mode core.RepeatMode, opts ...playback.ActionOption) core.RepeatMode
}

// Election holds the prime device id.
type Election interface {
	PrimeDeviceID() string
	SetPrimeDeviceID(id string) bool
}

// TrackFetcher hydrates a track referenced by its id pair.
type TrackFetcher interface {
	FetchTrack(ctx context.Context, trackID, artistID string) (*core.Track, error)
}

// Reconciler applies cloud state to the local session field by field. Each
// field is skipped when the local value already agrees, so applying the same
// state twice has no further effect.
type Reconciler struct {
	player   Player
	election Election
	tracks   TrackFetcher
	clock    clock.Clock
	logger   zerolog.Logger

	seekTolerance time.Duration

	mu sync.Mutex
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the clock used for position correction.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithSeekTolerance sets the drift below which remote positions are ignored.
func WithSeekTolerance(d time.Duration) Option {
	return func(r *Reconciler) { r.seekTolerance = d }
}

// New returns a reconciler driving player.
func New(player Player, election Election, tracks TrackFetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		player:        player,
		election:      election,
		tracks:        tracks,
		clock:         clock.New(),
		logger:        zerolog.Nop(),
		seekTolerance: DefaultSeekTolerance,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "reconciler").Logger()
	return r
}

// Apply merges cs into the local session in a fixed order: volume, prime
// device, track, play flag, position, shuffle, repeat. The track is resolved
// before the play flag and position are compared. Calls are serialized.
func (r *Reconciler) Apply(ctx context.Context, cs core.CloudState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applyVolume(cs)
	r.applyPrime(cs)
	r.applyTrack(ctx, cs)
	r.applyPlaying(ctx, cs)
	r.applyPosition(cs)
	r.applyShuffle(cs)
	r.applyRepeat(cs)
}

func (r *Reconciler) applyVolume(cs core.CloudState) {
	if cs.Volume == nil {
		return
	}
	local := r.player.Snapshot()
	if *cs.Volume == local.VolumePercent() {
		return
	}
	r.player.SetVolume(core.PercentToVolume(*cs.Volume), playback.WithoutEcho())
}

func (r *Reconciler) applyPrime(cs core.CloudState) {
	if cs.PrimeDeviceID == nil || *cs.PrimeDeviceID == r.election.PrimeDeviceID() {
		return
	}
	if r.election.SetPrimeDeviceID(*cs.PrimeDeviceID) {
		r.logger.Info().Str("device_id", *cs.PrimeDeviceID).Msg("prime device changed")
		r.player.RefreshAudibility()
	}
}

func (r *Reconciler) applyTrack(ctx context.Context, cs core.CloudState) {
	if !cs.HasTrack() {
		return
	}
	local := r.player.Snapshot()
	if local.Track.SameAs(*cs.TrackID, *cs.TrackArtistID) {
		return
	}

	track, err := r.tracks.FetchTrack(ctx, *cs.TrackID, *cs.TrackArtistID)
	if err != nil {
		r.logger.Warn().Err(err).Str("track_id", *cs.TrackID).Msg("fetch remote track failed")
		return
	}
	if track == nil {
		r.logger.Warn().Str("track_id", *cs.TrackID).Msg("remote track not found")
		return
	}
	r.player.SwitchTrack(*track)
}

func (r *Reconciler) applyPlaying(ctx context.Context, cs core.CloudState) {
	if cs.IsPlaying == nil {
		return
	}
	local := r.player.Snapshot()
	if !local.HasTrack() || *cs.IsPlaying == local.IsPlaying {
		return
	}
	if err := r.player.TogglePlay(ctx, playback.WithoutEcho()); err != nil {
		r.logger.Warn().Err(err).Msg("apply remote play state failed")
	}
}

func (r *Reconciler) applyPosition(cs core.CloudState) {
	local := r.player.Snapshot()
	if !local.HasTrack() {
		return
	}
	pos, ok := CorrectedPosition(cs, local.IsPlaying, r.clock.Now())
	if !ok {
		return
	}
	if pos == local.Position {
		return
	}
	playing := local.IsPlaying
	if cs.IsPlaying != nil {
		playing = *cs.IsPlaying
	}
	// A paused session lands exactly on the remote position.
	if playing {
		drift := pos - local.Position
		if drift < 0 {
			drift = -drift
		}
		if drift <= r.seekTolerance {
			return
		}
	}
	r.player.SetProgress(pos)
}

func (r *Reconciler) applyShuffle(cs core.CloudState) {
	if cs.Shuffle == nil {
		return
	}
	if *cs.Shuffle != r.player.Snapshot().Shuffle {
		r.player.ToggleShuffle(playback.WithoutEcho())
	}
}

func (r *Reconciler) applyRepeat(cs core.CloudState) {
	if cs.RepeatMode == nil {
		return
	}
	if *cs.RepeatMode != r.player.Snapshot().Repeat {
		r.player.ToggleRepeat(*cs.RepeatMode, playback.WithoutEcho())
	}
}

// CorrectedPosition returns the position cs describes as of now. When the
// state says playback is paused the raw position is used as is. Otherwise the
// time elapsed since capture is added; a capture time in the future adds
// nothing, so clock skew never moves the position backwards. localPlaying
// stands in for a missing play flag.
func CorrectedPosition(cs core.CloudState, localPlaying bool, now time.Time) (time.Duration, bool) {
	if cs.PositionMs == nil {
		return 0, false
	}
	pos := time.Duration(*cs.PositionMs) * time.Millisecond

	playing := localPlaying
	if cs.IsPlaying != nil {
		playing = *cs.IsPlaying
	}
	if !playing || cs.PositionUpdatedAt == nil {
		return pos, true
	}

	elapsed := now.Sub(time.UnixMilli(*cs.PositionUpdatedAt))
	if elapsed > 0 {
		pos += elapsed
	}
	return pos, true
}
