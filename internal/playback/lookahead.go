package playback

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tessro/tandem/internal/audio"
	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

// PrepareNextSong resolves the successor of the current track and holds it
// as the standby item without touching playback. It does nothing when an
// item is already prepared or being prepared, or when there is no successor.
func (s *Scheduler) PrepareNextSong(ctx context.Context) error {
	s.mu.Lock()
	if s.preparing || s.prepared != nil || s.track == nil || s.queue.IsEmpty() {
		s.mu.Unlock()
		return nil
	}
	idx, ok := s.queue.Successor(s.index, s.repeat)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	next, _ := s.queue.At(idx)
	pctx := s.pctx
	trackGen, queueGen := s.trackGen, s.queueGen
	s.preparing = true
	s.mu.Unlock()

	url, err := s.resolve(ctx, next, pctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.preparing = false
	if err != nil {
		return err
	}
	if s.trackGen != trackGen || s.queueGen != queueGen {
		return nil
	}
	s.prepared = &core.PreparedItem{Track: next, URL: url, Context: pctx}
	s.logger.Debug().Str("track_id", next.ID).Msg("prepared next track")
	return nil
}

// StartCrossfade hands playback over to the prepared item. The standby
// handle starts silent and becomes active at once; the two volumes then move
// in lockstep so that their sum stays at the stored volume. When this device
// is not prime both stay at zero for the same duration. The call blocks
// until the crossfade ends and reports whether one ran.
func (s *Scheduler) StartCrossfade(ctx context.Context) bool {
	xf, ok := s.beginCrossfade()
	if !ok {
		return false
	}
	s.runCrossfade(ctx, xf)
	return true
}

type crossfade struct {
	incoming audio.Handle
	outgoing audio.Handle
	gen      uint64
}

// beginCrossfade flips the handles and makes the prepared item current.
func (s *Scheduler) beginCrossfade() (crossfade, bool) {
	s.mu.Lock()
	if s.crossfading || s.prepared == nil {
		s.mu.Unlock()
		return crossfade{}, false
	}
	item := *s.prepared
	s.prepared = nil
	s.crossfading = true
	s.xfStep = 0
	s.exhausted = false
	s.trackGen++
	s.fadeGen++

	xf := crossfade{outgoing: s.handles.Active(), gen: s.playGen}
	s.handles.Flip()
	xf.incoming = s.handles.Active()
	if err := xf.incoming.Load(item.URL); err != nil {
		s.logger.Warn().Err(err).Str("track_id", item.Track.ID).Msg("load failed")
	}
	xf.incoming.SetVolume(0)
	if err := xf.incoming.Play(); err != nil {
		s.logger.Warn().Err(err).Str("track_id", item.Track.ID).Msg("play failed")
	}

	track := item.Track
	s.track = &track
	s.pctx = item.Context
	s.index = s.queue.IndexOf(track.ID)
	s.isPlaying = true
	s.position = 0
	s.duration = track.Duration
	s.mu.Unlock()

	s.logger.Debug().Str("track_id", track.ID).Msg("crossfade started")
	s.trackStarted(track, item.Context)
	return xf, true
}

func (s *Scheduler) runCrossfade(ctx context.Context, xf crossfade) {
	steps := s.timing.CrossfadeSteps
	step := s.timing.CrossfadeDuration / time.Duration(steps)
	for i := 1; i <= steps; i++ {
		if step > 0 && !s.sleep(ctx, step) {
			break
		}

		s.mu.Lock()
		if s.playGen != xf.gen {
			// A direct play took over both handles.
			s.mu.Unlock()
			return
		}
		s.xfStep = i
		in, out := crossfadeLevels(s.volume, i, steps)
		xf.incoming.SetVolume(s.effective(in))
		xf.outgoing.SetVolume(s.effective(out))
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.playGen != xf.gen {
		s.mu.Unlock()
		return
	}
	xf.outgoing.Pause()
	xf.outgoing.Clear()
	xf.incoming.SetVolume(s.effective(s.volume))
	s.crossfading = false
	s.mu.Unlock()

	if err := s.PrepareNextSong(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("re-arming lookahead failed")
	}
}

// crossfadeLevels returns the incoming and outgoing volume at step i of n.
func crossfadeLevels(target float64, i, n int) (in, out float64) {
	delta := float64(i) * target / float64(n)
	return math.Min(target, delta), math.Max(0, target-delta)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	t := s.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NextSong skips forward. Unless forced it prefers handing over to a
// prepared item, restarts the track under repeat-one, and stops at the end
// of the queue under repeat-none, keeping the current track.
func (s *Scheduler) NextSong(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.track == nil || s.queue.IsEmpty() {
		s.mu.Unlock()
		return nil
	}
	if s.crossfading && !force {
		s.mu.Unlock()
		return nil
	}
	if s.prepared != nil && !force {
		s.mu.Unlock()
		s.StartCrossfade(ctx)
		return nil
	}

	active := s.handles.Active()
	if s.repeat == core.RepeatOne && !force {
		if active.Source() == "" {
			// Nothing loaded since a remote track switch.
			return s.replaceLocked(ctx, *s.track)
		}
		s.fadeGen++
		s.exhausted = false
		_ = active.Seek(0)
		active.SetVolume(s.effective(s.volume))
		_ = active.Play()
		s.isPlaying = true
		s.position = 0
		s.mu.Unlock()
		return nil
	}

	if s.index == s.queue.Len()-1 && s.repeat == core.RepeatNone && !force {
		s.fadeGen++
		active.Pause()
		s.position = active.Position()
		s.isPlaying = false
		s.exhausted = true
		s.mu.Unlock()
		s.logger.Debug().Msg("end of queue")
		return nil
	}

	idx, _ := s.queue.Advance(s.index)
	return s.skipTo(ctx, idx)
}

// PreviousSong restarts the current track when it has played past the
// restart threshold and otherwise plays the previous track, wrapping.
func (s *Scheduler) PreviousSong(ctx context.Context) error {
	s.mu.Lock()
	if s.track == nil || s.queue.IsEmpty() {
		s.mu.Unlock()
		return nil
	}
	if s.positionLocked() > s.timing.RestartThreshold {
		s.position = 0
		_ = s.handles.Active().Seek(0)
		s.mu.Unlock()
		return nil
	}

	idx, _ := s.queue.Predecessor(s.index)
	return s.skipTo(ctx, idx)
}

// PlayIndex plays the queue entry at idx, keeping the queue and its order.
func (s *Scheduler) PlayIndex(ctx context.Context, idx int) error {
	s.mu.Lock()
	if _, ok := s.queue.At(idx); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: index %d out of range", tandemerrors.ErrTrackNotFound, idx)
	}
	return s.skipTo(ctx, idx)
}

// skipTo resolves and plays queue index idx. It must be called with the
// lock held and releases it. A failed resolution leaves the session as it
// was; one that finishes after the track changed is dropped.
func (s *Scheduler) skipTo(ctx context.Context, idx int) error {
	track, _ := s.queue.At(idx)
	return s.replaceLocked(ctx, track)
}

// replaceLocked resolves track and starts it on the active handle, with the
// same locking contract as skipTo.
func (s *Scheduler) replaceLocked(ctx context.Context, track core.Track) error {
	pctx := s.pctx
	gen := s.trackGen
	s.mu.Unlock()

	url, err := s.resolve(ctx, track, pctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.trackGen != gen {
		s.mu.Unlock()
		return nil
	}
	s.playTrackLocked(track, url, pctx, nil)
	s.mu.Unlock()

	s.trackStarted(track, pctx)
	return nil
}

// Run samples the active handle on every tick and drives the lookahead:
// prepare inside the prepare window, crossfade inside the crossfade window
// once something is prepared, and advance when the track ends.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.timing.TickInterval
	if interval <= 0 {
		interval = DefaultTiming().TickInterval
	}
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.track == nil || !s.isPlaying || s.loading {
		s.mu.Unlock()
		return
	}
	active := s.handles.Active()
	if active.Source() == "" {
		s.mu.Unlock()
		return
	}
	pos := active.Position()
	s.position = pos
	if d := active.Duration(); d > 0 {
		s.duration = d
	}
	duration := s.duration
	ended := active.Ended()
	crossfading := s.crossfading
	prepared := s.prepared != nil
	preparing := s.preparing
	s.mu.Unlock()

	if duration <= 0 && !ended {
		return
	}
	remaining := duration - pos

	switch {
	case ended || remaining <= 0:
		if !crossfading {
			if err := s.NextSong(ctx, false); err != nil {
				s.logger.Warn().Err(err).Msg("advance at end of track failed")
			}
		}
	case prepared && !crossfading && remaining <= s.timing.CrossfadeWindow:
		if xf, ok := s.beginCrossfade(); ok {
			go s.runCrossfade(ctx, xf)
		}
	case !prepared && !preparing && remaining <= s.timing.PrepareWindow && remaining > s.timing.PrepareFloor:
		go func() {
			_ = s.PrepareNextSong(ctx)
		}()
	}
}
