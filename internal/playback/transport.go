package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/tessro/tandem/internal/audio"
	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

// TogglePlay pauses or resumes the current track. With no current track it
// does nothing. If the active handle has nothing loaded a URL is resolved
// first; when that fails the toggle is abandoned and the play flag is left
// unchanged.
//
// Pausing fades to silence before pausing. Resuming starts silent and fades
// in to the stored volume, unless this device is not prime.
func (s *Scheduler) TogglePlay(ctx context.Context, opts ...ActionOption) error {
	cfg := applyActionOptions(opts)

	s.mu.Lock()
	if s.track == nil {
		s.mu.Unlock()
		return nil
	}
	track := *s.track
	needsSource := s.handles.Active().Source() == ""
	pctx := s.lazyContextLocked()
	gen := s.trackGen
	s.mu.Unlock()

	if needsSource {
		url, err := s.resolve(ctx, track, pctx)
		if err != nil {
			return fmt.Errorf("%w: %v", tandemerrors.ErrResolveFailed, err)
		}

		s.mu.Lock()
		if s.trackGen != gen {
			s.mu.Unlock()
			return nil
		}
		active := s.handles.Active()
		if active.Source() == "" {
			if err := active.Load(url); err != nil {
				s.mu.Unlock()
				return err
			}
			active.SetVolume(0)
			if s.position > 0 {
				_ = active.Seek(s.position)
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	playing := !s.isPlaying
	s.isPlaying = playing
	s.fadeGen++
	fadeGen := s.fadeGen
	if playing && s.exhausted {
		s.exhausted = false
		_ = s.handles.Active().Seek(0)
	}
	position := s.positionLocked()
	active := s.handles.Active()
	crossfading := s.crossfading
	s.mu.Unlock()

	if !cfg.noEcho {
		s.sink.PlayState(playing, position)
	}

	switch {
	case crossfading:
		s.toggleDuringCrossfade(playing)
	case playing:
		s.fadeIn(active, fadeGen)
	default:
		s.fadeOut(active, fadeGen)
	}
	return nil
}

// lazyContextLocked returns the context to resolve the current track under.
// A track that is not part of the queue resolves as a lone song.
func (s *Scheduler) lazyContextLocked() core.PlaybackContext {
	if s.index < 0 || s.pctx.IsZero() {
		return core.PlaybackContext{ID: s.track.ID, Type: core.ContextSong}
	}
	return s.pctx
}

// toggleDuringCrossfade leaves volumes to the crossfade and only moves the
// transport.
func (s *Scheduler) toggleDuringCrossfade(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playing {
		_ = s.handles.Active().Play()
		_ = s.handles.Standby().Play()
		return
	}
	s.handles.Active().Pause()
	s.handles.Standby().Pause()
}

func (s *Scheduler) fadeOut(h audio.Handle, gen uint64) {
	if from := h.Volume(); from > 0 {
		if !s.ramp(h, from, 0, gen) {
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fadeGen != gen {
		return
	}
	h.Pause()
	s.position = h.Position()
	h.SetVolume(s.effective(s.volume))
}

func (s *Scheduler) fadeIn(h audio.Handle, gen uint64) {
	s.mu.Lock()
	if s.fadeGen != gen {
		s.mu.Unlock()
		return
	}
	h.SetVolume(0)
	if err := h.Play(); err != nil {
		s.logger.Warn().Err(err).Msg("resume failed")
	}
	target := s.volume
	prime := s.prime.IsPrime()
	s.mu.Unlock()

	if prime {
		s.ramp(h, 0, target, gen)
	}
}

// ramp moves h's volume linearly from one level to another over the fade
// window. Each step consults the prime check, so losing prime mid-ramp
// silences the handle at once. It reports false if a newer toggle or a
// crossfade took over.
func (s *Scheduler) ramp(h audio.Handle, from, to float64, gen uint64) bool {
	steps := s.timing.FadeSteps
	step := s.timing.FadeDuration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		if step > 0 {
			s.clock.Sleep(step)
		}

		s.mu.Lock()
		if s.fadeGen != gen || s.crossfading {
			s.mu.Unlock()
			return false
		}
		v := from + (to-from)*float64(i)/float64(steps)
		h.SetVolume(s.effective(core.ClampVolume(v)))
		s.mu.Unlock()
	}
	return true
}

// SetVolume stores the requested volume and applies its effective value to
// the active handle. During a crossfade both handles move to the current
// step's levels for the new volume.
func (s *Scheduler) SetVolume(v float64, opts ...ActionOption) {
	cfg := applyActionOptions(opts)
	v = core.ClampVolume(v)

	s.mu.Lock()
	s.volume = v
	if s.crossfading {
		in, out := crossfadeLevels(v, s.xfStep, s.timing.CrossfadeSteps)
		s.handles.Active().SetVolume(s.effective(in))
		s.handles.Standby().SetVolume(s.effective(out))
	} else {
		s.handles.Active().SetVolume(s.effective(v))
	}
	s.mu.Unlock()

	if !cfg.noEcho {
		s.sink.Volume(core.VolumeToPercent(v))
	}
}

// SetProgress seeks the active handle. It does not publish.
func (s *Scheduler) SetProgress(position time.Duration) {
	if position < 0 {
		position = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
	active := s.handles.Active()
	if active.Source() != "" {
		if err := active.Seek(position); err != nil {
			s.logger.Warn().Err(err).Dur("position", position).Msg("seek failed")
		}
	}
}

// ToggleShuffle flips shuffle, keeping the current track first in the
// shuffled order, and returns the new state. Turning shuffle off restores
// the original order exactly.
func (s *Scheduler) ToggleShuffle(opts ...ActionOption) bool {
	cfg := applyActionOptions(opts)

	s.mu.Lock()
	pinned := ""
	if s.track != nil {
		pinned = s.track.ID
	}
	s.shuffle = s.queue.ToggleShuffle(pinned)
	if s.track != nil {
		s.index = s.queue.IndexOf(pinned)
	}
	s.prepared = nil
	s.queueGen++
	on := s.shuffle
	s.mu.Unlock()

	if !cfg.noEcho {
		s.sink.Shuffle(on)
	}
	return on
}

// ToggleRepeat sets the repeat mode. An empty mode cycles
// none -> all -> one -> none. The new mode is returned.
func (s *Scheduler) ToggleRepeat(mode core.RepeatMode, opts ...ActionOption) core.RepeatMode {
	cfg := applyActionOptions(opts)

	s.mu.Lock()
	if mode == "" {
		mode = s.repeat.Next()
	}
	if mode != s.repeat {
		s.repeat = mode
		s.prepared = nil
		s.queueGen++
	}
	s.mu.Unlock()

	if !cfg.noEcho {
		s.sink.Repeat(mode)
	}
	return mode
}

// CycleRepeat advances the repeat mode and returns it.
func (s *Scheduler) CycleRepeat() core.RepeatMode {
	return s.ToggleRepeat("")
}
