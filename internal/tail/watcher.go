// Package tail turns playback session changes into a stream of events.
package tail

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tessro/tandem/internal/core"
)

// EventType represents the type of session event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventVolumeChange
	EventPrimeChange
	EventShuffleChange
	EventRepeatChange
	EventCrossfade
	EventDeviceSeen
)

// Event represents a session change. Device is set for EventDeviceSeen.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.Session
	Current   *core.Session
	Device    *core.Device
}

// SessionSource exposes the current playback session.
type SessionSource interface {
	Snapshot() core.Session
}

// Watcher samples a session source for changes and emits events.
type Watcher struct {
	source   SessionSource
	interval time.Duration
	clock    clock.Clock
	events   chan Event
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithClock sets the clock driving the sampling ticker.
func WithClock(c clock.Clock) WatcherOption {
	return func(w *Watcher) { w.clock = c }
}

// NewWatcher creates a new session watcher.
func NewWatcher(source SessionSource, interval time.Duration, opts ...WatcherOption) *Watcher {
	if interval == 0 {
		interval = time.Second
	}
	w := &Watcher{
		source:   source,
		interval: interval,
		clock:    clock.New(),
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events returns the channel of session events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// DeviceSeen emits an event for a device ping. Only devices new to the
// registry are reported.
func (w *Watcher) DeviceSeen(d core.Device, added bool) {
	if !added {
		return
	}
	w.emit(Event{Type: EventDeviceSeen, Timestamp: w.clock.Now(), Device: &d})
}

func (w *Watcher) emit(e Event) {
	select {
	case w.events <- e:
	case <-w.done:
	default:
		// Drop event if channel is full
	}
}

// Start begins sampling for changes. The events channel stays open so that
// late device pings do not panic; callers stop reading when Start returns.
func (w *Watcher) Start(ctx context.Context) error {
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	prev := w.source.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			curr := w.source.Snapshot()
			for _, e := range diffSessions(&prev, &curr, w.clock.Now()) {
				w.emit(e)
			}
			prev = curr
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
}

// diffSessions compares two sessions and returns detected events.
func diffSessions(prev, curr *core.Session, now time.Time) []Event {
	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Type: t, Timestamp: now, Previous: prev, Current: curr})
	}

	if !prev.Crossfading && curr.Crossfading {
		add(EventCrossfade)
	}

	if trackChanged(prev, curr) && curr.HasTrack() {
		switch {
		case !prev.HasTrack():
			add(EventTrackChange)
		case curr.Crossfading || wasCompleted(prev):
			add(EventTrackComplete)
		default:
			add(EventTrackSkip)
		}
		if prev.HasTrack() {
			add(EventTrackChange)
		}
	}

	if prev.IsPlaying && !curr.IsPlaying {
		add(EventPause)
	} else if !prev.IsPlaying && curr.IsPlaying && !trackChanged(prev, curr) {
		add(EventResume)
	}

	if prev.VolumePercent() != curr.VolumePercent() {
		add(EventVolumeChange)
	}
	if prev.PrimeID != curr.PrimeID {
		add(EventPrimeChange)
	}
	if prev.Shuffle != curr.Shuffle {
		add(EventShuffleChange)
	}
	if prev.Repeat != curr.Repeat {
		add(EventRepeatChange)
	}

	return events
}

// trackChanged returns true if the track changed.
func trackChanged(prev, curr *core.Session) bool {
	if !prev.HasTrack() && !curr.HasTrack() {
		return false
	}
	if !prev.HasTrack() || !curr.HasTrack() {
		return true
	}
	return !prev.Track.SameAs(curr.Track.ID, curr.Track.ArtistID)
}

// wasCompleted returns true if the track likely completed naturally.
func wasCompleted(s *core.Session) bool {
	if s.Duration <= 0 {
		return false
	}
	// Consider completed if progress is >= 95% of duration
	return s.ProgressPercent() >= 95
}
