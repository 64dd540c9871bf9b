package core

import (
	"fmt"
	"strings"
	"time"
)

// RepeatMode controls what happens when a track or the queue ends.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatAll  RepeatMode = "all"
	RepeatOne  RepeatMode = "one"
)

// ParseRepeatMode accepts the local lowercase form and the remote uppercase form.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return RepeatNone, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	}
	return "", fmt.Errorf("unknown repeat mode %q", s)
}

// Next cycles none -> all -> one -> none.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatNone
	}
}

// TransportState is the scheduler's position in its state machine.
type TransportState string

const (
	StateIdle        TransportState = "idle"
	StateLoading     TransportState = "loading"
	StatePlaying     TransportState = "playing"
	StatePaused      TransportState = "paused"
	StateCrossfading TransportState = "crossfading"
)

// Session is a point-in-time copy of the playback session.
type Session struct {
	State       TransportState  `json:"state"`
	Track       *Track          `json:"track"`
	Context     PlaybackContext `json:"context"`
	Queue       []Track         `json:"queue"`
	QueueIndex  int             `json:"queue_index"`
	Next        *Track          `json:"next,omitempty"`
	IsPlaying   bool            `json:"is_playing"`
	Position    time.Duration   `json:"position"`
	Duration    time.Duration   `json:"duration"`
	Volume      float64         `json:"volume"`
	Shuffle     bool            `json:"shuffle"`
	Repeat      RepeatMode      `json:"repeat"`
	Crossfading bool            `json:"crossfading"`
	IsPrime     bool            `json:"is_prime"`
	PrimeID     string          `json:"prime_id"`
}

// HasTrack returns true if there is a current track.
func (s *Session) HasTrack() bool {
	return s != nil && s.Track != nil
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *Session) ProgressPercent() float64 {
	if s == nil || s.Duration <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Duration) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Remaining returns the time left in the current track.
func (s *Session) Remaining() time.Duration {
	if s == nil || s.Duration <= 0 {
		return 0
	}
	return s.Duration - s.Position
}

// VolumePercent returns the stored volume on the 0-100 integer scale.
func (s *Session) VolumePercent() int {
	if s == nil {
		return 0
	}
	return VolumeToPercent(s.Volume)
}

// VolumeToPercent converts a 0.0-1.0 volume into a rounded 0-100 integer.
func VolumeToPercent(v float64) int {
	return int(ClampVolume(v)*100 + 0.5)
}

// PercentToVolume converts a 0-100 integer volume into 0.0-1.0, capped at 1.
func PercentToVolume(p int) float64 {
	return ClampVolume(float64(p) / 100)
}

// ClampVolume clamps v to [0, 1].
func ClampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
