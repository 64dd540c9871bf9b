package audio

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// SilentHandle keeps time like a playing output without producing sound.
// It is used when no audio device is available and in headless mode.
type SilentHandle struct {
	clock clock.Clock

	mu        sync.Mutex
	src       string
	playing   bool
	startedAt time.Time
	offset    time.Duration
	duration  time.Duration
	volume    float64
}

// NewSilentHandle returns a silent handle driven by clk.
func NewSilentHandle(clk clock.Clock) *SilentHandle {
	if clk == nil {
		clk = clock.New()
	}
	return &SilentHandle{clock: clk, volume: 1}
}

func (h *SilentHandle) Load(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = url
	h.playing = false
	h.offset = 0
	h.duration = 0
	return nil
}

// SetDuration sets the length reported for the loaded source.
func (h *SilentHandle) SetDuration(d time.Duration) {
	h.mu.Lock()
	h.duration = d
	h.mu.Unlock()
}

func (h *SilentHandle) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src
}

func (h *SilentHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.playing && h.src != "" {
		h.playing = true
		h.startedAt = h.clock.Now()
	}
	return nil
}

func (h *SilentHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playing {
		h.offset = h.positionLocked()
		h.playing = false
	}
}

func (h *SilentHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *SilentHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = v
	h.mu.Unlock()
}

func (h *SilentHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *SilentHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

func (h *SilentHandle) positionLocked() time.Duration {
	pos := h.offset
	if h.playing {
		pos += h.clock.Since(h.startedAt)
	}
	if h.duration > 0 && pos > h.duration {
		pos = h.duration
	}
	return pos
}

func (h *SilentHandle) Seek(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d < 0 {
		d = 0
	}
	h.offset = d
	h.startedAt = h.clock.Now()
	return nil
}

func (h *SilentHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *SilentHandle) Ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration > 0 && h.positionLocked() >= h.duration
}

func (h *SilentHandle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = ""
	h.playing = false
	h.offset = 0
	h.duration = 0
}
