//go:build (linux && cgo) || windows || darwin

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog"
)

// Available indicates whether this build can emit sound.
const Available = true

const speakerRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return speakerErr
}

// NewOutput returns a handle backed by the system speaker.
func NewOutput(opts Options) Handle {
	opts = opts.withDefaults()
	return NewBeepHandle(opts.HTTPClient, opts.Logger)
}

// BeepHandle plays an mp3 source through the shared speaker mixer. Each
// handle contributes its own stream to the mixer with its own gain.
type BeepHandle struct {
	client *http.Client
	logger zerolog.Logger

	// gen identifies the current source; stale fetches and callbacks
	// compare against it.
	gen   atomic.Uint64
	ended atomic.Bool

	mu       sync.Mutex
	src      string
	cancel   context.CancelFunc
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	gain     *effects.Gain
	volume   float64
	wantPlay bool
	seekTo   time.Duration
}

// NewBeepHandle returns a handle fetching sources with client.
func NewBeepHandle(client *http.Client, logger zerolog.Logger) *BeepHandle {
	return &BeepHandle{
		client: client,
		logger: logger.With().Str("component", "audio").Logger(),
		volume: 1,
	}
}

func (h *BeepHandle) Load(url string) error {
	if err := initSpeaker(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	h.mu.Lock()
	gen := h.unloadLocked()
	ctx, cancel := context.WithCancel(context.Background())
	h.src = url
	h.cancel = cancel
	h.mu.Unlock()

	go h.fetch(ctx, gen, url)
	return nil
}

func (h *BeepHandle) fetch(ctx context.Context, gen uint64, url string) {
	data, err := h.download(ctx, url)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn().Err(err).Msg("audio fetch failed")
		}
		return
	}

	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		h.logger.Warn().Err(err).Msg("audio decode failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen.Load() != gen {
		streamer.Close()
		return
	}

	h.streamer = streamer
	h.format = format
	h.ctrl = &beep.Ctrl{
		Streamer: beep.Resample(4, format.SampleRate, speakerRate, streamer),
		Paused:   !h.wantPlay,
	}
	h.gain = &effects.Gain{Streamer: h.ctrl, Gain: h.volume - 1}
	if h.seekTo > 0 {
		_ = streamer.Seek(clampSample(format.SampleRate.N(h.seekTo), streamer.Len()))
		h.seekTo = 0
	}

	// The callback runs on the mixer goroutine with the speaker locked,
	// so it only touches atomics.
	speaker.Play(beep.Seq(h.gain, beep.Callback(func() {
		if h.gen.Load() == gen {
			h.ended.Store(true)
		}
	})))
}

func (h *BeepHandle) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (h *BeepHandle) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src
}

func (h *BeepHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.src == "" {
		return fmt.Errorf("no source loaded")
	}
	h.wantPlay = true
	h.setPausedLocked(false)
	return nil
}

func (h *BeepHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wantPlay = false
	h.setPausedLocked(true)
}

func (h *BeepHandle) setPausedLocked(paused bool) {
	if h.ctrl == nil {
		return
	}
	speaker.Lock()
	h.ctrl.Paused = paused
	speaker.Unlock()
}

func (h *BeepHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wantPlay && !h.ended.Load()
}

func (h *BeepHandle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = v
	if h.gain != nil {
		speaker.Lock()
		h.gain.Gain = v - 1
		speaker.Unlock()
	}
}

func (h *BeepHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *BeepHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return h.seekTo
	}
	speaker.Lock()
	pos := h.streamer.Position()
	speaker.Unlock()
	return h.format.SampleRate.D(pos)
}

func (h *BeepHandle) Seek(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d < 0 {
		d = 0
	}
	if h.streamer == nil {
		h.seekTo = d
		return nil
	}

	speaker.Lock()
	defer speaker.Unlock()
	h.ended.Store(false)
	return h.streamer.Seek(clampSample(h.format.SampleRate.N(d), h.streamer.Len()))
}

func (h *BeepHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return 0
	}
	return h.format.SampleRate.D(h.streamer.Len())
}

func (h *BeepHandle) Ended() bool {
	return h.ended.Load()
}

func (h *BeepHandle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unloadLocked()
	h.src = ""
}

// unloadLocked detaches the current stream from the mixer, releases it and
// returns the generation for the next source.
func (h *BeepHandle) unloadLocked() uint64 {
	gen := h.gen.Add(1)
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	if h.ctrl != nil {
		speaker.Lock()
		h.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if h.streamer != nil {
		h.streamer.Close()
	}
	h.streamer = nil
	h.ctrl = nil
	h.gain = nil
	h.wantPlay = false
	h.seekTo = 0
	h.ended.Store(false)
	return gen
}

func clampSample(n, length int) int {
	if n < 0 {
		return 0
	}
	if length > 0 && n >= length {
		return length - 1
	}
	return n
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
