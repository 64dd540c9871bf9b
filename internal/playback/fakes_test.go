package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tessro/tandem/internal/audio"
	"github.com/tessro/tandem/internal/core"
)

type fakeHandle struct {
	name string

	mu       sync.Mutex
	src      string
	playing  bool
	volume   float64
	pos      time.Duration
	dur      time.Duration
	ended    bool
	seeks    []time.Duration
	onVolume func(v float64)
}

func (h *fakeHandle) Load(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = url
	h.playing = false
	h.pos = 0
	h.ended = false
	return nil
}

func (h *fakeHandle) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src
}

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.src == "" {
		return errors.New("no source")
	}
	h.playing = true
	return nil
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
}

func (h *fakeHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *fakeHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = v
	hook := h.onVolume
	h.mu.Unlock()
	if hook != nil {
		hook(v)
	}
}

func (h *fakeHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *fakeHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos
}

func (h *fakeHandle) Seek(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pos = d
	h.ended = false
	h.seeks = append(h.seeks, d)
	return nil
}

func (h *fakeHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dur
}

func (h *fakeHandle) Ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ended
}

func (h *fakeHandle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = ""
	h.playing = false
	h.pos = 0
	h.ended = false
}

func (h *fakeHandle) setPosition(pos, dur time.Duration) {
	h.mu.Lock()
	h.pos = pos
	h.dur = dur
	h.mu.Unlock()
}

func (h *fakeHandle) hook(fn func(v float64)) {
	h.mu.Lock()
	h.onVolume = fn
	h.mu.Unlock()
}

type fakeResolver struct {
	mu    sync.Mutex
	reqs  []core.PlayRequest
	fail  map[string]bool
	gates map[string]chan struct{}
}

func (r *fakeResolver) ResolvePlayableURL(ctx context.Context, req core.PlayRequest) (string, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	fail := r.fail[req.TrackID]
	gate := r.gates[req.TrackID]
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", fmt.Errorf("resolve %s: boom", req.TrackID)
	}
	return urlFor(req.TrackID), nil
}

func (r *fakeResolver) failOn(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail == nil {
		r.fail = make(map[string]bool)
	}
	r.fail[id] = true
}

func (r *fakeResolver) gate(id string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gates == nil {
		r.gates = make(map[string]chan struct{})
	}
	ch := make(chan struct{})
	r.gates[id] = ch
	return ch
}

func (r *fakeResolver) requests() []core.PlayRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.PlayRequest(nil), r.reqs...)
}

func urlFor(id string) string {
	return "https://cdn.example.com/" + id + ".mp3"
}

type fakePrime struct {
	prime atomic.Bool
}

func newFakePrime(prime bool) *fakePrime {
	p := &fakePrime{}
	p.prime.Store(prime)
	return p
}

func (p *fakePrime) IsPrime() bool { return p.prime.Load() }

func (p *fakePrime) PrimeDeviceID() string {
	if p.prime.Load() {
		return "SELF01"
	}
	return "OTHER1"
}

type recordingSink struct {
	mu      sync.Mutex
	volumes []int
	plays   []bool
	shuffle []bool
	repeat  []core.RepeatMode
}

func (r *recordingSink) Volume(p int) {
	r.mu.Lock()
	r.volumes = append(r.volumes, p)
	r.mu.Unlock()
}

func (r *recordingSink) PlayState(playing bool, _ time.Duration) {
	r.mu.Lock()
	r.plays = append(r.plays, playing)
	r.mu.Unlock()
}

func (r *recordingSink) Shuffle(on bool) {
	r.mu.Lock()
	r.shuffle = append(r.shuffle, on)
	r.mu.Unlock()
}

func (r *recordingSink) Repeat(m core.RepeatMode) {
	r.mu.Lock()
	r.repeat = append(r.repeat, m)
	r.mu.Unlock()
}

func (r *recordingSink) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.volumes) + len(r.plays) + len(r.shuffle) + len(r.repeat)
}

// instantTiming runs every ramp without sleeping.
func instantTiming() Timing {
	t := DefaultTiming()
	t.FadeDuration = 0
	t.CrossfadeDuration = 0
	return t
}

type harness struct {
	s        *Scheduler
	h0, h1   *fakeHandle
	resolver *fakeResolver
	prime    *fakePrime
	sink     *recordingSink
	clock    *clock.Mock
	started  []string
}

func newHarness(t *testing.T, timing Timing) *harness {
	t.Helper()
	h := &harness{
		h0:       &fakeHandle{name: "h0"},
		h1:       &fakeHandle{name: "h1"},
		resolver: &fakeResolver{},
		prime:    newFakePrime(true),
		sink:     &recordingSink{},
		clock:    clock.NewMock(),
	}
	var mu sync.Mutex
	h.s = New(audio.NewPair(h.h0, h.h1), h.resolver,
		WithClock(h.clock),
		WithTiming(timing),
		WithPrime(h.prime),
		WithSink(h.sink),
		WithVolume(0.8),
		WithTrackStarted(func(tr core.Track, _ core.PlaybackContext) {
			mu.Lock()
			h.started = append(h.started, tr.ID)
			mu.Unlock()
		}),
	)
	return h
}

func tracks(ids ...string) []core.Track {
	out := make([]core.Track, len(ids))
	for i, id := range ids {
		out[i] = core.Track{ID: id, ArtistID: "ar", Title: "Song " + id, Duration: 3 * time.Minute}
	}
	return out
}

var album = core.PlaybackContext{ID: "al1", Type: core.ContextAlbum, Name: "Album"}

func (h *harness) play(t *testing.T, ids []string, index int) {
	t.Helper()
	if err := h.s.Play(context.Background(), album, tracks(ids...), index); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
}

func currentID(s *Scheduler) string {
	snap := s.Snapshot()
	if snap.Track == nil {
		return ""
	}
	return snap.Track.ID
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
