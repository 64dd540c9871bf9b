package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tessro/tandem/internal/core"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

func TestPlay_StartsActiveHandle(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B", "C"}, 1)

	if h.h0.Source() != urlFor("B") || !h.h0.Playing() || h.h0.Volume() != 0.8 {
		t.Errorf("active handle src=%q playing=%v volume=%v", h.h0.Source(), h.h0.Playing(), h.h0.Volume())
	}
	if h.h1.Source() != "" {
		t.Errorf("standby handle loaded %q", h.h1.Source())
	}

	snap := h.s.Snapshot()
	if snap.State != core.StatePlaying || !snap.IsPlaying || snap.QueueIndex != 1 || snap.Context != album {
		t.Errorf("snapshot = %+v", snap)
	}
	req := h.resolver.requests()[0]
	if req.TrackID != "B" || req.ContextID != "al1" || req.ContextType != core.ContextAlbum {
		t.Errorf("resolve request = %+v", req)
	}
	if len(h.started) != 1 || h.started[0] != "B" {
		t.Errorf("track started hook = %v", h.started)
	}
}

func TestPlay_ResolveFailureKeepsState(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.resolver.failOn("A")

	if err := h.s.Play(context.Background(), album, tracks("A", "B"), 0); err == nil {
		t.Fatal("Play() expected error")
	}
	snap := h.s.Snapshot()
	if snap.Track != nil || snap.IsPlaying || snap.State != core.StateIdle {
		t.Errorf("snapshot after failed play = %+v", snap)
	}
}

func TestPlay_IndexOutOfRange(t *testing.T) {
	h := newHarness(t, instantTiming())
	err := h.s.Play(context.Background(), album, tracks("A"), 3)
	if !errors.Is(err, tandemerrors.ErrTrackNotFound) {
		t.Errorf("Play() error = %v, want ErrTrackNotFound", err)
	}
}

func TestNextSong_EndToEnd(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B", "C"}, 0)

	for _, want := range []string{"B", "C"} {
		if err := h.s.NextSong(ctx, false); err != nil {
			t.Fatal(err)
		}
		if got := currentID(h.s); got != want {
			t.Fatalf("current = %s, want %s", got, want)
		}
	}

	if err := h.s.NextSong(ctx, false); err != nil {
		t.Fatal(err)
	}
	snap := h.s.Snapshot()
	if snap.IsPlaying || snap.Track.ID != "C" || snap.State != core.StateIdle {
		t.Errorf("after end of queue: playing=%v track=%s state=%s", snap.IsPlaying, snap.Track.ID, snap.State)
	}
	if h.h0.Playing() || h.h1.Playing() {
		t.Error("a handle is still playing after end of queue")
	}
}

func TestNextSong_ForcedWrapsAtEnd(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B"}, 1)

	if err := h.s.NextSong(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.s); got != "A" {
		t.Errorf("forced next at end = %s, want A", got)
	}
}

func TestNextSong_RepeatAllWraps(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B"}, 1)
	h.s.ToggleRepeat(core.RepeatAll)

	if err := h.s.NextSong(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.s); got != "A" || !h.s.Snapshot().IsPlaying {
		t.Errorf("repeat all at end = %s", got)
	}
}

func TestNextSong_RepeatOneKeepsTrack(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B", "C"}, 0)
	h.s.ToggleRepeat(core.RepeatOne)

	for i := 0; i < 3; i++ {
		h.h0.setPosition(time.Minute, 3*time.Minute)
		if err := h.s.NextSong(ctx, false); err != nil {
			t.Fatal(err)
		}
		if got := currentID(h.s); got != "A" {
			t.Fatalf("call %d: current = %s, want A", i, got)
		}
		if h.h0.Position() != 0 {
			t.Errorf("call %d: track not restarted", i)
		}
	}

	// A prepared successor under repeat-one is the same track.
	if err := h.s.PrepareNextSong(ctx); err != nil {
		t.Fatal(err)
	}
	if next := h.s.Snapshot().Next; next == nil || next.ID != "A" {
		t.Fatalf("prepared = %+v, want A", next)
	}
	if err := h.s.NextSong(ctx, false); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.s); got != "A" {
		t.Errorf("after crossfade current = %s, want A", got)
	}

	if err := h.s.NextSong(ctx, true); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.s); got != "B" {
		t.Errorf("forced next under repeat-one = %s, want B", got)
	}
}

func TestNextSong_RepeatOneAfterSwitchTrack(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B", "C"}, 0)

	h.s.SwitchTrack(tracks("B")[0])
	h.s.ToggleRepeat(core.RepeatOne)
	if err := h.s.NextSong(ctx, false); err != nil {
		t.Fatal(err)
	}

	snap := h.s.Snapshot()
	if snap.Track.ID != "B" || !snap.IsPlaying || snap.QueueIndex != 1 {
		t.Errorf("after repeat-one: track=%s playing=%v index=%d", snap.Track.ID, snap.IsPlaying, snap.QueueIndex)
	}
	if h.h0.Source() != urlFor("B") {
		t.Errorf("active handle src = %q, want %q", h.h0.Source(), urlFor("B"))
	}
	reqs := h.resolver.requests()
	if last := reqs[len(reqs)-1]; last.TrackID != "B" {
		t.Errorf("last resolve = %s, want B", last.TrackID)
	}
}

func TestNextSong_RepeatOneAfterSwitchOutsideQueue(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B"}, 0)

	h.s.SwitchTrack(tracks("X")[0])
	h.s.ToggleRepeat(core.RepeatOne)
	if err := h.s.NextSong(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.s); got != "X" {
		t.Errorf("current = %s, want X", got)
	}
}

func TestNextSong_ResolveFailureKeepsState(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B"}, 0)
	h.resolver.failOn("B")

	if err := h.s.NextSong(context.Background(), true); err == nil {
		t.Fatal("NextSong() expected error")
	}
	snap := h.s.Snapshot()
	if snap.Track.ID != "A" || !snap.IsPlaying || h.h0.Source() != urlFor("A") {
		t.Errorf("state changed after failed skip: %+v", snap)
	}
}

func TestPreviousSong(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B", "C"}, 0)

	h.h0.setPosition(10*time.Second, 3*time.Minute)
	if err := h.s.PreviousSong(ctx); err != nil {
		t.Fatal(err)
	}
	if currentID(h.s) != "A" || h.h0.Position() != 0 {
		t.Errorf("past threshold: current=%s position=%v, want restart of A", currentID(h.s), h.h0.Position())
	}

	h.h0.setPosition(2*time.Second, 3*time.Minute)
	if err := h.s.PreviousSong(ctx); err != nil {
		t.Fatal(err)
	}
	if got := currentID(h.s); got != "C" {
		t.Errorf("previous from first track = %s, want C", got)
	}
}

func TestNextSong_NoTrackIsNoop(t *testing.T) {
	h := newHarness(t, instantTiming())
	if err := h.s.NextSong(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if err := h.s.PreviousSong(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.s.TogglePlay(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(h.resolver.requests()) != 0 || h.sink.total() != 0 {
		t.Error("operations without a track had side effects")
	}
}

func TestTogglePlay_FadesAndPublishes(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A"}, 0)

	if err := h.s.TogglePlay(ctx); err != nil {
		t.Fatal(err)
	}
	if h.s.Snapshot().IsPlaying || h.h0.Playing() {
		t.Error("pause did not stop playback")
	}
	if h.h0.Volume() != 0.8 {
		t.Errorf("volume after pause = %v, want restored 0.8", h.h0.Volume())
	}

	if err := h.s.TogglePlay(ctx); err != nil {
		t.Fatal(err)
	}
	if !h.s.Snapshot().IsPlaying || !h.h0.Playing() || h.h0.Volume() != 0.8 {
		t.Errorf("resume: playing=%v volume=%v", h.h0.Playing(), h.h0.Volume())
	}

	if got := h.sink.plays; len(got) != 2 || got[0] || !got[1] {
		t.Errorf("published play states = %v, want [false true]", got)
	}
}

func TestTogglePlay_WithoutEcho(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A"}, 0)

	if err := h.s.TogglePlay(context.Background(), WithoutEcho()); err != nil {
		t.Fatal(err)
	}
	if h.s.Snapshot().IsPlaying {
		t.Error("toggle without echo did not pause")
	}
	if h.sink.total() != 0 {
		t.Error("toggle without echo published")
	}
}

func TestTogglePlay_LazyInit(t *testing.T) {
	h := newHarness(t, instantTiming())
	track := tracks("X")[0]
	h.s.SwitchTrack(track)
	h.s.SetProgress(42 * time.Second)

	if err := h.s.TogglePlay(context.Background()); err != nil {
		t.Fatal(err)
	}

	req := h.resolver.requests()[0]
	if req.TrackID != "X" || req.ContextID != "X" || req.ContextType != core.ContextSong {
		t.Errorf("lazy resolve request = %+v, want lone song", req)
	}
	if h.h0.Source() != urlFor("X") || !h.h0.Playing() {
		t.Errorf("active handle src=%q playing=%v", h.h0.Source(), h.h0.Playing())
	}
	if h.h0.Position() != 42*time.Second {
		t.Errorf("position after lazy init = %v, want 42s", h.h0.Position())
	}
	if !h.s.Snapshot().IsPlaying {
		t.Error("not playing after lazy init")
	}
}

func TestTogglePlay_LazyInitFailure(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.s.SwitchTrack(tracks("X")[0])
	h.resolver.failOn("X")

	err := h.s.TogglePlay(context.Background())
	if !errors.Is(err, tandemerrors.ErrResolveFailed) {
		t.Fatalf("TogglePlay() error = %v, want ErrResolveFailed", err)
	}
	if h.s.Snapshot().IsPlaying || h.sink.total() != 0 {
		t.Error("failed lazy init changed the play flag or published")
	}
}

func TestSetVolume(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A"}, 0)

	for _, v := range []float64{0.2, 0.35, 1.7} {
		h.s.SetVolume(v)
	}
	if h.h0.Volume() != 1 || h.s.Snapshot().Volume != 1 {
		t.Errorf("volume = %v, want clamped 1", h.h0.Volume())
	}
	if got := h.sink.volumes; len(got) != 3 || got[2] != 100 {
		t.Errorf("published volumes = %v", got)
	}

	h.s.SetVolume(0.4, WithoutEcho())
	if len(h.sink.volumes) != 3 {
		t.Error("SetVolume without echo published")
	}
}

func TestSetProgress_DoesNotPublish(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A"}, 0)
	h.s.SetProgress(95 * time.Second)

	if h.h0.Position() != 95*time.Second {
		t.Errorf("position = %v", h.h0.Position())
	}
	if h.sink.total() != 0 {
		t.Error("seek published a mutation")
	}
}

func TestNonPrime_Silence(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.prime.prime.Store(false)
	ctx := context.Background()

	var mu sync.Mutex
	var audible []float64
	record := func(v float64) {
		if v != 0 {
			mu.Lock()
			audible = append(audible, v)
			mu.Unlock()
		}
	}
	h.h0.hook(record)
	h.h1.hook(record)

	h.play(t, []string{"A", "B"}, 0)
	h.s.SetVolume(0.3)
	_ = h.s.TogglePlay(ctx)
	_ = h.s.TogglePlay(ctx)
	_ = h.s.PrepareNextSong(ctx)
	h.s.StartCrossfade(ctx)

	if len(audible) != 0 {
		t.Errorf("non-prime device emitted volumes %v", audible)
	}
	if got := h.s.Snapshot().Volume; got != 0.3 {
		t.Errorf("stored volume = %v, want 0.3", got)
	}

	h.h0.hook(nil)
	h.h1.hook(nil)
	h.prime.prime.Store(true)
	h.s.RefreshAudibility()
	if got := h.h1.Volume(); got != 0.3 {
		t.Errorf("volume after gaining prime = %v, want 0.3", got)
	}
}

func TestToggleShuffle_RoundTrip(t *testing.T) {
	h := newHarness(t, instantTiming())
	ids := []string{"A", "B", "C", "D", "E", "F"}
	h.play(t, ids, 2)

	if !h.s.ToggleShuffle() {
		t.Fatal("ToggleShuffle() = false")
	}
	snap := h.s.Snapshot()
	if snap.Queue[0].ID != "C" || snap.QueueIndex != 0 {
		t.Errorf("shuffled queue starts with %s at index %d", snap.Queue[0].ID, snap.QueueIndex)
	}

	if h.s.ToggleShuffle() {
		t.Fatal("ToggleShuffle() = true")
	}
	snap = h.s.Snapshot()
	for i, tr := range snap.Queue {
		if tr.ID != ids[i] {
			t.Fatalf("restored order = %v, want %v", snap.Queue, ids)
		}
	}
	if snap.QueueIndex != 2 {
		t.Errorf("QueueIndex = %d, want 2", snap.QueueIndex)
	}
	if got := h.sink.shuffle; len(got) != 2 || !got[0] || got[1] {
		t.Errorf("published shuffle = %v", got)
	}

	h.s.ToggleShuffle(WithoutEcho())
	if len(h.sink.shuffle) != 2 {
		t.Error("ToggleShuffle without echo published")
	}
}

func TestToggleRepeat(t *testing.T) {
	h := newHarness(t, instantTiming())

	for _, want := range []core.RepeatMode{core.RepeatAll, core.RepeatOne, core.RepeatNone} {
		if got := h.s.CycleRepeat(); got != want {
			t.Errorf("CycleRepeat() = %s, want %s", got, want)
		}
	}
	if got := h.s.ToggleRepeat(core.RepeatOne, WithoutEcho()); got != core.RepeatOne {
		t.Errorf("explicit mode = %s", got)
	}
	if len(h.sink.repeat) != 3 {
		t.Errorf("published repeat = %v, want 3 entries", h.sink.repeat)
	}
}

func TestCrossfade_VolumeConservation(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B", "C"}, 0)

	if err := h.s.PrepareNextSong(ctx); err != nil {
		t.Fatal(err)
	}
	type sample struct{ in, out float64 }
	var samples []sample
	h.h0.hook(func(out float64) {
		samples = append(samples, sample{in: h.h1.Volume(), out: out})
	})

	if !h.s.StartCrossfade(ctx) {
		t.Fatal("StartCrossfade() did not run")
	}

	if len(samples) != DefaultTiming().CrossfadeSteps {
		t.Fatalf("sampled %d steps, want %d", len(samples), DefaultTiming().CrossfadeSteps)
	}
	for i, s := range samples {
		if math.Abs(s.in+s.out-0.8) > 1e-9 {
			t.Errorf("step %d: in %v + out %v != 0.8", i+1, s.in, s.out)
		}
		if i > 0 && s.in < samples[i-1].in {
			t.Errorf("step %d: incoming volume fell", i+1)
		}
	}
	last := samples[len(samples)-1]
	if last.in != 0.8 || last.out != 0 {
		t.Errorf("final step = %+v, want in 0.8 out 0", last)
	}

	snap := h.s.Snapshot()
	if snap.Track.ID != "B" || snap.Crossfading || !snap.IsPlaying {
		t.Errorf("after crossfade: %+v", snap)
	}
	if h.h0.Source() != "" || h.h0.Playing() {
		t.Error("outgoing handle not cleared")
	}
	if h.h1.Source() != urlFor("B") || h.h1.Volume() != 0.8 {
		t.Errorf("incoming handle src=%q volume=%v", h.h1.Source(), h.h1.Volume())
	}
	if snap.Next == nil || snap.Next.ID != "C" {
		t.Errorf("lookahead not re-armed: next = %+v", snap.Next)
	}
}

func TestCrossfade_SetVolumeAppliesImmediately(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B"}, 0)
	if err := h.s.PrepareNextSong(ctx); err != nil {
		t.Fatal(err)
	}

	xf, ok := h.s.beginCrossfade()
	if !ok {
		t.Fatal("beginCrossfade() did not start")
	}
	h.s.SetVolume(0.4)
	if h.h0.Volume() != 0.4 || h.h1.Volume() != 0 {
		t.Errorf("mid-crossfade volumes out=%v in=%v, want 0.4 and 0", h.h0.Volume(), h.h1.Volume())
	}

	type sample struct{ in, out float64 }
	var samples []sample
	h.h0.hook(func(out float64) {
		samples = append(samples, sample{in: h.h1.Volume(), out: out})
	})
	h.s.runCrossfade(ctx, xf)

	for i, s := range samples {
		if math.Abs(s.in+s.out-0.4) > 1e-9 {
			t.Errorf("step %d: in %v + out %v != 0.4", i+1, s.in, s.out)
		}
	}
	if h.h1.Volume() != 0.4 {
		t.Errorf("incoming volume after crossfade = %v, want 0.4", h.h1.Volume())
	}
}

func TestCrossfade_RequiresPreparedItem(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B"}, 0)
	if h.s.StartCrossfade(context.Background()) {
		t.Error("StartCrossfade() ran without a prepared item")
	}
}

func TestCrossfade_NonPrimeHonorsDuration(t *testing.T) {
	timing := instantTiming()
	timing.CrossfadeDuration = 5 * time.Second
	h := newHarness(t, timing)
	h.prime.prime.Store(false)
	ctx := context.Background()
	h.play(t, []string{"A", "B"}, 0)
	if err := h.s.PrepareNextSong(ctx); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var audible int
	count := func(v float64) {
		if v != 0 {
			mu.Lock()
			audible++
			mu.Unlock()
		}
	}
	h.h0.hook(count)
	h.h1.hook(count)

	done := make(chan struct{})
	go func() {
		h.s.StartCrossfade(ctx)
		close(done)
	}()

	var advanced time.Duration
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
			if advanced > time.Minute {
				t.Fatal("crossfade did not finish")
			}
			h.clock.Add(100 * time.Millisecond)
			advanced += 100 * time.Millisecond
		}
	}

	if advanced < 5*time.Second {
		t.Errorf("crossfade finished after %v of clock time, want at least 5s", advanced)
	}
	mu.Lock()
	defer mu.Unlock()
	if audible != 0 {
		t.Errorf("%d audible volume changes on a non-prime device", audible)
	}
}

func TestPlayTrack_InterruptsCrossfade(t *testing.T) {
	timing := instantTiming()
	timing.CrossfadeDuration = 5 * time.Second
	h := newHarness(t, timing)
	ctx := context.Background()
	h.play(t, []string{"A", "B", "C"}, 0)
	if err := h.s.PrepareNextSong(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		h.s.StartCrossfade(ctx)
		close(done)
	}()
	waitUntil(t, "crossfade to start", func() bool { return h.s.Snapshot().Crossfading })

	c := tracks("C")[0]
	h.s.PlayTrack(c, urlFor("C"), album, nil)

	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
			h.clock.Add(100 * time.Millisecond)
		}
	}

	snap := h.s.Snapshot()
	if snap.Crossfading || snap.Track.ID != "C" {
		t.Errorf("after interrupt: crossfading=%v track=%s", snap.Crossfading, snap.Track.ID)
	}
	// The crossfade had flipped to h1 before it was interrupted.
	if h.h1.Source() != urlFor("C") || h.h1.Volume() != 0.8 {
		t.Errorf("active handle src=%q volume=%v", h.h1.Source(), h.h1.Volume())
	}
	if h.h0.Source() != "" {
		t.Errorf("standby handle still loaded with %q", h.h0.Source())
	}
}

func TestPrepareNextSong(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B"}, 0)

	if err := h.s.PrepareNextSong(ctx); err != nil {
		t.Fatal(err)
	}
	if next := h.s.Snapshot().Next; next == nil || next.ID != "B" {
		t.Fatalf("prepared = %+v", next)
	}
	if h.h1.Source() != "" {
		t.Error("prepare touched the standby handle")
	}

	// Already prepared: no second resolution.
	before := len(h.resolver.requests())
	_ = h.s.PrepareNextSong(ctx)
	if len(h.resolver.requests()) != before {
		t.Error("PrepareNextSong() resolved again with an item prepared")
	}
}

func TestPrepareNextSong_NoSuccessorAtEnd(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B"}, 1)
	if err := h.s.PrepareNextSong(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.s.Snapshot().Next != nil {
		t.Error("prepared a successor past the end under repeat none")
	}
}

func TestPrepareNextSong_StaleResultDropped(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx := context.Background()
	h.play(t, []string{"A", "B", "C"}, 0)
	release := h.resolver.gate("B")

	errc := make(chan error, 1)
	go func() { errc <- h.s.PrepareNextSong(ctx) }()
	waitUntil(t, "prepare to start", func() bool { return len(h.resolver.requests()) == 2 })

	h.s.SwitchTrack(tracks("C")[0])
	close(release)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if next := h.s.Snapshot().Next; next != nil {
		t.Errorf("stale preparation kept: %+v", next)
	}
}

func TestSwitchTrack(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B"}, 0)
	h.s.SwitchTrack(tracks("B")[0])

	snap := h.s.Snapshot()
	if snap.Track.ID != "B" || snap.IsPlaying || snap.QueueIndex != 1 || snap.State != core.StatePaused {
		t.Errorf("snapshot = %+v", snap)
	}
	if h.h0.Source() != "" || h.h1.Source() != "" {
		t.Error("SwitchTrack() left a handle loaded")
	}
	if h.sink.total() != 0 {
		t.Error("SwitchTrack() published")
	}
}

func TestRun_DrivesLookahead(t *testing.T) {
	h := newHarness(t, instantTiming())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.play(t, []string{"A", "B", "C"}, 0)

	done := make(chan struct{})
	go func() {
		_ = h.s.Run(ctx)
		close(done)
	}()

	tickUntil := func(what string, cond func() bool) {
		t.Helper()
		for i := 0; !cond(); i++ {
			if i > 1000 {
				t.Fatalf("timed out waiting for %s", what)
			}
			h.clock.Add(DefaultTiming().TickInterval)
		}
	}

	h.h0.setPosition(2*time.Minute+45*time.Second, 3*time.Minute)
	tickUntil("prepare", func() bool {
		next := h.s.Snapshot().Next
		return next != nil && next.ID == "B"
	})

	h.h0.setPosition(2*time.Minute+52*time.Second, 3*time.Minute)
	tickUntil("crossfade", func() bool { return currentID(h.s) == "B" && !h.s.Snapshot().Crossfading })

	h.h1.setPosition(3*time.Minute, 3*time.Minute)
	h.h1.mu.Lock()
	h.h1.ended = true
	h.h1.mu.Unlock()
	tickUntil("advance at end", func() bool { return currentID(h.s) == "C" })

	cancel()
	<-done
}

func TestPlayIndex(t *testing.T) {
	h := newHarness(t, instantTiming())
	h.play(t, []string{"A", "B", "C"}, 0)

	if err := h.s.PlayIndex(context.Background(), 2); err != nil {
		t.Fatalf("PlayIndex() error = %v", err)
	}
	snap := h.s.Snapshot()
	if snap.Track.ID != "C" || snap.QueueIndex != 2 || len(snap.Queue) != 3 {
		t.Errorf("snapshot = track %s index %d queue %d", snap.Track.ID, snap.QueueIndex, len(snap.Queue))
	}

	err := h.s.PlayIndex(context.Background(), 5)
	if !errors.Is(err, tandemerrors.ErrTrackNotFound) {
		t.Errorf("PlayIndex(5) error = %v, want ErrTrackNotFound", err)
	}
	if got := currentID(h.s); got != "C" {
		t.Errorf("current after bad index = %s", got)
	}
}
