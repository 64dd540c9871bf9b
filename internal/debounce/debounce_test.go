package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// recorder collects values passed to debounced functions.
type recorder struct {
	mu     sync.Mutex
	values []int
	fired  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) fn(v int) func() {
	return func() {
		r.mu.Lock()
		r.values = append(r.values, v)
		r.mu.Unlock()
		r.fired <- struct{}{}
	}
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function did not fire")
	}
}

func TestDebouncer_TrailingEdge(t *testing.T) {
	mock := clock.NewMock()
	d := New(mock, 500*time.Millisecond)
	rec := newRecorder()

	for i := 1; i <= 5; i++ {
		d.Schedule(rec.fn(i))
		mock.Add(100 * time.Millisecond)
	}

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("fired during burst: %v", got)
	}

	mock.Add(500 * time.Millisecond)
	rec.wait(t)

	got := rec.snapshot()
	if len(got) != 1 || got[0] != 5 {
		t.Errorf("values = %v, want [5]", got)
	}
	if d.Pending() {
		t.Error("Pending() = true after fire")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	mock := clock.NewMock()
	d := New(mock, 200*time.Millisecond)
	rec := newRecorder()

	d.Schedule(rec.fn(1))
	d.Cancel()
	mock.Add(time.Second)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("cancelled function fired: %v", got)
	}
}

func TestDebouncer_Flush(t *testing.T) {
	mock := clock.NewMock()
	d := New(mock, time.Second)
	rec := newRecorder()

	d.Schedule(rec.fn(7))
	d.Flush()

	if got := rec.snapshot(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("values = %v, want [7]", got)
	}

	mock.Add(2 * time.Second)
	if got := rec.snapshot(); len(got) != 1 {
		t.Errorf("flushed function fired again: %v", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	mock := clock.NewMock()
	d := New(mock, 100*time.Millisecond)
	rec := newRecorder()

	d.Stop()
	d.Schedule(rec.fn(1))
	mock.Add(time.Second)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("stopped debouncer fired: %v", got)
	}
}

func TestDebouncer_IndependentInstances(t *testing.T) {
	mock := clock.NewMock()
	fast := New(mock, 200*time.Millisecond)
	slow := New(mock, 500*time.Millisecond)
	rec := newRecorder()

	slow.Schedule(rec.fn(2))
	fast.Schedule(rec.fn(1))

	mock.Add(200 * time.Millisecond)
	rec.wait(t)
	mock.Add(300 * time.Millisecond)
	rec.wait(t)

	got := rec.snapshot()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("values = %v, want [1 2]", got)
	}
}
