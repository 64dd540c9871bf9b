package core

import (
	"github.com/samber/lo"
	"github.com/samber/lo/mutable"
)

// PlayQueue holds the original track order and the current (possibly shuffled) view of it.
// The zero value is an empty, unshuffled queue.
type PlayQueue struct {
	original []Track
	current  []Track
	shuffled bool
}

// NewPlayQueue returns a queue over a copy of tracks.
func NewPlayQueue(tracks []Track) *PlayQueue {
	return &PlayQueue{
		original: append([]Track(nil), tracks...),
		current:  append([]Track(nil), tracks...),
	}
}

// Len returns the number of tracks in the queue.
func (q *PlayQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.current)
}

// IsEmpty returns true if the queue has no tracks.
func (q *PlayQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Shuffled reports whether the current order is a shuffle of the original.
func (q *PlayQueue) Shuffled() bool {
	return q != nil && q.shuffled
}

// Tracks returns a copy of the current order.
func (q *PlayQueue) Tracks() []Track {
	if q == nil {
		return nil
	}
	return append([]Track(nil), q.current...)
}

// Original returns a copy of the original order.
func (q *PlayQueue) Original() []Track {
	if q == nil {
		return nil
	}
	return append([]Track(nil), q.original...)
}

// At returns the track at index i of the current order.
func (q *PlayQueue) At(i int) (Track, bool) {
	if i < 0 || i >= q.Len() {
		return Track{}, false
	}
	return q.current[i], true
}

// IndexOf returns the position of trackID in the current order, or -1.
func (q *PlayQueue) IndexOf(trackID string) int {
	if q == nil {
		return -1
	}
	_, i, found := lo.FindIndexOf(q.current, func(t Track) bool { return t.ID == trackID })
	if !found {
		return -1
	}
	return i
}

// Successor returns the index that follows current. Repeat-one pins the
// current index; repeat-none reports no successor at the last index.
// Everything else wraps.
func (q *PlayQueue) Successor(current int, repeat RepeatMode) (int, bool) {
	n := q.Len()
	if n == 0 {
		return 0, false
	}
	inRange := current >= 0 && current < n
	if repeat == RepeatOne && inRange {
		return current, true
	}
	if repeat == RepeatNone && current == n-1 {
		return 0, false
	}
	return mod(current+1, n), true
}

// Advance returns the index after current regardless of repeat mode, wrapping.
func (q *PlayQueue) Advance(current int) (int, bool) {
	n := q.Len()
	if n == 0 {
		return 0, false
	}
	return mod(current+1, n), true
}

// Predecessor returns the index before current, wrapping.
func (q *PlayQueue) Predecessor(current int) (int, bool) {
	n := q.Len()
	if n == 0 {
		return 0, false
	}
	return mod(current-1, n), true
}

// Shuffle replaces the current order with a random permutation of the
// original that starts with the first track whose id is pinned.
func (q *PlayQueue) Shuffle(pinned string) {
	_, i, found := lo.FindIndexOf(q.original, func(t Track) bool { return t.ID == pinned })
	rest := lo.Filter(q.original, func(_ Track, j int) bool { return !found || j != i })
	mutable.Shuffle(rest)

	if found {
		q.current = append([]Track{q.original[i]}, rest...)
	} else {
		q.current = rest
	}
	q.shuffled = true
}

// Unshuffle restores the original order exactly.
func (q *PlayQueue) Unshuffle() {
	q.current = append([]Track(nil), q.original...)
	q.shuffled = false
}

// ToggleShuffle flips shuffle and reports the new state.
func (q *PlayQueue) ToggleShuffle(pinned string) bool {
	if q.shuffled {
		q.Unshuffle()
	} else {
		q.Shuffle(pinned)
	}
	return q.shuffled
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
