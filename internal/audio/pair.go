package audio

// Pair is exactly two handles and the index of the active one. The other
// handle is the standby used to pre-load the next track for a crossfade.
type Pair struct {
	handles [2]Handle
	active  int
}

// NewPair returns a pair with a active.
func NewPair(a, b Handle) *Pair {
	return &Pair{handles: [2]Handle{a, b}}
}

// Active returns the active handle.
func (p *Pair) Active() Handle {
	return p.handles[p.active]
}

// Standby returns the standby handle.
func (p *Pair) Standby() Handle {
	return p.handles[1-p.active]
}

// ActiveIndex returns 0 or 1.
func (p *Pair) ActiveIndex() int {
	return p.active
}

// Flip swaps the active and standby roles.
func (p *Pair) Flip() {
	p.active = 1 - p.active
}

// At returns handle i (0 or 1).
func (p *Pair) At(i int) Handle {
	return p.handles[i&1]
}

// ClearAll stops and unloads both handles.
func (p *Pair) ClearAll() {
	for _, h := range p.handles {
		h.Clear()
	}
}
