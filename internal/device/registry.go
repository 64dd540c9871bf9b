package device

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"github.com/tessro/tandem/internal/core"
)

// Registry is the set of devices known to be part of the session.
type Registry struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	devices []core.Device
	onSeen  func(core.Device, bool)
}

// NewRegistry returns an empty registry. Devices unseen for longer than ttl
// are dropped by Prune; a ttl of zero keeps them forever.
func NewRegistry(clk clock.Clock, ttl time.Duration) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{clock: clk, ttl: ttl}
}

// OnSeen registers a callback invoked after Observe with the device and
// whether it was new to the registry.
func (r *Registry) OnSeen(fn func(d core.Device, added bool)) {
	r.mu.Lock()
	r.onSeen = fn
	r.mu.Unlock()
}

// Replace swaps the whole registry, typically with a bootstrap fetch.
// Devices without a last-seen time are stamped with the current time.
func (r *Registry) Replace(devices []core.Device) {
	now := r.clock.Now()
	next := lo.Map(devices, func(d core.Device, _ int) core.Device {
		if d.LastSeen.IsZero() {
			d.LastSeen = now
		}
		return d
	})

	r.mu.Lock()
	r.devices = next
	r.mu.Unlock()
}

// Observe records a device ping: an existing id gets its last-seen time
// updated, an unknown id is appended. Entries are never removed here.
func (r *Registry) Observe(d core.Device) {
	if d.LastSeen.IsZero() {
		d.LastSeen = r.clock.Now()
	}

	r.mu.Lock()
	_, idx, found := lo.FindIndexOf(r.devices, func(existing core.Device) bool {
		return existing.ID == d.ID
	})
	if found {
		r.devices[idx].LastSeen = d.LastSeen
	} else {
		r.devices = append(r.devices, d)
	}
	onSeen := r.onSeen
	r.mu.Unlock()

	if onSeen != nil {
		onSeen(d, !found)
	}
}

// Prune drops devices unseen for longer than the ttl and returns how many
// were removed. keep is never pruned.
func (r *Registry) Prune(keep string) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.clock.Now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.devices)
	r.devices = lo.Filter(r.devices, func(d core.Device, _ int) bool {
		return d.ID == keep || !d.LastSeen.Before(cutoff)
	})
	return before - len(r.devices)
}

// Devices returns a copy of the registry, most recently seen first.
func (r *Registry) Devices() []core.Device {
	r.mu.RLock()
	out := make([]core.Device, len(r.devices))
	copy(out, r.devices)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Get returns the device with the given id.
func (r *Registry) Get(id string) (core.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Find(r.devices, func(d core.Device) bool { return d.ID == id })
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
