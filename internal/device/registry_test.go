package device

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tessro/tandem/internal/core"
)

func TestRegistry_ObserveUpdatesOrAppends(t *testing.T) {
	clk := clock.NewMock()
	r := NewRegistry(clk, 0)
	r.Replace([]core.Device{{ID: "A", Name: "Desktop"}, {ID: "B", Name: "iPhone"}})

	start := clk.Now()
	clk.Add(time.Minute)

	var added []bool
	r.OnSeen(func(_ core.Device, isNew bool) { added = append(added, isNew) })

	r.Observe(core.Device{ID: "B", Name: "renamed"})
	r.Observe(core.Device{ID: "C", Name: "Android", Class: core.DeviceMobile})

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	b, _ := r.Get("B")
	if !b.LastSeen.Equal(start.Add(time.Minute)) {
		t.Errorf("B.LastSeen = %v", b.LastSeen)
	}
	if b.Name != "iPhone" {
		t.Errorf("Observe changed name to %q", b.Name)
	}
	a, _ := r.Get("A")
	if !a.LastSeen.Equal(start) {
		t.Errorf("A.LastSeen = %v, want bootstrap stamp", a.LastSeen)
	}
	if len(added) != 2 || added[0] || !added[1] {
		t.Errorf("OnSeen added flags = %v, want [false true]", added)
	}

	devices := r.Devices()
	if devices[len(devices)-1].ID != "A" {
		t.Errorf("least recently seen device = %s, want A", devices[len(devices)-1].ID)
	}
}

func TestRegistry_Prune(t *testing.T) {
	clk := clock.NewMock()
	r := NewRegistry(clk, 15*time.Minute)
	r.Replace([]core.Device{{ID: "SELF"}, {ID: "OLD"}, {ID: "FRESH"}})

	clk.Add(10 * time.Minute)
	r.Observe(core.Device{ID: "FRESH"})
	clk.Add(10 * time.Minute)

	if removed := r.Prune("SELF"); removed != 1 {
		t.Errorf("Prune() removed %d, want 1", removed)
	}
	if _, ok := r.Get("OLD"); ok {
		t.Error("OLD survived pruning")
	}
	if _, ok := r.Get("SELF"); !ok {
		t.Error("local device was pruned")
	}
	if _, ok := r.Get("FRESH"); !ok {
		t.Error("FRESH was pruned")
	}
}

func TestRegistry_PruneDisabled(t *testing.T) {
	clk := clock.NewMock()
	r := NewRegistry(clk, 0)
	r.Replace([]core.Device{{ID: "A"}})
	clk.Add(24 * time.Hour)

	if removed := r.Prune(""); removed != 0 || r.Len() != 1 {
		t.Errorf("Prune() with ttl 0 removed %d", removed)
	}
}
