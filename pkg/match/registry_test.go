package match

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bancho-go/bancho/pkg/protocol"
)

func newTestMatch(name string) *Match {
	return New(name, "", 1, Beatmap{}, protocol.ModeOsu, 0)
}

func TestRegistryCreateAssignsLowestFreeID(t *testing.T) {
	r := NewRegistry(nil)

	a := newTestMatch("a")
	b := newTestMatch("b")
	c := newTestMatch("c")
	for _, m := range []*Match{a, b, c} {
		if err := r.Create(m); err != nil {
			t.Fatal(err)
		}
	}
	if a.ID != 0 || b.ID != 1 || c.ID != 2 {
		t.Fatalf("ids = %d, %d, %d, want 0, 1, 2", a.ID, b.ID, c.ID)
	}

	// Dispose the middle match; the next create reuses its id.
	r.Remove(b)
	d := newTestMatch("d")
	if err := r.Create(d); err != nil {
		t.Fatal(err)
	}
	if d.ID != 1 {
		t.Fatalf("reused id = %d, want 1", d.ID)
	}
	if got := r.Get(1); got != d {
		t.Fatal("Get(1) returned stale match")
	}
}

func TestRegistryFull(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < MaxMatches; i++ {
		if err := r.Create(newTestMatch(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if err := r.Create(newTestMatch("overflow")); !errors.Is(err, ErrNoFreeMatches) {
		t.Fatalf("65th create: %v, want ErrNoFreeMatches", err)
	}
	if got := r.Count(); got != MaxMatches {
		t.Fatalf("Count = %d, want %d", got, MaxMatches)
	}
}

func TestRegistryRemoveStale(t *testing.T) {
	r := NewRegistry(nil)
	a := newTestMatch("a")
	if err := r.Create(a); err != nil {
		t.Fatal(err)
	}
	r.Remove(a)

	// The id has been recycled to a new match; removing the old one
	// again must not evict the new occupant.
	b := newTestMatch("b")
	if err := r.Create(b); err != nil {
		t.Fatal(err)
	}
	r.Remove(a)
	if got := r.Get(b.ID); got != b {
		t.Fatal("stale remove evicted the replacement match")
	}

	// Out-of-range and nil are no-ops.
	r.Remove(nil)
	r.Remove(&Match{ID: 200})
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < 3; i++ {
		if err := r.Create(newTestMatch(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	r.Remove(r.Get(1))

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("All = %d matches, want 2", len(all))
	}
	if all[0].ID != 0 || all[1].ID != 2 {
		t.Fatalf("ids = %d, %d, want 0, 2", all[0].ID, all[1].ID)
	}
}
