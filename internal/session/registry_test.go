package session

import (
	"testing"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
)

func testRegistry(t *testing.T, size int) *Registry {
	t.Helper()
	calculator := newGatedCalculator()
	calculator.results["1 25544U"] = issResult()

	r, err := NewRegistry(size, Options{
		Calculator: calculator,
		Display:    calc.Display{Location: time.UTC},
		Logger:     testLogger(),
	}, func() Inputs { return Inputs{Line1: "1 25544U", Line2: "2 25544"} })
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func stopped(c *Controller) bool {
	select {
	case <-c.Done():
		return true
	case <-time.After(time.Second):
		return false
	}
}

func TestRegistryCreateGetRemove(t *testing.T) {
	r := testRegistry(t, 4)

	id, c := r.Create()
	if id == "" {
		t.Fatal("empty session id")
	}
	got, ok := r.Get(id)
	if !ok || got != c {
		t.Fatal("Get did not return the created controller")
	}
	waitFor(t, c, func(p Page) bool { return p.ShowResults })

	if !r.Remove(id) {
		t.Error("Remove reported a missing session")
	}
	if !stopped(c) {
		t.Error("removed controller still running")
	}
	if _, ok := r.Get(id); ok {
		t.Error("removed session still registered")
	}
	if r.Remove(id) {
		t.Error("second Remove reported success")
	}
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	r := testRegistry(t, 2)

	idA, a := r.Create()
	idB, _ := r.Create()
	r.Get(idA)
	_, _ = r.Create()

	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if _, ok := r.Get(idB); ok {
		t.Error("least recently used session was not evicted")
	}
	if _, ok := r.Get(idA); !ok {
		t.Error("recently used session was evicted")
	}
	if stopped(a) {
		t.Error("live session was stopped")
	}
}

func TestRegistryIDsUnique(t *testing.T) {
	r := testRegistry(t, 100)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, _ := r.Create()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
