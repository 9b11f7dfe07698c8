package core

import (
	"errors"
	"testing"
)

func TestRegistryReusesSlotsWithNewGeneration(t *testing.T) {
	r := NewRegistry[string](4)
	a := r.AcquireID("a")
	b := r.AcquireID("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("ids must be distinct and non-zero: a=%#x b=%#x", a, b)
	}

	owner, err := r.ReleaseID(a)
	if err != nil || owner != "a" {
		t.Fatalf("ReleaseID: got (%q, %v), want (\"a\", nil)", owner, err)
	}
	c := r.AcquireID("c")
	if uint32(c) != uint32(a) {
		t.Fatalf("released slot not reused: a=%#x c=%#x", a, c)
	}
	if c == a {
		t.Fatalf("reused slot kept its generation: %#x", c)
	}
	if _, ok := r.Get(a); ok {
		t.Fatalf("stale id %#x still resolves", a)
	}
	if got, _ := r.Get(c); got != "c" {
		t.Fatalf("Get(c): got %q, want \"c\"", got)
	}
	if r.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", r.Len())
	}
}

func TestRegistryReleaseUnknown(t *testing.T) {
	r := NewRegistry[int](0)
	if _, err := r.ReleaseID(42); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("ReleaseID(42): got %v, want ErrUnknownHandle", err)
	}
	id := r.AcquireID(7)
	if _, err := r.ReleaseID(id); err != nil {
		t.Fatalf("ReleaseID: %v", err)
	}
	if _, err := r.ReleaseID(id); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("double ReleaseID: got %v, want ErrUnknownHandle", err)
	}
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < avgCount; i++ {
		m.Update(16 * 1e6)
	}
	if got := m.FrameTime(); got < 15.99 || got > 16.01 {
		t.Fatalf("FrameTime: got %v, want 16", got)
	}
}
