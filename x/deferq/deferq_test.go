package deferq

import (
	"testing"
	"time"
)

func TestPostTakeCoalesce(t *testing.T) {
	s := New()
	s.Post(0x1)
	s.Post(0x1)
	s.Post(0x4)

	select {
	case <-s.C():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no signal")
	}
	if got := s.Take(); got != 0x5 {
		t.Fatalf("Take = %#x, want 0x5", got)
	}
	if s.Pending() != 0 {
		t.Fatal("slot not cleared")
	}
	if s.Coalesced() != 1 {
		t.Fatalf("Coalesced = %d, want 1", s.Coalesced())
	}

	// Only one signal is buffered regardless of post count.
	select {
	case <-s.C():
		t.Fatal("stale signal")
	default:
	}
}
