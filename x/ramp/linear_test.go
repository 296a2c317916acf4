package ramp

import (
	"testing"
	"time"
)

func TestLinearEndsOnTarget(t *testing.T) {
	var got []uint32
	ticks := 0
	Linear(1000, 2000, 40*time.Millisecond, 4, func(time.Duration) bool { ticks++; return true },
		func(v uint32) { got = append(got, v) })

	want := []uint32{1000, 1250, 1500, 1750, 2000}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if ticks != 4 {
		t.Fatalf("ticks = %d, want 4", ticks)
	}
}

func TestLinearDescendingAndSnap(t *testing.T) {
	var last uint32
	Linear(3000, 1000, 10*time.Millisecond, 3, func(time.Duration) bool { return true },
		func(v uint32) { last = v })
	if last != 1000 {
		t.Fatalf("last = %d", last)
	}

	var n int
	Linear(5, 9, 0, 10, func(time.Duration) bool { t.Fatal("tick on snap"); return false },
		func(v uint32) { n++; last = v })
	if n != 1 || last != 9 {
		t.Fatalf("snap: n=%d last=%d", n, last)
	}
}

func TestLinearCancel(t *testing.T) {
	var got []uint32
	Linear(0, 100, 50*time.Millisecond, 5, func(time.Duration) bool { return false },
		func(v uint32) { got = append(got, v) })
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("cancelled ramp wrote %v", got)
	}
}
