// Package deferq is a single-slot hand-off from interrupt context to the main
// loop. An ISR posts work bits and never blocks; the main loop wakes on C()
// and takes the accumulated bits in one swap. Repeated posts before the main
// loop runs coalesce into the same slot.
package deferq

import "sync/atomic"

type Slot struct {
	bits  uint32
	ch    chan struct{}
	drops uint32
}

func New() *Slot {
	return &Slot{ch: make(chan struct{}, 1)}
}

// Post ORs bits into the slot and signals the consumer. Safe from an ISR.
func (s *Slot) Post(bits uint32) {
	for {
		old := atomic.LoadUint32(&s.bits)
		if atomic.CompareAndSwapUint32(&s.bits, old, old|bits) {
			if old&bits == bits {
				// Already pending; the earlier signal covers it.
				atomic.AddUint32(&s.drops, 1)
			}
			break
		}
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C is signalled after at least one Post.
func (s *Slot) C() <-chan struct{} { return s.ch }

// Take returns and clears all pending bits.
func (s *Slot) Take() uint32 { return atomic.SwapUint32(&s.bits, 0) }

// Pending reports the bits posted but not yet taken.
func (s *Slot) Pending() uint32 { return atomic.LoadUint32(&s.bits) }

// Coalesced counts posts that landed on bits already pending.
func (s *Slot) Coalesced() uint32 { return atomic.LoadUint32(&s.drops) }
