package sim

import (
	"sort"
	"sync"
	"time"

	"powercode-go/x/timex"
)

// Clock is a manual timex.Clock. Time moves only through Advance and Sleep;
// timers fire synchronously on the advancing goroutine.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
	seq    int
}

type timer struct {
	at    time.Time
	seq   int
	f     func()
	c     *Clock
	fired bool
	dead  bool
}

func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.dead {
		return false
	}
	t.dead = true
	return true
}

var _ timex.Clock = (*Clock)(nil)

func NewClock() *Clock {
	return &Clock{now: time.Unix(1_700_000_000, 0)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) timex.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &timer{at: c.now.Add(d), seq: c.seq, f: f, c: c}
	c.timers = append(c.timers, t)
	return t
}

// Sleep advances time by d, firing due timers.
func (c *Clock) Sleep(d time.Duration) { c.Advance(d) }

// Advance moves time forward by d and fires every timer due by then, in
// deadline order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		t := c.nextDueLocked(end)
		if t == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		c.now = t.at
		t.fired = true
		c.mu.Unlock()
		t.f()
	}
}

func (c *Clock) nextDueLocked(end time.Time) *timer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.fired && !t.dead {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.Slice(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})
	if len(live) == 0 || live[0].at.After(end) {
		return nil
	}
	return live[0]
}

// PendingTimers counts timers that have neither fired nor been stopped.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.dead {
			n++
		}
	}
	return n
}
