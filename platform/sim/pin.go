package sim

import (
	"errors"
	"sync"

	"powercode-go/services/power"
)

// Pin is a GPIO that remembers how it was configured. It satisfies both the
// mux-enable contract and the sleep-pin contract.
type Pin struct {
	mu     sync.Mutex
	Name   string
	level  bool
	output bool
	pull   power.Pull
	sets   int
	fail   bool
	onFall func()
}

var ErrPin = errors.New("sim: pin configuration failed")

func NewPin(name string) *Pin { return &Pin{Name: name} }

func (p *Pin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.sets++
	p.mu.Unlock()
}

func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *Pin) ConfigureInput(pull power.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return ErrPin
	}
	p.output = false
	p.pull = pull
	return nil
}

func (p *Pin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return ErrPin
	}
	p.output = true
	p.pull = power.PullNone
	p.level = initial
	return nil
}

// Mode reports the last configuration: output flag and pull.
func (p *Pin) Mode() (output bool, pull power.Pull) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output, p.pull
}

func (p *Pin) Fail(on bool) { p.mu.Lock(); p.fail = on; p.mu.Unlock() }

// OnFallingEdge installs the edge handler, as an interrupt registration would.
func (p *Pin) OnFallingEdge(h func()) error {
	p.mu.Lock()
	p.onFall = h
	p.mu.Unlock()
	return nil
}

// Fall pulses the line low and runs the edge handler.
func (p *Pin) Fall() {
	p.mu.Lock()
	p.level = false
	h := p.onFall
	p.mu.Unlock()
	if h != nil {
		h()
	}
	p.Set(true)
}

// Tone records the frequencies a buzzer produced.
type Tone struct {
	mu      sync.Mutex
	freqs   []uint32
	stopped int
}

func (t *Tone) SetFrequency(hz uint32) {
	t.mu.Lock()
	t.freqs = append(t.freqs, hz)
	t.mu.Unlock()
}

func (t *Tone) Stop() {
	t.mu.Lock()
	t.stopped++
	t.mu.Unlock()
}

func (t *Tone) Frequencies() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint32(nil), t.freqs...)
}

func (t *Tone) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Journal is an ordered event log shared between simulated parts.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Add(e string) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// Index returns the position of the first entry equal to e, or -1.
func (j *Journal) Index(e string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, x := range j.entries {
		if x == e {
			return i
		}
	}
	return -1
}

func (j *Journal) Reset() { j.mu.Lock(); j.entries = nil; j.mu.Unlock() }
