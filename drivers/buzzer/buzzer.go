// Package buzzer plays the audible fault signal: a short rising sweep,
// repeated, on a PWM tone output.
package buzzer

import (
	"errors"
	"time"

	"powercode-go/x/ramp"
	"powercode-go/x/timex"
)

// Tone is a square-wave output. SetFrequency(0) is silence.
type Tone interface {
	SetFrequency(hz uint32)
	Stop()
}

type Config struct {
	FromHz  uint32
	ToHz    uint32
	Sweep   time.Duration
	Steps   uint16
	Repeats uint8
	Gap     time.Duration
}

func DefaultConfig() Config {
	return Config{
		FromHz:  1500,
		ToHz:    3000,
		Sweep:   150 * time.Millisecond,
		Steps:   15,
		Repeats: 3,
		Gap:     50 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.FromHz == 0 || c.ToHz == 0 {
		return errors.New("buzzer: frequencies must be non-zero")
	}
	if c.Repeats == 0 {
		return errors.New("buzzer: Repeats must be at least 1")
	}
	return nil
}

type Buzzer struct {
	tone  Tone
	clock timex.Clock
	cfg   Config
}

func New(tone Tone, clock timex.Clock, cfg Config) *Buzzer {
	return &Buzzer{tone: tone, clock: timex.Or(clock), cfg: cfg}
}

// Sound plays the fault ramp and returns when the output is silent again.
// It blocks for roughly Repeats*(Sweep+Gap).
func (b *Buzzer) Sound() {
	if b.tone == nil {
		return
	}
	tick := func(d time.Duration) bool { b.clock.Sleep(d); return true }
	for i := uint8(0); i < b.cfg.Repeats; i++ {
		ramp.Linear(b.cfg.FromHz, b.cfg.ToHz, b.cfg.Sweep, b.cfg.Steps, tick, b.tone.SetFrequency)
		b.tone.SetFrequency(0)
		if i+1 < b.cfg.Repeats {
			b.clock.Sleep(b.cfg.Gap)
		}
	}
	b.tone.Stop()
}
