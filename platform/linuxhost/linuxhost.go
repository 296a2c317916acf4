//go:build linux && !tinygo

// Package linuxhost runs the power subsystem from a Linux SBC: the PMIC on a
// /dev/i2c bus and its lines on sysfs/chardev GPIOs, through periph.io.
package linuxhost

import (
	"errors"
	"os"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"powercode-go/boards"
	"powercode-go/platform"
	"powercode-go/services/power"
	"powercode-go/x/logx"
	"powercode-go/x/timex"
)

const tag = "linuxhost"

// TickInterval is how often a waiting host reports a timer tick.
var TickInterval = time.Second

// Open initialises periph and returns the hardware set for b. Close the
// returned bus when done.
func Open(b boards.Board) (platform.Hardware, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return platform.Hardware{}, nil, err
	}
	bus, err := i2creg.Open(b.I2C)
	if err != nil {
		return platform.Hardware{}, nil, err
	}
	h := &waitHost{wake: make(chan struct{}, 1)}
	hw := platform.Hardware{
		I2C:   bus,
		Host:  h,
		Clock: timex.System{},
	}

	lookup := func(role string, n int) (gpio.PinIO, error) {
		p := gpioreg.ByName("GPIO" + strconv.Itoa(n))
		if p == nil {
			return nil, errors.New("linuxhost: no GPIO" + strconv.Itoa(n) + " for " + role)
		}
		return p, nil
	}
	if b.Pins.MuxEnable >= 0 {
		p, err := lookup("mux", b.Pins.MuxEnable)
		if err != nil {
			bus.Close()
			return platform.Hardware{}, nil, err
		}
		hw.Mux = &pin{p: p}
	}
	fp, err := lookup("fault", b.Pins.Fault)
	if err != nil {
		bus.Close()
		return platform.Hardware{}, nil, err
	}
	hw.Fault = &edgePin{pin: pin{p: fp}, host: h, cause: power.WakeFault}

	if b.Pins.Switch >= 0 {
		p, err := lookup("switch", b.Pins.Switch)
		if err != nil {
			bus.Close()
			return platform.Hardware{}, nil, err
		}
		sw := &edgePin{pin: pin{p: p}, host: h, cause: power.WakeUser}
		if err := sw.OnFallingEdge(nil); err != nil {
			bus.Close()
			return platform.Hardware{}, nil, err
		}
		hw.Switch = sw
	}
	if b.Pins.AuxEnable >= 0 {
		p, err := lookup("aux", b.Pins.AuxEnable)
		if err != nil {
			bus.Close()
			return platform.Hardware{}, nil, err
		}
		hw.AuxEnable = &pin{p: p}
	}
	return hw, bus, nil
}

type pin struct{ p gpio.PinIO }

func (p *pin) Set(level bool) {
	if err := p.p.Out(gpio.Level(level)); err != nil {
		logx.Warn(tag, "gpio out", "pin", p.p.Name(), "err", err)
	}
}

func (p *pin) ConfigureInput(pull power.Pull) error {
	gp := gpio.Float
	switch pull {
	case power.PullUp:
		gp = gpio.PullUp
	case power.PullDown:
		gp = gpio.PullDown
	}
	return p.p.In(gp, gpio.NoEdge)
}

func (p *pin) ConfigureOutput(initial bool) error { return p.p.Out(gpio.Level(initial)) }

// edgePin emulates a falling-edge interrupt with a goroutine blocked in
// WaitForEdge.
type edgePin struct {
	pin
	host  *waitHost
	cause power.WakeCause
}

func (e *edgePin) OnFallingEdge(h func()) error {
	if err := e.p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return err
	}
	go func() {
		for {
			if !e.p.WaitForEdge(-1) {
				continue
			}
			if h != nil {
				h()
			}
			e.host.post(e.cause)
		}
	}()
	return nil
}

// ConfigureInput keeps edge detection armed; the line must stay a wake source.
func (e *edgePin) ConfigureInput(pull power.Pull) error { return nil }

// waitHost has no parkable ports. Waiting blocks until an edge or the next
// tick; restarting re-executes the current binary.
type waitHost struct {
	cause uint32
	wake  chan struct{}
}

func (h *waitHost) post(c power.WakeCause) {
	for {
		old := atomic.LoadUint32(&h.cause)
		if atomic.CompareAndSwapUint32(&h.cause, old, old|uint32(c)) {
			break
		}
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *waitHost) Ports() int { return 0 }

func (h *waitHost) ReadDriveMode(int) (power.DriveMode, error) {
	return power.DriveMode{}, errors.New("linuxhost: no drive-mode ports")
}

func (h *waitHost) WriteDriveMode(int, power.DriveMode) error {
	return errors.New("linuxhost: no drive-mode ports")
}

func (h *waitHost) WaitForInterrupt() power.WakeCause {
	t := time.NewTimer(TickInterval)
	defer t.Stop()
	select {
	case <-h.wake:
	case <-t.C:
	}
	if c := atomic.SwapUint32(&h.cause, 0); c != 0 {
		return power.WakeCause(c)
	}
	return power.WakeTick
}

func (h *waitHost) Restart() {
	exe, err := os.Executable()
	if err != nil {
		logx.Warn(tag, "restart: executable unknown", "err", err)
		os.Exit(1)
	}
	err = syscall.Exec(exe, os.Args, os.Environ())
	logx.Warn(tag, "restart failed", "err", err)
	os.Exit(1)
}
