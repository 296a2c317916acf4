//go:build rp2040

// Package rp2 brings the power subsystem up on an RP2040.
package rp2

import (
	"device/arm"
	"errors"
	"machine"
	"runtime/volatile"
	"sync/atomic"
	"unsafe"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/tone"

	"powercode-go/boards"
	"powercode-go/platform"
	"powercode-go/services/power"
	"powercode-go/x/logx"
	"powercode-go/x/timex"
)

// Open configures the controller for b and returns the hardware set.
// Logs go to UART0 from here on; if UART0 cannot be configured the error is
// returned and logs stay on the default console.
func Open(b boards.Board) (platform.Hardware, error) {
	u := uartx.UART0
	if err := u.Configure(uartx.UARTConfig{BaudRate: 115200}); err != nil {
		return platform.Hardware{}, err
	}
	logx.Out = u

	bus, err := openI2C(b.I2C)
	if err != nil {
		return platform.Hardware{}, err
	}
	h := &host{ports: b.Ports}
	if h.ports > power.MaxPorts {
		h.ports = power.MaxPorts
	}

	hw := platform.Hardware{
		I2C:   bus,
		Host:  h,
		Clock: timex.System{},
	}
	if b.Pins.MuxEnable >= 0 {
		hw.Mux = outPin(b.Pins.MuxEnable)
	}
	fault := &irqPin{pin: pin{machine.Pin(b.Pins.Fault)}, host: h, cause: power.WakeFault}
	fault.p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	hw.Fault = fault

	if b.Pins.Switch >= 0 {
		sw := &irqPin{pin: pin{machine.Pin(b.Pins.Switch)}, host: h, cause: power.WakeUser}
		sw.p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		if err := sw.OnFallingEdge(nil); err != nil {
			return platform.Hardware{}, err
		}
		hw.Switch = sw
	}
	if b.Pins.AuxEnable >= 0 {
		hw.AuxEnable = outPin(b.Pins.AuxEnable)
	}
	if b.Pins.Buzzer >= 0 {
		t, err := openTone(machine.Pin(b.Pins.Buzzer))
		if err != nil {
			logx.Warn("rp2", "buzzer unavailable", "err", err)
		} else {
			hw.Tone = t
		}
	}
	return hw, nil
}

func openI2C(id string) (*machine.I2C, error) {
	var bus *machine.I2C
	cfg := machine.I2CConfig{Frequency: 400 * machine.KHz}
	switch id {
	case "i2c0":
		bus, cfg.SDA, cfg.SCL = machine.I2C0, machine.I2C0_SDA_PIN, machine.I2C0_SCL_PIN
	case "i2c1":
		bus, cfg.SDA, cfg.SCL = machine.I2C1, machine.I2C1_SDA_PIN, machine.I2C1_SCL_PIN
	default:
		return nil, errors.New("rp2: unknown i2c bus " + id)
	}
	if err := bus.Configure(cfg); err != nil {
		return nil, err
	}
	return bus, nil
}

// ---- pins ----

type pin struct{ p machine.Pin }

func outPin(n int) *pin {
	p := &pin{machine.Pin(n)}
	p.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.p.Low()
	return p
}

func (p *pin) Set(level bool) { p.p.Set(level) }

func (p *pin) ConfigureInput(pull power.Pull) error {
	mode := machine.PinInput
	switch pull {
	case power.PullUp:
		mode = machine.PinInputPullup
	case power.PullDown:
		mode = machine.PinInputPulldown
	}
	p.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *pin) ConfigureOutput(initial bool) error {
	p.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.p.Set(initial)
	return nil
}

// irqPin records its wake cause on every falling edge before running the
// handler, so WaitForInterrupt can tell sources apart.
type irqPin struct {
	pin
	host  *host
	cause power.WakeCause
}

func (p *irqPin) OnFallingEdge(h func()) error {
	return p.p.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		p.host.post(p.cause)
		if h != nil {
			h()
		}
	})
}

// ---- tone ----

type speaker struct{ s tone.Speaker }

func openTone(p machine.Pin) (*speaker, error) {
	slice, err := machine.PWMPeripheral(p)
	if err != nil {
		return nil, err
	}
	s, err := tone.New(pwmBySlice(slice), p)
	if err != nil {
		return nil, err
	}
	return &speaker{s}, nil
}

func (s *speaker) SetFrequency(hz uint32) {
	if hz == 0 {
		s.s.Stop()
		return
	}
	s.s.SetPeriod(1e9 / uint64(hz))
}

func (s *speaker) Stop() { s.s.Stop() }

func pwmBySlice(slice uint8) tone.PWM {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// ---- host ----

// Pad control registers, one 32-bit word per GPIO; the low byte carries
// drive strength, pulls, input enable and output disable.
const padsBank0GPIO0 = 0x4001c004

// host treats each group of DriveRegsPerPort consecutive GPIO pads as one
// port; the drive-mode triplet is their pad bytes.
type host struct {
	ports int
	cause uint32 // atomic WakeCause bits set by edge handlers
}

func (h *host) post(c power.WakeCause) {
	for {
		old := atomic.LoadUint32(&h.cause)
		if atomic.CompareAndSwapUint32(&h.cause, old, old|uint32(c)) {
			return
		}
	}
}

func pad(n int) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(padsBank0GPIO0 + 4*n)))
}

func (h *host) Ports() int { return h.ports }

func (h *host) ReadDriveMode(port int) (power.DriveMode, error) {
	var dm power.DriveMode
	if port < 0 || port >= h.ports {
		return dm, errors.New("rp2: port out of range")
	}
	for i := range dm {
		dm[i] = byte(pad(port*power.DriveRegsPerPort + i).Get())
	}
	return dm, nil
}

func (h *host) WriteDriveMode(port int, dm power.DriveMode) error {
	if port < 0 || port >= h.ports {
		return errors.New("rp2: port out of range")
	}
	for i, v := range dm {
		r := pad(port*power.DriveRegsPerPort + i)
		r.Set(r.Get()&^0xFF | uint32(v))
	}
	return nil
}

// WaitForInterrupt sleeps the core until any interrupt. An edge handler that
// ran names the cause; anything else (the scheduler's timer) is a tick.
func (h *host) WaitForInterrupt() power.WakeCause {
	if c := atomic.SwapUint32(&h.cause, 0); c != 0 {
		return power.WakeCause(c)
	}
	arm.Asm("wfi")
	if c := atomic.SwapUint32(&h.cause, 0); c != 0 {
		return power.WakeCause(c)
	}
	return power.WakeTick
}

func (h *host) Restart() { arm.SystemReset() }
