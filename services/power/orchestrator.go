// Package power coordinates device-wide sleep and wake: it notifies
// power-aware listeners, fences and trims PMIC rails, parks host I/O ports,
// and handles the battery-empty shutdown loop.
package power

import (
	"errors"
	"sync/atomic"

	"powercode-go/errcode"
	"powercode-go/x/logx"
)

const tag = "power"

type State uint32

const (
	Awake State = iota
	EnteringSleep
	Sleeping
	Waking
	BatteryEmptyShutdown
)

func (s State) String() string {
	switch s {
	case Awake:
		return "awake"
	case EnteringSleep:
		return "entering_sleep"
	case Sleeping:
		return "sleeping"
	case Waking:
		return "waking"
	case BatteryEmptyShutdown:
		return "battery_empty"
	}
	return "unknown"
}

// PMIC is the subset of the power-management driver a sleep cycle needs.
// The driver's own power-aware hooks are called before and after the
// registry's listeners, never through it.
type PMIC interface {
	PowerAware
	SetPowerFence(active bool) error
	PowerOffUnused() error
	RestoreRails() error
	IsPowerOk() bool
}

type Stats struct {
	SleepCycles   uint32
	EmptyCycles   uint32
	SpuriousWakes uint32
	LastWake      WakeCause
}

// Orchestrator owns the sleep state machine. All methods must be called from
// the main loop.
type Orchestrator struct {
	pmic  PMIC
	host  Host
	reg   *Registry
	cfg   Config
	state uint32 // atomic State; read from other goroutines by State()
	snap  DriveModeSnapshot
	stats Stats

	onState func(State) // set by Service; called on the main loop
}

func NewOrchestrator(pmic PMIC, host Host, reg *Registry, cfg Config) *Orchestrator {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Orchestrator{pmic: pmic, host: host, reg: reg, cfg: cfg}
}

func (o *Orchestrator) State() State        { return State(atomic.LoadUint32(&o.state)) }
func (o *Orchestrator) Registry() *Registry { return o.reg }
func (o *Orchestrator) Stats() Stats        { return o.stats }

func (o *Orchestrator) setState(s State) {
	prev := State(atomic.SwapUint32(&o.state, uint32(s)))
	if prev == s {
		return
	}
	logx.Info(tag, "state", "from", prev, "to", s)
	if o.onState != nil {
		o.onState(s)
	}
}

// PowerOnReset runs the power-on hooks: driver first, then listeners.
func (o *Orchestrator) PowerOnReset() {
	o.pmic.OnSystemPowerOnReset()
	o.reg.NotifyPowerOnReset()
}

// Sleep runs one complete sleep/wake cycle and returns once Awake. Hardware
// failures along the way do not stop the cycle; they are returned joined.
func (o *Orchestrator) Sleep() error {
	if s := o.State(); s != Awake {
		return &errcode.E{C: errcode.Busy, Op: "sleep", Msg: "state " + s.String()}
	}
	o.setState(EnteringSleep)
	o.reg.NotifyEnterSleep()
	errEnter := o.enterHardware()

	o.setState(Sleeping)
	o.stats.LastWake = o.waitForWake(WakeCause.Qualifies)

	o.setState(Waking)
	errWake := o.wakeHardware()
	o.reg.NotifyWake()
	o.stats.SleepCycles++
	o.setState(Awake)

	return errors.Join(errEnter, errWake)
}

// BatteryEmpty parks the device in hardware-only sleep cycles until the PMIC
// reports usable power, then restarts the host. Listeners are not notified:
// the restart replaces the application state anyway. Every wake, including a
// timer tick, re-checks the supply.
func (o *Orchestrator) BatteryEmpty() {
	o.setState(BatteryEmptyShutdown)
	for !o.pmic.IsPowerOk() {
		o.stats.EmptyCycles++
		if err := o.enterHardware(); err != nil {
			logx.Warn(tag, "empty: enter", "err", err)
		}
		o.stats.LastWake = o.waitForWake(func(WakeCause) bool { return true })
		if err := o.wakeHardware(); err != nil {
			logx.Warn(tag, "empty: wake", "err", err)
		}
	}
	logx.Info(tag, "power ok, restarting", "cycles", int(o.stats.EmptyCycles))
	o.host.Restart()
}

// enterHardware is the driver-facing half of sleep entry: driver hook, fence,
// rail trim, port snapshot, pin parking.
func (o *Orchestrator) enterHardware() error {
	o.pmic.OnSystemEnterSleep()
	var errs []error
	if err := o.pmic.SetPowerFence(true); err != nil {
		errs = append(errs, err)
	}
	if err := o.pmic.PowerOffUnused(); err != nil {
		errs = append(errs, err)
	}
	if err := o.snapshotPorts(); err != nil {
		errs = append(errs, err)
	}
	if err := o.parkPins(); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		logx.Warn(tag, "sleep entry incomplete", "err", err)
	}
	return err
}

// wakeHardware undoes enterHardware in reverse.
func (o *Orchestrator) wakeHardware() error {
	var errs []error
	if err := o.restorePorts(); err != nil {
		errs = append(errs, err)
	}
	if err := o.pmic.RestoreRails(); err != nil {
		errs = append(errs, err)
	}
	o.pmic.OnSystemWakeFromSleep()
	if err := o.pmic.SetPowerFence(false); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		logx.Warn(tag, "wake incomplete", "err", err)
	}
	return err
}

// waitForWake re-enters the wait state until a cause passes done. Ticks that
// do not end the wait run the background hook.
func (o *Orchestrator) waitForWake(done func(WakeCause) bool) WakeCause {
	for {
		c := o.host.WaitForInterrupt()
		if done(c) {
			return c
		}
		o.stats.SpuriousWakes++
		if c&WakeTick != 0 && o.cfg.OnTick != nil {
			o.cfg.OnTick()
		}
	}
}

func (o *Orchestrator) snapshotPorts() error {
	o.snap.reset()
	n := o.host.Ports()
	if n > MaxPorts {
		n = MaxPorts
	}
	o.snap.n = n
	var errs []error
	for p := 0; p < n; p++ {
		dm, err := o.host.ReadDriveMode(p)
		if err != nil {
			errs = append(errs, errcode.Wrap(errcode.Transport, "snapshot", err))
			continue
		}
		o.snap.ports[p] = dm
		o.snap.captured |= 1 << p
	}
	return errors.Join(errs...)
}

// parkPins writes the park mode to captured ports only, then applies pin
// roles. A port that could not be captured is left as it was.
func (o *Orchestrator) parkPins() error {
	var errs []error
	if o.cfg.ParkPorts {
		for p := 0; p < o.snap.n; p++ {
			if !o.snap.Captured(p) {
				continue
			}
			if err := o.host.WriteDriveMode(p, o.cfg.ParkDriveMode); err != nil {
				errs = append(errs, errcode.Wrap(errcode.Transport, "park", err))
			}
		}
	}
	for _, sp := range o.cfg.SleepPins {
		if err := sp.apply(); err != nil {
			errs = append(errs, &errcode.E{C: errcode.UnknownPin, Op: "park", Msg: sp.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// restorePorts writes every captured port back, continuing past failures,
// and discards the snapshot.
func (o *Orchestrator) restorePorts() error {
	var errs []error
	for p := 0; p < o.snap.n; p++ {
		if !o.snap.Captured(p) {
			continue
		}
		if err := o.host.WriteDriveMode(p, o.snap.Port(p)); err != nil {
			errs = append(errs, errcode.Wrap(errcode.Transport, "restore", err))
		}
	}
	o.snap.reset()
	return errors.Join(errs...)
}
