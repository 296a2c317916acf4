// Package pmic drives the board's power-management IC over a register bus:
// regulator switching and fencing, VSYS threshold supervision, charge state,
// the USB power path, and fault-pin interrupt handling.
//
// The driver never panics on a bus failure. Reads that fail are reported as
// "unknown"; only a successful read that shows a fault triggers a safety
// action. IsPowerOk is the one exception and fails safe towards "not ok".
package pmic

import (
	"errors"
	"time"

	"powercode-go/drivers/regbus"
	"powercode-go/x/deferq"
	"powercode-go/x/logx"
	"powercode-go/x/mathx"
	"powercode-go/x/timex"
)

const tag = "pmic"

// Config selects the rails with special roles and the supervision policy.
type Config struct {
	// PeripheralRail is gated by the power fence.
	PeripheralRail Regulator
	// SenseRail keeps a load on VSYS while its status is polled and while the
	// peripheral rail is fenced. It must not appear in UnusedRails.
	SenseRail Regulator
	// UnusedRails are switched off on sleep entry.
	UnusedRails []Regulator
	// Threshold is programmed at power-on reset.
	Threshold Threshold
	// Debounce is the rail-fault tolerance measured from the pin edge.
	Debounce time.Duration
	// ErrorSettle is waited after a failed status read.
	ErrorSettle time.Duration
}

func DefaultConfig() Config {
	return Config{
		PeripheralRail: LDO3,
		SenseRail:      LDO5,
		UnusedRails:    []Regulator{LDO1, LDO2, LDO6},
		Threshold:      ThresholdLowest,
		Debounce:       20 * time.Millisecond,
		ErrorSettle:    2 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if !c.PeripheralRail.Valid() || !c.SenseRail.Valid() {
		return errors.New("pmic: unknown regulator in config")
	}
	if c.PeripheralRail == c.SenseRail {
		return errors.New("pmic: SenseRail must differ from PeripheralRail")
	}
	for _, r := range c.UnusedRails {
		if !r.Valid() {
			return errors.New("pmic: unknown regulator in UnusedRails")
		}
		if r == c.SenseRail || r == c.PeripheralRail {
			return errors.New("pmic: UnusedRails must not include the sense or peripheral rail")
		}
	}
	if !c.Threshold.Valid() {
		return errors.New("pmic: invalid Threshold")
	}
	if c.Debounce < 0 || c.ErrorSettle < 0 {
		return errors.New("pmic: durations must not be negative")
	}
	return nil
}

// Alarm is the user-facing fault signal (a short tone ramp).
type Alarm interface {
	Sound()
}

// Events are raised from Service, never from interrupt context.
type Events struct {
	// RailFault fires after a confirmed peripheral rail fault has been fenced.
	RailFault func()
	// BatteryEmpty fires when VSYS trips the lowest threshold.
	BatteryEmpty func()
}

// Device represents one PMIC behind a RegisterIO.
type Device struct {
	io    regbus.RegisterIO
	clock timex.Clock
	cfg   Config
	alarm Alarm
	ev    Events

	// ISR -> main loop hand-off.
	work   *deferq.Slot
	armed  uint32 // atomic; 0 => edges ignored
	edgeAt int64  // atomic; unix ns of last accepted edge

	// Owned by the main loop.
	retry    timex.Timer
	sysLatch    byte  // SYSTEM value that carried a pending threshold IRQ
	offMask     uint8 // rails switched off by PowerOffUnused
	senseForced bool  // the fence switched the sense rail on
}

// New constructs a Device. It does not touch the hardware; call
// OnSystemPowerOnReset to program and arm it.
func New(io regbus.RegisterIO, clock timex.Clock, cfg Config, alarm Alarm, ev Events) *Device {
	return &Device{
		io:    io,
		clock: timex.Or(clock),
		cfg:   cfg,
		alarm: alarm,
		ev:    ev,
		work:  deferq.New(),
	}
}

func (d *Device) Config() Config { return d.cfg }

func (d *Device) read(r Register) (byte, error) { return d.io.ReadRegister(byte(r)) }

func (d *Device) write(r Register, v byte) error { return d.io.WriteRegister(byte(r), v) }

// modify is a read-modify-write. A failed read skips the write.
func (d *Device) modify(r Register, set, clear byte) error {
	v, err := d.read(r)
	if err != nil {
		return err
	}
	return d.write(r, mathx.Update(v, set, clear))
}

// SystemStatus reads SYS_STATUS. On failure it waits ErrorSettle so that a
// caller polling in a loop does not hammer a noisy bus.
func (d *Device) SystemStatus() (byte, error) {
	v, err := d.read(RegSysStatus)
	if err != nil {
		d.clock.Sleep(d.cfg.ErrorSettle)
		return 0, err
	}
	return v, nil
}

// InputPresent reports whether the charger input is valid.
func (d *Device) InputPresent() (bool, error) {
	v, err := d.SystemStatus()
	return v&StatusInputOK != 0, err
}

// ChargeStatus decodes CHG_STATUS0. Unmapped patterns yield ChargeUnknown.
func (d *Device) ChargeStatus() (ChargeState, error) {
	v, err := d.read(RegChgStatus0)
	if err != nil {
		return ChargeUnknown, err
	}
	return decodeChargeState(mathx.Field(v, ChgStateMask, ChgStateShift)), nil
}

func (d *Device) ChargerFlags() (ChargerFlags, error) {
	v, err := d.read(RegChgStatus1)
	return ChargerFlags(v), err
}

// SetSystemVoltageThreshold rewrites SYSTEM[1:0] and leaves every other bit
// as read. If SYSTEM cannot be read nothing is written.
func (d *Device) SetSystemVoltageThreshold(t Threshold) error {
	if !t.Valid() {
		return errors.New("pmic: invalid threshold")
	}
	v, err := d.readSystem()
	if err != nil {
		return err
	}
	return d.write(RegSystem, mathx.WithField(v, SysThresholdMask, SysThresholdShift, byte(t)))
}

func (d *Device) SystemVoltageThreshold() (Threshold, error) {
	v, err := d.readSystem()
	if err != nil {
		return ThresholdDisabled, err
	}
	return Threshold(mathx.Field(v, SysThresholdMask, SysThresholdShift)), nil
}

// readSystem reads SYSTEM. Reading acknowledges a pending threshold IRQ, so a
// pending bit seen here is latched and queued for Service.
func (d *Device) readSystem() (byte, error) {
	v, err := d.read(RegSystem)
	if err == nil && v&SysThrPending != 0 {
		d.sysLatch = v
		d.work.Post(workThreshold)
	}
	return v, err
}

// SetUSBPowerPath switches the OTG Q1 path and checks the Q1_OK acknowledge.
// Switching on succeeds only when Q1_OK follows. Switching off is best-effort:
// it writes even when the register cannot be read first, and an unreadable
// acknowledge counts as success.
func (d *Device) SetUSBPowerPath(on bool) (bool, error) {
	if on {
		if err := d.modify(RegUSBOTG, OTGQ1Enable, 0); err != nil {
			return false, err
		}
	} else {
		v, err := d.read(RegUSBOTG)
		if err != nil {
			logx.Warn(tag, "usb path: OTG unreadable, forcing off", "err", err)
			v = 0
		}
		if err := d.write(RegUSBOTG, v&^OTGQ1Enable); err != nil {
			return false, err
		}
	}
	v, err := d.read(RegUSBOTG)
	if err != nil {
		if on {
			return false, err
		}
		return true, nil
	}
	return (v&OTGQ1OK != 0) == on, nil
}
