package pmic

import (
	"errors"

	"powercode-go/errcode"
	"powercode-go/x/logx"
	"powercode-go/x/mathx"
)

// Regulator switching.

func (d *Device) Enable(r Regulator) error  { return d.modify(r.CtrlReg(), CtrlEnable, 0) }
func (d *Device) Disable(r Regulator) error { return d.modify(r.CtrlReg(), 0, CtrlEnable) }

func (d *Device) IsEnabled(r Regulator) (bool, error) {
	v, err := d.read(r.CtrlReg())
	return v&CtrlEnable != 0, err
}

// Voltage returns the programmed output in mV.
func (d *Device) Voltage(r Regulator) (uint32, error) {
	v, err := d.read(r.VoltReg())
	if err != nil {
		return 0, err
	}
	return VSelBaseMV + uint32(v&VSelMask)*VSelStepMV, nil
}

// SetVoltage programs the nearest step at or below mV, clamped to the VSEL range.
func (d *Device) SetVoltage(r Regulator, mV uint32) error {
	mV = mathx.Clamp(mV, VSelBaseMV, VSelBaseMV+VSelMask*VSelStepMV)
	sel := byte((mV - VSelBaseMV) / VSelStepMV)
	v, err := d.read(r.VoltReg())
	if err != nil {
		return err
	}
	return d.write(r.VoltReg(), mathx.WithField(v, VSelMask, 0, sel))
}

func (d *Device) RailStatus() (RailStatus, error) {
	v, err := d.read(RegRailStatus)
	return RailStatus(v), err
}

// Fencing.

// IsPowerFenced reports whether the peripheral rail is switched off.
func (d *Device) IsPowerFenced() (bool, error) {
	v, err := d.read(d.cfg.PeripheralRail.CtrlReg())
	if err != nil {
		return false, err
	}
	return v&CtrlEnable == 0, nil
}

// SetPowerFence gates the peripheral rail. Before fencing, another regulator
// is guaranteed on so the VSYS monitor keeps a load and its IRQ stays valid;
// if that cannot be confirmed the rail is left alone and InvariantViolation is
// returned. Lifting the fence re-enables the rail unconditionally and then
// switches the sense rail back off if the fence was what turned it on.
func (d *Device) SetPowerFence(active bool) error {
	if !active {
		if err := d.enablePeripheral(); err != nil {
			return err
		}
		if d.senseForced {
			if err := d.releaseSense(); err != nil {
				return err
			}
		}
		return nil
	}

	forced, err := d.ensureLoadRail()
	if err != nil {
		logx.Warn(tag, "fence refused", "err", err)
		return err
	}
	if err := d.modify(d.cfg.PeripheralRail.CtrlReg(), 0, CtrlEnable); err != nil {
		if forced {
			_ = d.releaseSense()
		}
		return err
	}
	if forced {
		d.senseForced = true
	}
	logx.Info(tag, "fence", "rail", d.cfg.PeripheralRail, "active", true)
	return nil
}

func (d *Device) enablePeripheral() error {
	ctrl := d.cfg.PeripheralRail.CtrlReg()
	v, err := d.read(ctrl)
	if err != nil {
		// Fault mask defaults to clear; enabling the rail matters more.
		return d.write(ctrl, CtrlEnable)
	}
	return d.write(ctrl, v|CtrlEnable)
}

// releaseSense switches off a sense rail the fence forced on. The mark stays
// set on failure so the next lift tries again.
func (d *Device) releaseSense() error {
	if err := d.modify(d.cfg.SenseRail.CtrlReg(), 0, CtrlEnable); err != nil {
		logx.Warn(tag, "sense rail release failed", "err", err)
		return err
	}
	d.senseForced = false
	return nil
}

// ensureLoadRail makes sure some regulator other than the peripheral rail is
// on. forced reports that it switched the sense rail on to get there.
func (d *Device) ensureLoadRail() (forced bool, err error) {
	sense := d.cfg.SenseRail.CtrlReg()
	v, err := d.read(sense)
	if err == nil {
		if v&CtrlEnable != 0 {
			return false, nil
		}
		if err = d.write(sense, v|CtrlEnable); err == nil {
			return true, nil
		}
	}
	// The sense rail is out of reach; any other rail confirmed on will do.
	for _, r := range AllRegulators {
		if r == d.cfg.PeripheralRail || r == d.cfg.SenseRail {
			continue
		}
		if on, e := d.IsEnabled(r); e == nil && on {
			return false, nil
		}
	}
	return false, &errcode.E{
		C:   errcode.InvariantViolation,
		Op:  "fence",
		Msg: "no load rail besides the peripheral rail could be confirmed on",
		Err: err,
	}
}

// PowerOffUnused switches off every UnusedRails entry one at a time. A failure
// on one rail does not stop the others; the joined error is nil only if every
// rail was read and written.
func (d *Device) PowerOffUnused() error {
	var errs []error
	for _, r := range d.cfg.UnusedRails {
		v, err := d.read(r.CtrlReg())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.write(r.CtrlReg(), v&^CtrlEnable); err != nil {
			errs = append(errs, err)
			continue
		}
		if v&CtrlEnable != 0 {
			d.offMask |= 1 << r
		}
	}
	if len(errs) > 0 {
		logx.Warn(tag, "power off unused incomplete", "failed", len(errs))
	}
	return errors.Join(errs...)
}

// RestoreRails re-enables the rails PowerOffUnused switched off.
func (d *Device) RestoreRails() error {
	var errs []error
	for _, r := range AllRegulators {
		if d.offMask&(1<<r) == 0 {
			continue
		}
		if err := d.Enable(r); err != nil {
			errs = append(errs, err)
			continue
		}
		d.offMask &^= 1 << r
	}
	return errors.Join(errs...)
}

// IsPowerOk samples VSYS_BAD with the sense rail forced on, because the
// status bit is only meaningful with a load present. The sense rail's prior
// state is restored on every path. Any uncertainty reports false.
func (d *Device) IsPowerOk() bool {
	sense := d.cfg.SenseRail.CtrlReg()
	prev, err := d.read(sense)
	if err != nil {
		logx.Warn(tag, "power check: sense rail unreadable", "err", err)
		return false
	}
	if prev&CtrlEnable == 0 {
		defer d.restoreCtrl(sense, prev)
		if err := d.write(sense, prev|CtrlEnable); err != nil {
			return false
		}
	}
	st, err := d.read(RegSysStatus)
	if err != nil {
		return false
	}
	return st&StatusVSYSBad == 0
}

func (d *Device) restoreCtrl(r Register, v byte) {
	if err := d.write(r, v); err != nil {
		logx.Warn(tag, "restore failed", "reg", r, "err", err)
	}
}
