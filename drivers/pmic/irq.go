package pmic

import (
	"sync/atomic"
	"time"

	"powercode-go/x/logx"
)

// Deferred work bits.
const (
	workEdge      uint32 = 1 << iota // fault pin fell; dispatch on status registers
	workThreshold                    // SYSTEM carried a pending threshold IRQ (latched)
	workRailRetry                    // debounce window elapsed; re-check the rail
)

// HandleFaultEdge is the fault-pin falling-edge handler. It runs in interrupt
// context: it only timestamps the edge and posts work. No bus I/O here.
func (d *Device) HandleFaultEdge() {
	if atomic.LoadUint32(&d.armed) == 0 {
		return
	}
	atomic.StoreInt64(&d.edgeAt, d.clock.Now().UnixNano())
	d.work.Post(workEdge)
}

// Pending is signalled when Service has work to do.
func (d *Device) Pending() <-chan struct{} { return d.work.C() }

// Armed reports whether fault edges are currently accepted.
func (d *Device) Armed() bool { return atomic.LoadUint32(&d.armed) != 0 }

// Service runs all deferred fault work. Call it from the main loop.
func (d *Device) Service() {
	for bits := d.work.Take(); bits != 0; bits = d.work.Take() {
		if bits&workEdge != 0 {
			d.dispatch()
		}
		if bits&workThreshold != 0 {
			d.handleThreshold(d.sysLatch)
		}
		if bits&workRailRetry != 0 {
			d.handleRailFault(true)
		}
	}
}

// dispatch picks the sub-handler from whichever status register reports a
// pending condition. A threshold IRQ is latched by readSystem and handled on
// the next Service pass.
func (d *Device) dispatch() {
	if _, err := d.readSystem(); err != nil {
		logx.Warn(tag, "fault dispatch: SYSTEM unreadable", "err", err)
	}
	rs, err := d.RailStatus()
	if err != nil {
		logx.Warn(tag, "fault dispatch: RAIL_STATUS unreadable", "err", err)
		return
	}
	if rs.Has(PeripheralFault) {
		d.handleRailFault(false)
	}
}

// handleRailFault decides whether the peripheral rail has genuinely failed.
// Inside the debounce window it reschedules itself once instead of deciding.
// Firing after the fault cleared is a no-op.
func (d *Device) handleRailFault(retry bool) {
	ctrl, err := d.read(d.cfg.PeripheralRail.CtrlReg())
	if err != nil {
		logx.Warn(tag, "rail fault: ctrl unreadable, not acting", "err", err)
		return
	}
	if !retry {
		edge := time.Unix(0, atomic.LoadInt64(&d.edgeAt))
		if elapsed := d.clock.Now().Sub(edge); elapsed < d.cfg.Debounce {
			d.scheduleRetry(d.cfg.Debounce - elapsed)
			return
		}
	}
	if ctrl&CtrlEnable == 0 || ctrl&CtrlPowerOK != 0 {
		return
	}

	logx.Warn(tag, "rail fault", "rail", d.cfg.PeripheralRail, "ctrl", ctrl)
	if err := d.SetPowerFence(true); err != nil {
		logx.Warn(tag, "rail fault: fence failed", "err", err)
	}
	d.sound()
	if d.ev.RailFault != nil {
		d.ev.RailFault()
	}
}

func (d *Device) scheduleRetry(after time.Duration) {
	d.stopRetry()
	d.retry = d.clock.AfterFunc(after, func() { d.work.Post(workRailRetry) })
}

func (d *Device) stopRetry() {
	if d.retry != nil {
		d.retry.Stop()
		d.retry = nil
	}
}

// handleThreshold treats a lowest-level trip with VSYS bad as battery empty.
func (d *Device) handleThreshold(sys byte) {
	if sys&SysThrPending == 0 {
		return
	}
	t := Threshold(sys & SysThresholdMask)
	if t != ThresholdLowest || sys&SysVSYSBad == 0 {
		logx.Info(tag, "vsys threshold crossed", "threshold", t, "vsys_bad", sys&SysVSYSBad != 0)
		return
	}
	logx.Warn(tag, "battery empty", "threshold", t)
	d.sound()
	if d.ev.BatteryEmpty != nil {
		d.ev.BatteryEmpty()
	}
}

func (d *Device) sound() {
	if d.alarm != nil {
		d.alarm.Sound()
	}
}

// Power-aware hooks. The orchestrator calls these directly; the driver is
// owned by it rather than registered as an ordinary listener.

// OnSystemPowerOnReset programs the threshold, enables its IRQ, unmasks the
// peripheral fault and arms the edge handler.
func (d *Device) OnSystemPowerOnReset() {
	v, err := d.readSystem()
	if err != nil {
		logx.Warn(tag, "por: SYSTEM unreadable, threshold not programmed", "err", err)
	} else {
		v = (v &^ SysThresholdMask) | byte(d.cfg.Threshold) | SysThrIRQEnable
		if err := d.write(RegSystem, v); err != nil {
			logx.Warn(tag, "por: threshold write failed", "err", err)
		}
	}
	if err := d.modify(d.cfg.PeripheralRail.CtrlReg(), 0, CtrlFaultMask); err != nil {
		logx.Warn(tag, "por: fault unmask failed", "err", err)
	}
	atomic.StoreUint32(&d.armed, 1)
}

// OnSystemEnterSleep stops the driver reacting to its own interrupt sources
// for the duration of the transition. The VSYS threshold IRQ stays enabled in
// the PMIC so it can still wake the host.
func (d *Device) OnSystemEnterSleep() {
	atomic.StoreUint32(&d.armed, 0)
	d.stopRetry()
	if err := d.modify(d.cfg.PeripheralRail.CtrlReg(), CtrlFaultMask, 0); err != nil {
		logx.Warn(tag, "sleep: fault mask failed", "err", err)
	}
}

// OnSystemWakeFromSleep re-enables the driver's interrupt sources and queues
// a dispatch so conditions latched while asleep are not lost.
func (d *Device) OnSystemWakeFromSleep() {
	if err := d.modify(d.cfg.PeripheralRail.CtrlReg(), 0, CtrlFaultMask); err != nil {
		logx.Warn(tag, "wake: fault unmask failed", "err", err)
	}
	atomic.StoreUint32(&d.armed, 1)
	atomic.StoreInt64(&d.edgeAt, 0)
	d.work.Post(workEdge)
}
