// Package sim is a software model of the board: a register-file PMIC on an
// I2C bus, host I/O ports, pins, a tone output and a manually driven clock.
// Tests and the console tool run the real drivers against it.
package sim

import (
	"errors"
	"sync"

	"powercode-go/drivers/pmic"
	"powercode-go/drivers/regbus"
)

var (
	ErrNACK     = errors.New("sim: address NACK")
	ErrInjected = errors.New("sim: injected bus failure")
	ErrProtocol = errors.New("sim: unsupported transfer shape")
)

// PMIC models the register file behind drivers.I2C.
//
// Side effects follow the part's behaviour: POK follows EN unless the rail is
// faulted, Q1_OK follows Q1_EN, and THR_PENDING and PERIPH_FAULT clear on
// read. With no regulator enabled VSYS_BAD reads inverted, because the
// comparator has no load.
type PMIC struct {
	mu   sync.Mutex
	addr uint16
	regs [256]byte

	faulted   [8]bool
	q1Stuck   bool
	vsysBad   bool
	failRead  map[byte]*failPlan
	failWrite map[byte]*failPlan
	failAll   bool
	writes    map[byte]int
	reads     map[byte]int

	// Journal, when set, records every completed write.
	Journal *Journal
	// IRQ, when set, is pulsed whenever the part latches an interrupt.
	IRQ *Pin
}

// NewPMIC returns a part in its power-on state: both bucks and the
// peripheral rail on, charger fast-charging from a valid input.
func NewPMIC() *PMIC {
	p := &PMIC{
		addr:      regbus.AddressDefault,
		failRead:  map[byte]*failPlan{},
		failWrite: map[byte]*failPlan{},
		writes:    map[byte]int{},
		reads:     map[byte]int{},
	}
	for _, r := range []pmic.Regulator{pmic.Buck1, pmic.Buck2, pmic.LDO3} {
		p.regs[r.CtrlReg()] = pmic.CtrlEnable
	}
	for _, r := range pmic.AllRegulators {
		p.regs[r.VoltReg()] = 0x18
		p.settle(r)
	}
	p.regs[pmic.RegSysStatus] = pmic.StatusInputOK
	p.regs[pmic.RegChgStatus0] = 0x20
	p.regs[pmic.RegChgStatus1] = pmic.ChgOn
	return p
}

// SetAddress changes the 7-bit address the part answers on.
func (p *PMIC) SetAddress(a uint16) { p.mu.Lock(); p.addr = a; p.mu.Unlock() }

// Tx implements drivers.I2C. Supported shapes: one address byte then a one
// byte read, or an address byte plus a data byte.
func (p *PMIC) Tx(addr uint16, w, r []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return ErrInjected
	}
	if addr != p.addr {
		return ErrNACK
	}
	switch {
	case len(w) == 1 && len(r) == 1:
		if p.consume(p.failRead, w[0]) {
			return ErrInjected
		}
		r[0] = p.readLocked(w[0])
		p.reads[w[0]]++
		return nil
	case len(w) == 2 && len(r) == 0:
		if p.consume(p.failWrite, w[0]) {
			return ErrInjected
		}
		p.writeLocked(w[0], w[1])
		p.writes[w[0]]++
		if p.Journal != nil {
			p.Journal.Add("pmic " + pmic.Register(w[0]).String())
		}
		return nil
	}
	return ErrProtocol
}

// failPlan lets skip accesses through, then fails n of them (n < 0: forever).
type failPlan struct{ skip, n int }

func (p *PMIC) consume(m map[byte]*failPlan, reg byte) bool {
	f, ok := m[reg]
	if !ok || f.n == 0 {
		return false
	}
	if f.skip > 0 {
		f.skip--
		return false
	}
	if f.n > 0 {
		f.n--
	}
	return true
}

func (p *PMIC) readLocked(reg byte) byte {
	switch pmic.Register(reg) {
	case pmic.RegSysStatus:
		v := p.regs[reg] &^ pmic.StatusVSYSBad
		if p.vsysBad != (p.enabledLocked() == 0) {
			v |= pmic.StatusVSYSBad
		}
		return v
	case pmic.RegSystem:
		v := p.regs[reg]
		p.regs[reg] &^= pmic.SysThrPending
		return v
	case pmic.RegRailStatus:
		v := p.regs[reg]
		p.regs[reg] &^= pmic.RailPeriphFault
		return v
	}
	return p.regs[reg]
}

func (p *PMIC) writeLocked(reg, v byte) {
	switch pmic.Register(reg) {
	case pmic.RegSysStatus, pmic.RegRailStatus, pmic.RegChgStatus0, pmic.RegChgStatus1:
		return
	case pmic.RegSystem:
		const ro = pmic.SysThrPending | pmic.SysVSYSBad
		p.regs[reg] = v&^ro | p.regs[reg]&ro
		return
	case pmic.RegUSBOTG:
		v &^= pmic.OTGQ1OK
		if v&pmic.OTGQ1Enable != 0 && !p.q1Stuck {
			v |= pmic.OTGQ1OK
		}
		p.regs[reg] = v
		return
	}
	if r, ok := ctrlRegulator(reg); ok {
		p.regs[reg] = v &^ pmic.CtrlPowerOK
		p.settle(r)
		return
	}
	p.regs[reg] = v
}

func ctrlRegulator(reg byte) (pmic.Regulator, bool) {
	for _, r := range pmic.AllRegulators {
		if byte(r.CtrlReg()) == reg {
			return r, true
		}
	}
	return 0, false
}

// settle recomputes POK for r and the RAIL_STATUS summary bits.
func (p *PMIC) settle(r pmic.Regulator) {
	c := r.CtrlReg()
	p.regs[c] &^= pmic.CtrlPowerOK
	if p.regs[c]&pmic.CtrlEnable != 0 && !p.faulted[r] {
		p.regs[c] |= pmic.CtrlPowerOK
	}
	rs := p.regs[pmic.RegRailStatus] &^ (pmic.RailBuck1POK | pmic.RailBuck2POK)
	if p.regs[pmic.Buck1.CtrlReg()]&pmic.CtrlPowerOK != 0 {
		rs |= pmic.RailBuck1POK
	}
	if p.regs[pmic.Buck2.CtrlReg()]&pmic.CtrlPowerOK != 0 {
		rs |= pmic.RailBuck2POK
	}
	p.regs[pmic.RegRailStatus] = rs
}

func (p *PMIC) enabledLocked() int {
	n := 0
	for _, r := range pmic.AllRegulators {
		if p.regs[r.CtrlReg()]&pmic.CtrlEnable != 0 {
			n++
		}
	}
	return n
}

// Reg and SetReg access the register file without side effects.
func (p *PMIC) Reg(r pmic.Register) byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[r]
}

func (p *PMIC) SetReg(r pmic.Register, v byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[r] = v
	if reg, ok := ctrlRegulator(byte(r)); ok {
		p.settle(reg)
	}
}

// EnabledRails counts regulators with EN set.
func (p *PMIC) EnabledRails() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabledLocked()
}

func (p *PMIC) RailEnabled(r pmic.Regulator) bool {
	return p.Reg(r.CtrlReg())&pmic.CtrlEnable != 0
}

// FailReads makes the next n reads of reg fail; n < 0 fails forever, 0 heals.
func (p *PMIC) FailReads(reg pmic.Register, n int) { p.FailReadsAfter(reg, 0, n) }

// FailReadsAfter lets skip reads of reg succeed before failing n.
func (p *PMIC) FailReadsAfter(reg pmic.Register, skip, n int) {
	p.mu.Lock()
	p.failRead[byte(reg)] = &failPlan{skip: skip, n: n}
	p.mu.Unlock()
}

func (p *PMIC) FailWrites(reg pmic.Register, n int) { p.FailWritesAfter(reg, 0, n) }

func (p *PMIC) FailWritesAfter(reg pmic.Register, skip, n int) {
	p.mu.Lock()
	p.failWrite[byte(reg)] = &failPlan{skip: skip, n: n}
	p.mu.Unlock()
}

// FailAll makes every transfer fail (bus stuck or part unpowered).
func (p *PMIC) FailAll(on bool) { p.mu.Lock(); p.failAll = on; p.mu.Unlock() }

func (p *PMIC) Writes(reg pmic.Register) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes[byte(reg)]
}

func (p *PMIC) Reads(reg pmic.Register) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[byte(reg)]
}

// SetVSYSBad sets the comparator's real verdict (as seen under load).
func (p *PMIC) SetVSYSBad(bad bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vsysBad = bad
	if bad {
		p.regs[pmic.RegSystem] |= pmic.SysVSYSBad
	} else {
		p.regs[pmic.RegSystem] &^= pmic.SysVSYSBad
	}
}

// TripThreshold latches a threshold interrupt with the given VSYS verdict.
func (p *PMIC) TripThreshold(vsysBad bool) {
	p.SetVSYSBad(vsysBad)
	p.mu.Lock()
	p.regs[pmic.RegSystem] |= pmic.SysThrPending
	irq := p.IRQ
	p.mu.Unlock()
	if irq != nil {
		irq.Fall()
	}
}

// FaultRail drops or restores POK on r. Dropping it also latches
// PERIPH_FAULT in RAIL_STATUS.
func (p *PMIC) FaultRail(r pmic.Regulator, faulted bool) {
	p.mu.Lock()
	p.faulted[r] = faulted
	p.settle(r)
	masked := p.regs[r.CtrlReg()]&pmic.CtrlFaultMask != 0
	if faulted {
		p.regs[pmic.RegRailStatus] |= pmic.RailPeriphFault
	}
	irq := p.IRQ
	p.mu.Unlock()
	if faulted && !masked && irq != nil {
		irq.Fall()
	}
}

// StickQ1 stops Q1_OK following Q1_EN.
func (p *PMIC) StickQ1(stuck bool) { p.mu.Lock(); p.q1Stuck = stuck; p.mu.Unlock() }

// SetChargeField writes the raw 2-bit charge state field.
func (p *PMIC) SetChargeField(f byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[pmic.RegChgStatus0] = p.regs[pmic.RegChgStatus0]&^pmic.ChgStateMask | (f<<pmic.ChgStateShift)&pmic.ChgStateMask
}
