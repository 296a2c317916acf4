//go:build !tinygo

package platform

import (
	"powercode-go/boards"
	"powercode-go/platform/sim"
)

// Sim holds the simulated parts behind a Hardware built by NewSim, so tools
// and tests can inject faults.
type Sim struct {
	PMIC   *sim.PMIC
	Host   *sim.Host
	Clock  *sim.Clock
	Mux    *sim.Pin
	Fault  *sim.Pin
	Switch *sim.Pin
	Aux    *sim.Pin
	Tone   *sim.Tone
}

// NewSim builds simulated hardware for b. The PMIC's interrupt output is
// wired to the fault pin.
func NewSim(b boards.Board) (Hardware, *Sim) {
	s := &Sim{
		PMIC:   sim.NewPMIC(),
		Host:   sim.NewHost(b.Ports),
		Clock:  sim.NewClock(),
		Mux:    sim.NewPin("mux"),
		Fault:  sim.NewPin("fault"),
		Switch: sim.NewPin("switch"),
		Aux:    sim.NewPin("aux"),
		Tone:   &sim.Tone{},
	}
	s.PMIC.SetAddress(b.Bus.Address)
	s.PMIC.IRQ = s.Fault

	hw := Hardware{
		I2C:   s.PMIC,
		Mux:   s.Mux,
		Fault: s.Fault,
		Host:  s.Host,
		Clock: s.Clock,
	}
	if b.Pins.Buzzer >= 0 {
		hw.Tone = s.Tone
	}
	if b.Pins.Switch >= 0 {
		hw.Switch = s.Switch
	}
	if b.Pins.AuxEnable >= 0 {
		hw.AuxEnable = s.Aux
	}
	return hw, s
}
