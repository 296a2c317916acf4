// Package platform assembles the power subsystem from whatever a target
// provides: an I2C bus, pins, a host controller and a tone output. Targets
// live in sub-packages (rp2, linuxhost) and in the simulator.
package platform

import (
	"powercode-go/boards"
	"powercode-go/bus"
	"powercode-go/drivers/buzzer"
	"powercode-go/drivers/pmic"
	"powercode-go/drivers/regbus"
	"powercode-go/services/power"
	"powercode-go/x/logx"
	"powercode-go/x/timex"

	"tinygo.org/x/drivers"
)

// FaultInput is the PMIC's active-low interrupt line.
type FaultInput interface {
	OnFallingEdge(handler func()) error
}

// Hardware is what a target hands to Assemble. Optional parts are nil when
// the board does not fit them.
type Hardware struct {
	I2C   drivers.I2C
	Mux   regbus.EnablePin
	Fault FaultInput
	Host  power.Host
	Clock timex.Clock

	Tone      buzzer.Tone
	Switch    power.GPIO
	AuxEnable power.GPIO
}

// System is the assembled subsystem. main owns exactly one.
type System struct {
	Board   boards.Board
	Conn    *bus.Connection
	Bus     *regbus.Channel
	PMIC    *pmic.Device
	Alarm   *buzzer.Buzzer
	Power   *power.Orchestrator
	Service *power.Service
}

// Assemble wires the drivers and services for board b onto hw and registers
// listeners in order. The power service talks on conn; nil gives it a bus of
// its own. It does not touch the PMIC; Service.Run (or
// Power.PowerOnReset) does that.
func Assemble(hw Hardware, b boards.Board, conn *bus.Connection, listeners ...power.PowerAware) (*System, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if conn == nil {
		conn = bus.NewBus(8).NewConnection("power")
	}
	s := &System{Board: b, Conn: conn}
	s.Bus = regbus.New(hw.I2C, hw.Mux, hw.Clock, b.Bus)

	var alarm pmic.Alarm
	if hw.Tone != nil {
		s.Alarm = buzzer.New(hw.Tone, hw.Clock, b.Buzzer)
		alarm = s.Alarm
	}

	s.PMIC = pmic.New(s.Bus, hw.Clock, b.PMIC, alarm, pmic.Events{
		RailFault:    func() { s.Service.RequestSleep() },
		BatteryEmpty: func() { s.Service.SignalBatteryEmpty() },
	})

	reg := power.NewRegistry()
	for _, l := range listeners {
		reg.Append(l)
	}

	cfg := power.DefaultConfig()
	cfg.SleepPins = sleepPins(hw, b)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s.Power = power.NewOrchestrator(s.PMIC, hw.Host, reg, cfg)
	s.Service = power.NewService(s.Power, s.PMIC, conn)

	if hw.Fault != nil {
		if err := hw.Fault.OnFallingEdge(s.PMIC.HandleFaultEdge); err != nil {
			return nil, err
		}
	} else {
		logx.Warn("platform", "no fault input; PMIC interrupts disabled", "board", b.Name)
	}
	return s, nil
}

func sleepPins(hw Hardware, b boards.Board) []power.SleepPin {
	var pins []power.SleepPin
	if hw.Switch != nil {
		pins = append(pins, power.SleepPin{Name: "switch", Pin: hw.Switch, Role: power.RoleSwitchInput})
	}
	if hw.AuxEnable != nil {
		pins = append(pins, power.SleepPin{Name: "aux", Pin: hw.AuxEnable, Role: power.RoleAuxEnable, Level: b.Pins.AuxLevel})
	}
	if g, ok := hw.Fault.(power.GPIO); ok {
		pins = append(pins, power.SleepPin{Name: "fault", Pin: g, Role: power.RoleFaultIRQ})
	}
	return pins
}
