// Package boards describes how a PCB revision wires the power subsystem and
// the operating parameters of its parts. Firmware builds pick a Go literal
// by build tag; host tools can also load boards.yaml.
package boards

import (
	"errors"

	"powercode-go/drivers/buzzer"
	"powercode-go/drivers/pmic"
	"powercode-go/drivers/regbus"
)

// Pins are logical GPIO numbers; the platform maps them to hardware.
// A negative number means "not fitted".
type Pins struct {
	MuxEnable int
	Fault     int
	Switch    int
	AuxEnable int
	AuxLevel  bool // level held on AuxEnable while asleep
	Buzzer    int
}

type Board struct {
	Name string
	// I2C names the controller ("i2c0" on MCUs, "1" for /dev/i2c-1 on Linux).
	I2C string
	// Ports is the number of host I/O ports saved across sleep.
	Ports int
	Pins  Pins

	Bus    regbus.Config
	PMIC   pmic.Config
	Buzzer buzzer.Config
}

func (b Board) Validate() error {
	if b.Name == "" {
		return errors.New("boards: missing name")
	}
	if b.I2C == "" {
		return errors.New("boards: " + b.Name + ": missing i2c bus")
	}
	if b.Pins.Fault < 0 {
		return errors.New("boards: " + b.Name + ": fault pin is required")
	}
	seen := map[int]bool{}
	for _, p := range []int{b.Pins.MuxEnable, b.Pins.Fault, b.Pins.Switch, b.Pins.AuxEnable, b.Pins.Buzzer} {
		if p < 0 {
			continue
		}
		if seen[p] {
			return errors.New("boards: " + b.Name + ": pin used twice")
		}
		seen[p] = true
	}
	if err := b.Bus.Validate(); err != nil {
		return err
	}
	if err := b.PMIC.Validate(); err != nil {
		return err
	}
	return b.Buzzer.Validate()
}

// PicoPower is the RP2040 power board: PMIC on i2c0 behind a bus switch.
var PicoPower = Board{
	Name:  "pico_power",
	I2C:   "i2c0",
	Ports: 4,
	Pins: Pins{
		MuxEnable: 14,
		Fault:     15,
		Switch:    16,
		AuxEnable: 17,
		AuxLevel:  false,
		Buzzer:    18,
	},
	Bus:    regbus.DefaultConfig(),
	PMIC:   pmic.DefaultConfig(),
	Buzzer: buzzer.DefaultConfig(),
}

// Sim is the board the simulator models: every pin fitted, all nine ports.
func Sim() Board {
	return Board{
		Name:  "sim",
		I2C:   "sim",
		Ports: 9,
		Pins: Pins{
			MuxEnable: 1,
			Fault:     2,
			Switch:    3,
			AuxEnable: 4,
			Buzzer:    5,
		},
		Bus:    regbus.DefaultConfig(),
		PMIC:   pmic.DefaultConfig(),
		Buzzer: buzzer.DefaultConfig(),
	}
}
