//go:build !tinygo

package boards

import (
	_ "embed"
	"errors"
	"time"

	"gopkg.in/yaml.v3"

	"powercode-go/drivers/buzzer"
	"powercode-go/drivers/pmic"
	"powercode-go/drivers/regbus"
)

//go:embed boards.yaml
var boardsYAML []byte

type fileYAML struct {
	Boards []boardYAML `yaml:"boards"`
}

type boardYAML struct {
	Name  string `yaml:"name"`
	I2C   string `yaml:"i2c"`
	Ports int    `yaml:"ports"`
	Pins  struct {
		MuxEnable *int `yaml:"mux_enable"`
		Fault     *int `yaml:"fault"`
		Switch    *int `yaml:"switch"`
		AuxEnable *int `yaml:"aux_enable"`
		AuxLevel  bool `yaml:"aux_level"`
		Buzzer    *int `yaml:"buzzer"`
	} `yaml:"pins"`
	Bus struct {
		Address   uint16        `yaml:"address"`
		Settle    time.Duration `yaml:"settle"`
		ActiveLow bool          `yaml:"active_low"`
	} `yaml:"bus"`
	PMIC struct {
		PeripheralRail string        `yaml:"peripheral_rail"`
		SenseRail      string        `yaml:"sense_rail"`
		UnusedRails    []string      `yaml:"unused_rails"`
		ThresholdMV    *uint32       `yaml:"threshold_mv"`
		Debounce       time.Duration `yaml:"debounce"`
		ErrorSettle    time.Duration `yaml:"error_settle"`
	} `yaml:"pmic"`
	Buzzer struct {
		FromHz  uint32        `yaml:"from_hz"`
		ToHz    uint32        `yaml:"to_hz"`
		Sweep   time.Duration `yaml:"sweep"`
		Repeats uint8         `yaml:"repeats"`
	} `yaml:"buzzer"`
}

// Parse decodes a board table. Every board is validated.
func Parse(data []byte) ([]Board, error) {
	var f fileYAML
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	out := make([]Board, 0, len(f.Boards))
	for _, y := range f.Boards {
		b, err := y.board()
		if err != nil {
			return nil, err
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Load returns the named board from the embedded table.
func Load(name string) (Board, error) {
	all, err := Parse(boardsYAML)
	if err != nil {
		return Board{}, err
	}
	for _, b := range all {
		if b.Name == name {
			return b, nil
		}
	}
	return Board{}, errors.New("boards: unknown board " + name)
}

// Names lists the boards in the embedded table.
func Names() []string {
	all, err := Parse(boardsYAML)
	if err != nil {
		return nil
	}
	names := make([]string, len(all))
	for i, b := range all {
		names[i] = b.Name
	}
	return names
}

func pin(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func (y boardYAML) board() (Board, error) {
	b := Board{
		Name:  y.Name,
		I2C:   y.I2C,
		Ports: y.Ports,
		Pins: Pins{
			MuxEnable: pin(y.Pins.MuxEnable),
			Fault:     pin(y.Pins.Fault),
			Switch:    pin(y.Pins.Switch),
			AuxEnable: pin(y.Pins.AuxEnable),
			AuxLevel:  y.Pins.AuxLevel,
			Buzzer:    pin(y.Pins.Buzzer),
		},
		Bus:    regbus.DefaultConfig(),
		PMIC:   pmic.DefaultConfig(),
		Buzzer: buzzer.DefaultConfig(),
	}

	if y.Bus.Address != 0 {
		b.Bus.Address = y.Bus.Address
	}
	if y.Bus.Settle != 0 {
		b.Bus.Settle = y.Bus.Settle
	}
	b.Bus.ActiveLow = y.Bus.ActiveLow

	rail := func(field, name string, dst *pmic.Regulator) error {
		if name == "" {
			return nil
		}
		r, ok := pmic.ParseRegulator(name)
		if !ok {
			return errors.New("boards: " + y.Name + ": " + field + ": unknown regulator " + name)
		}
		*dst = r
		return nil
	}
	if err := rail("peripheral_rail", y.PMIC.PeripheralRail, &b.PMIC.PeripheralRail); err != nil {
		return Board{}, err
	}
	if err := rail("sense_rail", y.PMIC.SenseRail, &b.PMIC.SenseRail); err != nil {
		return Board{}, err
	}
	if y.PMIC.UnusedRails != nil {
		b.PMIC.UnusedRails = make([]pmic.Regulator, len(y.PMIC.UnusedRails))
		for i, n := range y.PMIC.UnusedRails {
			if err := rail("unused_rails", n, &b.PMIC.UnusedRails[i]); err != nil {
				return Board{}, err
			}
		}
	}
	if y.PMIC.ThresholdMV != nil {
		t, ok := pmic.ThresholdFromMilliVolts(*y.PMIC.ThresholdMV)
		if !ok {
			return Board{}, errors.New("boards: " + y.Name + ": unsupported threshold_mv")
		}
		b.PMIC.Threshold = t
	}
	if y.PMIC.Debounce != 0 {
		b.PMIC.Debounce = y.PMIC.Debounce
	}
	if y.PMIC.ErrorSettle != 0 {
		b.PMIC.ErrorSettle = y.PMIC.ErrorSettle
	}

	if y.Buzzer.FromHz != 0 {
		b.Buzzer.FromHz = y.Buzzer.FromHz
	}
	if y.Buzzer.ToHz != 0 {
		b.Buzzer.ToHz = y.Buzzer.ToHz
	}
	if y.Buzzer.Sweep != 0 {
		b.Buzzer.Sweep = y.Buzzer.Sweep
	}
	if y.Buzzer.Repeats != 0 {
		b.Buzzer.Repeats = y.Buzzer.Repeats
	}
	return b, nil
}
