//go:build !tinygo

package boards

import (
	"testing"
	"time"

	"powercode-go/drivers/pmic"
)

func TestEmbeddedTable(t *testing.T) {
	names := Names()
	if len(names) != 3 {
		t.Fatalf("names = %v", names)
	}
	b, err := Load("cm4_carrier")
	if err != nil {
		t.Fatal(err)
	}
	if b.Bus.Settle != 50*time.Microsecond || b.PMIC.Debounce != 25*time.Millisecond {
		t.Fatalf("durations not decoded: %+v %+v", b.Bus, b.PMIC)
	}
	if b.Pins.AuxEnable != -1 || b.Pins.Buzzer != -1 {
		t.Fatalf("pins %+v", b.Pins)
	}
	if b.PMIC.ErrorSettle != pmic.DefaultConfig().ErrorSettle {
		t.Fatal("omitted parameter did not keep its default")
	}

	p, err := Load("pico_power")
	if err != nil {
		t.Fatal(err)
	}
	if p.Pins != PicoPower.Pins || p.I2C != PicoPower.I2C || p.Ports != PicoPower.Ports {
		t.Fatalf("YAML pico_power drifted from the Go literal: %+v", p)
	}

	if _, err := Load("nope"); err == nil {
		t.Fatal("unknown board loaded")
	}
}

func TestParseRejectsBadBoards(t *testing.T) {
	cases := map[string]string{
		"bad rail":      "boards: [{name: x, i2c: a, pins: {fault: 1}, pmic: {sense_rail: LDO9}}]",
		"bad threshold": "boards: [{name: x, i2c: a, pins: {fault: 1}, pmic: {threshold_mv: 3000}}]",
		"shared pin":    "boards: [{name: x, i2c: a, pins: {fault: 1, switch: 1}}]",
		"no fault pin":  "boards: [{name: x, i2c: a}]",
		"unused sense":  "boards: [{name: x, i2c: a, pins: {fault: 1}, pmic: {unused_rails: [LDO5]}}]",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}
