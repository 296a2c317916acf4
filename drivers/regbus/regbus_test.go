package regbus_test

import (
	"errors"
	"testing"

	"powercode-go/drivers/regbus"
	"powercode-go/errcode"
	"powercode-go/platform/sim"
)

// muxSpy wraps a bus and records the mux level seen by each transfer.
type muxSpy struct {
	bus    *sim.PMIC
	mux    *sim.Pin
	during []bool
}

func (s *muxSpy) Tx(addr uint16, w, r []byte) error {
	s.during = append(s.during, s.mux.Get())
	return s.bus.Tx(addr, w, r)
}

func newChannel(t *testing.T) (*regbus.Channel, *muxSpy, *sim.Clock) {
	t.Helper()
	spy := &muxSpy{bus: sim.NewPMIC(), mux: sim.NewPin("mux")}
	clk := sim.NewClock()
	return regbus.New(spy, spy.mux, clk, regbus.DefaultConfig()), spy, clk
}

func TestRoundTripAndMux(t *testing.T) {
	ch, spy, clk := newChannel(t)
	if spy.mux.Get() {
		t.Fatal("mux asserted after New")
	}
	start := clk.Now()

	// 0x15 is LDO1_VOLT: plain read/write storage.
	if err := ch.WriteRegister(0x15, 0x2A); err != nil {
		t.Fatal(err)
	}
	v, err := ch.ReadRegister(0x15)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x2A {
		t.Fatalf("read back 0x%02x", v)
	}
	for i, on := range spy.during {
		if !on {
			t.Fatalf("transfer %d ran with mux released", i)
		}
	}
	if spy.mux.Get() {
		t.Fatal("mux left asserted")
	}
	if got := clk.Now().Sub(start); got != 2*regbus.SettleDefault {
		t.Fatalf("settle time %v", got)
	}
	if tx, failed := ch.Stats(); tx != 2 || failed != 0 {
		t.Fatalf("stats tx=%d failed=%d", tx, failed)
	}
}

func TestFailureIsTransportAndReleasesMux(t *testing.T) {
	ch, spy, _ := newChannel(t)
	spy.bus.FailAll(true)

	_, err := ch.ReadRegister(0x00)
	if !errors.Is(err, errcode.Transport) {
		t.Fatalf("read err = %v, want transport", err)
	}
	if !errors.Is(err, sim.ErrInjected) {
		t.Fatal("cause lost")
	}
	if spy.mux.Get() {
		t.Fatal("mux left asserted after failed read")
	}
	if err := ch.WriteRegister(0x15, 1); errcode.Of(err) != errcode.Transport {
		t.Fatalf("write err = %v", err)
	}
	if spy.mux.Get() {
		t.Fatal("mux left asserted after failed write")
	}
	if _, failed := ch.Stats(); failed != 2 {
		t.Fatalf("failed = %d", failed)
	}
}

func TestWrongAddressNACKs(t *testing.T) {
	spy := &muxSpy{bus: sim.NewPMIC(), mux: sim.NewPin("mux")}
	cfg := regbus.DefaultConfig()
	cfg.Address = 0x49
	ch := regbus.New(spy, spy.mux, sim.NewClock(), cfg)
	if _, err := ch.ReadRegister(0); !errors.Is(err, sim.ErrNACK) {
		t.Fatalf("err = %v", err)
	}
}

func TestActiveLowMux(t *testing.T) {
	spy := &muxSpy{bus: sim.NewPMIC(), mux: sim.NewPin("mux")}
	cfg := regbus.DefaultConfig()
	cfg.ActiveLow = true
	ch := regbus.New(spy, spy.mux, sim.NewClock(), cfg)
	if !spy.mux.Get() {
		t.Fatal("active-low mux should idle high")
	}
	if _, err := ch.ReadRegister(0); err != nil {
		t.Fatal(err)
	}
	if spy.during[0] {
		t.Fatal("active-low mux not driven low during transfer")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := regbus.DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	c := regbus.DefaultConfig()
	c.Address = 0x80
	if c.Validate() == nil {
		t.Fatal("10-bit address accepted")
	}
}
