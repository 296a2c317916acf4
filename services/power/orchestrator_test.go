package power_test

import (
	"errors"
	"testing"

	"powercode-go/drivers/pmic"
	"powercode-go/drivers/regbus"
	"powercode-go/errcode"
	"powercode-go/platform/sim"
	"powercode-go/services/power"
)

// fakePMIC journals each call. IsPowerOk answers from ok, repeating the last.
type fakePMIC struct {
	j      *sim.Journal
	ok     []bool
	checks int
}

func (f *fakePMIC) OnSystemPowerOnReset()  { f.j.Add("pmic por") }
func (f *fakePMIC) OnSystemEnterSleep()    { f.j.Add("pmic sleep") }
func (f *fakePMIC) OnSystemWakeFromSleep() { f.j.Add("pmic wake") }
func (f *fakePMIC) PowerOffUnused() error  { f.j.Add("off unused"); return nil }
func (f *fakePMIC) RestoreRails() error    { f.j.Add("restore rails"); return nil }

func (f *fakePMIC) SetPowerFence(active bool) error {
	if active {
		f.j.Add("fence on")
	} else {
		f.j.Add("fence off")
	}
	return nil
}

func (f *fakePMIC) IsPowerOk() bool {
	i := f.checks
	f.checks++
	if len(f.ok) == 0 {
		return true
	}
	if i >= len(f.ok) {
		i = len(f.ok) - 1
	}
	return f.ok[i]
}

func before(t *testing.T, j *sim.Journal, a, b string) {
	t.Helper()
	ia, ib := j.Index(a), j.Index(b)
	if ia < 0 || ib < 0 || ia >= ib {
		t.Fatalf("want %q before %q in %v", a, b, j.Entries())
	}
}

func TestSleepSequenceOrder(t *testing.T) {
	j := &sim.Journal{}
	host := sim.NewHost(4)
	host.Journal = j
	host.ScriptWakes(power.WakeFault)
	aux := sim.NewPin("aux")
	sw := sim.NewPin("switch")

	reg := power.NewRegistry()
	reg.Append(&listener{"ui", j})
	cfg := power.DefaultConfig()
	cfg.SleepPins = []power.SleepPin{
		{Name: "switch", Pin: sw, Role: power.RoleSwitchInput},
		{Name: "aux", Pin: aux, Role: power.RoleAuxEnable, Level: true},
	}
	o := power.NewOrchestrator(&fakePMIC{j: j}, host, reg, cfg)

	orig := host.Port(2)
	if err := o.Sleep(); err != nil {
		t.Fatal(err)
	}
	if o.State() != power.Awake {
		t.Fatalf("state = %v", o.State())
	}

	before(t, j, "ui sleep", "pmic sleep")
	before(t, j, "pmic sleep", "fence on")
	before(t, j, "fence on", "off unused")
	before(t, j, "off unused", "port 0")
	before(t, j, "port 0", "wfi fault")
	before(t, j, "wfi fault", "restore rails")
	before(t, j, "restore rails", "pmic wake")
	before(t, j, "pmic wake", "fence off")
	before(t, j, "fence off", "ui wake")

	if host.Port(2) != orig {
		t.Fatalf("port 2 = %v, want %v", host.Port(2), orig)
	}
	if out, pull := sw.Mode(); out || pull != power.PullUp {
		t.Fatal("switch not pulled up")
	}
	if out, _ := aux.Mode(); !out || !aux.Get() {
		t.Fatal("aux enable not driven")
	}
	if s := o.Stats(); s.SleepCycles != 1 || s.LastWake != power.WakeFault {
		t.Fatalf("stats %+v", s)
	}
}

func TestTicksDoNotEndSleep(t *testing.T) {
	host := sim.NewHost(1)
	host.ScriptWakes(power.WakeTick, power.WakeTick, power.WakeUser)
	ticks := 0
	cfg := power.DefaultConfig()
	cfg.OnTick = func() { ticks++ }
	o := power.NewOrchestrator(&fakePMIC{j: &sim.Journal{}}, host, nil, cfg)

	if err := o.Sleep(); err != nil {
		t.Fatal(err)
	}
	if host.Waits() != 3 || ticks != 2 || o.Stats().SpuriousWakes != 2 {
		t.Fatalf("waits=%d ticks=%d spurious=%d", host.Waits(), ticks, o.Stats().SpuriousWakes)
	}
}

func TestRestoreAttemptsEveryPort(t *testing.T) {
	host := sim.NewHost(power.MaxPorts)
	host.FailPort(3, false, true)
	host.FailPort(5, true, false)
	var orig [power.MaxPorts]power.DriveMode
	for p := range orig {
		orig[p] = host.Port(p)
	}
	o := power.NewOrchestrator(&fakePMIC{j: &sim.Journal{}}, host, nil, power.DefaultConfig())

	err := o.Sleep()
	if !errors.Is(err, sim.ErrPort) {
		t.Fatalf("err = %v", err)
	}
	attempts := map[int]int{}
	for _, p := range host.WriteAttempts() {
		attempts[p]++
	}
	for p := 0; p < power.MaxPorts; p++ {
		want := 2 // park + restore
		if p == 5 {
			want = 0 // never captured, never touched
		}
		if attempts[p] != want {
			t.Fatalf("port %d: %d write attempts, want %d", p, attempts[p], want)
		}
		if p != 3 && host.Port(p) != orig[p] {
			t.Fatalf("port %d not restored", p)
		}
	}
}

func TestSleepWithEveryTransferFailing(t *testing.T) {
	hw := sim.NewPMIC()
	clk := sim.NewClock()
	dev := pmic.New(regbus.New(hw, sim.NewPin("mux"), clk, regbus.DefaultConfig()), clk, pmic.DefaultConfig(), nil, pmic.Events{})
	host := sim.NewHost(power.MaxPorts)
	j := &sim.Journal{}
	reg := power.NewRegistry()
	reg.Append(&listener{"ui", j})
	o := power.NewOrchestrator(dev, host, reg, power.DefaultConfig())
	o.PowerOnReset()

	hw.FailAll(true)
	err := o.Sleep()
	if err == nil {
		t.Fatal("expected joined transport errors")
	}
	if errcode.Of(err) != errcode.Transport && errcode.Of(err) != errcode.InvariantViolation {
		t.Fatalf("err = %v", err)
	}
	if o.State() != power.Awake {
		t.Fatalf("state = %v", o.State())
	}
	if j.Index("ui wake") < 0 {
		t.Fatal("wake not delivered")
	}
	if !hw.RailEnabled(pmic.LDO3) {
		t.Fatal("peripheral rail changed without a working bus")
	}
}

func TestSleepRejectedWhenNotAwake(t *testing.T) {
	host := sim.NewHost(1)
	host.ScriptWakes(power.WakeUser, power.WakeUser)
	reg := power.NewRegistry()
	var o *power.Orchestrator
	var inner error
	reg.Append(&reentrant{fn: func() { inner = o.Sleep() }})
	o = power.NewOrchestrator(&fakePMIC{j: &sim.Journal{}}, host, reg, power.DefaultConfig())

	if err := o.Sleep(); err != nil {
		t.Fatal(err)
	}
	if errcode.Of(inner) != errcode.Busy {
		t.Fatalf("nested Sleep err = %v", inner)
	}
	if o.Stats().SleepCycles != 1 {
		t.Fatalf("cycles = %d", o.Stats().SleepCycles)
	}
}

type reentrant struct{ fn func() }

func (r *reentrant) OnSystemPowerOnReset()  {}
func (r *reentrant) OnSystemEnterSleep()    { r.fn() }
func (r *reentrant) OnSystemWakeFromSleep() {}

func TestBatteryEmptyRetriesUntilPowerOk(t *testing.T) {
	j := &sim.Journal{}
	host := sim.NewHost(2)
	host.Journal = j
	host.ScriptWakes(power.WakeTick, power.WakeTick)
	reg := power.NewRegistry()
	reg.Append(&listener{"ui", j})
	f := &fakePMIC{j: j, ok: []bool{false, false, true}}
	o := power.NewOrchestrator(f, host, reg, power.DefaultConfig())

	o.BatteryEmpty()

	if got := o.Stats().EmptyCycles; got != 2 {
		t.Fatalf("cycles = %d, want 2", got)
	}
	if host.Restarts() != 1 {
		t.Fatalf("restarts = %d", host.Restarts())
	}
	if j.Index("ui sleep") >= 0 || j.Index("ui wake") >= 0 {
		t.Fatal("listeners notified during battery-empty cycles")
	}
	if o.State() != power.BatteryEmptyShutdown {
		t.Fatalf("state = %v", o.State())
	}
	// Ticks count as a wake here: the loop must re-check each time.
	if host.Waits() != 2 {
		t.Fatalf("waits = %d", host.Waits())
	}
}

func TestBatteryEmptyWithDriver(t *testing.T) {
	hw := sim.NewPMIC()
	clk := sim.NewClock()
	dev := pmic.New(regbus.New(hw, sim.NewPin("mux"), clk, regbus.DefaultConfig()), clk, pmic.DefaultConfig(), nil, pmic.Events{})
	host := sim.NewHost(2)
	host.OnWait = func(n int) {
		if n == 2 {
			hw.SetVSYSBad(false) // charger plugged in during the second sleep
		}
	}
	o := power.NewOrchestrator(dev, host, nil, power.DefaultConfig())
	o.PowerOnReset()
	hw.SetVSYSBad(true)

	o.BatteryEmpty()
	if o.Stats().EmptyCycles != 2 || host.Restarts() != 1 {
		t.Fatalf("cycles=%d restarts=%d", o.Stats().EmptyCycles, host.Restarts())
	}
	if !hw.RailEnabled(pmic.LDO3) {
		t.Fatal("peripheral rail left fenced before restart")
	}
}
