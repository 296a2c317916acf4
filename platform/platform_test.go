package platform_test

import (
	"testing"

	"powercode-go/boards"
	"powercode-go/bus"
	"powercode-go/drivers/pmic"
	"powercode-go/platform"
	"powercode-go/services/power"
)

func assemble(t *testing.T) (*platform.System, *platform.Sim) {
	t.Helper()
	b := boards.Sim()
	hw, sm := platform.NewSim(b)
	sys, err := platform.Assemble(hw, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	sys.Power.PowerOnReset()
	return sys, sm
}

func drain(s *power.Service) {
	for i := 0; i < 8 && s.Step(); i++ {
	}
}

func TestRailFaultEndToEnd(t *testing.T) {
	sys, sm := assemble(t)

	sm.PMIC.FaultRail(pmic.LDO3, true) // pulses the fault pin
	drain(sys.Service)
	sm.Clock.Advance(sys.Board.PMIC.Debounce)
	drain(sys.Service)

	if sys.Power.Stats().SleepCycles == 0 {
		t.Fatal("confirmed rail fault did not lead to a sleep cycle")
	}
	if len(sm.Tone.Frequencies()) == 0 {
		t.Fatal("alarm silent")
	}
	if sys.Power.State() != power.Awake {
		t.Fatalf("state = %v", sys.Power.State())
	}
}

func TestBatteryEmptyEndToEnd(t *testing.T) {
	sys, sm := assemble(t)
	sm.Host.OnWait = func(n int) {
		if n == 1 {
			sm.PMIC.SetVSYSBad(false)
		}
	}

	sm.PMIC.TripThreshold(true)
	drain(sys.Service)

	if sm.Host.Restarts() != 1 {
		t.Fatalf("restarts = %d", sm.Host.Restarts())
	}
	if sys.Power.State() != power.BatteryEmptyShutdown {
		t.Fatalf("state = %v", sys.Power.State())
	}
}

func TestSleepParksPins(t *testing.T) {
	sys, sm := assemble(t)
	sys.Service.RequestSleep()
	drain(sys.Service)
	if out, pull := sm.Switch.Mode(); out || pull != power.PullUp {
		t.Fatal("switch not parked with pull-up")
	}
	if out, pull := sm.Fault.Mode(); out || pull != power.PullUp {
		t.Fatal("fault line not parked with pull-up")
	}
	if out, _ := sm.Aux.Mode(); !out {
		t.Fatal("aux enable not driven")
	}
}

func TestSleepCycleLeavesRailsAsFound(t *testing.T) {
	sys, sm := assemble(t)
	before := sm.PMIC.EnabledRails()
	sense := sm.PMIC.RailEnabled(pmic.LDO5)

	for i := 0; i < 3; i++ {
		sys.Service.RequestSleep()
		drain(sys.Service)
	}
	if n := sys.Power.Stats().SleepCycles; n != 3 {
		t.Fatalf("cycles = %d", n)
	}
	if after := sm.PMIC.EnabledRails(); after != before {
		t.Fatalf("enabled rails %d -> %d", before, after)
	}
	if sm.PMIC.RailEnabled(pmic.LDO5) != sense {
		t.Fatal("sense rail changed across sleep cycles")
	}
}

func TestAssembleSharesBus(t *testing.T) {
	b := boards.Sim()
	hw, _ := platform.NewSim(b)
	pb := bus.NewBus(8)
	sys, err := platform.Assemble(hw, b, pb.NewConnection("power"))
	if err != nil {
		t.Fatal(err)
	}
	sys.Power.PowerOnReset()

	app := pb.NewConnection("app")
	app.Publish(app.NewMessage(power.TopicSleep, nil, false))
	drain(sys.Service)

	ev := (<-app.Subscribe(power.TopicState).Channel()).Payload.(power.StateEvent)
	if ev.State != power.Awake || ev.Stats.SleepCycles != 1 {
		t.Fatalf("retained state = %+v", ev)
	}
}
