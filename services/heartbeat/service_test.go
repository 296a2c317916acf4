package heartbeat

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"powercode-go/bus"
	"powercode-go/errcode"
	"powercode-go/services/power"
	"powercode-go/x/logx"
)

func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logx.Out
	logx.Out = &buf
	t.Cleanup(func() { logx.Out = prev })
	return &buf
}

func stateMsg(st power.State, sleeps uint32) *bus.Message {
	return &bus.Message{Topic: power.TopicState, Payload: power.StateEvent{State: st, Stats: power.Stats{SleepCycles: sleeps}}}
}

// rig returns a heartbeat on a fresh bus and a subscription watching the
// sleep requests it publishes.
func rig(t *testing.T, cfg Config) (*Service, *bus.Subscription) {
	t.Helper()
	b := bus.NewBus(8)
	requests := b.NewConnection("power").Subscribe(power.TopicSleep)
	return New(b.NewConnection("heartbeat"), cfg), requests
}

func TestIdleBeatsRequestSleep(t *testing.T) {
	quiet(t)
	hb, requests := rig(t, Config{Interval: time.Second, IdleBeats: 3})

	for i := 0; i < 2; i++ {
		if hb.Beat() {
			t.Fatalf("beat %d requested sleep early", i+1)
		}
	}
	if !hb.Beat() {
		t.Fatal("third idle beat did not request sleep")
	}
	if len(requests.Channel()) != 1 {
		t.Fatalf("requests = %d", len(requests.Channel()))
	}

	// A wake restarts the count.
	hb.Beat()
	hb.OnSystemEnterSleep()
	hb.OnSystemWakeFromSleep()
	hb.Beat()
	hb.Beat()
	if len(requests.Channel()) != 1 {
		t.Fatalf("requests after wake = %d, want 1", len(requests.Channel()))
	}
}

func TestNoSleepRequestUnlessAwake(t *testing.T) {
	quiet(t)
	hb, requests := rig(t, Config{Interval: time.Second, IdleBeats: 1})
	hb.observe(stateMsg(power.BatteryEmptyShutdown, 0))

	for i := 0; i < 5; i++ {
		hb.Beat()
	}
	if n := len(requests.Channel()); n != 0 {
		t.Fatalf("requests = %d while shutting down", n)
	}

	hb.observe(stateMsg(power.Awake, 0))
	hb.OnSystemEnterSleep()
	hb.Beat()
	if len(requests.Channel()) != 0 {
		t.Fatal("requested sleep between enter and wake")
	}
}

func TestBeatLogsObservedState(t *testing.T) {
	buf := quiet(t)
	hb, _ := rig(t, DefaultConfig())
	hb.observe(stateMsg(power.Awake, 4))
	hb.Beat()
	if got := buf.String(); !strings.Contains(got, "[heartbeat] beat n=1 state=awake sleeps=4") {
		t.Fatalf("log = %q", got)
	}
}

func TestConfigure(t *testing.T) {
	quiet(t)
	hb, _ := rig(t, DefaultConfig())

	if !hb.configure(&bus.Message{Payload: map[string]any{"interval": 0.5, "idle_beats": float64(10)}}) {
		t.Fatal("interval change not reported")
	}
	if hb.cfg.Interval != 500*time.Millisecond || hb.cfg.IdleBeats != 10 {
		t.Fatalf("cfg = %+v", hb.cfg)
	}
	if hb.configure(&bus.Message{Payload: Config{Interval: 500 * time.Millisecond, IdleBeats: 2}}) {
		t.Fatal("unchanged interval reported as changed")
	}
	if hb.cfg.IdleBeats != 2 {
		t.Fatalf("idle beats = %d", hb.cfg.IdleBeats)
	}
	if hb.configure(&bus.Message{Payload: map[string]any{"interval": -1.0}}) || hb.cfg.Interval != 500*time.Millisecond {
		t.Fatal("invalid interval applied")
	}
	if hb.configure(&bus.Message{Payload: "fast"}) {
		t.Fatal("unknown payload applied")
	}
}

func TestStartValidates(t *testing.T) {
	hb := New(bus.NewBus(1).NewConnection("hb"), Config{})
	if err := hb.Start(context.Background()); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("Start = %v", err)
	}
}

// A running heartbeat picks up the retained state and a config published on
// the bus, then asks for sleep.
func TestRunsFromBus(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	requests := conn.Subscribe(power.TopicSleep)
	conn.Publish(conn.NewMessage(power.TopicState, power.StateEvent{State: power.Awake}, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hb := New(b.NewConnection("heartbeat"), Config{Interval: time.Hour})
	if err := hb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	conn.Publish(conn.NewMessage(TopicConfig, Config{Interval: time.Millisecond, IdleBeats: 2}, false))

	select {
	case <-requests.Channel():
	case <-time.After(2 * time.Second):
		t.Fatal("no sleep request from running heartbeat")
	}
}
