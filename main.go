package main

import (
	"context"
	"time"

	"powercode-go/boards"
	"powercode-go/bus"
	"powercode-go/platform"
	"powercode-go/services/heartbeat"
	"powercode-go/x/logx"
)

// idleBeats is how many quiet heartbeats pass before the device sleeps.
const idleBeats = 60

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	b := boards.Selected
	hw, err := openPlatform(b)
	if err != nil {
		logx.Warn("main", "platform", "board", b.Name, "err", err)
		return
	}

	ps := bus.NewBus(8)
	sys, err := platform.Assemble(hw, b, ps.NewConnection("power"))
	if err != nil {
		logx.Warn("main", "assemble", "board", b.Name, "err", err)
		return
	}
	logx.Info("main", "boot", "board", b.Name, "ports", b.Ports)

	ctx := context.Background()

	hb := heartbeat.New(ps.NewConnection("heartbeat"), heartbeat.Config{
		Interval:  time.Second,
		IdleBeats: idleBeats,
	})
	sys.Power.Registry().Append(hb)
	if err := hb.Start(ctx); err != nil {
		logx.Warn("main", "heartbeat", "err", err)
	}

	if err := sys.Service.Run(ctx); err != nil {
		logx.Warn("main", "power service stopped", "err", err)
	}
}
