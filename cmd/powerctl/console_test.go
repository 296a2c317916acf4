package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"powercode-go/boards"
	"powercode-go/platform"
)

func runScript(t *testing.T, script string) string {
	t.Helper()
	b := boards.Sim()
	hw, sm := platform.NewSim(b)
	sys, err := platform.Assemble(hw, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	c := &console{sys: sys, hw: hw, board: b, sim: sm, out: &out}
	if err := c.serve(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func TestConsoleFaultCycle(t *testing.T) {
	out := runScript(t, strings.Join([]string{
		"status",
		"fence on",
		"fence off",
		"threshold 3300",
		"threshold",
		"usb on",
		"fault",
		"status",
		"quit",
	}, "\n"))

	for _, want := range []string{"input_ok=true", "3300mV", "acknowledged=true", "sleeps=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestConsoleBatteryEmptyRestarts(t *testing.T) {
	out := runScript(t, "empty\nstatus\n")
	if !strings.Contains(out, "(sim) restarted") {
		t.Fatalf("no restart:\n%s", out)
	}
	if !strings.Contains(out, "state=awake") {
		t.Fatalf("stack not back up:\n%s", out)
	}
}

func TestConsoleErrors(t *testing.T) {
	out := runScript(t, "bogus\nfence maybe\nrail LDO9 on\nthreshold 3000\n")
	if n := strings.Count(out, "error:"); n != 4 {
		t.Fatalf("want 4 errors, got %d:\n%s", n, out)
	}
}

func TestConsoleSimOnlyOnHardware(t *testing.T) {
	c := &console{}
	if _, err := c.exec("fault"); err != errSimOnly {
		t.Fatalf("err = %v", err)
	}
}
