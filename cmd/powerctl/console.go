//go:build !tinygo

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"powercode-go/boards"
	"powercode-go/drivers/pmic"
	"powercode-go/platform"
	"powercode-go/services/power"
)

// pumpInterval is how often queued driver work runs while the console idles.
const pumpInterval = 10 * time.Millisecond

var errSimOnly = errors.New("only available with the simulator")

type console struct {
	sys   *platform.System
	hw    platform.Hardware
	board boards.Board
	sim   *platform.Sim // nil on real hardware
	out   io.Writer
}

type command struct {
	name    string
	usage   string
	simOnly bool
	run     func(c *console, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"help", "list commands", false, (*console).help},
		{"status", "system status, power check, fence, threshold, state", false, (*console).status},
		{"charge", "charge state and charger flags", false, (*console).charge},
		{"fence", "fence on|off", false, (*console).fence},
		{"usb", "usb on|off", false, (*console).usb},
		{"threshold", "threshold [<mV>|off]", false, (*console).threshold},
		{"rails", "list regulators", false, (*console).rails},
		{"rail", "rail <name> on|off|<mV>", false, (*console).rail},
		{"regs", "dump registers", false, (*console).regs},
		{"sleep", "run one sleep/wake cycle", false, (*console).sleep},
		{"wake", "wake tick|fault|user ... (queue wake causes)", true, (*console).wake},
		{"fault", "fault [clear] (peripheral rail fault)", true, (*console).fault},
		{"empty", "trip the VSYS threshold with VSYS bad", true, (*console).empty},
		{"advance", "advance <duration> (simulated time)", true, (*console).advance},
	}
}

func (c *console) serve(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	c.sys.Power.PowerOnReset()
	tick := time.NewTicker(pumpInterval)
	defer tick.Stop()

	fmt.Fprint(c.out, "> ")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			c.pump()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.exec(line)
			c.pump()
			if err != nil {
				fmt.Fprintln(c.out, "error:", err)
			}
			if quit {
				return nil
			}
			fmt.Fprint(c.out, "> ")
		}
	}
}

// pump runs queued driver work and requests on the console goroutine, which
// is the only one that touches the drivers.
func (c *console) pump() {
	for i := 0; i < 16 && c.sys.Service.Step(); i++ {
	}
}

func (c *console) exec(line string) (quit bool, err error) {
	args, err := shlex.Split(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	if args[0] == "quit" || args[0] == "exit" {
		return true, nil
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if cmd.simOnly && c.sim == nil {
			return false, errSimOnly
		}
		return false, cmd.run(c, args[1:])
	}
	return false, fmt.Errorf("unknown command %q (try help)", args[0])
}

func (c *console) help([]string) error {
	for _, cmd := range commands {
		suffix := ""
		if cmd.simOnly {
			suffix = " [sim]"
		}
		fmt.Fprintf(c.out, "  %-10s %s%s\n", cmd.name, cmd.usage, suffix)
	}
	fmt.Fprintf(c.out, "  %-10s %s\n", "quit", "leave")
	return nil
}

func onOff(args []string) (bool, error) {
	if len(args) == 1 {
		switch args[0] {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
	}
	return false, errors.New("want on|off")
}

func (c *console) status([]string) error {
	d := c.sys.PMIC
	st, err := d.SystemStatus()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "sys_status=0x%02x input_ok=%v vsys_bad=%v therm_warn=%v\n",
		st, st&pmic.StatusInputOK != 0, st&pmic.StatusVSYSBad != 0, st&pmic.StatusThermWarn != 0)
	fmt.Fprintf(c.out, "power_ok=%v\n", d.IsPowerOk())
	if fenced, err := d.IsPowerFenced(); err == nil {
		fmt.Fprintf(c.out, "fenced=%v\n", fenced)
	}
	if th, err := d.SystemVoltageThreshold(); err == nil {
		fmt.Fprintf(c.out, "threshold=%v\n", th)
	}
	s := c.sys.Power.Stats()
	fmt.Fprintf(c.out, "state=%v sleeps=%d empty_cycles=%d spurious=%d last_wake=%v\n",
		c.sys.Power.State(), s.SleepCycles, s.EmptyCycles, s.SpuriousWakes, s.LastWake)
	tx, failed := c.sys.Bus.Stats()
	fmt.Fprintf(c.out, "bus tx=%d failed=%d\n", tx, failed)
	return nil
}

func (c *console) charge([]string) error {
	cs, err := c.sys.PMIC.ChargeStatus()
	if err != nil {
		return err
	}
	fl, err := c.sys.PMIC.ChargerFlags()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "charge=%v charger_on=%v thermal_limit=%v\n",
		cs, fl.Has(pmic.ChargerOn), fl.Has(pmic.ChargerThermalLimit))
	return nil
}

func (c *console) fence(args []string) error {
	on, err := onOff(args)
	if err != nil {
		return err
	}
	return c.sys.PMIC.SetPowerFence(on)
}

func (c *console) usb(args []string) error {
	on, err := onOff(args)
	if err != nil {
		return err
	}
	ok, err := c.sys.PMIC.SetUSBPowerPath(on)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "acknowledged=%v\n", ok)
	return nil
}

func (c *console) threshold(args []string) error {
	if len(args) == 0 {
		th, err := c.sys.PMIC.SystemVoltageThreshold()
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, th)
		return nil
	}
	if args[0] == "off" {
		return c.sys.PMIC.SetSystemVoltageThreshold(pmic.ThresholdDisabled)
	}
	mv, err := strconv.ParseUint(strings.TrimSuffix(args[0], "mV"), 10, 32)
	if err != nil {
		return err
	}
	th, ok := pmic.ThresholdFromMilliVolts(uint32(mv))
	if !ok {
		return errors.New("supported: 3100, 3300, 3500 or off")
	}
	return c.sys.PMIC.SetSystemVoltageThreshold(th)
}

func (c *console) rails([]string) error {
	for _, r := range pmic.AllRegulators {
		on, err := c.sys.PMIC.IsEnabled(r)
		if err != nil {
			fmt.Fprintf(c.out, "%-6s error: %v\n", r, err)
			continue
		}
		mv, _ := c.sys.PMIC.Voltage(r)
		fmt.Fprintf(c.out, "%-6s on=%-5v %dmV\n", r, on, mv)
	}
	return nil
}

func (c *console) rail(args []string) error {
	if len(args) != 2 {
		return errors.New("want rail <name> on|off|<mV>")
	}
	r, ok := pmic.ParseRegulator(strings.ToUpper(args[0]))
	if !ok {
		return fmt.Errorf("unknown regulator %q", args[0])
	}
	switch args[1] {
	case "on":
		return c.sys.PMIC.Enable(r)
	case "off":
		return c.sys.PMIC.Disable(r)
	}
	mv, err := strconv.ParseUint(strings.TrimSuffix(args[1], "mV"), 10, 32)
	if err != nil {
		return err
	}
	return c.sys.PMIC.SetVoltage(r, uint32(mv))
}

func (c *console) regs([]string) error {
	list := []pmic.Register{pmic.RegSysStatus, pmic.RegRailStatus, pmic.RegChgStatus0, pmic.RegChgStatus1, pmic.RegUSBOTG}
	for _, r := range pmic.AllRegulators {
		list = append(list, r.CtrlReg(), r.VoltReg())
	}
	for _, r := range list {
		v, err := c.sys.Bus.ReadRegister(byte(r))
		if err != nil {
			fmt.Fprintf(c.out, "0x%02x %-12s error: %v\n", byte(r), r, err)
			continue
		}
		fmt.Fprintf(c.out, "0x%02x %-12s 0x%02x\n", byte(r), r, v)
	}
	return nil
}

func (c *console) sleep([]string) error {
	if !c.sys.Service.RequestSleep() {
		return errors.New("sleep already queued")
	}
	return nil
}

func (c *console) wake(args []string) error {
	if len(args) == 0 {
		return errors.New("want one or more of tick|fault|user")
	}
	for _, a := range args {
		var w power.WakeCause
		switch a {
		case "tick":
			w = power.WakeTick
		case "fault":
			w = power.WakeFault
		case "user":
			w = power.WakeUser
		default:
			return fmt.Errorf("unknown wake cause %q", a)
		}
		c.sim.Host.ScriptWakes(w)
	}
	return nil
}

func (c *console) fault(args []string) error {
	rail := c.board.PMIC.PeripheralRail
	if len(args) == 1 && args[0] == "clear" {
		c.sim.PMIC.FaultRail(rail, false)
		return nil
	}
	c.sim.PMIC.FaultRail(rail, true)
	c.pump()
	c.sim.Clock.Advance(c.board.PMIC.Debounce)
	return nil
}

func (c *console) empty([]string) error {
	restarts := c.sim.Host.Restarts()
	waits := 0
	c.sim.Host.OnWait = func(int) {
		if waits++; waits == 2 {
			fmt.Fprintln(c.out, "(sim) charger connected")
			c.sim.PMIC.SetVSYSBad(false)
		}
	}
	c.sim.PMIC.TripThreshold(true)
	c.pump()
	c.sim.Host.OnWait = nil
	if c.sim.Host.Restarts() == restarts {
		return nil
	}
	// The MCU reset; the PMIC kept its state. Bring the stack up again.
	fmt.Fprintln(c.out, "(sim) restarted")
	sys, err := platform.Assemble(c.hw, c.board, nil)
	if err != nil {
		return err
	}
	c.sys = sys
	c.sys.Power.PowerOnReset()
	return nil
}

func (c *console) advance(args []string) error {
	if len(args) != 1 {
		return errors.New("want advance <duration>")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return err
	}
	c.sim.Clock.Advance(d)
	return nil
}
