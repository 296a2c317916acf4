package sim

import (
	"errors"
	"strconv"
	"sync"

	"powercode-go/services/power"
)

var ErrPort = errors.New("sim: port access failed")

// Host models the MCU: drive-mode registers per port, a scripted sequence
// of wake causes and a restart counter.
type Host struct {
	mu        sync.Mutex
	ports     []power.DriveMode
	failRead  map[int]bool
	failWrite map[int]bool
	writes    []int
	wakes     []power.WakeCause
	waits     int
	restarts  int

	// OnWait, when set, runs inside WaitForInterrupt before the cause is
	// returned. Tests use it to change hardware state while "asleep".
	OnWait func(n int)
	// Journal, when set, records waits, port writes and restarts.
	Journal *Journal
}

var _ power.Host = (*Host)(nil)

// NewHost returns a host with n ports, each holding a distinct pattern.
func NewHost(n int) *Host {
	h := &Host{
		ports:     make([]power.DriveMode, n),
		failRead:  map[int]bool{},
		failWrite: map[int]bool{},
	}
	for p := range h.ports {
		h.ports[p] = power.DriveMode{byte(0x11 * (p + 1)), byte(p), 0xA0 | byte(p)}
	}
	return h
}

func (h *Host) Ports() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ports)
}

func (h *Host) ReadDriveMode(p int) (power.DriveMode, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p < 0 || p >= len(h.ports) || h.failRead[p] {
		return power.DriveMode{}, ErrPort
	}
	return h.ports[p], nil
}

func (h *Host) WriteDriveMode(p int, dm power.DriveMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writes = append(h.writes, p)
	if p < 0 || p >= len(h.ports) || h.failWrite[p] {
		return ErrPort
	}
	h.ports[p] = dm
	if h.Journal != nil {
		h.Journal.Add("port " + strconv.Itoa(p))
	}
	return nil
}

// WaitForInterrupt pops the next scripted cause; with none left it behaves
// like a user wake.
func (h *Host) WaitForInterrupt() power.WakeCause {
	h.mu.Lock()
	h.waits++
	n := h.waits
	c := power.WakeUser
	if len(h.wakes) > 0 {
		c = h.wakes[0]
		h.wakes = h.wakes[1:]
	}
	hook := h.OnWait
	h.mu.Unlock()
	if h.Journal != nil {
		h.Journal.Add("wfi " + c.String())
	}
	if hook != nil {
		hook(n)
	}
	return c
}

func (h *Host) Restart() {
	h.mu.Lock()
	h.restarts++
	h.mu.Unlock()
	if h.Journal != nil {
		h.Journal.Add("restart")
	}
}

// ScriptWakes appends causes for upcoming WaitForInterrupt calls.
func (h *Host) ScriptWakes(c ...power.WakeCause) {
	h.mu.Lock()
	h.wakes = append(h.wakes, c...)
	h.mu.Unlock()
}

func (h *Host) FailPort(p int, read, write bool) {
	h.mu.Lock()
	h.failRead[p] = read
	h.failWrite[p] = write
	h.mu.Unlock()
}

func (h *Host) Port(p int) power.DriveMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ports[p]
}

func (h *Host) SetPort(p int, dm power.DriveMode) {
	h.mu.Lock()
	h.ports[p] = dm
	h.mu.Unlock()
}

// WriteAttempts lists the ports passed to WriteDriveMode, failed ones included.
func (h *Host) WriteAttempts() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.writes...)
}

func (h *Host) Waits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waits
}

func (h *Host) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}
