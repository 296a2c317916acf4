package power

// Host controller geometry: up to MaxPorts I/O ports, each configured by a
// triplet of drive-mode registers.
const (
	MaxPorts         = 9
	DriveRegsPerPort = 3
)

// DriveMode is one port's drive-mode register triplet.
type DriveMode [DriveRegsPerPort]byte

// WakeCause is a bitmask of what resumed the host from its wait state.
type WakeCause uint8

const (
	WakeTick  WakeCause = 1 << iota // periodic RTC tick; services timers only
	WakeFault                       // PMIC fault / IRQ pin
	WakeUser                        // explicit wake request (button, console)
)

// Qualifies reports whether the cause should end a sleep.
func (c WakeCause) Qualifies() bool { return c&(WakeFault|WakeUser) != 0 }

func (c WakeCause) String() string {
	if c == 0 {
		return "none"
	}
	s := ""
	add := func(n string) {
		if s != "" {
			s += "|"
		}
		s += n
	}
	if c&WakeTick != 0 {
		add("tick")
	}
	if c&WakeFault != 0 {
		add("fault")
	}
	if c&WakeUser != 0 {
		add("user")
	}
	return s
}

// Host is the MCU side of a sleep cycle.
type Host interface {
	// Ports returns the number of I/O ports, at most MaxPorts.
	Ports() int
	ReadDriveMode(port int) (DriveMode, error)
	WriteDriveMode(port int, dm DriveMode) error
	// WaitForInterrupt enters the lowest-power wait state and returns on the
	// next wake source.
	WaitForInterrupt() WakeCause
	// Restart resets into the application image. On hardware it does not return.
	Restart()
}

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIO is the pin subset needed to set sleep pull states.
type GPIO interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
}

// PinRole decides how a pin is held while asleep.
type PinRole uint8

const (
	RoleSwitchInput PinRole = iota // input switch: pull-up
	RoleAuxEnable                  // auxiliary power enable: driven strong at Level
	RoleFaultIRQ                   // PMIC fault line: pull-up so it stays a wake source
)

type SleepPin struct {
	Name  string
	Pin   GPIO
	Role  PinRole
	Level bool // RoleAuxEnable only
}

func (p SleepPin) apply() error {
	switch p.Role {
	case RoleAuxEnable:
		return p.Pin.ConfigureOutput(p.Level)
	default:
		return p.Pin.ConfigureInput(PullUp)
	}
}

// DriveModeSnapshot holds port configuration for the duration of one sleep.
type DriveModeSnapshot struct {
	ports    [MaxPorts]DriveMode
	captured uint16 // bit per port read successfully
	n        int
}

// Captured reports whether port p was read into the snapshot.
func (s *DriveModeSnapshot) Captured(p int) bool {
	return p >= 0 && p < MaxPorts && s.captured&(1<<p) != 0
}

func (s *DriveModeSnapshot) Port(p int) DriveMode { return s.ports[p] }

func (s *DriveModeSnapshot) reset() { *s = DriveModeSnapshot{} }
