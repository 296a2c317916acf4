package pmic

// Register is one byte-wide PMIC register address.
type Register byte

// Register sub-addresses.
const (
	RegSysStatus Register = 0x00 // R: VSYS_BAD, THERM_WARN, INPUT_OK
	RegSystem    Register = 0x01 // R/W: VSYS threshold + IRQ enable; R: pending (clear on read), VSYS_BAD

	// Regulator control/voltage pairs: ctrl at 0x10+2n, vsel at 0x11+2n.
	RegBuck1Ctrl Register = 0x10
	RegBuck1Volt Register = 0x11
	RegBuck2Ctrl Register = 0x12
	RegBuck2Volt Register = 0x13
	RegLDO1Ctrl  Register = 0x14
	RegLDO1Volt  Register = 0x15
	RegLDO2Ctrl  Register = 0x16
	RegLDO2Volt  Register = 0x17
	RegLDO3Ctrl  Register = 0x18
	RegLDO3Volt  Register = 0x19
	RegLDO4Ctrl  Register = 0x1A
	RegLDO4Volt  Register = 0x1B
	RegLDO5Ctrl  Register = 0x1C
	RegLDO5Volt  Register = 0x1D
	RegLDO6Ctrl  Register = 0x1E
	RegLDO6Volt  Register = 0x1F

	RegRailStatus Register = 0x20 // R: buck power-good, peripheral fault (clear on read)
	RegChgStatus0 Register = 0x30 // R: charge state field
	RegChgStatus1 Register = 0x31 // R: charger flags
	RegUSBOTG     Register = 0x40 // R/W: Q1 enable; R: Q1 ok
)

// SYS_STATUS (0x00)
const (
	StatusVSYSBad   = 1 << 0
	StatusThermWarn = 1 << 1
	StatusInputOK   = 1 << 2
)

// SYSTEM (0x01)
const (
	SysThresholdMask  = 0x03
	SysThresholdShift = 0
	SysThrIRQEnable   = 1 << 2
	SysThrPending     = 1 << 6
	SysVSYSBad        = 1 << 7
)

// Regulator CTRL registers
const (
	CtrlEnable    = 1 << 0
	CtrlFaultMask = 1 << 1 // 1 => fault does not assert the IRQ pin
	CtrlPowerOK   = 1 << 2 // R
)

// Regulator VOLT registers
const (
	VSelMask   = 0x3F
	VSelBaseMV = 600
	VSelStepMV = 50
)

// RAIL_STATUS (0x20)
const (
	RailBuck1POK    = 1 << 0
	RailBuck2POK    = 1 << 1
	RailPeriphFault = 1 << 7
)

// CHG_STATUS0 (0x30) / CHG_STATUS1 (0x31)
const (
	ChgStateMask  = 0x30
	ChgStateShift = 4

	ChgOn           = 1 << 0
	ChgThermalLimit = 1 << 1
)

// USB_OTG (0x40)
const (
	OTGQ1Enable = 1 << 0
	OTGQ1OK     = 1 << 7
)

var regNames = map[Register]string{
	RegSysStatus:  "SYS_STATUS",
	RegSystem:     "SYSTEM",
	RegRailStatus: "RAIL_STATUS",
	RegChgStatus0: "CHG_STATUS0",
	RegChgStatus1: "CHG_STATUS1",
	RegUSBOTG:     "USB_OTG",
}

func (r Register) String() string {
	if n, ok := regNames[r]; ok {
		return n
	}
	if r >= RegBuck1Ctrl && r <= RegLDO6Volt {
		rg := Regulator((r - RegBuck1Ctrl) / 2)
		if (r-RegBuck1Ctrl)%2 == 0 {
			return rg.String() + "_CTRL"
		}
		return rg.String() + "_VOLT"
	}
	return "REG?"
}
