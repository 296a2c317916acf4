package pmic

// Regulator identifies one switchable PMIC output.
type Regulator uint8

const (
	Buck1 Regulator = iota
	Buck2
	LDO1
	LDO2
	LDO3
	LDO4
	LDO5
	LDO6

	numRegulators
)

// AllRegulators lists every output in register order.
var AllRegulators = [...]Regulator{Buck1, Buck2, LDO1, LDO2, LDO3, LDO4, LDO5, LDO6}

func (r Regulator) Valid() bool { return r < numRegulators }

func (r Regulator) CtrlReg() Register { return RegBuck1Ctrl + Register(2*r) }
func (r Regulator) VoltReg() Register { return RegBuck1Ctrl + Register(2*r) + 1 }

func (r Regulator) String() string {
	switch r {
	case Buck1:
		return "BUCK1"
	case Buck2:
		return "BUCK2"
	case LDO1:
		return "LDO1"
	case LDO2:
		return "LDO2"
	case LDO3:
		return "LDO3"
	case LDO4:
		return "LDO4"
	case LDO5:
		return "LDO5"
	case LDO6:
		return "LDO6"
	default:
		return "REG?"
	}
}

// ParseRegulator maps a name as printed by String back to a Regulator.
func ParseRegulator(name string) (Regulator, bool) {
	for _, r := range AllRegulators {
		if r.String() == name {
			return r, true
		}
	}
	return 0, false
}

// ChargeState is decoded from CHG_STATUS0[5:4].
type ChargeState uint8

const (
	ChargeUnknown ChargeState = iota
	ChargeSuspended
	ChargeEndOfCharge
	ChargeFast
	ChargePrecondition
)

func decodeChargeState(field byte) ChargeState {
	switch field {
	case 0b00:
		return ChargeSuspended
	case 0b01:
		return ChargePrecondition
	case 0b10:
		return ChargeFast
	case 0b11:
		return ChargeEndOfCharge
	default:
		return ChargeUnknown
	}
}

func (s ChargeState) String() string {
	switch s {
	case ChargeSuspended:
		return "suspended"
	case ChargeEndOfCharge:
		return "end_of_charge"
	case ChargeFast:
		return "fast_charge"
	case ChargePrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Threshold is the VSYS under-voltage trip level held in SYSTEM[1:0].
type Threshold uint8

const (
	ThresholdDisabled Threshold = 0b00
	Threshold3100mV   Threshold = 0b01
	Threshold3300mV   Threshold = 0b10
	Threshold3500mV   Threshold = 0b11

	// ThresholdLowest is the level at which a trip means the battery is empty.
	ThresholdLowest = Threshold3100mV
)

func (t Threshold) Valid() bool { return t <= Threshold3500mV }

// MilliVolts returns the trip level, 0 when disabled.
func (t Threshold) MilliVolts() uint32 {
	switch t {
	case Threshold3100mV:
		return 3100
	case Threshold3300mV:
		return 3300
	case Threshold3500mV:
		return 3500
	default:
		return 0
	}
}

// ThresholdFromMilliVolts maps a supported level back to its code.
func ThresholdFromMilliVolts(mv uint32) (Threshold, bool) {
	for _, t := range [...]Threshold{ThresholdDisabled, Threshold3100mV, Threshold3300mV, Threshold3500mV} {
		if t.MilliVolts() == mv {
			return t, true
		}
	}
	return ThresholdDisabled, false
}

func (t Threshold) String() string {
	switch t {
	case ThresholdDisabled:
		return "disabled"
	case Threshold3100mV:
		return "3100mV"
	case Threshold3300mV:
		return "3300mV"
	case Threshold3500mV:
		return "3500mV"
	default:
		return "threshold?"
	}
}

// ChargerFlags mirrors CHG_STATUS1.
type ChargerFlags uint8

const (
	ChargerOn           ChargerFlags = ChgOn
	ChargerThermalLimit ChargerFlags = ChgThermalLimit
)

func (f ChargerFlags) Has(flag ChargerFlags) bool { return f&flag != 0 }

// RailStatus mirrors RAIL_STATUS.
type RailStatus uint8

const (
	Buck1PowerOK    RailStatus = RailBuck1POK
	Buck2PowerOK    RailStatus = RailBuck2POK
	PeripheralFault RailStatus = RailPeriphFault
)

func (s RailStatus) Has(flag RailStatus) bool { return s&flag != 0 }
