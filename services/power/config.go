package power

import "errors"

type Config struct {
	// SleepPins are forced to defined states after ports are parked.
	SleepPins []SleepPin
	// ParkPorts writes ParkDriveMode to every captured port before sleeping.
	ParkPorts     bool
	ParkDriveMode DriveMode
	// OnTick runs on RTC ticks that do not end a sleep (background timers).
	OnTick func()
}

func DefaultConfig() Config {
	return Config{ParkPorts: true}
}

func (c Config) Validate() error {
	for _, p := range c.SleepPins {
		if p.Pin == nil {
			return errors.New("power: sleep pin " + p.Name + " has no GPIO")
		}
		if p.Role > RoleFaultIRQ {
			return errors.New("power: sleep pin " + p.Name + " has an unknown role")
		}
	}
	return nil
}
