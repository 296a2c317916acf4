// Package regbus serialises single-byte register transactions to a device
// that sits behind a switched bus multiplexer.
//
// Every transaction asserts the mux enable line, waits for the bus to settle,
// performs one address-then-data write or address-then-read transfer and
// deasserts the line again, on every exit path. The whole sequence runs under
// one lock: callers from the main loop and from deferred interrupt work never
// interleave.
//
// NOTE: Tx on the underlying bus MUST perform a write followed by a
// repeated-start read when both w and r are provided.
package regbus

import (
	"errors"
	"sync"
	"time"

	"powercode-go/errcode"
	"powercode-go/x/timex"

	"tinygo.org/x/drivers"
)

const (
	// AddressDefault is the PMIC's 7-bit address.
	AddressDefault = 0x48
	// SettleDefault is the bus float time after switching the mux.
	SettleDefault = 10 * time.Microsecond
)

// EnablePin drives the mux enable line (true = bus connected).
type EnablePin interface {
	Set(level bool)
}

// RegisterIO is what register-level drivers consume.
type RegisterIO interface {
	ReadRegister(addr byte) (byte, error)
	WriteRegister(addr, value byte) error
}

type Config struct {
	Address uint16
	Settle  time.Duration
	// ActiveLow inverts the enable line.
	ActiveLow bool
}

func DefaultConfig() Config {
	return Config{Address: AddressDefault, Settle: SettleDefault}
}

func (c Config) Validate() error {
	if c.Address == 0 || c.Address > 0x7F {
		return errors.New("regbus: Address must be a 7-bit, non-zero address")
	}
	if c.Settle < 0 {
		return errors.New("regbus: Settle must not be negative")
	}
	return nil
}

// Channel is a RegisterIO over a multiplexed I2C bus.
type Channel struct {
	mu     sync.Mutex
	bus    drivers.I2C
	enable EnablePin
	clock  timex.Clock
	cfg    Config

	// Fixed buffers to avoid per-call heap allocations; guarded by mu.
	w [2]byte
	r [1]byte

	txCount  uint32
	errCount uint32
}

var _ RegisterIO = (*Channel)(nil)

// New returns a Channel. enable may be nil for boards without a mux.
func New(bus drivers.I2C, enable EnablePin, clock timex.Clock, cfg Config) *Channel {
	if cfg.Address == 0 {
		cfg.Address = AddressDefault
	}
	c := &Channel{bus: bus, enable: enable, clock: timex.Or(clock), cfg: cfg}
	c.setMux(false)
	return c
}

func (c *Channel) setMux(on bool) {
	if c.enable == nil {
		return
	}
	c.enable.Set(on != c.cfg.ActiveLow)
}

// ReadRegister performs write(addr) then read(1).
func (c *Channel) ReadRegister(addr byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.w[0] = addr
	if err := c.tx(c.w[:1], c.r[:1]); err != nil {
		return 0, errcode.Wrap(errcode.Transport, "read", err)
	}
	return c.r[0], nil
}

// WriteRegister performs write(addr, value).
func (c *Channel) WriteRegister(addr, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.w[0] = addr
	c.w[1] = value
	if err := c.tx(c.w[:2], nil); err != nil {
		return errcode.Wrap(errcode.Transport, "write", err)
	}
	return nil
}

// caller holds mu
func (c *Channel) tx(w, r []byte) (err error) {
	c.setMux(true)
	defer c.setMux(false)
	defer func() {
		c.txCount++
		if err != nil {
			c.errCount++
		}
	}()

	if c.cfg.Settle > 0 {
		c.clock.Sleep(c.cfg.Settle)
	}
	return c.bus.Tx(c.cfg.Address, w, r)
}

// Stats reports transactions issued and how many failed.
func (c *Channel) Stats() (tx, failed uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCount, c.errCount
}
