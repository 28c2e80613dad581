// Package expander drives an MCP23008 8-bit I2C GPIO expander.
package expander

import (
	"fmt"

	"periphctl/internal/bus"
)

// DefaultAddress is the chip address with A0..A2 grounded.
const DefaultAddress = 0x20

// Registers (IOCON.BANK = 0).
const (
	IODIR   = 0x00 // 1 = input; all ones after reset
	IPOL    = 0x01
	GPINTEN = 0x02
	DEFVAL  = 0x03
	INTCON  = 0x04
	IOCON   = 0x05
	GPPU    = 0x06
	INTF    = 0x07
	INTCAP  = 0x08
	GPIO    = 0x09
	OLAT    = 0x0A
)

// Driver programs one expander. WritePort is only valid once the port has
// been configured as outputs.
type Driver struct {
	b          *bus.I2CBus
	configured bool
	dir        uint8
}

func New(b *bus.I2CBus) *Driver {
	return &Driver{b: b, dir: 0xFF}
}

// ConfigureAllOutputs makes all eight lines outputs.
func (d *Driver) ConfigureAllOutputs() error {
	return d.SetDirection(0x00)
}

// SetDirection writes IODIR; a set bit makes that line an input.
func (d *Driver) SetDirection(mask uint8) error {
	if err := d.b.WriteRegisterByte(IODIR, mask); err != nil {
		return fmt.Errorf("expander: set direction 0x%02X: %w", mask, err)
	}
	d.dir = mask
	d.configured = true
	return nil
}

// WritePort drives the output lines with pattern.
func (d *Driver) WritePort(pattern uint8) error {
	if !d.configured || d.dir == 0xFF {
		return bus.Preconditionf("expander: port written before outputs were configured")
	}
	if err := d.b.WriteRegisterByte(GPIO, pattern); err != nil {
		return fmt.Errorf("expander: write port 0x%02X: %w", pattern, err)
	}
	return nil
}

// SetPullups enables the 100k pull-ups on the lines set in mask.
func (d *Driver) SetPullups(mask uint8) error {
	if err := d.b.WriteRegisterByte(GPPU, mask); err != nil {
		return fmt.Errorf("expander: set pull-ups 0x%02X: %w", mask, err)
	}
	return nil
}

// ReadPort returns the current level of all eight lines.
func (d *Driver) ReadPort() (uint8, error) {
	v, err := d.b.ReadRegister(GPIO, 1)
	if err != nil {
		return 0, fmt.Errorf("expander: read port: %w", err)
	}
	return v[0], nil
}
