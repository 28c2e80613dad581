// Package pcf8591 drives a PCF8591 8-bit I2C converter: four single-ended
// analog inputs and one analog output.
//
// The control byte selects the input channel and keeps the analog output
// enabled. A read returns the conversion triggered by the previous read
// first, so every channel read fetches two bytes and keeps the second.
package pcf8591

import (
	"fmt"

	"periphctl/internal/bus"
)

const (
	DefaultAddress = 0x48
	Channels       = 4

	controlAOEF = 0x40 // analog output enable
	channelMask = 0x03
)

type Dev struct {
	b *bus.I2CBus
}

func New(b *bus.I2CBus) *Dev {
	return &Dev{b: b}
}

// Control returns the control byte for single-ended channel ch.
func Control(ch int) (uint8, error) {
	if ch < 0 || ch >= Channels {
		return 0, bus.Preconditionf("pcf8591: channel %d out of range", ch)
	}
	return controlAOEF | uint8(ch)&channelMask, nil
}

// ReadChannel returns a fresh 8-bit conversion of ch.
func (d *Dev) ReadChannel(ch int) (uint8, error) {
	ctrl, err := Control(ch)
	if err != nil {
		return 0, err
	}
	v, err := d.b.ReadRegister(ctrl, 2)
	if err != nil {
		return 0, fmt.Errorf("pcf8591: read channel %d: %w", ch, err)
	}
	return v[1], nil
}

// WriteOutput sets the analog output level.
func (d *Dev) WriteOutput(level uint8) error {
	if err := d.b.WriteRegisterByte(controlAOEF, level); err != nil {
		return fmt.Errorf("pcf8591: write output %d: %w", level, err)
	}
	return nil
}
