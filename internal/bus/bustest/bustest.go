// Package bustest provides recording transports for the bus package, in the
// spirit of periph's conntest/i2ctest playback doubles: every call is kept in
// order so tests can assert on exact wire activity.
package bustest

import (
	"fmt"

	"periphctl/internal/bus"
)

// GPIOOp is one recorded GPIO transport call.
type GPIOOp struct {
	Configure bool
	Pin       int
	Dir       bus.Direction
	Level     bus.Level
}

func (o GPIOOp) String() string {
	if o.Configure {
		return fmt.Sprintf("cfg(%d,%s)", o.Pin, o.Dir)
	}
	return fmt.Sprintf("set(%d,%s)", o.Pin, o.Level)
}

// GPIO records Configure and SetLevel calls. FailOn makes calls touching the
// given pin return Err.
type GPIO struct {
	Ops    []GPIOOp
	Levels map[int]bus.Level
	FailOn map[int]bool
	Err    error
}

func NewGPIO() *GPIO {
	return &GPIO{Levels: map[int]bus.Level{}, FailOn: map[int]bool{}}
}

func (g *GPIO) fail(pin int) error {
	if g.FailOn[pin] {
		if g.Err != nil {
			return g.Err
		}
		return fmt.Errorf("bustest: pin %d failed", pin)
	}
	return nil
}

func (g *GPIO) Configure(pin int, dir bus.Direction) error {
	if err := g.fail(pin); err != nil {
		return err
	}
	g.Ops = append(g.Ops, GPIOOp{Configure: true, Pin: pin, Dir: dir})
	return nil
}

func (g *GPIO) SetLevel(pin int, level bus.Level) error {
	if err := g.fail(pin); err != nil {
		return err
	}
	g.Ops = append(g.Ops, GPIOOp{Pin: pin, Level: level})
	g.Levels[pin] = level
	return nil
}

// Sets returns only the SetLevel operations.
func (g *GPIO) Sets() []GPIOOp {
	var out []GPIOOp
	for _, op := range g.Ops {
		if !op.Configure {
			out = append(out, op)
		}
	}
	return out
}

// SPIExchange is one recorded SPI transfer.
type SPIExchange struct {
	W []byte
	N int
}

// SPI records every transfer and answers from Responses in order. When
// Responses runs out it answers with zero bytes.
type SPI struct {
	Exchanges []SPIExchange
	Responses [][]byte
	Err       error
}

func (s *SPI) Transfer(req []byte, n int) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.Exchanges = append(s.Exchanges, SPIExchange{W: append([]byte(nil), req...), N: n})
	if n == 0 {
		return []byte{}, nil
	}
	if len(s.Responses) == 0 {
		return make([]byte, n), nil
	}
	r := s.Responses[0]
	s.Responses = s.Responses[1:]
	return r, nil
}

// I2CWrite is one recorded register write.
type I2CWrite struct {
	Addr uint8
	Reg  uint8
	Data []byte
}

// I2C records register writes and serves reads from Reads keyed by register.
type I2C struct {
	Writes []I2CWrite
	Reads  map[uint8][]byte
	Err    error
}

func (c *I2C) WriteRegister(addr, reg uint8, data []byte) error {
	if c.Err != nil {
		return c.Err
	}
	c.Writes = append(c.Writes, I2CWrite{Addr: addr, Reg: reg, Data: append([]byte(nil), data...)})
	return nil
}

func (c *I2C) ReadRegister(addr, reg uint8, n int) ([]byte, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	v, ok := c.Reads[reg]
	if !ok {
		return nil, fmt.Errorf("bustest: no data for 0x%02X/0x%02X", addr, reg)
	}
	if len(v) > n {
		v = v[:n]
	}
	return append([]byte(nil), v...), nil
}

// WriteOnlyI2C hides ReadRegister.
type WriteOnlyI2C struct {
	I2C *I2C
}

func (w WriteOnlyI2C) WriteRegister(addr, reg uint8, data []byte) error {
	return w.I2C.WriteRegister(addr, reg, data)
}
