// Package periphio implements the bus transports on top of periph.io, for
// Raspberry Pi class boards running Linux with spidev and i2c-dev enabled.
//
// Each type here owns the kernel handle it opened and must be closed exactly
// once.
package periphio

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"periphctl/internal/bus"
	appLog "periphctl/internal/log"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init initializes the periph.io host drivers once per process.
func Init() error {
	initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			initErr = fmt.Errorf("periphio: periph host init failed: %w", err)
		}
	})
	return initErr
}

// --- GPIO ---

// GPIO resolves BCM pin numbers to periph pins ("GPIO<n>") and remembers every
// pin it configured so Close can halt them.
type GPIO struct {
	lookup func(name string) gpio.PinIO
	pins   map[int]gpio.PinIO
	order  []int
}

// NewGPIO returns a GPIO transport using lookup to resolve pin names. A nil
// lookup uses the periph registry.
func NewGPIO(lookup func(name string) gpio.PinIO) *GPIO {
	if lookup == nil {
		lookup = gpioreg.ByName
	}
	return &GPIO{lookup: lookup, pins: map[int]gpio.PinIO{}}
}

func (g *GPIO) pin(num int) (gpio.PinIO, error) {
	if p, ok := g.pins[num]; ok {
		return p, nil
	}
	name := fmt.Sprintf("GPIO%d", num)
	p := g.lookup(name)
	if p == nil {
		return nil, fmt.Errorf("periphio: gpio %s not found", name)
	}
	g.pins[num] = p
	g.order = append(g.order, num)
	return p, nil
}

// Configure implements bus.GPIOTransport. Outputs start low.
func (g *GPIO) Configure(num int, dir bus.Direction) error {
	p, err := g.pin(num)
	if err != nil {
		return err
	}
	if dir == bus.Output {
		err = p.Out(gpio.Low)
	} else {
		err = p.In(gpio.PullNoChange, gpio.NoEdge)
	}
	if err != nil {
		return fmt.Errorf("periphio: gpio %d configure %s: %w", num, dir, err)
	}
	appLog.Debug("gpio configured", "pin", num, "dir", dir.String())
	return nil
}

// SetLevel implements bus.GPIOTransport.
func (g *GPIO) SetLevel(num int, level bus.Level) error {
	p, ok := g.pins[num]
	if !ok {
		return fmt.Errorf("periphio: gpio %d not configured", num)
	}
	if err := p.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("periphio: gpio %d out: %w", num, err)
	}
	return nil
}

// Close halts every configured pin.
func (g *GPIO) Close() error {
	var err error
	for _, num := range g.order {
		p := g.pins[num]
		err = multierr.Append(err, p.Halt())
	}
	g.pins = map[int]gpio.PinIO{}
	g.order = nil
	return err
}

// --- SPI ---

// SPI is an SPI transport bound to one chip select.
type SPI struct {
	name string
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens the spireg port name ("" for the first one).
func OpenSPI(name string, maxHz int64, mode int) (*SPI, error) {
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("periphio: failed to open SPI port %q: %w", name, err)
	}
	s, err := NewSPI(name, port, maxHz, mode)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return s, nil
}

// NewSPI connects to an already opened port and takes ownership of it.
func NewSPI(name string, port spi.PortCloser, maxHz int64, mode int) (*SPI, error) {
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("periphio: spi mode %d outside [0,3]", mode)
	}
	conn, err := port.Connect(physic.Frequency(maxHz)*physic.Hertz, spi.Mode(mode), 8)
	if err != nil {
		return nil, fmt.Errorf("periphio: failed to connect SPI %q: %w", name, err)
	}
	appLog.Debug("spi connected", "port", name, "max_hz", maxHz, "mode", mode)
	return &SPI{name: name, port: port, conn: conn}, nil
}

// Transfer implements bus.SPITransport. The exchange is full duplex: the
// response is the first responseLen bytes clocked in while request went out.
func (s *SPI) Transfer(request []byte, responseLen int) ([]byte, error) {
	if responseLen > len(request) {
		return nil, fmt.Errorf("periphio: spi %q: %d response bytes from a %d byte frame", s.name, responseLen, len(request))
	}
	if responseLen == 0 {
		if err := s.conn.Tx(request, nil); err != nil {
			return nil, fmt.Errorf("periphio: spi %q tx: %w", s.name, err)
		}
		return []byte{}, nil
	}
	rx := make([]byte, len(request))
	if err := s.conn.Tx(request, rx); err != nil {
		return nil, fmt.Errorf("periphio: spi %q tx: %w", s.name, err)
	}
	return rx[:responseLen], nil
}

func (s *SPI) Close() error {
	return s.port.Close()
}

// --- I2C ---

// I2C is an I2C transport over one bus shared by several device addresses.
type I2C struct {
	name string
	bus  i2c.BusCloser
}

// OpenI2C opens the i2creg bus name ("" for the default bus).
func OpenI2C(name string) (*I2C, error) {
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("periphio: failed to open I2C bus %q: %w", name, err)
	}
	appLog.Debug("i2c opened", "bus", name)
	return NewI2C(name, b), nil
}

// NewI2C takes ownership of an already opened bus.
func NewI2C(name string, b i2c.BusCloser) *I2C {
	return &I2C{name: name, bus: b}
}

// WriteRegister implements bus.I2CTransport as a single write transaction of
// the register number followed by data.
func (c *I2C) WriteRegister(addr, reg uint8, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := c.bus.Tx(uint16(addr), w, nil); err != nil {
		return fmt.Errorf("periphio: i2c 0x%02X write reg 0x%02X: %w", addr, reg, err)
	}
	return nil
}

// ReadRegister implements bus.I2CRegisterReader with a write-then-read
// transaction.
func (c *I2C) ReadRegister(addr, reg uint8, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := c.bus.Tx(uint16(addr), []byte{reg}, r); err != nil {
		return nil, fmt.Errorf("periphio: i2c 0x%02X read reg 0x%02X: %w", addr, reg, err)
	}
	return r, nil
}

func (c *I2C) Close() error {
	return c.bus.Close()
}
