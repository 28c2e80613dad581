// Package lcd drives an HD44780/ST7066-class character display over a
// bit-banged 4-bit parallel bus (RS, E, DB4..DB7; R/W tied to ground).
//
// The bus is write-only and unacknowledged: a miswired or absent display is
// indistinguishable from a working one. The only errors reported are
// transport failures from the GPIO layer and caller preconditions.
package lcd

import (
	"time"

	"periph.io/x/host/v3/cpu"

	"periphctl/internal/bus"
)

// Enable strobe timing. The controller samples DB4..DB7 while E is high;
// shortening any of these risks a silently dropped or misread nibble.
const (
	SetupDelay  = 500 * time.Microsecond
	PulseWidth  = 500 * time.Microsecond
	HoldDelay   = 500 * time.Microsecond
	ClearSettle = 2 * time.Millisecond
)

// Instruction bytes.
const (
	cmdClear        = 0x01
	cmdHome         = 0x02
	cmdEntryLTR     = 0x06
	cmdDisplay      = 0x08
	cmdFunctionSet  = 0x28 // 4-bit bus, 2 lines, 5x8 font
	cmdInit8Then8   = 0x33
	cmdInit8Then4   = 0x32
	cmdSetDDRAMAddr = 0x80

	displayOn = 0x04
	cursorOn  = 0x02
	blinkOn   = 0x01
)

// Mode tags a transmitted byte as an instruction or as character data.
type Mode int

const (
	Command Mode = iota
	CharacterData
)

// Line selects a display row.
type Line int

const (
	Line1 Line = iota + 1
	Line2
	Line3
	Line4
)

// Address returns the "set DDRAM address" command byte for the start of the
// line on a display that is width columns wide. Rows 3 and 4 continue rows 1
// and 2 in controller RAM.
func (l Line) Address(width int) uint8 {
	var off int
	switch l {
	case Line1:
		off = 0x00
	case Line2:
		off = 0x40
	case Line3:
		off = width
	case Line4:
		off = 0x40 + width
	}
	return uint8(cmdSetDDRAMAddr | off)
}

// Pins is the BCM wiring of the display. Data holds DB4..DB7 in order.
type Pins struct {
	RS     int    `yaml:"rs" json:"rs"`
	Enable int    `yaml:"enable" json:"enable"`
	Data   [4]int `yaml:"data" json:"data"`
}

// Timing holds the strobe delays and the settle time after a clear.
type Timing struct {
	Setup time.Duration `yaml:"setup" json:"setup"`
	Pulse time.Duration `yaml:"pulse" json:"pulse"`
	Hold  time.Duration `yaml:"hold" json:"hold"`
	Clear time.Duration `yaml:"clear" json:"clear"`
}

func DefaultTiming() Timing {
	return Timing{Setup: SetupDelay, Pulse: PulseWidth, Hold: HoldDelay, Clear: ClearSettle}
}

// Config describes one attached display.
type Config struct {
	Pins   Pins   `yaml:"pins" json:"pins"`
	Width  int    `yaml:"width" json:"width"`
	Lines  int    `yaml:"lines" json:"lines"`
	Timing Timing `yaml:"timing" json:"timing"`
}

func DefaultConfig() Config {
	return Config{
		Pins:   Pins{RS: 22, Enable: 23, Data: [4]int{24, 25, 26, 27}},
		Width:  16,
		Lines:  2,
		Timing: DefaultTiming(),
	}
}

// Validate checks geometry and wiring.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Width > 40 {
		return bus.Preconditionf("lcd: width %d outside [1,40]", c.Width)
	}
	if c.Lines < 1 || c.Lines > 4 {
		return bus.Preconditionf("lcd: %d lines outside [1,4]", c.Lines)
	}
	seen := map[int]bool{}
	for _, p := range append([]int{c.Pins.RS, c.Pins.Enable}, c.Pins.Data[:]...) {
		if p < 0 {
			return bus.Preconditionf("lcd: negative pin %d", p)
		}
		if seen[p] {
			return bus.Preconditionf("lcd: pin %d wired twice", p)
		}
		seen[p] = true
	}
	return c.Timing.Validate()
}

// Validate rejects strobe delays shorter than the controller needs.
func (t Timing) Validate() error {
	for _, d := range []struct {
		name string
		got  time.Duration
		min  time.Duration
	}{
		{"setup", t.Setup, SetupDelay},
		{"pulse", t.Pulse, PulseWidth},
		{"hold", t.Hold, HoldDelay},
	} {
		if d.got < d.min {
			return bus.Preconditionf("lcd: %s %s below %s", d.name, d.got, d.min)
		}
	}
	if t.Clear < 0 {
		return bus.Preconditionf("lcd: negative clear settle %s", t.Clear)
	}
	return nil
}

// Option customizes a Controller.
type Option func(*Controller)

// WithWait replaces the busy wait used between strobe edges.
func WithWait(wait func(time.Duration)) Option {
	return func(c *Controller) { c.wait = wait }
}

// Controller composes six GPIO lines into the 4-bit display protocol.
type Controller struct {
	cfg         Config
	rs, e       *bus.GPIOLine
	data        [4]*bus.GPIOLine
	wait        func(time.Duration)
	initialized bool
}

// New binds a controller to t. Nothing is sent until Initialize.
func New(t bus.GPIOTransport, cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:  cfg,
		rs:   bus.NewGPIOLine(t, cfg.Pins.RS),
		e:    bus.NewGPIOLine(t, cfg.Pins.Enable),
		wait: cpu.Nanospin,
	}
	for i, p := range cfg.Pins.Data {
		c.data[i] = bus.NewGPIOLine(t, p)
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Controller) Width() int { return c.cfg.Width }
func (c *Controller) Lines() int { return c.cfg.Lines }

// Initialize configures all lines as outputs and runs the power-on sequence.
// The doubled function-set forces the controller into 4-bit mode whatever
// state it was left in.
func (c *Controller) Initialize() error {
	for _, l := range c.lines() {
		if err := l.Configure(bus.Output); err != nil {
			return err
		}
	}
	for _, b := range []uint8{cmdInit8Then8, cmdInit8Then4, cmdFunctionSet, cmdDisplay | displayOn} {
		if err := c.transmitByte(b, Command); err != nil {
			return err
		}
	}
	if err := c.clear(); err != nil {
		return err
	}
	if err := c.transmitByte(cmdEntryLTR, Command); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// WriteLine moves the cursor to the start of line and writes text padded or
// truncated to the display width.
func (c *Controller) WriteLine(line Line, text string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if int(line) < 1 || int(line) > c.cfg.Lines {
		return bus.Preconditionf("lcd: line %d outside [1,%d]", line, c.cfg.Lines)
	}
	if err := c.transmitByte(line.Address(c.cfg.Width), Command); err != nil {
		return err
	}
	for _, ch := range []byte(Pad(text, c.cfg.Width)) {
		if err := c.transmitByte(ch, CharacterData); err != nil {
			return err
		}
	}
	return nil
}

// Clear blanks the display and homes the cursor, then waits out the
// controller's settle time.
func (c *Controller) Clear() error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.clear()
}

// Home returns the cursor to the top-left without clearing.
func (c *Controller) Home() error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.transmitByte(cmdHome, Command); err != nil {
		return err
	}
	c.wait(c.cfg.Timing.Clear)
	return nil
}

// SetDisplay switches the display, cursor underline and cursor blink.
func (c *Controller) SetDisplay(on, cursor, blink bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	b := uint8(cmdDisplay)
	if on {
		b |= displayOn
	}
	if cursor {
		b |= cursorOn
	}
	if blink {
		b |= blinkOn
	}
	return c.transmitByte(b, Command)
}

func (c *Controller) ready() error {
	if !c.initialized {
		return bus.Preconditionf("lcd: controller not initialized")
	}
	return nil
}

func (c *Controller) clear() error {
	if err := c.transmitByte(cmdClear, Command); err != nil {
		return err
	}
	c.wait(c.cfg.Timing.Clear)
	return nil
}

func (c *Controller) lines() []*bus.GPIOLine {
	return []*bus.GPIOLine{c.e, c.rs, c.data[0], c.data[1], c.data[2], c.data[3]}
}

// transmitByte selects the register with RS and sends the high nibble
// followed by the low nibble.
func (c *Controller) transmitByte(b uint8, mode Mode) error {
	if err := c.rs.Set(bus.Level(mode == CharacterData)); err != nil {
		return err
	}
	if err := c.transmitNibble(b >> 4); err != nil {
		return err
	}
	return c.transmitNibble(b & 0x0F)
}

// transmitNibble presents bit i of n on DB(4+i) and strobes E.
func (c *Controller) transmitNibble(n uint8) error {
	for i, l := range c.data {
		if err := l.Set(bus.Level(n&(1<<i) != 0)); err != nil {
			return err
		}
	}
	c.wait(c.cfg.Timing.Setup)
	if err := c.e.Set(bus.High); err != nil {
		return err
	}
	c.wait(c.cfg.Timing.Pulse)
	if err := c.e.Set(bus.Low); err != nil {
		return err
	}
	c.wait(c.cfg.Timing.Hold)
	return nil
}
