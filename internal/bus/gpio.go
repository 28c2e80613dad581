package bus

// GPIOLine owns one GPIO pin. It remembers the configured direction so that
// writes to a line that is not an output are rejected before reaching the
// transport.
type GPIOLine struct {
	t          GPIOTransport
	pin        int
	configured bool
	dir        Direction
	level      Level
}

func NewGPIOLine(t GPIOTransport, pin int) *GPIOLine {
	return &GPIOLine{t: t, pin: pin}
}

func (l *GPIOLine) Pin() int { return l.pin }

// Configure sets the line direction. Output lines start low.
func (l *GPIOLine) Configure(dir Direction) error {
	if err := l.t.Configure(l.pin, dir); err != nil {
		return transportErr("gpio configure", err)
	}
	l.configured = true
	l.dir = dir
	l.level = Low
	return nil
}

// Set drives the line. The line must have been configured as an output.
func (l *GPIOLine) Set(level Level) error {
	if !l.configured || l.dir != Output {
		return Preconditionf("gpio: pin %d written before being configured as output", l.pin)
	}
	if err := l.t.SetLevel(l.pin, level); err != nil {
		return transportErr("gpio set", err)
	}
	l.level = level
	return nil
}

// Level returns the last level written to the line.
func (l *GPIOLine) Level() Level { return l.level }

// Direction returns the configured direction and whether Configure succeeded.
func (l *GPIOLine) Direction() (Direction, bool) { return l.dir, l.configured }
