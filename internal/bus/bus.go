// Package bus defines the narrow transport capabilities the peripheral
// drivers consume (GPIO, SPI, I2C) together with thin single-owner wrappers
// around them and the error taxonomy shared by every driver.
//
// Nothing in this package locks: each wrapper is owned by exactly one driver
// and used from one goroutine.
package bus

import (
	"errors"
	"fmt"
)

// ErrPrecondition marks a caller bug detected before any bus traffic, such as
// an out-of-range channel, an unconfigured pin or a malformed frame length.
var ErrPrecondition = errors.New("precondition violation")

// TransportError reports that the underlying bus operation itself failed.
// The original error is kept unchanged and reachable through Unwrap.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Preconditionf builds an error wrapping ErrPrecondition.
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrPrecondition)...)
}

func errShort(got, want int) error {
	return fmt.Errorf("got %d bytes, want %d", got, want)
}

func transportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// Direction of a GPIO line.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "out"
	}
	return "in"
}

// Level of a GPIO line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// GPIOTransport configures and drives individual GPIO lines by number.
type GPIOTransport interface {
	Configure(pin int, dir Direction) error
	SetLevel(pin int, level Level) error
}

// SPITransport performs one synchronous exchange of len(request) bytes out and
// responseLen bytes in.
type SPITransport interface {
	Transfer(request []byte, responseLen int) ([]byte, error)
}

// I2CTransport writes data to a register of the device at addr.
type I2CTransport interface {
	WriteRegister(addr, reg uint8, data []byte) error
}

// I2CRegisterReader is implemented by I2C transports that can also read.
type I2CRegisterReader interface {
	ReadRegister(addr, reg uint8, n int) ([]byte, error)
}
