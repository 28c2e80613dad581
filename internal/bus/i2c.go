package bus

// I2CBus binds an I2C transport to one fixed 7-bit device address.
type I2CBus struct {
	t    I2CTransport
	addr uint8
}

func NewI2CBus(t I2CTransport, addr uint8) (*I2CBus, error) {
	if addr > 0x7F {
		return nil, Preconditionf("i2c: address 0x%02X is not a 7-bit address", addr)
	}
	return &I2CBus{t: t, addr: addr}, nil
}

func (b *I2CBus) Addr() uint8 { return b.addr }

// WriteRegister writes data to register reg.
func (b *I2CBus) WriteRegister(reg uint8, data []byte) error {
	if len(data) == 0 {
		return Preconditionf("i2c: empty write to register 0x%02X", reg)
	}
	if err := b.t.WriteRegister(b.addr, reg, data); err != nil {
		return transportErr("i2c write", err)
	}
	return nil
}

// WriteRegisterByte writes a single byte to register reg.
func (b *I2CBus) WriteRegisterByte(reg, v uint8) error {
	return b.WriteRegister(reg, []byte{v})
}

// ReadRegister reads n bytes starting at register reg. It fails with
// ErrPrecondition when the transport is write-only.
func (b *I2CBus) ReadRegister(reg uint8, n int) ([]byte, error) {
	r, ok := b.t.(I2CRegisterReader)
	if !ok {
		return nil, Preconditionf("i2c: transport %T cannot read", b.t)
	}
	if n <= 0 {
		return nil, Preconditionf("i2c: read of %d bytes", n)
	}
	data, err := r.ReadRegister(b.addr, reg, n)
	if err != nil {
		return nil, transportErr("i2c read", err)
	}
	if len(data) != n {
		return nil, &TransportError{Op: "i2c read", Err: errShort(len(data), n)}
	}
	return data, nil
}
