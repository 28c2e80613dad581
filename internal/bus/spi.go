package bus

// SPIChannel owns one SPI device handle. Every chip in this domain uses a
// fixed frame length, so the channel is created with it and refuses anything
// else.
type SPIChannel struct {
	t        SPITransport
	frameLen int
}

func NewSPIChannel(t SPITransport, frameLen int) *SPIChannel {
	return &SPIChannel{t: t, frameLen: frameLen}
}

func (c *SPIChannel) FrameLen() int { return c.frameLen }

// Transfer sends req and returns exactly responseLen bytes clocked in during
// the same exchange. responseLen may be 0 for write-only frames.
func (c *SPIChannel) Transfer(req []byte, responseLen int) ([]byte, error) {
	if len(req) != c.frameLen {
		return nil, Preconditionf("spi: frame of %d bytes, want %d", len(req), c.frameLen)
	}
	if responseLen < 0 || responseLen > len(req) {
		return nil, Preconditionf("spi: response length %d outside [0,%d]", responseLen, len(req))
	}
	resp, err := c.t.Transfer(req, responseLen)
	if err != nil {
		return nil, transportErr("spi transfer", err)
	}
	if len(resp) != responseLen {
		return nil, transportErr("spi transfer", errShort(len(resp), responseLen))
	}
	return resp, nil
}
