// Package adc talks to an MCP3002-style two-channel 10-bit SPI ADC.
//
// One conversion is one fixed two-byte exchange: the host clocks out the
// start/mode bits and a don't-care byte while the chip clocks back a null bit
// followed by the 10-bit result, straddling both response bytes.
package adc

import (
	"fmt"

	"periphctl/internal/bus"
)

const (
	// FrameLen is the length of every request and response.
	FrameLen = 2
	// Channels is the number of single-ended inputs.
	Channels = 2
	// MaxValue is the full-scale code.
	MaxValue = 0x3FF

	startBits  = 0xD0
	channelBit = 3
)

// Sample is one conversion result.
type Sample struct {
	Channel int
	Value   uint16
}

// Voltage scales the code against the reference voltage.
func (s Sample) Voltage(vref float64) float64 {
	return float64(s.Value) * vref / MaxValue
}

func (s Sample) String() string {
	return fmt.Sprintf("ch%d=%04d", s.Channel, s.Value)
}

func checkChannel(ch int) error {
	if ch < 0 || ch >= Channels {
		return bus.Preconditionf("adc: channel %d out of range", ch)
	}
	return nil
}

// EncodeRequest returns the request frame for ch: 0xD0 for channel 0, 0xD8
// for channel 1, followed by a zero byte that clocks the result out.
func EncodeRequest(ch int) ([FrameLen]byte, error) {
	if err := checkChannel(ch); err != nil {
		return [FrameLen]byte{}, err
	}
	return [FrameLen]byte{startBits | byte(ch)<<channelBit, 0x00}, nil
}

// DecodeResponse extracts the 10-bit code from a response frame. The result
// is shifted by one bit across the byte boundary; bits above the 10-bit range
// are don't-care and are masked off.
func DecodeResponse(resp []byte) (uint16, error) {
	if len(resp) != FrameLen {
		return 0, bus.Preconditionf("adc: response of %d bytes, want %d", len(resp), FrameLen)
	}
	v := uint16(resp[0])<<7 | uint16(resp[1]>>1)
	return v & MaxValue, nil
}

// Reader performs conversions over an SPI channel it owns.
type Reader struct {
	ch *bus.SPIChannel
}

// NewReader wraps an SPI transport connected to the ADC.
func NewReader(t bus.SPITransport) *Reader {
	return &Reader{ch: bus.NewSPIChannel(t, FrameLen)}
}

// ReadChannel performs one conversion on ch.
func (r *Reader) ReadChannel(ch int) (Sample, error) {
	req, err := EncodeRequest(ch)
	if err != nil {
		return Sample{}, err
	}
	resp, err := r.ch.Transfer(req[:], FrameLen)
	if err != nil {
		return Sample{}, fmt.Errorf("adc: read channel %d: %w", ch, err)
	}
	v, err := DecodeResponse(resp)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Channel: ch, Value: v}, nil
}

// ReadAll converts every channel in order.
func (r *Reader) ReadAll() ([]Sample, error) {
	out := make([]Sample, 0, Channels)
	for ch := 0; ch < Channels; ch++ {
		s, err := r.ReadChannel(ch)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
