// Package dac programs an MCP4802-style two-channel 8-bit SPI DAC.
//
// A write is a single 16-bit word: channel select, 1x gain and active-mode
// control bits in the top nibble, then the 8-bit level straddling the byte
// boundary, then four don't-care bits. The chip never answers.
package dac

import (
	"fmt"
	"math"

	"periphctl/internal/bus"
)

const (
	FrameLen = 2
	Channels = 2

	controlBits = 0x30 // gain 1x, output active
	channelBit  = 7
)

func checkChannel(ch int) error {
	if ch < 0 || ch >= Channels {
		return bus.Preconditionf("dac: channel %d out of range", ch)
	}
	return nil
}

// EncodeWrite packs level for channel ch into the chip's write frame.
func EncodeWrite(ch int, level uint8) ([FrameLen]byte, error) {
	if err := checkChannel(ch); err != nil {
		return [FrameLen]byte{}, err
	}
	return [FrameLen]byte{
		controlBits | byte(ch)<<channelBit | level>>4,
		(level & 0x0F) << 4,
	}, nil
}

// DecodeWrite is the inverse of EncodeWrite.
func DecodeWrite(f [FrameLen]byte) (ch int, level uint8) {
	if f[0]&(1<<channelBit) != 0 {
		ch = 1
	}
	return ch, (f[0]&0x0F)<<4 | f[1]>>4
}

// LevelForVoltage returns the level closest to v for reference vref, clamped
// to the 8-bit range.
func LevelForVoltage(v, vref float64) uint8 {
	if vref <= 0 || v <= 0 {
		return 0
	}
	l := math.Round(v / vref * 255)
	if l >= 255 {
		return 255
	}
	return uint8(l)
}

// Writer programs DAC outputs over an SPI channel it owns.
type Writer struct {
	ch *bus.SPIChannel
}

func NewWriter(t bus.SPITransport) *Writer {
	return &Writer{ch: bus.NewSPIChannel(t, FrameLen)}
}

// WriteChannel sets channel ch to level. No response is read.
func (w *Writer) WriteChannel(ch int, level uint8) error {
	f, err := EncodeWrite(ch, level)
	if err != nil {
		return err
	}
	if _, err := w.ch.Transfer(f[:], 0); err != nil {
		return fmt.Errorf("dac: write channel %d: %w", ch, err)
	}
	return nil
}
