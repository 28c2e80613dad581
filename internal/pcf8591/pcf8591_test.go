package pcf8591

import (
	"testing"

	"github.com/stretchr/testify/require"

	"periphctl/internal/bus"
	"periphctl/internal/bus/bustest"
)

func TestControl(t *testing.T) {
	for ch := 0; ch < Channels; ch++ {
		c, err := Control(ch)
		require.NoError(t, err)
		require.Equal(t, uint8(0x40+ch), c)
	}
	_, err := Control(4)
	require.ErrorIs(t, err, bus.ErrPrecondition)
	_, err = Control(-1)
	require.ErrorIs(t, err, bus.ErrPrecondition)
}

func TestReadChannelKeepsFreshConversion(t *testing.T) {
	c := &bustest.I2C{Reads: map[uint8][]byte{0x42: {0x11, 0x80}}}
	b, err := bus.NewI2CBus(c, DefaultAddress)
	require.NoError(t, err)
	d := New(b)

	v, err := d.ReadChannel(2)
	require.NoError(t, err)
	require.Equal(t, uint8(0x80), v)

	_, err = d.ReadChannel(1)
	var te *bus.TransportError
	require.ErrorAs(t, err, &te)
}

func TestWriteOutput(t *testing.T) {
	c := &bustest.I2C{}
	b, err := bus.NewI2CBus(c, DefaultAddress)
	require.NoError(t, err)

	require.NoError(t, New(b).WriteOutput(200))
	require.Equal(t, []bustest.I2CWrite{{Addr: 0x48, Reg: 0x40, Data: []byte{200}}}, c.Writes)
}
