package adc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"periphctl/internal/bus"
	"periphctl/internal/bus/bustest"
)

func TestEncodeRequest(t *testing.T) {
	f, err := EncodeRequest(0)
	require.NoError(t, err)
	require.Equal(t, [2]byte{0xD0, 0x00}, f)

	f, err = EncodeRequest(1)
	require.NoError(t, err)
	require.Equal(t, [2]byte{0xD8, 0x00}, f)

	for _, ch := range []int{-1, 2, 8} {
		_, err := EncodeRequest(ch)
		require.ErrorIs(t, err, bus.ErrPrecondition)
	}
}

func TestDecodeResponse(t *testing.T) {
	testCases := []struct {
		name   string
		resp   []byte
		expect uint16
	}{
		{"mixed", []byte{0x02, 0x0A}, 261},
		{"odd low byte", []byte{0x01, 0xFE}, 255},
		{"odd low byte rounds down", []byte{0x00, 0x03}, 1},
		{"full scale", []byte{0x07, 0xFE}, 1023},
		{"don't-care top bits", []byte{0xFF, 0xFF}, 1023},
		{"zero", []byte{0x00, 0x00}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := DecodeResponse(tc.resp)
			require.NoError(t, err)
			require.Equal(t, tc.expect, v)
		})
	}

	_, err := DecodeResponse([]byte{0x01})
	require.ErrorIs(t, err, bus.ErrPrecondition)
	_, err = DecodeResponse([]byte{0x01, 0x02, 0x03})
	require.ErrorIs(t, err, bus.ErrPrecondition)
}

func TestDecodeCoversRange(t *testing.T) {
	for v := uint16(0); v <= MaxValue; v++ {
		// Chip framing: null bit then 10 bits, MSB first, trailing bit don't-care.
		resp := []byte{byte(v >> 7), byte(v<<1) | 1}
		got, err := DecodeResponse(resp)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestReadChannel(t *testing.T) {
	s := &bustest.SPI{Responses: [][]byte{{0x01, 0xFE}}}
	r := NewReader(s)

	sample, err := r.ReadChannel(1)
	require.NoError(t, err)
	require.Equal(t, Sample{Channel: 1, Value: 255}, sample)
	require.Equal(t, []bustest.SPIExchange{{W: []byte{0xD8, 0x00}, N: 2}}, s.Exchanges)

	_, err = r.ReadChannel(2)
	require.ErrorIs(t, err, bus.ErrPrecondition)
	require.Len(t, s.Exchanges, 1)
}

func TestReadChannelTransportError(t *testing.T) {
	cause := errors.New("open /dev/spidev0.0: no such file or directory")
	r := NewReader(&bustest.SPI{Err: cause})

	_, err := r.ReadChannel(0)
	var te *bus.TransportError
	require.ErrorAs(t, err, &te)
	require.ErrorIs(t, err, cause)
}

func TestReadAll(t *testing.T) {
	s := &bustest.SPI{Responses: [][]byte{{0x02, 0x0A}, {0x07, 0xFE}}}
	samples, err := NewReader(s).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []Sample{{Channel: 0, Value: 261}, {Channel: 1, Value: 1023}}, samples)
	require.Equal(t, []byte{0xD0, 0x00}, s.Exchanges[0].W)
	require.Equal(t, []byte{0xD8, 0x00}, s.Exchanges[1].W)
}

func TestVoltage(t *testing.T) {
	require.InDelta(t, 3.3, Sample{Value: MaxValue}.Voltage(3.3), 1e-9)
	require.InDelta(t, 0.0, Sample{Value: 0}.Voltage(3.3), 1e-9)
	require.InDelta(t, 261*3.3/1023, Sample{Value: 261}.Voltage(3.3), 1e-9)
	require.Equal(t, "ch1=0255", Sample{Channel: 1, Value: 255}.String())
}
