package lcd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"periphctl/internal/bus"
	"periphctl/internal/bus/bustest"
)

// wireByte is a byte reassembled from two Enable strobes.
type wireByte struct {
	Mode Mode
	B    uint8
}

// decode replays recorded GPIO activity the way the display controller sees
// it: on every rising edge of E it latches RS and DB4..DB7.
func decode(t *testing.T, cfg Config, ops []bustest.GPIOOp) []wireByte {
	t.Helper()
	levels := map[int]bus.Level{}
	var nibbles []wireByte
	for _, op := range ops {
		if op.Configure {
			continue
		}
		rising := op.Pin == cfg.Pins.Enable && op.Level == bus.High && !levels[op.Pin]
		levels[op.Pin] = op.Level
		if !rising {
			continue
		}
		var n uint8
		for i, p := range cfg.Pins.Data {
			if levels[p] {
				n |= 1 << i
			}
		}
		m := Command
		if levels[cfg.Pins.RS] {
			m = CharacterData
		}
		nibbles = append(nibbles, wireByte{Mode: m, B: n})
	}
	require.Zero(t, len(nibbles)%2, "odd number of nibbles on the bus")
	var out []wireByte
	for i := 0; i < len(nibbles); i += 2 {
		require.Equal(t, nibbles[i].Mode, nibbles[i+1].Mode, "RS changed between nibbles")
		out = append(out, wireByte{Mode: nibbles[i].Mode, B: nibbles[i].B<<4 | nibbles[i+1].B})
	}
	return out
}

func cmds(bs ...uint8) []wireByte {
	out := make([]wireByte, len(bs))
	for i, b := range bs {
		out[i] = wireByte{Mode: Command, B: b}
	}
	return out
}

func chars(s string) []wireByte {
	out := make([]wireByte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = wireByte{Mode: CharacterData, B: s[i]}
	}
	return out
}

func newTestController(t *testing.T, cfg Config) (*Controller, *bustest.GPIO, *[]time.Duration) {
	t.Helper()
	g := bustest.NewGPIO()
	var waits []time.Duration
	c, err := New(g, cfg, WithWait(func(d time.Duration) { waits = append(waits, d) }))
	require.NoError(t, err)
	return c, g, &waits
}

func TestInitializeSequence(t *testing.T) {
	cfg := DefaultConfig()
	c, g, _ := newTestController(t, cfg)
	require.NoError(t, c.Initialize())

	var configured []int
	for _, op := range g.Ops {
		if op.Configure {
			require.Equal(t, bus.Output, op.Dir)
			configured = append(configured, op.Pin)
		}
	}
	require.ElementsMatch(t, []int{22, 23, 24, 25, 26, 27}, configured)
	for i := range configured {
		require.True(t, g.Ops[i].Configure, "all lines configured before any write")
	}

	got := decode(t, cfg, g.Ops)
	if diff := cmp.Diff(cmds(0x33, 0x32, 0x28, 0x0C, 0x01, 0x06), got); diff != "" {
		t.Fatalf("init sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteLinePadsAndAddresses(t *testing.T) {
	cfg := DefaultConfig()
	c, g, _ := newTestController(t, cfg)
	require.NoError(t, c.Initialize())
	g.Ops = nil

	require.NoError(t, c.WriteLine(Line2, "Raspberrypi"))
	want := append(cmds(0xC0), chars("Raspberrypi     ")...)
	if diff := cmp.Diff(want, decode(t, cfg, g.Ops)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	g.Ops = nil
	require.NoError(t, c.WriteLine(Line1, "0261=0.842620 V and more"))
	want = append(cmds(0x80), chars("0261=0.842620 V ")...)
	require.Equal(t, want, decode(t, cfg, g.Ops))
}

func TestWriteLinePreconditions(t *testing.T) {
	c, g, _ := newTestController(t, DefaultConfig())
	require.ErrorIs(t, c.WriteLine(Line1, "x"), bus.ErrPrecondition)
	require.ErrorIs(t, c.Clear(), bus.ErrPrecondition)
	require.Empty(t, g.Ops)

	require.NoError(t, c.Initialize())
	g.Ops = nil
	require.ErrorIs(t, c.WriteLine(Line3, "x"), bus.ErrPrecondition)
	require.ErrorIs(t, c.WriteLine(Line(0), "x"), bus.ErrPrecondition)
	require.Empty(t, g.Ops)
}

func TestTransmitByteNibbleOrder(t *testing.T) {
	cfg := DefaultConfig()
	for b := 0; b < 256; b++ {
		c, g, _ := newTestController(t, cfg)
		for _, l := range c.lines() {
			require.NoError(t, l.Configure(bus.Output))
		}
		g.Ops = nil
		require.NoError(t, c.transmitByte(uint8(b), CharacterData))

		strobes := 0
		for _, op := range g.Ops {
			if op.Pin == cfg.Pins.Enable && op.Level == bus.High {
				strobes++
			}
		}
		require.Equal(t, 2, strobes)
		require.Equal(t, []wireByte{{Mode: CharacterData, B: uint8(b)}}, decode(t, cfg, g.Ops))
	}
}

func TestTransmitNibbleTiming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timing = Timing{Setup: 1 * time.Millisecond, Pulse: 2 * time.Millisecond, Hold: 3 * time.Millisecond, Clear: 4 * time.Millisecond}
	c, g, waits := newTestController(t, cfg)
	for _, l := range c.lines() {
		require.NoError(t, l.Configure(bus.Output))
	}
	g.Ops = nil

	require.NoError(t, c.transmitNibble(0x9))
	require.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, *waits)
	require.Equal(t, []bustest.GPIOOp{
		{Pin: 24, Level: bus.High},
		{Pin: 25, Level: bus.Low},
		{Pin: 26, Level: bus.Low},
		{Pin: 27, Level: bus.High},
		{Pin: 23, Level: bus.High},
		{Pin: 23, Level: bus.Low},
	}, g.Ops)
}

func TestClearSettles(t *testing.T) {
	c, g, waits := newTestController(t, DefaultConfig())
	require.NoError(t, c.Initialize())
	g.Ops = nil
	*waits = nil

	require.NoError(t, c.Clear())
	require.Equal(t, cmds(0x01), decode(t, c.cfg, g.Ops))
	require.Equal(t, ClearSettle, (*waits)[len(*waits)-1])
}

func TestSetDisplayAndHome(t *testing.T) {
	c, g, _ := newTestController(t, DefaultConfig())
	require.NoError(t, c.Initialize())
	g.Ops = nil

	require.NoError(t, c.SetDisplay(true, true, true))
	require.NoError(t, c.SetDisplay(false, false, false))
	require.NoError(t, c.Home())
	require.Equal(t, cmds(0x0F, 0x08, 0x02), decode(t, c.cfg, g.Ops))
}

func TestInitializeTransportError(t *testing.T) {
	g := bustest.NewGPIO()
	g.FailOn[26] = true
	g.Err = errors.New("export failed")
	c, err := New(g, DefaultConfig(), WithWait(func(time.Duration) {}))
	require.NoError(t, err)

	err = c.Initialize()
	var te *bus.TransportError
	require.ErrorAs(t, err, &te)
	require.ErrorIs(t, c.WriteLine(Line1, "x"), bus.ErrPrecondition)
}

func TestLineAddress(t *testing.T) {
	require.Equal(t, uint8(0x80), Line1.Address(16))
	require.Equal(t, uint8(0xC0), Line2.Address(16))
	require.Equal(t, uint8(0x90), Line3.Address(16))
	require.Equal(t, uint8(0xD0), Line4.Address(16))
	require.Equal(t, uint8(0x94), Line3.Address(20))
	require.Equal(t, uint8(0xD4), Line4.Address(20))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"five lines", func(c *Config) { c.Lines = 5 }},
		{"duplicate pin", func(c *Config) { c.Pins.Data[2] = c.Pins.RS }},
		{"negative pin", func(c *Config) { c.Pins.Enable = -1 }},
		{"negative timing", func(c *Config) { c.Timing.Pulse = -time.Millisecond }},
		{"zero setup", func(c *Config) { c.Timing.Setup = 0 }},
		{"zero pulse", func(c *Config) { c.Timing.Pulse = 0 }},
		{"short hold", func(c *Config) { c.Timing.Hold = 100 * time.Microsecond }},
		{"negative clear", func(c *Config) { c.Timing.Clear = -time.Millisecond }},
	}
	require.NoError(t, DefaultConfig().Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), bus.ErrPrecondition)
			_, err := New(bustest.NewGPIO(), cfg)
			require.ErrorIs(t, err, bus.ErrPrecondition)
		})
	}
}

func TestPad(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		width  int
		expect string
	}{
		{"short", "abc", 5, "abc  "},
		{"exact", "abcde", 5, "abcde"},
		{"long", "abcdefgh", 5, "abcde"},
		{"empty", "", 3, "   "},
		{"non ascii", "°C\t", 4, "?C? "},
		{"zero width", "abc", 0, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Pad(tc.text, tc.width)
			require.Equal(t, tc.expect, got)
			require.Len(t, got, max(tc.width, 0))
			require.Equal(t, got, Pad(got, tc.width))
		})
	}
	require.Equal(t, strings.Repeat("x", 16), Pad(strings.Repeat("x", 100), 16))
}
