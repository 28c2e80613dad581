// Package app holds the demo loops driven by the CLI: an ADC-to-LCD monitor,
// a DAC sweep, an expander blinker and a one-shot PCF8591 dump. They are
// plain callers of the driver packages and own no hardware themselves.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"periphctl/internal/adc"
	"periphctl/internal/dac"
	"periphctl/internal/lcd"
	appLog "periphctl/internal/log"
	"periphctl/internal/pcf8591"
)

// SampleReader is satisfied by *adc.Reader.
type SampleReader interface {
	ReadChannel(ch int) (adc.Sample, error)
}

// LineWriter is satisfied by *lcd.Controller.
type LineWriter interface {
	WriteLine(line lcd.Line, text string) error
	Clear() error
	Lines() int
}

// LevelWriter is satisfied by *dac.Writer.
type LevelWriter interface {
	WriteChannel(ch int, level uint8) error
}

// PortWriter is satisfied by *expander.Driver.
type PortWriter interface {
	ConfigureAllOutputs() error
	WritePort(pattern uint8) error
}

// PortReader is satisfied by *expander.Driver.
type PortReader interface {
	SetDirection(mask uint8) error
	SetPullups(mask uint8) error
	ReadPort() (uint8, error)
}

// TextDisplay is satisfied by *lcd.Controller.
type TextDisplay interface {
	LineWriter
	Home() error
	SetDisplay(on, cursor, blink bool) error
}

// ChannelReader is satisfied by *pcf8591.Dev.
type ChannelReader interface {
	ReadChannel(ch int) (uint8, error)
}

// FormatSample renders a sample as "0261=0.841935 V".
func FormatSample(s adc.Sample, vref float64) string {
	return fmt.Sprintf("%04d=%f V", s.Value, s.Voltage(vref))
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Monitor samples the ADC on a cron schedule and shows channel n on LCD line
// n+1. A one-line display only shows channel 0.
type Monitor struct {
	ADC      SampleReader
	LCD      LineWriter
	VRef     float64
	Schedule string
	// Samples stops the monitor after that many ticks; 0 means never.
	Samples int
}

// Tick performs one sample-and-render cycle.
func (m *Monitor) Tick() error {
	n := min(adc.Channels, m.LCD.Lines())
	for i := 0; i < n; i++ {
		line := lcd.Line1 + lcd.Line(i)
		s, err := m.ADC.ReadChannel(i)
		if err != nil {
			return err
		}
		text := FormatSample(s, m.VRef)
		appLog.Debug("adc sample", "channel", s.Channel, "value", s.Value, "text", text)
		if err := m.LCD.WriteLine(line, text); err != nil {
			return err
		}
	}
	return nil
}

var errSamplesDone = errors.New("samples done")

// Run ticks on the schedule until ctx is done, Samples ticks have run, or a
// tick fails. Ticks never overlap. The display is cleared on the way out.
func (m *Monitor) Run(ctx context.Context) error {
	sched, err := cron.ParseStandard(m.Schedule)
	if err != nil {
		return fmt.Errorf("app: monitor schedule %q: %w", m.Schedule, err)
	}
	logger := appLog.CronLogger()
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))

	stopCh := make(chan error, 1)
	count := 0
	c.Schedule(sched, cron.FuncJob(func() {
		if m.Samples > 0 && count >= m.Samples {
			return
		}
		if err := m.Tick(); err != nil {
			select {
			case stopCh <- err:
			default:
			}
			return
		}
		count++
		if m.Samples > 0 && count >= m.Samples {
			select {
			case stopCh <- errSamplesDone:
			default:
			}
		}
	}))

	appLog.Info("monitor started", "schedule", m.Schedule, "samples", m.Samples)
	c.Start()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-stopCh:
	}
	<-c.Stop().Done()

	if errors.Is(runErr, errSamplesDone) {
		runErr = nil
	}
	appLog.Info("monitor stopped", "ticks", count)
	if err := m.LCD.Clear(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Sweep ramps every DAC channel through levels 0..254.
type Sweep struct {
	DAC  LevelWriter
	Step time.Duration
	// Repeat is the number of full sweeps; 0 means until ctx is done.
	Repeat int
}

func (s *Sweep) Run(ctx context.Context) error {
	appLog.Info("dac sweep started", "step", s.Step.String(), "repeat", s.Repeat)
	for rep := 0; s.Repeat == 0 || rep < s.Repeat; rep++ {
		for ch := 0; ch < dac.Channels; ch++ {
			for level := 0; level < 255; level++ {
				if err := s.DAC.WriteChannel(ch, uint8(level)); err != nil {
					return err
				}
				if err := sleepCtx(ctx, s.Step); err != nil {
					return nil
				}
			}
		}
	}
	return nil
}

// Blink alternates the expander outputs between 0x55 and 0xAA.
type Blink struct {
	Port     PortWriter
	Interval time.Duration
	// Count is the number of writes; 0 means until ctx is done.
	Count int
}

func (b *Blink) Run(ctx context.Context) error {
	if err := b.Port.ConfigureAllOutputs(); err != nil {
		return err
	}
	patterns := [2]uint8{0x55, 0xAA}
	for i := 0; b.Count == 0 || i < b.Count; i++ {
		if err := b.Port.WritePort(patterns[i%2]); err != nil {
			return err
		}
		if err := sleepCtx(ctx, b.Interval); err != nil {
			return nil
		}
	}
	return nil
}

// DumpPCF8591 reads every PCF8591 input once.
func DumpPCF8591(r ChannelReader, vref float64) ([]uint8, error) {
	out := make([]uint8, 0, pcf8591.Channels)
	for ch := 0; ch < pcf8591.Channels; ch++ {
		v, err := r.ReadChannel(ch)
		if err != nil {
			return out, err
		}
		appLog.Info("pcf8591 sample", "channel", ch, "value", v, "volts", float64(v)*vref/255)
		out = append(out, v)
	}
	return out, nil
}

// SetVoltage drives DAC channel ch to the level nearest volts and returns it.
func SetVoltage(w LevelWriter, ch int, volts, vref float64) (uint8, error) {
	level := dac.LevelForVoltage(volts, vref)
	if err := w.WriteChannel(ch, level); err != nil {
		return 0, err
	}
	appLog.Info("dac set", "channel", ch, "volts", volts, "level", level)
	return level, nil
}

// ReadInputs makes every expander line an input, enables pull-ups on the
// lines in pullups and reads the port once.
func ReadInputs(r PortReader, pullups uint8) (uint8, error) {
	if err := r.SetDirection(0xFF); err != nil {
		return 0, err
	}
	if err := r.SetPullups(pullups); err != nil {
		return 0, err
	}
	v, err := r.ReadPort()
	if err != nil {
		return 0, err
	}
	appLog.Info("expander read", "pullups", fmt.Sprintf("0x%02X", pullups), "port", fmt.Sprintf("0x%02X", v))
	return v, nil
}

// ShowText writes one string per display line, top to bottom, and leaves the
// cursor at home.
func ShowText(d TextDisplay, cursor bool, text ...string) error {
	if len(text) > d.Lines() {
		return fmt.Errorf("app: %d lines of text for a %d line display", len(text), d.Lines())
	}
	if err := d.SetDisplay(true, cursor, cursor); err != nil {
		return err
	}
	for i, t := range text {
		if err := d.WriteLine(lcd.Line1+lcd.Line(i), t); err != nil {
			return err
		}
	}
	return d.Home()
}
