package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"periphctl/internal/expander"
	"periphctl/internal/lcd"
	"periphctl/internal/pcf8591"
)

// Pin numbers are BCM GPIO numbers. SPI and I2C names are periph.io registry
// names ("SPI0.0", "/dev/spidev0.1", "" for the default I2C bus).

// SPIConfig describes one SPI-attached chip.
type SPIConfig struct {
	// Port is the spireg name of the bus/chip-select pair.
	Port string `yaml:"port" json:"port"`
	// MaxHz caps the clock.
	MaxHz int64 `yaml:"max_hz" json:"max_hz"`
	// Mode is the SPI mode (0..3).
	Mode int `yaml:"mode" json:"mode"`
}

// I2CDeviceConfig describes one chip on the shared I2C bus.
type I2CDeviceConfig struct {
	// Enabled controls whether the CLI opens the chip at all.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Address is the 7-bit device address.
	Address uint8 `yaml:"address" json:"address"`
}

// DemoConfig tunes the bundled demo loops.
type DemoConfig struct {
	// Schedule is a cron spec for the ADC->LCD monitor (e.g. "@every 1s").
	Schedule string `yaml:"schedule" json:"schedule"`
	// Samples stops the monitor after this many ticks; 0 runs until stopped.
	Samples int `yaml:"samples" json:"samples"`
	// SweepStep is the delay between two DAC levels.
	SweepStep time.Duration `yaml:"sweep_step" json:"sweep_step"`
	// SweepRepeat is the number of full sweeps; 0 runs until stopped.
	SweepRepeat int `yaml:"sweep_repeat" json:"sweep_repeat"`
	// BlinkInterval is the expander toggle period.
	BlinkInterval time.Duration `yaml:"blink_interval" json:"blink_interval"`
	// BlinkCount stops blinking after this many toggles; 0 runs until stopped.
	BlinkCount int `yaml:"blink_count" json:"blink_count"`
}

// Config is the top-level application configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// VRef is the converters' reference voltage, used to print volts.
	VRef float64 `yaml:"vref" json:"vref"`

	LCD lcd.Config `yaml:"lcd" json:"lcd"`
	ADC SPIConfig  `yaml:"adc" json:"adc"`
	DAC SPIConfig  `yaml:"dac" json:"dac"`

	// I2CBus is the i2creg name shared by the I2C chips.
	I2CBus   string          `yaml:"i2c_bus" json:"i2c_bus"`
	Expander I2CDeviceConfig `yaml:"expander" json:"expander"`
	PCF8591  I2CDeviceConfig `yaml:"pcf8591" json:"pcf8591"`

	Demo DemoConfig `yaml:"demo" json:"demo"`
}

const (
	defaultSchedule      = "@every 1s"
	defaultSamples       = 50
	defaultSweepStep     = 10 * time.Millisecond
	defaultBlinkInterval = 250 * time.Millisecond
	defaultSPIHz         = 1_000_000
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		VRef:     3.3,
		LCD:      lcd.DefaultConfig(),
		ADC:      SPIConfig{Port: "SPI0.0", MaxHz: defaultSPIHz, Mode: 0},
		DAC:      SPIConfig{Port: "SPI0.1", MaxHz: defaultSPIHz, Mode: 0},
		I2CBus:   "",
		Expander: I2CDeviceConfig{Enabled: true, Address: expander.DefaultAddress},
		PCF8591:  I2CDeviceConfig{Enabled: false, Address: pcf8591.DefaultAddress},
		Demo: DemoConfig{
			Schedule:      defaultSchedule,
			Samples:       defaultSamples,
			SweepStep:     defaultSweepStep,
			SweepRepeat:   1,
			BlinkInterval: defaultBlinkInterval,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.VRef <= 0 {
		c.VRef = def.VRef
	}
	if c.LCD.Width == 0 {
		c.LCD.Width = def.LCD.Width
	}
	if c.LCD.Lines == 0 {
		c.LCD.Lines = def.LCD.Lines
	}
	// An all-zero pin block means the section was omitted.
	if c.LCD.Pins == (lcd.Pins{}) {
		c.LCD.Pins = def.LCD.Pins
	}
	normalizeTiming(&c.LCD.Timing, def.LCD.Timing)
	normalizeSPI(&c.ADC, def.ADC)
	normalizeSPI(&c.DAC, def.DAC)
	if c.Expander.Address == 0 {
		c.Expander.Address = def.Expander.Address
	}
	if c.PCF8591.Address == 0 {
		c.PCF8591.Address = def.PCF8591.Address
	}
	if c.Demo.Schedule == "" {
		c.Demo.Schedule = def.Demo.Schedule
	}
	if c.Demo.SweepStep <= 0 {
		c.Demo.SweepStep = def.Demo.SweepStep
	}
	if c.Demo.BlinkInterval <= 0 {
		c.Demo.BlinkInterval = def.Demo.BlinkInterval
	}
}

// normalizeTiming fills each omitted delay on its own, so a block that only
// overrides setup still strobes with the default pulse and hold.
func normalizeTiming(t *lcd.Timing, def lcd.Timing) {
	if t.Setup <= 0 {
		t.Setup = def.Setup
	}
	if t.Pulse <= 0 {
		t.Pulse = def.Pulse
	}
	if t.Hold <= 0 {
		t.Hold = def.Hold
	}
	if t.Clear <= 0 {
		t.Clear = def.Clear
	}
}

func normalizeSPI(c *SPIConfig, def SPIConfig) {
	if c.Port == "" {
		c.Port = def.Port
	}
	if c.MaxHz <= 0 {
		c.MaxHz = def.MaxHz
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if err := c.LCD.Validate(); err != nil {
		return fmt.Errorf("config: lcd: %w", err)
	}
	for name, s := range map[string]SPIConfig{"adc": c.ADC, "dac": c.DAC} {
		if s.Mode < 0 || s.Mode > 3 {
			return fmt.Errorf("config: %s: spi mode %d outside [0,3]", name, s.Mode)
		}
	}
	if c.ADC.Port == c.DAC.Port {
		return fmt.Errorf("config: adc and dac share spi port %q", c.ADC.Port)
	}
	for name, d := range map[string]I2CDeviceConfig{"expander": c.Expander, "pcf8591": c.PCF8591} {
		if d.Address > 0x7F {
			return fmt.Errorf("config: %s: address 0x%02X is not 7-bit", name, d.Address)
		}
	}
	if c.Expander.Enabled && c.PCF8591.Enabled && c.Expander.Address == c.PCF8591.Address {
		return fmt.Errorf("config: expander and pcf8591 share address 0x%02X", c.Expander.Address)
	}
	if _, err := cron.ParseStandard(c.Demo.Schedule); err != nil {
		return fmt.Errorf("config: demo schedule %q: %w", c.Demo.Schedule, err)
	}
	if c.Demo.Samples < 0 || c.Demo.SweepRepeat < 0 || c.Demo.BlinkCount < 0 {
		return errors.New("config: demo counts must not be negative")
	}
	return nil
}

// Load reads the YAML file at path and fills omitted fields with defaults.
// A missing file is created with the defaults on the way; the defaults are
// returned alongside any error from writing it.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		return cfg, Save(path, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save normalizes cfg and replaces path with it through a 0600 temp file in
// the same directory.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".periphctl-config-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	err = multierr.Append(err, tmp.Close())
	if err == nil {
		err = os.Chmod(tmp.Name(), 0o600)
	}
	if err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
