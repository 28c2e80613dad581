package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"periphctl/internal/adc"
	"periphctl/internal/app"
	"periphctl/internal/bus"
	"periphctl/internal/config"
	"periphctl/internal/dac"
	"periphctl/internal/expander"
	"periphctl/internal/lcd"
	appLog "periphctl/internal/log"
	"periphctl/internal/pcf8591"
	"periphctl/internal/periphio"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	logLevel   string
	command    string
	args       []string
}

const usage = `usage: periphctl [flags] <command> [args]

commands:
  monitor                  sample the ADC on a schedule and show it on the LCD
  show                     read both ADC channels once and print them
  text <line>...           write one string per LCD line
  sweep                    ramp both DAC channels through 0..254
  dac-set <ch> <volts>     hold one DAC channel at a voltage
  blink                    alternate the expander outputs between 0x55 and 0xAA
  expander-read [pullups]  read the expander lines as inputs (pullups is a mask)
  pcf8591                  read the four PCF8591 inputs once
  pcf8591-out <level>      set the PCF8591 analog output (0..255)

flags:
`

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		appLog.Error("bad log level", err)
		os.Exit(2)
	}
	appLog.SetLevel(level)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("periphctl starting", "command", flags.command, "config_path", flags.configPath)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, flags.command, flags.args, conf); err != nil {
		appLog.Error("command failed", err, "command", flags.command, "precondition", errors.Is(err, bus.ErrPrecondition))
		cancel()
		os.Exit(1)
	}
	appLog.Info("periphctl exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/periphctl/config.yaml", "Path to config file")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level (overrides config if set)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}

	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	cfg.command = flag.Arg(0)
	cfg.args = flag.Args()[1:]

	return cfg
}

func run(ctx context.Context, command string, args []string, conf *config.Config) (err error) {
	var want periphio.Want
	switch command {
	case "monitor":
		want = periphio.Want{GPIO: true, ADC: true}
	case "text":
		want = periphio.Want{GPIO: true}
	case "show":
		want = periphio.Want{ADC: true}
	case "sweep", "dac-set":
		want = periphio.Want{DAC: true}
	case "blink", "expander-read", "pcf8591", "pcf8591-out":
		want = periphio.Want{I2C: true}
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	devs, err := periphio.Open(conf, want)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := devs.Close(); cerr != nil {
			appLog.Error("failed to release devices", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	switch command {
	case "monitor":
		screen, err := openLCD(devs.GPIO, conf.LCD)
		if err != nil {
			return err
		}
		m := &app.Monitor{
			ADC:      adc.NewReader(devs.ADC),
			LCD:      screen,
			VRef:     conf.VRef,
			Schedule: conf.Demo.Schedule,
			Samples:  conf.Demo.Samples,
		}
		return m.Run(ctx)

	case "text":
		screen, err := openLCD(devs.GPIO, conf.LCD)
		if err != nil {
			return err
		}
		return app.ShowText(screen, false, args...)

	case "show":
		samples, err := adc.NewReader(devs.ADC).ReadAll()
		if err != nil {
			return err
		}
		for _, s := range samples {
			fmt.Printf("channel:%d value:%d voltage:%f V\n", s.Channel, s.Value, s.Voltage(conf.VRef))
		}
		return nil

	case "sweep":
		s := &app.Sweep{DAC: dac.NewWriter(devs.DAC), Step: conf.Demo.SweepStep, Repeat: conf.Demo.SweepRepeat}
		return s.Run(ctx)

	case "dac-set":
		if len(args) != 2 {
			return errors.New("dac-set wants <channel> <volts>")
		}
		ch, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad channel %q: %w", args[0], err)
		}
		volts, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad voltage %q: %w", args[1], err)
		}
		_, err = app.SetVoltage(dac.NewWriter(devs.DAC), ch, volts, conf.VRef)
		return err

	case "blink":
		d, err := openExpander(devs.I2C, conf.Expander)
		if err != nil {
			return err
		}
		bl := &app.Blink{Port: d, Interval: conf.Demo.BlinkInterval, Count: conf.Demo.BlinkCount}
		return bl.Run(ctx)

	case "expander-read":
		var pullups uint64
		if len(args) > 0 {
			if pullups, err = strconv.ParseUint(args[0], 0, 8); err != nil {
				return fmt.Errorf("bad pull-up mask %q: %w", args[0], err)
			}
		}
		d, err := openExpander(devs.I2C, conf.Expander)
		if err != nil {
			return err
		}
		v, err := app.ReadInputs(d, uint8(pullups))
		if err != nil {
			return err
		}
		fmt.Printf("port:0x%02X\n", v)
		return nil

	case "pcf8591":
		d, err := openPCF8591(devs.I2C, conf.PCF8591)
		if err != nil {
			return err
		}
		_, err = app.DumpPCF8591(d, conf.VRef)
		return err

	case "pcf8591-out":
		if len(args) != 1 {
			return errors.New("pcf8591-out wants <level>")
		}
		level, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("bad level %q: %w", args[0], err)
		}
		d, err := openPCF8591(devs.I2C, conf.PCF8591)
		if err != nil {
			return err
		}
		return d.WriteOutput(uint8(level))
	}
	return nil
}

func openLCD(t bus.GPIOTransport, cfg lcd.Config) (*lcd.Controller, error) {
	screen, err := lcd.New(t, cfg)
	if err != nil {
		return nil, err
	}
	if err := screen.Initialize(); err != nil {
		return nil, err
	}
	return screen, nil
}

func openExpander(t bus.I2CTransport, cfg config.I2CDeviceConfig) (*expander.Driver, error) {
	if !cfg.Enabled {
		return nil, errors.New("expander is disabled in config")
	}
	b, err := bus.NewI2CBus(t, cfg.Address)
	if err != nil {
		return nil, err
	}
	return expander.New(b), nil
}

func openPCF8591(t bus.I2CTransport, cfg config.I2CDeviceConfig) (*pcf8591.Dev, error) {
	if !cfg.Enabled {
		return nil, errors.New("pcf8591 is disabled in config")
	}
	b, err := bus.NewI2CBus(t, cfg.Address)
	if err != nil {
		return nil, err
	}
	return pcf8591.New(b), nil
}
