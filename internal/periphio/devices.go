package periphio

import (
	"go.uber.org/multierr"

	"periphctl/internal/config"
	appLog "periphctl/internal/log"
)

// Devices holds every transport the CLI needs. Fields are nil when the
// matching peripheral was not requested.
type Devices struct {
	GPIO *GPIO
	ADC  *SPI
	DAC  *SPI
	I2C  *I2C

	closers []func() error
}

// Want selects which transports Open acquires.
type Want struct {
	GPIO bool
	ADC  bool
	DAC  bool
	I2C  bool
}

// Open initializes periph and acquires the requested transports. If any step
// fails, everything opened so far is released before returning.
func Open(cfg *config.Config, want Want) (d *Devices, err error) {
	if err := Init(); err != nil {
		return nil, err
	}
	d = &Devices{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, d.Close())
			d = nil
		}
	}()

	if want.GPIO {
		d.GPIO = NewGPIO(nil)
		d.closers = append(d.closers, d.GPIO.Close)
	}
	if want.ADC {
		if d.ADC, err = OpenSPI(cfg.ADC.Port, cfg.ADC.MaxHz, cfg.ADC.Mode); err != nil {
			return d, err
		}
		d.closers = append(d.closers, d.ADC.Close)
	}
	if want.DAC {
		if d.DAC, err = OpenSPI(cfg.DAC.Port, cfg.DAC.MaxHz, cfg.DAC.Mode); err != nil {
			return d, err
		}
		d.closers = append(d.closers, d.DAC.Close)
	}
	if want.I2C {
		if d.I2C, err = OpenI2C(cfg.I2CBus); err != nil {
			return d, err
		}
		d.closers = append(d.closers, d.I2C.Close)
	}
	return d, nil
}

// Close releases every acquired transport in reverse order. Calling it again
// is a no-op.
func (d *Devices) Close() error {
	var err error
	for i := len(d.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.closers[i]())
	}
	if len(d.closers) > 0 {
		appLog.Debug("devices released", "count", len(d.closers), "err", err)
	}
	d.closers = nil
	return err
}
