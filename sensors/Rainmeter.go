package sensors

import (
	"time"

	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// Rainmeter reads the bucket tip count held in a CD4040 ripple counter through
// a PCF8574 port expander. The counter keeps counting while the station sleeps.
type Rainmeter struct {
	dev   *i2c.Dev
	reset gpio.PinIO
	Delay func(time.Duration)
}

type mm float64

func (m mm) Float64() float64 {
	return float64(m)
}

func NewRainmeter(bus i2c.Bus, addr uint16, reset gpio.PinIO) *Rainmeter {
	if reset != nil {
		_ = reset.Out(gpio.Low)
	}
	return &Rainmeter{
		dev:   &i2c.Dev{Addr: addr, Bus: bus},
		reset: reset,
		Delay: time.Sleep,
	}
}

// Count returns the tips since the last reset, -1 if the expander did not
// answer.
func (r *Rainmeter) Count() int {
	b := make([]byte, 1)
	if err := r.dev.Tx(nil, b); err != nil {
		logger.Errorf("Rain counter read failed [%v]", err)
		return -1
	}
	logger.Debugf("Rain counter [%v]", b[0])
	return int(b[0])
}

// Accumulation converts a tip count to rainfall.
func Accumulation(count int) mm {
	if count < 0 {
		return 0
	}
	return mm(float64(count) * env.MmPerTip)
}

// Reset pulses the counter's reset input.
func (r *Rainmeter) Reset() error {
	if err := r.reset.Out(gpio.High); err != nil {
		return err
	}
	r.Delay(env.CounterResetPulse)
	if err := r.reset.Out(gpio.Low); err != nil {
		return err
	}
	logger.Info("Rain counter reset")
	return nil
}
