package sensors

import (
	"fmt"

	"github.com/gr-butler/weathernode/env"
	"github.com/gr-butler/weathernode/power"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

/*
 * Sensors owns the bus and every hardware collaborator of the station.
 */

type Sensors struct {
	Bus     i2c.BusCloser
	Shared  *power.SharedLine
	Seq     *power.Sequencer
	Battery *power.Battery
	Load    *power.LoadMonitor
	Aux     *power.AuxChannels
	Atm     *Atmosphere
	Ground  *Thermometers
	Rain    *Rainmeter
	Vane    *Vane
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to find pin %v", name)
	}
	return p, nil
}

func (s *Sensors) InitSensors(cfg env.Config) error {
	if _, err := host.Init(); err != nil {
		logger.Errorf("Failed to init host drivers [%v]", err)
		return err
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		logger.Errorf("Failed to open I²C [%v]", err)
		return err
	}
	s.Bus = bus

	lines := map[string]*power.Line{}
	for name, def := range map[string]struct {
		pin       string
		activeLow bool
	}{
		"vext":    {cfg.Pins.Vext, true},
		"groupA":  {cfg.Pins.GroupA, false},
		"groupB":  {cfg.Pins.GroupB, false},
		"groupC":  {cfg.Pins.GroupC, false},
		"divider": {cfg.Pins.BatteryDivider, true},
	} {
		p, err := pin(def.pin)
		if err != nil {
			_ = bus.Close()
			return err
		}
		logger.Infof("%s: %s", p, name)
		lines[name] = power.NewLine(name, p, def.activeLow)
	}
	// start with everything off and the divider floating
	_ = lines["vext"].Set(false)
	_ = lines["divider"].Float()

	mux := make([]gpio.PinIO, 0, len(cfg.Pins.MuxSelect))
	for _, name := range cfg.Pins.MuxSelect {
		p, err := pin(name)
		if err != nil {
			_ = bus.Close()
			return err
		}
		mux = append(mux, p)
	}

	s.Shared = power.NewSharedLine(lines["groupB"])
	s.Seq = power.NewSequencer(lines["vext"], lines["groupA"], s.Shared, lines["groupC"], mux)
	for _, g := range []power.Group{power.GroupA, power.GroupB, power.GroupC} {
		_ = s.Seq.Disable(g)
	}

	logger.Infof("Starting ADS1115 [%#x]", env.ADCAddr)
	opts := ads1x15.DefaultOpts
	opts.I2cAddress = env.ADCAddr
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		logger.Error(err)
		_ = bus.Close()
		return err
	}
	muxOut, err := adc.PinForChannel(ads1x15.Channel0, 5*physic.Volt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		logger.Error(err)
		_ = bus.Close()
		return err
	}

	s.Battery, err = power.NewBattery(s.Seq, lines["divider"], muxOut, cfg.Battery)
	if err != nil {
		_ = bus.Close()
		return err
	}
	s.Aux = power.NewAuxChannels(s.Seq, muxOut)

	logger.Infof("Starting INA219 [%#x]", env.LoadMonitorAddr)
	s.Load = power.NewLoadMonitor(bus, env.LoadMonitorAddr)
	if err := s.Load.Init(); err != nil {
		// rewritten before every read, not fatal
		logger.Warnf("INA219 init failed [%v]", err)
	}

	s.Atm = NewAtmosphere(bus)
	s.Ground, err = NewThermometers(bus, env.OneWireAddr, cfg.Ground)
	if err != nil {
		_ = bus.Close()
		return err
	}

	resetPin, err := pin(cfg.Pins.CounterReset)
	if err != nil {
		_ = bus.Close()
		return err
	}
	s.Rain = NewRainmeter(bus, env.CounterAddr, resetPin)
	s.Vane = NewVane(bus, env.VaneAddr)

	logger.Info("Sensors initialized.")
	return nil
}

// Close powers every group down and releases the bus.
func (s *Sensors) Close() error {
	if s.Seq != nil {
		if err := s.Seq.DisableAll(); err != nil {
			logger.Errorf("Power down failed [%v]", err)
		}
	}
	if s.Bus != nil {
		return s.Bus.Close()
	}
	return nil
}

// Enable, Disable and DisableAll sequence the power groups. Dropping Group A
// also unpowers the vane, so its magnet is checked again on the next wake.
func (s *Sensors) Enable(g power.Group) error {
	return s.Seq.Enable(g)
}

func (s *Sensors) Disable(g power.Group) error {
	if g == power.GroupA && s.Vane != nil {
		s.Vane.PowerDown()
	}
	return s.Seq.Disable(g)
}

func (s *Sensors) DisableAll() error {
	if s.Vane != nil {
		s.Vane.PowerDown()
	}
	return s.Seq.DisableAll()
}
