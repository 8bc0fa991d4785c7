package sensors

import (
	"math"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ds18b20"
	"periph.io/x/devices/v3/ds248x"
)

type probe interface {
	LastTemp() (physic.Temperature, error)
}

type groundSlot struct {
	label string
	addr  onewire.Address
	dev   probe
}

// Thermometers reads the DS18B20 probes on the DS2482 bridge. Each probe is
// bound to a fixed slot by its ROM code so a missing probe never shifts the
// others.
type Thermometers struct {
	i2cBus  i2c.Bus
	addr    uint16
	ow      onewire.Bus
	slots   []groundSlot
	convert func() error
	attach  func(a onewire.Address) (probe, error)
}

func NewThermometers(bus i2c.Bus, addr uint16, slots []env.GroundSlot) (*Thermometers, error) {
	t := &Thermometers{i2cBus: bus, addr: addr}
	for _, s := range slots {
		a, err := s.Address()
		if err != nil {
			return nil, err
		}
		t.slots = append(t.slots, groundSlot{label: s.Label, addr: onewire.Address(a)})
	}
	t.convert = func() error {
		return ds18b20.ConvertAll(t.ow, env.GroundResolution)
	}
	t.attach = func(a onewire.Address) (probe, error) {
		d, err := ds18b20.New(t.ow, a, env.GroundResolution)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return t, nil
}

func (t *Thermometers) open() error {
	if t.ow != nil {
		return nil
	}
	logger.Infof("Starting DS2482 1-wire bridge [%#x]", t.addr)
	d, err := ds248x.New(t.i2cBus, t.addr, &ds248x.DefaultOpts)
	if err != nil {
		return err
	}
	t.ow = d
	return nil
}

// ValidGround rejects readings outside the probe's range and the 85°C power on
// value.
func ValidGround(c float64) bool {
	if math.IsNaN(c) {
		return false
	}
	return c > env.GroundMinC && c < env.GroundMaxC && c != env.GroundPowerOnC
}

// Read starts a conversion on every probe and collects the slots.
func (t *Thermometers) Read() [env.GroundThermCount]data.Ground {
	var out [env.GroundThermCount]data.Ground
	for i := range out {
		out[i] = data.Ground{Temperature: math.NaN()}
		if i < len(t.slots) {
			out[i].Label = t.slots[i].label
		}
	}
	if err := t.open(); err != nil {
		logger.Errorf("1-wire bridge unavailable [%v]", err)
		return out
	}
	if err := t.convert(); err != nil {
		logger.Errorf("DS18B20 conversion failed [%v]", err)
		return out
	}
	for i := range t.slots {
		if i >= len(out) {
			break
		}
		s := &t.slots[i]
		if s.dev == nil {
			dev, err := t.attach(s.addr)
			if err != nil {
				logger.Warnf("Probe %s [%#016x] not found [%v]", s.label, uint64(s.addr), err)
				continue
			}
			s.dev = dev
		}
		temp, err := s.dev.LastTemp()
		if err != nil {
			logger.Errorf("Probe %s read failed [%v]", s.label, err)
			continue
		}
		c := TemperatureC(temp.Celsius())
		if !ValidGround(c.Float64()) {
			logger.Warnf("Probe %s reading discarded [%v]", s.label, c)
			continue
		}
		out[i].Temperature = c.Float64()
		out[i].Valid = true
	}
	return out
}
