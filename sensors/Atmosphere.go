package sensors

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

const (
	KindSHT3X  = "SHT3X"
	KindBME280 = "BME280"
)

var errCRC = errors.New("crc mismatch")

type PressurehPa float64
type RelHumidity float64
type TemperatureC float64

func (p PressurehPa) Float64() float64 {
	return float64(p)
}

func (r RelHumidity) Float64() float64 {
	return float64(r)
}

func (t TemperatureC) Float64() float64 {
	return float64(t)
}

// envSensor is satisfied by bmxx80.Dev and sht3x.
type envSensor interface {
	Sense(e *physic.Env) error
}

type ambientChannel struct {
	kind   string
	sensor envSensor
}

// Atmosphere reads the ambient sensors hung off a TCA9548A channel mux. Each
// channel is probed for an SHT3X and then a BME280 until something answers.
type Atmosphere struct {
	bus      i2c.Bus
	mux      *i2c.Dev
	channels [env.AmbientChannels]ambientChannel
	Delay    func(time.Duration)
}

func NewAtmosphere(bus i2c.Bus) *Atmosphere {
	return &Atmosphere{bus: bus, Delay: time.Sleep}
}

// findMux looks for the channel mux over its address range.
func (a *Atmosphere) findMux() error {
	for addr := env.MuxFirstAddr; addr <= env.MuxLastAddr; addr++ {
		d := &i2c.Dev{Addr: addr, Bus: a.bus}
		if err := d.Tx([]byte{0x00}, nil); err == nil {
			logger.Infof("TCA9548A found [%#x]", addr)
			a.mux = d
			return nil
		}
	}
	return errors.New("TCA9548A not found")
}

func (a *Atmosphere) selectChannel(ch int) error {
	if err := a.mux.Tx([]byte{1 << uint(ch)}, nil); err != nil {
		return fmt.Errorf("tca select %d: %w", ch, err)
	}
	a.Delay(env.TCASettle)
	return nil
}

func (a *Atmosphere) probe(ch int) {
	for _, addr := range []uint16{env.SHT3XAddr, env.SHT3XAltAddr} {
		s := newSHT3X(a.bus, addr, a.Delay)
		if err := s.status(); err == nil {
			logger.Infof("Ambient channel %d: SHT3X [%#x]", ch, addr)
			a.channels[ch] = ambientChannel{kind: KindSHT3X, sensor: s}
			return
		}
	}
	for _, addr := range []uint16{env.BME280Addr, env.BME280AltAddr} {
		bme, err := bmxx80.NewI2C(a.bus, addr, &bmxx80.DefaultOpts)
		if err == nil {
			logger.Infof("Ambient channel %d: BME280 [%#x]", ch, addr)
			a.channels[ch] = ambientChannel{kind: KindBME280, sensor: bme}
			return
		}
	}
	logger.Warnf("Ambient channel %d: nothing found", ch)
}

// Read returns one reading per channel. Channels without a sensor are probed
// again so a sensor that comes back is picked up on its next powered cycle.
func (a *Atmosphere) Read() [env.AmbientChannels]data.Ambient {
	var out [env.AmbientChannels]data.Ambient
	for i := range out {
		out[i] = data.OfflineAmbient()
	}
	if a.mux == nil {
		if err := a.findMux(); err != nil {
			logger.Errorf("Ambient read skipped [%v]", err)
			return out
		}
	}
	for ch := range a.channels {
		if err := a.selectChannel(ch); err != nil {
			logger.Errorf("Ambient channel %d [%v]", ch, err)
			continue
		}
		if a.channels[ch].sensor == nil {
			a.probe(ch)
			if a.channels[ch].sensor == nil {
				continue
			}
		}
		out[ch] = a.readChannel(ch)
	}
	// deselect everything so nothing else on the bus sees the sensors
	if err := a.mux.Tx([]byte{0x00}, nil); err != nil {
		logger.Debugf("TCA deselect failed [%v]", err)
	}
	return out
}

func (a *Atmosphere) readChannel(ch int) data.Ambient {
	c := a.channels[ch]
	amb := data.OfflineAmbient()
	amb.Kind = c.kind

	em := physic.Env{}
	err := c.sensor.Sense(&em)
	if err != nil && c.kind == KindSHT3X {
		logger.Debugf("SHT3X channel %d retry [%v]", ch, err)
		err = c.sensor.Sense(&em)
	}
	if err != nil {
		logger.Errorf("%s channel %d read failed [%v]", c.kind, ch, err)
		return amb
	}
	temp := TemperatureC(em.Temperature.Celsius())
	if math.IsNaN(temp.Float64()) || temp.Float64() < env.AmbientMinC || temp.Float64() > env.AmbientMaxC {
		logger.Warnf("%s channel %d temperature out of range [%v]", c.kind, ch, temp)
		return amb
	}
	amb.Temperature = temp.Float64()
	amb.Humidity = RelHumidity(float64(em.Humidity) / float64(physic.PercentRH)).Float64()
	if em.Pressure > 0 {
		amb.Pressure = PressurehPa(float64(em.Pressure) / float64(100*physic.Pascal)).Float64()
	}
	amb.Online = true
	return amb
}

// sht3x drives the humidity sensor with single shot, high repeatability
// measurements.
type sht3x struct {
	dev   *i2c.Dev
	delay func(time.Duration)
}

func newSHT3X(bus i2c.Bus, addr uint16, delay func(time.Duration)) *sht3x {
	return &sht3x{dev: &i2c.Dev{Addr: addr, Bus: bus}, delay: delay}
}

func (s *sht3x) status() error {
	r := make([]byte, 3)
	if err := s.dev.Tx([]byte{0xF3, 0x2D}, r); err != nil {
		return err
	}
	if crc8(r[:2]) != r[2] {
		return errCRC
	}
	return nil
}

func (s *sht3x) Sense(e *physic.Env) error {
	if err := s.dev.Tx([]byte{0x24, 0x00}, nil); err != nil {
		return err
	}
	s.delay(15 * time.Millisecond)
	r := make([]byte, 6)
	if err := s.dev.Tx(nil, r); err != nil {
		return err
	}
	if crc8(r[0:2]) != r[2] || crc8(r[3:5]) != r[5] {
		return errCRC
	}
	rawT := float64(uint16(r[0])<<8 | uint16(r[1]))
	rawH := float64(uint16(r[3])<<8 | uint16(r[4]))
	c := -45 + 175*rawT/65535
	rh := 100 * rawH / 65535
	e.Temperature = physic.ZeroCelsius + physic.Temperature(c*float64(physic.Kelvin))
	e.Humidity = physic.RelativeHumidity(rh * float64(physic.PercentRH))
	e.Pressure = 0
	return nil
}

// crc8 is the Sensirion checksum: polynomial 0x31, init 0xFF.
func crc8(b []byte) byte {
	crc := byte(0xFF)
	for _, v := range b {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
