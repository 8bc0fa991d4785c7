package power

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

// LoadMonitor reads the solar rail through an INA219.
type LoadMonitor struct {
	dev   *i2c.Dev
	Delay func(time.Duration)
}

func NewLoadMonitor(bus i2c.Bus, addr uint16) *LoadMonitor {
	return &LoadMonitor{
		dev:   &i2c.Dev{Addr: addr, Bus: bus},
		Delay: time.Sleep,
	}
}

// Init writes the configuration and calibration registers.
func (m *LoadMonitor) Init() error {
	if err := m.write(env.INA219Config, env.INA219ConfigValue); err != nil {
		return fmt.Errorf("ina219 config: %w", err)
	}
	if err := m.write(env.INA219Calibration, env.INA219CalibValue); err != nil {
		return fmt.Errorf("ina219 calibration: %w", err)
	}
	return nil
}

// ReadLoadMeasurement returns the bus voltage and current. The calibration
// register is rewritten first since the chip loses it on a brown out. A failed
// read returns a zero reading.
func (m *LoadMonitor) ReadLoadMeasurement() (data.Load, error) {
	if err := m.write(env.INA219Calibration, env.INA219CalibValue); err != nil {
		return data.Load{}, fmt.Errorf("ina219 calibration: %w", err)
	}
	m.Delay(env.CalibrationSettle)

	bus, err := m.read(env.INA219BusVoltage)
	if err != nil {
		return data.Load{}, fmt.Errorf("ina219 bus voltage: %w", err)
	}
	cur, err := m.read(env.INA219Current)
	if err != nil {
		return data.Load{}, fmt.Errorf("ina219 current: %w", err)
	}
	l := data.Load{
		MilliVolts: (bus >> 3) * 4,
		MilliAmps:  float64(int16(cur)) * env.INA219CurrentLSBmA,
	}
	logger.Debugf("Load [%v]mV [%.1f]mA", l.MilliVolts, l.MilliAmps)
	return l, nil
}

func (m *LoadMonitor) write(reg uint8, v uint16) error {
	b := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(b[1:], v)
	return m.dev.Tx(b, nil)
}

func (m *LoadMonitor) read(reg uint8) (uint16, error) {
	r := make([]byte, 2)
	if err := m.dev.Tx([]byte{reg}, r); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r), nil
}
