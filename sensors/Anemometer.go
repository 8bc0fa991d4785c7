package sensors

import (
	"errors"
	"fmt"

	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

const (
	statusMagnetDetected = 0x20
	statusMagnetWeak     = 0x10
	statusMagnetStrong   = 0x08
)

var ErrNoMagnet = errors.New("vane magnet not detected")

// Vane is the AS5600 magnetic angle sensor on the wind vane shaft.
type Vane struct {
	dev     *i2c.Dev
	checked bool
}

func NewVane(bus i2c.Bus, addr uint16) *Vane {
	return &Vane{dev: &i2c.Dev{Addr: addr, Bus: bus}}
}

// CheckMagnet reads the status register. A missing magnet is an error, a weak
// or strong field only warns.
func (v *Vane) CheckMagnet() error {
	s := make([]byte, 1)
	if err := v.dev.Tx([]byte{env.AS5600Status}, s); err != nil {
		return fmt.Errorf("as5600 status: %w", err)
	}
	if s[0]&statusMagnetDetected == 0 {
		return ErrNoMagnet
	}
	if s[0]&statusMagnetWeak != 0 {
		logger.Warn("Vane magnet too weak")
	}
	if s[0]&statusMagnetStrong != 0 {
		logger.Warn("Vane magnet too strong")
	}
	return nil
}

// Angle returns the raw shaft angle in degrees. The magnet is checked on the
// first read after power up.
func (v *Vane) Angle() (float64, error) {
	if !v.checked {
		if err := v.CheckMagnet(); err != nil {
			return 0, err
		}
		v.checked = true
	}
	r := make([]byte, 2)
	if err := v.dev.Tx([]byte{env.AS5600RawAngle}, r); err != nil {
		return 0, fmt.Errorf("as5600 angle: %w", err)
	}
	raw := (uint16(r[0])<<8 | uint16(r[1])) & 0x0FFF
	return float64(raw) * 360 / 4096, nil
}

// PowerDown forces the magnet check again on the next read.
func (v *Vane) PowerDown() {
	v.checked = false
}
