package power

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

var (
	ErrOutsideTable = errors.New("voltage outside battery table")
	ErrBadSample    = errors.New("battery sample out of range")
)

// Sampler is the analog input behind the multiplexer.
type Sampler interface {
	Read() (analog.Sample, error)
}

// Percent maps a battery voltage onto the descending discharge table. Values at
// or above the first row clamp to its percent, at or below the last row to the
// last percent.
func Percent(table []env.Breakpoint, mv int) (uint8, error) {
	if len(table) == 0 {
		return 0, ErrOutsideTable
	}
	top, bottom := table[0], table[len(table)-1]
	if mv >= top.MilliVolts {
		return uint8(top.Percent), nil
	}
	if mv <= bottom.MilliVolts {
		return uint8(bottom.Percent), nil
	}
	for i := 0; i < len(table)-1; i++ {
		hi, lo := table[i], table[i+1]
		if mv <= hi.MilliVolts && mv > lo.MilliVolts {
			p := lo.Percent + (mv-lo.MilliVolts)*(hi.Percent-lo.Percent)/(hi.MilliVolts-lo.MilliVolts)
			return uint8(p), nil
		}
	}
	return 0, fmt.Errorf("%w: [%d] mV", ErrOutsideTable, mv)
}

// Battery measures the cell through a switched divider on the mux output.
type Battery struct {
	seq         *Sequencer
	divider     *Line
	adc         Sampler
	calibration float64
	table       []env.Breakpoint
	Delay       func(time.Duration)
}

func NewBattery(seq *Sequencer, divider *Line, adc Sampler, cfg env.Battery) (*Battery, error) {
	if err := env.ValidateTable(cfg.Table); err != nil {
		return nil, err
	}
	return &Battery{
		seq:         seq,
		divider:     divider,
		adc:         adc,
		calibration: cfg.Calibration,
		table:       cfg.Table,
		Delay:       time.Sleep,
	}, nil
}

// ReadBatteryPercent samples the divider and returns the calibrated millivolts
// and the state of charge.
func (b *Battery) ReadBatteryPercent() (uint16, uint8, error) {
	if err := b.seq.SelectMultiplexerChannel(env.MuxEmptyChannel); err != nil {
		return 0, 0, fmt.Errorf("battery: %w", err)
	}
	defer func() {
		if err := b.seq.SelectMultiplexerChannel(env.MuxEmptyChannel); err != nil {
			logger.Errorf("Failed to isolate mux after battery read [%v]", err)
		}
	}()

	if err := b.divider.Set(true); err != nil {
		return 0, 0, fmt.Errorf("battery: %w", err)
	}
	b.Delay(env.DividerSettle)
	sample, err := b.adc.Read()
	if ferr := b.divider.Float(); ferr != nil {
		logger.Errorf("Failed to release battery divider [%v]", ferr)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("battery sample: %w", err)
	}

	scaled := float64(sample.V) / float64(physic.MilliVolt) * b.calibration
	if scaled <= 0 || scaled > math.MaxUint16 {
		return 0, 0, fmt.Errorf("%w: [%.0f] mV", ErrBadSample, scaled)
	}
	mv := uint16(scaled)
	pct, err := Percent(b.table, int(mv))
	if err != nil {
		return mv, 0, err
	}
	logger.Debugf("Battery [%v]mV [%v]%%", mv, pct)
	return mv, pct, nil
}
