package wind

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
)

var ErrNoSamples = errors.New("no valid wind samples")

const sectorWidth = 22.5

// Sector is a 16 point compass sector, 0 centred on north.
type Sector uint8

var sectorNames = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

func (s Sector) String() string {
	if int(s) < len(sectorNames) {
		return sectorNames[s]
	}
	return "---"
}

// Normalize maps any angle onto [0,360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// VectorMean averages headings on the unit circle so that 350 and 10 give 0
// rather than 180. An empty set yields 0.
func VectorMean(degrees []float64) float64 {
	if len(degrees) == 0 {
		return 0
	}
	var sumSin, sumCos float64
	for _, d := range degrees {
		r := d * math.Pi / 180
		sumSin += math.Sin(r)
		sumCos += math.Cos(r)
	}
	n := float64(len(degrees))
	return Normalize(math.Atan2(sumSin/n, sumCos/n) * 180 / math.Pi)
}

// QuantizeSector returns the 16 point sector for a heading, data.NoSector for
// NaN.
func QuantizeSector(deg float64) uint8 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return data.NoSector
	}
	s := int(Normalize(deg+sectorWidth/2) / sectorWidth)
	if s > 15 {
		s = 0
	}
	return uint8(s)
}

// AngleSource returns the raw vane angle in degrees.
type AngleSource interface {
	Angle() (float64, error)
}

type Averager struct {
	src         AngleSource
	northOffset float64
	samples     int
	Delay       func(time.Duration)
}

func NewAverager(src AngleSource, cfg env.Wind) *Averager {
	return &Averager{
		src:         src,
		northOffset: cfg.NorthOffset,
		samples:     cfg.Samples,
		Delay:       time.Sleep,
	}
}

// SampleAndAverage takes the configured number of readings, corrects them for
// the mounting offset and returns the vector mean and its sector. Failed
// readings are skipped.
func (a *Averager) SampleAndAverage() (float64, uint8, error) {
	angles := make([]float64, 0, a.samples)
	for i := 0; i < a.samples; i++ {
		if i > 0 {
			a.Delay(env.WindSampleDelay)
		}
		deg, err := a.src.Angle()
		if err != nil {
			logger.Debugf("Wind sample %d failed [%v]", i, err)
			continue
		}
		angles = append(angles, Normalize(deg-a.northOffset))
	}
	if len(angles) == 0 {
		return math.NaN(), data.NoSector, fmt.Errorf("%w: %d attempts", ErrNoSamples, a.samples)
	}
	mean := VectorMean(angles)
	sector := QuantizeSector(mean)
	logger.Debugf("Wind [%.1f] deg [%v] from %d samples", mean, Sector(sector), len(angles))
	return mean, sector, nil
}
