package wind

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedVane struct {
	angles []float64
	errs   []error
	i      int
}

func (s *scriptedVane) Angle() (float64, error) {
	i := s.i
	s.i++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	return s.angles[i%len(s.angles)], nil
}

func TestVectorMeanWraps(t *testing.T) {
	m := VectorMean([]float64{350, 10})
	if m > 180 {
		m -= 360
	}
	assert.InDelta(t, 0, m, 1e-9)

	assert.InDelta(t, 90, VectorMean([]float64{80, 100}), 1e-9)
	assert.InDelta(t, 270, VectorMean([]float64{260, 280}), 1e-9)
	assert.Equal(t, float64(0), VectorMean(nil))
}

func TestQuantizeSector(t *testing.T) {
	tests := []struct {
		deg  float64
		want uint8
	}{
		{0, 0},
		{11.2, 0},
		{11.3, 1},
		{348.8, 0},
		{348.7, 15},
		{90, 4},
		{180, 8},
		{359.99, 0},
		{-10, 0},
		{720, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuantizeSector(tt.deg), "sector(%v)", tt.deg)
	}
	assert.Equal(t, data.NoSector, QuantizeSector(math.NaN()))
}

func TestSectorString(t *testing.T) {
	assert.Equal(t, "N", Sector(0).String())
	assert.Equal(t, "ESE", Sector(5).String())
	assert.Equal(t, "NNW", Sector(15).String())
	assert.Equal(t, "---", Sector(data.NoSector).String())
}

func TestSampleAndAverage(t *testing.T) {
	var delays []time.Duration
	a := NewAverager(&scriptedVane{angles: []float64{5, 15}}, env.Wind{NorthOffset: 10, Samples: 10})
	a.Delay = func(d time.Duration) { delays = append(delays, d) }

	deg, sector, err := a.SampleAndAverage()
	require.NoError(t, err)
	if deg > 180 {
		deg -= 360
	}
	assert.InDelta(t, 0, deg, 1e-9)
	assert.Equal(t, uint8(0), sector)
	assert.Len(t, delays, 9)
	assert.Equal(t, env.WindSampleDelay, delays[0])
}

func TestSampleAndAverageSkipsFailures(t *testing.T) {
	fail := errors.New("magnet not detected")
	v := &scriptedVane{angles: []float64{90}, errs: []error{fail, nil, fail}}
	a := NewAverager(v, env.Wind{Samples: 3})
	a.Delay = func(time.Duration) {}

	deg, sector, err := a.SampleAndAverage()
	require.NoError(t, err)
	assert.InDelta(t, 90, deg, 1e-9)
	assert.Equal(t, uint8(4), sector)
}

func TestSampleAndAverageNoSamples(t *testing.T) {
	fail := errors.New("bus")
	v := &scriptedVane{angles: []float64{0}, errs: []error{fail, fail}}
	a := NewAverager(v, env.Wind{Samples: 2})
	a.Delay = func(time.Duration) {}

	deg, sector, err := a.SampleAndAverage()
	require.ErrorIs(t, err, ErrNoSamples)
	assert.True(t, math.IsNaN(deg))
	assert.Equal(t, data.NoSector, sector)
}
