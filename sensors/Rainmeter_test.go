package sensors

import (
	"testing"
	"time"

	"github.com/gr-butler/weathernode/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func Test_rainmeter_Count(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: env.CounterAddr, R: []byte{42}},
	}}
	r := NewRainmeter(bus, env.CounterAddr, &gpiotest.Pin{N: "rst"})

	assert.Equal(t, 42, r.Count())
	require.NoError(t, bus.Close())
}

func Test_rainmeter_CountError(t *testing.T) {
	r := NewRainmeter(&i2ctest.Playback{DontPanic: true}, env.CounterAddr, &gpiotest.Pin{N: "rst"})
	assert.Equal(t, -1, r.Count())
}

func Test_rainmeter_Reset(t *testing.T) {
	rst := &gpiotest.Pin{N: "rst", L: gpio.High}
	r := NewRainmeter(&i2ctest.Playback{}, env.CounterAddr, rst)
	assert.Equal(t, gpio.Low, rst.Read(), "reset released at start")

	var pulse []time.Duration
	r.Delay = func(d time.Duration) {
		assert.Equal(t, gpio.High, rst.Read())
		pulse = append(pulse, d)
	}
	require.NoError(t, r.Reset())
	assert.Equal(t, []time.Duration{env.CounterResetPulse}, pulse)
	assert.Equal(t, gpio.Low, rst.Read())
}

func TestAccumulation(t *testing.T) {
	assert.Equal(t, float64(0), Accumulation(-1).Float64())
	assert.InDelta(t, 3.537, Accumulation(10).Float64(), 1e-9)
}
