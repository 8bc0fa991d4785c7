package sensors

import (
	"testing"

	"github.com/gr-butler/weathernode/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func Test_vane_Angle(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: env.VaneAddr, W: []byte{env.AS5600Status}, R: []byte{statusMagnetDetected}},
		{Addr: env.VaneAddr, W: []byte{env.AS5600RawAngle}, R: []byte{0x04, 0x00}},
		{Addr: env.VaneAddr, W: []byte{env.AS5600RawAngle}, R: []byte{0xFF, 0xFF}},
	}}
	v := NewVane(bus, env.VaneAddr)

	deg, err := v.Angle()
	require.NoError(t, err)
	assert.Equal(t, float64(90), deg)

	// upper nibble is not part of the angle
	deg, err = v.Angle()
	require.NoError(t, err)
	assert.InDelta(t, 359.912, deg, 0.001)
	require.NoError(t, bus.Close())
}

func Test_vane_NoMagnet(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: env.VaneAddr, W: []byte{env.AS5600Status}, R: []byte{statusMagnetWeak}},
	}}
	v := NewVane(bus, env.VaneAddr)

	_, err := v.Angle()
	require.ErrorIs(t, err, ErrNoMagnet)
	require.NoError(t, bus.Close())
}

func Test_vane_BusError(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	v := NewVane(bus, env.VaneAddr)

	_, err := v.Angle()
	require.Error(t, err)
}
