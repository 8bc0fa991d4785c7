package power

import (
	"errors"
	"testing"
	"time"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

type countingPin struct {
	*gpiotest.Pin
	writes int
}

func (c *countingPin) Out(l gpio.Level) error {
	c.writes++
	return c.Pin.Out(l)
}

type fakeADC struct {
	v      physic.ElectricPotential
	err    error
	reads  int
	onRead func()
}

func (f *fakeADC) Read() (analog.Sample, error) {
	f.reads++
	if f.onRead != nil {
		f.onRead()
	}
	return analog.Sample{V: f.v}, f.err
}

type rig struct {
	vext, a, b, c *countingPin
	mux           []*gpiotest.Pin
	shared        *SharedLine
	seq           *Sequencer
	delays        []time.Duration
}

func newRig() *rig {
	r := &rig{
		vext: &countingPin{Pin: &gpiotest.Pin{N: "vext", L: gpio.High}},
		a:    &countingPin{Pin: &gpiotest.Pin{N: "a"}},
		b:    &countingPin{Pin: &gpiotest.Pin{N: "b"}},
		c:    &countingPin{Pin: &gpiotest.Pin{N: "c"}},
	}
	mux := make([]gpio.PinIO, env.MuxSelectLines)
	for i := range mux {
		p := &gpiotest.Pin{N: "s"}
		r.mux = append(r.mux, p)
		mux[i] = p
	}
	r.shared = NewSharedLine(NewLine("b", r.b, false))
	r.seq = NewSequencer(NewLine("vext", r.vext, true), NewLine("a", r.a, false), r.shared, NewLine("c", r.c, false), mux)
	r.seq.Delay = r.record
	return r
}

func (r *rig) record(d time.Duration) {
	r.delays = append(r.delays, d)
}

func (r *rig) muxValue() int {
	v := 0
	for i, p := range r.mux {
		if p.Read() == gpio.High {
			v |= 1 << i
		}
	}
	return v
}

func TestLineActiveLow(t *testing.T) {
	p := &gpiotest.Pin{N: "p"}
	l := NewLine("p", p, true)

	require.NoError(t, l.Set(true))
	assert.Equal(t, gpio.Low, p.Read())
	assert.True(t, l.On())

	require.NoError(t, l.Set(false))
	assert.Equal(t, gpio.High, p.Read())
	assert.False(t, l.On())
}

func TestSequencerEnable(t *testing.T) {
	r := newRig()

	require.NoError(t, r.seq.Enable(GroupA))
	assert.Equal(t, gpio.Low, r.vext.Read(), "vext is active low")
	assert.Equal(t, gpio.High, r.a.Read())
	assert.Equal(t, []time.Duration{env.RailSettle}, r.delays)

	require.NoError(t, r.seq.Enable(GroupB))
	assert.Equal(t, gpio.High, r.b.Read())
	assert.Equal(t, OwnerSensors, r.shared.Owner())

	require.NoError(t, r.seq.Disable(GroupB))
	assert.Equal(t, gpio.Low, r.b.Read())
	assert.Equal(t, OwnerNone, r.shared.Owner())
	assert.Equal(t, gpio.Low, r.vext.Read(), "disable leaves upstream on")
}

func TestSequencerGroupBSkippedWhileDisplayOwnsLine(t *testing.T) {
	r := newRig()
	require.NoError(t, r.shared.Acquire(OwnerDisplay))
	require.NoError(t, r.shared.Write(OwnerDisplay, true))
	before := r.b.writes
	vextBefore := r.vext.writes

	require.NoError(t, r.seq.Enable(GroupB))

	assert.Equal(t, before, r.b.writes, "shared line must not be touched")
	assert.Equal(t, vextBefore, r.vext.writes)
	assert.Equal(t, gpio.High, r.b.Read())
	assert.Equal(t, OwnerDisplay, r.shared.Owner())

	require.NoError(t, r.seq.Disable(GroupB))
	assert.Equal(t, before, r.b.writes)
}

func TestSharedLineRejectsNonOwner(t *testing.T) {
	r := newRig()
	require.NoError(t, r.shared.Acquire(OwnerDisplay))

	err := r.shared.Write(OwnerSensors, true)
	require.ErrorIs(t, err, ErrNotOwner)
	require.ErrorIs(t, r.shared.Acquire(OwnerSensors), ErrNotOwner)
	assert.Zero(t, r.b.writes)

	r.shared.Release(OwnerSensors)
	assert.Equal(t, OwnerDisplay, r.shared.Owner())
	r.shared.Release(OwnerDisplay)
	assert.Equal(t, OwnerNone, r.shared.Owner())
	require.NoError(t, r.shared.Acquire(OwnerSensors))
}

func TestSequencerDisableAll(t *testing.T) {
	r := newRig()
	require.NoError(t, r.seq.Enable(GroupA))
	require.NoError(t, r.seq.Enable(GroupB))
	require.NoError(t, r.seq.Enable(GroupC))

	require.NoError(t, r.seq.DisableAll())
	assert.Equal(t, gpio.Low, r.a.Read())
	assert.Equal(t, gpio.Low, r.b.Read())
	assert.Equal(t, gpio.Low, r.c.Read())
	assert.Equal(t, gpio.High, r.vext.Read())
}

func TestSelectMultiplexerChannel(t *testing.T) {
	r := newRig()

	require.NoError(t, r.seq.SelectMultiplexerChannel(10))
	assert.Equal(t, 10, r.muxValue())
	require.NoError(t, r.seq.SelectMultiplexerChannel(env.MuxEmptyChannel))
	assert.Equal(t, 15, r.muxValue())
	assert.Equal(t, []time.Duration{env.MuxSettle, env.MuxSettle}, r.delays)

	require.Error(t, r.seq.SelectMultiplexerChannel(16))
	require.Error(t, r.seq.SelectMultiplexerChannel(-1))
}

func TestPercent(t *testing.T) {
	table := env.DefaultBatteryTable()
	tests := []struct {
		mv   int
		want uint8
	}{
		{4200, 100},
		{4201, 100},
		{5000, 100},
		{3450, 0},
		{3000, 0},
		{3980, 80},
		{3905, 70},
		{4060, 90},
		{3999, 82},
		{3600, 15},
	}
	for _, tt := range tests {
		got, err := Percent(table, tt.mv)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "percent(%d)", tt.mv)
	}

	_, err := Percent(nil, 3900)
	require.ErrorIs(t, err, ErrOutsideTable)
}

func TestPercentNeverLeavesRange(t *testing.T) {
	table := env.DefaultBatteryTable()
	for mv := 3000; mv <= 4500; mv++ {
		p, err := Percent(table, mv)
		require.NoError(t, err)
		require.LessOrEqual(t, p, uint8(100))
	}
}

func TestReadBatteryPercent(t *testing.T) {
	r := newRig()
	divider := &gpiotest.Pin{N: "div", L: gpio.High}
	adc := &fakeADC{v: 2125 * physic.MilliVolt}
	adc.onRead = func() {
		assert.Equal(t, gpio.Low, divider.Read(), "divider on while sampling")
		assert.Equal(t, env.MuxEmptyChannel, r.muxValue())
	}
	b, err := NewBattery(r.seq, NewLine("div", divider, true), adc, env.Default().Battery)
	require.NoError(t, err)
	b.Delay = r.record

	mv, pct, err := b.ReadBatteryPercent()
	require.NoError(t, err)
	assert.Equal(t, uint16(3999), mv)
	assert.Equal(t, uint8(82), pct)
	assert.Equal(t, 1, adc.reads)
	assert.Equal(t, gpio.Float, divider.P, "divider released after sampling")
	assert.Equal(t, env.MuxEmptyChannel, r.muxValue())
	assert.Equal(t, []time.Duration{env.MuxSettle, env.DividerSettle, env.MuxSettle}, r.delays)
}

func TestReadBatteryPercentSampleFails(t *testing.T) {
	r := newRig()
	divider := &gpiotest.Pin{N: "div"}
	adc := &fakeADC{err: errors.New("nack")}
	b, err := NewBattery(r.seq, NewLine("div", divider, true), adc, env.Default().Battery)
	require.NoError(t, err)
	b.Delay = r.record

	_, _, err = b.ReadBatteryPercent()
	require.Error(t, err)
	assert.Equal(t, gpio.Float, divider.P)
}

func TestReadBatteryPercentRejectsOutOfRangeSample(t *testing.T) {
	for _, v := range []physic.ElectricPotential{-3 * physic.MilliVolt, 0, 40 * physic.Volt} {
		r := newRig()
		divider := &gpiotest.Pin{N: "div"}
		b, err := NewBattery(r.seq, NewLine("div", divider, true), &fakeADC{v: v}, env.Default().Battery)
		require.NoError(t, err)
		b.Delay = r.record

		mv, pct, err := b.ReadBatteryPercent()
		require.ErrorIs(t, err, ErrBadSample, "sample %v", v)
		assert.Zero(t, mv)
		assert.Zero(t, pct)
		assert.Equal(t, gpio.Float, divider.P)
		assert.Equal(t, env.MuxEmptyChannel, r.muxValue())
	}
}

func TestNewBatteryRejectsBadTable(t *testing.T) {
	r := newRig()
	_, err := NewBattery(r.seq, NewLine("div", &gpiotest.Pin{}, true), &fakeADC{}, env.Battery{
		Calibration: 1,
		Table:       []env.Breakpoint{{MilliVolts: 3000, Percent: 0}, {MilliVolts: 4000, Percent: 100}},
	})
	require.ErrorIs(t, err, env.ErrInvalidConfig)
}

func TestAuxChannelsRead(t *testing.T) {
	r := newRig()
	adc := &fakeADC{v: 1234 * physic.MilliVolt}
	adc.onRead = func() {
		assert.Equal(t, env.MuxWindSpeedCh, r.muxValue())
	}
	aux := NewAuxChannels(r.seq, adc)

	mv, err := aux.Read(env.MuxWindSpeedCh)
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), mv)
	assert.Equal(t, env.MuxEmptyChannel, r.muxValue())

	adc.err = errors.New("timeout")
	mv, err = aux.Read(env.MuxSoilCh)
	require.Error(t, err)
	assert.Equal(t, data.NoAux, mv)

	_, err = aux.Read(env.MuxEmptyChannel)
	require.Error(t, err)
}

var calibrate = i2ctest.IO{Addr: env.LoadMonitorAddr, W: []byte{env.INA219Calibration, 0x10, 0x00}}

func TestLoadMonitorInit(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: env.LoadMonitorAddr, W: []byte{env.INA219Config, 0x39, 0x9F}},
		calibrate,
	}}
	m := NewLoadMonitor(bus, env.LoadMonitorAddr)

	require.NoError(t, m.Init())
	require.NoError(t, bus.Close())
}

func TestReadLoadMeasurement(t *testing.T) {
	tests := []struct {
		name     string
		bus, cur []byte
		want     data.Load
	}{
		{"charging", []byte{0x32, 0x00}, []byte{0x01, 0xF4}, data.Load{MilliVolts: 6400, MilliAmps: 50}},
		{"discharging", []byte{0x32, 0x00}, []byte{0xFF, 0x9C}, data.Load{MilliVolts: 6400, MilliAmps: -10}},
		{"status bits ignored", []byte{0x32, 0x07}, []byte{0x00, 0x00}, data.Load{MilliVolts: 6400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &i2ctest.Playback{Ops: []i2ctest.IO{
				calibrate,
				{Addr: env.LoadMonitorAddr, W: []byte{env.INA219BusVoltage}, R: tt.bus},
				{Addr: env.LoadMonitorAddr, W: []byte{env.INA219Current}, R: tt.cur},
			}}
			m := NewLoadMonitor(bus, env.LoadMonitorAddr)
			var delays []time.Duration
			m.Delay = func(d time.Duration) { delays = append(delays, d) }

			got, err := m.ReadLoadMeasurement()
			require.NoError(t, err)
			assert.Equal(t, tt.want.MilliVolts, got.MilliVolts)
			assert.InDelta(t, tt.want.MilliAmps, got.MilliAmps, 1e-9)
			assert.Equal(t, []time.Duration{env.CalibrationSettle}, delays)
			require.NoError(t, bus.Close())
		})
	}
}

func TestReadLoadMeasurementFailures(t *testing.T) {
	busRead := i2ctest.IO{Addr: env.LoadMonitorAddr, W: []byte{env.INA219BusVoltage}, R: []byte{0x32, 0x00}}
	tests := []struct {
		name string
		ops  []i2ctest.IO
	}{
		{"calibration", nil},
		{"bus voltage", []i2ctest.IO{calibrate}},
		{"current", []i2ctest.IO{calibrate, busRead}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &i2ctest.Playback{Ops: tt.ops, DontPanic: true}
			m := NewLoadMonitor(bus, env.LoadMonitorAddr)
			m.Delay = func(time.Duration) {}

			got, err := m.ReadLoadMeasurement()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.name)
			assert.Equal(t, data.Load{}, got)
		})
	}
}
