package payload

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gr-butler/weathernode/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaIsContiguous(t *testing.T) {
	next := 0
	for _, f := range Fields() {
		require.Equal(t, next, f.Offset, "field %s", f.Name)
		next += f.Width
	}
	assert.Equal(t, Size, next)
}

func TestEncodeAllOffline(t *testing.T) {
	r := data.NewReadings()
	f := Encode(&r)
	b := f.Bytes()

	require.Len(t, b, Size)
	for _, field := range []int{Temp1, Temp2, Temp3, GroundAir, GroundSoil} {
		off := schema[field].Offset
		assert.Equal(t, NoTemperature, int16(binary.LittleEndian.Uint16(b[off:])), schema[field].Name)
	}
	for _, field := range []int{Hum1, Hum2, Hum3} {
		assert.Equal(t, NoHumidity, b[schema[field].Offset], schema[field].Name)
	}
	assert.Equal(t, NoPressure, binary.LittleEndian.Uint16(b[schema[Pres2].Offset:]))
	assert.Equal(t, NoSector, b[schema[WindDir].Offset])
	assert.Equal(t, uint8(255), b[schema[Rain].Offset], "counter error encodes as 255")
	assert.Equal(t, NoAux, binary.LittleEndian.Uint16(b[schema[Aux2].Offset:]))
	assert.Equal(t, NoAux, binary.LittleEndian.Uint16(b[schema[Aux3].Offset:]))
}

func TestEncodeOfflineChannelIgnoresValues(t *testing.T) {
	r := data.NewReadings()
	r.Ambient[0] = data.Ambient{Kind: "SHT3X", Temperature: 21.456, Humidity: 55.5, Pressure: math.NaN(), Online: true}
	f1 := Encode(&r)

	r.Ambient[1].Temperature = 30 // still offline
	f2 := Encode(&r)
	assert.Equal(t, f1, f2)
}

func TestEncodeKnownFrame(t *testing.T) {
	r := data.NewReadings()
	r.Ambient[0] = data.Ambient{Kind: "SHT3X", Temperature: 21.456, Humidity: 55.5, Pressure: math.NaN(), Online: true}
	r.Ambient[1] = data.Ambient{Kind: "BME280", Temperature: -5.25, Humidity: 101, Pressure: 1013.27, Online: true}
	r.Ground[0] = data.Ground{Label: "T_3m", Temperature: 8.5, Valid: true}
	r.Ground[1] = data.Ground{Label: "T_1m", Temperature: 85, Valid: false}
	r.RainCount = 300
	r.WindSector = 7
	r.BatteryMV = 3999
	r.Load = data.Load{MilliVolts: 12000, MilliAmps: -10.4}
	r.Aux = [2]uint16{1234, data.NoAux}

	f := Encode(&r)
	b := f.Bytes()

	i16 := func(field int) int16 { return int16(binary.LittleEndian.Uint16(b[schema[field].Offset:])) }
	u16 := func(field int) uint16 { return binary.LittleEndian.Uint16(b[schema[field].Offset:]) }

	assert.Equal(t, int16(2145), i16(Temp1))
	assert.Equal(t, uint8(56), b[schema[Hum1].Offset])
	assert.Equal(t, int16(-525), i16(Temp2))
	assert.Equal(t, uint8(100), b[schema[Hum2].Offset])
	assert.Equal(t, uint16(10132), u16(Pres2))
	assert.Equal(t, int16(850), i16(GroundAir))
	assert.Equal(t, NoTemperature, i16(GroundSoil))
	assert.Equal(t, uint8(300%256), b[schema[Rain].Offset])
	assert.Equal(t, uint8(7), b[schema[WindDir].Offset])
	assert.Equal(t, uint16(3999), u16(BatteryMV))
	assert.Equal(t, uint16(12000), u16(SolarMV))
	assert.Equal(t, int16(-10), i16(SolarMA))
	assert.Equal(t, uint16(1234), u16(Aux2))
	assert.Equal(t, NoAux, u16(Aux3))

	// deterministic
	assert.Equal(t, f, Encode(&r))
}

func TestEncodeTemperature(t *testing.T) {
	assert.Equal(t, int16(0), EncodeTemperature(0))
	assert.Equal(t, int16(2599), EncodeTemperature(25.999))
	assert.Equal(t, int16(-1), EncodeTemperature(-0.019))
	assert.Equal(t, int16(30050), EncodeTemperature(300.5))
	assert.Equal(t, NoTemperature, EncodeTemperature(400))
	assert.Equal(t, NoTemperature, EncodeTemperature(-400))
	assert.Equal(t, NoTemperature, EncodeTemperature(math.NaN()))
	assert.Equal(t, NoTemperature, EncodeTemperature(math.Inf(1)))
}

func TestEncodeHumidityAndPressure(t *testing.T) {
	assert.Equal(t, uint8(0), EncodeHumidity(-3))
	assert.Equal(t, uint8(100), EncodeHumidity(140))
	assert.Equal(t, uint8(43), EncodeHumidity(42.5))
	assert.Equal(t, NoHumidity, EncodeHumidity(math.NaN()))

	assert.Equal(t, NoPressure, EncodePressure(math.NaN()))
	assert.Equal(t, NoPressure, EncodePressure(-1))
	assert.Equal(t, uint16(65535), EncodePressure(9000))
	assert.Equal(t, uint16(9876), EncodePressure(987.69))
}

func TestEncodeSectorAndCurrent(t *testing.T) {
	assert.Equal(t, uint8(15), EncodeSector(15))
	assert.Equal(t, NoSector, EncodeSector(16))
	assert.Equal(t, NoSector, EncodeSector(data.NoSector))

	assert.Equal(t, uint16(250), EncodeCurrent(250.07))
	assert.Equal(t, uint16(0xFFFF), EncodeCurrent(-1))
	assert.Equal(t, uint16(0x7FFF), EncodeCurrent(1e6))
}

func TestDecode(t *testing.T) {
	r := data.NewReadings()
	r.Ambient[1] = data.Ambient{Kind: "BME280", Temperature: 12.5, Humidity: 80, Pressure: 1001.5, Online: true}
	r.Ground[1] = data.Ground{Label: "T_1m", Temperature: 7.75, Valid: true}
	r.RainCount = 4
	r.WindSector = 12
	r.BatteryMV = 4100
	r.Load = data.Load{MilliVolts: 5000, MilliAmps: -42}
	r.Aux[1] = 800
	f := Encode(&r)

	rec, err := Decode(f.Bytes())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rec.Ambient[0].Temperature))
	assert.True(t, math.IsNaN(rec.Ambient[0].Humidity))
	assert.InDelta(t, 12.5, rec.Ambient[1].Temperature, 0.001)
	assert.Equal(t, float64(80), rec.Ambient[1].Humidity)
	assert.InDelta(t, 1001.5, rec.Ambient[1].Pressure, 0.001)
	assert.True(t, math.IsNaN(rec.Ambient[2].Temperature))
	assert.True(t, math.IsNaN(rec.Ground[0]))
	assert.InDelta(t, 7.75, rec.Ground[1], 0.001)
	assert.Equal(t, uint8(4), rec.RainCount)
	assert.Equal(t, uint8(12), rec.WindSector)
	assert.Equal(t, uint16(4100), rec.BatteryMV)
	assert.Equal(t, int16(-42), rec.SolarMA)
	assert.False(t, rec.AuxValid(0))
	assert.True(t, rec.AuxValid(1))
	assert.Contains(t, rec.String(), "battery=4100mV")

	_, err = Decode(f.Bytes()[:Size-2])
	require.ErrorIs(t, err, ErrFrameLength)
}

func TestRecordTips(t *testing.T) {
	r := data.NewReadings()
	f := Encode(&r)
	rec, err := Decode(f.Bytes())
	require.NoError(t, err)
	assert.Equal(t, -1, rec.Tips(), "unread counter")

	r.RainCount = 12
	f = Encode(&r)
	rec, err = Decode(f.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 12, rec.Tips())
}
