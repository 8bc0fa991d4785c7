package payload

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gr-butler/weathernode/data"
)

var ErrFrameLength = errors.New("frame length")

type Frame [Size]byte

func (f Frame) Bytes() []byte {
	return f[:]
}

func (f Frame) String() string {
	return hex.EncodeToString(f[:])
}

func (f *Frame) putU8(field int, v uint8) {
	f[schema[field].Offset] = v
}

func (f *Frame) putU16(field int, v uint16) {
	binary.LittleEndian.PutUint16(f[schema[field].Offset:], v)
}

func (f *Frame) putI16(field int, v int16) {
	f.putU16(field, uint16(v))
}

// Encode packs a snapshot of the readings. It only reads r and always returns
// a full frame.
func Encode(r *data.Readings) Frame {
	var f Frame

	f.putI16(Temp1, ambientTemp(r.Ambient[0]))
	f.putU8(Hum1, ambientHum(r.Ambient[0]))
	f.putI16(Temp2, ambientTemp(r.Ambient[1]))
	f.putU8(Hum2, ambientHum(r.Ambient[1]))
	pres := NoPressure
	if r.Ambient[1].Online {
		pres = EncodePressure(r.Ambient[1].Pressure)
	}
	f.putU16(Pres2, pres)
	f.putI16(Temp3, NoTemperature)
	f.putU8(Hum3, NoHumidity)

	f.putI16(GroundAir, groundTemp(r.Ground[0]))
	f.putI16(GroundSoil, groundTemp(r.Ground[1]))

	f.putU8(Rain, uint8(r.RainCount))
	f.putU8(WindDir, EncodeSector(r.WindSector))

	f.putU16(BatteryMV, r.BatteryMV)
	f.putU16(SolarMV, r.Load.MilliVolts)
	f.putU16(SolarMA, EncodeCurrent(r.Load.MilliAmps))
	f.putU16(Aux2, r.Aux[0])
	f.putU16(Aux3, r.Aux[1])
	return f
}

func ambientTemp(a data.Ambient) int16 {
	if !a.Online {
		return NoTemperature
	}
	return EncodeTemperature(a.Temperature)
}

func ambientHum(a data.Ambient) uint8 {
	if !a.Online {
		return NoHumidity
	}
	return EncodeHumidity(a.Humidity)
}

func groundTemp(g data.Ground) int16 {
	if !g.Valid {
		return NoTemperature
	}
	return EncodeTemperature(g.Temperature)
}

// EncodeTemperature scales to hundredths of a degree, truncating. Values that
// do not fit become the sentinel.
func EncodeTemperature(c float64) int16 {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return NoTemperature
	}
	v := math.Trunc(c * 100)
	if v <= math.MinInt16 || v > math.MaxInt16 {
		return NoTemperature
	}
	return int16(v)
}

func EncodeHumidity(rh float64) uint8 {
	if math.IsNaN(rh) {
		return NoHumidity
	}
	rh = math.Max(0, math.Min(100, rh))
	return uint8(math.Round(rh))
}

// EncodePressure scales hPa to tenths, clamped to the field.
func EncodePressure(hpa float64) uint16 {
	if math.IsNaN(hpa) || hpa <= 0 {
		return NoPressure
	}
	v := math.Trunc(hpa * 10)
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func EncodeSector(s uint8) uint8 {
	if s > 15 {
		return NoSector
	}
	return s
}

// EncodeCurrent stores the signed milliamps as their 16 bit two's complement.
func EncodeCurrent(ma float64) uint16 {
	if math.IsNaN(ma) {
		return 0
	}
	ma = math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Trunc(ma)))
	return uint16(int16(ma))
}

type Ambient struct {
	Temperature float64
	Humidity    float64
	Pressure    float64
}

// Record is a decoded frame. Unavailable values are NaN.
type Record struct {
	Ambient    [3]Ambient
	Ground     [2]float64
	RainCount  uint8
	WindSector uint8
	BatteryMV  uint16
	SolarMV    uint16
	SolarMA    int16
	Aux        [2]uint16
}

func Decode(b []byte) (Record, error) {
	if len(b) != Size {
		return Record{}, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(b), Size)
	}
	u8 := func(field int) uint8 { return b[schema[field].Offset] }
	u16 := func(field int) uint16 { return binary.LittleEndian.Uint16(b[schema[field].Offset:]) }
	i16 := func(field int) int16 { return int16(u16(field)) }

	var rec Record
	rec.Ambient[0] = Ambient{decodeTemp(i16(Temp1)), decodeHum(u8(Hum1)), math.NaN()}
	rec.Ambient[1] = Ambient{decodeTemp(i16(Temp2)), decodeHum(u8(Hum2)), decodePressure(u16(Pres2))}
	rec.Ambient[2] = Ambient{decodeTemp(i16(Temp3)), decodeHum(u8(Hum3)), math.NaN()}
	rec.Ground[0] = decodeTemp(i16(GroundAir))
	rec.Ground[1] = decodeTemp(i16(GroundSoil))
	rec.RainCount = u8(Rain)
	rec.WindSector = u8(WindDir)
	rec.BatteryMV = u16(BatteryMV)
	rec.SolarMV = u16(SolarMV)
	rec.SolarMA = i16(SolarMA)
	rec.Aux[0] = u16(Aux2)
	rec.Aux[1] = u16(Aux3)
	return rec, nil
}

func decodeTemp(v int16) float64 {
	if v == NoTemperature {
		return math.NaN()
	}
	return float64(v) / 100
}

func decodeHum(v uint8) float64 {
	if v == NoHumidity {
		return math.NaN()
	}
	return float64(v)
}

func decodePressure(v uint16) float64 {
	if v == NoPressure {
		return math.NaN()
	}
	return float64(v) / 10
}

// AuxValid reports whether aux channel i carries a reading.
func (r Record) AuxValid(i int) bool {
	return r.Aux[i] != NoAux
}

func (r Record) String() string {
	var sb strings.Builder
	for i, a := range r.Ambient[:2] {
		fmt.Fprintf(&sb, "ambient%d=%s/%s ", i+1, fmtFloat(a.Temperature, "C"), fmtFloat(a.Humidity, "%"))
	}
	fmt.Fprintf(&sb, "pressure=%s ", fmtFloat(r.Ambient[1].Pressure, "hPa"))
	fmt.Fprintf(&sb, "ground=%s/%s ", fmtFloat(r.Ground[0], "C"), fmtFloat(r.Ground[1], "C"))
	fmt.Fprintf(&sb, "rain=%d wind=%d ", r.RainCount, r.WindSector)
	fmt.Fprintf(&sb, "battery=%dmV solar=%dmV/%dmA ", r.BatteryMV, r.SolarMV, r.SolarMA)
	fmt.Fprintf(&sb, "aux=%s/%s", fmtAux(r.Aux[0]), fmtAux(r.Aux[1]))
	return sb.String()
}

func fmtFloat(v float64, unit string) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f%s", v, unit)
}

func fmtAux(v uint16) string {
	if v == NoAux {
		return "-"
	}
	return fmt.Sprintf("%dmV", v)
}

// Tips returns the rain counter, -1 when the counter could not be read.
func (r Record) Tips() int {
	if r.RainCount == NoRain {
		return -1
	}
	return int(r.RainCount)
}
