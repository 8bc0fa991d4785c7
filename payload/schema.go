package payload

// Wire layout of the uplink frame. All multi byte fields are little endian.
//
//	off  field      type  unit
//	  0  temp1      i16   °C x100, ambient channel 0
//	  2  hum1       u8    %RH
//	  3  temp2      i16   °C x100, ambient channel 1
//	  5  hum2       u8    %RH
//	  6  pres2      u16   hPa x10
//	  8  temp3      i16   reserved, always unavailable
//	 10  hum3       u8    reserved, always unavailable
//	 11  groundAir  i16   °C x100
//	 13  groundSoil i16   °C x100
//	 15  rain       u8    tips, wraps
//	 16  windDir    u8    sector 0-15
//	 17  batteryMV  u16
//	 19  solarMV    u16
//	 21  solarMA    u16   two's complement of the signed current
//	 23  aux2       u16   mV
//	 25  aux3       u16   mV

const (
	Temp1 = iota
	Hum1
	Temp2
	Hum2
	Pres2
	Temp3
	Hum3
	GroundAir
	GroundSoil
	Rain
	WindDir
	BatteryMV
	SolarMV
	SolarMA
	Aux2
	Aux3
	fieldCount
)

// Size is the encoded frame length in bytes.
const Size = 27

// Sentinels for unavailable values.
const (
	NoTemperature int16  = -32768
	NoHumidity    uint8  = 255
	NoPressure    uint16 = 0
	NoSector      uint8  = 255
	NoRain        uint8  = 255
	NoAux         uint16 = 0xFFFF
)

type Field struct {
	Name   string
	Offset int
	Width  int
	Signed bool
}

var schema = [fieldCount]Field{
	Temp1:      {"temp1", 0, 2, true},
	Hum1:       {"hum1", 2, 1, false},
	Temp2:      {"temp2", 3, 2, true},
	Hum2:       {"hum2", 5, 1, false},
	Pres2:      {"pres2", 6, 2, false},
	Temp3:      {"temp3", 8, 2, true},
	Hum3:       {"hum3", 10, 1, false},
	GroundAir:  {"groundAir", 11, 2, true},
	GroundSoil: {"groundSoil", 13, 2, true},
	Rain:       {"rain", 15, 1, false},
	WindDir:    {"windDir", 16, 1, false},
	BatteryMV:  {"batteryMV", 17, 2, false},
	SolarMV:    {"solarMV", 19, 2, false},
	SolarMA:    {"solarMA", 21, 2, false},
	Aux2:       {"aux2", 23, 2, false},
	Aux3:       {"aux3", 25, 2, false},
}

// Fields returns the layout in wire order.
func Fields() []Field {
	f := make([]Field, len(schema))
	copy(f, schema[:])
	return f
}
