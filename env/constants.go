package env

import "time"

const (
	GPIO5  = "GPIO5"  // mux S0
	GPIO6  = "GPIO6"  // mux S1
	GPIO13 = "GPIO13" // mux S2
	GPIO17 = "GPIO17" // Vext (active low)
	GPIO19 = "GPIO19" // mux S3
	GPIO22 = "GPIO22" // group B enable, shared with display reset
	GPIO23 = "GPIO23" // group C enable
	GPIO24 = "GPIO24" // battery divider (active low)
	GPIO26 = "GPIO26" // CD4040 reset
	GPIO27 = "GPIO27" // group A enable

	VextPin           = GPIO17
	GroupAPin         = GPIO27
	GroupBPin         = GPIO22
	GroupCPin         = GPIO23
	BatteryDividerPin = GPIO24
	CounterResetPin   = GPIO26

	// I2C addresses
	CounterAddr      uint16 = 0x20 // PCF8574 reading the CD4040 outputs
	LoadMonitorAddr  uint16 = 0x40 // INA219
	VaneAddr         uint16 = 0x36 // AS5600
	OneWireAddr      uint16 = 0x18 // DS2482-100
	ADCAddr          uint16 = 0x48 // ADS1115
	MuxFirstAddr     uint16 = 0x70 // TCA9548A range start
	MuxLastAddr      uint16 = 0x77
	SHT3XAddr        uint16 = 0x44
	SHT3XAltAddr     uint16 = 0x45
	BME280Addr       uint16 = 0x76
	BME280AltAddr    uint16 = 0x77
	AmbientChannels         = 2
	GroundThermCount        = 2

	// analog multiplexer
	MuxEmptyChannel    = 15
	MuxWindSpeedCh     = 2
	MuxSoilCh          = 3
	MuxSelectLines     = 4
	VoltageCalibration = 1.882

	// INA219 registers
	INA219Config       uint8  = 0x00
	INA219BusVoltage   uint8  = 0x02
	INA219Current      uint8  = 0x04
	INA219Calibration  uint8  = 0x05
	INA219ConfigValue  uint16 = 0x399F
	INA219CalibValue   uint16 = 4096
	INA219CurrentLSBmA        = 0.1

	// AS5600 registers
	AS5600Status   uint8 = 0x0B
	AS5600RawAngle uint8 = 0x0C

	// settle times
	RailSettle        = 20 * time.Millisecond
	MuxSettle         = 5 * time.Millisecond
	DividerSettle     = 10 * time.Millisecond
	CalibrationSettle = 2 * time.Millisecond
	CounterResetPulse = 10 * time.Millisecond
	WindSampleDelay   = 10 * time.Millisecond
	TCASettle         = 5 * time.Millisecond

	WindSamples = 10

	// base sleep unit between wakes
	TimeUnit = 10 * time.Second

	// cycle multipliers
	GroupAMult       = 1
	GroupBMult       = 2
	GroupCMult       = 3
	TransmitMult     = 30
	CounterResetMult = 15

	// single-wire thermometer plausibility window
	GroundMinC       = -55.0
	GroundMaxC       = 125.0
	GroundPowerOnC   = 85.0
	AmbientMinC      = -40.0
	AmbientMaxC      = 125.0
	GroundResolution = 12

	HPaToInHg = 0.02953
	MmToInch  = 25.4
	MmPerTip  = 0.3537

	ReportFreqMin = 15
)
