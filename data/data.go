package data

import (
	"math"
	"sync"
	"time"
)

// holder for everything the sensors produce during a wake. The scheduler is the
// only writer, everything else reads snapshots.

// NoSector marks a wind direction that has not been computed.
const NoSector uint8 = 255

// NoAux is reported for an auxiliary analog channel that could not be read.
const NoAux uint16 = 0xFFFF

type Ambient struct {
	Kind        string // "SHT3X", "BME280" or "" when nothing answered
	Temperature float64
	Humidity    float64
	Pressure    float64 // hPa, NaN when the sensor has no barometer
	Online      bool
}

type Ground struct {
	Label       string
	Temperature float64
	Valid       bool
}

type Load struct {
	MilliVolts uint16
	MilliAmps  float64
}

type Readings struct {
	Ambient     [2]Ambient
	Ground      [2]Ground
	RainCount   int // tips since the last counter reset, -1 when the counter did not answer
	WindDegrees float64
	WindSector  uint8
	BatteryMV   uint16
	BatteryPct  uint8
	Load        Load
	Aux         [2]uint16 // mV, NoAux when unread
	Updated     time.Time
}

// NewReadings returns a record with every sensor marked unavailable.
func NewReadings() Readings {
	r := Readings{
		RainCount:   -1,
		WindDegrees: math.NaN(),
		WindSector:  NoSector,
		Aux:         [2]uint16{NoAux, NoAux},
	}
	for i := range r.Ambient {
		r.Ambient[i] = OfflineAmbient()
	}
	for i := range r.Ground {
		r.Ground[i] = Ground{Temperature: math.NaN()}
	}
	return r
}

func OfflineAmbient() Ambient {
	return Ambient{
		Temperature: math.NaN(),
		Humidity:    math.NaN(),
		Pressure:    math.NaN(),
	}
}

// Station is the single owner of the live readings.
type Station struct {
	mu       sync.RWMutex
	readings Readings
}

func NewStation() *Station {
	return &Station{readings: NewReadings()}
}

// Update applies fn to the live readings under the write lock.
func (s *Station) Update(fn func(r *Readings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.readings)
	s.readings.Updated = time.Now()
}

func (s *Station) Snapshot() Readings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings
}
