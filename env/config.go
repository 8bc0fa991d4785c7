package env

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Multipliers holds the cycle divisors gating each activity. An activity with
// divisor d runs on every cycle c where c%d == 0.
type Multipliers struct {
	GroupA       uint32 `yaml:"group_a"`
	GroupB       uint32 `yaml:"group_b"`
	GroupC       uint32 `yaml:"group_c"`
	Transmit     uint32 `yaml:"transmit"`
	CounterReset uint32 `yaml:"counter_reset"`
}

type Pins struct {
	Vext           string   `yaml:"vext"`
	GroupA         string   `yaml:"group_a"`
	GroupB         string   `yaml:"group_b"`
	GroupC         string   `yaml:"group_c"`
	BatteryDivider string   `yaml:"battery_divider"`
	CounterReset   string   `yaml:"counter_reset"`
	MuxSelect      []string `yaml:"mux_select"`
}

// Breakpoint is one (voltage, percent) row of the battery discharge curve.
type Breakpoint struct {
	MilliVolts int `yaml:"mv"`
	Percent    int `yaml:"pct"`
}

type Battery struct {
	Calibration float64      `yaml:"calibration"`
	Table       []Breakpoint `yaml:"table"`
}

type Wind struct {
	NorthOffset float64 `yaml:"north_offset"`
	Samples     int     `yaml:"samples"`
}

// GroundSlot binds a DS18B20 ROM code to a fixed reading slot.
type GroundSlot struct {
	Label string `yaml:"label"`
	ROM   string `yaml:"rom"`
}

type Config struct {
	StationID    string        `yaml:"station_id"`
	I2CBus       string        `yaml:"i2c_bus"`
	TimeUnit     time.Duration `yaml:"time_unit"`
	Multipliers  Multipliers   `yaml:"multipliers"`
	Pins         Pins          `yaml:"pins"`
	Battery      Battery       `yaml:"battery"`
	Wind         Wind          `yaml:"wind"`
	Ground       []GroundSlot  `yaml:"ground"`
	DebugDisplay bool          `yaml:"debug_display"`
}

// DefaultBatteryTable is the single-cell Li-ion discharge curve.
func DefaultBatteryTable() []Breakpoint {
	return []Breakpoint{
		{4200, 100},
		{4060, 90},
		{3980, 80},
		{3830, 60},
		{3740, 40},
		{3650, 20},
		{3550, 10},
		{3450, 0},
	}
}

func Default() Config {
	return Config{
		StationID: "station-01",
		TimeUnit:  TimeUnit,
		Multipliers: Multipliers{
			GroupA:       GroupAMult,
			GroupB:       GroupBMult,
			GroupC:       GroupCMult,
			Transmit:     TransmitMult,
			CounterReset: CounterResetMult,
		},
		Pins: Pins{
			Vext:           VextPin,
			GroupA:         GroupAPin,
			GroupB:         GroupBPin,
			GroupC:         GroupCPin,
			BatteryDivider: BatteryDividerPin,
			CounterReset:   CounterResetPin,
			MuxSelect:      []string{GPIO5, GPIO6, GPIO13, GPIO19},
		},
		Battery: Battery{
			Calibration: VoltageCalibration,
			Table:       DefaultBatteryTable(),
		},
		Wind: Wind{
			Samples: WindSamples,
		},
		Ground: []GroundSlot{
			{Label: "T_3m", ROM: "28 4B 24 BB 00 00 00 71"},
			{Label: "T_1m", ROM: "28 FF A3 6C 00 00 00 B7"},
		},
	}
}

// Load overlays the YAML file at path onto the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	m := c.Multipliers
	for name, d := range map[string]uint32{
		"group_a":       m.GroupA,
		"group_b":       m.GroupB,
		"group_c":       m.GroupC,
		"transmit":      m.Transmit,
		"counter_reset": m.CounterReset,
	} {
		if d == 0 {
			return fmt.Errorf("%w: multiplier %s must be non-zero", ErrInvalidConfig, name)
		}
	}
	if c.TimeUnit <= 0 {
		return fmt.Errorf("%w: time_unit must be positive", ErrInvalidConfig)
	}
	if len(c.Pins.MuxSelect) != MuxSelectLines {
		return fmt.Errorf("%w: mux_select needs %d pins, got %d", ErrInvalidConfig, MuxSelectLines, len(c.Pins.MuxSelect))
	}
	if c.Battery.Calibration <= 0 {
		return fmt.Errorf("%w: battery calibration must be positive", ErrInvalidConfig)
	}
	if err := ValidateTable(c.Battery.Table); err != nil {
		return err
	}
	if c.Wind.Samples <= 0 {
		return fmt.Errorf("%w: wind samples must be positive", ErrInvalidConfig)
	}
	if len(c.Ground) > GroundThermCount {
		return fmt.Errorf("%w: at most %d ground slots", ErrInvalidConfig, GroundThermCount)
	}
	for _, g := range c.Ground {
		if _, err := g.Address(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTable checks a battery curve is strictly descending in voltage and
// non-increasing in percent within [0,100].
func ValidateTable(t []Breakpoint) error {
	if len(t) < 2 {
		return fmt.Errorf("%w: battery table needs at least 2 rows", ErrInvalidConfig)
	}
	for i, b := range t {
		if b.Percent < 0 || b.Percent > 100 {
			return fmt.Errorf("%w: battery row %d percent [%v] outside 0..100", ErrInvalidConfig, i, b.Percent)
		}
		if i == 0 {
			continue
		}
		if b.MilliVolts >= t[i-1].MilliVolts {
			return fmt.Errorf("%w: battery row %d voltage not descending", ErrInvalidConfig, i)
		}
		if b.Percent > t[i-1].Percent {
			return fmt.Errorf("%w: battery row %d percent increases", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Address returns the ROM as the little-endian 64 bit 1-wire address, family
// code in the low byte.
func (g GroundSlot) Address() (uint64, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(g.ROM)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: ground slot %s rom [%v]: %v", ErrInvalidConfig, g.Label, g.ROM, err)
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: ground slot %s rom must be 8 bytes", ErrInvalidConfig, g.Label)
	}
	return binary.LittleEndian.Uint64(b), nil
}
