package metrics

import (
	"math"
	"strconv"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

var Prom_cycle = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "station_cycle",
		Help: "Cycle counter of the last wake",
	},
)

var Prom_batteryMV = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "battery_millivolts",
		Help: "Battery voltage mV",
	},
)

var Prom_batteryPct = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "battery_percent",
		Help: "Battery state of charge %",
	},
)

var Prom_solarMV = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "solar_millivolts",
		Help: "Load bus voltage mV",
	},
)

var Prom_solarMA = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "solar_milliamps",
		Help: "Load current mA, negative when charging",
	},
)

var Prom_windDirection = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "winddirection",
		Help: "Wind Direction Deg",
	},
)

var Prom_windSector = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "windsector",
		Help: "Wind compass sector 0-15",
	},
)

var Prom_rainCount = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "rain_count",
		Help: "Rain gauge tips since the last counter reset",
	},
)

var Prom_temperature = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "temperature",
		Help: "Temperature C",
	},
	[]string{"channel"},
)

var Prom_humidity = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "relative_humidity",
		Help: "Relative Humidity",
	},
	[]string{"channel"},
)

var Prom_atmPresure = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "atmospheric_pressure",
		Help: "Atmospheric pressure hPa",
	},
)

var Prom_groundTemperature = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ground_temperature",
		Help: "Ground thermometer C",
	},
	[]string{"probe"},
)

var Prom_uplinks = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "uplinks_total",
		Help: "Frames sent",
	},
)

var Prom_uplinkFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "uplink_failures_total",
		Help: "Frames that could not be sent",
	},
)

var Prom_stateVisits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_state_visits_total",
		Help: "Scheduler states entered",
	},
	[]string{"state"},
)

func init() {
	prometheus.MustRegister(
		Prom_cycle,
		Prom_batteryMV,
		Prom_batteryPct,
		Prom_solarMV,
		Prom_solarMA,
		Prom_windDirection,
		Prom_windSector,
		Prom_rainCount,
		Prom_temperature,
		Prom_humidity,
		Prom_atmPresure,
		Prom_groundTemperature,
		Prom_uplinks,
		Prom_uplinkFailures,
		Prom_stateVisits)
}

// Observer publishes each finished wake. It reads the live readings from the
// station rather than the frame so values keep their full resolution.
type Observer struct {
	station *data.Station
}

func NewObserver(st *data.Station) *Observer {
	return &Observer{station: st}
}

func (o *Observer) ObserveState(s scheduler.State) {
	Prom_stateVisits.WithLabelValues(s.String()).Inc()
}

func (o *Observer) ObserveReport(r scheduler.Report) {
	if !r.Joined {
		return
	}
	Prom_cycle.Set(float64(r.Cycle))
	if r.Effects.Has(scheduler.EffectTransmit) {
		if r.Sent {
			Prom_uplinks.Inc()
		} else {
			Prom_uplinkFailures.Inc()
		}
	}

	rd := o.station.Snapshot()
	Prom_batteryMV.Set(float64(rd.BatteryMV))
	Prom_batteryPct.Set(float64(rd.BatteryPct))
	Prom_solarMV.Set(float64(rd.Load.MilliVolts))
	Prom_solarMA.Set(rd.Load.MilliAmps)
	Prom_rainCount.Set(float64(rd.RainCount))
	setIfValid(Prom_windDirection, rd.WindDegrees)
	if rd.WindSector != data.NoSector {
		Prom_windSector.Set(float64(rd.WindSector))
	}

	for i, a := range rd.Ambient {
		ch := strconv.Itoa(i + 1)
		if !a.Online {
			continue
		}
		setIfValid(Prom_temperature.WithLabelValues(ch), a.Temperature)
		setIfValid(Prom_humidity.WithLabelValues(ch), a.Humidity)
		if i == 1 {
			setIfValid(Prom_atmPresure, a.Pressure)
		}
	}
	for _, g := range rd.Ground {
		if g.Valid {
			Prom_groundTemperature.WithLabelValues(g.Label).Set(g.Temperature)
		}
	}
	logger.Debugf("Metrics updated for cycle [%v]", r.Cycle)
}

func setIfValid(g prometheus.Gauge, v float64) {
	if math.IsNaN(v) {
		return
	}
	g.Set(v)
}
