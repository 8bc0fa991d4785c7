package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gr-butler/weathernode/archive"
	"github.com/gr-butler/weathernode/buffer"
	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/display"
	"github.com/gr-butler/weathernode/env"
	"github.com/gr-butler/weathernode/metrics"
	"github.com/gr-butler/weathernode/scheduler"
	"github.com/gr-butler/weathernode/sensors"
	"github.com/gr-butler/weathernode/transport"
	"github.com/gr-butler/weathernode/wind"
	logger "github.com/sirupsen/logrus"
)

// number of group A wakes kept for the web page history
const historySize = 360

type weatherstation struct {
	cfg      env.Config
	bootID   uuid.UUID
	s        *sensors.Sensors
	station  *data.Station
	sched    *scheduler.Scheduler
	uplink   scheduler.Uplink
	radio    *transport.MQTT
	archive  *archive.Postgres
	display  *display.Display
	battery  *buffer.SampleBuffer
	solar    *buffer.SampleBuffer
	testMode bool

	mu   sync.Mutex
	last scheduler.Report
}

// newWeatherstation brings up the sensors and every uplink the environment
// asks for. Only a sensor failure is fatal.
func newWeatherstation(ctx context.Context, a env.Args, sleeper scheduler.Sleeper) (*weatherstation, error) {
	cfg, err := env.Load(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	if id, ok := os.LookupEnv("STATION_ID"); ok && id != "" {
		cfg.StationID = id
	}
	ep := env.LookupEndpoints()

	w := &weatherstation{
		cfg:      cfg,
		bootID:   uuid.New(),
		station:  data.NewStation(),
		testMode: a.Test,
		battery:  buffer.NewBuffer(historySize),
		solar:    buffer.NewBuffer(historySize),
	}
	logger.Infof("Station [%v] boot [%v]", cfg.StationID, w.bootID)

	w.s = &sensors.Sensors{}
	if err := w.s.InitSensors(cfg); err != nil {
		logger.Errorf("Failed to initialise sensors!! [%v]", err)
		return nil, err
	}

	w.uplink = w.setupUplink(ctx, ep)

	hw := scheduler.Hardware{
		Power:   w.s,
		Rain:    w.s.Rain,
		Battery: w.s.Battery,
		Load:    w.s.Load,
		Wind:    wind.NewAverager(w.s.Vane, cfg.Wind),
		Aux:     w.s.Aux,
		Ambient: w.s.Atm,
		Ground:  w.s.Ground,
	}
	w.sched = scheduler.New(cfg, w.station, hw, w.uplink, sleeper)
	w.sched.SetObserver(observers{metrics.NewObserver(w.station), w})

	if cfg.DebugDisplay {
		w.setupDisplay()
	}
	return w, nil
}

func (w *weatherstation) setupUplink(ctx context.Context, ep env.Endpoints) scheduler.Uplink {
	if w.testMode {
		logger.Info("TEST MODE")
		return &transport.Loopback{}
	}

	w.radio = transport.NewMQTT(ep, w.cfg.StationID, w.bootID)
	if err := w.radio.Connect(ctx); err != nil {
		// keeps retrying in the background
		logger.Warnf("MQTT not connected yet [%v]", err)
	}

	var secondaries []transport.Sink
	if ep.WowSiteID != "" && ep.WowPin != "" {
		secondaries = append(secondaries, transport.NewWOW(ep, version))
	} else {
		logger.Warn("SiteId and or pin not set! WOWSITEID and WOWPIN must be set for WOW uploads.")
	}
	if ep.ArchiveDSN != "" {
		a, err := archive.Open(ctx, ep.ArchiveDSN, w.cfg.StationID, w.bootID)
		if err != nil {
			logger.Errorf("Archive unavailable [%v]", err)
		} else {
			w.archive = a
			secondaries = append(secondaries, a)
		}
	}
	return transport.NewMulti(w.radio, secondaries...)
}

func (w *weatherstation) setupDisplay() {
	if !display.Enabled {
		logger.Warn("debug_display set but built without the debugdisplay tag")
		return
	}
	var stats func() transport.Stats
	if w.radio != nil {
		stats = w.radio.Stats
	}
	d, err := display.New(w.s.Shared, stats)
	if err != nil {
		logger.Errorf("Display unavailable [%v]", err)
		return
	}
	if d != nil {
		w.display = d
		w.sched.SetDisplay(d)
	}
}

// waitJoined polls the uplink until it reports joined or timeout passes.
func waitJoined(ctx context.Context, up scheduler.Uplink, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !up.IsJoined() {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
	return true
}

func (w *weatherstation) ObserveState(scheduler.State) {}

// ObserveReport keeps the history behind the web page.
func (w *weatherstation) ObserveReport(r scheduler.Report) {
	w.mu.Lock()
	w.last = r
	w.mu.Unlock()
	if !r.Effects.Has(scheduler.EffectReadA) {
		return
	}
	rd := w.station.Snapshot()
	w.battery.AddItem(float64(rd.BatteryMV))
	w.solar.AddItem(rd.Load.MilliAmps)
}

func (w *weatherstation) lastReport() scheduler.Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *weatherstation) Close() {
	if w.display != nil {
		if err := w.display.Close(); err != nil {
			logger.Errorf("Display close failed [%v]", err)
		}
	}
	if w.radio != nil {
		w.radio.Disconnect()
	}
	if w.archive != nil {
		if err := w.archive.Close(); err != nil {
			logger.Errorf("Archive close failed [%v]", err)
		}
	}
	if w.s != nil {
		if err := w.s.Close(); err != nil {
			logger.Errorf("Sensor close failed [%v]", err)
		}
	}
	logger.Info("Exiting...")
}

// observers fans scheduler notifications out in order.
type observers []scheduler.Observer

func (o observers) ObserveState(s scheduler.State) {
	for _, x := range o {
		x.ObserveState(s)
	}
}

func (o observers) ObserveReport(r scheduler.Report) {
	for _, x := range o {
		x.ObserveReport(r)
	}
}
