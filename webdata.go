package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gr-butler/weathernode/buffer"
	"github.com/gr-butler/weathernode/sensors"
	"github.com/gr-butler/weathernode/wind"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
)

type ambientData struct {
	Kind     string   `json:"kind,omitempty"`
	Temp     *float64 `json:"temp_C,omitempty"`
	Humidity *float64 `json:"humidity_RH,omitempty"`
	Pressure *float64 `json:"pressure_hPa,omitempty"`
}

type groundData struct {
	Label string   `json:"label"`
	Temp  *float64 `json:"temp_C,omitempty"`
}

type historyData struct {
	Avg *float64 `json:"avg,omitempty"`
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type webdata struct {
	TimeNow    string         `json:"time"`
	Updated    string         `json:"updated,omitempty"`
	Cycle      uint32         `json:"cycle"`
	Joined     bool           `json:"joined"`
	LastFrame  string         `json:"last_frame,omitempty"`
	Ambient    []ambientData  `json:"ambient"`
	Ground     []groundData   `json:"ground"`
	RainCount  int            `json:"rain_count"`
	RainMM     float64        `json:"rain_mm"`
	WindDir    *float64       `json:"wind_dir,omitempty"`
	WindSector string         `json:"wind_sector"`
	BatteryMV  uint16         `json:"battery_mV"`
	BatteryPct uint8          `json:"battery_pct"`
	SolarMV    uint16         `json:"solar_mV"`
	SolarMA    float64        `json:"solar_mA"`
	Aux        []uint16       `json:"aux_mV"`
	History    map[string]any `json:"history"`
}

func (w *weatherstation) webdata() webdata {
	rd := w.station.Snapshot()
	rep := w.lastReport()

	wd := webdata{
		TimeNow:    time.Now().Format(time.RFC822),
		Cycle:      rep.Cycle,
		Joined:     rep.Joined,
		RainCount:  rd.RainCount,
		RainMM:     sensors.Accumulation(rd.RainCount).Float64(),
		WindDir:    finite(rd.WindDegrees),
		WindSector: wind.Sector(rd.WindSector).String(),
		BatteryMV:  rd.BatteryMV,
		BatteryPct: rd.BatteryPct,
		SolarMV:    rd.Load.MilliVolts,
		SolarMA:    rd.Load.MilliAmps,
		Aux:        rd.Aux[:],
		History: map[string]any{
			"battery_mV": history(w.battery),
			"solar_mA":   history(w.solar),
		},
	}
	if !rd.Updated.IsZero() {
		wd.Updated = rd.Updated.Format(time.RFC822)
	}
	if rep.Frame != nil {
		wd.LastFrame = rep.Frame.String()
	}
	for _, a := range rd.Ambient {
		ad := ambientData{Kind: a.Kind}
		if a.Online {
			ad.Temp = finite(a.Temperature)
			ad.Humidity = finite(a.Humidity)
			ad.Pressure = finite(a.Pressure)
		}
		wd.Ambient = append(wd.Ambient, ad)
	}
	for _, g := range rd.Ground {
		gd := groundData{Label: g.Label}
		if g.Valid {
			gd.Temp = finite(g.Temperature)
		}
		wd.Ground = append(wd.Ground, gd)
	}
	return wd
}

func history(b *buffer.SampleBuffer) historyData {
	avg, min, max, ok := b.GetAverageMinMax(0)
	if !ok {
		return historyData{}
	}
	return historyData{
		Avg: finite(float64(avg)),
		Min: finite(float64(min)),
		Max: finite(float64(max)),
	}
}

func (w *weatherstation) handler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	js, err := json.Marshal(w.webdata())
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Debugf("Web read: \n[%v]", string(js))
	_, _ = rw.Write(js) // not much we can do if this fails
}

func (w *weatherstation) mux(sendProm bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handler)
	if sendProm {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

// serve runs the status web service until ctx is done.
func (w *weatherstation) serve(ctx context.Context, addr string, sendProm bool) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           w.mux(sendProm),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shut)
	}()
	logger.Infof("Starting webservice on [%v] metrics [%v]", addr, sendProm)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Webservice failed [%v]", err)
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
