package transport

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/gr-butler/weathernode/env"
	"github.com/gr-butler/weathernode/payload"
	"github.com/gr-butler/weathernode/sensors"
	logger "github.com/sirupsen/logrus"
)

/*
https://wow.metoffice.gov.uk/support/dataformats

All uploads carry siteid, siteAuthenticationKey, dateutc and softwaretype plus
at least one observation. dateutc is YYYY-mm-DD HH:mm:ss in UTC.
*/

const wowURL = "http://wow.metoffice.gov.uk/automaticreading?"

const (
	rd     = 287.1
	g      = 9.807 // gravity
	z0     = 24.71 // station height above sea level, m
	kelvin = 273.1
)

type weatherData struct {
	SiteId       string   `url:"siteid,omitempty"`
	AuthKey      string   `url:"siteAuthenticationKey,omitempty"`
	DateString   string   `url:"dateutc,omitempty"`
	SoftwareType string   `url:"softwaretype,omitempty"`
	PressureIn   *float64 `url:"baromin,omitempty"`
	Humidity     *float64 `url:"humidity,omitempty"`
	TempF        *float64 `url:"tempf,omitempty"`
	DewPointF    *float64 `url:"dewptf,omitempty"`
	RainIn       *float64 `url:"rainin,omitempty"`
	SoilTempF    *float64 `url:"soiltempf,omitempty"`
	WindDir      *float64 `url:"winddir,omitempty"`
}

// WOW forwards decoded frames to the Met Office Weather Observations Website,
// at most one every ReportFreqMin minutes.
type WOW struct {
	siteID   string
	pin      string
	software string
	baseURL  string
	client   *http.Client
	now      func() time.Time
	interval time.Duration
	last     time.Time
}

func NewWOW(ep env.Endpoints, software string) *WOW {
	return &WOW{
		siteID:   ep.WowSiteID,
		pin:      ep.WowPin,
		software: software,
		baseURL:  wowURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
		interval: env.ReportFreqMin * time.Minute,
	}
}

func (w *WOW) Send(frame []byte) error {
	rec, err := payload.Decode(frame)
	if err != nil {
		return err
	}
	if !w.last.IsZero() && w.now().Sub(w.last) < w.interval {
		logger.Debug("WOW upload skipped, too soon")
		return nil
	}
	vals, err := query.Values(w.prepData(rec))
	if err != nil {
		return fmt.Errorf("wow values: %w", err)
	}
	logger.Debugf("WOW data [%v]", vals)

	resp, err := w.client.Get(w.baseURL + vals.Encode())
	if err != nil {
		return fmt.Errorf("wow upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wow upload: HTTP %v", resp.Status)
	}
	w.last = w.now()
	return nil
}

func (w *WOW) prepData(rec payload.Record) *weatherData {
	// go magic date is Mon Jan 2 15:04:05 MST 2006
	wd := &weatherData{
		SiteId:       w.siteID,
		AuthKey:      w.pin,
		DateString:   w.now().UTC().Format("2006-01-02 15:04:05"),
		SoftwareType: w.software,
	}

	tempC, humidity := outdoor(rec)
	if !math.IsNaN(tempC) {
		wd.TempF = ptr(ctof(tempC))
	}
	if !math.IsNaN(humidity) {
		wd.Humidity = ptr(humidity)
		if !math.IsNaN(tempC) {
			//Td = T - ((100 - RH)/5.)
			wd.DewPointF = ptr(ctof(tempC - (100-humidity)/5.0))
		}
	}
	if p := rec.Ambient[1].Pressure; !math.IsNaN(p) {
		wd.PressureIn = ptr(mslp(p, tempC))
	}
	if tips := rec.Tips(); tips >= 0 {
		wd.RainIn = ptr(mmToIn(sensors.Accumulation(tips).Float64()))
	}
	if t := rec.Ground[1]; !math.IsNaN(t) {
		wd.SoilTempF = ptr(ctof(t))
	}
	if rec.WindSector != payload.NoSector {
		wd.WindDir = ptr(float64(rec.WindSector) * 22.5)
	}
	return wd
}

// outdoor picks the first ambient channel with a temperature.
func outdoor(rec payload.Record) (float64, float64) {
	for _, a := range rec.Ambient {
		if !math.IsNaN(a.Temperature) {
			return a.Temperature, a.Humidity
		}
	}
	return math.NaN(), math.NaN()
}

// mslp reduces station pressure in hPa to sea level, in inches of mercury.
// With no temperature a standard 15°C column is assumed.
func mslp(hPa, tempC float64) float64 {
	if math.IsNaN(tempC) {
		tempC = 15
	}
	H := (rd * (tempC + kelvin)) / g
	return hPa * env.HPaToInHg * math.Exp(z0/H)
}

func ctof(c float64) float64 {
	//(0°C × 9/5) + 32 = 32°F
	return (c * 9 / 5) + 32
}

func mmToIn(mm float64) float64 {
	return mm / env.MmToInch
}

func ptr(v float64) *float64 {
	return &v
}
