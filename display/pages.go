package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/sensors"
	"github.com/gr-butler/weathernode/transport"
	"github.com/gr-butler/weathernode/wind"
)

const PageCount = 5

var titles = [PageCount]string{"Rain/Wind", "Power", "Ambient", "Ground", "Uplink"}

// Page renders page n of the status display. n wraps.
func Page(n int, r data.Readings, st transport.Stats) string {
	n = ((n % PageCount) + PageCount) % PageCount
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d/%d] %s: ", n+1, PageCount, titles[n])

	switch n {
	case 0:
		if r.RainCount < 0 {
			sb.WriteString("rain ---")
		} else {
			fmt.Fprintf(&sb, "rain %d tips %.1fmm", r.RainCount, sensors.Accumulation(r.RainCount).Float64())
		}
		fmt.Fprintf(&sb, " wind %s %s", value(r.WindDegrees, "°"), wind.Sector(r.WindSector))
	case 1:
		fmt.Fprintf(&sb, "batt %dmV %d%% solar %dmV %.1fmA",
			r.BatteryMV, r.BatteryPct, r.Load.MilliVolts, r.Load.MilliAmps)
	case 2:
		for i, a := range r.Ambient {
			if !a.Online {
				fmt.Fprintf(&sb, "ch%d offline ", i+1)
				continue
			}
			fmt.Fprintf(&sb, "ch%d %s %s %s ", i+1, a.Kind, value(a.Temperature, "C"), value(a.Humidity, "%"))
			if !math.IsNaN(a.Pressure) {
				fmt.Fprintf(&sb, "%s ", value(a.Pressure, "hPa"))
			}
		}
	case 3:
		for _, g := range r.Ground {
			if g.Valid {
				fmt.Fprintf(&sb, "%s %.2fC ", g.Label, g.Temperature)
			} else {
				fmt.Fprintf(&sb, "%s --- ", g.Label)
			}
		}
	case 4:
		fmt.Fprintf(&sb, "up %d failed %d down %d", st.Uplinks, st.Failed, st.Downlinks)
		if st.LastErr != nil {
			fmt.Fprintf(&sb, " last error %v", st.LastErr)
		}
	}
	return strings.TrimSpace(sb.String())
}

func value(v float64, unit string) string {
	if math.IsNaN(v) {
		return "---"
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}
