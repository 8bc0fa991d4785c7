//go:build debugdisplay

package display

import (
	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/power"
	"github.com/gr-butler/weathernode/transport"
	logger "github.com/sirupsen/logrus"
)

const Enabled = true

// Display shows one status page per wake, cycling through them. While it is
// open it owns the shared Group B line, so Group B sensors stay unpowered.
type Display struct {
	shared *power.SharedLine
	stats  func() transport.Stats
	page   int
}

func New(shared *power.SharedLine, stats func() transport.Stats) (*Display, error) {
	if err := shared.Acquire(power.OwnerDisplay); err != nil {
		return nil, err
	}
	if err := shared.Write(power.OwnerDisplay, true); err != nil {
		shared.Release(power.OwnerDisplay)
		return nil, err
	}
	logger.Warn("Debug display active, Group B sensors disabled")
	return &Display{shared: shared, stats: stats}, nil
}

func (d *Display) Show(r data.Readings) {
	var st transport.Stats
	if d.stats != nil {
		st = d.stats()
	}
	logger.Info(Page(d.page, r, st))
	d.page = (d.page + 1) % PageCount
}

func (d *Display) Close() error {
	err := d.shared.Write(power.OwnerDisplay, false)
	d.shared.Release(power.OwnerDisplay)
	return err
}
