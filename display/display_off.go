//go:build !debugdisplay

package display

import (
	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/power"
	"github.com/gr-butler/weathernode/transport"
)

const Enabled = false

// Display is compiled out without the debugdisplay tag. New returns nil.
type Display struct{}

func New(*power.SharedLine, func() transport.Stats) (*Display, error) {
	return nil, nil
}

func (*Display) Show(data.Readings) {}

func (*Display) Close() error { return nil }
