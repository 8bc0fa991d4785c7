package power

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Line is a digital enable output, optionally wired active low.
type Line struct {
	name      string
	pin       gpio.PinIO
	activeLow bool
}

func NewLine(name string, pin gpio.PinIO, activeLow bool) *Line {
	return &Line{name: name, pin: pin, activeLow: activeLow}
}

// Set drives the line to its logical on or off level.
func (l *Line) Set(on bool) error {
	level := gpio.Level(on)
	if l.activeLow {
		level = !level
	}
	if err := l.pin.Out(level); err != nil {
		return fmt.Errorf("%s: %w", l.name, err)
	}
	return nil
}

// Float releases the line to a high impedance input.
func (l *Line) Float() error {
	if err := l.pin.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("%s: %w", l.name, err)
	}
	return nil
}

// On reports whether the line currently sits at its logical on level.
func (l *Line) On() bool {
	return bool(l.pin.Read()) != l.activeLow
}

func (l *Line) String() string {
	return l.name
}

type Owner int

const (
	OwnerNone Owner = iota
	OwnerSensors
	OwnerDisplay
)

func (o Owner) String() string {
	switch o {
	case OwnerSensors:
		return "sensors"
	case OwnerDisplay:
		return "display"
	default:
		return "none"
	}
}

// SharedLine arbitrates a line wired to two consumers. Only the current owner
// may drive it.
type SharedLine struct {
	mu    sync.Mutex
	line  *Line
	owner Owner
}

func NewSharedLine(line *Line) *SharedLine {
	return &SharedLine{line: line}
}

func (s *SharedLine) Acquire(o Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != OwnerNone && s.owner != o {
		return fmt.Errorf("%w: %s held by %s", ErrNotOwner, s.line, s.owner)
	}
	s.owner = o
	return nil
}

func (s *SharedLine) Release(o Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == o {
		s.owner = OwnerNone
	}
}

func (s *SharedLine) Owner() Owner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *SharedLine) Write(o Owner, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != o {
		return fmt.Errorf("%w: %s held by %s", ErrNotOwner, s.line, s.owner)
	}
	return s.line.Set(on)
}

func (s *SharedLine) On() bool {
	return s.line.On()
}
