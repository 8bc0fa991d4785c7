package power

import (
	"errors"
	"fmt"
	"time"

	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

var ErrNotOwner = errors.New("line not owned by caller")

type Group int

const (
	GroupA Group = iota
	GroupB
	GroupC
)

func (g Group) String() string {
	switch g {
	case GroupA:
		return "A"
	case GroupB:
		return "B"
	case GroupC:
		return "C"
	}
	return fmt.Sprintf("Group(%d)", int(g))
}

// Sequencer switches the sensor power groups and the analog multiplexer.
// Group B's enable is the display reset line and goes through SharedLine.
type Sequencer struct {
	vext   *Line
	groupA *Line
	groupB *SharedLine
	groupC *Line
	mux    []gpio.PinIO
	Delay  func(time.Duration)
}

func NewSequencer(vext, groupA *Line, groupB *SharedLine, groupC *Line, mux []gpio.PinIO) *Sequencer {
	return &Sequencer{
		vext:   vext,
		groupA: groupA,
		groupB: groupB,
		groupC: groupC,
		mux:    mux,
		Delay:  time.Sleep,
	}
}

// Enable raises the upstream rail, waits for it to settle and then switches the
// group on. Group B is left alone while the display holds the shared line.
func (s *Sequencer) Enable(g Group) error {
	if g == GroupB && s.groupB.Owner() == OwnerDisplay {
		logger.Infof("Group [%v] enable skipped, display owns the shared line", g)
		return nil
	}
	if err := s.vext.Set(true); err != nil {
		return fmt.Errorf("enable group %v: %w", g, err)
	}
	s.Delay(env.RailSettle)

	var err error
	switch g {
	case GroupA:
		err = s.groupA.Set(true)
	case GroupB:
		if err = s.groupB.Acquire(OwnerSensors); err == nil {
			err = s.groupB.Write(OwnerSensors, true)
		}
	case GroupC:
		err = s.groupC.Set(true)
	default:
		err = fmt.Errorf("unknown group [%d]", int(g))
	}
	if err != nil {
		return fmt.Errorf("enable group %v: %w", g, err)
	}
	logger.Debugf("Group [%v] on", g)
	return nil
}

// Disable switches the group line off. The upstream rail stays up.
func (s *Sequencer) Disable(g Group) error {
	var err error
	switch g {
	case GroupA:
		err = s.groupA.Set(false)
	case GroupB:
		if s.groupB.Owner() != OwnerSensors {
			return nil
		}
		err = s.groupB.Write(OwnerSensors, false)
		s.groupB.Release(OwnerSensors)
	case GroupC:
		err = s.groupC.Set(false)
	default:
		err = fmt.Errorf("unknown group [%d]", int(g))
	}
	if err != nil {
		return fmt.Errorf("disable group %v: %w", g, err)
	}
	logger.Debugf("Group [%v] off", g)
	return nil
}

// DisableAll switches every sensor owned group off and drops the upstream rail.
// All lines are attempted even if one fails.
func (s *Sequencer) DisableAll() error {
	var errs []error
	for _, g := range []Group{GroupA, GroupB, GroupC} {
		if err := s.Disable(g); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.vext.Set(false); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SelectMultiplexerChannel drives the select lines with the bits of ch and
// waits for the analog path to settle.
func (s *Sequencer) SelectMultiplexerChannel(ch int) error {
	if ch < 0 || ch >= 1<<len(s.mux) {
		return fmt.Errorf("mux channel [%d] out of range", ch)
	}
	for i, p := range s.mux {
		if err := p.Out(gpio.Level(ch>>i&1 == 1)); err != nil {
			return fmt.Errorf("mux select %d: %w", i, err)
		}
	}
	s.Delay(env.MuxSettle)
	return nil
}
