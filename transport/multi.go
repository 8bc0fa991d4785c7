package transport

import (
	logger "github.com/sirupsen/logrus"
)

type Sink interface {
	Send(frame []byte) error
}

type Radio interface {
	Sink
	IsJoined() bool
}

// Multi sends every frame over the primary radio and copies it to each
// secondary sink. Only the primary decides whether the station is joined, and
// only its result is returned from Send.
type Multi struct {
	primary     Radio
	secondaries []Sink
}

func NewMulti(primary Radio, secondaries ...Sink) *Multi {
	return &Multi{primary: primary, secondaries: secondaries}
}

func (m *Multi) IsJoined() bool {
	return m.primary.IsJoined()
}

func (m *Multi) Send(frame []byte) error {
	err := m.primary.Send(frame)
	for _, s := range m.secondaries {
		if serr := s.Send(frame); serr != nil {
			logger.Warnf("Secondary sink failed [%v]", serr)
		}
	}
	return err
}

// Loopback is always joined and keeps the last frame instead of sending it.
type Loopback struct {
	Last  []byte
	Count int
}

func (l *Loopback) Send(frame []byte) error {
	l.Last = append(l.Last[:0], frame...)
	l.Count++
	logger.Infof("Loopback frame [%x]", frame)
	return nil
}

func (l *Loopback) IsJoined() bool { return true }
