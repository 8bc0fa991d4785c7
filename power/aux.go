package power

import (
	"fmt"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// AuxChannels reads the auxiliary analog inputs through the multiplexer.
type AuxChannels struct {
	seq *Sequencer
	adc Sampler
}

func NewAuxChannels(seq *Sequencer, adc Sampler) *AuxChannels {
	return &AuxChannels{seq: seq, adc: adc}
}

// Read returns the millivolts on mux channel ch, or data.NoAux with an error.
func (a *AuxChannels) Read(ch int) (uint16, error) {
	if ch == env.MuxEmptyChannel {
		return data.NoAux, fmt.Errorf("aux channel [%d] is the isolation channel", ch)
	}
	if err := a.seq.SelectMultiplexerChannel(ch); err != nil {
		return data.NoAux, err
	}
	defer func() {
		if err := a.seq.SelectMultiplexerChannel(env.MuxEmptyChannel); err != nil {
			logger.Errorf("Failed to isolate mux after aux read [%v]", err)
		}
	}()
	s, err := a.adc.Read()
	if err != nil {
		return data.NoAux, fmt.Errorf("aux channel %d: %w", ch, err)
	}
	mv := float64(s.V) / float64(physic.MilliVolt)
	if mv < 0 {
		mv = 0
	}
	if mv >= float64(data.NoAux) {
		mv = float64(data.NoAux - 1)
	}
	return uint16(mv), nil
}
