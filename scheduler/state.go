package scheduler

import (
	"fmt"
	"strings"

	"github.com/gr-butler/weathernode/env"
)

type State int

const (
	Idle State = iota
	WaitForJoin
	ReadGroupA
	ReadGroupB
	ReadGroupC
	DisplayDebug
	PreparePayload
	PrepareSleep
	SendPayload
	SleepWait
	stateCount
)

var stateNames = [stateCount]string{
	Idle:           "Idle",
	WaitForJoin:    "WaitForJoin",
	ReadGroupA:     "ReadGroupA",
	ReadGroupB:     "ReadGroupB",
	ReadGroupC:     "ReadGroupC",
	DisplayDebug:   "DisplayDebug",
	PreparePayload: "PreparePayload",
	PrepareSleep:   "PrepareSleep",
	SendPayload:    "SendPayload",
	SleepWait:      "SleepWait",
}

func (s State) String() string {
	if s >= 0 && s < stateCount {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Effect is the hardware work a transition asks the scheduler to perform.
type Effect uint16

const (
	EffectReadA Effect = 1 << iota
	EffectResetCounter
	EffectReadB
	EffectReadC
	EffectShowDisplay
	EffectEncode
	EffectPowerDown
	EffectTransmit
	EffectSleep
)

var effectNames = []string{
	"readA", "resetCounter", "readB", "readC", "display", "encode", "powerDown", "transmit", "sleep",
}

func (e Effect) Has(f Effect) bool {
	return e&f != 0
}

func (e Effect) String() string {
	var parts []string
	for i, n := range effectNames {
		if e&(1<<uint(i)) != 0 {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Due reports whether an activity with divisor d runs on cycle c. A zero
// divisor never runs.
func Due(c, d uint32) bool {
	return d != 0 && c%d == 0
}

// Plan is the set of activities due on one cycle.
type Plan struct {
	GroupA       bool
	GroupB       bool
	GroupC       bool
	Transmit     bool
	CounterReset bool
}

func PlanFor(m env.Multipliers, c uint32) Plan {
	return Plan{
		GroupA:       Due(c, m.GroupA),
		GroupB:       Due(c, m.GroupB),
		GroupC:       Due(c, m.GroupC),
		Transmit:     Due(c, m.Transmit),
		CounterReset: Due(c, m.CounterReset),
	}
}

// Inputs is everything a transition may look at.
type Inputs struct {
	Joined  bool
	Display bool
	Plan    Plan
}

type transition func(in Inputs) (State, Effect)

var transitions = [stateCount]transition{
	Idle: func(in Inputs) (State, Effect) {
		if in.Joined {
			return ReadGroupA, 0
		}
		return WaitForJoin, 0
	},
	WaitForJoin: func(in Inputs) (State, Effect) {
		if in.Joined {
			return ReadGroupA, 0
		}
		return SleepWait, 0
	},
	ReadGroupA: func(in Inputs) (State, Effect) {
		var e Effect
		if in.Plan.GroupA {
			e |= EffectReadA
		}
		if in.Plan.CounterReset {
			e |= EffectResetCounter
		}
		return ReadGroupB, e
	},
	ReadGroupB: func(in Inputs) (State, Effect) {
		if in.Plan.GroupB {
			return ReadGroupC, EffectReadB
		}
		return ReadGroupC, 0
	},
	ReadGroupC: func(in Inputs) (State, Effect) {
		next := PreparePayload
		if in.Display {
			next = DisplayDebug
		}
		if in.Plan.GroupC {
			return next, EffectReadC
		}
		return next, 0
	},
	DisplayDebug: func(in Inputs) (State, Effect) {
		return PreparePayload, EffectShowDisplay
	},
	PreparePayload: func(in Inputs) (State, Effect) {
		if in.Plan.Transmit {
			return PrepareSleep, EffectEncode
		}
		return PrepareSleep, 0
	},
	PrepareSleep: func(in Inputs) (State, Effect) {
		if in.Plan.Transmit {
			return SendPayload, EffectPowerDown
		}
		return SleepWait, EffectPowerDown
	},
	SendPayload: func(in Inputs) (State, Effect) {
		return SleepWait, EffectTransmit
	},
	SleepWait: func(in Inputs) (State, Effect) {
		return Idle, EffectSleep
	},
}

// Next is the pure transition function for s.
func Next(s State, in Inputs) (State, Effect) {
	return transitions[s](in)
}
