package scheduler

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	"github.com/gr-butler/weathernode/payload"
	"github.com/gr-butler/weathernode/power"
	logger "github.com/sirupsen/logrus"
)

type PowerSequencer interface {
	Enable(g power.Group) error
	Disable(g power.Group) error
	DisableAll() error
}

type BatteryReader interface {
	ReadBatteryPercent() (uint16, uint8, error)
}

type LoadReader interface {
	ReadLoadMeasurement() (data.Load, error)
}

type RainCounter interface {
	Count() int
	Reset() error
}

type WindReader interface {
	SampleAndAverage() (float64, uint8, error)
}

type AuxReader interface {
	Read(ch int) (uint16, error)
}

type AmbientReader interface {
	Read() [env.AmbientChannels]data.Ambient
}

type GroundReader interface {
	Read() [env.GroundThermCount]data.Ground
}

// Hardware is the set of sensor collaborators, grouped by the power group
// they sit on.
type Hardware struct {
	Power   PowerSequencer
	Rain    RainCounter    // A
	Battery BatteryReader  // A
	Load    LoadReader     // A
	Wind    WindReader     // A
	Aux     AuxReader      // A and C
	Ambient AmbientReader  // B
	Ground  GroundReader   // C
}

type Uplink interface {
	Send(frame []byte) error
	IsJoined() bool
}

type Display interface {
	Show(r data.Readings)
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Observer is told about every state entered and every finished wake.
type Observer interface {
	ObserveState(s State)
	ObserveReport(r Report)
}

// Report describes one wake.
type Report struct {
	Cycle   uint32
	Joined  bool
	Plan    Plan
	Visited []State
	Effects Effect
	Frame   *payload.Frame
	Sent    bool
	SendErr error
	Sleep   time.Duration
}

type Scheduler struct {
	mult     env.Multipliers
	timeUnit time.Duration
	station  *data.Station
	hw       Hardware
	uplink   Uplink
	sleeper  Sleeper
	display  Display
	observer Observer
	counter  uint32
	joined   bool
}

func New(cfg env.Config, st *data.Station, hw Hardware, up Uplink, sl Sleeper) *Scheduler {
	return &Scheduler{
		mult:     cfg.Multipliers,
		timeUnit: cfg.TimeUnit,
		station:  st,
		hw:       hw,
		uplink:   up,
		sleeper:  sl,
	}
}

func (s *Scheduler) SetDisplay(d Display) {
	s.display = d
}

func (s *Scheduler) SetObserver(o Observer) {
	s.observer = o
}

// Cycle is the counter value the next joined wake will use. Wakes spent
// waiting for the join do not count.
func (s *Scheduler) Cycle() uint32 {
	return s.counter
}

// Advance runs one complete wake from Idle back to Idle. The only error is a
// cancelled context while sleeping.
func (s *Scheduler) Advance(ctx context.Context) (Report, error) {
	if !s.joined && s.uplink.IsJoined() {
		logger.Info("Uplink joined")
		s.joined = true
	}
	in := Inputs{Joined: s.joined, Display: s.display != nil}
	rep := Report{Cycle: s.counter, Joined: s.joined}
	if s.joined {
		in.Plan = PlanFor(s.mult, s.counter)
		rep.Plan = in.Plan
	}

	state := Idle
	for {
		rep.Visited = append(rep.Visited, state)
		if s.observer != nil {
			s.observer.ObserveState(state)
		}
		next, eff := Next(state, in)
		rep.Effects |= eff
		err := s.apply(ctx, eff, &rep)
		if err != nil {
			return rep, err
		}
		if next == Idle {
			break
		}
		state = next
	}
	logger.Debugf("Cycle [%v] effects [%v] visited %v", rep.Cycle, rep.Effects, rep.Visited)
	if s.observer != nil {
		s.observer.ObserveReport(rep)
	}
	return rep, nil
}

// Run keeps waking until ctx is cancelled or, when cycles > 0, that many wakes
// have completed.
func (s *Scheduler) Run(ctx context.Context, cycles int) error {
	for n := 0; cycles <= 0 || n < cycles; n++ {
		if _, err := s.Advance(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Scheduler) apply(ctx context.Context, eff Effect, rep *Report) error {
	if eff.Has(EffectReadA) {
		s.readGroupA()
	}
	if eff.Has(EffectResetCounter) {
		if err := s.hw.Rain.Reset(); err != nil {
			logger.Errorf("Rain counter reset failed [%v]", err)
		}
	}
	if eff.Has(EffectReadB) {
		s.readGroupB()
	}
	if eff.Has(EffectReadC) {
		s.readGroupC()
	}
	if eff.Has(EffectShowDisplay) {
		s.display.Show(s.station.Snapshot())
	}
	if eff.Has(EffectEncode) {
		snap := s.station.Snapshot()
		f := payload.Encode(&snap)
		rep.Frame = &f
	}
	if eff.Has(EffectPowerDown) {
		if err := s.hw.Power.DisableAll(); err != nil {
			logger.Errorf("Power down failed [%v]", err)
		}
	}
	if eff.Has(EffectTransmit) && rep.Frame != nil {
		rep.SendErr = s.uplink.Send(rep.Frame.Bytes())
		rep.Sent = rep.SendErr == nil
		if rep.SendErr != nil {
			logger.Errorf("Uplink send failed [%v]", rep.SendErr)
		} else {
			logger.Infof("Sent frame cycle [%v] [%v]", rep.Cycle, rep.Frame)
		}
	}
	if eff.Has(EffectSleep) {
		if s.joined {
			s.counter++
		}
		rep.Sleep = s.timeUnit
		return s.sleeper.Sleep(ctx, s.timeUnit)
	}
	return nil
}

func (s *Scheduler) enable(g power.Group) {
	if err := s.hw.Power.Enable(g); err != nil {
		logger.Errorf("Group [%v] enable failed [%v]", g, err)
	}
}

func (s *Scheduler) disable(g power.Group) {
	if err := s.hw.Power.Disable(g); err != nil {
		logger.Errorf("Group [%v] disable failed [%v]", g, err)
	}
}

func (s *Scheduler) readGroupA() {
	s.enable(power.GroupA)
	defer s.disable(power.GroupA)

	count := s.hw.Rain.Count()
	mv, pct, battErr := s.hw.Battery.ReadBatteryPercent()
	if battErr != nil {
		logger.Errorf("Battery read failed [%v]", battErr)
	}
	load, loadErr := s.hw.Load.ReadLoadMeasurement()
	if loadErr != nil {
		logger.Errorf("Load read failed [%v]", loadErr)
	}
	deg, sector, windErr := s.hw.Wind.SampleAndAverage()
	if windErr != nil {
		logger.Errorf("Wind read failed [%v]", windErr)
		deg, sector = math.NaN(), data.NoSector
	}
	speed, auxErr := s.hw.Aux.Read(env.MuxWindSpeedCh)
	if auxErr != nil {
		logger.Errorf("Wind speed channel read failed [%v]", auxErr)
		speed = data.NoAux
	}

	s.station.Update(func(r *data.Readings) {
		r.RainCount = count
		if battErr == nil {
			r.BatteryMV, r.BatteryPct = mv, pct
		}
		r.Load = load
		r.WindDegrees, r.WindSector = deg, sector
		r.Aux[0] = speed
	})
}

func (s *Scheduler) readGroupB() {
	s.enable(power.GroupB)
	defer s.disable(power.GroupB)

	amb := s.hw.Ambient.Read()
	s.station.Update(func(r *data.Readings) {
		r.Ambient = amb
	})
}

func (s *Scheduler) readGroupC() {
	s.enable(power.GroupC)
	defer s.disable(power.GroupC)

	ground := s.hw.Ground.Read()
	soil, err := s.hw.Aux.Read(env.MuxSoilCh)
	if err != nil {
		logger.Errorf("Soil channel read failed [%v]", err)
		soil = data.NoAux
	}
	s.station.Update(func(r *data.Readings) {
		r.Ground = ground
		r.Aux[1] = soil
	})
}

type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep returns at once, for a single wake driven by an external timer.
type NoSleep struct{}

func (NoSleep) Sleep(context.Context, time.Duration) error {
	return nil
}
