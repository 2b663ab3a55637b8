package service

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/berfenger/solisflux/internal/core/domain"
)

// DefaultAmpHourConstant is the kWh moved per amp hour: 20A for one hour
// adds about 1kWh of charge.
const DefaultAmpHourConstant = 0.05

// Rand picks the random offset of a period with no sync anchor.
type Rand interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

// SeededRand is a reproducible source shared by all planners.
func SeededRand(seed uint64) Rand {
	return &lockedRand{rnd: rand.New(rand.NewPCG(seed, seed))}
}

type ScheduleCalculator struct {
	AmpHourConstant float64
	Rand            Rand
}

func NewScheduleCalculator(ampHourConstant float64, rnd Rand) *ScheduleCalculator {
	if ampHourConstant <= 0 {
		ampHourConstant = DefaultAmpHourConstant
	}
	if rnd == nil {
		rnd = globalRand{}
	}
	return &ScheduleCalculator{
		AmpHourConstant: ampHourConstant,
		Rand:            rnd,
	}
}

// ChargeTimes computes the charge interval needed to lift the battery from
// currentKWh to targetKWh, capped by the battery capacity and the period.
func (c *ScheduleCalculator) ChargeTimes(p domain.Period, fullKWh, currentKWh, targetKWh float64) domain.ScheduleResult {
	if targetKWh <= 0 {
		return domain.OffSchedule(currentKWh)
	}
	gap := targetKWh - currentKWh
	if gap <= 0 {
		return domain.OffSchedule(currentKWh)
	}
	if gap > fullKWh-currentKWh {
		gap = fullKWh - currentKWh
	}
	start, end, minutes := c.StartEndFromMinutes(p, c.minutesFor(gap, p.CurrentAmps))
	return domain.ScheduleResult{
		Start:          start,
		End:            end,
		Minutes:        minutes,
		EnergyAfterKWh: currentKWh + c.energyFor(minutes, p.CurrentAmps),
	}
}

// DischargeTimes computes the discharge interval needed to bring the
// battery down from currentKWh to targetKWh within the period.
func (c *ScheduleCalculator) DischargeTimes(p domain.Period, currentKWh, targetKWh float64) domain.ScheduleResult {
	if targetKWh <= 0 {
		return domain.OffSchedule(currentKWh)
	}
	gap := currentKWh - targetKWh
	if gap <= 0 {
		return domain.OffSchedule(currentKWh)
	}
	start, end, minutes := c.StartEndFromMinutes(p, c.minutesFor(gap, p.CurrentAmps))
	return domain.ScheduleResult{
		Start:          start,
		End:            end,
		Minutes:        minutes,
		EnergyAfterKWh: currentKWh - c.energyFor(minutes, p.CurrentAmps),
	}
}

// Times dispatches on the period direction.
func (c *ScheduleCalculator) Times(p domain.Period, ev domain.EnergyValues, targetKWh float64) domain.ScheduleResult {
	if p.IsCharge() {
		return c.ChargeTimes(p, ev.FullKWh, ev.CurrentKWh, targetKWh)
	}
	return c.DischargeTimes(p, ev.CurrentKWh, targetKWh)
}

// StartEndFromMinutes places an interval of the given length inside the
// period according to its sync policy. The returned minutes are clamped to
// the period duration; zero minutes yields the off schedule.
func (c *ScheduleCalculator) StartEndFromMinutes(p domain.Period, minutes int) (domain.HHMM, domain.HHMM, int) {
	duration := p.Duration()
	if minutes > duration {
		minutes = duration
	}
	if minutes <= 0 {
		return domain.Off, domain.Off, 0
	}
	var start domain.HHMM
	switch p.Sync {
	case domain.SyncStart:
		start = p.Start
	case domain.SyncEnd:
		start = p.End.Add(-minutes)
	default:
		offset := 0
		if slack := duration - minutes; slack > 0 {
			offset = c.Rand.IntN(slack + 1)
		}
		start = p.Start.Add(offset)
	}
	return start, start.Add(minutes), minutes
}

// LimitTimes clamps externally supplied times into the period. Empty
// strings mean unset and default to the period bounds, while "00:00" for
// both ends means explicitly off and passes through.
func LimitTimes(p domain.Period, start, end string) (domain.HHMM, domain.HHMM, error) {
	if start == "" && end == "" {
		return p.Start, p.End, nil
	}
	s, e := p.Start, p.End
	var err error
	if start != "" {
		if s, err = domain.ParseHHMM(start); err != nil {
			return 0, 0, err
		}
	}
	if end != "" {
		if e, err = domain.ParseHHMM(end); err != nil {
			return 0, 0, err
		}
	}
	if s == domain.Off && e == domain.Off {
		return domain.Off, domain.Off, nil
	}
	duration := p.Duration()
	startOffset := p.Start.DiffTo(s)
	if startOffset > duration {
		s = p.Start
		startOffset = 0
	}
	endOffset := p.Start.DiffTo(e)
	if endOffset < startOffset || endOffset > duration {
		e = p.End
	}
	return s, e, nil
}

func (c *ScheduleCalculator) minutesFor(energyKWh float64, amps int) int {
	if amps <= 0 || energyKWh <= 0 {
		return 0
	}
	// truncate, tolerating float noise just below a whole minute
	return int(math.Floor(60.0*energyKWh/(float64(amps)*c.AmpHourConstant) + 1e-9))
}

func (c *ScheduleCalculator) energyFor(minutes, amps int) float64 {
	return float64(minutes) * float64(amps) * c.AmpHourConstant / 60.0
}
