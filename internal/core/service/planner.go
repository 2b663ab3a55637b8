package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/berfenger/solisflux/internal/core/domain"
	"go.uber.org/zap"
)

const (
	logMsg       = "Current energy %.1fkWh (%.0f%% SOC) -> set %s from %s to %s to reach %.1fkWh (%.0f%% SOC) target"
	logOffMsg    = "Current energy %.1fkWh (%.0f%% SOC) -> set %s off (%s to %s) because %s %.1fkWh (%.0f%% SOC) target"
	logErrMsg    = "Current energy %.1fkWh (%.0f%% SOC) -> error setting %s from %s to %s to reach %.1fkWh (%.0f%% SOC) target -> %s"
	logErrOffMsg = "Current energy %.1fkWh (%.0f%% SOC) -> error setting %s off (%s to %s) because %s %.1fkWh (%.0f%% SOC) target -> %s"
)

// CyclePlanner holds the pure part of a scheduling cycle: resolving the
// target level and turning telemetry into a checked schedule.
type CyclePlanner struct {
	Calculator  *ScheduleCalculator
	Forecast    *ForecastEstimator
	Requirement *RequirementResolver
	Periods     []domain.Period
	Limits      domain.Limits
	Logger      *zap.Logger
}

// Plan is a computed schedule for one period ready to be applied.
type Plan struct {
	Period   domain.Period
	LevelKWh float64
	Energy   domain.EnergyValues
	Schedule domain.ScheduleResult
	Check    domain.Result
}

// ResolveLevel computes the target energy level of a period. skip is set
// when no requirement data exists.
func (c *CyclePlanner) ResolveLevel(ctx context.Context, p domain.Period, save bool) (level float64, skip bool, err error) {
	required, err := c.Requirement.FindRequirement(ctx, p)
	if err != nil {
		return 0, false, err
	}
	if required < 0 {
		c.Logger.Info("no requirement data, skipping cycle", zap.String("period", p.Name))
		return 0, true, nil
	}
	return c.LevelFor(ctx, p, required, p.UseForecast, save)
}

// LevelFor applies the forecast to a known requirement.
func (c *CyclePlanner) LevelFor(ctx context.Context, p domain.Period, required float64, useForecast, save bool) (float64, bool, error) {
	ratio := p.MinReserveRatio
	if ratio <= 0 {
		ratio = DefaultMinReserveRatio
	}
	minReserve := required * ratio
	forecast := 0.0
	if useForecast && c.Forecast != nil {
		var err error
		if forecast, err = c.Forecast.GetForecast(ctx, p.Name, save); err != nil {
			return 0, false, err
		}
	}
	level := CalcLevel(required, forecast, minReserve)
	c.Logger.Info(fmt.Sprintf("Aim %.1fkWh (min %.1fkWh) - solar %s forecast %.1fkWh => target %.1fkWh",
		required, minReserve, p.Name, forecast, level))
	return level, false, nil
}

// Plan computes the schedule for the given level from fresh telemetry and
// runs the safety checks against it. A missing battery reading returns an
// error wrapping domain.ErrConfig.
func (c *CyclePlanner) Plan(p domain.Period, levelKWh float64, telemetry *domain.InverterTelemetry) (*Plan, error) {
	if telemetry == nil {
		return nil, fmt.Errorf("%w: not connected", domain.ErrConfig)
	}
	ev, err := telemetry.Battery.EnergyValues()
	if err != nil {
		return nil, err
	}
	return &Plan{
		Period:   p,
		LevelKWh: levelKWh,
		Energy:   ev,
		Schedule: c.Calculator.Times(p, ev, levelKWh),
		Check:    CheckAll(telemetry, c.Periods, c.Limits),
	}, nil
}

// Slot is the inverter timeslot value applying the plan.
func (p *Plan) Slot() domain.Timeslot {
	return domain.Timeslot{Start: p.Schedule.Start, End: p.Schedule.End, Amps: p.Period.CurrentAmps}
}

func (p *Plan) Preview() *domain.Preview {
	return &domain.Preview{
		Period:         p.Period.Name,
		Direction:      string(p.Period.Direction),
		Start:          p.Schedule.Start.String(),
		End:            p.Schedule.End.String(),
		LevelKWh:       p.LevelKWh,
		EnergyAfterKWh: p.Schedule.EnergyAfterKWh,
		CurrentKWh:     p.Energy.CurrentKWh,
		SoC:            p.Energy.SoC(),
		TargetSoC:      p.Energy.SoCFor(p.LevelKWh),
		Check:          p.Check.String(),
	}
}

// Outcome builds the published outcome and its log line.
func (p *Plan) Outcome(result domain.Result, test bool) domain.CycleOutcome {
	return domain.CycleOutcome{
		Period:     p.Period.Name,
		Schedule:   p.Schedule,
		LevelKWh:   p.LevelKWh,
		CurrentKWh: p.Energy.CurrentKWh,
		Result:     result,
		Message:    OutcomeMessage(p.Period.Direction, test, p.Energy, p.Schedule, p.LevelKWh, result),
	}
}

// OutcomeMessage renders the human readable result of a cycle.
func OutcomeMessage(direction domain.Direction, test bool, ev domain.EnergyValues, s domain.ScheduleResult, level float64, result domain.Result) string {
	action := string(direction)
	if test {
		action = "notional " + action
	}
	expl := "already above"
	if direction == domain.DirectionDischarge {
		expl = "already below"
	}
	soc, target := ev.SoC(), ev.SoCFor(level)
	start, end := s.Start.String(), s.End.String()
	switch {
	case result.IsOk() && s.IsOff():
		return fmt.Sprintf(logOffMsg, ev.CurrentKWh, soc, action, start, end, expl, level, target)
	case result.IsOk():
		return fmt.Sprintf(logMsg, ev.CurrentKWh, soc, action, start, end, level, target)
	case s.IsOff():
		return fmt.Sprintf(logErrOffMsg, ev.CurrentKWh, soc, action, start, end, expl, level, target, result)
	}
	return fmt.Sprintf(logErrMsg, ev.CurrentKWh, soc, action, start, end, level, target, result)
}

// ManualSlot places a fixed duration inside the period and clamps it.
func (c *CyclePlanner) ManualSlot(p domain.Period, minutes int) (domain.Timeslot, error) {
	start, end, _ := c.Calculator.StartEndFromMinutes(p, minutes)
	s, e, err := LimitTimes(p, start.String(), end.String())
	if err != nil {
		return domain.Timeslot{}, err
	}
	return domain.Timeslot{Start: s, End: e, Amps: p.CurrentAmps}, nil
}

// DailyUpdate runs the once a day history bookkeeping.
func (c *CyclePlanner) DailyUpdate(ctx context.Context) error {
	var errs []error
	if c.Forecast != nil {
		errs = append(errs, c.Forecast.RecordDaily(ctx))
	}
	if c.Requirement != nil {
		errs = append(errs, c.Requirement.RecordDaily(ctx))
	}
	return errors.Join(errs...)
}

func (c *CyclePlanner) Period(name string) (domain.Period, bool) {
	for _, p := range c.Periods {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Period{}, false
}
