package service

import (
	"context"
	"fmt"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SkipRequirement is returned when no requirement data exists. The cycle is
// a deliberate no-op.
const SkipRequirement = -1.0

const DefaultMinReserveRatio = 0.25

type ConsumptionConfig struct {
	DailyKWh        float64
	DailyGridEnergy string
	HistoryDays     int
}

type RequirementResolver struct {
	Config  ConsumptionConfig
	Sensors port.SensorReader
	Store   port.SeriesStore
	Logger  *zap.Logger
}

func NewRequirementResolver(cfg ConsumptionConfig, sensors port.SensorReader, store port.SeriesStore, logger *zap.Logger) *RequirementResolver {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = DefaultHistoryDays
	}
	return &RequirementResolver{Config: cfg, Sensors: sensors, Store: store, Logger: logger}
}

// FindRequirement returns the energy in kWh needed after the period starts,
// or SkipRequirement.
func (r *RequirementResolver) FindRequirement(ctx context.Context, p domain.Period) (float64, error) {
	if p.Requirement.IsSet() {
		v, ok := p.Requirement.Resolve(r.Sensors)
		if !ok {
			r.Logger.Info("requirement entity unavailable", zap.String("period", p.Name), zap.String("entity", p.Requirement.Entity()))
			return SkipRequirement, nil
		}
		return v, nil
	}

	daily, err := r.dailyConsumption(ctx)
	if err != nil {
		return 0, err
	}
	if daily < 0 {
		return SkipRequirement, nil
	}
	remaining := float64(domain.MinutesPerDay-int(p.Start)) / float64(domain.MinutesPerDay)
	return daily * remaining, nil
}

func (r *RequirementResolver) dailyConsumption(ctx context.Context) (float64, error) {
	if r.Config.DailyKWh > 0 {
		return r.Config.DailyKWh, nil
	}
	history, err := r.Store.GetSeries(ctx, SERIES_ENERGY_USE)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", SERIES_ENERGY_USE, err)
	}
	if len(history) > 0 {
		return lo.Max(history), nil
	}
	if r.Config.DailyGridEnergy != "" && r.Sensors != nil {
		if v, ok := r.Sensors.SensorValue(r.Config.DailyGridEnergy); ok {
			return v, nil
		}
	}
	return SkipRequirement, nil
}

// RecordDaily appends today's grid energy reading to the energy use series.
func (r *RequirementResolver) RecordDaily(ctx context.Context) error {
	if r.Config.DailyGridEnergy == "" || r.Sensors == nil {
		return nil
	}
	v, ok := r.Sensors.SensorValue(r.Config.DailyGridEnergy)
	if !ok {
		r.Logger.Warn("daily grid energy unavailable", zap.String("entity", r.Config.DailyGridEnergy))
		return nil
	}
	if _, err := r.Store.AppendSeries(ctx, SERIES_ENERGY_USE, Round1(v), r.Config.HistoryDays); err != nil {
		return fmt.Errorf("saving %s: %w", SERIES_ENERGY_USE, err)
	}
	return nil
}

// CalcLevel reduces the required level by the forecast, never going below
// minRequired.
func CalcLevel(maxRequired, forecast, minRequired float64) float64 {
	level := maxRequired
	if forecast > 0 {
		level = maxRequired - forecast
	}
	if level < minRequired {
		level = minRequired
	}
	return level
}
