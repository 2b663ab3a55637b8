package config

import (
	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/berfenger/solisflux/internal/core/service"
	"go.uber.org/zap"
)

// CyclePlanner assembles the planner for the configured periods.
func (c *Config) CyclePlanner(sensors port.SensorReader, st port.SeriesStore, logger *zap.Logger) (*service.CyclePlanner, error) {
	periods, err := c.Periods()
	if err != nil {
		return nil, err
	}
	return &service.CyclePlanner{
		Calculator:  service.NewScheduleCalculator(c.Battery.AmpHourConstant, service.SeededRand(c.Schedule.RandomSeed)),
		Forecast:    service.NewForecastEstimator(c.ForecastConfig(), sensors, st, logger),
		Requirement: service.NewRequirementResolver(c.ConsumptionConfig(), sensors, st, logger),
		Periods:     periods,
		Limits:      c.Limits(),
		Logger:      logger,
	}, nil
}
