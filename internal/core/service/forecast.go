package service

import (
	"context"
	"fmt"
	"math"

	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultHistoryDays       = 7
	SERIES_FORECAST_ACCURACY = "forecast_accuracy"
	SERIES_FORECAST_TOMORROW = "forecast_tomorrow"
	SERIES_ENERGY_USE        = "energy_use"
	seriesForecastsSuffix    = "_forecasts"
)

func ForecastSeriesKey(period string) string {
	return period + seriesForecastsSuffix
}

type ForecastConfig struct {
	RemainingToday string
	Tomorrow       string
	ActualToday    string
	Uplift         float64
	HistoryDays    int
}

// ForecastEstimator turns the live "solar remaining today" value and the
// stored forecast history into an adjusted expected yield.
type ForecastEstimator struct {
	Config  ForecastConfig
	Sensors port.SensorReader
	Store   port.SeriesStore
	Logger  *zap.Logger
}

func NewForecastEstimator(cfg ForecastConfig, sensors port.SensorReader, store port.SeriesStore, logger *zap.Logger) *ForecastEstimator {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = DefaultHistoryDays
	}
	return &ForecastEstimator{Config: cfg, Sensors: sensors, Store: store, Logger: logger}
}

// GetForecast returns the forecast in kWh for the named period. When save is
// set a live value is appended to the period history.
func (e *ForecastEstimator) GetForecast(ctx context.Context, period string, save bool) (float64, error) {
	key := ForecastSeriesKey(period)
	forecast, ok := e.liveValue(e.Config.RemainingToday)
	if !ok {
		history, err := e.Store.GetSeries(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", key, err)
		}
		forecast = mean(history)
		e.Logger.Info(fmt.Sprintf("Forecast not available - using %.1fkWh (mean of last %d forecasts)", forecast, len(history)))
	} else if save {
		if _, err := e.Store.AppendSeries(ctx, key, Round1(forecast), e.Config.HistoryDays); err != nil {
			return 0, fmt.Errorf("saving %s: %w", key, err)
		}
	}
	if forecast == 0 {
		return 0, nil
	}
	m, err := e.Multiplier(ctx)
	if err != nil {
		return 0, err
	}
	return forecast * m, nil
}

// Multiplier is the mean tracked accuracy when a tomorrow entity is
// configured and history exists, else the fixed uplift, else 1.
func (e *ForecastEstimator) Multiplier(ctx context.Context) (float64, error) {
	if e.Config.Tomorrow != "" {
		acc, err := e.Store.GetSeries(ctx, SERIES_FORECAST_ACCURACY)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", SERIES_FORECAST_ACCURACY, err)
		}
		if len(acc) > 0 {
			return mean(acc), nil
		}
	}
	if e.Config.Uplift > 0 {
		return e.Config.Uplift, nil
	}
	return 1, nil
}

// RecordDaily tracks how the previous "tomorrow" forecast compared with the
// actual yield and stores today's "tomorrow" forecast for the next run.
func (e *ForecastEstimator) RecordDaily(ctx context.Context) error {
	if e.Config.Tomorrow == "" {
		return nil
	}
	if actual, ok := e.liveValue(e.Config.ActualToday); ok {
		predicted, err := e.Store.GetSeries(ctx, SERIES_FORECAST_TOMORROW)
		if err != nil {
			return fmt.Errorf("reading %s: %w", SERIES_FORECAST_TOMORROW, err)
		}
		if len(predicted) > 0 && predicted[len(predicted)-1] > 0 {
			ratio := actual / predicted[len(predicted)-1]
			acc, err := e.Store.AppendSeries(ctx, SERIES_FORECAST_ACCURACY, math.Round(ratio*1000)/1000, e.Config.HistoryDays)
			if err != nil {
				return fmt.Errorf("saving %s: %w", SERIES_FORECAST_ACCURACY, err)
			}
			e.Logger.Info("forecast accuracy updated",
				zap.Float64("actual", actual), zap.Float64("predicted", predicted[len(predicted)-1]),
				zap.Float64("ratio", ratio), zap.Float64("mean", mean(acc)))
		}
	}
	if tomorrow, ok := e.liveValue(e.Config.Tomorrow); ok {
		if err := e.Store.PutSeries(ctx, SERIES_FORECAST_TOMORROW, []float64{Round1(tomorrow)}); err != nil {
			return fmt.Errorf("saving %s: %w", SERIES_FORECAST_TOMORROW, err)
		}
	}
	return nil
}

func (e *ForecastEstimator) liveValue(entity string) (float64, bool) {
	if entity == "" || e.Sensors == nil {
		return 0, false
	}
	return e.Sensors.SensorValue(entity)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// Round1 rounds to one decimal as stored in the series.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
