package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	solarRemaining = "sensor.solcast_remaining_today"
	solarTomorrow  = "sensor.solcast_forecast_tomorrow"
	solarActual    = "sensor.solar_energy_today"
)

func TestForecastFallsBackToHistoryMean(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	store := newMemSeries()
	require.NoError(store.PutSeries(ctx, ForecastSeriesKey("morning"), []float64{2.0, 3.0, 4.0}))

	e := NewForecastEstimator(ForecastConfig{RemainingToday: solarRemaining}, mapSensors{}, store, zap.Must(zap.NewDevelopment()))

	f, err := e.GetForecast(ctx, "morning", true)
	require.NoError(err)
	require.InDelta(3.0, f, 1e-9)

	// history untouched by the fallback path
	h, _ := store.GetSeries(ctx, ForecastSeriesKey("morning"))
	require.Equal([]float64{2.0, 3.0, 4.0}, h)
}

func TestForecastWithoutData(t *testing.T) {

	require := require.New(t)

	e := NewForecastEstimator(ForecastConfig{RemainingToday: solarRemaining, Uplift: 1.5}, mapSensors{}, newMemSeries(), zap.Must(zap.NewDevelopment()))

	f, err := e.GetForecast(context.Background(), "evening", false)
	require.NoError(err)
	require.Equal(0.0, f)
}

func TestForecastSavesLiveValue(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	store := newMemSeries()
	require.NoError(store.PutSeries(ctx, ForecastSeriesKey("morning"), []float64{1.0, 2.0, 3.0}))

	sensors := mapSensors{solarRemaining: 5.26}
	e := NewForecastEstimator(ForecastConfig{RemainingToday: solarRemaining, Uplift: 1.2, HistoryDays: 3}, sensors, store, zap.Must(zap.NewDevelopment()))

	f, err := e.GetForecast(ctx, "morning", false)
	require.NoError(err)
	require.InDelta(5.26*1.2, f, 1e-9)
	h, _ := store.GetSeries(ctx, ForecastSeriesKey("morning"))
	require.Equal([]float64{1.0, 2.0, 3.0}, h)

	_, err = e.GetForecast(ctx, "morning", true)
	require.NoError(err)
	h, _ = store.GetSeries(ctx, ForecastSeriesKey("morning"))
	require.Equal([]float64{2.0, 3.0, 5.3}, h)

	// other periods keep their own history
	h, _ = store.GetSeries(ctx, ForecastSeriesKey("evening"))
	require.Empty(h)
}

func TestForecastMultiplier(t *testing.T) {

	assert := assert.New(t)
	ctx := context.Background()

	store := newMemSeries()
	e := NewForecastEstimator(ForecastConfig{RemainingToday: solarRemaining}, mapSensors{}, store, zap.Must(zap.NewDevelopment()))

	m, err := e.Multiplier(ctx)
	assert.NoError(err)
	assert.Equal(1.0, m)

	e.Config.Uplift = 1.1
	m, _ = e.Multiplier(ctx)
	assert.Equal(1.1, m)

	// tomorrow entity without accuracy history keeps the uplift
	e.Config.Tomorrow = solarTomorrow
	m, _ = e.Multiplier(ctx)
	assert.Equal(1.1, m)

	assert.NoError(store.PutSeries(ctx, SERIES_FORECAST_ACCURACY, []float64{0.8, 1.0}))
	m, _ = e.Multiplier(ctx)
	assert.InDelta(0.9, m, 1e-9)
}

func TestForecastRecordDaily(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	store := newMemSeries()
	require.NoError(store.PutSeries(ctx, SERIES_FORECAST_TOMORROW, []float64{10.0}))

	sensors := mapSensors{solarTomorrow: 12.04, solarActual: 9.0}
	e := NewForecastEstimator(ForecastConfig{
		RemainingToday: solarRemaining,
		Tomorrow:       solarTomorrow,
		ActualToday:    solarActual,
	}, sensors, store, zap.Must(zap.NewDevelopment()))

	require.NoError(e.RecordDaily(ctx))

	acc, _ := store.GetSeries(ctx, SERIES_FORECAST_ACCURACY)
	require.Equal([]float64{0.9}, acc)
	next, _ := store.GetSeries(ctx, SERIES_FORECAST_TOMORROW)
	require.Equal([]float64{12.0}, next)

	// first day: nothing to compare against yet
	store = newMemSeries()
	e.Store = store
	require.NoError(e.RecordDaily(ctx))
	acc, _ = store.GetSeries(ctx, SERIES_FORECAST_ACCURACY)
	require.Empty(acc)
	next, _ = store.GetSeries(ctx, SERIES_FORECAST_TOMORROW)
	require.Equal([]float64{12.0}, next)
}
