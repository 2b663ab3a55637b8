package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPlanner(sensors mapSensors, store *memSeries, periods ...domain.Period) *CyclePlanner {
	logger := zap.Must(zap.NewDevelopment())
	return &CyclePlanner{
		Calculator:  NewScheduleCalculator(0.05, &fixedRand{}),
		Forecast:    NewForecastEstimator(ForecastConfig{RemainingToday: solarRemaining}, sensors, store, logger),
		Requirement: NewRequirementResolver(ConsumptionConfig{DailyGridEnergy: gridEnergy}, sensors, store, logger),
		Periods:     periods,
		Limits:      domain.Limits{InverterMaxCurrent: 100, BatteryMaxCurrent: 100, MaxClockSkew: 5 * time.Minute},
		Logger:      logger,
	}
}

func testTelemetry(soc, ods float64) *domain.InverterTelemetry {
	now := time.Date(2024, 3, 10, 23, 40, 0, 0, time.UTC)
	return &domain.InverterTelemetry{
		Battery: domain.BatteryState{
			CapacityKWh:          10,
			SoCPercent:           domain.Float(soc),
			OverDischargePercent: domain.Float(ods),
		},
		InverterPower: domain.Float(0),
		InverterTime:  now,
		HostTime:      now,
	}
}

func TestResolveLevel(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	store := newMemSeries()
	sensors := mapSensors{solarRemaining: 3.0}
	p := period("morning", domain.DirectionCharge, "00:00", "06:00", 25, domain.SyncStart)
	p.Requirement = domain.LiteralRef(8)
	planner := newTestPlanner(sensors, store, p)

	level, skip, err := planner.ResolveLevel(ctx, p, true)
	require.NoError(err)
	require.False(skip)
	require.InDelta(5.0, level, 1e-9)

	h, _ := store.GetSeries(ctx, ForecastSeriesKey("morning"))
	require.Equal([]float64{3.0}, h)

	// forecast larger than the need keeps the minimum reserve
	sensors[solarRemaining] = 20
	level, _, _ = planner.ResolveLevel(ctx, p, false)
	require.InDelta(2.0, level, 1e-9)

	p.UseForecast = false
	level, _, _ = planner.ResolveLevel(ctx, p, false)
	require.InDelta(8.0, level, 1e-9)

	p.Requirement = domain.ValueRef{}
	_, skip, err = planner.ResolveLevel(ctx, p, false)
	require.NoError(err)
	require.True(skip)
}

func TestPlanAndOutcome(t *testing.T) {

	assert := assert.New(t)

	p := period("morning", domain.DirectionCharge, "00:00", "06:00", 25, domain.SyncStart)
	planner := newTestPlanner(mapSensors{}, newMemSeries(), p)

	plan, err := planner.Plan(p, 7.0, testTelemetry(50, 5))
	assert.NoError(err)
	assert.True(plan.Check.IsOk())
	assert.Equal(domain.Timeslot{Start: domain.MustParseHHMM("00:00"), End: domain.MustParseHHMM("02:00"), Amps: 25}, plan.Slot())

	o := plan.Outcome(domain.Ok(), false)
	assert.Equal("Current energy 4.5kWh (50% SOC) -> set charge from 00:00 to 02:00 to reach 7.0kWh (75% SOC) target", o.Message)
	assert.Equal("morning", o.Period)

	o = plan.Outcome(domain.Err(domain.ErrorKindApply, "boom"), true)
	assert.Equal("Current energy 4.5kWh (50% SOC) -> error setting notional charge from 00:00 to 02:00 to reach 7.0kWh (75% SOC) target -> boom", o.Message)

	plan, _ = planner.Plan(p, 3.0, testTelemetry(50, 5))
	assert.True(plan.Schedule.IsOff())
	o = plan.Outcome(domain.Ok(), false)
	assert.Equal("Current energy 4.5kWh (50% SOC) -> set charge off (00:00 to 00:00) because already above 3.0kWh (35% SOC) target", o.Message)

	preview := plan.Preview()
	assert.Equal("00:00", preview.Start)
	assert.Equal("OK", preview.Check)
	assert.InDelta(4.5, preview.EnergyAfterKWh, 1e-9)
}

func TestPlanWithoutBatteryDetails(t *testing.T) {

	assert := assert.New(t)

	p := period("morning", domain.DirectionCharge, "00:00", "06:00", 25, domain.SyncStart)
	planner := newTestPlanner(mapSensors{}, newMemSeries(), p)

	telemetry := testTelemetry(50, 5)
	telemetry.Battery.SoCPercent = nil
	_, err := planner.Plan(p, 7.0, telemetry)
	assert.True(errors.Is(err, domain.ErrConfig))

	_, err = planner.Plan(p, 7.0, nil)
	assert.True(errors.Is(err, domain.ErrConfig))
}

func TestManualSlot(t *testing.T) {

	assert := assert.New(t)

	p := period("morning", domain.DirectionCharge, "02:00", "05:00", 25, domain.SyncStart)
	planner := newTestPlanner(mapSensors{}, newMemSeries(), p)

	slot, err := planner.ManualSlot(p, 90)
	assert.NoError(err)
	assert.Equal("02:00", slot.Start.String())
	assert.Equal("03:30", slot.End.String())
	assert.Equal(25, slot.Amps)

	slot, _ = planner.ManualSlot(p, 0)
	assert.True(slot.IsOff())

	slot, _ = planner.ManualSlot(p, 1000)
	assert.Equal("05:00", slot.End.String())
}

func TestDailyUpdate(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	store := newMemSeries()
	planner := newTestPlanner(mapSensors{gridEnergy: 14.2}, store)

	require.NoError(planner.DailyUpdate(ctx))
	h, _ := store.GetSeries(ctx, SERIES_ENERGY_USE)
	require.Equal([]float64{14.2}, h)
}
