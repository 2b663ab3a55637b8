package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/berfenger/solisflux/internal/adapter/soliscloud"
	"github.com/berfenger/solisflux/internal/adapter/store"
	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/mqtt"
	"github.com/berfenger/solisflux/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCommands(t *testing.T) (*Commands, *soliscloud.TestInverterService, *bytes.Buffer) {
	cfg := util.LoadTestConfig()
	planner, err := cfg.CyclePlanner(mqtt.NewSensorCache(), store.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	svc := soliscloud.NewTestInverterService()
	out := &bytes.Buffer{}
	return NewCommands(svc, planner, out, zap.NewNop()), svc, out
}

func TestSetAppliesClampedSlot(t *testing.T) {
	cmds, svc, out := newTestCommands(t)

	result, err := cmds.Set(context.Background(), "Evening", 600, false)
	require.NoError(t, err)
	assert.True(t, result.IsOk())

	calls := svc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.DirectionDischarge, calls[0].Direction)
	assert.Equal(t, "16:00", calls[0].Slot.Start.String())
	assert.Equal(t, "19:00", calls[0].Slot.End.String())
	assert.Equal(t, 20, calls[0].Slot.Amps)
	assert.Equal(t, "Manual discharge from 16:00 to 19:00 (600 minutes) -> OK\n", out.String())
}

func TestSetTestModeDoesNotWrite(t *testing.T) {
	cmds, svc, out := newTestCommands(t)

	result, err := cmds.Set(context.Background(), "night", 90, true)
	require.NoError(t, err)
	assert.True(t, result.IsOk())
	assert.Empty(t, svc.Calls())
	assert.Equal(t, "Notional manual charge from 00:00 to 01:30 (90 minutes) -> OK\n", out.String())
}

func TestSetReportsApplyFailure(t *testing.T) {
	cmds, svc, _ := newTestCommands(t)
	svc.SetResults(domain.Err(domain.ErrorKindApply, "HTTP error setting charging times: 500"))

	result, err := cmds.Set(context.Background(), "night", 30, false)
	require.NoError(t, err)
	assert.False(t, result.IsOk())
	assert.Equal(t, domain.ErrorKindApply, result.Kind())
}

func TestSetRejectsBadInput(t *testing.T) {
	cmds, _, _ := newTestCommands(t)

	_, err := cmds.Set(context.Background(), "morning", 30, false)
	assert.ErrorIs(t, err, domain.ErrUnknownPeriod)

	_, err = cmds.Set(context.Background(), "night", -1, false)
	assert.Error(t, err)
}

func TestStatusAndClear(t *testing.T) {
	cmds, _, out := newTestCommands(t)
	ctx := context.Background()

	_, err := cmds.Set(ctx, "evening", 60, false)
	require.NoError(t, err)
	out.Reset()

	require.NoError(t, cmds.Status(ctx))
	status := out.String()
	assert.Contains(t, status, "Station:   Test station")
	assert.Contains(t, status, "Energy:    4.50kWh")
	assert.Contains(t, status, "Checks:    OK")
	assert.Contains(t, status, "Discharge 1  18:00-19:00 20A")

	out.Reset()
	assert.True(t, cmds.Clear(ctx).IsOk())
	assert.Equal(t, "Clear timeslots -> OK\n", out.String())

	out.Reset()
	require.NoError(t, cmds.Status(ctx))
	assert.NotContains(t, out.String(), "Discharge 1")
}
