package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/solisflux/internal/adapter/actor"
	"github.com/berfenger/solisflux/internal/adapter/soliscloud"
	"github.com/berfenger/solisflux/internal/adapter/store"
	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/service"
	"github.com/berfenger/solisflux/internal/mqtt"
	"github.com/berfenger/solisflux/internal/util"
	"github.com/berfenger/solisflux/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type plannerFixture struct {
	as       *actor.ActorSystem
	pid      *actor.PID
	svc      *soliscloud.TestInverterService
	outcomes chan domain.CycleOutcome
}

func newTestCyclePlanner(t *testing.T, logger *zap.Logger) *service.CyclePlanner {
	cfg := util.LoadTestConfig()
	planner, err := cfg.CyclePlanner(mqtt.NewSensorCache(), store.NewMemoryStore(), logger)
	require.NoError(t, err)
	return planner
}

func newPlannerFixture(t *testing.T, periodName string, retryDelay time.Duration) *plannerFixture {
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	planner := newTestCyclePlanner(t, logger)
	period, ok := planner.Period(periodName)
	require.True(t, ok)

	svc := soliscloud.NewTestInverterService()
	inverterPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewInverterActor(svc, nil, time.UTC, 2*time.Second, logger)
	}))

	es := &eventstream.EventStream{}
	outcomes := make(chan domain.CycleOutcome, 8)
	sub := es.SubscribeWithPredicate(func(evt any) {
		outcomes <- evt.(domain.CycleOutcome)
	}, func(evt any) bool {
		_, ok := evt.(domain.CycleOutcome)
		return ok
	})

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewPlannerActor(planner, period, inverterPID, es, retryDelay, logger)
	}))

	t.Cleanup(func() {
		es.Unsubscribe(sub)
		as.Root.Stop(pid)
		as.Root.Stop(inverterPID)
		as.Shutdown()
	})
	return &plannerFixture{as: as, pid: pid, svc: svc, outcomes: outcomes}
}

func (f *plannerFixture) nextOutcome(t *testing.T) domain.CycleOutcome {
	select {
	case o := <-f.outcomes:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("no cycle outcome published")
	}
	return domain.CycleOutcome{}
}

func (f *plannerFixture) status(t *testing.T) domain.GetPlannerStatusResponse {
	res, err := f.as.Root.RequestFuture(f.pid, domain.GetPlannerStatusRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	return res.(domain.GetPlannerStatusResponse)
}

func (f *plannerFixture) runCycle(t *testing.T) domain.RunCycleResponse {
	res, err := f.as.Root.RequestFuture(f.pid, domain.RunCycleRequest{Save: true, Trigger: "test"}, 2*time.Second).Result()
	require.NoError(t, err)
	return res.(domain.RunCycleResponse)
}

func TestPlannerRunCycle(t *testing.T) {
	assert := assert.New(t)
	f := newPlannerFixture(t, "night", time.Minute)

	resp := f.runCycle(t)
	require.False(t, resp.HasResponseError())
	assert.True(resp.Accepted)
	assert.False(resp.Skipped)

	outcome := f.nextOutcome(t)
	assert.Equal("night", outcome.Period)
	assert.True(outcome.Result.IsOk(), outcome.Message)
	assert.False(outcome.Retrying)
	assert.Equal(7.0, outcome.LevelKWh)
	assert.Equal(4.5, outcome.CurrentKWh)
	assert.Contains(outcome.Message, "set charge from 00:00")

	calls := f.svc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(domain.DirectionCharge, calls[0].Direction)
	assert.Equal(0, calls[0].Timeslot)
	assert.Equal(25, calls[0].Slot.Amps)
	assert.Equal(outcome.Schedule.Start, calls[0].Slot.Start)
	assert.Equal(outcome.Schedule.End, calls[0].Slot.End)

	assert.Eventually(func() bool {
		return f.status(t).State == "idle"
	}, 2*time.Second, 50*time.Millisecond)
	assert.Equal(outcome.Message, f.status(t).LastOutcome)
}

func TestPlannerRetriesOnce(t *testing.T) {
	assert := assert.New(t)
	f := newPlannerFixture(t, "night", 200*time.Millisecond)
	f.svc.SetResults(domain.Err(domain.ErrorKindApply, "HTTP error setting charge times: 500"))

	require.True(t, f.runCycle(t).Accepted)

	first := f.nextOutcome(t)
	assert.False(first.Result.IsOk())
	assert.True(first.Retrying)
	assert.Contains(first.Message, "error setting charge")

	second := f.nextOutcome(t)
	assert.True(second.Result.IsOk(), second.Message)
	assert.False(second.Retrying)
	assert.Equal(first.LevelKWh, second.LevelKWh, "the retry keeps the target level")

	assert.Len(f.svc.Calls(), 2)
}

func TestPlannerGivesUpAfterSecondFailure(t *testing.T) {
	assert := assert.New(t)
	f := newPlannerFixture(t, "night", 100*time.Millisecond)
	f.svc.SetResults(
		domain.Err(domain.ErrorKindApply, "HTTP error setting charge times: 500"),
		domain.Err(domain.ErrorKindApply, "HTTP error setting charge times: 502"),
	)

	require.True(t, f.runCycle(t).Accepted)

	first := f.nextOutcome(t)
	assert.True(first.Retrying)

	second := f.nextOutcome(t)
	assert.False(second.Result.IsOk())
	assert.False(second.Retrying)
	assert.Contains(second.Message, "502")

	assert.Eventually(func() bool {
		return f.status(t).State == "idle"
	}, 2*time.Second, 50*time.Millisecond)

	select {
	case o := <-f.outcomes:
		t.Fatalf("unexpected third outcome: %s", o.Message)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Len(f.svc.Calls(), 2)
}

func TestPlannerDropsRequestsWhileInFlight(t *testing.T) {
	assert := assert.New(t)
	f := newPlannerFixture(t, "night", time.Minute)
	f.svc.SetDelay(500 * time.Millisecond)

	require.True(t, f.runCycle(t).Accepted)

	second := f.runCycle(t)
	assert.False(second.Accepted)
	assert.ErrorIs(second.GetResponseError(), domain.ErrCycleInFlight)

	res, err := f.as.Root.RequestFuture(f.pid, domain.SetMinutesRequest{Minutes: 30}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(res.(domain.SetMinutesResponse).GetResponseError(), domain.ErrCycleInFlight)

	outcome := f.nextOutcome(t)
	assert.True(outcome.Result.IsOk())
	assert.Len(f.svc.Calls(), 1)
}

func TestPlannerPreview(t *testing.T) {
	assert := assert.New(t)
	f := newPlannerFixture(t, "night", time.Minute)

	level := 9.0
	res, err := f.as.Root.RequestFuture(f.pid, domain.PreviewRequest{LevelRequired: &level}, 2*time.Second).Result()
	require.NoError(t, err)
	resp := res.(domain.PreviewResponse)
	require.False(t, resp.HasResponseError())
	require.NotNil(t, resp.Preview)

	assert.Equal("night", resp.Preview.Period)
	assert.Equal("charge", resp.Preview.Direction)
	assert.Equal(9.0, resp.Preview.LevelKWh)
	assert.Equal(4.5, resp.Preview.CurrentKWh)
	assert.Equal("OK", resp.Preview.Check)
	assert.Equal("00:00", resp.Preview.Start)
	assert.Empty(f.svc.Calls(), "a preview never writes to the inverter")

	// defaults to the period requirement
	res, err = f.as.Root.RequestFuture(f.pid, domain.PreviewRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(7.0, res.(domain.PreviewResponse).Preview.LevelKWh)
}

func TestPlannerSetMinutes(t *testing.T) {
	assert := assert.New(t)
	f := newPlannerFixture(t, "evening", time.Minute)

	res, err := f.as.Root.RequestFuture(f.pid, domain.SetMinutesRequest{Minutes: 60, Test: true}, 2*time.Second).Result()
	require.NoError(t, err)
	resp := res.(domain.SetMinutesResponse)
	assert.True(resp.Result.IsOk())
	assert.Equal("18:00", resp.Start.String())
	assert.Equal("19:00", resp.End.String())
	assert.Equal(20, resp.Amps)
	assert.Empty(f.svc.Calls())

	res, err = f.as.Root.RequestFuture(f.pid, domain.SetMinutesRequest{Minutes: 600}, 2*time.Second).Result()
	require.NoError(t, err)
	resp = res.(domain.SetMinutesResponse)
	assert.True(resp.Result.IsOk())
	assert.Equal("16:00", resp.Start.String(), "clamped to the period")
	assert.Equal("19:00", resp.End.String())

	calls := f.svc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(domain.DirectionDischarge, calls[0].Direction)
	assert.Equal(20, calls[0].Slot.Amps)
}

func TestPlannerManualWriteBlocksCycles(t *testing.T) {
	assert := assert.New(t)
	f := newPlannerFixture(t, "night", time.Minute)
	f.svc.SetDelay(500 * time.Millisecond)

	manual := f.as.Root.RequestFuture(f.pid, domain.SetMinutesRequest{Minutes: 30}, 3*time.Second)
	assert.Eventually(func() bool {
		return f.status(t).State == "manual"
	}, 2*time.Second, 20*time.Millisecond)

	run := f.runCycle(t)
	assert.False(run.Accepted)
	assert.ErrorIs(run.GetResponseError(), domain.ErrCycleInFlight)

	res, err := f.as.Root.RequestFuture(f.pid, domain.SetMinutesRequest{Minutes: 60}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(res.(domain.SetMinutesResponse).GetResponseError(), domain.ErrCycleInFlight)

	res, err = manual.Result()
	require.NoError(t, err)
	resp := res.(domain.SetMinutesResponse)
	assert.True(resp.Result.IsOk(), resp.Result.String())
	assert.Equal("00:30", resp.End.String())

	calls := f.svc.Calls()
	require.Len(t, calls, 1)
	assert.Equal("00:30", calls[0].Slot.End.String())
	assert.Eventually(func() bool {
		return f.status(t).State == "idle"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPlannerHealth(t *testing.T) {
	f := newPlannerFixture(t, "night", time.Minute)

	res, err := f.as.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp := res.(domain.ActorHealthResponse)
	assert.True(t, resp.Healthy)
	assert.Equal(t, "planner_night", resp.Id)
	assert.Equal(t, "idle", resp.State)
}
