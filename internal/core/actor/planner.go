package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/service"
	. "github.com/berfenger/solisflux/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	PLANNER_MAX_ATTEMPTS     = 2
	DEFAULT_RETRY_DELAY      = 5 * time.Minute
	DEFAULT_INVERTER_REQUEST = 45 * time.Second
)

// PlannerActor runs the scheduling cycles of one period. At most one cycle
// is in flight. A failed attempt is retried once after retryDelay with the
// same target level.
type PlannerActor struct {
	ActorWithStates
	scheduler      *scheduler.TimerScheduler
	stash          *Stash
	inverterActor  *actor.PID
	eventStream    *eventstream.EventStream
	planner        *service.CyclePlanner
	period         domain.Period
	retryDelay     time.Duration
	requestTimeout time.Duration
	lastOutcome    string

	logger *zap.Logger
}

type plannerRetryTick struct {
}

// cycle is the state carried between the attempts of one run.
type cycle struct {
	level   float64
	attempt int
	trigger string
}

func NewPlannerActor(planner *service.CyclePlanner, period domain.Period, inverterActor *actor.PID,
	eventStream *eventstream.EventStream, retryDelay time.Duration, logger *zap.Logger) *PlannerActor {
	if retryDelay <= 0 {
		retryDelay = DEFAULT_RETRY_DELAY
	}
	act := &PlannerActor{
		planner:        planner,
		period:         period,
		inverterActor:  inverterActor,
		eventStream:    eventStream,
		retryDelay:     retryDelay,
		requestTimeout: DEFAULT_INVERTER_REQUEST,
		stash:          &Stash{},
		logger:         ActorLogger(PlannerActorId(period.Name), logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(PLStartingState{
		actor: act,
	})
	return act
}

func PlannerActorId(period string) string {
	return domain.ACTOR_ID_PLANNER + "_" + period
}

func (state *PlannerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type PLStartingState struct {
	ActorState
	actor *PlannerActor
}

func (state PLStartingState) Name() string {
	return "starting"
}

func (state PLStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("planner@starting started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.toIdle(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("planner@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type PLIdleState struct {
	ActorState
	actor *PlannerActor
}

func (state PLIdleState) Name() string {
	return "idle"
}

func (state PLIdleState) Receive(ctx actor.Context) {
	a := state.actor
	switch msg := ctx.Message().(type) {
	case domain.RunCycleRequest:
		a.logger.Debug("planner@idle: RunCycleRequest", zap.String("trigger", msg.Trigger))
		level, skip, err := a.resolveLevel(msg.Save)
		if err != nil {
			a.logger.Error("planner@idle: could not resolve target level", zap.Error(err))
			ForRequest(msg).Respond(ctx, domain.RunCycleResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			})
			return
		}
		ForRequest(msg).Respond(ctx, domain.RunCycleResponse{Accepted: true, Skipped: skip})
		if skip {
			return
		}
		a.logger.Sugar().Infof("starting %s cycle (trigger %s)", a.period.LongName(), msg.Trigger)
		a.requestTelemetry(ctx, cycle{level: level, attempt: 1, trigger: msg.Trigger})
	case domain.SetMinutesRequest:
		a.setMinutes(ctx, msg)
	default:
		a.receiveCommon(ctx, state.Name())
	}
}

// Telemetry state: waiting for a fresh inverter snapshot.

type PLTelemetryState struct {
	ActorState
	actor *PlannerActor
	cycle cycle
}

func (state PLTelemetryState) Name() string {
	return "telemetry"
}

func (state PLTelemetryState) Receive(ctx actor.Context) {
	a := state.actor
	switch msg := ctx.Message().(type) {
	case domain.GetTelemetryResponse:
		a.logger.Debug("planner@telemetry: GetTelemetryResponse")
		if msg.HasResponseError() {
			err := msg.GetResponseError()
			if errors.Is(err, domain.ErrConfig) {
				a.fatal(ctx, state.cycle, err)
				return
			}
			a.fail(ctx, state.cycle, domain.CycleOutcome{
				Period:   a.period.Name,
				LevelKWh: state.cycle.level,
				Result:   domain.Err(domain.ErrorKindConnection, fmt.Sprintf("Could not connect to Solis API: %s", err)),
				Message:  fmt.Sprintf("Could not connect to Solis API: %s", err),
			})
			return
		}
		plan, err := a.planner.Plan(a.period, state.cycle.level, msg.Telemetry)
		if err != nil {
			a.fatal(ctx, state.cycle, err)
			return
		}
		if !plan.Check.IsOk() {
			a.fail(ctx, state.cycle, plan.Outcome(plan.Check, false))
			return
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(a.inverterActor, domain.SetTimeslotRequest{
			Direction: a.period.Direction,
			Timeslot:  a.period.Timeslot,
			Slot:      plan.Slot(),
		}, a.requestTimeout), func(err error) any {
			return domain.SetTimeslotResponse{
				Result: domain.Err(domain.ErrorKindApply, fmt.Sprintf("Request exception setting %s times: %s", a.period.Direction, err)),
			}
		})
		a.Become(PLApplyingState{
			actor: a,
			cycle: state.cycle,
			plan:  plan,
		})
	case domain.RunCycleRequest, domain.SetMinutesRequest:
		a.rejectInFlight(ctx, msg)
	case domain.PreviewRequest:
		a.stash.Stash(ctx, msg)
	default:
		a.receiveCommon(ctx, state.Name())
	}
}

// Applying state: the timeslot write is in flight.

type PLApplyingState struct {
	ActorState
	actor *PlannerActor
	cycle cycle
	plan  *service.Plan
}

func (state PLApplyingState) Name() string {
	return "applying"
}

func (state PLApplyingState) Receive(ctx actor.Context) {
	a := state.actor
	switch msg := ctx.Message().(type) {
	case domain.SetTimeslotResponse:
		a.logger.Debug("planner@applying: SetTimeslotResponse", zap.Stringer("result", msg.Result))
		outcome := state.plan.Outcome(msg.Result, false)
		if !msg.Result.IsOk() {
			a.fail(ctx, state.cycle, outcome)
			return
		}
		a.publish(outcome)
		a.toIdle(ctx)
	case domain.RunCycleRequest, domain.SetMinutesRequest:
		a.rejectInFlight(ctx, msg)
	case domain.PreviewRequest:
		a.stash.Stash(ctx, msg)
	default:
		a.receiveCommon(ctx, state.Name())
	}
}

// Retrying state: waiting for the retry timer after a failed attempt.

type PLRetryingState struct {
	ActorState
	actor  *PlannerActor
	cycle  cycle
	cancel scheduler.CancelFunc
}

func (state PLRetryingState) Name() string {
	return "retrying"
}

func (state PLRetryingState) Receive(ctx actor.Context) {
	a := state.actor
	switch msg := ctx.Message().(type) {
	case plannerRetryTick:
		a.logger.Sugar().Infof("retrying %s cycle (attempt %d)", a.period.LongName(), state.cycle.attempt+1)
		next := state.cycle
		next.attempt++
		a.requestTelemetry(ctx, next)
	case domain.RunCycleRequest, domain.SetMinutesRequest:
		a.rejectInFlight(ctx, msg)
	case *actor.Stopping:
		if state.cancel != nil {
			state.cancel()
		}
	default:
		a.receiveCommon(ctx, state.Name())
	}
}

// Manual state: a manual timeslot write is in flight.

type PLManualState struct {
	ActorState
	actor *PlannerActor
}

func (state PLManualState) Name() string {
	return "manual"
}

func (state PLManualState) Receive(ctx actor.Context) {
	a := state.actor
	switch msg := ctx.Message().(type) {
	case domain.RunCycleRequest, domain.SetMinutesRequest:
		a.rejectInFlight(ctx, msg)
	case domain.PreviewRequest:
		a.stash.Stash(ctx, msg)
	default:
		a.receiveCommon(ctx, state.Name())
	}
}

// receiveCommon handles the messages answered the same way in every state.
func (a *PlannerActor) receiveCommon(ctx actor.Context, stateName string) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		a.logger.Debug("planner@" + stateName + ": ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      PlannerActorId(a.period.Name),
			Healthy: true,
			State:   stateName,
		})
	case domain.GetPlannerStatusRequest:
		ForRequest(msg).Respond(ctx, domain.GetPlannerStatusResponse{
			Period:      a.period,
			State:       stateName,
			LastOutcome: a.lastOutcome,
		})
	case domain.PreviewRequest:
		a.preview(ctx, msg)
	case *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		a.logger.Debug("planner@"+stateName+": recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (a *PlannerActor) toIdle(ctx actor.Context) {
	a.Become(PLIdleState{
		actor: a,
	})
	a.stash.UnstashAll(ctx)
}

func (a *PlannerActor) requestTelemetry(ctx actor.Context, c cycle) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(a.inverterActor, domain.GetTelemetryRequest{}, a.requestTimeout), func(err error) any {
		return domain.GetTelemetryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	a.Become(PLTelemetryState{
		actor: a,
		cycle: c,
	})
}

// fail publishes a failed attempt and either schedules the retry or, after
// the last attempt, gives up until the next trigger.
func (a *PlannerActor) fail(ctx actor.Context, c cycle, outcome domain.CycleOutcome) {
	if c.attempt < PLANNER_MAX_ATTEMPTS {
		outcome.Retrying = true
		a.publish(outcome)
		a.logger.Sugar().Infof("retrying %s in %s", a.period.LongName(), a.retryDelay)
		cancel := a.scheduler.RequestOnce(a.retryDelay, ctx.Self(), plannerRetryTick{})
		a.Become(PLRetryingState{
			actor:  a,
			cycle:  c,
			cancel: cancel,
		})
		return
	}
	a.publish(outcome)
	a.toIdle(ctx)
}

// fatal ends the cycle without retrying.
func (a *PlannerActor) fatal(ctx actor.Context, c cycle, err error) {
	a.publish(domain.CycleOutcome{
		Period:   a.period.Name,
		LevelKWh: c.level,
		Result:   domain.Err(domain.ErrorKindConfig, err.Error()),
		Message:  fmt.Sprintf("Could not set %s times: %s", a.period.Direction, err),
	})
	a.toIdle(ctx)
}

func (a *PlannerActor) publish(outcome domain.CycleOutcome) {
	a.lastOutcome = outcome.Message
	if outcome.Result.IsOk() {
		a.logger.Info(outcome.Message)
	} else {
		a.logger.Error(outcome.Message, zap.Bool("retrying", outcome.Retrying))
	}
	if a.eventStream != nil {
		a.eventStream.Publish(outcome)
	}
}

func (a *PlannerActor) rejectInFlight(ctx actor.Context, msg any) {
	a.logger.Warn("cycle in flight, dropping request", zap.String("type", fmt.Sprintf("%T", msg)))
	errResp := domain.ActorResponseMixIn{ResponseError: domain.ErrCycleInFlight}
	switch m := msg.(type) {
	case domain.RunCycleRequest:
		ForRequest(m).Respond(ctx, domain.RunCycleResponse{ActorResponseMixIn: errResp})
	case domain.SetMinutesRequest:
		ForRequest(m).Respond(ctx, domain.SetMinutesResponse{
			ActorResponseMixIn: errResp,
			Result:             domain.Err(domain.ErrorKindApply, domain.ErrCycleInFlight.Error()),
		})
	}
}

func (a *PlannerActor) resolveLevel(save bool) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout)
	defer cancel()
	return a.planner.ResolveLevel(ctx, a.period, save)
}

// previewLevel defaults to the period requirement. The forecast is read
// without saving it.
func (a *PlannerActor) previewLevel(req domain.PreviewRequest) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout)
	defer cancel()
	var required float64
	if req.LevelRequired != nil {
		required = *req.LevelRequired
	} else {
		r, err := a.planner.Requirement.FindRequirement(ctx, a.period)
		if err != nil {
			return 0, false, err
		}
		if r < 0 {
			return 0, true, nil
		}
		required = r
	}
	if !req.UseForecast {
		return required, false, nil
	}
	return a.planner.LevelFor(ctx, a.period, required, true, false)
}

func (a *PlannerActor) preview(ctx actor.Context, msg domain.PreviewRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	level, skip, err := a.previewLevel(msg)
	if err == nil && skip {
		err = errors.New("no requirement data for " + a.period.Name)
	}
	if err != nil {
		RespondTo(ctx, replyTo, domain.PreviewResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}
	future := ctx.RequestFuture(a.inverterActor, domain.GetTelemetryRequest{}, a.requestTimeout)
	ctx.ReenterAfter(future, func(res any, err error) {
		var telemetry *domain.InverterTelemetry
		if err == nil {
			resp, _ := res.(domain.GetTelemetryResponse)
			telemetry, err = resp.Telemetry, resp.GetResponseError()
		}
		if err != nil {
			RespondTo(ctx, replyTo, domain.PreviewResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			})
			return
		}
		plan, err := a.planner.Plan(a.period, level, telemetry)
		if err != nil {
			RespondTo(ctx, replyTo, domain.PreviewResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			})
			return
		}
		a.logger.Info(plan.Outcome(plan.Check, true).Message)
		RespondTo(ctx, replyTo, domain.PreviewResponse{Preview: plan.Preview()})
	})
}

// setMinutes places a manual timeslot inside the period. Test requests only
// compute the slot.
func (a *PlannerActor) setMinutes(ctx actor.Context, msg domain.SetMinutesRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	slot, err := a.planner.ManualSlot(a.period, msg.Minutes)
	if err != nil {
		RespondTo(ctx, replyTo, domain.SetMinutesResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			Result:             domain.Err(domain.ErrorKindConfig, err.Error()),
		})
		return
	}
	respond := func(result domain.Result) {
		prefix := "Manual"
		if msg.Test {
			prefix = "Notional manual"
		}
		message := fmt.Sprintf("%s %s from %s to %s (%d minutes) -> %s",
			prefix, a.period.Direction, slot.Start, slot.End, msg.Minutes, result)
		if result.IsOk() {
			a.logger.Info(message)
		} else {
			a.logger.Error(message)
		}
		RespondTo(ctx, replyTo, domain.SetMinutesResponse{
			Start:  slot.Start,
			End:    slot.End,
			Amps:   slot.Amps,
			Result: result,
		})
	}
	if msg.Test {
		respond(domain.Ok())
		return
	}

	done := func(result domain.Result) {
		respond(result)
		a.toIdle(ctx)
	}
	a.Become(PLManualState{
		actor: a,
	})
	future := ctx.RequestFuture(a.inverterActor, domain.GetTelemetryRequest{}, a.requestTimeout)
	ctx.ReenterAfter(future, func(res any, err error) {
		var telemetry *domain.InverterTelemetry
		if err == nil {
			resp, _ := res.(domain.GetTelemetryResponse)
			telemetry, err = resp.Telemetry, resp.GetResponseError()
		}
		if err != nil {
			done(domain.Err(domain.ErrorKindConnection, fmt.Sprintf("Could not connect to Solis API: %s", err)))
			return
		}
		if check := service.CheckAll(telemetry, a.planner.Periods, a.planner.Limits); !check.IsOk() {
			done(check)
			return
		}
		setFuture := ctx.RequestFuture(a.inverterActor, domain.SetTimeslotRequest{
			Direction: a.period.Direction,
			Timeslot:  a.period.Timeslot,
			Slot:      slot,
		}, a.requestTimeout)
		ctx.ReenterAfter(setFuture, func(res any, err error) {
			if err != nil {
				done(domain.Err(domain.ErrorKindApply, fmt.Sprintf("Request exception setting %s times: %s", a.period.Direction, err)))
				return
			}
			resp, _ := res.(domain.SetTimeslotResponse)
			done(resp.Result)
		})
	})
}
