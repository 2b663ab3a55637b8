package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	adactor "github.com/berfenger/solisflux/internal/adapter/actor"
	"github.com/berfenger/solisflux/internal/config"
	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/service"
	. "github.com/berfenger/solisflux/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const DAILY_UPDATE_TIMEOUT = 2 * time.Minute

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type InverterActorProvider func() *adactor.InverterActor

// MasterOfPuppetsActor owns every other actor and routes requests by period
// name to the matching planner.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck    healthCheckResult
	eventStream           *eventstream.EventStream
	planner               *service.CyclePlanner
	inverterActor         *actor.PID
	mqttActor             *actor.PID
	plannerActors         map[string]*actor.PID
	inverterActorProvider InverterActorProvider
	mqttActorProvider     MQTTActorProvider
	logger                *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, planner *service.CyclePlanner, inverterActorProvider InverterActorProvider,
	mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                config,
		planner:               planner,
		behavior:              actor.NewBehavior(),
		stash:                 &Stash{},
		logger:                ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:           &eventstream.EventStream{},
		plannerActors:         map[string]*actor.PID{},
		inverterActorProvider: inverterActorProvider,
		mqttActorProvider:     mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		inverterActorPID, err := state.startInverterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.inverterActor = inverterActorPID

		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		for _, p := range state.planner.Periods {
			pid, err := state.startPlannerActor(ctx, p)
			if err != nil {
				panic(err)
			}
			state.plannerActors[p.Name] = pid
		}

		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.children() {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.ForPeriod:
		state.logger.Debug("master@default ForPeriod", zap.String("period", msg.Name), zap.String("command", msg.Request.PlannerCommand()))
		state.routeToPlanner(ctx, msg)
	case domain.ListPeriodsRequest:
		ForRequest(msg).Respond(ctx, domain.ListPeriodsResponse{
			Periods: state.planner.Periods,
		})
	case adactor.ParsedCommand:
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			req, err := CommandToRequest(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default ignoring command", zap.Error(err))
				return
			}
			state.routeToPlanner(ctx, *req)
		}
	case domain.DailyUpdateRequest:
		state.logger.Info("running daily history update")
		NewBackgroundTaskNoError(ctx, func() *domain.DailyUpdateResponse {
			c, cancel := context.WithTimeout(context.Background(), DAILY_UPDATE_TIMEOUT)
			defer cancel()
			return &domain.DailyUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: state.planner.DailyUpdate(c),
				},
			}
		}).Recover(func(err error) domain.DailyUpdateResponse {
			return domain.DailyUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		}).WithTimeout(DAILY_UPDATE_TIMEOUT).PipeTo(ctx.Self())
	case domain.DailyUpdateResponse:
		if msg.HasResponseError() {
			state.logger.Error("master@default daily update failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("daily history update done")
		}
	case *actor.Terminated:
		// the inverter is the only child without which nothing works
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_INVERTER) {
			state.logger.Error("master@default inverter error")
			panic(errors.New("inverter terminated"))
		}
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx, len(state.children()))
		ctx.SetReceiveTimeout(0)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.checksReceived >= len(state.children()) {
			state.currentHealthCheck.respond(ctx, len(state.children()))
			ctx.SetReceiveTimeout(0)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// routeToPlanner forwards the request keeping the original sender so the
// planner answers the caller directly.
func (state *MasterOfPuppetsActor) routeToPlanner(ctx actor.Context, msg domain.ForPeriod) {
	pid, ok := state.plannerActors[strings.ToLower(msg.Name)]
	if !ok {
		state.logger.Warn("master@default unknown period", zap.String("period", msg.Name))
		RespondTo(ctx, ctx.Sender(), domain.PeriodNotFoundResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: fmt.Errorf("%w: %s", domain.ErrUnknownPeriod, msg.Name),
			},
			Name: msg.Name,
		})
		return
	}
	ctx.RequestWithCustomSender(pid, msg.Request, ctx.Sender())
}

func (state *MasterOfPuppetsActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_INVERTER: state.inverterActor,
		domain.ACTOR_ID_MQTT:     state.mqttActor,
	}
	for name, pid := range state.plannerActors {
		children[PlannerActorId(name)] = pid
	}
	return children
}

func (state *MasterOfPuppetsActor) startInverterActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	inverterProps := actor.PropsFromProducer(func() actor.Actor {
		return state.inverterActorProvider()
	}, actor.WithSupervisor(supervisor))
	inverterActorPID, err := ctx.SpawnNamed(inverterProps, domain.ACTOR_ID_INVERTER)
	if err != nil {
		return nil, err
	}

	return inverterActorPID, nil
}

func (state *MasterOfPuppetsActor) startPlannerActor(ctx actor.Context, period domain.Period) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for planner %s. reason: %v", period.Name, reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	retryDelay := time.Duration(state.config.Schedule.RetryDelayMinutes) * time.Minute
	plannerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPlannerActor(state.planner, period, state.inverterActor, state.eventStream, retryDelay, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(plannerProps, PlannerActorId(period.Name))
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.planner.Periods, state.inverterActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.healthy = map[string]bool{}
	state.checksReceived = 0
}

func (state *healthCheckResult) unhealthy(expected int) []string {
	ids := lo.Keys(lo.PickBy(state.healthy, func(_ string, ok bool) bool { return !ok }))
	if missing := expected - len(state.healthy); missing > 0 {
		ids = append(ids, fmt.Sprintf("%d not answering", missing))
	}
	return ids
}

func (state *healthCheckResult) respond(ctx actor.Context, expected int) {
	unhealthy := state.unhealthy(expected)
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: len(unhealthy) == 0,
		State:   strings.Join(unhealthy, ","),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
