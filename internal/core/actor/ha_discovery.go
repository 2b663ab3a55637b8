package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solisflux/internal/config"
	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type HADiscoveryActor struct {
	config               *config.Config
	periods              []domain.Period
	behavior             actor.Behavior
	stash                *actorutil.Stash
	inverterActor        *actor.PID
	mqttActor            *actor.PID
	inverterActorHealthy bool
	mqttActorHealthy     bool
	healthyRecv          int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, periods []domain.Period, inverterActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:        config,
		periods:       periods,
		inverterActor: inverterActor,
		mqttActor:     mqttActor,
		behavior:      actor.NewBehavior(),
		stash:         &actorutil.Stash{},
		logger:        actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		state.healthyRecv = 0
		state.inverterActorHealthy = false
		state.mqttActorHealthy = false
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_INVERTER,
				Healthy: false,
			}
		})
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_INVERTER:
				state.inverterActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {
			if !state.inverterActorHealthy || !state.mqttActorHealthy {
				panic(errors.New("MQTT Actor or Inverter Actor are not healthy"))
			}
			// the inverter identity names the device, telemetry itself is not needed
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetTelemetryRequest{}, 45*time.Second), func(err error) any {
				return domain.GetTelemetryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
			state.behavior.Become(state.WaitingInfoReceive)
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "done",
		})
	default:
		state.logger.Debug("hadiscovery@done: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetTelemetryResponse:
		bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
		periodDevice := bridgeDevice
		if msg.HasResponseError() || msg.Telemetry == nil {
			state.logger.Warn("hadiscovery@info: inverter unavailable, period entities attached to the bridge device",
				zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("hadiscovery@info: GetTelemetryResponse", zap.String("inverter_sn", msg.Telemetry.InverterSN))
			periodDevice = domain.InverterDevice(msg.Telemetry)
			periodDevice.ViaDevice = bridgeDevice.Id
		}

		ctx.Send(state.mqttActor, state.discoveryRequest(bridgeDevice, periodDevice))
		state.behavior.Become(state.Done)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "waitingInfo",
		})
	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// discoveryRequest lists the bridge sensors followed by every period's
// sensors and controls. Only the first entity carries the full device.
func (state *HADiscoveryActor) discoveryRequest(bridgeDevice, periodDevice domain.Device) domain.PublishDiscoveryRequest {
	var sensors []domain.GenericSensor
	var buttons []domain.GenericButton
	var inputNumbers []domain.GenericInputNumber

	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	device := periodDevice
	for _, p := range state.periods {
		periodSensors := domain.PeriodSensors(device, p)
		device = domain.IdDevice(periodDevice)
		for i := range periodSensors {
			if i > 0 {
				periodSensors[i].Device = device
			}
		}
		sensors = append(sensors, periodSensors...)
		buttons = append(buttons, domain.PeriodButtons(device, p)...)
		inputNumbers = append(inputNumbers, domain.PeriodInputNumbers(device, p)...)
	}

	return domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Buttons:      buttons,
		InputNumbers: inputNumbers,
	}
}
