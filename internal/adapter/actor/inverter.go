package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/berfenger/solisflux/internal/util/actorutil"
	"github.com/berfenger/solisflux/pkg/solis_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const DEFAULT_INVERTER_TIMEOUT = 30 * time.Second

// InverterActor serializes every call to the inverter. Cloud requests run
// as background tasks while the actor stashes new requests.
type InverterActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	service  port.InverterService
	modbus   solis_modbus.InverterModbusReader
	location *time.Location
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

// NewInverterActor wraps the cloud service. modbus is optional and, when
// set, overlays SOC, over-discharge SOC and clock read on the local network.
func NewInverterActor(service port.InverterService, modbus solis_modbus.InverterModbusReader,
	location *time.Location, timeout time.Duration, logger *zap.Logger) *InverterActor {
	if timeout <= 0 {
		timeout = DEFAULT_INVERTER_TIMEOUT
	}
	if location == nil {
		location = time.Local
	}
	act := &InverterActor{
		service:  service,
		modbus:   modbus,
		location: location,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_INVERTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *InverterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *InverterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("inverter@starting started")
		if state.modbus != nil {
			err := state.modbus.Open()
			if err != nil {
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("inverter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("inverter@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetTelemetryRequest:
		state.logger.Debug("inverter@default: GetTelemetryRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.readTelemetry),
			mapTaskResult[domain.GetTelemetryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetTelemetryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.GetTimeslotsRequest:
		state.logger.Debug("inverter@default: GetTimeslotsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.readTimeslots),
			mapTaskResult[domain.GetTimeslotsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetTimeslotsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.SetTimeslotRequest:
		state.logger.Debug("inverter@default: SetTimeslotRequest",
			zap.String("direction", string(msg.Direction)), zap.Int("timeslot", msg.Timeslot),
			zap.Stringer("start", msg.Slot.Start), zap.Stringer("end", msg.Slot.End))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SetTimeslotResponse {
			return &domain.SetTimeslotResponse{
				Result: state.withTimeout(func(c context.Context) domain.Result {
					return state.service.SetTimeslot(c, msg.Direction, msg.Timeslot, msg.Slot)
				}),
			}
		}), mapTaskResult[domain.SetTimeslotResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetTimeslotResponse{
					Result: domain.Err(domain.ErrorKindApply,
						fmt.Sprintf("Request exception setting %s times: %s", msg.Direction, err)),
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.ClearTimeslotsRequest:
		state.logger.Debug("inverter@default: ClearTimeslotsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.ClearTimeslotsResponse {
			return &domain.ClearTimeslotsResponse{
				Result: state.withTimeout(state.service.ClearTimeslots),
			}
		}), mapTaskResult[domain.ClearTimeslotsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ClearTimeslotsResponse{
					Result: domain.Err(domain.ErrorKindApply, fmt.Sprintf("Request exception clearing times: %s", err)),
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("inverter@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) WaitingInverter(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("inverter@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		actorutil.RespondTo(ctx, msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: true,
			State:   "busy",
		})
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("inverter@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *InverterActor) withTimeout(fn func(context.Context) domain.Result) domain.Result {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return fn(ctx)
}

func (a *InverterActor) readTelemetry() (*domain.GetTelemetryResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	telemetry, err := a.service.ReadTelemetry(ctx)
	if err != nil {
		a.logger.Error("inverter: telemetry read failed", zap.Error(err))
		return nil, err
	}
	if a.modbus != nil {
		a.overlayModbus(telemetry)
	}
	return &domain.GetTelemetryResponse{
		Telemetry: telemetry,
	}, nil
}

// overlayModbus replaces battery and clock readings with local ones. Cloud
// values are kept when the local read fails.
func (a *InverterActor) overlayModbus(telemetry *domain.InverterTelemetry) {
	battery, err := a.modbus.GetBatteryState()
	if err != nil {
		a.logger.Warn("inverter: modbus battery read failed, using cloud values", zap.Error(err))
	} else {
		telemetry.Battery.SoCPercent = domain.Float(battery.StateOfCharge)
		telemetry.Battery.OverDischargePercent = domain.Float(battery.OverDischargeSoC)
	}
	clock, err := a.modbus.GetClock(a.location)
	if err != nil {
		a.logger.Warn("inverter: modbus clock read failed, using cloud timestamp", zap.Error(err))
		return
	}
	telemetry.InverterTime = clock
	telemetry.HostTime = time.Now()
}

func (a *InverterActor) readTimeslots() (*domain.GetTimeslotsResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	settings, err := a.service.ReadTimeslots(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.GetTimeslotsResponse{
		Settings: settings,
	}, nil
}

func (a *InverterActor) close() {
	if a.modbus != nil {
		a.modbus.Close()
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
