package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// CommandToRequest maps a Home Assistant control to a planner request
// routed by period name.
func CommandToRequest(cmd mqtt.ParsedMQTTCommand) (*domain.ForPeriod, error) {
	period, control, ok := domain.ParsePeriodControl(cmd.DeviceId)
	if !ok {
		return nil, fmt.Errorf("unknown control %q", cmd.DeviceId)
	}
	switch {
	case cmd.Command == mqtt.COMMAND_BUTTON && control == domain.CONTROL_SUFFIX_RUN:
		return &domain.ForPeriod{
			Name:    period,
			Request: domain.RunCycleRequest{Save: true, Trigger: "mqtt"},
		}, nil
	case cmd.Command == mqtt.COMMAND_NUMBER && control == domain.CONTROL_SUFFIX_MINUTES:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil || value < 0 {
			return nil, fmt.Errorf("invalid minutes %q", cmd.Payload)
		}
		return &domain.ForPeriod{
			Name:    period,
			Request: domain.SetMinutesRequest{Minutes: int(value)},
		}, nil
	}
	return nil, fmt.Errorf("unsupported %s control %q", cmd.Command, cmd.DeviceId)
}
