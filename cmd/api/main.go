package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/solisflux/internal/adapter/actor"
	"github.com/berfenger/solisflux/internal/adapter/cron"
	"github.com/berfenger/solisflux/internal/adapter/soliscloud"
	"github.com/berfenger/solisflux/internal/adapter/store"
	"github.com/berfenger/solisflux/internal/config"
	"github.com/berfenger/solisflux/internal/core/actor"
	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/berfenger/solisflux/internal/mqtt"
	"github.com/berfenger/solisflux/internal/server"
	"github.com/berfenger/solisflux/internal/util/actorutil"
	"github.com/berfenger/solisflux/pkg/solis_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {

	// load and print config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	config.SafePrint(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}

	seriesStore, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("could not open store", zap.Error(err))
	}
	defer closeStore()

	sensors := mqtt.NewSensorCache()
	planner, err := cfg.CyclePlanner(sensors, seriesStore, logger)
	if err != nil {
		logger.Fatal("invalid periods", zap.Error(err))
	}

	inverterProv, err := inverterActorProvider(cfg, loc, logger)
	if err != nil {
		logger.Fatal("could not create inverter modbus reader", zap.Error(err))
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	rootCtx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, planner, inverterProv, mqttActorProvider(cfg, sensors, logger), logger)
	})
	pid, err := rootCtx.SpawnNamed(props, "master")
	if err != nil {
		logger.Fatal("could not spawn master actor", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler, err := cron.NewScheduler(rootCtx, pid, loc,
		time.Duration(cfg.Schedule.LeadTimeMinutes)*time.Minute, logger)
	if err != nil {
		logger.Fatal("could not create scheduler", zap.Error(err))
	}
	if err := scheduler.Start(ctx, planner.Periods, cfg.Schedule.DailyUpdateCron); err != nil {
		logger.Fatal("could not schedule jobs", zap.Error(err))
	}

	apiServer := server.NewServer(*cfg, rootCtx, pid, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := apiServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("shutting down gracefully, press Ctrl+C again to force")
		stop()

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		scheduler.Stop()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown with error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
	log.Println("Graceful shutdown complete.")

	rootCtx.Stop(pid)
	as.Shutdown()
}

func openStore(cfg *config.Config, logger *zap.Logger) (port.SeriesStore, func(), error) {
	if cfg.Store.Path == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	bolt, err := store.OpenBoltStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	return bolt, func() {
		if err := bolt.Close(); err != nil {
			logger.Warn("could not close store", zap.Error(err))
		}
	}, nil
}

func inverterActorProvider(cfg *config.Config, loc *time.Location, logger *zap.Logger) (actor.InverterActorProvider, error) {
	client := soliscloud.NewClient(soliscloud.Config{
		APIURL:      cfg.Solis.APIURL,
		KeyId:       cfg.Solis.KeyId,
		KeySecret:   cfg.Solis.KeySecret,
		UserName:    cfg.Solis.UserName,
		Password:    cfg.Solis.Password,
		StationId:   cfg.Solis.StationId,
		CapacityKWh: cfg.Battery.CapacityKWh,
		Timeout:     cfg.SolisTimeout(),
		Retries:     cfg.Solis.Retries,
	}, logger)

	var reader solis_modbus.InverterModbusReader
	if cfg.InverterModbusTcp.Enable {
		inv, err := solis_modbus.CreateSolisModbusReader(cfg.InverterModbusTcp.Host,
			cfg.InverterModbusTcp.Port, uint8(cfg.InverterModbusTcp.UnitId),
			time.Duration(cfg.InverterModbusTcp.TimeoutMillis)*time.Millisecond, logger, nil)
		if err != nil {
			return nil, err
		}
		reader = inv
	}

	return func() *adactor.InverterActor {
		return adactor.NewInverterActor(client, reader, loc, cfg.SolisTimeout(), logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, sensors *mqtt.SensorCache, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, sensors, es, logger)
	}
}
