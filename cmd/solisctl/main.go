package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/berfenger/solisflux/internal/adapter/soliscloud"
	"github.com/berfenger/solisflux/internal/adapter/store"
	"github.com/berfenger/solisflux/internal/cli"
	"github.com/berfenger/solisflux/internal/config"
	"github.com/berfenger/solisflux/internal/mqtt"

	"github.com/alexflint/go-arg"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Args struct {
	Status  *subcommand `arg:"subcommand:status" help:"Print telemetry, checks and the current timeslots."`
	Set     *Set        `arg:"subcommand:set"    help:"Write a fixed duration slot for a period."`
	Clear   *subcommand `arg:"subcommand:clear"  help:"Turn every timeslot off."`
	Timeout int         `arg:"--timeout" default:"60" help:"Timeout in seconds"`
}

type subcommand struct {
}

type Set struct {
	Period  string `arg:"-p,--period,required" help:"Period name"`
	Minutes int    `arg:"-m,--minutes,required" help:"Slot duration in minutes"`
	Test    bool   `arg:"--test" help:"Only print the slot, do not write it"`
}

func (Args) Version() string {
	return versioninfo.Short()
}

func main() {
	if err := runMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMain() error {
	var args Args
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	planner, err := cfg.CyclePlanner(mqtt.NewSensorCache(), store.NewMemoryStore(), logger)
	if err != nil {
		return err
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(args.Timeout)*time.Second)
	defer cancel()

	if _, err := client.Connect(ctx); err != nil {
		return fmt.Errorf("could not connect to Solis API: %w", err)
	}

	cmds := cli.NewCommands(client, planner, os.Stdout, logger)
	switch {
	case args.Status != nil:
		return cmds.Status(ctx)
	case args.Set != nil:
		result, err := cmds.Set(ctx, args.Set.Period, args.Set.Minutes, args.Set.Test)
		if err != nil {
			return err
		}
		if !result.IsOk() {
			return fmt.Errorf("set failed: %s", result)
		}
	case args.Clear != nil:
		if result := cmds.Clear(ctx); !result.IsOk() {
			return fmt.Errorf("clear failed: %s", result)
		}
	default:
		slog.Warn("unknown subcommand")
	}
	return nil
}
