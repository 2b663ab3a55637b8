package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/berfenger/solisflux/internal/core/service"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Commands are the operator actions run straight against the inverter,
// outside the actor system.
type Commands struct {
	inverter port.InverterService
	planner  *service.CyclePlanner
	out      io.Writer
	logger   *zap.Logger
}

func NewCommands(inverter port.InverterService, planner *service.CyclePlanner, out io.Writer, logger *zap.Logger) *Commands {
	return &Commands{
		inverter: inverter,
		planner:  planner,
		out:      out,
		logger:   logger,
	}
}

// Status prints telemetry, energy values, the safety checks and the
// timeslots currently stored on the inverter.
func (c *Commands) Status(ctx context.Context) error {
	telemetry, err := c.inverter.ReadTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("could not read telemetry: %w", err)
	}
	fmt.Fprintf(c.out, "Station:   %s\n", telemetry.StationName)
	fmt.Fprintf(c.out, "Inverter:  %s (%s)\n", telemetry.InverterSN, telemetry.InverterId)
	fmt.Fprintf(c.out, "Battery:   %s %.2fkWh\n", telemetry.BatteryType, telemetry.Battery.CapacityKWh)
	if !telemetry.InverterTime.IsZero() {
		fmt.Fprintf(c.out, "Clock:     %s\n", telemetry.InverterTime.Format(time.DateTime))
	}

	ev, err := telemetry.Battery.EnergyValues()
	if err != nil {
		fmt.Fprintf(c.out, "Energy:    %s\n", err)
	} else {
		fmt.Fprintf(c.out, "Energy:    %.2fkWh of %.2fkWh (%.1f%%), %.2fkWh unavailable\n",
			ev.CurrentKWh, ev.FullKWh, ev.SoC(), ev.UnavailableKWh)
	}
	fmt.Fprintf(c.out, "Checks:    %s\n", service.CheckAll(telemetry, c.planner.Periods, c.planner.Limits))

	settings, err := c.inverter.ReadTimeslots(ctx)
	if err != nil {
		return fmt.Errorf("could not read timeslots: %w", err)
	}
	for _, d := range []domain.Direction{domain.DirectionCharge, domain.DirectionDischarge} {
		for i := 0; i < domain.TimeslotCount; i++ {
			slot := settings.Slot(d, i)
			if slot.IsOff() {
				continue
			}
			fmt.Fprintf(c.out, "%-9s  %s-%s %dA\n", fmt.Sprintf("%s %d", lo.Capitalize(string(d)), i+1),
				slot.Start, slot.End, slot.Amps)
		}
	}
	return nil
}

// Set writes a fixed duration slot for the named period. In test mode the
// slot is only printed.
func (c *Commands) Set(ctx context.Context, name string, minutes int, test bool) (domain.Result, error) {
	if minutes < 0 {
		return domain.Result{}, errors.New("minutes should be >= 0")
	}
	p, ok := c.planner.Period(strings.ToLower(name))
	if !ok {
		return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrUnknownPeriod, name)
	}
	slot, err := c.planner.ManualSlot(p, minutes)
	if err != nil {
		return domain.Result{}, err
	}

	prefix := "Manual"
	result := domain.Ok()
	if test {
		prefix = "Notional manual"
	} else {
		telemetry, err := c.inverter.ReadTelemetry(ctx)
		if err != nil {
			return domain.Result{}, fmt.Errorf("could not read telemetry: %w", err)
		}
		result = service.CheckAll(telemetry, c.planner.Periods, c.planner.Limits)
		if result.IsOk() {
			result = c.inverter.SetTimeslot(ctx, p.Direction, p.Timeslot, slot)
		}
	}
	fmt.Fprintf(c.out, "%s %s from %s to %s (%d minutes) -> %s\n",
		prefix, p.Direction, slot.Start, slot.End, minutes, result)
	c.logger.Info("manual slot", zap.String("period", p.Name), zap.Bool("test", test),
		zap.Stringer("start", slot.Start), zap.Stringer("end", slot.End), zap.Stringer("result", result))
	return result, nil
}

// Clear turns every charge and discharge slot off.
func (c *Commands) Clear(ctx context.Context) domain.Result {
	result := c.inverter.ClearTimeslots(ctx)
	fmt.Fprintf(c.out, "Clear timeslots -> %s\n", result)
	return result
}
