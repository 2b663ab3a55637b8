package port

import (
	"context"

	"github.com/berfenger/solisflux/internal/core/domain"
)

// SensorReader provides live entity states (forecasts, energy meters).
type SensorReader interface {
	domain.SensorSource
}

// TelemetryReader reads a fresh battery and clock snapshot.
type TelemetryReader interface {
	ReadTelemetry(ctx context.Context) (*domain.InverterTelemetry, error)
}

// InverterService is the inverter control surface.
type InverterService interface {
	TelemetryReader
	ReadTimeslots(ctx context.Context) (*domain.TimeslotSettings, error)
	SetTimeslot(ctx context.Context, direction domain.Direction, timeslot int, slot domain.Timeslot) domain.Result
	ClearTimeslots(ctx context.Context) domain.Result
}
