package soliscloud

import (
	"context"
	"sync"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/port"
)

// SetTimeslotCall records one write made through TestInverterService.
type SetTimeslotCall struct {
	Direction domain.Direction
	Timeslot  int
	Slot      domain.Timeslot
}

// TestInverterService is an in-memory inverter used by actor tests.
type TestInverterService struct {
	mu        sync.Mutex
	telemetry domain.InverterTelemetry
	settings  domain.TimeslotSettings
	results   []domain.Result
	calls     []SetTimeslotCall
	delay     time.Duration
}

// NewTestInverterService reports a 10kWh battery at 50% SOC and 5% ODS.
func NewTestInverterService() *TestInverterService {
	return &TestInverterService{
		telemetry: domain.InverterTelemetry{
			InverterId:  "1308675217944611",
			InverterSN:  "110B40198120004",
			StationName: "Test station",
			BatteryType: "Pylontech",
			Battery: domain.BatteryState{
				CapacityKWh:          10,
				SoCPercent:           domain.Float(50),
				OverDischargePercent: domain.Float(5),
			},
			InverterPower: domain.Float(0),
		},
	}
}

func (s *TestInverterService) SetBattery(battery domain.BatteryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry.Battery = battery
}

// SetResults scripts the results of the next SetTimeslot calls. Once the
// script is exhausted every call succeeds.
func (s *TestInverterService) SetResults(results ...domain.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = results
}

// SetDelay makes every write block for d.
func (s *TestInverterService) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *TestInverterService) Calls() []SetTimeslotCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SetTimeslotCall(nil), s.calls...)
}

func (s *TestInverterService) ReadTelemetry(ctx context.Context) (*domain.InverterTelemetry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.telemetry
	now := time.Now()
	t.InverterTime, t.HostTime = now, now
	return &t, nil
}

func (s *TestInverterService) ReadTimeslots(ctx context.Context) (*domain.TimeslotSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := s.settings
	return &settings, nil
}

func (s *TestInverterService) SetTimeslot(ctx context.Context, direction domain.Direction, timeslot int, slot domain.Timeslot) domain.Result {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.Err(domain.ErrorKindApply, "Request exception setting "+string(direction)+" times: "+ctx.Err().Error())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, SetTimeslotCall{Direction: direction, Timeslot: timeslot, Slot: slot})
	if len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		if !r.IsOk() {
			return r
		}
	}
	if target := s.settings.Slot(direction, timeslot); target != nil {
		*target = slot
	}
	return domain.Ok()
}

func (s *TestInverterService) ClearTimeslots(ctx context.Context) domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.settings.Charge {
		s.settings.Charge[i].Start, s.settings.Charge[i].End = domain.Off, domain.Off
		s.settings.Discharge[i].Start, s.settings.Discharge[i].End = domain.Off, domain.Off
	}
	return domain.Ok()
}

var _ port.InverterService = (*TestInverterService)(nil)
