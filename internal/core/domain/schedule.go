package domain

import "time"

// ScheduleResult is a computed sub interval of a period and the projected
// usable energy once it has run.
type ScheduleResult struct {
	Start          HHMM
	End            HHMM
	Minutes        int
	EnergyAfterKWh float64
}

// IsOff reports the "00:00"-"00:00" no-op schedule.
func (r ScheduleResult) IsOff() bool {
	return r.Start == Off && r.End == Off
}

func OffSchedule(currentKWh float64) ScheduleResult {
	return ScheduleResult{Start: Off, End: Off, EnergyAfterKWh: currentKWh}
}

// Timeslot is the inverter setting of one charge or discharge slot.
type Timeslot struct {
	Start HHMM
	End   HHMM
	Amps  int
}

func (t Timeslot) IsOff() bool {
	return t.Start == Off && t.End == Off
}

type TimeslotSettings struct {
	Charge    [TimeslotCount]Timeslot
	Discharge [TimeslotCount]Timeslot
}

// Slot returns a pointer to the slot addressed by direction and index.
func (s *TimeslotSettings) Slot(direction Direction, timeslot int) *Timeslot {
	if timeslot < 0 || timeslot >= TimeslotCount {
		return nil
	}
	if direction == DirectionDischarge {
		return &s.Discharge[timeslot]
	}
	return &s.Charge[timeslot]
}

// InverterTelemetry is fetched fresh for every scheduling attempt.
type InverterTelemetry struct {
	InverterId    string
	InverterSN    string
	StationName   string
	BatteryType   string
	Battery       BatteryState
	InverterPower *float64
	InverterTime  time.Time
	HostTime      time.Time
}

// Limits are the static current maxima used by the safety checks.
type Limits struct {
	InverterMaxCurrent float64
	BatteryMaxCurrent  float64
	MaxClockSkew       time.Duration
}
