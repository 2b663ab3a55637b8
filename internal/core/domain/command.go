package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPeriod = errors.New("unknown period")
	ErrCycleInFlight = errors.New("a cycle for this period is already in progress")
)

// PlannerRequest

type PlannerRequest interface {
	ActorRequest
	PlannerCommand() string
}

type PlannerRequestMixIn struct {
	ActorRequestMixIn
}

func (r PlannerRequestMixIn) PlannerCommand() string {
	return fmt.Sprintf("%T", r)
}

// ForPeriod routes a planner request through the master to the planner of
// the named period.
type ForPeriod struct {
	Name    string
	Request PlannerRequest
}

type PeriodNotFoundResponse struct {
	ActorResponseMixIn
	Name string
}

// Planner commands

// RunCycleRequest starts a scheduling cycle. Cron triggers and the run-now
// endpoint both save the live forecast into the history.
type RunCycleRequest struct {
	PlannerRequestMixIn
	Save    bool
	Trigger string
}

type RunCycleResponse struct {
	ActorResponseMixIn
	Accepted bool
	// Skipped is set when no requirement data exists for the period.
	Skipped bool
}

// PreviewRequest computes a notional schedule without applying it.
type PreviewRequest struct {
	PlannerRequestMixIn
	LevelRequired *float64
	UseForecast   bool
}

type PreviewResponse struct {
	ActorResponseMixIn
	Preview *Preview
}

type Preview struct {
	Period         string  `json:"period"`
	Direction      string  `json:"direction"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	LevelKWh       float64 `json:"level"`
	EnergyAfterKWh float64 `json:"energy_after"`
	CurrentKWh     float64 `json:"current_energy"`
	SoC            float64 `json:"soc"`
	TargetSoC      float64 `json:"target_soc"`
	Check          string  `json:"check"`
}

// SetMinutesRequest sets the period timeslot to run for a fixed number of
// minutes from the period start. Zero minutes turns the timeslot off.
type SetMinutesRequest struct {
	PlannerRequestMixIn
	Minutes int
	Test    bool
}

type SetMinutesResponse struct {
	ActorResponseMixIn
	Start  HHMM
	End    HHMM
	Amps   int
	Result Result
}

type GetPlannerStatusRequest struct {
	PlannerRequestMixIn
}

type GetPlannerStatusResponse struct {
	ActorResponseMixIn
	Period      Period
	State       string
	LastOutcome string
}

// DailyUpdateRequest runs the end of day history bookkeeping.
type DailyUpdateRequest struct {
	ActorRequestMixIn
}

type DailyUpdateResponse struct {
	ActorResponseMixIn
}

type ListPeriodsRequest struct {
	ActorRequestMixIn
}

type ListPeriodsResponse struct {
	ActorResponseMixIn
	Periods []Period
}

// ensure interface compliance
var _ PlannerRequest = (*RunCycleRequest)(nil)
var _ PlannerRequest = (*PreviewRequest)(nil)
var _ PlannerRequest = (*SetMinutesRequest)(nil)
var _ PlannerRequest = (*GetPlannerStatusRequest)(nil)
