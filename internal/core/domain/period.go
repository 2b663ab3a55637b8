package domain

import (
	"fmt"
	"strings"
)

type Direction string

const (
	DirectionCharge    Direction = "charge"
	DirectionDischarge Direction = "discharge"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case DirectionCharge:
		return DirectionCharge, nil
	case DirectionDischarge:
		return DirectionDischarge, nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

// SyncPolicy anchors a computed sub interval inside its period.
type SyncPolicy string

const (
	SyncStart  SyncPolicy = "start"
	SyncEnd    SyncPolicy = "end"
	SyncRandom SyncPolicy = "none"
)

func ParseSyncPolicy(s string) (SyncPolicy, error) {
	switch strings.ToLower(s) {
	case "start":
		return SyncStart, nil
	case "end":
		return SyncEnd, nil
	case "", "none", "random":
		return SyncRandom, nil
	}
	return "", fmt.Errorf("invalid sync policy %q", s)
}

const TimeslotCount = 3

// Period is a configured daily window for one charge or discharge timeslot.
// Values are built once from configuration and never mutated.
type Period struct {
	Name            string
	Direction       Direction
	Timeslot        int
	Start           HHMM
	End             HHMM
	CurrentAmps     int
	Sync            SyncPolicy
	Requirement     ValueRef
	MinReserveRatio float64
	UseForecast     bool
}

// Duration is the window length in minutes. Windows crossing midnight wrap.
func (p Period) Duration() int {
	return p.Start.DiffTo(p.End)
}

func (p Period) IsCharge() bool {
	return p.Direction == DirectionCharge
}

// LongName is used in CLI and status output, e.g. "Charge period 1".
func (p Period) LongName() string {
	d := "Charge"
	if p.Direction == DirectionDischarge {
		d = "Discharge"
	}
	return fmt.Sprintf("%s period %d", d, p.Timeslot+1)
}

// Contains reports whether t lies inside [Start, End].
func (p Period) Contains(t HHMM) bool {
	return p.Start.DiffTo(t) <= p.Duration()
}
