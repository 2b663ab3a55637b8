package domain

import (
	"errors"
	"fmt"
)

// ErrConfig marks missing telemetry or configuration. A cycle that hits it
// is abandoned without touching the inverter.
var ErrConfig = errors.New("config error")

// BatteryState is a telemetry snapshot. SOC and ODS are pointers because the
// inverter may not have reported them yet.
type BatteryState struct {
	CapacityKWh          float64
	SoCPercent           *float64
	OverDischargePercent *float64
}

type EnergyValues struct {
	UnavailableKWh float64
	FullKWh        float64
	CurrentKWh     float64
	RealSoC        float64
}

func (s BatteryState) EnergyValues() (EnergyValues, error) {
	return CalcEnergyValues(s.CapacityKWh, s.SoCPercent, s.OverDischargePercent)
}

// CalcEnergyValues converts capacity, SOC and over discharge threshold into
// usable energy quantities.
func CalcEnergyValues(capacity float64, socPercent, odsPercent *float64) (EnergyValues, error) {
	if socPercent == nil || odsPercent == nil {
		return EnergyValues{}, fmt.Errorf("%w: no battery details from connection", ErrConfig)
	}
	unavailable := capacity * *odsPercent / 100.0
	full := capacity - unavailable
	current := (*socPercent * capacity / 100.0) - unavailable
	var realSoC float64
	if full > 0 {
		realSoC = current / full * 100.0
	}
	return EnergyValues{
		UnavailableKWh: unavailable,
		FullKWh:        full,
		CurrentKWh:     current,
		RealSoC:        realSoC,
	}, nil
}

// SoCFor returns the battery SOC percent that corresponds to the given usable
// energy level.
func (e EnergyValues) SoCFor(levelKWh float64) float64 {
	total := e.FullKWh + e.UnavailableKWh
	if total <= 0 {
		return 0
	}
	return (levelKWh + e.UnavailableKWh) / total * 100.0
}

// SoC returns the battery SOC percent for the current energy.
func (e EnergyValues) SoC() float64 {
	return e.SoCFor(e.CurrentKWh)
}

func Float(v float64) *float64 {
	return &v
}
