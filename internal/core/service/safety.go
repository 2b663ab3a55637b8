package service

import (
	"fmt"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
)

const DefaultMaxClockSkew = 5 * time.Minute

// CheckTime fails when the inverter clock drifted more than maxSkew from the
// host clock.
func CheckTime(inverterClock, hostClock time.Time, maxSkew time.Duration) domain.Result {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxClockSkew
	}
	diff := hostClock.Sub(inverterClock)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxSkew {
		return domain.Err(domain.ErrorKindTimeSync,
			fmt.Sprintf("Inverter date/time (%s) more than %.1f minutes out of sync with host (%s)",
				inverterClock.Format(time.DateTime), maxSkew.Minutes(), hostClock.Format(time.DateTime)))
	}
	return domain.Ok()
}

// CheckCurrent fails when a configured period current exceeds the inverter or
// battery maximum once the present inverter power draw is taken off.
// Battery limits are checked before inverter limits.
func CheckCurrent(periods []domain.Period, inverterPower *float64, limits domain.Limits) domain.Result {
	if inverterPower == nil {
		return domain.Err(domain.ErrorKindConfig, "No inverter power details from connection")
	}
	batteryMax := limits.BatteryMaxCurrent - *inverterPower
	inverterMax := limits.InverterMaxCurrent - *inverterPower

	for _, bound := range []struct {
		name string
		max  float64
	}{{"battery", batteryMax}, {"inverter", inverterMax}} {
		for _, d := range []domain.Direction{domain.DirectionCharge, domain.DirectionDischarge} {
			for _, p := range periods {
				if p.Direction != d {
					continue
				}
				if float64(p.CurrentAmps) > bound.max {
					return domain.Err(domain.ErrorKindCurrentLimit,
						fmt.Sprintf("%s current %.1fA > %s max %.1fA",
							directionLabel(d), float64(p.CurrentAmps), bound.name, bound.max))
				}
			}
		}
	}
	return domain.Ok()
}

// CheckAll runs CheckTime then CheckCurrent, stopping at the first failure.
func CheckAll(telemetry *domain.InverterTelemetry, periods []domain.Period, limits domain.Limits) domain.Result {
	if telemetry == nil {
		return domain.Err(domain.ErrorKindConfig, "Not connected to inverter")
	}
	if r := CheckTime(telemetry.InverterTime, telemetry.HostTime, limits.MaxClockSkew); !r.IsOk() {
		return r
	}
	return CheckCurrent(periods, telemetry.InverterPower, limits)
}

func directionLabel(d domain.Direction) string {
	if d == domain.DirectionDischarge {
		return "Discharge"
	}
	return "Charge"
}
