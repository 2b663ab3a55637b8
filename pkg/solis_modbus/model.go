package solis_modbus

import "time"

// register map of Solis hybrid inverters
const (
	REG_CLOCK_YEAR         = 33022 // input, 6 registers: yy mm dd hh mm ss
	REG_BATTERY_SOC        = 33139 // input, percent
	REG_OVER_DISCHARGE_SOC = 43011 // holding, percent
	CLOCK_REGISTER_COUNT   = 6
)

type BatteryState struct {
	StateOfCharge    float64
	OverDischargeSoC float64
}

type InverterModbusReader interface {
	Open() error
	Close() error
	GetBatteryState() (*BatteryState, error)
	GetClock(loc *time.Location) (time.Time, error)
}
