package solis_modbus

import "time"

type TestInverterModbusReader struct {
}

func (inv TestInverterModbusReader) Open() error {
	return nil
}

func (inv TestInverterModbusReader) Close() error {
	return nil
}

func (inv TestInverterModbusReader) GetBatteryState() (*BatteryState, error) {
	return &BatteryState{
		StateOfCharge:    50,
		OverDischargeSoC: 5,
	}, nil
}

func (inv TestInverterModbusReader) GetClock(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc).Truncate(time.Second), nil
}
