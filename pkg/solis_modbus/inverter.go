package solis_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type SolisModbusReader struct {
	ModbusClient

	logger *zap.Logger
}

func (inv *SolisModbusReader) Open() error {
	return inv.client.Open()
}

func (inv SolisModbusReader) Close() error {
	return inv.client.Close()
}

func (inv SolisModbusReader) GetBatteryState() (*BatteryState, error) {
	soc, err := inv.readRegister(REG_BATTERY_SOC, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	ods, err := inv.readRegister(REG_OVER_DISCHARGE_SOC, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	if soc > 100 || ods > 100 {
		return nil, fmt.Errorf("solis: invalid battery state soc=%d ods=%d", soc, ods)
	}
	return &BatteryState{
		StateOfCharge:    float64(soc),
		OverDischargeSoC: float64(ods),
	}, nil
}

// GetClock reads the inverter real time clock. The inverter has no notion
// of time zones, loc is the zone it was set in.
func (inv SolisModbusReader) GetClock(loc *time.Location) (time.Time, error) {
	regs, err := inv.readRegisters(REG_CLOCK_YEAR, CLOCK_REGISTER_COUNT, modbus.INPUT_REGISTER)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	year := int(regs[0])
	if year < 100 {
		year += 2000
	}
	return time.Date(year, time.Month(regs[1]), int(regs[2]), int(regs[3]), int(regs[4]), int(regs[5]), 0, loc), nil
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug(fmt.Sprintf("modbus [%s]: %d millis", fnName, readTime.Milliseconds()))
		},
	}
}

func CreateSolisModbusReader(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (InverterModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "inverter"), zap.Uint8("unit_id", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	if unitId > 0 {
		err = client.SetUnitId(unitId)
		if err != nil {
			return nil, err
		}
	}

	return &SolisModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
	}, nil
}
