package solis_modbus

import (
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInverter serves the registers read by SolisModbusReader.
type fakeInverter struct {
	input   map[uint16]uint16
	holding map[uint16]uint16
}

func (f *fakeInverter) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (f *fakeInverter) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (f *fakeInverter) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	return lookup(f.holding, req.Addr, req.Quantity)
}

func (f *fakeInverter) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return lookup(f.input, req.Addr, req.Quantity)
}

func lookup(regs map[uint16]uint16, addr, quantity uint16) ([]uint16, error) {
	res := make([]uint16, 0, quantity)
	for i := uint16(0); i < quantity; i++ {
		v, ok := regs[addr+i]
		if !ok {
			return nil, modbus.ErrIllegalDataAddress
		}
		res = append(res, v)
	}
	return res, nil
}

func TestSolisModbusReader(t *testing.T) {

	require := require.New(t)

	fake := &fakeInverter{
		input: map[uint16]uint16{
			REG_BATTERY_SOC: 64,
			33022:           24, 33023: 3, 33024: 10, 33025: 23, 33026: 41, 33027: 7,
		},
		holding: map[uint16]uint16{
			REG_OVER_DISCHARGE_SOC: 15,
		},
	}
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        "tcp://127.0.0.1:15502",
		Timeout:    10 * time.Second,
		MaxClients: 2,
	}, fake)
	require.NoError(err)
	require.NoError(server.Start())
	defer server.Stop()

	reader, err := CreateSolisModbusReader("127.0.0.1", 15502, 1, time.Second, zap.Must(zap.NewDevelopment()), nil)
	require.NoError(err)
	require.NoError(reader.Open())
	defer reader.Close()

	battery, err := reader.GetBatteryState()
	require.NoError(err)
	require.Equal(64.0, battery.StateOfCharge)
	require.Equal(15.0, battery.OverDischargeSoC)

	clock, err := reader.GetClock(time.UTC)
	require.NoError(err)
	require.Equal(time.Date(2024, 3, 10, 23, 41, 7, 0, time.UTC), clock)

	// out of range SOC is rejected
	fake.input[REG_BATTERY_SOC] = 250
	_, err = reader.GetBatteryState()
	assert.Error(t, err)
}

func TestRecordTimer(t *testing.T) {

	var names []string
	inst := []ModbusInstrument{{RecordTime: func(fnName string, _ time.Duration) {
		names = append(names, fnName)
	}}}

	RecordTimer("ReadRegister", inst)()
	RecordTimer("ReadRegisters", nil)()
	assert.Equal(t, []string{"ReadRegister"}, names)
}
