package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// CycleOutcome is published on the event stream after every cycle attempt.
type CycleOutcome struct {
	Period     string
	Schedule   ScheduleResult
	LevelKWh   float64
	CurrentKWh float64
	Result     Result
	Message    string
	Retrying   bool
}

// UpdateEvents maps an outcome to the sensors published for its period.
func (o CycleOutcome) UpdateEvents() []SensorUpdateEvent {
	return []SensorUpdateEvent{
		TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: PeriodSensorId(o.Period, SENSOR_SUFFIX_STATUS)},
			Value:                  o.Message,
		},
		TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: PeriodSensorId(o.Period, SENSOR_SUFFIX_START)},
			Value:                  o.Schedule.Start.String(),
		},
		TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: PeriodSensorId(o.Period, SENSOR_SUFFIX_END)},
			Value:                  o.Schedule.End.String(),
		},
		FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: PeriodSensorId(o.Period, SENSOR_SUFFIX_ENERGY_AFTER)},
			Value:                  o.Schedule.EnergyAfterKWh,
			Decimals:               1,
		},
		FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: PeriodSensorId(o.Period, SENSOR_SUFFIX_TARGET)},
			Value:                  o.LevelKWh,
			Decimals:               1,
		},
	}
}
