package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE      = "bridge"
	SENSOR_SUFFIX_STATUS        = "status"
	SENSOR_SUFFIX_START         = "start"
	SENSOR_SUFFIX_END           = "end"
	SENSOR_SUFFIX_ENERGY_AFTER  = "energy_after"
	SENSOR_SUFFIX_TARGET        = "target"
	CONTROL_SUFFIX_RUN          = "run"
	CONTROL_SUFFIX_MINUTES      = "minutes"
	STATE_CLASS_MEASUREMENT     = "measurement"
	DEVICE_CLASS_ENERGY_STORAGE = "energy_storage"
	DEVICE_CLASS_CONNECTIVITY   = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC     = "diagnostic"
	SENSOR_TYPE_SENSOR          = "sensor"
	SENSOR_TYPE_BINARY          = "binary_sensor"
	UNIT_KWH                    = "kWh"
	UNIT_MINUTES                = "min"
)

func PeriodSensorId(period, suffix string) string {
	return fmt.Sprintf("%s_%s", period, suffix)
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("solisflux_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Solisflux",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Solisflux %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(telemetry *InverterTelemetry) Device {
	return Device{
		Id:           fmt.Sprintf("solis_inverter_%s", md5HashShort(telemetry.InverterSN)),
		Manufacturer: "Solis",
		Model:        telemetry.BatteryType,
		Name:         fmt.Sprintf("Solis %s %s", telemetry.StationName, md5HashShort(telemetry.InverterSN)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Bridge state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

// PeriodSensors lists the status sensors published for one period.
func PeriodSensors(device Device, period Period) []GenericSensor {
	var sensors []GenericSensor

	id := PeriodSensorId(period.Name, SENSOR_SUFFIX_STATUS)
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         id,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       fmt.Sprintf("%s status", period.LongName()),
		Icon:       "mdi:calendar-clock",
		UniqueId:   uniqueId(device.Id, id),
	})

	for _, suffix := range []string{SENSOR_SUFFIX_START, SENSOR_SUFFIX_END} {
		id := PeriodSensorId(period.Name, suffix)
		sensors = append(sensors, GenericSensor{
			Device:     device,
			Id:         id,
			SensorType: SENSOR_TYPE_SENSOR,
			Name:       fmt.Sprintf("%s %s", period.LongName(), suffix),
			Icon:       "mdi:clock-outline",
			UniqueId:   uniqueId(device.Id, id),
		})
	}

	// Projected energy after the period
	id = PeriodSensorId(period.Name, SENSOR_SUFFIX_ENERGY_AFTER)
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                id,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              fmt.Sprintf("%s energy after", period.LongName()),
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY_STORAGE,
		UnitOfMeasurement: UNIT_KWH,
		UniqueId:          uniqueId(device.Id, id),
	})

	// Target energy level
	id = PeriodSensorId(period.Name, SENSOR_SUFFIX_TARGET)
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                id,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              fmt.Sprintf("%s target", period.LongName()),
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY_STORAGE,
		UnitOfMeasurement: UNIT_KWH,
		UniqueId:          uniqueId(device.Id, id),
	})

	return sensors
}

// PeriodButtons lists the run-now button of a period.
func PeriodButtons(device Device, period Period) []GenericButton {
	id := PeriodSensorId(period.Name, CONTROL_SUFFIX_RUN)
	return []GenericButton{{
		Device:   device,
		Id:       id,
		Name:     fmt.Sprintf("%s run", period.LongName()),
		Icon:     "mdi:play-circle-outline",
		UniqueId: uniqueId(device.Id, id),
	}}
}

// PeriodInputNumbers lists the manual duration control of a period.
func PeriodInputNumbers(device Device, period Period) []GenericInputNumber {
	id := PeriodSensorId(period.Name, CONTROL_SUFFIX_MINUTES)
	return []GenericInputNumber{{
		Device:            device,
		Id:                id,
		Name:              fmt.Sprintf("%s minutes", period.LongName()),
		Icon:              "mdi:timer-outline",
		UniqueId:          uniqueId(device.Id, id),
		UnitOfMeasurement: UNIT_MINUTES,
		Min:               0,
		Max:               float64(period.Duration()),
		Step:              1,
		Mode:              "box",
	}}
}

// ParsePeriodControl splits a control id such as "night_run" into the
// period name and the control suffix.
func ParsePeriodControl(id string) (period, control string, ok bool) {
	for _, suffix := range []string{CONTROL_SUFFIX_RUN, CONTROL_SUFFIX_MINUTES} {
		if name, found := strings.CutSuffix(id, "_"+suffix); found && name != "" {
			return name, suffix, true
		}
	}
	return "", "", false
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[:8]
}
