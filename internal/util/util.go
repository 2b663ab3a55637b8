package util

import (
	"github.com/berfenger/solisflux/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	noForecast := false
	return config.Config{
		LogLevel: zap.DebugLevel,
		Solis: config.SolisConfig{
			KeyId:         "1300386381676",
			KeySecret:     "secret",
			UserName:      "user@example.com",
			Password:      "password",
			TimeoutMillis: 2000,
			Retries:       1,
		},
		InverterModbusTcp: config.InverterModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        1,
			TimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "solisflux",
			HADiscoveryTopic: "homeassistant",
			StatestreamTopic: "homeassistant",
		},
		Battery: config.BatteryConfig{
			CapacityKWh:         10,
			InverterMaxCurrent:  62.5,
			BatteryMaxCurrent:   55,
			AmpHourConstant:     0.05,
			MaxClockSkewMinutes: 5,
		},
		Forecast: config.ForecastConfig{
			RemainingToday: "sensor.solcast_remaining_today",
			HistoryDays:    7,
		},
		Consumption: config.ConsumptionConfig{
			HistoryDays: 7,
		},
		Schedule: config.ScheduleConfig{
			LeadTimeMinutes:   20,
			RetryDelayMinutes: 5,
			DailyUpdateCron:   "0 55 23 * * *",
			RandomSeed:        42,
			Timezone:          "UTC",
		},
		PeriodList: []config.PeriodConfig{
			{
				Name:           "night",
				Direction:      "charge",
				Timeslot:       0,
				Start:          "00:00",
				End:            "06:00",
				Current:        25,
				Sync:           "start",
				KWhRequirement: "7",
			},
			{
				Name:           "evening",
				Direction:      "discharge",
				Timeslot:       0,
				Start:          "16:00",
				End:            "19:00",
				Current:        20,
				Sync:           "end",
				KWhRequirement: "2",
				UseForecast:    &noForecast,
			},
		},
		Port: 8080,
	}
}
