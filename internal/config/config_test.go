package config

import (
	"strings"
	"testing"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testYAML = `
log_level: debug
solis:
  key_id: "1300386381676"
  key_secret: secret
battery:
  capacity_kwh: 10
  inverter_max_current: 62.5
  battery_max_current: 55
forecast:
  remaining_today: sensor.solcast_remaining_today
periods:
  - name: Night
    direction: charge
    timeslot: 0
    start: "00:30"
    end: "05:30"
    current: 25
    sync: end
    kwh_requirement: 7
  - name: evening
    direction: discharge
    timeslot: 0
    start: "16:00"
    end: "19:00"
    current: 20
    kwh_requirement: sensor.evening_use
    min_reserve_ratio: 0.5
    use_forecast: false
`

func loadYAML(t *testing.T, doc string) (*Config, error) {
	v := viper.New()
	setConfigDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return fromViper(v)
}

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := loadYAML(t, testYAML)
	require.NoError(t, err)

	assert.Equal(zap.DebugLevel, cfg.LogLevel)
	assert.Equal(uint(8080), cfg.Port)
	assert.Equal("https://www.soliscloud.com:13333", cfg.Solis.APIURL)
	assert.Equal(2, cfg.Solis.Retries)
	assert.Equal("solisflux", cfg.MQTT.BaseTopic)
	assert.Equal("homeassistant", cfg.MQTT.StatestreamTopic)
	assert.Equal(0.05, cfg.Battery.AmpHourConstant)
	assert.Equal(20, cfg.Schedule.LeadTimeMinutes)
	assert.Equal(5, cfg.Schedule.RetryDelayMinutes)
	assert.Equal(7, cfg.Forecast.HistoryDays)
	assert.Equal(62.5, cfg.Limits().InverterMaxCurrent)
}

func TestPeriods(t *testing.T) {
	assert := assert.New(t)

	cfg, err := loadYAML(t, testYAML)
	require.NoError(t, err)

	periods, err := cfg.Periods()
	require.NoError(t, err)
	require.Len(t, periods, 2)

	night := periods[0]
	assert.Equal("night", night.Name)
	assert.Equal(domain.DirectionCharge, night.Direction)
	assert.Equal(domain.MustParseHHMM("00:30"), night.Start)
	assert.Equal(300, night.Duration())
	assert.Equal(domain.SyncEnd, night.Sync)
	assert.True(night.Requirement.IsLiteral())
	assert.Equal("7", night.Requirement.String())
	assert.Equal(0.25, night.MinReserveRatio)
	assert.True(night.UseForecast)

	evening := periods[1]
	assert.Equal(domain.DirectionDischarge, evening.Direction)
	assert.Equal(domain.SyncRandom, evening.Sync)
	assert.Equal("sensor.evening_use", evening.Requirement.Entity())
	assert.Equal(0.5, evening.MinReserveRatio)
	assert.False(evening.UseForecast)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		errText string
	}{
		{"capacity", [2]string{"capacity_kwh: 10", "capacity_kwh: 0"}, "capacity_kwh"},
		{"direction", [2]string{"direction: discharge", "direction: sideways"}, "invalid direction"},
		{"start", [2]string{`start: "16:00"`, `start: "25:00"`}, "start"},
		{"timeslot", [2]string{"timeslot: 0\n    start: \"16:00\"", "timeslot: 3\n    start: \"16:00\""}, "timeslot"},
		{"duplicated name", [2]string{"name: evening", "name: night"}, "duplicated name"},
		{"current", [2]string{"current: 20", "current: 0"}, "current"},
		{"empty window", [2]string{`end: "19:00"`, `end: "16:00"`}, "start and end should differ"},
		{"sync", [2]string{"sync: end", "sync: middle"}, "sync"},
		{"retry delay", [2]string{"log_level: debug", "log_level: debug\nschedule:\n  retry_delay_minutes: 30"}, "retry_delay_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(testYAML, tt.replace[0], tt.replace[1], 1)
			_, err := loadYAML(t, doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestDuplicatedTimeslot(t *testing.T) {
	doc := strings.Replace(testYAML, "direction: discharge", "direction: charge", 1)
	_, err := loadYAML(t, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge timeslot 0 already used")
}

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("SolisFlux_1")
	require.NoError(t, err)
	assert.Equal(t, "solisflux_1", topic)

	_, err = CheckMQTTTopic("solis/flux")
	assert.Error(t, err)
}
