package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/core/service"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel          zapcore.Level
	Port              uint                    `mapstructure:"port"`
	HttpLog           bool                    `mapstructure:"http_log"`
	Solis             SolisConfig             `mapstructure:"solis"`
	InverterModbusTcp InverterModbusTCPConfig `mapstructure:"inverter_modbus_tcp"`
	MQTT              MQTTConfig              `mapstructure:"mqtt"`
	Battery           BatteryConfig           `mapstructure:"battery"`
	Forecast          ForecastConfig          `mapstructure:"forecast"`
	Consumption       ConsumptionConfig       `mapstructure:"consumption"`
	Schedule          ScheduleConfig          `mapstructure:"schedule"`
	PeriodList        []PeriodConfig          `mapstructure:"periods"`
	Store             StoreConfig             `mapstructure:"store"`
}

type SolisConfig struct {
	APIURL        string `mapstructure:"api_url"`
	KeyId         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	UserName      string `mapstructure:"user_name"`
	Password      string `mapstructure:"password"`
	StationId     string `mapstructure:"station_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
	Retries       int    `mapstructure:"retries"`
}

type InverterModbusTCPConfig struct {
	Enable        bool
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
	StatestreamTopic  string `mapstructure:"statestream_topic"`
}

type BatteryConfig struct {
	CapacityKWh         float64 `mapstructure:"capacity_kwh"`
	InverterMaxCurrent  float64 `mapstructure:"inverter_max_current"`
	BatteryMaxCurrent   float64 `mapstructure:"battery_max_current"`
	AmpHourConstant     float64 `mapstructure:"amp_hour_constant"`
	MaxClockSkewMinutes float64 `mapstructure:"max_clock_skew_minutes"`
}

type ForecastConfig struct {
	RemainingToday string  `mapstructure:"remaining_today"`
	Tomorrow       string  `mapstructure:"tomorrow"`
	ActualToday    string  `mapstructure:"actual_today"`
	Uplift         float64 `mapstructure:"uplift"`
	HistoryDays    int     `mapstructure:"history_days"`
}

type ConsumptionConfig struct {
	DailyKWh        float64 `mapstructure:"daily_kwh"`
	DailyGridEnergy string  `mapstructure:"daily_grid_energy"`
	HistoryDays     int     `mapstructure:"history_days"`
}

type ScheduleConfig struct {
	LeadTimeMinutes   int    `mapstructure:"lead_time_minutes"`
	RetryDelayMinutes int    `mapstructure:"retry_delay_minutes"`
	DailyUpdateCron   string `mapstructure:"daily_update_cron"`
	RandomSeed        uint64 `mapstructure:"random_seed"`
	Timezone          string `mapstructure:"timezone"`
}

type PeriodConfig struct {
	Name            string
	Direction       string
	Timeslot        int
	Start           string
	End             string
	Current         int
	Sync            string
	KWhRequirement  string  `mapstructure:"kwh_requirement"`
	MinReserveRatio float64 `mapstructure:"min_reserve_ratio"`
	UseForecast     *bool   `mapstructure:"use_forecast"`
}

type StoreConfig struct {
	Path string
}

var periodNameRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Periods builds the immutable period values used by the planners.
func (c *Config) Periods() ([]domain.Period, error) {
	periods := make([]domain.Period, 0, len(c.PeriodList))
	names := map[string]bool{}
	slots := map[string]bool{}
	for i, pc := range c.PeriodList {
		p, err := pc.period()
		if err != nil {
			return nil, fmt.Errorf("periods[%d]: %w", i, err)
		}
		if names[p.Name] {
			return nil, fmt.Errorf("periods[%d]: duplicated name %q", i, p.Name)
		}
		names[p.Name] = true
		slot := fmt.Sprintf("%s%d", p.Direction, p.Timeslot)
		if slots[slot] {
			return nil, fmt.Errorf("periods[%d]: %s timeslot %d already used", i, p.Direction, p.Timeslot)
		}
		slots[slot] = true
		periods = append(periods, p)
	}
	return periods, nil
}

func (pc PeriodConfig) period() (domain.Period, error) {
	name := strings.ToLower(pc.Name)
	if !periodNameRegexp.MatchString(name) {
		return domain.Period{}, fmt.Errorf("invalid name %q. can only contain letters, numbers and underscores", pc.Name)
	}
	direction, err := domain.ParseDirection(pc.Direction)
	if err != nil {
		return domain.Period{}, err
	}
	if pc.Timeslot < 0 || pc.Timeslot >= domain.TimeslotCount {
		return domain.Period{}, fmt.Errorf("timeslot should be in [0, %d]", domain.TimeslotCount-1)
	}
	start, err := domain.ParseHHMM(pc.Start)
	if err != nil {
		return domain.Period{}, fmt.Errorf("start: %w", err)
	}
	end, err := domain.ParseHHMM(pc.End)
	if err != nil {
		return domain.Period{}, fmt.Errorf("end: %w", err)
	}
	if start == end {
		return domain.Period{}, errors.New("start and end should differ")
	}
	if pc.Current <= 0 {
		return domain.Period{}, errors.New("current should be > 0")
	}
	sync, err := domain.ParseSyncPolicy(pc.Sync)
	if err != nil {
		return domain.Period{}, err
	}
	ratio := pc.MinReserveRatio
	if ratio == 0 {
		ratio = service.DefaultMinReserveRatio
	}
	if ratio < 0 || ratio > 1 {
		return domain.Period{}, errors.New("min_reserve_ratio should be in [0, 1]")
	}
	useForecast := true
	if pc.UseForecast != nil {
		useForecast = *pc.UseForecast
	}
	return domain.Period{
		Name:            name,
		Direction:       direction,
		Timeslot:        pc.Timeslot,
		Start:           start,
		End:             end,
		CurrentAmps:     pc.Current,
		Sync:            sync,
		Requirement:     domain.ParseValueRef(pc.KWhRequirement),
		MinReserveRatio: ratio,
		UseForecast:     useForecast,
	}, nil
}

func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}

func (c *Config) Limits() domain.Limits {
	skew := service.DefaultMaxClockSkew
	if c.Battery.MaxClockSkewMinutes > 0 {
		skew = time.Duration(c.Battery.MaxClockSkewMinutes * float64(time.Minute))
	}
	return domain.Limits{
		InverterMaxCurrent: c.Battery.InverterMaxCurrent,
		BatteryMaxCurrent:  c.Battery.BatteryMaxCurrent,
		MaxClockSkew:       skew,
	}
}

func (c *Config) ForecastConfig() service.ForecastConfig {
	return service.ForecastConfig{
		RemainingToday: c.Forecast.RemainingToday,
		Tomorrow:       c.Forecast.Tomorrow,
		ActualToday:    c.Forecast.ActualToday,
		Uplift:         c.Forecast.Uplift,
		HistoryDays:    c.Forecast.HistoryDays,
	}
}

func (c *Config) ConsumptionConfig() service.ConsumptionConfig {
	return service.ConsumptionConfig{
		DailyKWh:        c.Consumption.DailyKWh,
		DailyGridEnergy: c.Consumption.DailyGridEnergy,
		HistoryDays:     c.Consumption.HistoryDays,
	}
}

func (c *Config) SolisTimeout() time.Duration {
	return time.Duration(c.Solis.TimeoutMillis) * time.Millisecond
}

// Validate checks bounds once after loading. Nothing mutates the
// configuration afterwards.
func (c *Config) Validate() error {
	if c.Battery.CapacityKWh <= 0 {
		return errors.New("config param battery.capacity_kwh should be > 0")
	}
	if c.Battery.AmpHourConstant < 0 {
		return errors.New("config param battery.amp_hour_constant should be > 0")
	}
	if c.Battery.InverterMaxCurrent < 0 || c.Battery.BatteryMaxCurrent < 0 {
		return errors.New("config params battery.inverter_max_current and battery.battery_max_current should be >= 0")
	}
	if c.Schedule.LeadTimeMinutes <= 0 {
		return errors.New("config param schedule.lead_time_minutes should be > 0")
	}
	if c.Schedule.RetryDelayMinutes <= 0 || c.Schedule.RetryDelayMinutes >= c.Schedule.LeadTimeMinutes {
		return errors.New("config param schedule.retry_delay_minutes should be > 0 and < schedule.lead_time_minutes")
	}
	if c.Forecast.Uplift < 0 {
		return errors.New("config param forecast.uplift should be >= 0")
	}
	if c.Solis.Retries < 0 {
		return errors.New("config param solis.retries should be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config param schedule.timezone: %w", err)
	}
	if len(c.PeriodList) == 0 {
		return errors.New("at least one period should be configured")
	}
	if _, err := c.Periods(); err != nil {
		return err
	}
	return nil
}
