package config

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const ENV_PREFIX = "solisflux"

// Load reads defaults, the optional CONFIG_FILE yaml and SOLISFLUX_*
// environment variables, then validates the result.
func Load() (*Config, error) {

	// alias PORT => SOLISFLUX_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SOLISFLUX_PORT", port)
	}

	v := viper.New()
	setConfigDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch v.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	statestreamTopic, err := CheckMQTTTopic(cfg.MQTT.StatestreamTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant statestream topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.StatestreamTopic = statestreamTopic

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("port", 8080)
	v.SetDefault("solis.api_url", "https://www.soliscloud.com:13333")
	v.SetDefault("solis.timeout_millis", 10000)
	v.SetDefault("solis.retries", 2)
	v.SetDefault("inverter_modbus_tcp.enable", false)
	v.SetDefault("inverter_modbus_tcp.port", 502)
	v.SetDefault("inverter_modbus_tcp.unit_id", 1)
	v.SetDefault("inverter_modbus_tcp.timeout_millis", 1000)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.base_topic", "solisflux")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("mqtt.statestream_topic", "homeassistant")
	v.SetDefault("battery.amp_hour_constant", 0.05)
	v.SetDefault("battery.max_clock_skew_minutes", 5)
	v.SetDefault("forecast.history_days", 7)
	v.SetDefault("consumption.history_days", 7)
	v.SetDefault("schedule.lead_time_minutes", 20)
	v.SetDefault("schedule.retry_delay_minutes", 5)
	v.SetDefault("schedule.daily_update_cron", "0 55 23 * * *")
	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("store.path", "")
}

// SafePrint logs the configuration with secrets redacted.
func SafePrint(cfg Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Solis.KeySecret = "*redacted*"
	cfg.Solis.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
