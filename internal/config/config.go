package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pders01/restodash/internal/mutation"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RESTODASH_API_TOKEN
const EnvPrefix = "RESTODASH"

// Settings is the typed view of the configuration
type Settings struct {
	API       APISettings       `mapstructure:"api"`
	UI        UISettings        `mapstructure:"ui"`
	Log       LogSettings       `mapstructure:"log"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	Mutation  MutationSettings  `mapstructure:"mutation"`
	DevServer DevServerSettings `mapstructure:"devserver"`
}

type APISettings struct {
	URL     string            `mapstructure:"url"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Token   string            `mapstructure:"token"`
	Headers map[string]string `mapstructure:"headers"`
}

type UISettings struct {
	Locale  string `mapstructure:"locale"`
	Verbose bool   `mapstructure:"verbose"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetrySettings turn on local export of metrics and traces
type TelemetrySettings struct {
	// Metrics prints the collected metrics when a command ends
	Metrics bool `mapstructure:"metrics"`
	// Trace prints a span for every API request
	Trace bool `mapstructure:"trace"`
}

type MutationSettings struct {
	Policy string `mapstructure:"policy"`
}

type DevServerSettings struct {
	Addr           string        `mapstructure:"addr"`
	RestaurantName string        `mapstructure:"restaurant_name"`
	FailWrites     int           `mapstructure:"fail_writes"`
	AlwaysFail     bool          `mapstructure:"always_fail"`
	Latency        time.Duration `mapstructure:"latency"`
	Watch          []string      `mapstructure:"watch"`
}

// SetDefaults registers the default value of every key
func SetDefaults() {
	viper.SetDefault("api.url", "http://localhost:3333")
	viper.SetDefault("api.timeout", "10s")
	viper.SetDefault("api.token", "")
	viper.SetDefault("ui.locale", "en")
	viper.SetDefault("ui.verbose", false)
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("telemetry.metrics", false)
	viper.SetDefault("telemetry.trace", false)
	viper.SetDefault("mutation.policy", "concurrent")
	viper.SetDefault("devserver.addr", "localhost:3333")
	viper.SetDefault("devserver.restaurant_name", "Pizza Shop")
	viper.SetDefault("devserver.fail_writes", 0)
	viper.SetDefault("devserver.always_fail", false)
	viper.SetDefault("devserver.latency", "0s")
}

// Load decodes the current configuration into Settings
func Load() (*Settings, error) {
	var s Settings
	err := viper.Unmarshal(&s, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	headers, err := apiHeaders()
	if err != nil {
		return nil, err
	}
	s.API.Headers = headers

	return &s, nil
}

// apiHeaders reads extra headers sent with every request.
// Header values may be written as numbers or booleans in the config file.
func apiHeaders() (map[string]string, error) {
	raw := viper.Get("api.headers")
	if raw == nil {
		return nil, nil
	}
	headers, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid api.headers: %w", err)
	}
	return headers, nil
}

// ParsePolicy maps a policy name to a mutation.Policy
func ParsePolicy(name string) (mutation.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "concurrent":
		return mutation.PolicyConcurrent, nil
	case "serialized", "serial":
		return mutation.PolicySerialized, nil
	default:
		return 0, fmt.Errorf("invalid mutation policy: %s (must be: concurrent, serialized)", name)
	}
}

// ParseLogLevel maps a level name to a slog.Level
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", name)
	}
	return level, nil
}
