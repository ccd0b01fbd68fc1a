package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Parser    ParserConfig    `mapstructure:"parser"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// DetectorConfig tunes virtual punch detection.
type DetectorConfig struct {
	RadiusMeters       float64 `mapstructure:"radius_meters"`
	ApproachMeters     float64 `mapstructure:"approach_meters"`
	DebounceSeconds    float64 `mapstructure:"debounce_seconds"`
	PoorAccuracyMeters float64 `mapstructure:"poor_accuracy_meters"`
}

// ParserConfig caps fork expansion for adversarial course graphs.
type ParserConfig struct {
	MaxPaths int `mapstructure:"max_paths"`
	MaxDepth int `mapstructure:"max_depth"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("detector.radius_meters", 20.0)
	v.SetDefault("detector.approach_meters", 50.0)
	v.SetDefault("detector.debounce_seconds", 5.0)
	v.SetDefault("detector.poor_accuracy_meters", 30.0)
	v.SetDefault("parser.max_paths", 64)
	v.SetDefault("parser.max_depth", 300)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: OTRACK_DETECTOR_RADIUS_METERS → detector.radius_meters
	v.SetEnvPrefix("OTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Detector.RadiusMeters <= 0 {
		errs = append(errs, "detector.radius_meters must be positive")
	}
	if c.Detector.ApproachMeters < c.Detector.RadiusMeters {
		errs = append(errs, "detector.approach_meters must not be smaller than detector.radius_meters")
	}
	if c.Detector.DebounceSeconds < 0 {
		errs = append(errs, "detector.debounce_seconds must not be negative")
	}
	if c.Parser.MaxPaths <= 0 {
		errs = append(errs, "parser.max_paths must be positive")
	}
	if c.Parser.MaxDepth <= 0 {
		errs = append(errs, "parser.max_depth must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
