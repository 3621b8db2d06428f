package config

// Package config handles configuration loading for eventpulse.
// It supports YAML config files with environment variable overrides.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/arkad-labs/eventpulse/internal/options"
)

// Config represents the complete application configuration.
type Config struct {
	Market   MarketConfig   `mapstructure:"market"   yaml:"market"`
	Options  OptionsConfig  `mapstructure:"options"  yaml:"options"`
	Scoring  ScoringConfig  `mapstructure:"scoring"  yaml:"scoring"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// MarketConfig holds price-history and event-detection settings.
type MarketConfig struct {
	Benchmark     string `mapstructure:"benchmark"      yaml:"benchmark"` // market proxy symbol, e.g. "SPY"
	LookbackDays  int    `mapstructure:"lookback_days"  yaml:"lookback_days"`
	EventCount    int    `mapstructure:"event_count"    yaml:"event_count"` // top-K volume×gap days to flag
	UseResidual   bool   `mapstructure:"use_residual"   yaml:"use_residual"`
	RollingWindow int    `mapstructure:"rolling_window" yaml:"rolling_window"` // rolling HV window, trading days
}

// OptionsConfig holds options-chain fetch settings.
type OptionsConfig struct {
	MaxExpirations int `mapstructure:"max_expirations"  yaml:"max_expirations"`
	RequestDelayMS int `mapstructure:"request_delay_ms" yaml:"request_delay_ms"` // spacing between per-expiration fetches
	CacheTTL       int `mapstructure:"cache_ttl"        yaml:"cache_ttl"`        // seconds
	TimeoutSec     int `mapstructure:"timeout_sec"      yaml:"timeout_sec"`
	RateLimit      int `mapstructure:"rate_limit"       yaml:"rate_limit"` // upstream requests per second
}

// ScoringConfig exposes the anticipation-scoring tunables that operators
// most often want to move. Everything else keeps its built-in default.
type ScoringConfig struct {
	OTMThreshold      float64 `mapstructure:"otm_threshold"       yaml:"otm_threshold"`
	UnusualVolumeMult float64 `mapstructure:"unusual_volume_mult" yaml:"unusual_volume_mult"`
	VRPFloor          float64 `mapstructure:"vrp_floor"           yaml:"vrp_floor"`
	VRPCap            float64 `mapstructure:"vrp_cap"             yaml:"vrp_cap"`
	MoveCap           float64 `mapstructure:"move_cap"            yaml:"move_cap"`
	KinkPP            float64 `mapstructure:"kink_pp"             yaml:"kink_pp"`
}

// SnapshotConfig holds the dollar-flow snapshot store settings.
type SnapshotConfig struct {
	Dir           string `mapstructure:"dir"            yaml:"dir"`
	TrailingDays  int    `mapstructure:"trailing_days"  yaml:"trailing_days"` // history window for the flow trend
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.eventpulse/config.yaml (home directory)
//  3. /etc/eventpulse/config.yaml (system)
//
// Environment variables override config file values.
// Format: EVENTPULSE_<SECTION>_<KEY>, e.g., EVENTPULSE_MARKET_BENCHMARK
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".eventpulse"))
	v.AddConfigPath("/etc/eventpulse")

	bindEnv(v)

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("EVENTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Market defaults
	v.SetDefault("market.benchmark", "SPY")
	v.SetDefault("market.lookback_days", 200)
	v.SetDefault("market.event_count", 15)
	v.SetDefault("market.use_residual", true)
	v.SetDefault("market.rolling_window", 20)

	// Options-chain defaults
	v.SetDefault("options.max_expirations", 3)
	v.SetDefault("options.request_delay_ms", 400)
	v.SetDefault("options.cache_ttl", 300) // 5 minutes
	v.SetDefault("options.timeout_sec", 15)
	v.SetDefault("options.rate_limit", 4)

	// Scoring defaults mirror the built-in parameters
	p := options.DefaultScoringParams()
	v.SetDefault("scoring.otm_threshold", p.OTMThreshold)
	v.SetDefault("scoring.unusual_volume_mult", p.UnusualVolumeMult)
	v.SetDefault("scoring.vrp_floor", p.VRPFloor)
	v.SetDefault("scoring.vrp_cap", p.VRPCap)
	v.SetDefault("scoring.move_cap", p.MoveCap)
	v.SetDefault("scoring.kink_pp", p.KinkPP)

	// Snapshot defaults
	v.SetDefault("snapshot.dir", filepath.Join(homeDir(), ".eventpulse", "snapshots"))
	v.SetDefault("snapshot.trailing_days", 20)
	v.SetDefault("snapshot.retention_days", 90)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Market.Benchmark == "" {
		return fmt.Errorf("market.benchmark must be set")
	}
	if c.Market.LookbackDays < 30 {
		return fmt.Errorf("market.lookback_days must be at least 30, got %d", c.Market.LookbackDays)
	}
	if c.Market.EventCount < 1 {
		return fmt.Errorf("market.event_count must be at least 1, got %d", c.Market.EventCount)
	}
	if c.Market.RollingWindow < 2 {
		return fmt.Errorf("market.rolling_window must be at least 2, got %d", c.Market.RollingWindow)
	}
	if c.Options.MaxExpirations < 1 {
		return fmt.Errorf("options.max_expirations must be at least 1, got %d", c.Options.MaxExpirations)
	}
	if c.Scoring.VRPCap <= c.Scoring.VRPFloor {
		return fmt.Errorf("scoring.vrp_cap (%v) must exceed scoring.vrp_floor (%v)",
			c.Scoring.VRPCap, c.Scoring.VRPFloor)
	}
	if c.Scoring.MoveCap <= 1 {
		return fmt.Errorf("scoring.move_cap must exceed 1, got %v", c.Scoring.MoveCap)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	return nil
}

// ScoringParams resolves the full scoring parameter set: built-in defaults
// overridden by the configured tunables.
func (c *Config) ScoringParams() options.ScoringParams {
	p := options.DefaultScoringParams()
	p.OTMThreshold = c.Scoring.OTMThreshold
	p.UnusualVolumeMult = c.Scoring.UnusualVolumeMult
	p.VRPFloor = c.Scoring.VRPFloor
	p.VRPCap = c.Scoring.VRPCap
	p.MoveCap = c.Scoring.MoveCap
	p.KinkPP = c.Scoring.KinkPP
	return p
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
