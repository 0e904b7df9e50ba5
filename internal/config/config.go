package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Staleness StalenessConfig `yaml:"staleness" mapstructure:"staleness"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig groups the per-provider adapter settings.
type ProvidersConfig struct {
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
}

// NominatimConfig configures the open geocoder adapter.
type NominatimConfig struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
	Priority  int     `yaml:"priority" mapstructure:"priority"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// GoogleConfig configures the commercial geocoder adapter. The
// adapter reports itself unavailable without an API key.
type GoogleConfig struct {
	APIKey   string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL  string  `yaml:"base_url" mapstructure:"base_url"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
	Priority int     `yaml:"priority" mapstructure:"priority"`
}

// CacheConfig configures the geocode result cache backend.
type CacheConfig struct {
	Driver  string `yaml:"driver" mapstructure:"driver"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	TTLDays int    `yaml:"ttl_days" mapstructure:"ttl_days"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// StalenessConfig configures the too-generic classifier.
type StalenessConfig struct {
	CentroidLat      float64 `yaml:"centroid_lat" mapstructure:"centroid_lat"`
	CentroidLon      float64 `yaml:"centroid_lon" mapstructure:"centroid_lon"`
	ThresholdDeg     float64 `yaml:"threshold_deg" mapstructure:"threshold_deg"`
	FreshWindowMins  int     `yaml:"fresh_window_mins" mapstructure:"fresh_window_mins"`
	MinConfidence    int     `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// GeocodeConfig configures orchestrator-level behavior.
type GeocodeConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Region      string `yaml:"region" mapstructure:"region"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOCATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("providers.nominatim.enabled", true)
	v.SetDefault("providers.nominatim.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("providers.nominatim.rps", 1.0)
	v.SetDefault("providers.nominatim.priority", 1)
	v.SetDefault("providers.nominatim.user_agent", "locator-cli/1.0")
	v.SetDefault("providers.google.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("providers.google.rps", 10.0)
	v.SetDefault("providers.google.priority", 2)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.dsn", "locator-cache.db")
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("staleness.threshold_deg", 0.05)
	v.SetDefault("staleness.fresh_window_mins", 60)
	v.SetDefault("staleness.min_confidence", 80)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for values the CLI cannot run
// with, accumulating every problem into a single error.
func (c *Config) Validate() error {
	var problems []string

	switch c.Cache.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "cache.driver must be sqlite or postgres")
	}
	if c.Cache.Enabled && c.Cache.DSN == "" {
		problems = append(problems, "cache.dsn is required when cache.enabled")
	}
	if c.Cache.TTLDays < 1 {
		problems = append(problems, "cache.ttl_days must be >= 1")
	}

	if !c.Providers.Nominatim.Enabled && c.Providers.Google.APIKey == "" {
		problems = append(problems, "at least one provider must be usable (enable nominatim or set providers.google.api_key)")
	}
	if c.Providers.Nominatim.Enabled && c.Providers.Nominatim.RPS <= 0 {
		problems = append(problems, "providers.nominatim.rps must be > 0")
	}
	if c.Providers.Google.APIKey != "" && c.Providers.Google.RPS <= 0 {
		problems = append(problems, "providers.google.rps must be > 0")
	}

	if c.Staleness.ThresholdDeg <= 0 {
		problems = append(problems, "staleness.threshold_deg must be > 0")
	}
	if c.Staleness.FreshWindowMins < 0 {
		problems = append(problems, "staleness.fresh_window_mins must be >= 0")
	}

	if c.Geocode.TimeoutSecs < 1 || c.Geocode.TimeoutSecs > 120 {
		problems = append(problems, "geocode.timeout_secs must be between 1 and 120")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
