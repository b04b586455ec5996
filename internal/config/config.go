package config

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Style  StyleConfig            `yaml:"style" mapstructure:"style"`
	Cache  CacheConfig            `yaml:"cache" mapstructure:"cache"`
	Layers map[string]LayerConfig `yaml:"layers" mapstructure:"layers"`
	Server ServerConfig           `yaml:"server" mapstructure:"server"`
	Log    LogConfig              `yaml:"log" mapstructure:"log"`
}

// StyleConfig configures how styles are attached to features.
type StyleConfig struct {
	Property string `yaml:"property" mapstructure:"property"`
	Workers  int    `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig configures the styled layer cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLSecs    int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// LayerConfig names a feature source and the hideout used to style it.
// Layer names are lowercased when loaded.
type LayerConfig struct {
	Source  string       `yaml:"source" mapstructure:"source"`
	Hideout string       `yaml:"hideout" mapstructure:"hideout"`
	Detail  float64      `yaml:"detail" mapstructure:"detail"`
	Delta   *DeltaConfig `yaml:"delta" mapstructure:"delta"`
}

// DeltaConfig derives a "delta" property from two feature properties.
type DeltaConfig struct {
	Current string `yaml:"current" mapstructure:"current"`
	Compare string `yaml:"compare" mapstructure:"compare"`
	Mode    string `yaml:"mode" mapstructure:"mode"` // absolute (default) or percent
}

// ServerConfig configures the style server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
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
	v.SetEnvPrefix("CHOROPLETH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("style.property", "style")
	v.SetDefault("style.workers", 4)
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("cache.ttl_secs", 600)

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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "style":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Cache.MaxEntries < 0 {
			errs = append(errs, "cache.max_entries must be >= 0")
		}
		for name, layer := range c.Layers {
			if layer.Source == "" {
				errs = append(errs, "layers."+name+".source is required")
			}
			if layer.Hideout == "" {
				errs = append(errs, "layers."+name+".hideout is required")
			}
			errs = append(errs, validateDetail("layers."+name+".detail", layer.Detail)...)
			errs = append(errs, validateDelta("layers."+name+".delta", layer.Delta)...)
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Style.Property == "" {
		errs = append(errs, "style.property is required")
	}
	if c.Style.Workers < 1 || c.Style.Workers > 64 {
		errs = append(errs, "style.workers must be between 1 and 64")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDetail(key string, detail float64) []string {
	if detail < 0 || detail > 1 {
		return []string{key + " must be between 0 and 1"}
	}
	return nil
}

func validateDelta(key string, d *DeltaConfig) []string {
	if d == nil {
		return nil
	}
	var errs []string
	if d.Current == "" {
		errs = append(errs, key+".current is required")
	}
	if d.Compare == "" {
		errs = append(errs, key+".compare is required")
	}
	switch d.Mode {
	case "", "absolute", "percent":
	default:
		errs = append(errs, key+".mode must be absolute or percent")
	}
	return errs
}
