// The application's root configuration.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger"`
	Graph  GraphConfig  `mapstructure:"graph"`
	Search SearchConfig `mapstructure:"search"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
// This is the single source of truth for this struct.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size" validate:"gte=0"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age" validate:"gte=0"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// GraphConfig holds settings for the graph store and transaction layer.
type GraphConfig struct {
	// TxnTimeout flags transactions held open longer than this; zero
	// disables expiry.
	TxnTimeout   time.Duration `mapstructure:"txn_timeout" validate:"gte=0"`
	SnapshotPath string        `mapstructure:"snapshot_path"`
	Diagnostics  bool          `mapstructure:"diagnostics"`
}

// SearchConfig holds the journey search limits.
type SearchConfig struct {
	MaxChanges              int           `mapstructure:"max_changes" validate:"gte=0"`
	MaxWait                 time.Duration `mapstructure:"max_wait" validate:"gt=0"`
	MaxInitialWait          time.Duration `mapstructure:"max_initial_wait" validate:"gt=0"`
	MaxJourneyDuration      time.Duration `mapstructure:"max_journey_duration" validate:"gt=0"`
	MaxWalkingConnections   int           `mapstructure:"max_walking_connections" validate:"gte=0"`
	MaxNeighbourConnections int           `mapstructure:"max_neighbour_connections" validate:"gte=0"`
	MaxResults              int           `mapstructure:"max_results" validate:"gte=0"`
	DepthFirst              bool          `mapstructure:"depth_first"`
	CacheDisabled           bool          `mapstructure:"cache_disabled"`
}

// SetDefaults registers the default values on a viper instance. Call before
// reading config files so absent keys fall back sensibly.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "routegraph")

	v.SetDefault("graph.txn_timeout", "30s")
	v.SetDefault("graph.diagnostics", false)

	v.SetDefault("search.max_changes", 4)
	v.SetDefault("search.max_wait", "25m")
	v.SetDefault("search.max_initial_wait", "13m")
	v.SetDefault("search.max_journey_duration", "2h")
	v.SetDefault("search.max_walking_connections", 2)
	v.SetDefault("search.max_neighbour_connections", 1)
	v.SetDefault("search.max_results", 6)
	v.SetDefault("search.depth_first", true)
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		if err := validator.New().Struct(&cfg); err != nil {
			loadErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
