// Package config loads application configuration from file and environment
// and builds the process logger.
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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures the batch log parser.
type IngestConfig struct {
	// LogDir is the directory scanned for .log and .zip files.
	LogDir string `yaml:"log_dir" mapstructure:"log_dir"`
	// MaxFiles caps how many files (newest mtime first) are scanned per run.
	MaxFiles int `yaml:"max_files" mapstructure:"max_files"`
	// Workers sets the size of the per-file worker pool. 1 = sequential.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// EquipmentPrefix plus the zero-padded numbers in [EquipmentStart,
	// EquipmentEnd] form the set of equipment identifiers (e.g. RMG01..RMG12).
	EquipmentPrefix string `yaml:"equipment_prefix" mapstructure:"equipment_prefix"`
	EquipmentStart  int    `yaml:"equipment_start" mapstructure:"equipment_start"`
	EquipmentEnd    int    `yaml:"equipment_end" mapstructure:"equipment_end"`

	// StatisticType is the statistic-class token inside the tag descriptor.
	StatisticType string `yaml:"statistic_type" mapstructure:"statistic_type"`
	// TagIDsFile lists the raw tag ids to search for, one per line.
	TagIDsFile string `yaml:"tag_ids_file" mapstructure:"tag_ids_file"`
	// TagMappingFile is the tabular raw-code → human-readable name table
	// (.csv or .xlsx). Optional: unmapped codes fall back to their cleaned
	// raw form.
	TagMappingFile string `yaml:"tag_mapping_file" mapstructure:"tag_mapping_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// IngestTriggerInterval is the minimum number of seconds between batch
	// runs triggered over HTTP.
	IngestTriggerIntervalSecs int `yaml:"ingest_trigger_interval_secs" mapstructure:"ingest_trigger_interval_secs"`
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
	v.SetEnvPrefix("CRANETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cranetrack.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.ingest_trigger_interval_secs", 60)
	v.SetDefault("ingest.max_files", 9999)
	v.SetDefault("ingest.workers", 1)
	v.SetDefault("ingest.equipment_prefix", "RMG")
	v.SetDefault("ingest.equipment_start", 1)
	v.SetDefault("ingest.equipment_end", 12)
	v.SetDefault("ingest.statistic_type", "Perma")

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

// NewLogger builds the process logger. Components receive it explicitly; it
// is also installed as the zap global for command glue.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
