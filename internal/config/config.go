// Package config loads the engine's runtime configuration from an
// optional YAML file plus environment variables (spec.md §6
// "Environment"). Grounded on the teacher's cmd/warren/apply.go gopkg.in/
// yaml.v3 usage; invalid values are collected as warnings rather than
// aborting startup, per spec.md §6 "Invalid values must be reported but
// must not crash startup."
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/monarch/internal/monerr"
)

// Environment names the deployment environment (spec.md §6 NODE_ENV).
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// LogLevel mirrors monlog's accepted levels (spec.md §6 MONARCH_LOG_LEVEL).
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
	LogFatal LogLevel = "fatal"
)

// LogFormat mirrors monlog's accepted formats (spec.md §6 MONARCH_LOG_FORMAT).
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// SyncLevel names the WAL durability level (spec.md §4.8).
type SyncLevel string

const (
	SyncLow     SyncLevel = "low"
	SyncMedium  SyncLevel = "medium"
	SyncHigh    SyncLevel = "high"
	SyncMaximum SyncLevel = "maximum"
)

// Config is the engine's fully-resolved runtime configuration.
type Config struct {
	Environment             Environment   `yaml:"environment"`
	DataDir                 string        `yaml:"dataDir"`
	LogLevel                LogLevel      `yaml:"logLevel"`
	LogFormat               LogFormat     `yaml:"logFormat"`
	SyncLevel               SyncLevel     `yaml:"syncLevel"`
	MaxConcurrentOperations int           `yaml:"maxConcurrentOperations"`
	OperationTimeout        time.Duration `yaml:"-"`
}

// Defaults returns the configuration used when neither a file nor any
// environment variable overrides a field.
func Defaults() Config {
	return Config{
		Environment:             Development,
		DataDir:                 "./data",
		LogLevel:                LogInfo,
		LogFormat:               FormatJSON,
		SyncLevel:               SyncMedium,
		MaxConcurrentOperations: 100,
		OperationTimeout:        30 * time.Second,
	}
}

// fileConfig mirrors Config's YAML-facing fields, using an integer count of
// milliseconds for the operation timeout so the file format reads naturally.
type fileConfig struct {
	Environment             Environment `yaml:"environment"`
	DataDir                 string      `yaml:"dataDir"`
	LogLevel                LogLevel    `yaml:"logLevel"`
	LogFormat               LogFormat   `yaml:"logFormat"`
	SyncLevel               SyncLevel   `yaml:"syncLevel"`
	MaxConcurrentOperations int         `yaml:"maxConcurrentOperations"`
	OperationTimeoutMillis  int64       `yaml:"operationTimeoutMillis"`
}

// Load builds a Config starting from Defaults, applying path (if non-empty
// and present) as a YAML overlay, then environment variables as the final
// overlay. It never returns an error for a malformed environment value;
// instead such values are appended to the returned warnings and the
// default/file value is kept.
func Load(path string) (Config, []string, error) {
	cfg := Defaults()
	var warnings []string

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// no file is not an error; defaults plus env vars still apply.
		case err != nil:
			return cfg, warnings, monerr.IO("read config file %s: %v", path, err).Wrap(err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return cfg, warnings, monerr.Validation("parse config file %s: %v", path, err).Wrap(err)
			}
			applyFileConfig(&cfg, fc)
		}
	}

	warnings = append(warnings, applyEnv(&cfg)...)
	return cfg, warnings, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Environment != "" {
		cfg.Environment = fc.Environment
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	if fc.SyncLevel != "" {
		cfg.SyncLevel = fc.SyncLevel
	}
	if fc.MaxConcurrentOperations != 0 {
		cfg.MaxConcurrentOperations = fc.MaxConcurrentOperations
	}
	if fc.OperationTimeoutMillis != 0 {
		cfg.OperationTimeout = time.Duration(fc.OperationTimeoutMillis) * time.Millisecond
	}
}

func applyEnv(cfg *Config) []string {
	var warnings []string

	if v, ok := lookupEnv("NODE_ENV"); ok {
		switch Environment(v) {
		case Development, Production, Test:
			cfg.Environment = Environment(v)
		default:
			warnings = append(warnings, "NODE_ENV: invalid value "+v+", keeping "+string(cfg.Environment))
		}
	}
	if v, ok := lookupEnv("MONARCH_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := lookupEnv("MONARCH_LOG_LEVEL"); ok {
		switch LogLevel(v) {
		case LogDebug, LogInfo, LogWarn, LogError, LogFatal:
			cfg.LogLevel = LogLevel(v)
		default:
			warnings = append(warnings, "MONARCH_LOG_LEVEL: invalid value "+v+", keeping "+string(cfg.LogLevel))
		}
	}
	if v, ok := lookupEnv("MONARCH_LOG_FORMAT"); ok {
		switch LogFormat(v) {
		case FormatJSON, FormatText:
			cfg.LogFormat = LogFormat(v)
		default:
			warnings = append(warnings, "MONARCH_LOG_FORMAT: invalid value "+v+", keeping "+string(cfg.LogFormat))
		}
	}
	if v, ok := lookupEnv("MONARCH_MAX_CONCURRENT_OPERATIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			warnings = append(warnings, "MONARCH_MAX_CONCURRENT_OPERATIONS: invalid value "+v+", keeping default")
		} else {
			cfg.MaxConcurrentOperations = n
		}
	}
	if v, ok := lookupEnv("MONARCH_OPERATION_TIMEOUT"); ok {
		millis, err := strconv.ParseInt(v, 10, 64)
		if err != nil || millis <= 0 {
			warnings = append(warnings, "MONARCH_OPERATION_TIMEOUT: invalid value "+v+", keeping default")
		} else {
			cfg.OperationTimeout = time.Duration(millis) * time.Millisecond
		}
	}
	return warnings
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
