// Package config loads the upload gateway's configuration: defaults,
// overlaid by a YAML config file, whose keys UPLOADGW_* environment
// variables can in turn override.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the upload gateway's static configuration. Groups mirror the
// environment variables the coordinator and finalizer read at boot.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Zone      ZoneConfig      `mapstructure:"zone" yaml:"zone"`
	Services  ServicesConfig  `mapstructure:"services" yaml:"services"`
	Kafka     KafkaConfig     `mapstructure:"kafka" yaml:"kafka"`
	Object    ObjectConfig    `mapstructure:"object_store" yaml:"object_store"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	TempRoot  string          `mapstructure:"temp_root" validate:"required" yaml:"temp_root"`
	Finalizer FinalizerConfig `mapstructure:"finalizer" yaml:"finalizer"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `mapstructure:"host" validate:"required" yaml:"host"`
	Port            int    `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" validate:"required" yaml:"shutdown_timeout"`
}

// LoggingConfig controls structured logging via internal/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio" validate:"omitempty,min=0,max=1" yaml:"sample_ratio"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ZoneConfig carries the core/greenroom zone labels used to pick the
// object-store bucket and catalog namespace for a job.
type ZoneConfig struct {
	CoreZoneLabel  string `mapstructure:"core_zone_label" validate:"required" yaml:"core_zone_label"`
	GreenZoneLabel string `mapstructure:"green_zone_label" validate:"required" yaml:"green_zone_label"`
	Namespace      string `mapstructure:"namespace" validate:"required,oneof=greenroom core" yaml:"namespace"`
}

// ServicesConfig carries the base URLs of collaborating HTTP services.
type ServicesConfig struct {
	MetadataServiceURL string `mapstructure:"metadata_service_url" validate:"required,url" yaml:"metadata_service_url"`
	DataOpsServiceURL  string `mapstructure:"dataops_service_url" validate:"required,url" yaml:"dataops_service_url"`
	ProjectServiceURL  string `mapstructure:"project_service_url" validate:"required,url" yaml:"project_service_url"`
	LockServiceURL     string `mapstructure:"lock_service_url" validate:"required,url" yaml:"lock_service_url"`
}

// KafkaConfig configures the activity-log publisher.
type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers" validate:"required,min=1" yaml:"brokers"`
	Topic      string   `mapstructure:"topic" validate:"required" yaml:"topic"`
	SchemaPath string   `mapstructure:"schema_path" validate:"required" yaml:"schema_path"`
}

// ObjectConfig configures the S3-compatible object store.
type ObjectConfig struct {
	Endpoint        string `mapstructure:"endpoint" validate:"required" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	Region          string `mapstructure:"region" yaml:"region"`
}

// RedisConfig configures the job state store and part ledger backend.
type RedisConfig struct {
	Host     string `mapstructure:"host" validate:"required" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" validate:"min=0" yaml:"db"`
}

// FinalizerConfig controls the background combine/finalize worker pool.
type FinalizerConfig struct {
	Workers   int `mapstructure:"workers" validate:"required,min=1" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" validate:"required,min=1" yaml:"queue_size"`
}

// Load starts from the defaults, overlays the YAML config file if one is
// found, and validates the result. An UPLOADGW_* environment variable
// overrides only a key the config file sets; when no config file is found,
// the defaults are used as they are and the environment is not read.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	if !found {
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration, returning a user-facing error when the
// requested config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"create it first:\n  uploadgw init --config %s", configPath, configPath)
		}
	}
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML, matching the yaml struct tags.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME and falling back to "." if the home directory cannot be
// determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "uploadgw")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "uploadgw")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// InitConfig writes a sample config file at the default location,
// returning its path. force overwrites an existing file.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample config file at path, failing unless
// force is set when a file already exists there.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}
	return SaveConfig(GetDefaultConfig(), path)
}

// setupViper wires UPLOADGW_* environment binding and config file discovery.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("UPLOADGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/uploadgw")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if present. A missing file is
// not an error: callers fall back to defaults.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}
