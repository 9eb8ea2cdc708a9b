// Package config loads the per-daemon configuration documents: one
// optional JSON/YAML file overlaying built-in defaults, overridable by
// DFS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/dfs/internal/logger"
)

var validate = validator.New()

// RegistryConfig is the Directory Registry daemon's configuration.
type RegistryConfig struct {
	ListenAddr  string        `mapstructure:"listen_addr" validate:"required"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	DBFile      string        `mapstructure:"dbfile" validate:"required"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// LeaseConfig is the Lease Manager daemon's configuration.
type LeaseConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" validate:"required"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	DBFile       string        `mapstructure:"dbfile" validate:"required"`
	LockLifetime time.Duration `mapstructure:"lock_lifetime" validate:"required,gt=0"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

// S3BackendConfig configures the optional S3 file backend for the Storage Node.
type S3BackendConfig struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`
}

// StorageConfig is the Storage Node daemon's configuration.
type StorageConfig struct {
	ListenAddr  string          `mapstructure:"listen_addr" validate:"required"`
	MetricsAddr string          `mapstructure:"metrics_addr"`
	LockServer  string          `mapstructure:"lockserver" validate:"required"`
	NameServer  string          `mapstructure:"nameserver" validate:"required"`
	Directories []string        `mapstructure:"directories" validate:"required,min=1"`
	FSRoot      string          `mapstructure:"fsroot"`
	Srv         string          `mapstructure:"srv" validate:"required"`
	Backend     string          `mapstructure:"backend" validate:"omitempty,oneof=local s3"`
	S3          S3BackendConfig `mapstructure:"s3"`
	Logging     LoggingConfig   `mapstructure:"logging"`
}

// ClientConfig is pkg/dfsclient's configuration.
type ClientConfig struct {
	NameServer string `mapstructure:"nameserver" validate:"required"`
	LockServer string `mapstructure:"lockserver" validate:"required"`
	MaxSize    int64  `mapstructure:"max_size" validate:"gt=0"`
	Logging    LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output"`
}

// DefaultRegistryConfig returns the registry daemon's built-in defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ListenAddr: ":7000",
		DBFile:     "names.db",
		Logging:    LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
	}
}

// DefaultLeaseConfig returns the lease daemon's built-in defaults.
func DefaultLeaseConfig() LeaseConfig {
	return LeaseConfig{
		ListenAddr:   ":7001",
		DBFile:       "locks.db",
		LockLifetime: 60 * time.Second,
		Logging:      LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
	}
}

// DefaultStorageConfig returns the storage daemon's built-in defaults.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		ListenAddr: ":7002",
		FSRoot:     "fs/",
		Backend:    "local",
		Logging:    LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
	}
}

// DefaultClientConfig returns the client library's built-in defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxSize: 1024 * 1024,
		Logging: LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
	}
}

// Load reads path (if it exists) into dst, which must be a pointer to one
// of the Config structs above already populated with defaults. Environment
// variables prefixed with envPrefix and an underscore override file values
// (e.g. DFS_LEASE_LOGGING_LEVEL for envPrefix "DFS_LEASE").
// A missing file is not an error: defaults (and env overrides) stand
// alone.
func Load(path string, envPrefix string, dst any) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Seed the caller's defaults as viper defaults so env-only overrides
	// apply even for keys the config file never mentions.
	var defaults map[string]any
	if err := mapstructure.Decode(dst, &defaults); err != nil {
		return fmt.Errorf("decode defaults: %w", err)
	}
	for key, val := range flatten("", defaults) {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			// A named-but-absent file leaves defaults standing; only a
			// present-but-unreadable document is an error.
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("read config %q: %w", path, err)
			}
		}
	}

	decoderOpt := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(dst, decoderOpt); err != nil {
		return fmt.Errorf("decode config %q: %w", path, err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validate config %q: %w", path, err)
	}
	return nil
}

// flatten turns a nested map into viper's dotted key space
// ("logging.level") so per-key defaults can be registered.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// WatchReload registers fn to run whenever path changes on disk, using
// viper's fsnotify-backed watcher. Only used by daemons that opt into
// hot-reloading a subset of their configuration (lease lifetime, log
// level); the servable-directories whitelist is never reloaded this way.
func WatchReload(path string, onChange func()) {
	if path == "" {
		return
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, reloading", logger.Path(e.Name))
		onChange()
	})
	v.WatchConfig()
}
