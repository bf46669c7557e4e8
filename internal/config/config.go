package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/raaihank/speller/internal/audit"
	"github.com/raaihank/speller/internal/speller"
)

// EnvPrefix prefixes every environment override, e.g. SPELLER_SPELLER_LANG.
const EnvPrefix = "SPELLER"

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"output":     "run.output",
	"log":        "run.log",
	"number":     "run.number",
	"filter":     "run.filter",
	"lang":       "speller.lang",
	"batch-size": "speller.batch_size",
	"provider":   "speller.provider",
	"port":       "server.port",
	"log-level":  "logging.level",
}

// Loader reads configuration from defaults, a YAML file, .env, the
// environment and command line flags, in increasing order of precedence.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader. configPath and flags are optional.
func NewLoader(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v, GetDefaults())

	v.SetConfigName("speller")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("$HOME/.speller")

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	return &Loader{v: v}, nil
}

// Load loads configuration from file and environment variables
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	loader, err := NewLoader(configPath, flags)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}

// Load reads the configuration file, if any, and returns the merged configuration
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	config := &Config{}
	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ConfigFile returns the file the configuration was read from, if any
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the new configuration whenever the config file
// changes. Invalid configurations are passed to onError and otherwise ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		config, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(config)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("run.output", d.Run.OutputPath)
	v.SetDefault("run.log", d.Run.LogPath)
	v.SetDefault("run.number", d.Run.Limit)
	v.SetDefault("run.filter", d.Run.FilterByCluster)

	v.SetDefault("speller.provider", d.Speller.Provider)
	v.SetDefault("speller.base_url", d.Speller.BaseURL)
	v.SetDefault("speller.lang", d.Speller.Lang)
	v.SetDefault("speller.options", d.Speller.Options)
	v.SetDefault("speller.batch_size", d.Speller.BatchSize)
	v.SetDefault("speller.timeout", d.Speller.Timeout)
	v.SetDefault("speller.requests_per_second", d.Speller.RequestsPerSecond)
	v.SetDefault("speller.burst", d.Speller.Burst)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.max_connections", d.Cache.MaxConnections)
	v.SetDefault("cache.min_idle_conns", d.Cache.MinIdleConns)
	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.driver", d.Audit.Driver)
	v.SetDefault("audit.dsn", d.Audit.DSN)
	v.SetDefault("audit.max_open_conns", d.Audit.MaxOpenConns)
	v.SetDefault("audit.max_idle_conns", d.Audit.MaxIdleConns)
	v.SetDefault("audit.conn_max_lifetime", d.Audit.ConnMaxLifetime)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_texts", d.Server.MaxTexts)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("websocket.enabled", d.WebSocket.Enabled)
	v.SetDefault("websocket.path", d.WebSocket.Path)
	v.SetDefault("websocket.username", d.WebSocket.Username)
	v.SetDefault("websocket.password", d.WebSocket.Password)
	v.SetDefault("websocket.allowed_origins", d.WebSocket.AllowedOrigins)
	v.SetDefault("websocket.events.broadcast_progress", d.WebSocket.Events.BroadcastProgress)
	v.SetDefault("websocket.events.broadcast_corrections", d.WebSocket.Events.BroadcastCorrections)
	v.SetDefault("websocket.events.broadcast_runs", d.WebSocket.Events.BroadcastRuns)
	v.SetDefault("websocket.events.broadcast_connections", d.WebSocket.Events.BroadcastConnections)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if err := speller.ValidateConfig(&config.Speller); err != nil {
		return err
	}

	if config.Run.OutputPath == "" {
		return fmt.Errorf("output path must not be empty")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.MaxTexts < 1 {
		return fmt.Errorf("invalid server max_texts: %d", config.Server.MaxTexts)
	}

	if config.Audit.Enabled && config.Audit.Driver != audit.DriverPostgres && config.Audit.Driver != audit.DriverSQLite {
		return fmt.Errorf("invalid audit driver: %s (must be postgres or sqlite3)", config.Audit.Driver)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache enabled but redis_url is empty")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Logging.Output != "stderr" && config.Logging.Output != "stdout" {
		return fmt.Errorf("invalid log output: %s (must be stderr or stdout)", config.Logging.Output)
	}

	return nil
}
