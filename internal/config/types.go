package config

import (
	"time"

	"github.com/raaihank/speller/internal/audit"
	"github.com/raaihank/speller/internal/cache"
	"github.com/raaihank/speller/internal/etl"
	"github.com/raaihank/speller/internal/speller"
)

// Config represents the main configuration structure
type Config struct {
	Run       etl.Options     `yaml:"run" mapstructure:"run"`
	Speller   speller.Config  `yaml:"speller" mapstructure:"speller"`
	Cache     cache.Config    `yaml:"cache" mapstructure:"cache"`
	Audit     audit.Config    `yaml:"audit" mapstructure:"audit"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxTexts     int           `yaml:"max_texts" mapstructure:"max_texts"`           // per /v1/correct request
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"` // request body limit
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	Username       string   `yaml:"username" mapstructure:"username"`
	Password       string   `yaml:"password" mapstructure:"password"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events         struct {
		BroadcastProgress    bool `yaml:"broadcast_progress" mapstructure:"broadcast_progress"`
		BroadcastCorrections bool `yaml:"broadcast_corrections" mapstructure:"broadcast_corrections"`
		BroadcastRuns        bool `yaml:"broadcast_runs" mapstructure:"broadcast_runs"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	Output string `yaml:"output" mapstructure:"output"` // stderr or stdout
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Run: etl.Options{
			OutputPath: "spelled.csv",
		},
		Speller: speller.Config{
			Provider:  string(speller.YandexProvider),
			Lang:      "ru",
			BatchSize: speller.DefaultBatchSize,
			Timeout:   30 * time.Second,
			Burst:     1,
		},
		Cache: cache.Config{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     7 * 24 * time.Hour,
			KeyPrefix:      "speller",
		},
		Audit: audit.Config{
			Enabled:         false,
			Driver:          audit.DriverSQLite,
			DSN:             "speller-audit.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
			MaxTexts:     100,
			MaxBodyBytes: 1 << 20,
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}

	cfg.WebSocket.Events.BroadcastProgress = true
	cfg.WebSocket.Events.BroadcastCorrections = true
	cfg.WebSocket.Events.BroadcastRuns = true
	cfg.WebSocket.Events.BroadcastConnections = true
	cfg.Logging.File.Path = "logs/speller.log"

	return cfg
}
