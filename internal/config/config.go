// Package config loads and validates service configuration from defaults,
// an optional YAML file, and PAIRBOARD_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	AuthStore AuthStoreConfig `mapstructure:"authstore"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Audit     AuditConfig     `mapstructure:"audit"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// AuthStoreConfig selects the room authorization backend. "memory" is the
// single-process default; "redis" shares admission state across instances.
type AuthStoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// AuditConfig points at the local audit database. An empty path disables
// audit recording.
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}

// Load reads configuration. path may name a YAML file; when empty only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("env", "development")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "pairboard")
	v.SetDefault("authstore.backend", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("audit.path", "./pairboard-audit.db")
	v.SetDefault("websocket.ping_interval", 30*time.Second)
	v.SetDefault("websocket.read_timeout", 60*time.Second)
	v.SetDefault("websocket.write_timeout", 5*time.Second)
	v.SetDefault("websocket.send_buffer", 100)

	v.SetEnvPrefix("PAIRBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot boot.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo uri cannot be empty")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database cannot be empty")
	}
	switch c.AuthStore.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr cannot be empty when authstore backend is redis")
		}
	default:
		return fmt.Errorf("authstore backend must be %q or %q", "memory", "redis")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret cannot be empty")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}
	return nil
}

// IsProduction reports whether internal error detail must be suppressed.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
