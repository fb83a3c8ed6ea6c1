package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "./config/config.yaml"

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr"` // empty disables the health listener
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // call-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
	Tracing   bool   `yaml:"tracing"`   // trace_id/span_id per websocket frame in logs
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type Store struct {
	Driver   string   `yaml:"driver"` // postgres|sqlite|memory
	Postgres Postgres `yaml:"postgres"`
	SQLite   SQLite   `yaml:"sqlite"`
}

type Rooms struct {
	Capacity         int `yaml:"capacity"`         // 0 = unbounded
	MaxMessageLength int `yaml:"maxMessageLength"` // runes
}

type WS struct {
	PingEvery      time.Duration `yaml:"pingEvery"`
	WriteWait      time.Duration `yaml:"writeWait"`
	MaxMessageSize int64         `yaml:"maxMessageSize"`
	SendBuffer     int           `yaml:"sendBuffer"`
}

type Auth struct {
	JWTSecret    string        `yaml:"jwtSecret"`
	Issuer       string        `yaml:"issuer"`
	TokenTTL     time.Duration `yaml:"tokenTTL"`
	ClockSkew    time.Duration `yaml:"clockSkew"`
	RequireToken bool          `yaml:"requireToken"` // reject ws connections without access_token
	BcryptCost   int           `yaml:"bcryptCost"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Logging Logging `yaml:"logging"`
	Store   Store   `yaml:"store"`
	Rooms   Rooms   `yaml:"rooms"`
	WS      WS      `yaml:"ws"`
	Auth    Auth    `yaml:"auth"`
}

// LoadConfig reads the YAML file at path, CONFIG_PATH or DefaultPath (in that order).
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	switch c.Store.Driver {
	case "":
		c.Store.Driver = "memory"
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}

	if c.Rooms.Capacity < 0 {
		return errors.New("rooms.capacity must be >= 0")
	}
	if c.Auth.RequireToken && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required when auth.requireToken is set")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 18) {
		return errors.New("auth.bcryptCost must be in [4..18]")
	}
	if c.Auth.ClockSkew < 0 || c.Auth.ClockSkew > time.Minute {
		return errors.New("auth.clockSkew must be in [0..1m]")
	}

	// defaults
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "call-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Rooms.MaxMessageLength == 0 {
		c.Rooms.MaxMessageLength = 4000
	}
	if c.WS.PingEvery == 0 {
		c.WS.PingEvery = 15 * time.Second
	}
	if c.WS.WriteWait == 0 {
		c.WS.WriteWait = 5 * time.Second
	}
	if c.WS.MaxMessageSize == 0 {
		c.WS.MaxMessageSize = 64 * 1024
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 64
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "call-service"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	return nil
}
