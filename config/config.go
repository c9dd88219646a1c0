// Package config reads process configuration from the environment, an
// optional YAML file named by CONFIG_PATH, and a .env file when the entry
// point blank-imports godotenv/autoload.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Skryldev/itemstore/db"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env       string `yaml:"env" env:"APP_ENV" env-default:"local"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:""`

	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Seed     SeedConfig     `yaml:"seed"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// Addr is host:port for http.Server.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite3"`
	// DSN wins over the structured fields below when set.
	DSN      string `yaml:"dsn" env:"DB_DSN"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"items.db"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" env-default:"5m"`

	DefaultTimeout     time.Duration `yaml:"default_timeout" env:"DB_DEFAULT_TIMEOUT" env-default:"5s"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" env:"DB_SLOW_QUERY_THRESHOLD" env-default:"200ms"`
	LogArgs            bool          `yaml:"log_args" env:"DB_LOG_ARGS" env-default:"false"`
	AutoMigrate        bool          `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`

	ConnectAttempts int           `yaml:"connect_attempts" env:"DB_CONNECT_ATTEMPTS" env-default:"5"`
	ConnectDelay    time.Duration `yaml:"connect_delay" env:"DB_CONNECT_DELAY" env-default:"2s"`
}

// ConnString returns DSN if set, otherwise builds one from the structured
// fields with the driver's registered DSN builder.
func (c DatabaseConfig) ConnString() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	return db.BuildDSN(c.Driver, db.DriverOptions{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		SSLMode:  c.SSLMode,
	})
}

type SeedConfig struct {
	Enabled bool `yaml:"enabled" env:"SEED_SAMPLE_DATA" env-default:"false"`
	Count   int  `yaml:"count" env:"SEED_COUNT" env-default:"25"`
}

// Load reads CONFIG_PATH (if set) and then the environment, which takes
// precedence over the file.
func Load() (*Config, error) {
	cfg := new(Config)

	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("config: APP_ENV must be one of %s, %s, %s; got %q", EnvLocal, EnvDev, EnvProd, c.Env)
	}
	if _, err := db.LookupDriver(c.Database.Driver); err != nil {
		return fmt.Errorf("config: DB_DRIVER: %w", err)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: HTTP_PORT out of range: %d", c.HTTP.Port)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LOG_LEVEL.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// JSONLogs reports whether logs should be JSON. LOG_FORMAT wins; otherwise
// only the local environment gets text logs.
func (c *Config) JSONLogs() bool {
	switch strings.ToLower(c.LogFormat) {
	case "json":
		return true
	case "text":
		return false
	}
	return c.Env != EnvLocal
}
