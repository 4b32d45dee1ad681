package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "./config/config.yaml"

type GRPC struct {
	Addr        string `yaml:"addr"`
	ProbeEvery  string `yaml:"probeEvery"`  // 10s
	CallTimeout string `yaml:"callTimeout"` // 10s
}

type HTTP struct {
	Addr           string `yaml:"addr"`
	RequestTimeout string `yaml:"requestTimeout"` // 30s
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // watch-buddy
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Store struct {
	Backend string `yaml:"backend"` // postgres|sqlite|memory
	Migrate bool   `yaml:"migrate"` // применить схему при старте
}

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Postgres struct {
	DSN               string `yaml:"dsn"`
	MaxConns          int32  `yaml:"maxConns"`
	MinConns          int32  `yaml:"minConns"`
	MaxConnLifetime   string `yaml:"maxConnLifetime"`
	MaxConnIdleTime   string `yaml:"maxConnIdleTime"`
	HealthCheckPeriod string `yaml:"healthCheckPeriod"`
	ApplicationName   string `yaml:"applicationName"`
}

type SQLite struct {
	Path string `yaml:"path"` // файл или ":memory:"
}

type Room struct {
	IdleThreshold string `yaml:"idleThreshold"` // 24h
	ReapInterval  string `yaml:"reapInterval"`  // 10m
}

type WS struct {
	PingEvery       string `yaml:"pingEvery"`    // 15s
	ReadLimit       int64  `yaml:"readLimit"`    // bytes per frame
	SendBuffer      int    `yaml:"sendBuffer"`   // frames queued per connection
	WriteTimeout    string `yaml:"writeTimeout"` // 5s
	EventsPerSecond int    `yaml:"eventsPerSecond"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type NATS struct {
	URL           string `yaml:"url"` // пусто: события не публикуются
	SubjectPrefix string `yaml:"subjectPrefix"`
}

type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Logging   Logging   `yaml:"logging"`
	Store     Store     `yaml:"store"`
	Postgres  Postgres  `yaml:"postgres"`
	SQLite    SQLite    `yaml:"sqlite"`
	Room      Room      `yaml:"room"`
	WS        WS        `yaml:"ws"`
	CORS      CORS      `yaml:"cors"`
	NATS      NATS      `yaml:"nats"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// LoadConfig reads CONFIG_PATH, falling back to DefaultPath.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_PATH"))
}

// Load reads path; an empty path means CONFIG_PATH or DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
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
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendPostgres
	}
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "watch-buddy"
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
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Logging.Service
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "watchbuddy"
	}
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 1 << 20
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 64
	}
	if c.WS.EventsPerSecond <= 0 {
		c.WS.EventsPerSecond = 30
	}
	if c.IdleThreshold() <= c.ReapInterval() {
		return errors.New("room.idleThreshold must be longer than room.reapInterval")
	}
	return nil
}

func (c *Config) IdleThreshold() time.Duration {
	return parseDurationOr(24*time.Hour, c.Room.IdleThreshold)
}

func (c *Config) ReapInterval() time.Duration {
	return parseDurationOr(10*time.Minute, c.Room.ReapInterval)
}

func (c *Config) PingEvery() time.Duration {
	return parseDurationOr(15*time.Second, c.WS.PingEvery)
}

func (c *Config) WriteTimeout() time.Duration {
	return parseDurationOr(5*time.Second, c.WS.WriteTimeout)
}

func (c *Config) RequestTimeout() time.Duration {
	return parseDurationOr(30*time.Second, c.HTTP.RequestTimeout)
}

func (c *Config) ProbeEvery() time.Duration {
	return parseDurationOr(10*time.Second, c.GRPC.ProbeEvery)
}

func (c *Config) CallTimeout() time.Duration {
	return parseDurationOr(10*time.Second, c.GRPC.CallTimeout)
}

// PoolDurations returns maxConnLifetime, maxConnIdleTime, healthCheckPeriod;
// zero leaves the pgx default.
func (c *Config) PoolDurations() (lifetime, idle, health time.Duration) {
	return parseDurationOr(0, c.Postgres.MaxConnLifetime),
		parseDurationOr(0, c.Postgres.MaxConnIdleTime),
		parseDurationOr(0, c.Postgres.HealthCheckPeriod)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
