package internal

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreBadger   = "badger"
	StorePostgres = "postgres"
	BusLocal      = "local"
	BusRedis      = "redis"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	Host     string `env:"HOST,default=0.0.0.0"`
	HTTPPort int    `env:"HTTP_PORT,default=3000"`
	GRPCPort int    `env:"GRPC_PORT,default=3001"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/chat"`
	PostgresDSN    string `env:"POSTGRES_DSN"`

	BusDriver    string `env:"BUS_DRIVER,default=local"`
	RedisAddr    string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisChannel string `env:"REDIS_CHANNEL,default=job-chat:messages"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,default=4000"`
	WSReadTimeout        time.Duration `env:"WS_READ_TIMEOUT,default=60s"`

	AuthSecret        string        `env:"AUTH_SECRET"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	RequireCompanyFirst bool          `env:"REQUIRE_COMPANY_FIRST,default=true"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=2s"`
	MetricInterval      time.Duration `env:"METRIC_INTERVAL,default=1m"`
	HealthInterval      time.Duration `env:"HEALTH_INTERVAL,default=10s"`
}

// Validate rejects values and combinations the server cannot run with.
func (c Config) Validate() error {
	var problems []string
	switch c.StoreDriver {
	case StoreBadger:
		if c.BadgerFilepath == "" {
			problems = append(problems, "BADGER_FILEPATH is required with STORE_DRIVER=badger")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			problems = append(problems, "POSTGRES_DSN is required with STORE_DRIVER=postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.BusDriver {
	case BusLocal:
	case BusRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required with BUS_DRIVER=redis")
		}
		if c.StoreDriver == StoreBadger {
			problems = append(problems, "BUS_DRIVER=redis needs a shared store, badger is single-process")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown BUS_DRIVER %q", c.BusDriver))
	}
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 || c.HTTPPort == c.GRPCPort {
		problems = append(problems, "HTTP_PORT and GRPC_PORT must be distinct positive ports")
	}
	if c.ConnectionBufferSize <= 0 {
		problems = append(problems, "CONNECTION_BUFFER_SIZE must be positive")
	}
	if c.MaxMessageLength <= 0 {
		problems = append(problems, "MAX_MESSAGE_LENGTH must be positive")
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < 32 {
		problems = append(problems, "AUTH_SECRET must be at least 32 bytes")
	}
	if c.MetricInterval <= 0 || c.HealthInterval <= 0 || c.WSReadTimeout <= 0 {
		problems = append(problems, "METRIC_INTERVAL, HEALTH_INTERVAL and WS_READ_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
