package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config aggregates every process-level setting. All of it is infrastructure
// concern; none of it changes the relay contract.
type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Gateway GatewayConfig
}

// ServerConfig describes the externally bound HTTP listener.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
}

// Addr normalizes PORT into a listen address. Both "8000" and ":8000" are
// accepted, as is a full host:port.
func (c ServerConfig) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// RedisConfig holds the broker endpoint and credentials.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Username string `envconfig:"REDIS_USERNAME"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// GatewayConfig tunes the websocket connection gateway.
type GatewayConfig struct {
	WriteTimeout    time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	PongTimeout     time.Duration `envconfig:"WS_PONG_TIMEOUT" default:"60s"`
	SendBuffer      int           `envconfig:"WS_SEND_BUFFER" default:"64"`
	MaxMessageBytes int64         `envconfig:"WS_MAX_MESSAGE_BYTES" default:"4096"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if strings.Contains(cfg.Server.Port, " ") {
		return nil, fmt.Errorf("invalid PORT value: %q", cfg.Server.Port)
	}
	return &cfg, nil
}
