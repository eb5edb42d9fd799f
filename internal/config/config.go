// Package config loads this module's runtime configuration from the
// environment, following the getEnv/struct-group convention used elsewhere
// in the corpus rather than a flag package or config file parser.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the top-level configuration for cmd/server and cmd/gateway.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Presence  PresenceConfig
	Discovery DiscoveryConfig
	Log       LogConfig
}

// ServerConfig controls the admin HTTP surface (/healthz, /metrics).
type ServerConfig struct {
	Env         string // dev, prod
	AdminListen string
}

// StoreConfig selects and parameterizes the DocumentStore backend.
type StoreConfig struct {
	Backend     string // memory, bolt, postgres
	BoltPath    string
	PostgresDSN string
}

// PresenceConfig controls the optional cross-process Join/Part fan-out.
type PresenceConfig struct {
	RedisAddr string // empty disables presence fan-out
	Channel   string
}

// DiscoveryConfig controls optional LAN peer discovery for cmd/gateway,
// advertising this instance over mDNS and browsing for siblings. It's off
// by default: most deployments rely on Presence's Redis fan-out instead,
// which works across subnets mDNS multicast never reaches.
type DiscoveryConfig struct {
	Enabled     bool
	ServiceName string
}

// LogConfig controls verbosity. The output encoding follows Server.Env.
type LogConfig struct {
	Level string
}

// Load reads Config from the environment, applying the defaults below.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Env:         getEnv("BLUELATEX_ENV", "dev"),
			AdminListen: getEnv("BLUELATEX_ADMIN_LISTEN", ":9090"),
		},
		Store: StoreConfig{
			Backend:     getEnv("BLUELATEX_STORE_BACKEND", "memory"),
			BoltPath:    getEnv("BLUELATEX_BOLT_PATH", "bluelatex.db"),
			PostgresDSN: getEnv("BLUELATEX_POSTGRES_DSN", ""),
		},
		Presence: PresenceConfig{
			RedisAddr: getEnv("BLUELATEX_REDIS_ADDR", ""),
			Channel:   getEnv("BLUELATEX_PRESENCE_CHANNEL", "bluelatex:presence"),
		},
		Discovery: DiscoveryConfig{
			Enabled:     getEnvBool("BLUELATEX_MDNS_ENABLE", false),
			ServiceName: getEnv("BLUELATEX_MDNS_SERVICE", "_bluelatex._tcp"),
		},
		Log: LogConfig{
			Level: getEnv("BLUELATEX_LOG_LEVEL", "info"),
		},
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case "memory", "bolt":
	case "postgres":
		if cfg.Store.PostgresDSN == "" {
			return fmt.Errorf("config: BLUELATEX_POSTGRES_DSN is required when BLUELATEX_STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: invalid BLUELATEX_STORE_BACKEND %q (want memory, bolt, or postgres)", cfg.Store.Backend)
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Server.Env == "prod" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
