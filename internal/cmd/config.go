package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fokashive/fokashive/internal/broadcast"
)

// Config is the full service configuration. Values come from the optional
// YAML file first; environment variables override field by field so deploys
// can tweak a single knob without shipping a new file.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret     string        `yaml:"jwt_secret"`
		RelayTokenTTL time.Duration `yaml:"relay_token_ttl"`
	} `yaml:"auth"`
	Relay struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"relay"`
	Rooms struct {
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"rooms"`
}

// DatabaseConfig holds Postgres connection parameters, sourced from env.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file when present and applies env overrides.
func loadConfig(path string) (*Config, error) {
	var config Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Auth.RelayTokenTTL == 0 {
		config.Auth.RelayTokenTTL = time.Hour
	}
	if config.Rooms.SweepInterval == 0 {
		config.Rooms.SweepInterval = time.Minute
	}
	if config.Relay.URL == "" {
		config.Relay.URL = broadcast.DefaultRelayConfig().URL
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Auth.JWTSecret = getEnv("JWT_SECRET", config.Auth.JWTSecret)
	config.Auth.RelayTokenTTL = getEnvAsDuration("RELAY_TOKEN_TTL", config.Auth.RelayTokenTTL)
	config.Relay.Enabled = getEnvAsBool("RELAY_ENABLED", config.Relay.Enabled)
	config.Relay.URL = getEnv("NATS_URL", config.Relay.URL)
	config.Rooms.SweepInterval = getEnvAsDuration("ROOM_SWEEP_INTERVAL", config.Rooms.SweepInterval)

	return &config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "fokashive"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}
