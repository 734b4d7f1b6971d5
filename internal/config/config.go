// Package config loads the alertsim server configuration from the
// environment. The console binary keeps its own viper-backed user
// preferences; this package only covers the simulator process.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the simulator process configuration.
type Config struct {
	Server  ServerConfig
	Sim     SimConfig
	Logging LoggingConfig
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Addr string
	// Token, when set, is required as a bearer token on the alert API
	// and the push endpoint.
	Token string
}

// SimConfig contains the alert generation settings.
type SimConfig struct {
	// HealthEvery is the cadence of system_health push frames.
	HealthEvery time.Duration
	// FireEvery raises a random alert at this cadence; zero disables
	// the generator.
	FireEvery time.Duration
	// Scenario is the path of a YAML timeline to play; empty for none.
	Scenario string
	// Version is reported by /healthz and health frames.
	Version string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load loads configuration from environment variables. A .env file in
// the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:  getEnv("ALERTSIM_ADDR", ":8080"),
			Token: getEnv("ALERTSIM_TOKEN", ""),
		},
		Sim: SimConfig{
			HealthEvery: getEnvAsDuration("ALERTSIM_HEALTH_EVERY", 15*time.Second),
			FireEvery:   getEnvAsDuration("ALERTSIM_FIRE_EVERY", 0),
			Scenario:    getEnv("ALERTSIM_SCENARIO", ""),
			Version:     getEnv("ALERTSIM_VERSION", "dev"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("ALERTSIM_ADDR must be set")
	}

	if c.Sim.HealthEvery > 0 && c.Sim.HealthEvery < time.Second {
		return fmt.Errorf("health cadence too small: %s", c.Sim.HealthEvery)
	}

	if c.Sim.FireEvery > 0 && c.Sim.FireEvery < 100*time.Millisecond {
		return fmt.Errorf("fire cadence too small: %s", c.Sim.FireEvery)
	}

	if c.Sim.Scenario != "" {
		if _, err := os.Stat(c.Sim.Scenario); err != nil {
			return fmt.Errorf("scenario file: %w", err)
		}
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
