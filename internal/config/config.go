// Package config содержит логику чтения конфигурации форума.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации форума.
type Config struct {
	RunAddress             string
	DatabaseURI            string
	IdentityServiceAddress string
	RedisAddress           string
	SessionSecret          string
	StartingBonus          int64
	RateLimitRPS           int
	SeedData               bool
}

// envConfig хранит значения из окружения. Nil означает, что переменная не задана.
type envConfig struct {
	RunAddress             *string `env:"RUN_ADDRESS"`
	DatabaseURI            *string `env:"DATABASE_URI"`
	IdentityServiceAddress *string `env:"IDENTITY_SERVICE_ADDRESS"`
	RedisAddress           *string `env:"REDIS_ADDRESS"`
	SessionSecret          *string `env:"SESSION_SECRET"`
	StartingBonus          *int64  `env:"STARTING_BONUS"`
	RateLimitRPS           *int    `env:"RATE_LIMIT_RPS"`
	SeedData               *bool   `env:"SEED_DATA"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	var fromEnv envConfig
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage when empty")
	flag.StringVar(&cfg.IdentityServiceAddress, "i", "", "identity verification service address")
	flag.StringVar(&cfg.RedisAddress, "c", "", "redis address for the session cache")
	flag.StringVar(&cfg.SessionSecret, "s", "", "session cookie signing secret")
	flag.Int64Var(&cfg.StartingBonus, "b", 50, "coins granted at registration")
	flag.IntVar(&cfg.RateLimitRPS, "l", 20, "per-account requests per second, 0 disables the limit")
	flag.BoolVar(&cfg.SeedData, "seed", false, "seed demo categories and catalog items into an empty store")

	flag.Parse()

	override(&cfg.RunAddress, fromEnv.RunAddress)
	override(&cfg.DatabaseURI, fromEnv.DatabaseURI)
	override(&cfg.IdentityServiceAddress, fromEnv.IdentityServiceAddress)
	override(&cfg.RedisAddress, fromEnv.RedisAddress)
	override(&cfg.SessionSecret, fromEnv.SessionSecret)
	override(&cfg.StartingBonus, fromEnv.StartingBonus)
	override(&cfg.RateLimitRPS, fromEnv.RateLimitRPS)
	override(&cfg.SeedData, fromEnv.SeedData)

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.StartingBonus < 0 {
		return nil, fmt.Errorf("starting bonus must not be negative: %d", cfg.StartingBonus)
	}
	if cfg.RateLimitRPS < 0 {
		return nil, fmt.Errorf("rate limit must not be negative: %d", cfg.RateLimitRPS)
	}

	return cfg, nil
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
