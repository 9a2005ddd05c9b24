// Package config loads the process configuration from the environment, with
// an optional .env file for local runs.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"local"`

	// PostgresDSN selects the backing store; empty means the in-memory
	// store, which does not survive a restart.
	PostgresDSN string `env:"POSTGRES_DSN"`

	APIPort    int `env:"API_PORT" envDefault:"8080"`
	HealthPort int `env:"HEALTH_PORT" envDefault:"8081"`

	// Per-platform fallback bot tokens, used when a channel carries no
	// credential override and the operator has not stored one.
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	BaleToken     string `env:"BALE_TOKEN"`

	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"30s"`
	DeliveryRPS     float64       `env:"DELIVERY_RPS" envDefault:"1"`

	ProcessorTickInterval time.Duration `env:"PROCESSOR_TICK_INTERVAL" envDefault:"1s"`

	// FeedCheckInterval is how often the feed worker wakes to see whether a
	// fetch round is due; the round cadence itself is an operator setting.
	FeedCheckInterval time.Duration `env:"FEED_CHECK_INTERVAL" envDefault:"30s"`

	FeedFetchTimeout time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"30s"`
	LinkFetchTimeout time.Duration `env:"LINK_FETCH_TIMEOUT" envDefault:"15s"`
	UserAgent        string        `env:"USER_AGENT"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
