// Package config loads bot configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	LavalinkName     string `env:"LAVALINK_NAME" envDefault:"main"`
	LavalinkHost     string `env:"LAVALINK_HOST" envDefault:"127.0.0.1"`
	LavalinkPort     int    `env:"LAVALINK_PORT" envDefault:"2333"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD" envDefault:"youshallnotpass"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath     string `env:"LOG_PATH"`
}

// New reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
