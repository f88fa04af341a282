package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything read from the environment at startup.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" default:"host=localhost user=postgres password=postgres dbname=stackit port=5432 sslmode=disable"`
	Port        string `envconfig:"PORT" default:"8080"`
	JWTSecret   string `envconfig:"JWT_SECRET" default:"please-change-me-with-env-var"`
	GinMode     string `envconfig:"GIN_MODE" default:"debug"`
}

// Load reads an optional .env file and parses the environment.
// A missing .env file is not an error; env vars take precedence either way.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
