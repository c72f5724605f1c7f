package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process-level configuration, loaded from the environment.
type Config struct {
	Addr           string   `envconfig:"ADDR" default:":8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	Debug          bool     `envconfig:"DEBUG" default:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("poker", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
