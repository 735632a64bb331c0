package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings are the process-level knobs read from the environment.
type Settings struct {
	Token        string        `env:"TOKEN,required,notEmpty"`
	FeedsPath    string        `env:"FEEDS_PATH"    envDefault:"feeds.toml"`
	DBPath       string        `env:"DB_PATH"       envDefault:"db.sqlite"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	Debug        bool          `env:"DEBUG"`
	MetricsAddr  string        `env:"METRICS_ADDR"`
}

func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
