// Package config содержит логику чтения конфигурации сервиса учёта тренировок.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса учёта тренировок.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	AuthSecret    string `env:"AUTH_SECRET"`
	ExtraHolidays string `env:"EXTRA_HOLIDAYS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envExtraHolidays := cfg.ExtraHolidays

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth tokens")
	flag.StringVar(&cfg.ExtraHolidays, "e", "", "extra holiday dates, comma-separated YYYY-MM-DD")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envExtraHolidays != "" {
		cfg.ExtraHolidays = envExtraHolidays
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// ExtraHolidayDates разбирает список дополнительных праздничных дат.
func (c *Config) ExtraHolidayDates() ([]time.Time, error) {
	if c.ExtraHolidays == "" {
		return nil, nil
	}

	parts := strings.Split(c.ExtraHolidays, ",")
	dates := make([]time.Time, 0, len(parts))
	for _, p := range parts {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse holiday date %q: %w", p, err)
		}
		dates = append(dates, d)
	}

	return dates, nil
}
