// Package bench drives a concurrent workload against a flyweight registry
// and checks that every pair resolved to exactly one instance.
package bench

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config controls a benchmark run.
type Config struct {
	Workers    int           `mapstructure:"workers"`
	Keys       int           `mapstructure:"keys"`
	Iterations int           `mapstructure:"iterations"` // per worker
	FailRate   float64       `mapstructure:"fail_rate"`
	Seed       uint64        `mapstructure:"seed"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LogLevel   string        `mapstructure:"log_level"`
	Trace      bool          `mapstructure:"trace"`
	Metrics    bool          `mapstructure:"metrics"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Workers:    8,
		Keys:       64,
		Iterations: 10000,
		FailRate:   0.05,
		Seed:       1,
		Timeout:    time.Minute,
		LogLevel:   "warn",
		Metrics:    true,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return errors.New("workers must be positive")
	case c.Keys <= 0:
		return errors.New("keys must be positive")
	case c.Iterations < 0:
		return errors.New("iterations cannot be negative")
	case c.FailRate < 0 || c.FailRate > 1:
		return fmt.Errorf("fail rate %v outside [0, 1]", c.FailRate)
	case c.Timeout < 0:
		return errors.New("timeout cannot be negative")
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func (c Config) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return lvl
}
