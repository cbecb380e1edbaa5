// Package config holds the benchmark driver's settings and loads them from
// YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/zhuanxuhit/singleton-notes/singleton"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config describes one benchmark session.
type Config struct {
	// Workers is the number of goroutines hammering the registry per run.
	Workers int `yaml:"workers"`
	// Iterations is the number of access calls each worker makes.
	Iterations int `yaml:"iterations"`
	// Strategies to run, by name. Empty means every strategy of the mode.
	Strategies []string `yaml:"strategies,omitempty"`
	// Eager selects the eager registry instead of the lazy one.
	Eager bool `yaml:"eager"`
	// MetricsFile, when set, receives the prometheus metrics after the
	// session.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// DefaultConfig returns one worker per P, each making 100k calls.
func DefaultConfig() *Config {
	return &Config{
		Workers:    runtime.GOMAXPROCS(0),
		Iterations: 100_000,
	}
}

// LoadFromFile reads a YAML config. Fields missing from the file are zero.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge copies every non-zero field of other into c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Workers != 0 {
		c.Workers = other.Workers
	}
	if other.Iterations != 0 {
		c.Iterations = other.Iterations
	}
	if len(other.Strategies) > 0 {
		c.Strategies = append([]string(nil), other.Strategies...)
	}
	if other.Eager {
		c.Eager = true
	}
	if other.MetricsFile != "" {
		c.MetricsFile = other.MetricsFile
	}
}

// Validate checks that c describes a runnable session.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalid, c.Iterations)
	}
	_, err := c.ResolveStrategies()
	return err
}

// Mode returns the registry mode c asks for.
func (c *Config) Mode() singleton.Mode {
	if c.Eager {
		return singleton.Eager
	}
	return singleton.Lazy
}

// ResolveStrategies parses Strategies, defaulting to every strategy of the
// configured mode. Strategies of the other mode are rejected.
func (c *Config) ResolveStrategies() ([]singleton.Strategy, error) {
	if len(c.Strategies) == 0 {
		if c.Eager {
			return []singleton.Strategy{singleton.EagerInit}, nil
		}
		return singleton.LazyStrategies(), nil
	}

	out := make([]singleton.Strategy, 0, len(c.Strategies))
	for _, name := range c.Strategies {
		s, err := singleton.ParseStrategy(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if s.Mode() != c.Mode() {
			return nil, fmt.Errorf("%w: strategy %s needs a %s registry", ErrInvalid, s, s.Mode())
		}
		out = append(out, s)
	}
	return out, nil
}
