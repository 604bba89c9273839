// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package config loads the settings of the commands from the environment.
package config

import (
	"time"

	"github.com/nxgtw/go-ipc-sync/internal/logging"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds all the settings.
type Config struct {
	Semaphore SemaphoreConfig
	Shm       ShmConfig
	Fifo      FifoConfig
	Counter   CounterConfig
	Logging   LogConfig
	Metrics   MetricsConfig
}

// SemaphoreConfig holds the settings of the semaphore gate.
type SemaphoreConfig struct {
	Name string `envconfig:"IPC_SEM_NAME"`
}

// ShmConfig holds the settings of the shared memory segment.
type ShmConfig struct {
	Name      string `envconfig:"IPC_SHM_NAME"`
	Capacity  int    `envconfig:"IPC_SHM_CAPACITY"`
	Serialize bool   `envconfig:"IPC_SHM_SERIALIZE"`
}

// FifoConfig holds the settings of the pipe reader.
type FifoConfig struct {
	Path  string `envconfig:"IPC_FIFO_PATH"`
	Chunk int    `envconfig:"IPC_FIFO_CHUNK"`
}

// CounterConfig holds the timings of the counter actors.
type CounterConfig struct {
	Pause       time.Duration `envconfig:"IPC_COUNTER_PAUSE"`
	Dwell       time.Duration `envconfig:"IPC_COUNTER_DWELL"`
	StartupHold time.Duration `envconfig:"IPC_COUNTER_STARTUP"`
	MaxLineLen  int           `envconfig:"IPC_COUNTER_MAXLINE"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL"`
	Development bool   `envconfig:"LOG_DEV"`
}

// MetricsConfig holds the address of the metrics endpoint. Empty address disables it.
type MetricsConfig struct {
	Addr string `envconfig:"IPC_METRICS_ADDR"`
}

// Load loads configuration from environment variables.
// Unset variables keep the values of Default.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Semaphore: SemaphoreConfig{Name: "/my_named_semaphore"},
		Shm:       ShmConfig{Name: "my_shared_memory", Capacity: 50},
		Fifo:      FifoConfig{Path: "/tmp/my_named_pipe", Chunk: 49},
		Counter: CounterConfig{
			Pause:       10 * time.Microsecond,
			Dwell:       time.Second,
			StartupHold: 3 * time.Second,
			MaxLineLen:  32,
		},
		Logging: LogConfig{Level: "info", Development: true},
	}
}

// Validate checks the values, which can't be used as is.
func (c *Config) Validate() error {
	switch {
	case len(c.Semaphore.Name) == 0:
		return errors.New("semaphore name is empty")
	case len(c.Shm.Name) == 0:
		return errors.New("shm name is empty")
	case c.Shm.Capacity <= 0:
		return errors.Errorf("invalid shm capacity %d", c.Shm.Capacity)
	case len(c.Fifo.Path) == 0:
		return errors.New("fifo path is empty")
	case c.Fifo.Chunk <= 0:
		return errors.Errorf("invalid fifo chunk %d", c.Fifo.Chunk)
	case c.Counter.MaxLineLen <= 0:
		return errors.Errorf("invalid max line length %d", c.Counter.MaxLineLen)
	case c.Counter.Pause < 0 || c.Counter.Dwell < 0 || c.Counter.StartupHold < 0:
		return errors.New("counter timings must not be negative")
	}
	return nil
}

// LoggerConfig converts the logging settings for the logging package.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Development = c.Logging.Development
	return cfg
}
