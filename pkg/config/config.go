package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Simulation
	DefaultSimulations int `mapstructure:"DEFAULT_SIMULATIONS"`
	MaxSimulations     int `mapstructure:"MAX_SIMULATIONS"`
	SimulationWorkers  int `mapstructure:"SIMULATION_WORKERS"`
	ChunkSize          int `mapstructure:"SIMULATION_CHUNK_SIZE"`

	// Correlation regularization
	CorrelationShrinkage float64 `mapstructure:"CORRELATION_SHRINKAGE"`
	MinEigenvalue        float64 `mapstructure:"MIN_EIGENVALUE"`

	// Result cache
	RedisURL     string        `mapstructure:"REDIS_URL"`
	CacheEnabled bool          `mapstructure:"CACHE_ENABLED"`
	CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
}

// Load reads configuration into v from the environment and an optional .env
// file. Flags bound to v by the caller take precedence over environment values.
func Load(v *viper.Viper) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DEFAULT_SIMULATIONS", 10000)
	v.SetDefault("MAX_SIMULATIONS", 200000)
	v.SetDefault("SIMULATION_WORKERS", 0) // 0 means one per CPU
	v.SetDefault("SIMULATION_CHUNK_SIZE", 1000)
	v.SetDefault("CORRELATION_SHRINKAGE", 0.05)
	v.SetDefault("MIN_EIGENVALUE", 1e-6)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", "24h")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the simulator cannot run with.
func (c *Config) Validate() error {
	if c.DefaultSimulations <= 0 {
		return fmt.Errorf("DEFAULT_SIMULATIONS must be positive, got %d", c.DefaultSimulations)
	}
	if c.MaxSimulations < c.DefaultSimulations {
		return fmt.Errorf("MAX_SIMULATIONS (%d) must be >= DEFAULT_SIMULATIONS (%d)", c.MaxSimulations, c.DefaultSimulations)
	}
	if c.SimulationWorkers < 0 {
		return fmt.Errorf("SIMULATION_WORKERS must not be negative, got %d", c.SimulationWorkers)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("SIMULATION_CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.CorrelationShrinkage < 0 || c.CorrelationShrinkage >= 1 {
		return fmt.Errorf("CORRELATION_SHRINKAGE must be in [0, 1), got %g", c.CorrelationShrinkage)
	}
	if c.MinEigenvalue <= 0 {
		return fmt.Errorf("MIN_EIGENVALUE must be positive, got %g", c.MinEigenvalue)
	}
	return nil
}

// Workers returns the effective worker count.
func (c *Config) Workers() int {
	if c.SimulationWorkers > 0 {
		return c.SimulationWorkers
	}
	return runtime.NumCPU()
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
