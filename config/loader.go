package config

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Extract  ExtractConfig
	Postgres PostgresConfig
	Nyserda  NyserdaConfig
	EIA      EIAConfig `mapstructure:"eia"`
	Env      string
}

type ExtractConfig struct {
	Backoff BackoffConfig
}

type BackoffConfig struct {
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	RetryMax     int           `mapstructure:"retry_max"`
}

type PostgresConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

type NyserdaConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type EIAConfig struct {
	SeriesID string `mapstructure:"series_id"`
}

// NewConfig loads the configuration from the provided base config reader
// and merges it with the environment-specific configuration.
func NewConfig(baseConfigReader io.Reader, envConfigReader io.Reader, env string) (*Config, error) {
	if env == "" { // Use the provided 'env' or default to "dev"
		env = "dev"
	}

	viper.SetConfigType("yaml")

	// Read the base configuration
	if err := viper.ReadConfig(baseConfigReader); err != nil {
		return nil, fmt.Errorf("error reading base config: %w", err)
	}

	// Merge with environment-specific configuration (only if provided)
	if envConfigReader != nil {
		if err := viper.MergeConfig(envConfigReader); err != nil {
			log.Printf("Error merging environment-specific config: %s", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Set the environment directly
	config.Env = env

	return &config, nil
}
