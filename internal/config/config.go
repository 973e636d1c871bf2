package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	QueryMode string        `mapstructure:"query_mode"`
	Query     QueryConfig   `mapstructure:"query"`
	Logging   LoggingConfig `mapstructure:"logging"`
}

type QueryConfig struct {
	DefaultRowLimit int `mapstructure:"default_row_limit"`
	MaxRowLimit     int `mapstructure:"max_row_limit"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// File enables rotating file output. Empty means stderr only;
	// stdout is never used because it carries the MCP protocol.
	File string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("query_mode", "safe")
	v.SetDefault("query.default_row_limit", 100)
	v.SetDefault("query.max_row_limit", 1000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("query_mode", "QUERY_MODE")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.file", "LOG_FILE")
}
