package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment             string  `yaml:"environment"`
	LogLevel                string  `yaml:"log_level"`
	Port                    string  `yaml:"port"`
	StorageDir              string  `yaml:"storage_dir"`
	OperatorsFile           string  `yaml:"operators_file"`
	MaxUploadMB             int     `yaml:"max_upload_mb"`
	RunRetentionHours       int     `yaml:"run_retention_hours"`
	PruneSchedule           string  `yaml:"prune_schedule"`
	ForestTrees             int     `yaml:"forest_trees"`
	ForestSeed              int64   `yaml:"forest_seed"`
	HighConfidenceThreshold float64 `yaml:"high_confidence_threshold"`
	ScoreTimeoutSeconds     int     `yaml:"score_timeout_seconds"`
}

// Log levels accepted by LOG_LEVEL. Request lines are logged at debug and info.
var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// LoadConfig loads configuration from an optional YAML file named by
// CONFIG_FILE, then lets environment variables override it
func LoadConfig() (*Config, error) {
	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.Port = getEnv("PORT", config.Port)
	config.StorageDir = getEnv("STORAGE_DIR", config.StorageDir)
	config.OperatorsFile = getEnv("OPERATORS_FILE", config.OperatorsFile)
	config.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", config.MaxUploadMB)
	config.RunRetentionHours = getEnvAsInt("RUN_RETENTION_HOURS", config.RunRetentionHours)
	config.PruneSchedule = getEnv("PRUNE_SCHEDULE", config.PruneSchedule)
	config.ForestTrees = getEnvAsInt("FOREST_TREES", config.ForestTrees)
	config.ForestSeed = int64(getEnvAsInt("FOREST_SEED", int(config.ForestSeed)))
	config.HighConfidenceThreshold = getEnvAsFloat("HIGH_CONFIDENCE_THRESHOLD", config.HighConfidenceThreshold)
	config.ScoreTimeoutSeconds = getEnvAsInt("SCORE_TIMEOUT_SECONDS", config.ScoreTimeoutSeconds)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Environment:             "development",
		LogLevel:                "info",
		Port:                    "8080",
		OperatorsFile:           "FAA_LIST_FILTERED.csv",
		MaxUploadMB:             32,
		RunRetentionHours:       72,
		PruneSchedule:           "@hourly",
		ForestTrees:             100,
		ForestSeed:              42,
		HighConfidenceThreshold: 0.7,
		ScoreTimeoutSeconds:     300,
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.OperatorsFile == "" {
		return fmt.Errorf("OPERATORS_FILE is required")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.RunRetentionHours <= 0 {
		return fmt.Errorf("RUN_RETENTION_HOURS must be positive")
	}
	if c.ForestTrees <= 0 {
		return fmt.Errorf("FOREST_TREES must be positive")
	}
	if c.HighConfidenceThreshold < 0 || c.HighConfidenceThreshold > 1 {
		return fmt.Errorf("HIGH_CONFIDENCE_THRESHOLD must be between 0 and 1")
	}
	if c.ScoreTimeoutSeconds < 0 {
		return fmt.Errorf("SCORE_TIMEOUT_SECONDS must not be negative")
	}
	return nil
}

// RequestLogging reports whether every HTTP request should be logged
func (c *Config) RequestLogging() bool {
	return c.LogLevel == "debug" || c.LogLevel == "info"
}

// ScoreTimeout is the longest a single upload may train; 0 means no limit
func (c *Config) ScoreTimeout() time.Duration {
	return time.Duration(c.ScoreTimeoutSeconds) * time.Second
}

// DataDir returns the directory holding the run database
func (c *Config) DataDir() string {
	if c.StorageDir != "" {
		return c.StorageDir
	}
	return c.Environment + "-data"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
