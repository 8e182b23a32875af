package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"

	"goseldon/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Algorithm AlgorithmConfig `validate:"required"`
	Optimizer OptimizerConfig `validate:"required"`
	Ledger    LedgerConfig    `validate:"required"`
	Server    ServerConfig    `validate:"required"`
	Log       LogConfig       `validate:"required"`
}

// AlgorithmConfig holds defaults for runs that do not set them
type AlgorithmConfig struct {
	Delta       float64 `validate:"gt=0,lt=1"`
	FracSafety  float64 `validate:"gt=0,lt=1"`
	BoundMethod string  `validate:"oneof=ttest hoeffding"`
	Barrier     string  `validate:"oneof=softplus hinge2 hard"`
	Tolerance   float64 `validate:"gte=0"`
	Parallel    bool
}

// OptimizerConfig holds optimizer defaults
type OptimizerConfig struct {
	Method        string  `validate:"oneof=gradient_descent bfgs lbfgs cg nelder_mead"`
	LearningRate  float64 `validate:"gt=0"`
	MaxIterations int     `validate:"gt=0"`
	Tolerance     float64 `validate:"gt=0"`
}

// LedgerConfig selects where runs are recorded. An empty URL keeps runs in
// memory only.
type LedgerConfig struct {
	Driver string `validate:"oneof=sqlite postgres"`
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required"`
	GinMode string `validate:"oneof=debug release test"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Algorithm: loadAlgorithmConfig(),
		Optimizer: loadOptimizerConfig(),
		Ledger:    loadLedgerConfig(),
		Server:    loadServerConfig(),
		Log:       loadLogConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAlgorithmConfig() AlgorithmConfig {
	return AlgorithmConfig{
		Delta:       getEnvFloatOrDefault("SELDON_DELTA", 0.05),
		FracSafety:  getEnvFloatOrDefault("SELDON_FRAC_SAFETY", 0.6),
		BoundMethod: getEnvOrDefault("SELDON_BOUND_METHOD", "ttest"),
		Barrier:     getEnvOrDefault("SELDON_BARRIER", "softplus"),
		Tolerance:   getEnvFloatOrDefault("SELDON_TOLERANCE", 1e-9),
		Parallel:    getEnvBoolOrDefault("SELDON_PARALLEL", false),
	}
}

func loadOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Method:        getEnvOrDefault("OPTIMIZER_METHOD", "gradient_descent"),
		LearningRate:  getEnvFloatOrDefault("OPTIMIZER_LEARNING_RATE", 0.05),
		MaxIterations: getEnvIntOrDefault("OPTIMIZER_MAX_ITERATIONS", 500),
		Tolerance:     getEnvFloatOrDefault("OPTIMIZER_TOLERANCE", 1e-8),
	}
}

func loadLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Driver: getEnvOrDefault("LEDGER_DRIVER", "sqlite"),
		URL:    os.Getenv("DATABASE_URL"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}
}

func validateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if config.Ledger.Driver == "postgres" && config.Ledger.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required for the postgres ledger")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
