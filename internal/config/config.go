package config

import (
	"os"
	"strconv"
	"strings"

	"semprep/internal"
	"semprep/internal/errors"

	"gopkg.in/yaml.v3"
)

// DefaultOutputPath is where the excerpt lands when no output is configured.
const DefaultOutputPath = "data/bks_excerpt.json"

// Config represents the complete application configuration
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
	Estimator EstimatorConfig `yaml:"estimator"`
}

// InputConfig holds loader settings
type InputConfig struct {
	// Sheet selects the worksheet of an .xlsx input; empty means the first sheet.
	Sheet string `yaml:"sheet"`
}

// OutputConfig holds destination paths
type OutputConfig struct {
	Path       string `yaml:"path"`
	ReportPath string `yaml:"report"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// EstimatorConfig holds SEM optimizer settings
type EstimatorConfig struct {
	MaxIterations     int     `yaml:"max_iterations"`
	GradientTolerance float64 `yaml:"gradient_tolerance"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Path: DefaultOutputPath,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Estimator: EstimatorConfig{
			MaxIterations:     1000,
			GradientTolerance: 1e-6,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence, then validates it.
// Command-line flags are applied by the caller on top of the result.
func Load(configFile string) (*Config, error) {
	config := Default()

	if configFile != "" {
		if err := loadFile(config, configFile); err != nil {
			return nil, err
		}
	}

	applyEnv(config)

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WithCode(errors.CodeConfigInvalid, errors.NotFound("config file "+path))
		}
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to read config file %s", path))
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to parse config file %s", path))
	}
	return nil
}

func applyEnv(config *Config) {
	config.Input.Sheet = getEnvOrDefault("SEMPREP_SHEET", config.Input.Sheet)
	config.Output.Path = getEnvOrDefault("SEMPREP_OUTPUT", config.Output.Path)
	config.Output.ReportPath = getEnvOrDefault("SEMPREP_REPORT", config.Output.ReportPath)
	config.Logging.Level = getEnvOrDefault("LOG_LEVEL", config.Logging.Level)
	config.Estimator.MaxIterations = getEnvIntOrDefault("SEMPREP_MAX_ITERATIONS", config.Estimator.MaxIterations)
	config.Estimator.GradientTolerance = getEnvFloatOrDefault("SEMPREP_GRADIENT_TOLERANCE", config.Estimator.GradientTolerance)
}

// Validate checks the fields every run depends on
func Validate(config *Config) error {
	if strings.TrimSpace(config.Output.Path) == "" {
		return errors.ConfigInvalid("output path is required")
	}
	if _, err := internal.ParseLogLevel(config.Logging.Level); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if config.Estimator.MaxIterations <= 0 {
		return errors.ConfigInvalid("estimator max_iterations must be positive")
	}
	if config.Estimator.GradientTolerance <= 0 {
		return errors.ConfigInvalid("estimator gradient_tolerance must be positive")
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
