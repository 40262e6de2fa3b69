package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the YAML file.
const (
	EnvAPIURL   = "NEWS_ANALYZER_API_URL"
	EnvLogLevel = "NEWS_ANALYZER_LOG_LEVEL"
	EnvPort     = "NEWS_ANALYZER_PORT"
)

// Config holds the application's configuration.
type Config struct {
	MLService MLServiceConfig `yaml:"ml_service"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// MLServiceConfig points at the prediction service.
type MLServiceConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // 0 disables the client-side timeout
}

// Timeout returns the configured request timeout.
func (c MLServiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads configuration from the specified YAML file. An empty path
// skips the file and uses defaults plus environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	if configPath != "" {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	config.MLService.URL = os.ExpandEnv(config.MLService.URL)

	if v := os.Getenv(EnvAPIURL); v != "" {
		config.MLService.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		config.Server.Port = v
	}

	setDefaults(config)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(config *Config) {
	if config.MLService.URL == "" {
		config.MLService.URL = "http://127.0.0.1:8000"
	}
	if config.Server.Port == "" {
		config.Server.Port = "8090"
	}
	if config.Server.Mode == "" {
		config.Server.Mode = "release"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.MLService.TimeoutSeconds < 0 {
		return fmt.Errorf("ml_service.timeout_seconds must not be negative, got %d", c.MLService.TimeoutSeconds)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric, got %q", c.Server.Port)
	}
	return nil
}
