// Package config loads oatest configuration from defaults, an optional
// openapitest.toml file, and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/saiaj/openapitest/internal/logging"
)

const (
	// DefaultPath is the config file looked up in the working directory.
	DefaultPath = "openapitest.toml"

	defaultSchemaPath = "openapi.yaml"
	defaultBaseURL    = "http://localhost:8080"
	defaultLogLevel   = "error"
	defaultTimeout    = 30 * time.Second
)

// OutputFormat describes the CLI output mode.
type OutputFormat string

const (
	// OutputAuto picks text on a terminal and JSON otherwise.
	OutputAuto OutputFormat = ""
	// OutputText renders human-readable lines.
	OutputText OutputFormat = "text"
	// OutputJSON renders one JSON document for automation.
	OutputJSON OutputFormat = "json"
)

// Config holds runtime configuration for oatest.
type Config struct {
	SchemaPath string
	BaseURL    string
	LogLevel   string
	Output     OutputFormat
	Timeout    time.Duration
	// Server holds default server variables applied to every call.
	Server map[string]string
}

type fileConfig struct {
	Schema   string            `toml:"schema"`
	BaseURL  string            `toml:"base_url"`
	LogLevel string            `toml:"log_level"`
	Output   string            `toml:"output"`
	Timeout  string            `toml:"timeout"`
	Server   map[string]string `toml:"server"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		SchemaPath: defaultSchemaPath,
		BaseURL:    defaultBaseURL,
		LogLevel:   defaultLogLevel,
		Output:     OutputAuto,
		Timeout:    defaultTimeout,
	}
}

// ParseOutput validates and converts a string to an OutputFormat.
func ParseOutput(value string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(value))) {
	case OutputAuto, "auto":
		return OutputAuto, nil
	case OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format: %q", value)
	}
}

// Set implements flag.Value for OutputFormat.
func (o *OutputFormat) Set(value string) error {
	parsed, err := ParseOutput(value)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// String returns the string representation of the output format.
func (o OutputFormat) String() string {
	if o == OutputAuto {
		return "auto"
	}
	return string(o)
}

// Load reads config from path (or DefaultPath when empty), applies
// environment overrides, and returns the merged config. A missing file is
// not an error.
func Load(path string) (Config, error) {
	configPath := path
	if configPath == "" {
		configPath = DefaultPath
	}

	fileCfg, err := readFileConfig(configPath)
	if err != nil {
		return Config{}, err
	}
	cfg, err := applyFileConfig(Default(), fileCfg)
	if err != nil {
		return Config{}, err
	}

	return applyEnv(cfg)
}

func applyEnv(cfg Config) (Config, error) {
	if value := os.Getenv("OPENAPI_SCHEMA"); value != "" {
		cfg.SchemaPath = value
	}
	if value := os.Getenv("OPENAPI_BASE_URL"); value != "" {
		cfg.BaseURL = value
	}
	if value := os.Getenv("OPENAPI_LOG_LEVEL"); value != "" {
		if !logging.ValidLevel(value) {
			return Config{}, errors.New("OPENAPI_LOG_LEVEL must be one of debug, info, warn, error")
		}
		cfg.LogLevel = value
	}
	if value := os.Getenv("OPENAPI_OUTPUT"); value != "" {
		output, err := ParseOutput(value)
		if err != nil {
			return Config{}, err
		}
		cfg.Output = output
	}
	if value := os.Getenv("OPENAPI_TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil || timeout <= 0 {
			return Config{}, errors.New("OPENAPI_TIMEOUT must be a positive duration")
		}
		cfg.Timeout = timeout
	}
	return cfg, nil
}

// readFileConfig loads the config file if present and returns zero values otherwise.
func readFileConfig(path string) (fileConfig, error) {
	//nolint:gosec // Path is user-configured by design for loading config.
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// applyFileConfig overlays file-based values onto the provided config.
func applyFileConfig(cfg Config, fileCfg fileConfig) (Config, error) {
	if fileCfg.Schema != "" {
		cfg.SchemaPath = fileCfg.Schema
	}
	if fileCfg.BaseURL != "" {
		cfg.BaseURL = fileCfg.BaseURL
	}
	if fileCfg.LogLevel != "" {
		if !logging.ValidLevel(fileCfg.LogLevel) {
			return Config{}, fmt.Errorf("invalid log_level: %q", fileCfg.LogLevel)
		}
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.Output != "" {
		output, err := ParseOutput(fileCfg.Output)
		if err != nil {
			return Config{}, err
		}
		cfg.Output = output
	}
	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid timeout: %w", err)
		}
		if timeout <= 0 {
			return Config{}, errors.New("timeout must be positive")
		}
		cfg.Timeout = timeout
	}
	if len(fileCfg.Server) > 0 {
		cfg.Server = make(map[string]string, len(fileCfg.Server))
		for k, v := range fileCfg.Server {
			cfg.Server[strings.ToUpper(k)] = v
		}
	}

	return cfg, nil
}
