package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend           string        `yaml:"backend"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	ClaudeAPIKey      string        `yaml:"claude_api_key"`
	Model             string        `yaml:"model"`
	InputDir          string        `yaml:"input_dir"`
	OutputPath        string        `yaml:"output_path"`
	DBPath            string        `yaml:"db_path"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	ChunkSize         int           `yaml:"chunk_size"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxImageBytes     int64         `yaml:"max_image_bytes"`
	LogLevel          string        `yaml:"log_level"`
	LogFile           string        `yaml:"log_file"`
}

// Load builds the config from defaults, an optional YAML file, and
// environment variables, in that order of increasing precedence. The file
// path comes from TRENDSIGHT_CONFIG, falling back to ./trendsight.yaml.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("TRENDSIGHT_CONFIG")
	if path == "" {
		path = "trendsight.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Backend:           "gemini",
		Model:             "",
		InputDir:          "screenshots",
		OutputPath:        "trend_report.md",
		DBPath:            "trendsight.db",
		RequestTimeout:    60 * time.Second,
		MaxAttempts:       3,
		ChunkSize:         8,
		RequestsPerMinute: 10,
		MaxImageBytes:     20 << 20,
		LogLevel:          "info",
	}
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.Backend, "TRENDSIGHT_BACKEND")
	setEnv(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setEnv(&cfg.ClaudeAPIKey, "CLAUDE_API_KEY")
	setEnv(&cfg.Model, "TRENDSIGHT_MODEL")
	setEnv(&cfg.InputDir, "TRENDSIGHT_INPUT_DIR")
	setEnv(&cfg.OutputPath, "TRENDSIGHT_OUTPUT_PATH")
	setEnv(&cfg.DBPath, "TRENDSIGHT_DB_PATH")
	setEnvDuration(&cfg.RequestTimeout, "TRENDSIGHT_REQUEST_TIMEOUT")
	setEnvInt(&cfg.MaxAttempts, "TRENDSIGHT_MAX_ATTEMPTS")
	setEnvInt(&cfg.ChunkSize, "TRENDSIGHT_CHUNK_SIZE")
	setEnvInt(&cfg.RequestsPerMinute, "TRENDSIGHT_REQUESTS_PER_MINUTE")
	setEnv(&cfg.LogLevel, "LOG_LEVEL")
	setEnv(&cfg.LogFile, "LOG_FILE")
}

func setEnv(dst *string, key string) {
	if val, exists := os.LookupEnv(key); exists {
		*dst = val
	}
}

func setEnvInt(dst *int, key string) {
	if val, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setEnvDuration(dst *time.Duration, key string) {
	if val, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// APIKey returns the credential for the configured backend.
func (c *Config) APIKey() string {
	if c.Backend == "claude" {
		return c.ClaudeAPIKey
	}
	return c.GeminiAPIKey
}
