// Package config loads salesforecast settings from YAML, .env and the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Config holds all salesforecast configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Bot      BotConfig      `yaml:"bot"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the prediction API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
}

// PipelineConfig locates the fitted artifacts.
type PipelineConfig struct {
	ArtifactDir string `yaml:"artifact_dir"`
	ModelPath   string `yaml:"model_path"`
	// Refit re-fits scalers and label encoders on each request batch.
	Refit   bool `yaml:"refit"`
	Verbose bool `yaml:"verbose"`
}

// BotConfig configures the Telegram bot.
type BotConfig struct {
	Addr       string `yaml:"addr"`
	Token      string `yaml:"token"`
	APIBase    string `yaml:"api_base"`
	PredictURL string `yaml:"predict_url"`
	TestCSV    string `yaml:"test_csv"`
	StoreCSV   string `yaml:"store_csv"`
	CacheTTL   string `yaml:"cache_ttl"`
	Retries    int    `yaml:"retries"`
	RetryDelay string `yaml:"retry_delay"`
}

// StorageConfig configures the optional prediction log. An empty DSN disables it.
type StorageConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	Workers      int    `yaml:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
			MaxBodyBytes:    10 << 20,
		},
		Pipeline: PipelineConfig{
			ArtifactDir: "parameter",
			ModelPath:   "model/model_rossmann.txt",
		},
		Bot: BotConfig{
			Addr:       ":5001",
			APIBase:    "https://api.telegram.org",
			PredictURL: "http://localhost:5000/rossmann/predict",
			TestCSV:    "data/test.csv",
			StoreCSV:   "data/store.csv",
			CacheTTL:   "10m",
			Retries:    3,
			RetryDelay: "500ms",
		},
		Storage: StorageConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			Workers:      4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields defaults.
// A .env file next to the working directory is loaded first when present;
// environment variables win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, sfErrors.Wrap(err, "failed to load .env")
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, sfErrors.Wrap(err, "failed to parse config")
			}
		case os.IsNotExist(err):
		default:
			return nil, sfErrors.Wrap(err, "failed to read config")
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sfErrors.Wrap(err, "failed to create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return sfErrors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sfErrors.Wrap(err, "failed to write config")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SALESFORECAST_ARTIFACT_DIR"); v != "" {
		c.Pipeline.ArtifactDir = v
	}
	if v := os.Getenv("SALESFORECAST_MODEL_PATH"); v != "" {
		c.Pipeline.ModelPath = v
	}
	if v := os.Getenv("SALESFORECAST_REFIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Pipeline.Refit = b
		}
	}
	if v := os.Getenv("SALESFORECAST_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SALESFORECAST_PREDICT_URL"); v != "" {
		c.Bot.PredictURL = v
	}

	// Heroku style
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Pipeline.ArtifactDir == "" {
		return sfErrors.NewValidationError("pipeline.artifact_dir", "must not be empty", c.Pipeline.ArtifactDir)
	}
	if c.Pipeline.ModelPath == "" {
		return sfErrors.NewValidationError("pipeline.model_path", "must not be empty", c.Pipeline.ModelPath)
	}
	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"bot.cache_ttl":           c.Bot.CacheTTL,
		"bot.retry_delay":         c.Bot.RetryDelay,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return sfErrors.NewValidationError(name, "invalid duration", v)
		}
	}
	if c.Bot.Retries < 0 {
		return sfErrors.NewValidationError("bot.retries", "must be non-negative", c.Bot.Retries)
	}
	if c.Storage.Workers < 0 {
		return sfErrors.NewValidationError("storage.workers", "must be non-negative", c.Storage.Workers)
	}
	return nil
}

// ValidateBot additionally checks the bot settings.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Bot.Token == "" {
		return sfErrors.NewValidationError("bot.token", "not configured (set TELEGRAM_TOKEN)", "")
	}
	if c.Bot.PredictURL == "" {
		return sfErrors.NewValidationError("bot.predict_url", "must not be empty", "")
	}
	return nil
}

// GetReadTimeout returns the server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return duration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return duration(c.Server.WriteTimeout, 30*time.Second)
}

// GetShutdownTimeout returns how long in-flight requests get on shutdown.
func (c *Config) GetShutdownTimeout() time.Duration {
	return duration(c.Server.ShutdownTimeout, 10*time.Second)
}

// GetCacheTTL returns the bot dataset cache TTL.
func (c *Config) GetCacheTTL() time.Duration {
	return duration(c.Bot.CacheTTL, 10*time.Minute)
}

// GetRetryDelay returns the pause between bot retries.
func (c *Config) GetRetryDelay() time.Duration {
	return duration(c.Bot.RetryDelay, 500*time.Millisecond)
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
