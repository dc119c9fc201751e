package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata"

	"aqua-guard/internal/alert"
	"aqua-guard/internal/model"
	"aqua-guard/internal/rules"
	"aqua-guard/internal/rules/builtin"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultMLServicePort = "5050"

type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Inference   InferenceConfig   `yaml:"inference"`
	Rules       []model.Rule      `yaml:"rules"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ApplicationConfig struct {
	APIPort     string `yaml:"api_port"`
	MetricsPort string `yaml:"metrics_port"`
	Timezone    string `yaml:"timezone"`
	AutoStart   bool   `yaml:"auto_start"`
}

type GeneratorConfig struct {
	IntervalMs      int    `yaml:"interval_ms"`
	BackfillHours   int    `yaml:"backfill_hours"`
	HistoryCapacity int    `yaml:"history_capacity"`
	Seed            uint64 `yaml:"seed"`
}

type InferenceConfig struct {
	URL             string `yaml:"url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	CacheSize       int    `yaml:"cache_size"`
	SequenceLength  int    `yaml:"sequence_length"`
}

type AlertingConfig struct {
	Enabled  bool                 `yaml:"enabled"`
	Channels AlertChannelsConfig  `yaml:"channels"`
	Telegram alert.TelegramConfig `yaml:"telegram"`
	// MaxStored bounds the API's in-memory alert list
	MaxStored int `yaml:"max_stored"`
}

type AlertChannelsConfig struct {
	Log      bool `yaml:"log"`
	Telegram bool `yaml:"telegram"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadEnv loads .env files if present; a missing file is not an error
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig reads filename, applies environment overrides and fills defaults.
// An empty filename yields the default configuration.
func LoadConfig(filename string) (*Config, error) {
	config := GetDefaultConfig()
	config.Rules = nil

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file %s: %w", filename, err)
		}
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides config values from ML_SERVICE_URL, ML_SERVICE_PORT and LOG_LEVEL
func (c *Config) ApplyEnv() {
	if url := os.Getenv("ML_SERVICE_URL"); url != "" {
		c.Inference.URL = url
	}
	if c.Inference.URL == "" {
		port := os.Getenv("ML_SERVICE_PORT")
		if port == "" {
			port = defaultMLServicePort
		}
		c.Inference.URL = "http://localhost:" + port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) Validate() error {
	if c.Application.APIPort == "" {
		c.Application.APIPort = "5001"
	}
	if c.Application.MetricsPort == "" {
		c.Application.MetricsPort = "8080"
	}
	if c.Application.Timezone == "" {
		c.Application.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Application.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Application.Timezone, err)
	}

	if c.Generator.IntervalMs <= 0 {
		c.Generator.IntervalMs = 60000
	}
	if c.Generator.BackfillHours < 0 {
		return fmt.Errorf("backfill_hours cannot be negative")
	}
	if c.Generator.HistoryCapacity <= 0 {
		c.Generator.HistoryCapacity = 2000
	}

	if c.Inference.URL == "" {
		c.Inference.URL = "http://localhost:" + defaultMLServicePort
	}
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = 5
	}
	if c.Inference.CacheTTLSeconds <= 0 {
		c.Inference.CacheTTLSeconds = 30
	}
	if c.Inference.CacheSize <= 0 {
		c.Inference.CacheSize = 10
	}
	if c.Inference.SequenceLength <= 0 {
		c.Inference.SequenceLength = 24
	}
	if c.Generator.HistoryCapacity < c.Inference.SequenceLength {
		return fmt.Errorf("history_capacity %d is smaller than sequence_length %d",
			c.Generator.HistoryCapacity, c.Inference.SequenceLength)
	}

	if len(c.Rules) == 0 {
		c.Rules = builtin.DefaultRules()
	}

	if c.Alerting.MaxStored <= 0 {
		c.Alerting.MaxStored = 1000
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Generator.IntervalMs) * time.Millisecond
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Inference.CacheTTLSeconds) * time.Second
}

// Location resolves the timezone calendar features are computed in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Application.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadRulesFile replaces the configured rules with the ones in filename (YAML or JSON)
func (c *Config) LoadRulesFile(filename string) error {
	loaded, err := rules.LoadRules(filename)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("rules file %s defines no rules", filename)
	}
	c.Rules = loaded
	return nil
}

func (c *Config) GetRuleConfigByName(name string) (*model.Rule, bool) {
	for i := range c.Rules {
		if c.Rules[i].Name == name {
			return &c.Rules[i], true
		}
	}
	return nil, false
}

func (c *Config) IsRuleEnabled(name string) bool {
	rule, exists := c.GetRuleConfigByName(name)
	return exists && rule.Enabled
}

// GetDefaultConfig returns a default Config
func GetDefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			APIPort:     "5001",
			MetricsPort: "8080",
			Timezone:    "UTC",
			AutoStart:   true,
		},
		Generator: GeneratorConfig{
			IntervalMs:      60000,
			BackfillHours:   48,
			HistoryCapacity: 2000,
		},
		Inference: InferenceConfig{
			TimeoutSeconds:  5,
			CacheTTLSeconds: 30,
			CacheSize:       10,
			SequenceLength:  24,
		},
		Rules: builtin.DefaultRules(),
		Alerting: AlertingConfig{
			Enabled: true,
			Channels: AlertChannelsConfig{
				Log:      true,
				Telegram: false,
			},
			Telegram: alert.TelegramConfig{
				ParseMode: "HTML",
			},
			MaxStored: 1000,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}
