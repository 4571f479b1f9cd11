// Package config loads runtime settings from an optional config file, .env and
// RESEARCHER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

type LLMConfig struct {
	Backend    string        `mapstructure:"backend"` // gemini | ollama
	Model      string        `mapstructure:"model"`
	OllamaHost string        `mapstructure:"ollama_host"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SearchConfig struct {
	Backend        string        `mapstructure:"backend"` // gemini | serper
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxResults     int           `mapstructure:"max_results"`
	ContextSize    string        `mapstructure:"context_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type StoreConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type ServerConfig struct {
	Address    string `mapstructure:"address"`
	CreateRate int    `mapstructure:"create_rate"` // mission creations per minute
}

type LogConfig struct {
	File    string `mapstructure:"file"`
	Verbose bool   `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.backend", "gemini")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.ollama_host", "http://localhost:11434")
	v.SetDefault("llm.timeout", 90*time.Second)

	v.SetDefault("search.backend", "gemini")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.model", "")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.context_size", "medium")
	v.SetDefault("search.max_retries", 3)
	v.SetDefault("search.retry_base_delay", time.Second)
	v.SetDefault("search.timeout", 30*time.Second)

	v.SetDefault("ratelimit.max_requests", 10)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("store.capacity", 256)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.create_rate", 30)

	v.SetDefault("log.file", "researcher.log")
	v.SetDefault("log.verbose", false)
}

// New returns a viper instance with defaults, env binding and an optional
// config file. Callers may bind cobra flags onto it before Load.
func New(path string) (*viper.Viper, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RESEARCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("researcher")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Backend) {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("unsupported llm.backend %q", c.LLM.Backend)
	}
	switch strings.ToLower(c.Search.Backend) {
	case "gemini", "serper":
	default:
		return fmt.Errorf("unsupported search.backend %q", c.Search.Backend)
	}
	switch c.Search.ContextSize {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("search.context_size must be low, medium or high, got %q", c.Search.ContextSize)
	}
	if c.Search.MaxRetries < 0 {
		return fmt.Errorf("search.max_retries must be >= 0")
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.max_requests and ratelimit.window must be positive")
	}
	if c.Store.Capacity <= 0 {
		return fmt.Errorf("store.capacity must be positive")
	}
	if c.Server.CreateRate <= 0 {
		return fmt.Errorf("server.create_rate must be positive")
	}
	return nil
}
