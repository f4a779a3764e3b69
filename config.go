package reqkit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvBaseAPI   = "REQKIT_BASE_API"
	EnvLoginPath = "REQKIT_LOGIN_PATH"
	EnvLocale    = "REQKIT_LOCALE"
	EnvLogLevel  = "REQKIT_LOG_LEVEL"
	EnvLoading   = "REQKIT_LOADING"
)

// Config is the file form of the client settings.
type Config struct {
	BaseAPI          string          `yaml:"baseApi"`
	LoginPath        string          `yaml:"loginPath"`
	Locale           string          `yaml:"locale"`
	LogLevel         string          `yaml:"logLevel"`
	Timeout          time.Duration   `yaml:"timeout"`
	RetryBackoff     time.Duration   `yaml:"retryBackoff"`
	DownloadDir      string          `yaml:"downloadDir"`
	CheckTokenExpiry bool            `yaml:"checkTokenExpiry"`
	Tracing          bool            `yaml:"tracing"`
	Debug            bool            `yaml:"debug"`
	RateLimit        RateLimitConfig `yaml:"rateLimit"`
	Loading          LoadingSettings `yaml:"loading"`
}

// RateLimitConfig enables client-side throttling when PerSecond > 0.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

// LoadingSettings is the file form of LoadingConfig.
type LoadingSettings struct {
	Strategy string        `yaml:"strategy"`
	Text     string        `yaml:"text"`
	Duration time.Duration `yaml:"duration"`
}

// LoadingConfig converts the settings, defaulting to the toast strategy.
func (s LoadingSettings) LoadingConfig() LoadingConfig {
	strategy := LoadingStrategy(strings.ToLower(strings.TrimSpace(s.Strategy)))
	if strategy == "" {
		strategy = LoadingToast
	}
	return LoadingConfig{Strategy: strategy, Text: s.Text, Duration: s.Duration}
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		LoginPath:    DefaultLoginPath,
		Locale:       "zh",
		LogLevel:     "info",
		Timeout:      DefaultTimeout,
		RetryBackoff: DefaultRetryBackoff,
		DownloadDir:  ".",
		Loading:      LoadingSettings{Strategy: string(LoadingToast)},
	}
}

// LoadConfig reads path (when non-empty) over the defaults, applies the
// environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 -- the config path is chosen by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read file: %w", err)
		}
		if err := decodeConfig(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decodeConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseAPI); ok {
		cfg.BaseAPI = v
	}
	if v, ok := lookup(EnvLoginPath); ok && v != "" {
		cfg.LoginPath = v
	}
	if v, ok := lookup(EnvLocale); ok && v != "" {
		cfg.Locale = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup(EnvLoading); ok && v != "" {
		cfg.Loading.Strategy = v
	}
}

// Validate checks the settings for values the client cannot use.
func (cfg Config) Validate() error {
	var problems []string

	if cfg.BaseAPI != "" {
		if _, err := url.Parse(cfg.BaseAPI); err != nil {
			problems = append(problems, fmt.Sprintf("baseApi: %v", err))
		}
	}
	if cfg.Timeout < 0 {
		problems = append(problems, "timeout must be non-negative")
	}
	if cfg.RetryBackoff < 0 {
		problems = append(problems, "retryBackoff must be non-negative")
	}
	if cfg.RateLimit.PerSecond < 0 || cfg.RateLimit.Burst < 0 {
		problems = append(problems, "rateLimit values must be non-negative")
	}
	switch cfg.Loading.LoadingConfig().Strategy {
	case LoadingToast, LoadingStoreStrategy, LoadingEvent, LoadingNone:
	default:
		problems = append(problems, fmt.Sprintf("loading.strategy %q is not one of toast, store, event, none", cfg.Loading.Strategy))
	}

	if len(problems) > 0 {
		return &ClientError{
			Kind:    ErrorKindValidation,
			Message: "configuration validation failed",
			Cause:   errors.New(strings.Join(problems, "; ")),
		}
	}
	return nil
}
