package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderChat   = "chat"
	ProviderGemini = "gemini"
)

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	SonioxAPIKey  string        `yaml:"-"`
	SonioxBaseURL string        `yaml:"soniox_base_url"`
	SonioxModel   string        `yaml:"soniox_model"`
	PollInterval  time.Duration `yaml:"-"`
	PollAttempts  int           `yaml:"poll_attempts"`

	SummarizerProvider string `yaml:"summarizer_provider"`
	ChatAPIKey         string `yaml:"-"`
	ChatBaseURL        string `yaml:"chat_base_url"`
	ChatModel          string `yaml:"chat_model"`
	GeminiAPIKey       string `yaml:"-"`
	GeminiModel        string `yaml:"gemini_model"`
	// GeminiBaseURL overrides the Gemini API endpoint; empty uses the SDK default.
	GeminiBaseURL string `yaml:"gemini_base_url"`

	MaxUploadBytes int64    `yaml:"-"`
	CORSOrigins    []string `yaml:"cors_origins"`

	// PDFFontPath names a TrueType font for PDF export; empty uses the
	// bundled DejaVu Sans.
	PDFFontPath string `yaml:"pdf_font_path"`
}

// fileConfig holds the tunables that may come from CONFIG_FILE. Credentials
// are only ever read from the environment.
type fileConfig struct {
	Config         `yaml:",inline"`
	PollIntervalMS int64 `yaml:"poll_interval_ms"`
	MaxUploadMB    int64 `yaml:"max_upload_mb"`
}

func Default() Config {
	return Config{
		Port:               "3000",
		LogLevel:           "info",
		SonioxBaseURL:      "https://api.soniox.com",
		SonioxModel:        "stt-async-preview",
		PollInterval:       2 * time.Second,
		PollAttempts:       30,
		SummarizerProvider: ProviderChat,
		ChatBaseURL:        "https://api.chatanywhere.tech",
		ChatModel:          "gpt-3.5-turbo",
		GeminiModel:        "gemini-2.5-flash",
		MaxUploadBytes:     100 * 1024 * 1024,
		CORSOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
	}
}

func LoadConfig() (Config, error) {
	cfg := Default()

	if path := envOrDefault("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOrDefault("PORT", cfg.Port)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.SonioxAPIKey = strings.TrimSpace(os.Getenv("SONIOX_API_KEY"))
	cfg.SonioxBaseURL = envOrDefault("SONIOX_BASE_URL", cfg.SonioxBaseURL)
	cfg.SonioxModel = envOrDefault("SONIOX_MODEL", cfg.SonioxModel)

	pollMS, err := parseIntEnv("POLL_INTERVAL_MS", cfg.PollInterval.Milliseconds())
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_INTERVAL_MS: %w", err)
	}
	cfg.PollInterval = time.Duration(pollMS) * time.Millisecond

	attempts, err := parseIntEnv("POLL_ATTEMPTS", int64(cfg.PollAttempts))
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_ATTEMPTS: %w", err)
	}
	cfg.PollAttempts = int(attempts)

	cfg.SummarizerProvider = strings.ToLower(envOrDefault("SUMMARIZER_PROVIDER", cfg.SummarizerProvider))
	cfg.ChatAPIKey = strings.TrimSpace(os.Getenv("CHATANYWHERE_KEY"))
	cfg.ChatBaseURL = envOrDefault("CHAT_BASE_URL", cfg.ChatBaseURL)
	cfg.ChatModel = envOrDefault("CHAT_MODEL", cfg.ChatModel)
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.GeminiBaseURL = envOrDefault("GEMINI_BASE_URL", cfg.GeminiBaseURL)

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", cfg.MaxUploadBytes/(1024*1024))
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	cfg.PDFFontPath = envOrDefault("PDF_FONT_PATH", cfg.PDFFontPath)

	if origins := envOrDefault("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	return cfg, nil
}

// Validate checks the tunables the server cannot run with. Credentials are
// checked separately by MissingCredentials.
func (c *Config) Validate() error {
	var errs []error

	switch c.SummarizerProvider {
	case ProviderChat, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown summarizer provider %q", c.SummarizerProvider))
	}

	if c.PollAttempts <= 0 {
		errs = append(errs, errors.New("poll attempts must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}

	return errors.Join(errs...)
}

// MissingCredentials reports absent API keys. The server still starts
// without them and answers the affected endpoints with a 500.
func (c *Config) MissingCredentials() error {
	var errs []error

	if c.SonioxAPIKey == "" {
		errs = append(errs, errors.New("SONIOX_API_KEY is required"))
	}

	switch c.SummarizerProvider {
	case ProviderChat:
		if c.ChatAPIKey == "" {
			errs = append(errs, errors.New("CHATANYWHERE_KEY is required"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required"))
		}
	}

	return errors.Join(errs...)
}

// AnalysisKey returns the credential of the selected summarizer provider.
func (c Config) AnalysisKey() string {
	if c.SummarizerProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.ChatAPIKey
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	*c = fc.Config
	if fc.PollIntervalMS > 0 {
		c.PollInterval = time.Duration(fc.PollIntervalMS) * time.Millisecond
	}
	if fc.MaxUploadMB > 0 {
		c.MaxUploadBytes = fc.MaxUploadMB * 1024 * 1024
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
