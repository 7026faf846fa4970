package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SONIOX_API_KEY", "stt-key")
	t.Setenv("CHATANYWHERE_KEY", "chat-key")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, 2*time.Second)
	}
	if cfg.PollAttempts != 30 {
		t.Errorf("PollAttempts = %d, want 30", cfg.PollAttempts)
	}
	if cfg.MaxUploadBytes != 100*1024*1024 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 100*1024*1024)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := cfg.MissingCredentials(); err != nil {
		t.Errorf("MissingCredentials() error = %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("POLL_ATTEMPTS", "4")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GEMINI_BASE_URL", "http://127.0.0.1:9200/")
	t.Setenv("PDF_FONT_PATH", "/fonts/NotoSansCJK.ttf")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if cfg.PollAttempts != 4 {
		t.Errorf("PollAttempts = %d, want 4", cfg.PollAttempts)
	}
	if cfg.MaxUploadBytes != 5*1024*1024 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 5*1024*1024)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.GeminiBaseURL != "http://127.0.0.1:9200/" {
		t.Errorf("GeminiBaseURL = %q", cfg.GeminiBaseURL)
	}
	if cfg.PDFFontPath != "/fonts/NotoSansCJK.ttf" {
		t.Errorf("PDFFontPath = %q", cfg.PDFFontPath)
	}
}

func TestLoadConfigInvalidNumber(t *testing.T) {
	t.Setenv("POLL_ATTEMPTS", "many")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail for a non-numeric POLL_ATTEMPTS")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicenotes.yaml")
	content := `
port: "9000"
chat_model: "gpt-4o-mini"
poll_interval_ms: 500
poll_attempts: 10
max_upload_mb: 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9100" {
		t.Errorf("Port = %q, want env value 9100", cfg.Port)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("ChatModel = %q, want gpt-4o-mini", cfg.ChatModel)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.PollAttempts != 10 {
		t.Errorf("PollAttempts = %d, want 10", cfg.PollAttempts)
	}
	if cfg.MaxUploadBytes != 20*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.SonioxModel != "stt-async-preview" {
		t.Errorf("SonioxModel = %q, want default kept", cfg.SonioxModel)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should return error for nonexistent file")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "no keys is still valid", mutate: func(c *Config) { c.SonioxAPIKey, c.ChatAPIKey = "", "" }},
		{name: "gemini", mutate: func(c *Config) { c.SummarizerProvider = ProviderGemini }},
		{name: "unknown provider", mutate: func(c *Config) { c.SummarizerProvider = "local" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.PollAttempts = 0 }, wantErr: true},
		{name: "negative attempts", mutate: func(c *Config) { c.PollAttempts = -3 }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: true},
		{name: "zero upload limit", mutate: func(c *Config) { c.MaxUploadBytes = 0 }, wantErr: true},
		{name: "negative upload limit", mutate: func(c *Config) { c.MaxUploadBytes = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFromEnv(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"POLL_ATTEMPTS", "0"},
		{"POLL_INTERVAL_MS", "0"},
		{"MAX_UPLOAD_MB", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() should reject %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	valid := Default()
	valid.SonioxAPIKey = "stt"
	valid.ChatAPIKey = "chat"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "all keys", mutate: func(*Config) {}},
		{name: "missing stt key", mutate: func(c *Config) { c.SonioxAPIKey = "" }, wantErr: true},
		{name: "missing chat key", mutate: func(c *Config) { c.ChatAPIKey = "" }, wantErr: true},
		{name: "gemini without key", mutate: func(c *Config) { c.SummarizerProvider = ProviderGemini }, wantErr: true},
		{
			name: "gemini with key",
			mutate: func(c *Config) {
				c.SummarizerProvider = ProviderGemini
				c.GeminiAPIKey = "g"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.MissingCredentials()
			if (err != nil) != tt.wantErr {
				t.Errorf("MissingCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnalysisKey(t *testing.T) {
	cfg := Default()
	cfg.ChatAPIKey = "chat"
	cfg.GeminiAPIKey = "gemini"

	if got := cfg.AnalysisKey(); got != "chat" {
		t.Errorf("AnalysisKey() = %q, want chat", got)
	}

	cfg.SummarizerProvider = ProviderGemini
	if got := cfg.AnalysisKey(); got != "gemini" {
		t.Errorf("AnalysisKey() = %q, want gemini", got)
	}
}
