package http

import (
	"path/filepath"
	"testing"

	"voicenotes/internal/config"
	"voicenotes/internal/logger"
)

func TestNewServerRejectsBadTunables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero poll attempts", func(c *config.Config) { c.PollAttempts = 0 }},
		{"zero poll interval", func(c *config.Config) { c.PollInterval = 0 }},
		{"zero upload limit", func(c *config.Config) { c.MaxUploadBytes = 0 }},
		{"unknown provider", func(c *config.Config) { c.SummarizerProvider = "local" }},
		{"missing pdf font", func(c *config.Config) { c.PDFFontPath = filepath.Join(t.TempDir(), "none.ttf") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if _, err := NewServer(cfg, logger.Discard()); err == nil {
				t.Fatal("expected NewServer to fail")
			}
		})
	}
}

func TestNewServerWithoutCredentials(t *testing.T) {
	if _, err := NewServer(config.Default(), logger.Discard()); err != nil {
		t.Fatalf("missing keys must not stop the server: %v", err)
	}
}
