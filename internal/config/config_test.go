package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workflow.QuickActionThreshold != 3 {
		t.Errorf("QuickActionThreshold = %d, want 3", cfg.Workflow.QuickActionThreshold)
	}
	if cfg.Workflow.UploadProgressCap != 90 {
		t.Errorf("UploadProgressCap = %d, want 90", cfg.Workflow.UploadProgressCap)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want loopback by default", cfg.Server.Host)
	}
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: "http://backend:9000"
  timeout: 5s
workflow:
  upload_settle_delay: 250ms
server:
  host: "0.0.0.0"
  allowed_origins: ["https://kiosk.example"]
auth:
  enabled: true
  jwt_secret: "s3cret"
  operators:
    - username: "root"
      password_hash: "x"
      role: "admin"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://backend:9000" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Backend.Timeout)
	}
	if cfg.Workflow.UploadSettleDelay != 250*time.Millisecond {
		t.Errorf("UploadSettleDelay = %v", cfg.Workflow.UploadSettleDelay)
	}
	if len(cfg.Auth.Operators) != 1 || cfg.Auth.Operators[0].Role != "admin" {
		t.Errorf("Operators = %+v", cfg.Auth.Operators)
	}
	if cfg.Server.Host != "0.0.0.0" || len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://kiosk.example" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.Port != "8090" {
		t.Errorf("Port = %q, want default", cfg.Server.Port)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOSPITAL_BACKEND_BASE_URL", "http://from-env:8000")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://from-env:8000" {
		t.Errorf("BaseURL = %q, want env value", cfg.Backend.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"empty backend", func(c *Config) { c.Backend.BaseURL = " " }, "backend.base_url"},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"cap at 100", func(c *Config) { c.Workflow.UploadProgressCap = 100 }, "upload_progress_cap"},
		{"zero step", func(c *Config) { c.Workflow.UploadProgressStep = 0 }, "upload_progress_step"},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }, "jwt_secret"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
