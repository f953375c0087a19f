package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("CONSOLIDADOR_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "")

	path := writeTempConfig(t, `
server:
  port: 9090
  rate_limit: 30
api:
  base_url: "http://backend.test:8000/"
  timeout_seconds: 15
  retry:
    max_retries: 3
    base_delay_ms: 100
    max_delay_ms: 2000
minio:
  endpoint: "localhost:9000"
  access_key: "minioadmin"
  secret_key: "minioadmin"
  bucket: "maestras"
auth:
  jwt_secret: "test-secret"
  token_expire_hours: 48
log:
  level: "debug"
  format: "json"
store:
  max_runs: 50
watcher:
  interval_seconds: 5
  max_attempts: 10
schedule:
  interval_minutes: 1440
  master_object: "masters/admin/latest/maestra.xlsx"
  modo: "por_ano"
  ano: 2025
users:
  - username: "testuser"
    password: "testpass"
    role: "admin"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit != 30 {
		t.Errorf("Expected rate_limit 30, got %d", cfg.Server.RateLimit)
	}
	if cfg.API.BaseURL != "http://backend.test:8000" {
		t.Errorf("Expected trailing slash trimmed, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout() != 15*time.Second {
		t.Errorf("Expected 15s timeout, got %v", cfg.API.Timeout())
	}
	if cfg.API.Retry.MaxRetries != 3 {
		t.Errorf("Expected max_retries 3, got %d", cfg.API.Retry.MaxRetries)
	}
	if !cfg.Minio.Enabled() {
		t.Error("Expected minio to be enabled")
	}
	if cfg.Minio.Bucket != "maestras" {
		t.Errorf("Expected bucket maestras, got %s", cfg.Minio.Bucket)
	}
	if cfg.Auth.TokenExpireHours != 48 {
		t.Errorf("Expected token_expire_hours 48, got %d", cfg.Auth.TokenExpireHours)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Expected debug/json logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Store.MaxRuns != 50 {
		t.Errorf("Expected max_runs 50, got %d", cfg.Store.MaxRuns)
	}
	if cfg.Watcher.PollInterval() != 5*time.Second {
		t.Errorf("Expected 5s poll interval, got %v", cfg.Watcher.PollInterval())
	}
	if cfg.Schedule.IntervalMinutes != 1440 || cfg.Schedule.Ano != 2025 || cfg.Schedule.Modo != "por_ano" {
		t.Errorf("Unexpected schedule: %+v", cfg.Schedule)
	}
	if len(cfg.Users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(cfg.Users))
	}
	if cfg.Users[0].Role != "admin" {
		t.Errorf("Expected role admin, got %s", cfg.Users[0].Role)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONSOLIDADOR_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "")

	cfg, err := Load(writeTempConfig(t, "auth:\n  jwt_secret: \"s\"\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.API.BaseURL != DefaultAPIURL {
		t.Errorf("Expected default base URL %s, got %s", DefaultAPIURL, cfg.API.BaseURL)
	}
	if cfg.Minio.Enabled() {
		t.Error("Expected minio to be disabled without endpoint")
	}
	if cfg.Auth.TokenExpireHours != 24 {
		t.Errorf("Expected default token_expire_hours 24, got %d", cfg.Auth.TokenExpireHours)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Expected default log format text, got %s", cfg.Log.Format)
	}
	if cfg.Store.MaxRuns != 200 {
		t.Errorf("Expected default max_runs 200, got %d", cfg.Store.MaxRuns)
	}
	if cfg.Schedule.IntervalMinutes != 0 {
		t.Errorf("Expected schedule disabled by default, got %d", cfg.Schedule.IntervalMinutes)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		primary  string
		fallback string
		expected string
	}{
		{"primary env wins over file", "api:\n  base_url: http://file\n", "http://env", "", "http://env"},
		{"fallback env used when file empty", "", "", "http://next", "http://next"},
		{"file wins over fallback env", "api:\n  base_url: http://file\n", "", "http://next", "http://file"},
		{"literal fallback", "", "", "", DefaultAPIURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONSOLIDADOR_API_URL", tt.primary)
			t.Setenv("NEXT_PUBLIC_API_URL", tt.fallback)

			cfg, err := Load(writeTempConfig(t, tt.file))
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}
			if cfg.API.BaseURL != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, cfg.API.BaseURL)
			}
		})
	}
}

func TestLoadNonExistent(t *testing.T) {
	t.Setenv("CONSOLIDADOR_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected missing file to fall back to defaults, got %v", err)
	}
	if cfg.API.BaseURL != DefaultAPIURL {
		t.Errorf("Expected default base URL, got %s", cfg.API.BaseURL)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeTempConfig(t, "invalid: yaml: content:"))
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestFindUser(t *testing.T) {
	cfg := &Config{
		Users: []User{
			{Username: "user1", Password: "pass1", Role: "admin"},
			{Username: "user2", Password: "pass2", Role: "analista"},
		},
	}

	user := cfg.FindUser("user1")
	if user == nil {
		t.Fatal("Expected to find user1")
	}
	if user.Password != "pass1" {
		t.Errorf("Expected password pass1, got %s", user.Password)
	}

	if cfg.FindUser("nonexistent") != nil {
		t.Error("Expected nil for non-existent user")
	}
}
