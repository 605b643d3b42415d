package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("Unexpected default base URL %s", cfg.HTTP.PublicBaseURL)
	}
	if cfg.Storage.MaxUploadBytes != 20<<20 {
		t.Errorf("Expected 20MB upload cap, got %d", cfg.Storage.MaxUploadBytes)
	}
	if cfg.Printer.Command != "lp" {
		t.Errorf("Expected lp printer command, got %s", cfg.Printer.Command)
	}
	if cfg.Session.TTL != 0 {
		t.Errorf("Session expiry should be disabled by default, got %v", cfg.Session.TTL)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"empty base URL", func(c *Config) { c.HTTP.PublicBaseURL = "" }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"empty upload dir", func(c *Config) { c.Storage.UploadDir = "" }},
		{"zero upload cap", func(c *Config) { c.Storage.MaxUploadBytes = 0 }},
		{"empty journal path", func(c *Config) { c.Journal.Path = "" }},
		{"empty printer command", func(c *Config) { c.Printer.Command = "" }},
		{"negative ttl", func(c *Config) { c.Session.TTL = -time.Minute }},
		{"ttl without sweep interval", func(c *Config) { c.Session.TTL = time.Hour; c.Session.SweepInterval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate should reject %s", tc.name)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SNAPBOOTH_HTTP_PORT", "9090")
	t.Setenv("SNAPBOOTH_HTTP_HOST", "127.0.0.1")
	t.Setenv("SNAPBOOTH_PUBLIC_BASE_URL", "https://booth.example.com")
	t.Setenv("SNAPBOOTH_UPLOAD_DIR", "/var/snapbooth/uploads")
	t.Setenv("SNAPBOOTH_PRINTER_COMMAND", "lpr")
	t.Setenv("SNAPBOOTH_SESSION_TTL", "2h")
	t.Setenv("SNAPBOOTH_WEBSOCKET_PING_INTERVAL", "10s")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.HTTP.Host)
	}
	if cfg.HTTP.PublicBaseURL != "https://booth.example.com" {
		t.Errorf("Unexpected base URL %s", cfg.HTTP.PublicBaseURL)
	}
	if cfg.Storage.UploadDir != "/var/snapbooth/uploads" {
		t.Errorf("Unexpected upload dir %s", cfg.Storage.UploadDir)
	}
	if cfg.Printer.Command != "lpr" {
		t.Errorf("Unexpected printer command %s", cfg.Printer.Command)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("Expected 2h ttl, got %v", cfg.Session.TTL)
	}
	if cfg.WebSocket.PingInterval != 10*time.Second {
		t.Errorf("Expected 10s ping interval, got %v", cfg.WebSocket.PingInterval)
	}
}

func TestLoadFromEnv_IgnoresUnparseable(t *testing.T) {
	t.Setenv("SNAPBOOTH_HTTP_PORT", "not-a-number")
	t.Setenv("SNAPBOOTH_SESSION_TTL", "forever")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Unparseable port should keep default, got %d", cfg.HTTP.Port)
	}
	if cfg.Session.TTL != 0 {
		t.Errorf("Unparseable ttl should keep default, got %v", cfg.Session.TTL)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
http:
  port: 9443
  public_base_url: "https://kiosk.example.com"
storage:
  upload_dir: "/srv/uploads"
printer:
  command: "lpr"
  args: ["-P", "booth-printer"]
session:
  ttl: 1h
  sweep_interval: 5m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.HTTP.Port != 9443 {
		t.Errorf("Expected port 9443, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.PublicBaseURL != "https://kiosk.example.com" {
		t.Errorf("Unexpected base URL %s", cfg.HTTP.PublicBaseURL)
	}
	if len(cfg.Printer.Args) != 2 || cfg.Printer.Args[1] != "booth-printer" {
		t.Errorf("Printer args not loaded: %v", cfg.Printer.Args)
	}
	if cfg.Session.TTL != time.Hour || cfg.Session.SweepInterval != 5*time.Minute {
		t.Errorf("Session settings not loaded: ttl=%v sweep=%v", cfg.Session.TTL, cfg.Session.SweepInterval)
	}

	// Unspecified fields keep defaults.
	if cfg.HTTP.Host != "0.0.0.0" {
		t.Errorf("Unset host should keep default, got %s", cfg.HTTP.Host)
	}
	if cfg.Journal.Path != "./data/snapbooth.db" {
		t.Errorf("Unset journal path should keep default, got %s", cfg.Journal.Path)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile("/no/such/file.yaml"); err == nil {
		t.Error("Missing file should error")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("http: [not a map"), 0o644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Malformed YAML should error")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	os.WriteFile(invalid, []byte("http:\n  port: -1\n"), 0o644)
	if _, err := LoadFromFile(invalid); err == nil {
		t.Error("Invalid settings should fail validation")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("SNAPBOOTH_HTTP_PORT", "9001")

	// Without a file, the env layer wins over defaults.
	cfg := LoadConfigWithPrecedence("")
	if cfg.HTTP.Port != 9001 {
		t.Errorf("Env override expected, got port %d", cfg.HTTP.Port)
	}

	// With a file, its values win over the environment.
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("http:\n  port: 9002\n"), 0o644)
	cfg = LoadConfigWithPrecedence(path)
	if cfg.HTTP.Port != 9002 {
		t.Errorf("File override expected, got port %d", cfg.HTTP.Port)
	}

	// An unreadable file falls back to the env layer.
	cfg = LoadConfigWithPrecedence("/no/such/file.yaml")
	if cfg.HTTP.Port != 9001 {
		t.Errorf("Missing file should fall back to env, got port %d", cfg.HTTP.Port)
	}
}
