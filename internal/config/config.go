package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the system-wide settings coordinator. Precedence is
// file > environment > defaults.
type Config struct {
	HTTP      *HTTPConfig      `yaml:"http"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Storage   *StorageConfig   `yaml:"storage"`
	Journal   *JournalConfig   `yaml:"journal"`
	Printer   *PrinterConfig   `yaml:"printer"`
	Session   *SessionConfig   `yaml:"session"`
}

type HTTPConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	PublicBaseURL string        `yaml:"public_base_url"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

type StorageConfig struct {
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type PrinterConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig controls the expiry sweeper. TTL 0 disables sweeping:
// sessions then live until process exit.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns production-ready defaults: HTTP on 8080, uploads and
// the journal under ./data, prints through lp, expiry disabled.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			PublicBaseURL: "http://localhost:8080",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			BufferSize:   100,
		},
		Storage: &StorageConfig{
			UploadDir:      "./data/uploads",
			MaxUploadBytes: 20 << 20, // 20MB
		},
		Journal: &JournalConfig{
			Path: "./data/snapbooth.db",
		},
		Printer: &PrinterConfig{
			Command: "lp",
			Timeout: 2 * time.Minute,
		},
		Session: &SessionConfig{
			TTL:           0,
			SweepInterval: time.Minute,
		},
	}
}

// Validate catches invalid settings before any component starts.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("http read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http write timeout must be positive")
	}
	if c.HTTP.PublicBaseURL == "" {
		return fmt.Errorf("http public base URL cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("websocket read timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("websocket buffer size must be positive")
	}

	if c.Storage == nil {
		return fmt.Errorf("storage configuration is required")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage upload directory cannot be empty")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage max upload size must be positive")
	}

	if c.Journal == nil {
		return fmt.Errorf("journal configuration is required")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal path cannot be empty")
	}

	if c.Printer == nil {
		return fmt.Errorf("printer configuration is required")
	}
	if c.Printer.Command == "" {
		return fmt.Errorf("printer command cannot be empty")
	}
	if c.Printer.Timeout <= 0 {
		return fmt.Errorf("printer timeout must be positive")
	}

	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session ttl cannot be negative")
	}
	if c.Session.TTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive when ttl is set")
	}

	return nil
}

// LoadFromEnv returns defaults overridden by SNAPBOOTH_* environment
// variables. Unparseable values fall back silently to the default.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("SNAPBOOTH_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("SNAPBOOTH_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if baseURL := os.Getenv("SNAPBOOTH_PUBLIC_BASE_URL"); baseURL != "" {
		config.HTTP.PublicBaseURL = baseURL
	}
	if readTimeout := os.Getenv("SNAPBOOTH_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("SNAPBOOTH_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if uploadDir := os.Getenv("SNAPBOOTH_UPLOAD_DIR"); uploadDir != "" {
		config.Storage.UploadDir = uploadDir
	}
	if maxUpload := os.Getenv("SNAPBOOTH_MAX_UPLOAD_BYTES"); maxUpload != "" {
		if n, err := strconv.ParseInt(maxUpload, 10, 64); err == nil {
			config.Storage.MaxUploadBytes = n
		}
	}
	if journalPath := os.Getenv("SNAPBOOTH_JOURNAL_PATH"); journalPath != "" {
		config.Journal.Path = journalPath
	}
	if printerCommand := os.Getenv("SNAPBOOTH_PRINTER_COMMAND"); printerCommand != "" {
		config.Printer.Command = printerCommand
	}
	if pingInterval := os.Getenv("SNAPBOOTH_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}
	if readTimeout := os.Getenv("SNAPBOOTH_WEBSOCKET_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}
	if bufferSize := os.Getenv("SNAPBOOTH_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}
	if ttl := os.Getenv("SNAPBOOTH_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Session.TTL = d
		}
	}

	return config
}

// LoadFromFile reads a YAML config file over defaults and validates the
// result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > env > defaults.
// A missing or unreadable file falls back to the environment layer.
func LoadConfigWithPrecedence(path string) *Config {
	config := LoadFromEnv()

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}

	return config
}
