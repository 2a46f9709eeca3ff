package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the client's configuration model.
// It captures the backend location, local storage, cache timings and output settings.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type APIConfig struct {
	// Backend base URL. If empty, read from env TWEETSCHED_API_URL
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
	// Client-side request throttle
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RealtimeConfig struct {
	// Push channel URL. Derived from api.baseURL when empty.
	URL string `yaml:"url"`
}

type StorageConfig struct {
	Driver   string `yaml:"driver"` // "sqlite", "redis" or "memory"
	DBPath   string `yaml:"dbPath"`
	RedisURL string `yaml:"redisURL"`
	Prefix   string `yaml:"prefix"`
}

type CacheConfig struct {
	// Zero keeps entries fresh until invalidated
	StaleTime        time.Duration `yaml:"staleTime"`
	AnalyticsRefresh time.Duration `yaml:"analyticsRefresh"`
}

type ScheduleConfig struct {
	// Quiet hours (local) skipped when picking the next posting window
	QuietHours []int `yaml:"quietHours"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		API:      APIConfig{BaseURL: "http://localhost:5000", Timeout: 15 * time.Second, RPS: 5, Burst: 10},
		Storage:  StorageConfig{Driver: "sqlite", DBPath: "./tweetsched.db", Prefix: "tweetsched:"},
		Cache:    CacheConfig{AnalyticsRefresh: 30 * time.Second},
		Schedule: ScheduleConfig{QuietHours: []int{0, 1, 2, 3, 4, 5}},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// RealtimeURL returns the push channel endpoint, deriving ws(s)://host/ws from the API base.
func (c Config) RealtimeURL() string {
	if c.Realtime.URL != "" {
		return c.Realtime.URL
	}
	base := strings.TrimRight(c.API.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

// ResolveEnv fills in config fields from environment variables.
// Variables win over file values so a single run can be pointed elsewhere.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("TWEETSCHED_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TWEETSCHED_WS_URL"); v != "" {
		c.Realtime.URL = v
	}
	if v := os.Getenv("TWEETSCHED_STORAGE"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("TWEETSCHED_REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" && c.Metrics.Addr == "" {
		c.Metrics.Addr = v
	}
}

// LoadDotenv loads KEY=VALUE pairs from the given files into the process env.
// Missing files are ignored and existing variables are never overwritten.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads YAML config from path on top of Default.
// A missing file yields the defaults so first runs work without init.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
