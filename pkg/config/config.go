package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the monitor
type Config struct {
	// Scan cadence and concurrency
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Persistence
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Platform scraping
	Scraper ScraperConfig `yaml:"scraper" json:"scraper"`

	// Report delivery
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MonitorConfig controls the scheduler and the orchestrator
type MonitorConfig struct {
	ScanInterval  time.Duration `yaml:"scan_interval" json:"scan_interval"`
	ScrapeTimeout time.Duration `yaml:"scrape_timeout" json:"scrape_timeout"`
	Workers       int           `yaml:"workers" json:"workers"`
	InitialDelay  time.Duration `yaml:"initial_delay" json:"initial_delay"`
}

// DatabaseConfig holds the sqlite location
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ScraperConfig holds settings shared by all platform scrapers
type ScraperConfig struct {
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	CookiesDir        string        `yaml:"cookies_dir" json:"cookies_dir"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	FetchLists        bool          `yaml:"fetch_lists" json:"fetch_lists"`
	MaxListSize       int           `yaml:"max_list_size" json:"max_list_size"`
}

// NotificationConfig selects how reports reach target owners
type NotificationConfig struct {
	Type         string `yaml:"type" json:"type"`
	DiscordToken string `yaml:"discord_token" json:"-"`
}

// MetricsConfig holds the metrics listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const envPrefix = "FOLLOWWATCH_"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			ScanInterval:  6 * time.Hour,
			ScrapeTimeout: 2 * time.Minute,
			Workers:       4,
			InitialDelay:  10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/followwatch.db",
		},
		Scraper: ScraperConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			CookiesDir:        "./data/cookies",
			RequestsPerMinute: 20,
			BurstSize:         3,
			MaxRetries:        2,
			RetryDelay:        2 * time.Second,
			FetchLists:        false,
			MaxListSize:       5000,
		},
		Notifications: NotificationConfig{
			Type: "log",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from FOLLOWWATCH_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	durations := map[string]*time.Duration{
		"SCAN_INTERVAL":  &c.Monitor.ScanInterval,
		"SCRAPE_TIMEOUT": &c.Monitor.ScrapeTimeout,
		"INITIAL_DELAY":  &c.Monitor.InitialDelay,
	}
	for key, dst := range durations {
		if v := os.Getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				continue
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"WORKERS":             &c.Monitor.Workers,
		"REQUESTS_PER_MINUTE": &c.Scraper.RequestsPerMinute,
		"MAX_RETRIES":         &c.Scraper.MaxRetries,
	}
	for key, dst := range ints {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				continue
			}
			*dst = n
		}
	}

	if v := os.Getenv(envPrefix + "DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Scraper.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "COOKIES_DIR"); v != "" {
		c.Scraper.CookiesDir = v
	}
	if v := os.Getenv(envPrefix + "FETCH_LISTS"); v != "" {
		c.Scraper.FetchLists = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(envPrefix + "NOTIFIER"); v != "" {
		c.Notifications.Type = v
	}
	if v := os.Getenv(envPrefix + "DISCORD_TOKEN"); v != "" {
		c.Notifications.DiscordToken = v
	}
	if v := os.Getenv(envPrefix + "METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".followwatch.yaml",
		".followwatch.yml",
		filepath.Join(home, ".config", "followwatch", "config.yaml"),
		filepath.Join(home, ".config", "followwatch", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Monitor.ScanInterval < time.Second {
		errs = append(errs, errors.New("scan interval must be at least 1s"))
	}
	if c.Monitor.ScrapeTimeout <= 0 {
		errs = append(errs, errors.New("scrape timeout must be positive"))
	}
	if c.Monitor.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Monitor.InitialDelay < 0 {
		errs = append(errs, errors.New("initial delay cannot be negative"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	if c.Scraper.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Scraper.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Scraper.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Scraper.CookiesDir == "" {
		errs = append(errs, errors.New("cookies directory is required"))
	}

	switch strings.ToLower(c.Notifications.Type) {
	case "log", "desktop", "none":
	case "discord":
		if c.Notifications.DiscordToken == "" {
			errs = append(errs, errors.New("discord notifier requires a token"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid notification type: %q", c.Notifications.Type))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["db"].(string); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := flags["interval"].(time.Duration); ok && v > 0 {
		c.Monitor.ScanInterval = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Monitor.Workers = v
	}
	if v, ok := flags["notifier"].(string); ok && v != "" {
		c.Notifications.Type = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".followwatch.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
