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

const envPrefix = "E621DL_"

// Naming conventions for downloaded files
const (
	NamingID  = "id"
	NamingMD5 = "md5"
)

// Config holds all configuration options for the downloader
type Config struct {
	E621      E621Config      `yaml:"e621" json:"e621"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Network   NetworkConfig   `yaml:"network" json:"network"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// E621Config holds catalog access settings
type E621Config struct {
	Username          string `yaml:"username" json:"username"`
	APIKey            string `yaml:"api_key" json:"api_key"`
	BaseURL           string `yaml:"base_url" json:"base_url"`
	SafeMode          bool   `yaml:"safe_mode" json:"safe_mode"`
	UserAgent         string `yaml:"user_agent" json:"user_agent"`
	DownloadFavorites bool   `yaml:"download_favorites" json:"download_favorites"`
	// Blacklist is appended to the account blacklist, one rule group per line.
	Blacklist string `yaml:"blacklist" json:"blacklist"`
}

// RateLimitConfig controls request pacing against the API
type RateLimitConfig struct {
	MinInterval       time.Duration `yaml:"min_interval" json:"min_interval"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// NetworkConfig controls the metadata and page fetch pool
type NetworkConfig struct {
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig holds backoff settings for page fetches
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory    string `yaml:"base_directory" json:"base_directory"`
	TagFile          string `yaml:"tag_file" json:"tag_file"`
	NamingConvention string `yaml:"naming_convention" json:"naming_convention"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		E621: E621Config{
			BaseURL:   "https://e621.net",
			UserAgent: "e621dl/1.0 (by e621dl maintainers on e621)",
		},
		RateLimit: RateLimitConfig{
			MinInterval:       500 * time.Millisecond,
			RequestsPerMinute: 60,
		},
		Network: NetworkConfig{
			Concurrency: 3,
			Timeout:     30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Output: OutputConfig{
			BaseDirectory:    "./downloads",
			TagFile:          "tags.txt",
			NamingConvention: NamingID,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     2 * time.Minute,
			RetryAttempts:       3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// EffectiveBaseURL returns the catalog root, switching to the safe mirror when requested.
func (c *Config) EffectiveBaseURL() string {
	if c.E621.SafeMode && (c.E621.BaseURL == "" || c.E621.BaseURL == "https://e621.net") {
		return "https://e926.net"
	}
	return strings.TrimRight(c.E621.BaseURL, "/")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "USERNAME"); v != "" {
		c.E621.Username = v
	}
	if v := os.Getenv(envPrefix + "API_KEY"); v != "" {
		c.E621.APIKey = v
	}
	if v := os.Getenv(envPrefix + "BASE_URL"); v != "" {
		c.E621.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.E621.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "SAFE_MODE"); v != "" {
		c.E621.SafeMode = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv(envPrefix + "DOWNLOAD_FAVORITES"); v != "" {
		c.E621.DownloadFavorites = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv(envPrefix + "TAG_FILE"); v != "" {
		c.Output.TagFile = v
	}
	if v := os.Getenv(envPrefix + "NAMING"); v != "" {
		c.Output.NamingConvention = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENT_DOWNLOADS: %w", envPrefix, err))
		} else if n > 0 {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv(envPrefix + "NETWORK_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sNETWORK_CONCURRENCY: %w", envPrefix, err))
		} else if n > 0 {
			c.Network.Concurrency = n
		}
	}
	if v := os.Getenv(envPrefix + "MIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMIN_INTERVAL: %w", envPrefix, err))
		} else {
			c.RateLimit.MinInterval = d
		}
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if os.Getenv("NO_COLOR") != "" {
		c.Logging.NoColor = true
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
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
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".e621dl.yaml",
		".e621dl.yml",
		"e621dl.yaml",
		filepath.Join(home, ".config", "e621dl", "config.yaml"),
		filepath.Join(home, ".config", "e621dl", "config.yml"),
		filepath.Join(home, ".e621dl.yaml"),
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

	if c.E621.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	} else if !strings.HasPrefix(c.E621.BaseURL, "http://") && !strings.HasPrefix(c.E621.BaseURL, "https://") {
		errs = append(errs, errors.New("base URL must start with http:// or https://"))
	}
	if strings.TrimSpace(c.E621.UserAgent) == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if (c.E621.APIKey == "") != (c.E621.Username == "") {
		errs = append(errs, errors.New("username and API key must be provided together"))
	}

	if c.RateLimit.MinInterval < 0 {
		errs = append(errs, errors.New("minimum request interval cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Network.Concurrency <= 0 {
		errs = append(errs, errors.New("network concurrency must be positive"))
	}
	if c.Network.Timeout <= 0 {
		errs = append(errs, errors.New("network timeout must be positive"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts < 1 {
		errs = append(errs, errors.New("download retry attempts must be at least 1"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.TagFile == "" {
		errs = append(errs, errors.New("tag file path is required"))
	}
	switch c.Output.NamingConvention {
	case NamingID, NamingMD5:
	default:
		errs = append(errs, fmt.Errorf("invalid naming convention %q (want id or md5)", c.Output.NamingConvention))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
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

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Masked returns a copy safe for printing.
func (c *Config) Masked() *Config {
	cp := *c
	if cp.E621.APIKey != "" {
		cp.E621.APIKey = "********"
	}
	return &cp
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["username"].(string); ok && v != "" {
		c.E621.Username = v
	}
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.E621.APIKey = v
	}
	if v, ok := flags["safe"].(bool); ok {
		c.E621.SafeMode = v
	}
	if v, ok := flags["favorites"].(bool); ok {
		c.E621.DownloadFavorites = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["tags"].(string); ok && v != "" {
		c.Output.TagFile = v
	}
	if v, ok := flags["naming"].(string); ok && v != "" {
		c.Output.NamingConvention = strings.ToLower(v)
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["network-concurrency"].(int); ok && v > 0 {
		c.Network.Concurrency = v
	}
	if v, ok := flags["max-retries"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
		c.Download.RetryAttempts = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".e621dl.env"))

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
