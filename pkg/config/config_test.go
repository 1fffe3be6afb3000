package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://e621.net", cfg.E621.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.MinInterval)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 3, cfg.Network.Concurrency)
	assert.Equal(t, NamingID, cfg.Output.NamingConvention)
	assert.NoError(t, cfg.Validate())
}

func TestEffectiveBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://e621.net", cfg.EffectiveBaseURL())

	cfg.E621.SafeMode = true
	assert.Equal(t, "https://e926.net", cfg.EffectiveBaseURL())

	cfg.E621.BaseURL = "http://127.0.0.1:8080/"
	assert.Equal(t, "http://127.0.0.1:8080", cfg.EffectiveBaseURL())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("E621DL_USERNAME", "someone")
	t.Setenv("E621DL_API_KEY", "key123")
	t.Setenv("E621DL_OUTPUT_DIR", "/tmp/e621")
	t.Setenv("E621DL_CONCURRENT_DOWNLOADS", "5")
	t.Setenv("E621DL_MIN_INTERVAL", "750ms")
	t.Setenv("E621DL_SAFE_MODE", "true")
	t.Setenv("E621DL_NAMING", "MD5")
	t.Setenv("E621DL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "someone", cfg.E621.Username)
	assert.Equal(t, "key123", cfg.E621.APIKey)
	assert.Equal(t, "/tmp/e621", cfg.Output.BaseDirectory)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 750*time.Millisecond, cfg.RateLimit.MinInterval)
	assert.True(t, cfg.E621.SafeMode)
	assert.Equal(t, NamingMD5, cfg.Output.NamingConvention)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("E621DL_CONCURRENT_DOWNLOADS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONCURRENT_DOWNLOADS")
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
e621:
  username: fileuser
  api_key: filekey
  download_favorites: true
  blacklist: |
    gore
    rating:e -solo
rate_limit:
  min_interval: 1s
download:
  concurrent_downloads: 6
  retry_attempts: 5
output:
  base_directory: /data/e621
  naming_convention: md5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "fileuser", cfg.E621.Username)
	assert.True(t, cfg.E621.DownloadFavorites)
	assert.Equal(t, "gore\nrating:e -solo\n", cfg.E621.Blacklist)
	assert.Equal(t, time.Second, cfg.RateLimit.MinInterval)
	assert.Equal(t, 6, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 5, cfg.Download.RetryAttempts)
	assert.Equal(t, "/data/e621", cfg.Output.BaseDirectory)
	assert.Equal(t, NamingMD5, cfg.Output.NamingConvention)
	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Network.Concurrency)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("e621: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"username without key", func(c *Config) { c.E621.Username = "u" }, "provided together"},
		{"bad base url", func(c *Config) { c.E621.BaseURL = "e621.net" }, "http://"},
		{"zero downloads", func(c *Config) { c.Download.ConcurrentDownloads = 0 }, "concurrent downloads must be positive"},
		{"too many downloads", func(c *Config) { c.Download.ConcurrentDownloads = 64 }, "should not exceed"},
		{"bad naming", func(c *Config) { c.Output.NamingConvention = "sha1" }, "invalid naming convention"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"no retries", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry max attempts"},
		{"negative interval", func(c *Config) { c.RateLimit.MinInterval = -time.Second }, "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":              "/flags",
		"concurrent":          8,
		"network-concurrency": 2,
		"safe":                true,
		"naming":              "MD5",
		"max-retries":         4,
		"tags":                "my-tags.txt",
	})

	assert.Equal(t, "/flags", cfg.Output.BaseDirectory)
	assert.Equal(t, 8, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 2, cfg.Network.Concurrency)
	assert.True(t, cfg.E621.SafeMode)
	assert.Equal(t, NamingMD5, cfg.Output.NamingConvention)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 4, cfg.Download.RetryAttempts)
	assert.Equal(t, "my-tags.txt", cfg.Output.TagFile)
}

func TestSaveAndMasked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.E621.Username = "saver"
	cfg.E621.APIKey = "secret"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "saver", loaded.E621.Username)

	masked := cfg.Masked()
	assert.Equal(t, "********", masked.E621.APIKey)
	assert.Equal(t, "secret", cfg.E621.APIKey)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  base_directory: /from-file\ndownload:\n  concurrent_downloads: 4\n"), 0644))
	t.Setenv("E621DL_OUTPUT_DIR", "/from-env")

	cfg, err := Load(path, map[string]interface{}{"concurrent": 7})
	require.NoError(t, err)
	assert.Equal(t, "/from-env", cfg.Output.BaseDirectory)
	assert.Equal(t, 7, cfg.Download.ConcurrentDownloads)
}
