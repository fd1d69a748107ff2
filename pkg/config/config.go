// Package config loads wapm settings.
//
// Values are layered: built-in defaults, then the global config file
// ($WASMER_DIR/wapm.toml, falling back to ~/.wasmer/wapm.toml), then
// WAPM_* environment variables. Command-line flags are applied by the
// caller on top of the returned Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/registry"
)

const (
	// AppName names the cache directory.
	AppName = "wapm"
	// FileName is the global config file inside the wasmer directory.
	FileName = "wapm.toml"
	// EnvPrefix prefixes every environment override, e.g. WAPM_REGISTRY_URL.
	EnvPrefix = "WAPM"

	DefaultCacheTTL        = 5 * time.Minute
	DefaultConcurrency     = 8
	DefaultDownloadTimeout = 2 * time.Minute
	DefaultMaxArchiveBytes = int64(512 << 20)
)

// Config is the resolved configuration.
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Install  InstallConfig  `mapstructure:"install"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type RegistryConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type CacheConfig struct {
	Dir      string        `mapstructure:"dir"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
}

type InstallConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	MaxArchiveBytes int64         `mapstructure:"max_archive_bytes"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile, when set, is read instead of the default location and
	// must exist.
	ConfigFile string
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	v.SetDefault("registry.url", registry.DefaultURL)
	v.SetDefault("registry.token", "")
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("install.concurrency", DefaultConcurrency)
	v.SetDefault("install.download_timeout", DefaultDownloadTimeout)
	v.SetDefault("install.max_archive_bytes", DefaultMaxArchiveBytes)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFile
	if path != "" {
		if !fileExists(path) {
			return nil, wapmerrors.New(wapmerrors.ErrCodeFileNotFound, "config file not found: %s", path)
		}
	} else if p, err := DefaultPath(); err == nil && fileExists(p) {
		path = p
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, wapmerrors.Wrap(wapmerrors.ErrCodeInvalidInput, err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, wapmerrors.Wrap(wapmerrors.ErrCodeInvalidInput, err, "parse config")
	}
	cfg.File = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := wapmerrors.ValidateURL(c.Registry.URL); err != nil {
		return wapmerrors.Wrap(wapmerrors.ErrCodeInvalidInput, err, "registry.url")
	}
	if c.Install.Concurrency < 1 {
		return wapmerrors.New(wapmerrors.ErrCodeInvalidInput, "install.concurrency must be at least 1, got %d", c.Install.Concurrency)
	}
	if c.Install.DownloadTimeout <= 0 {
		return wapmerrors.New(wapmerrors.ErrCodeInvalidInput, "install.download_timeout must be positive")
	}
	if c.Install.MaxArchiveBytes <= 0 {
		return wapmerrors.New(wapmerrors.ErrCodeInvalidInput, "install.max_archive_bytes must be positive")
	}
	if c.Cache.TTL < 0 {
		return wapmerrors.New(wapmerrors.ErrCodeInvalidInput, "cache.ttl cannot be negative")
	}
	return nil
}

// WasmerDir returns $WASMER_DIR, or ~/.wasmer when unset.
func WasmerDir() (string, error) {
	if dir := os.Getenv("WASMER_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".wasmer"), nil
}

// DefaultPath returns the global config file location.
func DefaultPath() (string, error) {
	dir, err := WasmerDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// defaultCacheDir follows XDG (~/.cache/wapm). It is empty when no home
// directory is known, which disables the file cache.
func defaultCacheDir() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", AppName)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
