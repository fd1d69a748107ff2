// Package cli implements the wapm command-line interface.
package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/wasmerio/wapm-cli-sub000/pkg/buildinfo"
	"github.com/wasmerio/wapm-cli-sub000/pkg/cache"
	"github.com/wasmerio/wapm-cli-sub000/pkg/config"
	"github.com/wasmerio/wapm-cli-sub000/pkg/dataflow"
	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/install"
	"github.com/wasmerio/wapm-cli-sub000/pkg/registry"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "wapm"

	// redisKeyPrefix namespaces registry responses in a shared Redis.
	redisKeyPrefix = "wapm:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Persistent flags.
	configFile  string
	registryURL string
	dir         string
	noCache     bool
	refresh     bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		dir:    ".",
	}
}

// SetLogLevel updates the logger's level. At debug level pipeline stages,
// cache lookups and registry requests are traced as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		registerLogHooks(c.Logger)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "wapm manages WebAssembly package dependencies",
		Long:         `wapm installs WebAssembly packages from the registry into a project, keeping wapm.toml and wapm.lock in sync.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(withLogger(ctx, c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default $WASMER_DIR/wapm.toml)")
	pf.StringVar(&c.registryURL, "registry", "", "registry GraphQL endpoint")
	pf.StringVarP(&c.dir, "dir", "C", ".", "project directory")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the registry response cache")
	pf.BoolVar(&c.refresh, "refresh", false, "ignore cached registry responses")

	root.AddCommand(c.installCommand())
	root.AddCommand(c.uninstallCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Pipeline Factory
// =============================================================================

// loadConfig reads configuration and applies flag overrides.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: c.configFile})
	if err != nil {
		return nil, err
	}
	if c.registryURL != "" {
		cfg.Registry.URL = c.registryURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.File != "" {
		c.Logger.Debug("loaded config", "file", cfg.File)
	}
	return cfg, nil
}

// projectDir returns the absolute project directory.
func (c *CLI) projectDir() (string, error) {
	dir, err := filepath.Abs(c.dir)
	if err != nil {
		return "", wapmerrors.Wrap(wapmerrors.ErrCodeInvalidPath, err, "project directory %q", c.dir)
	}
	return dir, nil
}

// newPipeline wires the registry resolver and the archive installer into a
// pipeline for the project directory. The returned close function releases
// the cache.
func (c *CLI) newPipeline(ctx context.Context, cfg *config.Config) (*dataflow.Pipeline, func(), error) {
	dir, err := c.projectDir()
	if err != nil {
		return nil, nil, err
	}
	store, err := newCache(ctx, cfg, c.noCache, c.Logger)
	if err != nil {
		return nil, nil, err
	}

	client := registry.NewClient(cfg.Registry.URL, store, cfg.Cache.TTL, cfg.Registry.Token)
	resolver := registry.NewResolver(client, c.Logger)
	resolver.Refresh = c.refresh

	inst := install.New(c.Logger)
	inst.DownloadTimeout = cfg.Install.DownloadTimeout
	inst.MaxArchiveBytes = cfg.Install.MaxArchiveBytes

	p := dataflow.New(dir, resolver, inst, c.Logger)
	p.Concurrency = cfg.Install.Concurrency
	return p, func() { _ = store.Close() }, nil
}

// newCache selects the registry response cache: none with --no-cache,
// Redis when cache.redis_url is set, the file cache otherwise. An unusable
// cache directory degrades to no caching.
func newCache(ctx context.Context, cfg *config.Config, noCache bool, logger *log.Logger) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, redisKeyPrefix)
		if err != nil {
			return nil, wapmerrors.Wrap(wapmerrors.ErrCodeNetwork, err, "open redis cache")
		}
		return rc, nil
	}
	if cfg.Cache.Dir == "" {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(cfg.Cache.Dir)
	if err != nil {
		logger.Warn("cache disabled", "dir", cfg.Cache.Dir, "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}
