// Package config loads pmux settings from a TOML file and the environment.
//
// Precedence, lowest to highest: built-in defaults, the config file,
// PMUX_* environment variables, and finally CLI flags (applied by the
// caller). A missing config file is not an error.
//
// Example config.toml:
//
//	registry = "https://registry.npmmirror.com"
//	runtime  = "node"
//	short    = true
//
//	[detect]
//	no_parents = false
//	ignore_invocation_path = true
//
//	[metadata_cache]
//	backend   = "redis"
//	ttl       = "6h"
//	redis_url = "redis://localhost:6379/0"
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"

	"github.com/matzehuels/pmux/pkg/cache"
	"github.com/matzehuels/pmux/pkg/detect"
	"github.com/matzehuels/pmux/pkg/distcache"
	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/integrations/npm"
	"github.com/matzehuels/pmux/pkg/pin"
)

const (
	// FileName is the config file name inside the config directory.
	FileName = "config.toml"

	EnvRegistry      = "PMUX_REGISTRY"
	EnvRuntime       = "PMUX_RUNTIME"
	EnvMetadataCache = "PMUX_METADATA_CACHE"
	EnvRedisURL      = "PMUX_REDIS_URL"
)

// Metadata cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the resolved pmux configuration.
type Config struct {
	Registry      string        `toml:"registry"`
	CacheDir      string        `toml:"cache_dir"`
	Runtime       string        `toml:"runtime"`
	Short         bool          `toml:"short"`
	Detect        Detect        `toml:"detect"`
	MetadataCache MetadataCache `toml:"metadata_cache"`
}

// Detect toggles detection layers.
type Detect struct {
	NoParents            bool `toml:"no_parents"`
	IgnorePackageJSON    bool `toml:"ignore_package_json"`
	IgnoreLockFile       bool `toml:"ignore_lock_file"`
	IgnoreRuntimeSignal  bool `toml:"ignore_runtime_signal"`
	IgnoreInvocationPath bool `toml:"ignore_invocation_path"`
}

// MetadataCache configures the registry metadata cache.
type MetadataCache struct {
	Backend  string   `toml:"backend"`
	TTL      Duration `toml:"ttl"`
	RedisURL string   `toml:"redis_url"`
}

// Duration is a time.Duration written as "6h" or "30m" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry: npm.DefaultRegistry,
		Runtime:  pin.DefaultRuntime,
		MetadataCache: MetadataCache{
			Backend: BackendFile,
			TTL:     Duration{24 * time.Hour},
		},
	}
}

// Dir returns the config directory: $PMUX_HOME, else
// $XDG_CONFIG_HOME/pmux, else ~/.config/pmux.
func Dir() (string, error) {
	if home := os.Getenv(distcache.HomeEnv); home != "" {
		return home, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pmux"), nil
	}
	return homedir.Expand("~/.config/pmux")
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads path (the default location when empty) and applies the
// process environment. Only the default file may be missing.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve config path")
		}
		path = p
	}

	meta, err := toml.DecodeFile(path, cfg)
	switch {
	case os.IsNotExist(err) && !explicit:
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	default:
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvRegistry); v != "" {
		c.Registry = v
	}
	if v := getenv(EnvRuntime); v != "" {
		c.Runtime = v
	}
	if v := getenv(EnvMetadataCache); v != "" {
		c.MetadataCache.Backend = v
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.MetadataCache.RedisURL = v
	}
}

// Validate checks value constraints.
func (c *Config) Validate() error {
	if c.Registry != "" {
		if err := errors.ValidateURL(c.Registry); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "registry")
		}
	}
	switch c.MetadataCache.Backend {
	case "", BackendFile, BackendNone:
	case BackendRedis:
		if c.MetadataCache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "metadata_cache: redis backend requires redis_url")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "metadata_cache: unknown backend %q", c.MetadataCache.Backend)
	}
	if c.MetadataCache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "metadata_cache: negative ttl")
	}
	return nil
}

// DetectOptions converts the [detect] table.
func (c *Config) DetectOptions() detect.Options {
	return detect.Options{
		IncludeParentDirs:    !c.Detect.NoParents,
		IgnorePackageJSON:    c.Detect.IgnorePackageJSON,
		IgnoreLockFile:       c.Detect.IgnoreLockFile,
		IgnoreRuntimeSignal:  c.Detect.IgnoreRuntimeSignal,
		IgnoreInvocationPath: c.Detect.IgnoreInvocationPath,
	}
}

// DistStore opens the distribution cache at cache_dir or the default root.
func (c *Config) DistStore() (*distcache.Store, error) {
	dir := c.CacheDir
	if dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "cache_dir")
		}
		dir = expanded
	}
	return distcache.New(dir)
}

// MetadataCacheDir returns where the file backend stores registry metadata:
// $PMUX_HOME/metadata, else $XDG_CACHE_HOME/pmux, else ~/.cache/pmux.
func MetadataCacheDir() (string, error) {
	if home := os.Getenv(distcache.HomeEnv); home != "" {
		return filepath.Join(home, "metadata"), nil
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "pmux"), nil
	}
	return homedir.Expand("~/.cache/pmux")
}

// OpenMetadataCache returns the configured metadata cache backend.
func (c *Config) OpenMetadataCache(ctx context.Context) (cache.Cache, error) {
	switch c.MetadataCache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, c.MetadataCache.RedisURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "connect metadata cache")
		}
		return cache.Scoped(rc, "pmux"), nil
	default:
		dir, err := MetadataCacheDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	}
}

// NewRegistry returns an npm registry client using the metadata cache.
func (c *Config) NewRegistry(mc cache.Cache) (*npm.Client, error) {
	return npm.NewClient(c.Registry, mc, c.MetadataCache.TTL.Duration)
}
