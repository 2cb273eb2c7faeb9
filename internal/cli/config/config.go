// Package config loads the Conduit toolchain configuration: a
// conduit.yml at the project root, overlaid by environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config represents the Conduit configuration
type Config struct {
	ProjectName string      `mapstructure:"project_name"`
	Build       BuildConfig `mapstructure:"build"`
	Watch       WatchConfig `mapstructure:"watch"`
}

// BuildConfig represents build configuration
type BuildConfig struct {
	Output string `mapstructure:"output"`
	// Target is the codegen target descriptor; empty means the host.
	Target string `mapstructure:"target"`
	// Prelude names the import compiled ahead of every entry source.
	Prelude string `mapstructure:"prelude"`
	// PreludeRoots are searched for non-relative requires.
	PreludeRoots []string `mapstructure:"prelude_roots"`
	// Flags is the base compiler flag set; watch inherits it.
	Flags []string `mapstructure:"flags"`
}

// WatchConfig represents watch-mode configuration
type WatchConfig struct {
	DebounceMS     int      `mapstructure:"debounce_ms"`
	PollIntervalMS int      `mapstructure:"poll_interval_ms"`
	Ignore         []string `mapstructure:"ignore"`
}

// Load loads the configuration from conduit.yml or conduit.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("build.output", "build/app")
	v.SetDefault("build.prelude_roots", []string{"lib"})
	v.SetDefault("watch.debounce_ms", 300)
	v.SetDefault("watch.poll_interval_ms", 1000)

	// Set config name and paths
	v.SetConfigName("conduit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.ProjectName == "" {
		if cwd, err := os.Getwd(); err == nil {
			config.ProjectName = filepath.Base(cwd)
		}
	}

	return &config, nil
}

// CacheDir resolves the incremental cache root for a project: the
// CACHE_DIR environment variable when set, otherwise a per-project
// subdirectory of the user's XDG cache location, with a project-local
// fallback when even that is unavailable.
func CacheDir(projectName string) string {
	if dir := os.Getenv("CACHE_DIR"); dir != "" {
		return dir
	}
	if xdg.CacheHome == "" || projectName == "" {
		return ".conduit-cache"
	}
	return filepath.Join(xdg.CacheHome, "conduit", projectName)
}

// Workers honors WORKERS when it parses as a positive integer; 0 tells
// the parallel parser to pick min(NumCPU, len(paths)) itself.
func Workers() int {
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// GetProjectRoot tries to find the project root by looking for conduit.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		// Check for conduit.yml or conduit.yaml
		if _, err := os.Stat(filepath.Join(dir, "conduit.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "conduit.yaml")); err == nil {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", fmt.Errorf("not in a Conduit project (no conduit.yml found)")
		}
		dir = parent
	}
}
