// Package config holds the YAML configuration for embedding the managed runtime.
package config

import (
	"os"
	"path/filepath"
	goruntime "runtime"

	monoruntime "github.com/wippyai/mono-runtime"
	"github.com/wippyai/mono-runtime/errors"
	"go.uber.org/zap/zapcore"
)

// Config describes how to locate and start the managed runtime.
type Config struct {
	// Library is the path or soname of the runtime shared library.
	Library string `yaml:"library"`

	// RootDomain is the friendly name of the root domain.
	RootDomain string `yaml:"root_domain"`

	// Version selects a runtime version; empty uses the library default.
	Version string `yaml:"version"`

	// AssemblyDir and ConfigDir override the framework directories.
	AssemblyDir string `yaml:"assembly_dir"`
	ConfigDir   string `yaml:"config_dir"`

	// ConfigFile is the runtime's own XML config; empty loads the default.
	ConfigFile string `yaml:"config_file"`

	// AssemblyPaths are searched, in order, for relative assembly names.
	AssemblyPaths []string `yaml:"assembly_paths"`

	Log LogConfig `yaml:"log"`
}

// LogConfig controls the zap logger built by commands.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultRootDomain is the root domain name used when none is configured.
const DefaultRootDomain = "mono"

// DefaultLibrary returns the conventional runtime library name for the
// current platform.
func DefaultLibrary() string {
	switch goruntime.GOOS {
	case "darwin":
		return "libmonosgen-2.0.dylib"
	case "windows":
		return "mono-2.0-sgen.dll"
	default:
		return "libmonosgen-2.0.so"
	}
}

// Default returns a configuration with every required field populated.
func Default() *Config {
	return &Config{
		Library:    DefaultLibrary(),
		RootDomain: DefaultRootDomain,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for values that would fail at init.
func (c *Config) Validate() error {
	if c.Library == "" {
		return errors.InvalidInput(errors.PhaseConfig, "library must not be empty")
	}
	if c.RootDomain == "" {
		return errors.InvalidInput(errors.PhaseConfig, "root_domain must not be empty")
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	for _, p := range c.AssemblyPaths {
		if p == "" {
			return errors.InvalidInput(errors.PhaseConfig, "assembly_paths contains an empty entry")
		}
	}
	return nil
}

// ZapLevel parses the configured level, defaulting to info.
func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(l.Level)
}

// InitOptions converts the configuration into runtime init options.
func (c *Config) InitOptions() monoruntime.InitOptions {
	return monoruntime.InitOptions{
		RootDomain:  c.RootDomain,
		Version:     c.Version,
		AssemblyDir: c.AssemblyDir,
		ConfigDir:   c.ConfigDir,
		ConfigFile:  c.ConfigFile,
	}
}

// ResolveAssembly returns the first existing file named name under the
// assembly search paths. Absolute names, and names found nowhere, are
// returned unchanged so the runtime reports the path the caller asked for.
func (c *Config) ResolveAssembly(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	for _, dir := range c.AssemblyPaths {
		candidate := filepath.Join(dir, name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return name
}
