package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/mono-runtime/errors"
)

// Environment variables that override file configuration.
const (
	EnvLibrary        = "MONO_RUNTIME_LIBRARY"
	EnvRootDomain     = "MONO_RUNTIME_ROOT_DOMAIN"
	EnvAssemblyPath   = "MONO_RUNTIME_ASSEMBLY_PATH"
	EnvLogLevel       = "MONO_RUNTIME_LOG_LEVEL"
	EnvLogDevelopment = "MONO_RUNTIME_LOG_DEVELOPMENT"
)

func applyEnvOverrides(cfg *Config) error {
	if lib := os.Getenv(EnvLibrary); lib != "" {
		cfg.Library = lib
	}
	if name := os.Getenv(EnvRootDomain); name != "" {
		cfg.RootDomain = name
	}
	// List separator follows PATH conventions
	if paths := os.Getenv(EnvAssemblyPath); paths != "" {
		cfg.AssemblyPaths = nil
		for _, p := range filepath.SplitList(paths) {
			if p = strings.TrimSpace(p); p != "" {
				cfg.AssemblyPaths = append(cfg.AssemblyPaths, p)
			}
		}
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if dev := os.Getenv(EnvLogDevelopment); dev != "" {
		d, err := parseBool(dev)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid "+EnvLogDevelopment)
		}
		cfg.Log.Development = d
	}
	return nil
}

// parseBool accepts "true", "1", "yes", "on" and their negatives.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", value)
	}
}
