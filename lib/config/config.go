// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package config provides configuration loading for the ptrace daemon
// and runner.
//
// Configuration is loaded from a single file specified by:
//   - BXL_SANDBOX_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the ptrace sandbox daemon.
type Config struct {
	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Trace configures the tracer and observer.
	Trace TraceConfig `yaml:"trace"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Bin is where the sandbox binaries are installed. This provides
	// hermetic binary paths independent of user PATH. Contains
	// bxl-ptrace-runner and friends.
	Bin string `yaml:"bin"`

	// State is where daemon runtime state is stored.
	State string `yaml:"state"`

	// ControlSocket is the Unix datagram socket the daemon listens on
	// for run and exit requests. Overridden per build by the
	// __BUILDXL_PTRACE_MQ_NAME environment variable.
	ControlSocket string `yaml:"control_socket"`

	// DebugLog is an optional file that receives tracer debug output
	// in addition to the report pipe. Empty disables it.
	DebugLog string `yaml:"debug_log"`
}

// TraceConfig configures the tracer and observer.
type TraceConfig struct {
	// ForcedProcessNames lists executable basenames that are always
	// traced regardless of static-link detection. The
	// __BUILDXL_PTRACE_FORCED_PROCESSES environment variable extends
	// this list per build.
	ForcedProcessNames []string `yaml:"forced_process_names"`

	// JournalDir is where per-trace access journals are written.
	// Empty disables the journal.
	JournalDir string `yaml:"journal_dir"`

	// JournalCompression selects the journal compression: "zstd" or
	// "none". Default: zstd.
	JournalCompression string `yaml:"journal_compression"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback; the
// config file is required when loading by path.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Bin:           "",
			State:         filepath.Join(os.TempDir(), "bxl-ptrace"),
			ControlSocket: "",
			DebugLog:      "",
		},
		Trace: TraceConfig{
			ForcedProcessNames: nil,
			JournalDir:         "",
			JournalCompression: "zstd",
		},
	}
}

// Load loads configuration from the BXL_SANDBOX_CONFIG environment
// variable. If the variable is unset, the defaults are returned; the
// daemon is fully functional without a config file since the control
// socket and report pipe arrive through the per-build environment.
func Load() (*Config, error) {
	configPath := os.Getenv("BXL_SANDBOX_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":   os.Getenv("HOME"),
		"TMPDIR": os.TempDir(),
	}

	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.ControlSocket = expandVars(c.Paths.ControlSocket, vars)
	c.Paths.DebugLog = expandVars(c.Paths.DebugLog, vars)
	c.Trace.JournalDir = expandVars(c.Trace.JournalDir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Trace.JournalCompression {
	case "zstd", "none":
	default:
		errs = append(errs, fmt.Errorf(
			"trace.journal_compression must be \"zstd\" or \"none\", got %q",
			c.Trace.JournalCompression))
	}

	if c.Trace.JournalDir != "" && !filepath.IsAbs(c.Trace.JournalDir) {
		errs = append(errs, fmt.Errorf("trace.journal_dir must be absolute, got %q", c.Trace.JournalDir))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.State,
		c.Trace.JournalDir,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

// BinaryPath returns the full path to a sandbox binary. It looks in
// Paths.Bin first, then falls back to exec.LookPath. This provides
// hermetic binary resolution when Bin is configured.
func (c *Config) BinaryPath(name string) (string, error) {
	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
