// Package config holds the process-wide defaults for one podium invocation:
// where sessions live, which completion backend to use, and the default
// connection parameters applied when a session stores none.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okhalid/podium/internal/completion"
)

// Backend selection for the completion primitive.
const (
	BackendCLI = "cli"
	BackendAPI = "api"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "PODIUM_CONFIG"

// EnvSessionsRoot overrides the sessions root directory.
const EnvSessionsRoot = "PODIUM_SESSIONS_ROOT"

// Config is the complete process configuration.
type Config struct {
	// SessionsRoot is the directory holding one subdirectory per session.
	SessionsRoot string `yaml:"sessionsRoot"`

	// LockTimeoutSeconds bounds how long a request waits for a session lock.
	LockTimeoutSeconds int `yaml:"lockTimeoutSeconds"`

	// ExecTimeoutSeconds is the default completion timeout when a call
	// does not supply its own.
	ExecTimeoutSeconds int `yaml:"execTimeoutSeconds"`

	// DefaultConnection supplies connection parameters for sessions that
	// stored none at creation.
	DefaultConnection map[string]string `yaml:"defaultConnection,omitempty"`

	// Backend selects the completion backend ("cli" or "api").
	Backend string `yaml:"backend"`

	CLI completion.CLIConfig `yaml:"cli,omitempty"`
	API completion.APIConfig `yaml:"api,omitempty"`

	// Vault enables vault(path#key) secret references in connection
	// parameters. Leaving the address empty disables the resolver.
	Vault VaultConfig `yaml:"vault,omitempty"`

	// ProbeURL is the backend reachability endpoint checked by
	// get_system_status. Empty downgrades the probe to "unknown".
	ProbeURL string `yaml:"probeURL,omitempty"`
}

// VaultConfig locates a Vault-compatible KV v2 store.
type VaultConfig struct {
	Address string `yaml:"address"`
	// Token may be a literal or an env(VAR_NAME) reference.
	Token     string `yaml:"token,omitempty"`
	MountPath string `yaml:"mountPath,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	root := os.Getenv(EnvSessionsRoot)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		root = filepath.Join(home, ".podium", "sessions")
	}
	return &Config{
		SessionsRoot:       root,
		LockTimeoutSeconds: 30,
		ExecTimeoutSeconds: 120,
		Backend:            BackendCLI,
		CLI:                completion.CLIConfig{Binary: "llm"},
		API:                completion.APIConfig{Model: "claude-sonnet-4-5", MaxTokens: 1024},
	}
}

// Load reads a YAML config file over the defaults. An empty path falls back
// to $PODIUM_CONFIG, and a missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot serve requests.
func (c *Config) Validate() error {
	if c.SessionsRoot == "" {
		return fmt.Errorf("sessionsRoot must not be empty")
	}
	if c.LockTimeoutSeconds <= 0 {
		return fmt.Errorf("lockTimeoutSeconds must be positive, got %d", c.LockTimeoutSeconds)
	}
	if c.ExecTimeoutSeconds <= 0 {
		return fmt.Errorf("execTimeoutSeconds must be positive, got %d", c.ExecTimeoutSeconds)
	}
	switch c.Backend {
	case BackendCLI, BackendAPI:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendCLI, BackendAPI, c.Backend)
	}
	if c.Backend == BackendCLI && c.CLI.Binary == "" {
		return fmt.Errorf("cli.binary must not be empty")
	}
	return nil
}

// LockTimeout returns the lock timeout as a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// ExecTimeout returns the default completion timeout as a duration.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

// Invoker constructs the configured completion backend.
func (c *Config) Invoker() completion.Invoker {
	if c.Backend == BackendAPI {
		return completion.NewAPIInvoker(c.API)
	}
	return completion.NewCLIInvoker(c.CLI)
}
