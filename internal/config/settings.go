package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsPath is where per-repository settings live, relative to the repo root
const SettingsPath = ".loom/settings.yaml"

// Database providers
const (
	DatabaseNone     = "none"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Settings holds per-repository configuration for creating and tearing
// down workspaces.
type Settings struct {
	// WorktreePrefix overrides the default "<repo>-looms/" prefix
	WorktreePrefix string `yaml:"worktree_prefix"`

	// BaseBranch is the start point for new workspace branches
	// Default: main
	BaseBranch string `yaml:"base_branch"`

	// ProtectedBranches can never be torn down
	// Default: main, master, develop
	ProtectedBranches []string `yaml:"protected_branches"`

	Env      EnvSettings      `yaml:"env"`
	Database DatabaseSettings `yaml:"database"`
	Launch   LaunchSettings   `yaml:"launch"`

	// BinDir receives executable links for cli workspaces
	// Default: ~/.local/bin
	BinDir string `yaml:"bin_dir"`

	Timeouts TimeoutSettings `yaml:"timeouts"`
	AI       AISettings      `yaml:"ai"`
}

// EnvSettings configures the per-workspace environment file
type EnvSettings struct {
	// File is relative to the workspace root. Default: .env
	File string `yaml:"file"`

	// PortVar receives the allocated port. Default: PORT
	PortVar string `yaml:"port_var"`
}

// DatabaseSettings configures database branch provisioning
type DatabaseSettings struct {
	// Provider is one of none, postgres, sqlite. Default: none
	Provider string `yaml:"provider"`

	// Skip disables provisioning without forgetting the provider
	Skip bool `yaml:"skip"`

	// URLVar receives the branch connection string. Default: DATABASE_URL
	URLVar string `yaml:"url_var"`

	// PostgresURL is an admin connection used to create and drop databases
	PostgresURL string `yaml:"postgres_url"`

	// Template is the Postgres database branches are cloned from
	Template string `yaml:"template"`

	// SQLitePath is the source database file, relative to the repo root
	SQLitePath string `yaml:"sqlite_path"`
}

// LaunchSettings configures what runs once a workspace is ready
type LaunchSettings struct {
	// Command is an argv template; {path}, {port} and {branch} are expanded.
	// Empty means nothing is launched.
	Command []string `yaml:"command"`
}

// TimeoutSettings bounds calls to external collaborators
type TimeoutSettings struct {
	Git     time.Duration `yaml:"git"`
	Network time.Duration `yaml:"network"`
	Process time.Duration `yaml:"process"`
}

// AISettings configures issue title and branch slug generation
type AISettings struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() Settings {
	return Settings{
		BaseBranch:        "main",
		ProtectedBranches: []string{"main", "master", "develop"},
		Env: EnvSettings{
			File:    ".env",
			PortVar: "PORT",
		},
		Database: DatabaseSettings{
			Provider: DatabaseNone,
			URLVar:   "DATABASE_URL",
		},
		BinDir: defaultBinDir(),
		Timeouts: TimeoutSettings{
			Git:     30 * time.Second,
			Network: 15 * time.Second,
			Process: 5 * time.Second,
		},
	}
}

func defaultBinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "bin")
}

// Validate checks if the settings have valid values
func (s Settings) Validate() error {
	if strings.TrimSpace(s.BaseBranch) == "" {
		return fmt.Errorf("base_branch cannot be empty")
	}
	if s.Env.File == "" {
		return fmt.Errorf("env.file cannot be empty")
	}
	if filepath.IsAbs(s.Env.File) {
		return fmt.Errorf("env.file must be relative to the workspace (got %s)", s.Env.File)
	}
	if s.Env.PortVar == "" {
		return fmt.Errorf("env.port_var cannot be empty")
	}

	switch s.Database.Provider {
	case DatabaseNone, "":
	case DatabasePostgres:
		if s.Database.PostgresURL == "" {
			return fmt.Errorf("database.postgres_url is required for the postgres provider")
		}
	case DatabaseSQLite:
		if s.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite provider")
		}
	default:
		return fmt.Errorf("database.provider must be one of none, postgres, sqlite (got %q)", s.Database.Provider)
	}
	if s.Database.URLVar == "" {
		return fmt.Errorf("database.url_var cannot be empty")
	}

	if s.Timeouts.Git < 0 || s.Timeouts.Network < 0 || s.Timeouts.Process < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

// DatabaseEnabled reports whether a provider should be built
func (s Settings) DatabaseEnabled() bool {
	return !s.Database.Skip && s.Database.Provider != "" && s.Database.Provider != DatabaseNone
}

// IsProtected reports whether branch may never be torn down
func (s Settings) IsProtected(branch string) bool {
	if branch == s.BaseBranch {
		return true
	}
	for _, p := range s.ProtectedBranches {
		if p == branch {
			return true
		}
	}
	return false
}

// Load reads settings for the repository at repoRoot, applies LOOM_*
// environment overrides, and validates the result. A missing settings file
// is not an error.
func Load(repoRoot string) (Settings, error) {
	s := DefaultSettings()

	path := filepath.Join(repoRoot, SettingsPath)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return s, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&s); err != nil {
		return s, err
	}
	if strings.HasPrefix(s.BinDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s.BinDir = filepath.Join(home, s.BinDir[2:])
		}
	}
	if s.Database.SQLitePath != "" && !filepath.IsAbs(s.Database.SQLitePath) {
		s.Database.SQLitePath = filepath.Join(repoRoot, s.Database.SQLitePath)
	}

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// applyEnv overrides settings from environment variables:
//   - LOOM_WORKTREE_PREFIX, LOOM_BASE_BRANCH, LOOM_PROTECTED_BRANCHES (comma-separated)
//   - LOOM_ENV_FILE, LOOM_PORT_VAR
//   - LOOM_DATABASE_PROVIDER, LOOM_SKIP_DATABASE, LOOM_DATABASE_URL_VAR,
//     LOOM_POSTGRES_URL, LOOM_DATABASE_TEMPLATE, LOOM_SQLITE_PATH
//   - LOOM_BIN_DIR
//   - LOOM_GIT_TIMEOUT, LOOM_NETWORK_TIMEOUT, LOOM_PROCESS_TIMEOUT
//   - LOOM_AI_ENABLED, LOOM_AI_MODEL
func applyEnv(s *Settings) error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"LOOM_WORKTREE_PREFIX", &s.WorktreePrefix},
		{"LOOM_BASE_BRANCH", &s.BaseBranch},
		{"LOOM_ENV_FILE", &s.Env.File},
		{"LOOM_PORT_VAR", &s.Env.PortVar},
		{"LOOM_DATABASE_PROVIDER", &s.Database.Provider},
		{"LOOM_DATABASE_URL_VAR", &s.Database.URLVar},
		{"LOOM_POSTGRES_URL", &s.Database.PostgresURL},
		{"LOOM_DATABASE_TEMPLATE", &s.Database.Template},
		{"LOOM_SQLITE_PATH", &s.Database.SQLitePath},
		{"LOOM_BIN_DIR", &s.BinDir},
		{"LOOM_AI_MODEL", &s.AI.Model},
	}
	for _, v := range strs {
		if err := parseEnvString(v.key, v.dest); err != nil {
			return err
		}
	}
	if err := parseEnvList("LOOM_PROTECTED_BRANCHES", &s.ProtectedBranches); err != nil {
		return err
	}
	if err := parseEnvBool("LOOM_SKIP_DATABASE", &s.Database.Skip); err != nil {
		return err
	}
	if err := parseEnvBool("LOOM_AI_ENABLED", &s.AI.Enabled); err != nil {
		return err
	}
	if err := parseEnvDuration("LOOM_GIT_TIMEOUT", &s.Timeouts.Git); err != nil {
		return err
	}
	if err := parseEnvDuration("LOOM_NETWORK_TIMEOUT", &s.Timeouts.Network); err != nil {
		return err
	}
	return parseEnvDuration("LOOM_PROCESS_TIMEOUT", &s.Timeouts.Process)
}
