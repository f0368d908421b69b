package config

import (
	"fmt"
	"time"
)

// BranchPruneConfig holds configuration for pruning workspace branches
// whose worktree is gone
type BranchPruneConfig struct {
	// MinAgeHours is how old an orphaned branch's last commit must be before deletion
	// Default: 168 (one week), Range: 0-8760
	// 0 = prune regardless of age
	MinAgeHours int

	// Patterns select which local branches count as workspace branches
	// Default: issue-*, feat/issue-*
	Patterns []string
}

// DefaultBranchPruneConfig returns the default branch prune configuration
func DefaultBranchPruneConfig() BranchPruneConfig {
	return BranchPruneConfig{
		MinAgeHours: 168,
		Patterns:    []string{"issue-*", "feat/issue-*"},
	}
}

// Validate checks if the configuration has valid values
func (c BranchPruneConfig) Validate() error {
	if c.MinAgeHours < 0 || c.MinAgeHours > 8760 {
		return fmt.Errorf("min_age_hours must be between 0 and 8760 (got %d)", c.MinAgeHours)
	}
	if len(c.Patterns) == 0 {
		return fmt.Errorf("at least one branch pattern is required")
	}
	return nil
}

// MinAge returns the age threshold as a time.Duration
func (c BranchPruneConfig) MinAge() time.Duration {
	return time.Duration(c.MinAgeHours) * time.Hour
}

// BranchPruneConfigFromEnv creates a BranchPruneConfig from environment variables,
// falling back to defaults
//
// Environment variables:
//   - LOOM_PRUNE_MIN_AGE_HOURS: Minimum age of a branch before deletion (default: 168)
//   - LOOM_PRUNE_PATTERNS: Comma-separated branch glob patterns
//
// Returns an error if any environment variable has an invalid value.
func BranchPruneConfigFromEnv() (BranchPruneConfig, error) {
	cfg := DefaultBranchPruneConfig()

	if err := parseEnvInt("LOOM_PRUNE_MIN_AGE_HOURS", &cfg.MinAgeHours); err != nil {
		return cfg, err
	}
	if err := parseEnvList("LOOM_PRUNE_PATTERNS", &cfg.Patterns); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid branch prune configuration from environment: %w", err)
	}

	return cfg, nil
}
