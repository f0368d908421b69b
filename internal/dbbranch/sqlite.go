package dbbranch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/loom/internal/types"
)

// SQLiteConfig configures the SQLite provider
type SQLiteConfig struct {
	// Path is the source database file
	Path string

	Logger *slog.Logger
}

// SQLite implements the workspace DatabaseBranchProvider by copying the
// source database next to itself with VACUUM INTO.
type SQLite struct {
	source string
	logger *slog.Logger
}

// NewSQLite creates a SQLite provider
func NewSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}
	source, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cfg.Path, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLite{source: source, logger: logger}, nil
}

// BranchPath returns the file a branch's copy lives in:
// app.db -> app.<branch>.db
func (s *SQLite) BranchPath(branch string) string {
	ext := filepath.Ext(s.source)
	stem := strings.TrimSuffix(s.source, ext)
	return stem + "." + Suffix(branch) + ext
}

// CreateBranchIfConfigured copies the source database for branch and
// returns a file: URL for it. An existing copy is reused.
func (s *SQLite) CreateBranchIfConfigured(ctx context.Context, branch, envFilePath string) (string, error) {
	if Suffix(branch) == "" {
		return "", types.InputError("create database branch", types.ErrInvalidBranchName)
	}
	dest := s.BranchPath(branch)
	url := "file:" + dest

	if _, err := os.Stat(dest); err == nil {
		s.logger.Info("reusing existing branch database", "path", dest)
		return url, nil
	}
	if _, err := os.Stat(s.source); err != nil {
		return "", fmt.Errorf("source database %s: %w", s.source, err)
	}

	db, err := sql.Open("sqlite3", "file:"+s.source+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		_ = os.Remove(dest)
		return "", types.ExternalCtx(ctx, "create database branch", fmt.Errorf("failed to copy %s: %w", s.source, err))
	}

	if err := s.storeMetadata(ctx, dest, branch); err != nil {
		return "", err
	}

	s.logger.Info("created branch database", "path", dest)
	return url, nil
}

// storeMetadata records where a branch copy came from
func (s *SQLite) storeMetadata(ctx context.Context, dest, branch string) error {
	db, err := sql.Open("sqlite3", dest)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS loom_branch (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	meta := map[string]string{
		"branch":     branch,
		"source":     s.source,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO loom_branch (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to insert metadata: %w", err)
		}
	}
	return nil
}

// branchTarget returns the copy DeleteBranch would remove for branch
func (s *SQLite) branchTarget(op, branch string) (string, error) {
	if Suffix(branch) == "" {
		return "", types.InputError(op, types.ErrInvalidBranchName)
	}
	dest := s.BranchPath(branch)
	if dest == s.source {
		return "", types.ConflictError(op, fmt.Errorf("refusing to delete source database %s", s.source))
	}
	return dest, nil
}

// CheckBranch reports whether DeleteBranch can remove the branch copy.
// A missing copy passes.
func (s *SQLite) CheckBranch(ctx context.Context, branch string, force bool) error {
	dest, err := s.branchTarget("check database branch", branch)
	if err != nil {
		return err
	}
	info, err := os.Lstat(dest)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dest, err)
	}
	if info.IsDir() {
		return types.ConflictError("check database branch", fmt.Errorf("%s is a directory", dest))
	}
	return nil
}

// DeleteBranch removes the branch copy with its WAL and shared-memory
// files. A missing copy is not an error.
func (s *SQLite) DeleteBranch(ctx context.Context, branch string, force bool) error {
	dest, err := s.branchTarget("delete database branch", branch)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range []string{dest, dest + "-wal", dest + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dest, err)
	}
	s.logger.Info("deleted branch database", "path", dest)
	return nil
}
