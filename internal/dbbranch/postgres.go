package dbbranch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/steveyegge/loom/internal/envfile"
	"github.com/steveyegge/loom/internal/types"
)

// maxIdentifierLength is Postgres' NAMEDATALEN - 1
const maxIdentifierLength = 63

// PostgresConfig configures the Postgres provider
type PostgresConfig struct {
	// AdminURL is a connection string for a role allowed to CREATE DATABASE
	AdminURL string

	// Template is the database branches are cloned from. When empty it is
	// taken from URLVar in the workspace env file, then from AdminURL.
	Template string

	// URLVar is the env file variable holding the app's database URL
	URLVar string

	Logger *slog.Logger
}

// Postgres implements the workspace DatabaseBranchProvider with
// CREATE DATABASE ... TEMPLATE.
type Postgres struct {
	cfg    PostgresConfig
	logger *slog.Logger
}

// NewPostgres creates a Postgres provider
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if cfg.AdminURL == "" {
		return nil, fmt.Errorf("postgres admin URL is required")
	}
	if _, err := pgx.ParseConfig(cfg.AdminURL); err != nil {
		return nil, fmt.Errorf("invalid postgres admin URL: %w", err)
	}
	if cfg.URLVar == "" {
		cfg.URLVar = "DATABASE_URL"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Postgres{cfg: cfg, logger: logger}, nil
}

// DatabaseName returns the branch database name for template and branch,
// cut to Postgres' identifier limit.
func DatabaseName(template, branch string) string {
	name := template + "_" + Suffix(branch)
	if len(name) > maxIdentifierLength {
		name = strings.TrimRight(name[:maxIdentifierLength], "_")
	}
	return name
}

// withDatabase returns rawURL pointing at database db
func withDatabase(rawURL, db string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid database URL: %w", err)
	}
	u.Path = "/" + db
	u.RawPath = ""
	return u.String(), nil
}

// databaseOf returns the database named in a connection URL
func databaseOf(rawURL string) string {
	cfg, err := pgx.ParseConfig(rawURL)
	if err != nil {
		return ""
	}
	return cfg.Database
}

// template picks the source database for a workspace
func (p *Postgres) template(envFilePath string) (string, string, error) {
	if p.cfg.Template != "" {
		return p.cfg.Template, p.cfg.AdminURL, nil
	}
	if envFilePath != "" {
		appURL, ok, err := envfile.NewWriter("").GetVar(envFilePath, p.cfg.URLVar)
		if err != nil {
			return "", "", err
		}
		if ok {
			if db := databaseOf(appURL); db != "" {
				return db, appURL, nil
			}
		}
	}
	if db := databaseOf(p.cfg.AdminURL); db != "" {
		return db, p.cfg.AdminURL, nil
	}
	return "", "", fmt.Errorf("no template database configured")
}

// CreateBranchIfConfigured clones the template into a branch database and
// returns its connection string. An existing branch database is reused.
func (p *Postgres) CreateBranchIfConfigured(ctx context.Context, branch, envFilePath string) (string, error) {
	if Suffix(branch) == "" {
		return "", types.InputError("create database branch", types.ErrInvalidBranchName)
	}
	tmpl, baseURL, err := p.template(envFilePath)
	if err != nil {
		return "", err
	}
	name := DatabaseName(tmpl, branch)

	connURL, err := withDatabase(baseURL, name)
	if err != nil {
		return "", err
	}

	conn, err := pgx.Connect(ctx, p.cfg.AdminURL)
	if err != nil {
		return "", types.ExternalCtx(ctx, "create database branch", fmt.Errorf("failed to connect to postgres: %w", err))
	}
	defer conn.Close(context.Background())

	var exists bool
	if err := conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return "", types.ExternalCtx(ctx, "create database branch", fmt.Errorf("failed to look up %s: %w", name, err))
	}
	if exists {
		p.logger.Info("reusing existing branch database", "database", name)
		return connURL, nil
	}

	sql := fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s",
		pgx.Identifier{name}.Sanitize(), pgx.Identifier{tmpl}.Sanitize())
	if _, err := conn.Exec(ctx, sql); err != nil {
		var pgErr *pgconn.PgError
		// duplicate_database: created concurrently since the lookup
		if errors.As(err, &pgErr) && pgErr.Code == "42P04" {
			return connURL, nil
		}
		return "", types.ExternalCtx(ctx, "create database branch", fmt.Errorf("failed to create %s from %s: %w", name, tmpl, err))
	}

	p.logger.Info("created branch database", "database", name, "template", tmpl)
	return connURL, nil
}

// branchTarget returns the database DeleteBranch would drop for branch
func (p *Postgres) branchTarget(op, branch string) (string, error) {
	if Suffix(branch) == "" {
		return "", types.InputError(op, types.ErrInvalidBranchName)
	}
	tmpl, _, err := p.template("")
	if err != nil {
		return "", err
	}
	name := DatabaseName(tmpl, branch)
	if name == tmpl {
		return "", types.ConflictError(op, fmt.Errorf("refusing to drop template database %s", tmpl))
	}
	return name, nil
}

// CheckBranch reports whether DeleteBranch can drop the branch database.
// Without force, sessions still connected to it are a conflict.
func (p *Postgres) CheckBranch(ctx context.Context, branch string, force bool) error {
	name, err := p.branchTarget("check database branch", branch)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, p.cfg.AdminURL)
	if err != nil {
		return types.ExternalCtx(ctx, "check database branch", fmt.Errorf("failed to connect to postgres: %w", err))
	}
	defer conn.Close(context.Background())

	if force {
		if err := conn.Ping(ctx); err != nil {
			return types.ExternalCtx(ctx, "check database branch", err)
		}
		return nil
	}

	var sessions int64
	if err := conn.QueryRow(ctx, "SELECT count(*) FROM pg_stat_activity WHERE datname = $1", name).Scan(&sessions); err != nil {
		return types.ExternalCtx(ctx, "check database branch", fmt.Errorf("failed to count sessions on %s: %w", name, err))
	}
	if sessions > 0 {
		return types.ConflictError("check database branch",
			fmt.Errorf("database %s is being accessed by %d other session(s)", name, sessions))
	}
	return nil
}

// DeleteBranch drops the branch database. force also terminates open
// connections (Postgres 13+).
func (p *Postgres) DeleteBranch(ctx context.Context, branch string, force bool) error {
	name, err := p.branchTarget("delete database branch", branch)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, p.cfg.AdminURL)
	if err != nil {
		return types.ExternalCtx(ctx, "delete database branch", fmt.Errorf("failed to connect to postgres: %w", err))
	}
	defer conn.Close(context.Background())

	sql := "DROP DATABASE IF EXISTS " + pgx.Identifier{name}.Sanitize()
	if force {
		sql += " WITH (FORCE)"
	}
	if _, err := conn.Exec(ctx, sql); err != nil {
		return types.ExternalCtx(ctx, "delete database branch", fmt.Errorf("failed to drop %s: %w", name, err))
	}
	p.logger.Info("dropped branch database", "database", name)
	return nil
}
