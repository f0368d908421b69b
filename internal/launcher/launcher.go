// Package launcher runs a configured command (editor, terminal, assistant)
// inside a freshly created workspace.
package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/steveyegge/loom/internal/types"
	"github.com/steveyegge/loom/internal/workspace"
)

// Config configures a Command launcher
type Config struct {
	// Template is the default argv; {path}, {port} and {branch} are expanded
	Template []string

	// PortVar is set to the workspace port in the child environment (default: PORT)
	PortVar string

	// Stdin, Stdout and Stderr are attached to commands run with Wait
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

// Command launches a command template in a workspace
type Command struct {
	template []string
	portVar  string
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
}

// New creates a Command launcher
func New(cfg Config) *Command {
	c := &Command{
		template: cfg.Template,
		portVar:  cfg.PortVar,
		stdin:    cfg.Stdin,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
		logger:   cfg.Logger,
	}
	if c.portVar == "" {
		c.portVar = "PORT"
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Expand substitutes workspace values into argv
func Expand(argv []string, ws *types.WorkspaceRecord) []string {
	r := strings.NewReplacer(
		"{path}", ws.Path,
		"{port}", strconv.Itoa(ws.Port),
		"{branch}", ws.Branch,
	)
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = r.Replace(arg)
	}
	return out
}

// Launch runs the command in ws.Path. Without Wait the child is started
// and released so it outlives loom. An empty command is a no-op.
func (c *Command) Launch(ctx context.Context, ws *types.WorkspaceRecord, opts workspace.LaunchOptions) error {
	argv := opts.Command
	if len(argv) == 0 {
		argv = c.template
	}
	if len(argv) == 0 {
		c.logger.Debug("no launch command configured")
		return nil
	}
	argv = Expand(argv, ws)

	var cmd *exec.Cmd
	if opts.Wait {
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = c.stdin, c.stdout, c.stderr
	} else {
		// Not tied to ctx: the child keeps running after loom exits
		cmd = exec.Command(argv[0], argv[1:]...)
	}
	cmd.Dir = ws.Path
	cmd.Env = c.environ(ws, opts.Env)

	c.logger.Info("launching", "command", strings.Join(argv, " "), "dir", ws.Path, "wait", opts.Wait)
	if opts.Wait {
		if err := cmd.Run(); err != nil {
			return types.ExternalCtx(ctx, "launch", fmt.Errorf("%s: %w", argv[0], err))
		}
		return nil
	}
	if err := cmd.Start(); err != nil {
		return types.External("launch", fmt.Errorf("%s: %w", argv[0], err))
	}
	return cmd.Process.Release()
}

// environ returns the parent environment plus workspace variables. Extra
// variables are applied last, in sorted order.
func (c *Command) environ(ws *types.WorkspaceRecord, extra map[string]string) []string {
	env := os.Environ()
	if ws.Port > 0 {
		env = append(env, c.portVar+"="+strconv.Itoa(ws.Port))
	}
	env = append(env,
		"LOOM_WORKSPACE="+ws.Path,
		"LOOM_BRANCH="+ws.Branch,
	)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
