// Package process finds and stops the dev server bound to a workspace's port.
package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/steveyegge/loom/internal/types"
)

var (
	// devServerNameRe is matched against the executable name
	devServerNameRe = regexp.MustCompile(`^(node|nodejs|npm|npx|pnpm|yarn|bun|deno|vite|next|next-server|webpack|nuxt|remix|astro|turbo)(\.exe)?\b`)

	// devServerCmdRe must also match the full command line; a bare
	// "node script.js" matches the name but not this.
	devServerCmdRe = regexp.MustCompile(`next dev|next-server|\bvite\b|(pnpm|npm|yarn|bun)(\s+run)?\s+(dev|start|serve)\b|webpack.*serve|webpack-dev-server|nuxt dev|remix dev|astro dev|react-scripts start|turbo (run )?dev`)
)

// ProcessInfo describes the process listening on a port
type ProcessInfo struct {
	PID         int
	Port        int
	Name        string
	Cmdline     string
	IsDevServer bool
}

// System is the OS access the probe needs
type System interface {
	// ListenerPID returns the pid listening on a TCP port, or false if none
	ListenerPID(ctx context.Context, port int) (int, bool, error)
	// Describe returns a process's executable name and command line
	Describe(ctx context.Context, pid int) (name, cmdline string, err error)
	// Kill forcefully stops a process
	Kill(ctx context.Context, pid int) error
}

// Config configures a Probe
type Config struct {
	// System defaults to the gopsutil-backed implementation
	System System
	// PollInterval paces VerifyFree (default: 100ms)
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Probe implements dev-server detection and termination
type Probe struct {
	sys      System
	interval time.Duration
	logger   *slog.Logger
}

// NewProbe creates a Probe
func NewProbe(cfg Config) *Probe {
	p := &Probe{
		sys:      cfg.System,
		interval: cfg.PollInterval,
		logger:   cfg.Logger,
	}
	if p.sys == nil {
		p.sys = NewSystem()
	}
	if p.interval <= 0 {
		p.interval = 100 * time.Millisecond
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// IsDevServer reports whether a process looks like a development server.
// Both the name and the command line have to agree.
func IsDevServer(name, cmdline string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if !devServerNameRe.MatchString(name) {
		return false
	}
	return devServerCmdRe.MatchString(strings.ToLower(cmdline))
}

// Detect returns the process listening on port, or nil if the port is free
func (p *Probe) Detect(ctx context.Context, port int) (*ProcessInfo, error) {
	if port <= 0 || port > 65535 {
		return nil, types.InputError("detect process", fmt.Errorf("invalid port %d", port))
	}

	pid, ok, err := p.sys.ListenerPID(ctx, port)
	if err != nil {
		return nil, types.ExternalCtx(ctx, "detect process", fmt.Errorf("failed to query listeners on port %d: %w", port, err))
	}
	if !ok {
		return nil, nil
	}

	info := &ProcessInfo{PID: pid, Port: port}
	name, cmdline, err := p.sys.Describe(ctx, pid)
	if err != nil {
		// The listener may have exited between the two queries; an
		// undescribed process is never treated as a dev server.
		p.logger.Debug("could not describe listener", "pid", pid, "port", port, "error", err)
		return info, nil
	}
	info.Name = name
	info.Cmdline = cmdline
	info.IsDevServer = IsDevServer(name, cmdline)
	return info, nil
}

// Terminate forcefully kills pid. Callers must only pass processes that
// Detect classified as dev servers.
func (p *Probe) Terminate(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 {
		return false, types.InputError("terminate process", fmt.Errorf("invalid pid %d", pid))
	}
	if err := p.sys.Kill(ctx, pid); err != nil {
		return false, types.ExternalCtx(ctx, "terminate process", fmt.Errorf("failed to kill process %d: %w", pid, err))
	}
	p.logger.Info("terminated process", "pid", pid)
	return true, nil
}

// VerifyFree polls until nothing listens on port or timeout passes. It
// returns false, not an error, when the port is still taken at the end.
func (p *Probe) VerifyFree(ctx context.Context, port int, timeout time.Duration) (bool, error) {
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	deadline := time.Now().Add(timeout)

	for {
		_, busy, err := p.sys.ListenerPID(ctx, port)
		if err != nil {
			return false, types.ExternalCtx(ctx, "verify port", fmt.Errorf("failed to query listeners on port %d: %w", port, err))
		}
		if !busy {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return false, types.ExternalCtx(ctx, "verify port", err)
		}
	}
}
