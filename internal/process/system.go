package process

import (
	"context"

	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// psSystem implements System with gopsutil
type psSystem struct{}

// NewSystem returns the gopsutil-backed System
func NewSystem() System {
	return psSystem{}
}

func (psSystem) ListenerPID(ctx context.Context, port int) (int, bool, error) {
	conns, err := net.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return 0, false, err
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && int(c.Laddr.Port) == port && c.Pid > 0 {
			return int(c.Pid), true, nil
		}
	}
	return 0, false, nil
}

func (psSystem) Describe(ctx context.Context, pid int) (string, string, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", "", err
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return "", "", err
	}
	cmdline, err := p.CmdlineWithContext(ctx)
	if err != nil {
		return name, "", err
	}
	return name, cmdline, nil
}

func (psSystem) Kill(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}
