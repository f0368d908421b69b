package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/loom/internal/types"
)

type fakeProc struct {
	name    string
	cmdline string
}

// fakeSystem is an in-memory process table
type fakeSystem struct {
	mu          sync.Mutex
	listeners   map[int]int
	procs       map[int]fakeProc
	killed      []int
	killErr     error
	describeErr error
	// freeAfter releases every listener once ListenerPID has been called this many times
	freeAfter int
	calls     int
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{listeners: map[int]int{}, procs: map[int]fakeProc{}}
}

func (f *fakeSystem) listen(port, pid int, name, cmdline string) {
	f.listeners[port] = pid
	f.procs[pid] = fakeProc{name: name, cmdline: cmdline}
}

func (f *fakeSystem) ListenerPID(_ context.Context, port int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.freeAfter > 0 && f.calls >= f.freeAfter {
		f.listeners = map[int]int{}
	}
	pid, ok := f.listeners[port]
	return pid, ok, nil
}

func (f *fakeSystem) Describe(_ context.Context, pid int) (string, string, error) {
	if f.describeErr != nil {
		return "", "", f.describeErr
	}
	p := f.procs[pid]
	return p.name, p.cmdline, nil
}

func (f *fakeSystem) Kill(_ context.Context, pid int) error {
	if f.killErr != nil {
		return f.killErr
	}
	f.killed = append(f.killed, pid)
	return nil
}

func TestIsDevServer(t *testing.T) {
	tests := []struct {
		name     string
		cmdline  string
		expected bool
	}{
		{"node", "node /app/node_modules/.bin/next dev -p 3042", true},
		{"node", "node /app/node_modules/.bin/vite --port 3042", true},
		{"pnpm", "pnpm run dev", true},
		{"npm", "npm run dev", true},
		{"yarn", "yarn dev", true},
		{"node", "node node_modules/webpack/bin/webpack.js serve", true},
		{"next-server", "next-server (v14.2.3)", true},
		{"node", "node some-script.js", false},
		{"node", "node server.js --port 3042", false},
		{"python3", "python3 -m http.server 3042", false},
		// name must corroborate the command line
		{"postgres", "postgres: vite", false},
	}

	for _, tt := range tests {
		if got := IsDevServer(tt.name, tt.cmdline); got != tt.expected {
			t.Errorf("IsDevServer(%q, %q) = %v; want %v", tt.name, tt.cmdline, got, tt.expected)
		}
	}
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	sys := newFakeSystem()
	sys.listen(3042, 100, "node", "node /app/node_modules/.bin/next dev")
	sys.listen(3043, 101, "node", "node worker.js")
	probe := NewProbe(Config{System: sys})

	info, err := probe.Detect(ctx, 3042)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 100, info.PID)
	assert.True(t, info.IsDevServer)

	info, err = probe.Detect(ctx, 3043)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.False(t, info.IsDevServer)

	info, err = probe.Detect(ctx, 3044)
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = probe.Detect(ctx, 70000)
	assert.Equal(t, types.KindInput, types.KindOf(err))
}

func TestDetectUndescribedProcess(t *testing.T) {
	sys := newFakeSystem()
	sys.listen(3042, 100, "node", "node /app/node_modules/.bin/next dev")
	sys.describeErr = errors.New("process does not exist")

	info, err := NewProbe(Config{System: sys}).Detect(context.Background(), 3042)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.False(t, info.IsDevServer)
}

func TestTerminate(t *testing.T) {
	ctx := context.Background()
	sys := newFakeSystem()
	probe := NewProbe(Config{System: sys})

	ok, err := probe.Terminate(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{100}, sys.killed)

	sys.killErr = errors.New("operation not permitted")
	ok, err = probe.Terminate(ctx, 101)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation not permitted")
	assert.Equal(t, types.KindExternal, types.KindOf(err))

	_, err = probe.Terminate(ctx, 0)
	assert.Equal(t, types.KindInput, types.KindOf(err))
}

func TestVerifyFree(t *testing.T) {
	ctx := context.Background()

	t.Run("BecomesFree", func(t *testing.T) {
		sys := newFakeSystem()
		sys.listen(3042, 100, "node", "vite")
		sys.freeAfter = 3
		probe := NewProbe(Config{System: sys, PollInterval: time.Millisecond})

		free, err := probe.VerifyFree(ctx, 3042, time.Second)
		require.NoError(t, err)
		assert.True(t, free)
	})

	t.Run("StaysBusy", func(t *testing.T) {
		sys := newFakeSystem()
		sys.listen(3042, 100, "node", "vite")
		probe := NewProbe(Config{System: sys, PollInterval: time.Millisecond})

		free, err := probe.VerifyFree(ctx, 3042, 20*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, free)
	})

	t.Run("Canceled", func(t *testing.T) {
		sys := newFakeSystem()
		sys.listen(3042, 100, "node", "vite")
		probe := NewProbe(Config{System: sys, PollInterval: time.Hour})

		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		free, err := probe.VerifyFree(cctx, 3042, time.Minute)
		assert.False(t, free)
		assert.Error(t, err)
	})
}
