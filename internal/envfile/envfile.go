// Package envfile edits per-workspace KEY=VALUE environment files in place,
// keeping comments, ordering and unrelated lines intact.
package envfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/subosito/gotenv"
)

// DefaultPortVar is the variable SetPort writes
const DefaultPortVar = "PORT"

var keyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Writer implements the workspace EnvironmentWriter
type Writer struct {
	// PortVar is the variable SetPort writes (default: PORT)
	PortVar string
}

// NewWriter creates a Writer writing the port to portVar
func NewWriter(portVar string) *Writer {
	if portVar == "" {
		portVar = DefaultPortVar
	}
	return &Writer{PortVar: portVar}
}

// Read parses the file at path. A missing file is an empty environment.
func Read(path string) (gotenv.Env, error) {
	env, err := gotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return gotenv.Env{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return env, nil
}

// GetVar returns the value of key in the file at path
func (w *Writer) GetVar(path, key string) (string, bool, error) {
	env, err := Read(path)
	if err != nil {
		return "", false, err
	}
	v, ok := env[key]
	return v, ok, nil
}

// Port returns the port recorded in the file at path, if any
func (w *Writer) Port(path string) (int, bool, error) {
	v, ok, err := w.GetVar(path, w.PortVar)
	if err != nil || !ok {
		return 0, false, err
	}
	port, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || port <= 0 || port > 65535 {
		return 0, false, fmt.Errorf("invalid %s value %q in %s", w.PortVar, v, path)
	}
	return port, true, nil
}

// SetVar sets key to value in the file at path, replacing an existing
// assignment (including "export KEY=") or appending a new one. The file
// is created if it does not exist.
func (w *Writer) SetVar(path, key, value string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid environment variable name %q", key)
	}

	line, err := gotenv.Marshal(gotenv.Env{key: value})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := splitLines(string(data))
	replaced := false
	for i, l := range lines {
		if assigns(l, key) {
			if !replaced {
				lines[i] = line
				replaced = true
			} else {
				// later duplicates would override the new value when parsed
				lines[i] = "# " + l
			}
		}
	}
	if !replaced {
		lines = append(lines, line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SetPort writes the dev-server port
func (w *Writer) SetPort(path string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return w.SetVar(path, w.PortVar, strconv.Itoa(port))
}

// Seed copies src to dst when dst does not exist yet. Env files are
// usually gitignored, so a fresh worktree starts without one. It reports
// whether a copy was made.
func (w *Writer) Seed(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return true, nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// assigns reports whether line is an assignment to key
func assigns(line, key string) bool {
	l := strings.TrimSpace(line)
	l = strings.TrimPrefix(l, "export ")
	l = strings.TrimLeft(l, " \t")
	name, _, ok := strings.Cut(l, "=")
	if !ok {
		name, _, ok = strings.Cut(l, ":")
	}
	return ok && strings.TrimSpace(name) == key
}
