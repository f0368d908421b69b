// Package capability inspects a workspace's package.json to decide what
// kind of project it holds.
package capability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/steveyegge/loom/internal/types"
)

// ManifestName is the file capabilities are read from
const ManifestName = "package.json"

// webFrameworks are dependencies that imply a dev server
var webFrameworks = map[string]bool{
	"next":               true,
	"vite":               true,
	"react-scripts":      true,
	"nuxt":               true,
	"@remix-run/dev":     true,
	"astro":              true,
	"@sveltejs/kit":      true,
	"webpack-dev-server": true,
	"@angular/cli":       true,
}

// Manifest is a parsed package.json
type Manifest struct {
	doc gjson.Result
}

// Load reads dir/package.json. It returns nil, nil when there is none.
// Comments and trailing commas are tolerated.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestName, err)
	}
	data = jsonc.ToJSON(data)
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON in %s", filepath.Join(dir, ManifestName))
	}
	return &Manifest{doc: gjson.ParseBytes(data)}, nil
}

// Name returns the package name without any npm scope
func (m *Manifest) Name() string {
	name := m.doc.Get("name").String()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// IsWeb reports whether the package runs a dev server
func (m *Manifest) IsWeb() bool {
	if m.doc.Get("scripts.dev").Exists() {
		return true
	}
	for _, section := range []string{"dependencies", "devDependencies"} {
		for dep := range m.doc.Get(section).Map() {
			if webFrameworks[dep] {
				return true
			}
		}
	}
	return false
}

// Bins returns executable name to package-relative path. A string "bin"
// is named after the package.
func (m *Manifest) Bins() map[string]string {
	bin := m.doc.Get("bin")
	bins := map[string]string{}
	switch {
	case bin.IsObject():
		bin.ForEach(func(key, value gjson.Result) bool {
			if key.String() != "" && value.String() != "" {
				bins[key.String()] = value.String()
			}
			return true
		})
	case bin.Type == gjson.String && bin.String() != "":
		if name := m.Name(); name != "" {
			bins[name] = bin.String()
		}
	}
	return bins
}

// Capabilities returns what the package supports, web before cli
func (m *Manifest) Capabilities() []types.Capability {
	var caps []types.Capability
	if m.IsWeb() {
		caps = append(caps, types.CapabilityWeb)
	}
	if len(m.Bins()) > 0 {
		caps = append(caps, types.CapabilityCLI)
	}
	return caps
}

// Detect returns the capabilities of the project at dir
func Detect(dir string) ([]types.Capability, error) {
	m, err := Load(dir)
	if err != nil || m == nil {
		return nil, err
	}
	return m.Capabilities(), nil
}
