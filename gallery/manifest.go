package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultManifestName is kept hidden so Discover never treats it as input.
const DefaultManifestName = ".branding-manifest.yaml"

// ManifestEntry records one branded output.
type ManifestEntry struct {
	Mode      string    `yaml:"mode"`
	SHA256    string    `yaml:"sha256"`
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
	BrandedAt time.Time `yaml:"branded_at"`
}

// Manifest remembers which files were already branded so a re-run does not
// stack a second badge on top of the first. Entries are keyed by path
// relative to the manifest's root.
type Manifest struct {
	fs   afero.Fs
	path string
	root string

	Version int                      `yaml:"version"`
	Entries map[string]ManifestEntry `yaml:"entries"`
}

// NewManifest returns an empty manifest that saves to path.
func NewManifest(fs afero.Fs, path, root string) *Manifest {
	return &Manifest{
		fs:      fs,
		path:    path,
		root:    root,
		Version: 1,
		Entries: make(map[string]ManifestEntry),
	}
}

// LoadManifest reads the manifest at path. A missing file yields an empty
// manifest; root is the directory entries are relative to.
func LoadManifest(fs afero.Fs, path, root string) (*Manifest, error) {
	m := NewManifest(fs, path, root)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, Wrap(KindManifest, "read", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, Wrap(KindManifest, "parse", path, err)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]ManifestEntry)
	}
	return m, nil
}

// Key returns the manifest key for a file path.
func (m *Manifest) Key(path string) string {
	if m.root == "" {
		return filepath.ToSlash(filepath.Clean(path))
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// Branded reports whether path was branded earlier and still holds the bytes
// written back then.
func (m *Manifest) Branded(path, digest string) bool {
	entry, ok := m.Entries[m.Key(path)]
	return ok && digest != "" && entry.SHA256 == digest
}

// Lookup returns the entry recorded for path.
func (m *Manifest) Lookup(path string) (ManifestEntry, bool) {
	entry, ok := m.Entries[m.Key(path)]
	return entry, ok
}

// Record stores entry for path, replacing any earlier one.
func (m *Manifest) Record(path string, entry ManifestEntry) {
	if entry.BrandedAt.IsZero() {
		entry.BrandedAt = time.Now().UTC()
	}
	m.Entries[m.Key(path)] = entry
}

// Forget drops the entry for path.
func (m *Manifest) Forget(path string) {
	delete(m.Entries, m.Key(path))
}

// Len returns the number of recorded files.
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Save writes the manifest back to disk.
func (m *Manifest) Save() error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return Wrap(KindManifest, "marshal", m.path, err)
	}

	if dir := filepath.Dir(m.path); dir != "" {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return Wrap(KindManifest, "mkdir", m.path, err)
		}
	}
	if err := writeAtomic(m.fs, m.path, data); err != nil {
		return Wrap(KindManifest, "write", m.path, fmt.Errorf("save manifest: %w", err))
	}
	return nil
}
