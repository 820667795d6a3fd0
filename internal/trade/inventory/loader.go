package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// snapshotFile is the YAML layout of a recorded inventory slice. Items omit
// app and context ids; they inherit the file-level values.
type snapshotFile struct {
	Owner     string `yaml:"owner"`
	AppID     int    `yaml:"app_id"`
	ContextID string `yaml:"context_id"`
	Items     []Item `yaml:"items"`
}

// ParseSnapshot decodes a YAML-encoded inventory slice.
//
// Postcondition: returns a valid Snapshot or a non-nil error.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("inventory: ParseSnapshot: %w", err)
	}
	for i := range f.Items {
		if f.Items[i].AppID == 0 {
			f.Items[i].AppID = f.AppID
		}
		if f.Items[i].ContextID == "" {
			f.Items[i].ContextID = f.ContextID
		}
	}
	return NewSnapshot(f.Owner, f.AppID, f.ContextID, f.Items)
}

// LoadSnapshotFile reads and parses one YAML snapshot file.
//
// Precondition: path is a readable file.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inventory: LoadSnapshotFile: cannot read %q: %w", path, err)
	}
	s, err := ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("inventory: LoadSnapshotFile: %q: %w", path, err)
	}
	return s, nil
}

// LoadSnapshotDir parses every *.yaml and *.yml file in dir, in lexicographic
// file name order.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all snapshots or the first encountered error.
func LoadSnapshotDir(dir string) ([]*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("inventory: LoadSnapshotDir: cannot read directory %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]*Snapshot, 0, len(names))
	for _, name := range names {
		s, err := LoadSnapshotFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
