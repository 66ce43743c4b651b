// Package registry persists the board registry as a YAML document. The
// document is shared with external tooling, so its shape (a top-level
// "boards" map keyed by name) is a wire contract.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"cactusd/internal/model"
)

type document struct {
	Boards map[string]*model.Device `yaml:"boards"`
}

// Registry is a file-backed board registry. All mutations rewrite the
// document via a temp file and rename so concurrent readers never observe
// a partial write.
type Registry struct {
	path string
}

func New(path string) *Registry {
	return &Registry{path: path}
}

// Load reads the registry document. A missing file is an empty registry.
func (r *Registry) Load() (map[string]*model.Device, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*model.Device{}, nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	if doc.Boards == nil {
		doc.Boards = map[string]*model.Device{}
	}
	return doc.Boards, nil
}

// Save writes the full registry document atomically.
func (r *Registry) Save(boards map[string]*model.Device) error {
	data, err := yaml.Marshal(document{Boards: boards})
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("creating registry dir: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing registry temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}

// Get returns one board by name.
func (r *Registry) Get(name string) (*model.Device, error) {
	boards, err := r.Load()
	if err != nil {
		return nil, err
	}
	dev, ok := boards[name]
	if !ok {
		return nil, fmt.Errorf("board %q not found", name)
	}
	return dev, nil
}

// Put adds or replaces a board, enforcing name and ID uniqueness.
func (r *Registry) Put(name string, dev *model.Device) error {
	boards, err := r.Load()
	if err != nil {
		return err
	}
	for existing, d := range boards {
		if existing != name && d.ID == dev.ID {
			return fmt.Errorf("board id %d already used by %q", dev.ID, existing)
		}
	}
	boards[name] = dev
	return r.Save(boards)
}

// Delete removes a board by name.
func (r *Registry) Delete(name string) error {
	boards, err := r.Load()
	if err != nil {
		return err
	}
	if _, ok := boards[name]; !ok {
		return fmt.Errorf("board %q not found", name)
	}
	delete(boards, name)
	return r.Save(boards)
}

// KnownIDs returns the set of registered board IDs.
func (r *Registry) KnownIDs() (map[int]bool, error) {
	boards, err := r.Load()
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool, len(boards))
	for _, d := range boards {
		ids[d.ID] = true
	}
	return ids, nil
}

// ApplyScan folds scan discoveries (MAC, sensors, device info, last-seen)
// back into the registry. Only boards whose values actually changed are
// touched; the document is rewritten once, and only if something changed.
func (r *Registry) ApplyScan(results []model.ScanResult) (bool, error) {
	boards, err := r.Load()
	if err != nil {
		return false, err
	}

	changed := false
	now := time.Now().UTC()
	for _, res := range results {
		dev, ok := boards[res.Name]
		if !ok {
			continue
		}
		if res.MAC != "" && res.MAC != dev.MACAddress {
			dev.MACAddress = res.MAC
			changed = true
		}
		if len(res.Sensors) > 0 && !sensorsEqual(dev.Sensors, res.Sensors) {
			dev.Sensors = res.Sensors
			changed = true
		}
		if len(res.Info) > 0 && !infoEqual(dev.DeviceInfo, res.Info) {
			dev.DeviceInfo = res.Info
			changed = true
		}
		if res.Online {
			dev.LastSeen = &now
			changed = true
		}
	}

	if !changed {
		return false, nil
	}
	return true, r.Save(boards)
}

func sensorsEqual(a, b []model.Sensor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func infoEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
