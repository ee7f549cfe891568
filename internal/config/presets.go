package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"uback/internal/ubackerr"
)

const presetFileName = "presets.json"

// PresetStore persists named option lists so they can be spliced into
// later option strings via "preset=<name>". Storage is a single JSON file
// in the presets directory, written atomically (write-to-temp + rename),
// the same discipline spec §4.4 requires of the state file.
type PresetStore struct {
	dir     string
	presets map[string][]Pair
}

// LoadPresetStore opens the presets file under dir. A missing file is an
// empty preset set, not an error — mirroring the state store's "absence
// of the file == empty mapping" rule.
func LoadPresetStore(dir string) (*PresetStore, error) {
	ps := &PresetStore{dir: dir, presets: make(map[string][]Pair)}
	data, err := os.ReadFile(filepath.Join(dir, presetFileName))
	if os.IsNotExist(err) {
		return ps, nil
	}
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "reading presets file", err)
	}
	if err := json.Unmarshal(data, &ps.presets); err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindStateConflict, "presets file is malformed", err)
	}
	return ps, nil
}

// Save writes the preset set atomically: write to a temp file in the same
// directory, then rename over the final path.
func (ps *PresetStore) Save() error {
	data, err := json.MarshalIndent(ps.presets, "", "  ")
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "encoding presets", err)
	}
	final := filepath.Join(ps.dir, presetFileName)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "writing presets file", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "committing presets file", err)
	}
	return nil
}

// Set appends pairs to the named preset, creating it if absent. Repeated
// Set calls accumulate pairs rather than replacing them — list-valued
// keys grow exactly as they would in a single option string, and scalar
// keys still resolve last-write-wins once the preset is spliced in.
func (ps *PresetStore) Set(name string, pairs []Pair) {
	ps.presets[name] = append(ps.presets[name], pairs...)
}

// Remove deletes a preset. Removing an absent preset is a no-op.
func (ps *PresetStore) Remove(name string) {
	delete(ps.presets, name)
}

// Get returns the raw, unresolved pairs stored under name.
func (ps *PresetStore) Get(name string) ([]Pair, bool) {
	p, ok := ps.presets[name]
	return p, ok
}

// Names returns every preset name, sorted.
func (ps *PresetStore) Names() []string {
	names := make([]string, 0, len(ps.presets))
	for n := range ps.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

const presetKey = "preset"

// Splice expands every "preset=<name>" pair in pairs, recursively and
// depth-first, replacing it in place with the named preset's own
// (recursively spliced) pairs. Cycles are rejected.
func (ps *PresetStore) Splice(pairs []Pair) ([]Pair, error) {
	return ps.splice(pairs, nil)
}

func (ps *PresetStore) splice(pairs []Pair, stack []string) ([]Pair, error) {
	var out []Pair
	for _, p := range pairs {
		if p.Key != presetKey {
			out = append(out, p)
			continue
		}
		name := p.Value
		for _, s := range stack {
			if s == name {
				return nil, ubackerr.Userf("preset cycle detected: %s", name)
			}
		}
		stored, ok := ps.Get(name)
		if !ok {
			return nil, ubackerr.Userf("unknown preset %q", name)
		}
		expanded, err := ps.splice(stored, append(stack, name))
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}
