// Package state implements spec §4.4's state store: the per-source
// mapping from destination id to the most recent snapshot successfully
// written there. Persistence follows the same write-to-temp-then-rename
// discipline the config package uses for presets, and the teacher's WAL
// uses for durable append — atomic, single-writer, no partial states
// ever observable.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"uback/internal/ubackerr"
)

// State is destination id -> last successful snapshot ID.
type State map[string]string

// Load reads the state file at path. A missing file is an empty State,
// per spec §3 ("Absence of the file == empty mapping"); it is never
// created implicitly.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "reading state file", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindStateConflict, "state file is malformed", err)
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

// Save writes s to path atomically. The parent directory must already
// exist; Save never creates one (spec §4.4).
func Save(path string, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "encoding state", err)
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "state file parent directory missing", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "writing state file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "committing state file", err)
	}
	return nil
}
