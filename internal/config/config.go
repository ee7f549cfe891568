package config

import (
	"sort"
	"strings"
)

// Resolve parses a raw option string, splices in any named presets, and
// renders templates against the resulting sibling key set. This is the
// single entry point orchestrator and adapter code should use to turn a
// "-opts" command-line argument into a Resolved option set.
func Resolve(raw string, presets *PresetStore) (*Resolved, error) {
	pairs, err := ParsePairs(raw)
	if err != nil {
		return nil, err
	}
	spliced, err := presets.Splice(pairs)
	if err != nil {
		return nil, err
	}
	return Render(spliced)
}

// FlattenArgs renders r back into "key=value" command-line tokens, one
// per scalar key plus one per list value, skipping any key named in
// exclude. Used by the command/proxy adapters to hand their own options
// on to a spawned helper (spec §4.9: "the remaining options flattened as
// arguments").
func FlattenArgs(r *Resolved, exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		skip[k] = true
	}
	var args []string
	for _, key := range r.order {
		if skip[key] {
			continue
		}
		if v, ok := r.Scalars[key]; ok {
			args = append(args, key+"="+v)
			continue
		}
		if vals, ok := r.Lists[key]; ok {
			for _, v := range vals {
				args = append(args, "@"+key+"="+v)
			}
		}
	}
	return args
}

// Get returns the resolved scalar value for a bare key (e.g. "state-file"),
// or def if the key wasn't set.
func (r *Resolved) Get(key, def string) string {
	if v, ok := r.Scalars[key]; ok {
		return v
	}
	return def
}

// Has reports whether a bare scalar key was set.
func (r *Resolved) Has(key string) bool {
	_, ok := r.Scalars[key]
	return ok
}

// List returns the resolved values for a bare list key (without its "@"
// prefix), or nil if unset.
func (r *Resolved) List(key string) []string {
	return r.Lists[key]
}

// EvalLines renders r in sorted "Key: value" form — the "preset eval"
// test oracle from spec §8 (S8). List-valued keys render as
// space-joined values under their CamelCase name.
func (r *Resolved) EvalLines() []string {
	names := make(map[string]string, len(r.Scalars)+len(r.Lists))
	for key := range r.Scalars {
		names[camelCase(key)] = key
	}
	for key := range r.Lists {
		names[camelCase(key)] = key
	}
	sortedNames := make([]string, 0, len(names))
	for n := range names {
		sortedNames = append(sortedNames, n)
	}
	sort.Strings(sortedNames)

	lines := make([]string, 0, len(sortedNames))
	for _, n := range sortedNames {
		key := names[n]
		if v, ok := r.Scalars[key]; ok {
			lines = append(lines, n+": "+v)
			continue
		}
		lines = append(lines, n+": "+strings.Join(r.Lists[key], " "))
	}
	return lines
}
