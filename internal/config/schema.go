package config

import (
	"sort"
	"strings"

	"uback/internal/ubackerr"
)

// FieldKind distinguishes scalar from list-valued recognized keys.
type FieldKind int

const (
	Scalar FieldKind = iota
	List
)

// Schema enumerates the keys one adapter recognizes (spec §4.6/§4.7's
// config_schema). Validate rejects anything outside this set with
// UnknownOption, per spec §6.
type Schema struct {
	Kind string // adapter discriminator, e.g. "tar", "fs"
	// Fields maps bare key name (no "@") to its kind. "type" is implicit
	// and need not be listed.
	Fields map[string]FieldKind
}

// Validate rejects any resolved key not present in the schema (besides
// "type", which every adapter accepts implicitly as its discriminator).
func (s Schema) Validate(r *Resolved) error {
	var unknown []string
	check := func(key string) {
		if key == "type" {
			return
		}
		if _, ok := s.Fields[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	for key := range r.Scalars {
		check(key)
	}
	for key := range r.Lists {
		check(key)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ubackerr.Userf("UnknownOption: %s does not recognize option(s) %s", s.Kind, strings.Join(unknown, ", "))
	}
	return nil
}
