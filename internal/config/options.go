// Package config implements the uback option-string grammar: comma
// separated key=value pairs, "@"-prefixed list-valued keys, named presets
// that splice into a later option list, and a tiny template evaluator over
// the resolved, sibling-referencing key set.
package config

import "strings"

// Pair is one key=value occurrence in source order. Options preserves the
// raw, ordered sequence of pairs so that preset splicing can be performed
// positionally before any resolution happens.
type Pair struct {
	Key   string
	Value string
}

// IsList reports whether this pair's key is list-valued ("@"-prefixed).
func (p Pair) IsList() bool { return strings.HasPrefix(p.Key, "@") }

// BareKey strips the leading "@" from a list-valued key.
func (p Pair) BareKey() string { return strings.TrimPrefix(p.Key, "@") }

// Options is an ordered multimap of (key, value) pairs, exactly as
// described by spec §3: "@"-prefixed keys are list-valued (duplicates
// accumulate), all others are scalar (last write wins).
type Options struct {
	Pairs []Pair
}

// Append adds a pair to the end of the ordered sequence.
func (o *Options) Append(key, value string) {
	o.Pairs = append(o.Pairs, Pair{Key: key, Value: value})
}

// Resolve collapses the ordered pairs into final values: scalar keys keep
// their last-written value, list keys accumulate every value in order.
// The returned map is keyed by the bare (non "@") key name.
func (o *Options) Resolve() map[string][]string {
	out := make(map[string][]string)
	for _, p := range o.Pairs {
		key := p.BareKey()
		if p.IsList() {
			out[key] = append(out[key], p.Value)
			continue
		}
		out[key] = []string{p.Value}
	}
	return out
}

// Get returns the resolved scalar value for key, or "", false if absent.
// If key was list-valued, Get returns its last value.
func (o *Options) Get(key string) (string, bool) {
	vals := o.Resolve()[key]
	if len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

// GetDefault is Get with a fallback for an absent key.
func (o *Options) GetDefault(key, def string) string {
	if v, ok := o.Get(key); ok {
		return v
	}
	return def
}

// GetList returns every value recorded under an "@"-prefixed key, in the
// order they were written. Returns nil if the key was never set.
func (o *Options) GetList(key string) []string {
	return o.Resolve()[strings.TrimPrefix(key, "@")]
}

// Keys returns the resolved, deduplicated key set in first-seen order.
func (o *Options) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, p := range o.Pairs {
		k := p.BareKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a deep-enough copy (the Pairs slice is copied; strings are
// immutable so that's sufficient for independent mutation).
func (o *Options) Clone() *Options {
	c := &Options{Pairs: make([]Pair, len(o.Pairs))}
	copy(c.Pairs, o.Pairs)
	return c
}
