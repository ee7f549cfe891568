package config

import (
	"strings"

	"uback/internal/ubackerr"
)

// ParsePairs splits a raw option string into ordered (key, value) pairs
// per spec §4.10's grammar:
//
//	opts := pair (',' pair)*
//	pair := key ('=' value)?
//
// An unescaped comma separates pairs; a backslash escapes a literal comma
// so it can appear inside a value.
func ParsePairs(raw string) ([]Pair, error) {
	var pairs []Pair
	var cur strings.Builder
	escaped := false
	flush := func() error {
		seg := cur.String()
		cur.Reset()
		if seg == "" {
			return nil
		}
		if eq := strings.IndexByte(seg, '='); eq >= 0 {
			pairs = append(pairs, Pair{Key: seg[:eq], Value: seg[eq+1:]})
		} else {
			pairs = append(pairs, Pair{Key: seg, Value: ""})
		}
		return nil
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == ',':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteByte(c)
		}
	}
	if escaped {
		return nil, ubackerr.Userf("option string ends with a dangling escape")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Parse parses a raw option string into an Options value with no preset or
// template resolution applied.
func Parse(raw string) (*Options, error) {
	pairs, err := ParsePairs(raw)
	if err != nil {
		return nil, err
	}
	return &Options{Pairs: pairs}, nil
}
