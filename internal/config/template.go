package config

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"uback/internal/ubackerr"
)

// exprPattern matches one non-nested {{ ... }} template expression.
var exprPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// camelCase converts a hyphenated option key ("state-file") into the
// CamelCase identifier templates reference it by (".StateFile" minus the
// leading dot, i.e. "StateFile").
func camelCase(key string) string {
	parts := strings.Split(key, "-")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// Resolved is a fully spliced, template-rendered option set: every scalar
// key maps to its final string, every list key to its final ordered
// values.
type Resolved struct {
	Scalars map[string]string
	Lists   map[string][]string
	// order preserves first-seen key order. Render sets it; FlattenArgs
	// iterates over it to emit keys in source order instead of sorted order.
	order []string
}

// Render renders pairs (after preset splicing) into a Resolved value.
// Template expressions reference already-resolved sibling keys by their
// CamelCase name; rendering order is topological over those references,
// and a reference cycle is an error.
func Render(pairs []Pair) (*Resolved, error) {
	opts := &Options{Pairs: pairs}
	resolvedMap := opts.Resolve()

	nameToKey := make(map[string]string, len(resolvedMap))
	for key := range resolvedMap {
		nameToKey[camelCase(key)] = key
	}

	deps := make(map[string]map[string]bool, len(resolvedMap))
	for key, vals := range resolvedMap {
		depSet := make(map[string]bool)
		for _, v := range vals {
			for _, ref := range referencedNames(v) {
				if refKey, ok := nameToKey[ref]; ok && refKey != key {
					depSet[refKey] = true
				}
			}
		}
		deps[key] = depSet
	}

	order, err := topoSort(deps)
	if err != nil {
		return nil, err
	}

	rendered := make(map[string][]string, len(resolvedMap))
	for _, key := range order {
		var out []string
		for _, v := range resolvedMap[key] {
			rv, err := renderValue(v, nameToKey, rendered)
			if err != nil {
				return nil, err
			}
			out = append(out, rv)
		}
		rendered[key] = out
	}

	r := &Resolved{Scalars: make(map[string]string), Lists: make(map[string][]string)}
	r.order = opts.Keys()
	for key, vals := range rendered {
		isList := false
		for _, p := range pairs {
			if p.BareKey() == key && p.IsList() {
				isList = true
				break
			}
		}
		if isList {
			r.Lists[key] = vals
		} else if len(vals) > 0 {
			r.Scalars[key] = vals[len(vals)-1]
		}
	}
	return r, nil
}

// referencedNames extracts every ".Name" reference from the {{ }}
// expressions embedded in s.
func referencedNames(s string) []string {
	var names []string
	for _, m := range exprPattern.FindAllStringSubmatch(s, -1) {
		stages := strings.Split(m[1], "|")
		ref := strings.TrimSpace(stages[0])
		if strings.HasPrefix(ref, ".") {
			names = append(names, ref[1:])
		}
	}
	return names
}

// renderValue substitutes every {{ }} expression in s with its evaluated
// result, using already-rendered sibling values.
func renderValue(s string, nameToKey map[string]string, rendered map[string][]string) (string, error) {
	var outerErr error
	out := exprPattern.ReplaceAllStringFunc(s, func(m string) string {
		if outerErr != nil {
			return ""
		}
		inner := exprPattern.FindStringSubmatch(m)[1]
		v, err := evalExpr(inner, nameToKey, rendered)
		if err != nil {
			outerErr = err
			return ""
		}
		return v
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// evalExpr evaluates a single {{ ... }} body: a leading ".Field"
// reference followed by zero or more "| filter arg..." pipeline stages.
func evalExpr(body string, nameToKey map[string]string, rendered map[string][]string) (string, error) {
	stages := strings.Split(body, "|")
	ref := strings.TrimSpace(stages[0])
	if !strings.HasPrefix(ref, ".") {
		return "", ubackerr.Userf("template expression must start with a field reference: %q", body)
	}
	name := ref[1:]
	key, ok := nameToKey[name]
	if !ok {
		return "", ubackerr.Userf("template references unknown field %q", name)
	}
	vals := rendered[key]
	if len(vals) == 0 {
		return "", ubackerr.Userf("template references unset field %q", name)
	}
	val := vals[len(vals)-1]

	for _, stage := range stages[1:] {
		tokens := tokenize(strings.TrimSpace(stage))
		if len(tokens) == 0 {
			continue
		}
		filter, args := tokens[0], tokens[1:]
		var err error
		val, err = applyFilter(filter, args, val)
		if err != nil {
			return "", err
		}
	}
	return val, nil
}

// applyFilter implements the closed set of pipeline filters spec §9
// defines: clean, replace, trimSuffix, lower, upper. No general templating
// library is used; this set is all preset eval is ever asked to render.
func applyFilter(name string, args []string, val string) (string, error) {
	switch name {
	case "clean":
		return filepath.Clean(val), nil
	case "replace":
		if len(args) != 2 {
			return "", ubackerr.Userf("replace filter takes 2 arguments, got %d", len(args))
		}
		return strings.ReplaceAll(val, args[0], args[1]), nil
	case "trimSuffix":
		if len(args) != 1 {
			return "", ubackerr.Userf("trimSuffix filter takes 1 argument, got %d", len(args))
		}
		return strings.TrimSuffix(val, args[0]), nil
	case "lower":
		return strings.ToLower(val), nil
	case "upper":
		return strings.ToUpper(val), nil
	default:
		return "", ubackerr.Userf("unknown template filter %q", name)
	}
}

// tokenize splits a pipeline stage into words, honoring double-quoted
// arguments so values like "/" or "-" can be passed unambiguously.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// topoSort orders keys so that every key's dependencies precede it. A
// cycle among template references is reported as an error.
func topoSort(deps map[string]map[string]bool) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(deps))
	var order []string

	var visit func(string) error
	visit = func(key string) error {
		switch color[key] {
		case black:
			return nil
		case gray:
			return ubackerr.Userf("template dependency cycle involving %q", key)
		}
		color[key] = gray
		for dep := range deps[key] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[key] = black
		order = append(order, key)
		return nil
	}

	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// Deterministic traversal start: a stable key order doesn't change
	// correctness, only tie-break order among independent keys.
	for _, k := range keys {
		if err := visit(k); err != nil {
			return nil, err
		}
	}
	return order, nil
}
