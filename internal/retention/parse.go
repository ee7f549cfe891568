package retention

import (
	"strconv"
	"strings"
	"time"

	"uback/internal/ubackerr"
)

// ParseDuration parses a single duration value such as those used for
// `full-interval=` and `reuse-snapshots=`: anything time.ParseDuration
// accepts, a bare "<N>d" or "<N>w" day/week suffix it doesn't, or one of
// the named retention buckets (`daily`, `weekly`, `monthly`, `yearly`)
// shared with ParseRules.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if seconds, ok := named[s]; ok {
		return time.Duration(seconds) * time.Second, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) >= 2 {
		unit := s[len(s)-1]
		if n, err := strconv.Atoi(s[:len(s)-1]); err == nil {
			switch unit {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n) * 7 * 24 * time.Hour, nil
			}
		}
	}
	return 0, ubackerr.Userf("invalid duration %q", s)
}

const (
	day   = 86400
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

var named = map[string]int64{
	"daily":   day,
	"weekly":  week,
	"monthly": month,
	"yearly":  year,
}

// ParseRules parses a `@retention-policy` value such as
// "daily=3,weekly=4,monthly=6" into an ordered list of Rules. A bucket
// name may also be a literal duration like "3d", "12h" or "30m" in place
// of one of the four named buckets.
func ParseRules(raw string) ([]Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var rules []Rule
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, countStr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ubackerr.Userf("invalid retention rule %q: expected name=count", part)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil || count <= 0 {
			return nil, ubackerr.Userf("invalid retention rule %q: keep-count must be a positive integer", part)
		}
		seconds, err := bucketSeconds(name)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{Name: name, BucketSeconds: seconds, Keep: count})
	}
	return rules, nil
}

func bucketSeconds(name string) (int64, error) {
	if s, ok := named[name]; ok {
		return s, nil
	}
	if len(name) < 2 {
		return 0, ubackerr.Userf("unrecognized retention bucket %q", name)
	}
	unit := name[len(name)-1]
	n, err := strconv.Atoi(name[:len(name)-1])
	if err != nil || n <= 0 {
		return 0, ubackerr.Userf("unrecognized retention bucket %q", name)
	}
	switch unit {
	case 'm':
		return int64(n) * 60, nil
	case 'h':
		return int64(n) * 3600, nil
	case 'd':
		return int64(n) * day, nil
	default:
		return 0, ubackerr.Userf("unrecognized retention bucket %q", name)
	}
}
