// Package retention implements spec §4.5's retention policy: an ordered
// list of (bucket-size, keep-count) rules that decide which backups or
// snapshots survive a prune. Items are plain IDs with an embedded,
// lexicographically-ordered timestamp. The orchestrator applies it to
// Backup IDs only; snapshot pruning there deletes every snapshot the
// state file no longer references and does not consult these rules.
package retention

import (
	"sort"
	"time"

	"uback/internal/ubackerr"
)

// Item is one retention candidate: a snapshot ID or a Backup ID, its
// embedded time, and — for backups — whether it's self-sufficient (a
// full) or depends on a Base backup ID.
type Item struct {
	ID   string
	Time time.Time
	Full bool
	Base string // empty for snapshots and for full backups
}

// Rule is one (bucket-size, keep-count) retention rule.
type Rule struct {
	Name          string
	BucketSeconds int64
	Keep          int
}

// bucketKey returns the epoch-aligned bucket index t falls into for this
// rule: contiguous, fixed-size periods since the Unix epoch, not relative
// to wall-clock "now". This is what makes retention reproducible against
// fixture timestamps recorded years in the past — "the 3 most recent
// buckets that actually have a backup in them", not "within 3 days of
// right now".
func (r Rule) bucketKey(t time.Time) int64 {
	return t.Unix() / r.BucketSeconds
}

// Apply selects the subset of items to keep, per spec §4.5:
//  1. each item is claimed by the earliest rule whose bucket window
//     covers it;
//  2. within each rule, only the `keep` most recent distinct buckets
//     are covered, keeping the newest item per bucket;
//  3. the union across rules, plus any full backup a kept incremental
//     still depends on, is kept;
//  4. everything else is a deletion candidate.
func Apply(items []Item, rules []Rule) map[string]bool {
	kept := make(map[string]bool)
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	remaining := append([]Item(nil), items...)
	for _, rule := range rules {
		if rule.BucketSeconds <= 0 || rule.Keep <= 0 {
			continue
		}
		buckets := make(map[int64][]Item)
		for _, it := range remaining {
			buckets[rule.bucketKey(it.Time)] = append(buckets[rule.bucketKey(it.Time)], it)
		}
		keys := make([]int64, 0, len(buckets))
		for k := range buckets {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
		if len(keys) > rule.Keep {
			keys = keys[:rule.Keep]
		}
		covered := make(map[int64]bool, len(keys))
		for _, k := range keys {
			covered[k] = true
		}

		var next []Item
		for _, it := range remaining {
			k := rule.bucketKey(it.Time)
			if !covered[k] {
				next = append(next, it)
			}
		}
		for k := range covered {
			newest := newestOf(buckets[k])
			kept[newest.ID] = true
		}
		remaining = next
	}

	// Step 3: pull in any full backup still required by a kept incremental.
	changed := true
	for changed {
		changed = false
		for id := range kept {
			it, ok := byID[id]
			if !ok || it.Full || it.Base == "" {
				continue
			}
			if !kept[it.Base] {
				kept[it.Base] = true
				changed = true
			}
		}
	}

	return kept
}

// newestOf returns the item with the lexicographically largest ID —
// spec §4.5's tie-break, which also happens to be the chronologically
// latest since IDs embed their timestamp as a sortable prefix.
func newestOf(items []Item) Item {
	best := items[0]
	for _, it := range items[1:] {
		if it.ID > best.ID {
			best = it
		}
	}
	return best
}

// ValidateChain checks invariant §8.5: every kept incremental's ancestors
// back to a full are also kept. It returns an error naming the first
// break found, which should never happen after Apply but is worth
// asserting before a prune actually deletes anything.
func ValidateChain(items []Item, kept map[string]bool) error {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for id := range kept {
		it, ok := byID[id]
		if !ok || it.Full {
			continue
		}
		base := it.Base
		for base != "" {
			if !kept[base] {
				return ubackerr.Wrap(ubackerr.KindChainBroken, "retention would keep "+id+" without its base "+base, nil)
			}
			baseItem, ok := byID[base]
			if !ok || baseItem.Full {
				break
			}
			base = baseItem.Base
		}
	}
	return nil
}
