// Package orchestrator composes the container codec, keys, clock, state
// store, retention policy, and source/destination adapters into the
// top-level backup/restore/list/prune commands from spec §4.8. It mirrors
// the teacher's Server: a small struct holding shared collaborators
// (here a clock, a preset store, a logger) that every command method
// threads through.
package orchestrator

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/rs/zerolog"

	"uback/internal/clock"
	"uback/internal/config"
	"uback/internal/container"
	"uback/internal/destination"
	"uback/internal/keys"
	"uback/internal/retention"
	"uback/internal/source"
	"uback/internal/state"
	"uback/internal/ubackerr"
)

// Orchestrator holds the collaborators every top-level command needs.
type Orchestrator struct {
	Clock   *clock.Clock
	Presets *config.PresetStore
	Log     zerolog.Logger
}

// New constructs an Orchestrator. log is threaded in rather than built
// internally, the same way Hermes wires its DataStore into its Server.
func New(presets *config.PresetStore, clk *clock.Clock, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{Clock: clk, Presets: presets, Log: log}
}

func (o *Orchestrator) resolve(raw string) (*config.Resolved, error) {
	return config.Resolve(raw, o.Presets)
}

// recipientsFor loads the encryption recipients named by a source's
// key-file option, honoring no-encryption.
func recipientsFor(opts *config.Resolved) ([]age.Recipient, error) {
	if opts.Has("no-encryption") {
		return nil, nil
	}
	keyFile := opts.Get("key-file", "")
	if keyFile == "" {
		return nil, ubackerr.Userf("source requires key-file= or no-encryption")
	}
	f, err := os.Open(keyFile)
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "opening key file", err)
	}
	defer f.Close()
	return keys.ParseRecipients(f)
}

// identityFor loads the decryption identity named by opts's key-file, for
// use during restore. A missing key-file is not an error here: a
// no-encryption container decodes without one.
func identityFor(opts *config.Resolved) ([]age.Identity, error) {
	keyFile := opts.Get("key-file", "")
	if keyFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "opening key file", err)
	}
	id, err := keys.ParseIdentity(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, err
	}
	return []age.Identity{id}, nil
}

// Backup implements the `backup` command: spec §4.8.
func (o *Orchestrator) Backup(ctx context.Context, srcRaw, dstRaw string, force, noPrune bool) (string, error) {
	srcOpts, err := o.resolve(srcRaw)
	if err != nil {
		return "", err
	}
	dstOpts, err := o.resolve(dstRaw)
	if err != nil {
		return "", err
	}

	src, err := source.New(srcOpts)
	if err != nil {
		return "", err
	}
	dst, err := destination.New(dstOpts)
	if err != nil {
		return "", err
	}

	stateFile := srcOpts.Get("state-file", "")
	if stateFile == "" {
		return "", ubackerr.Userf("source requires state-file=")
	}
	st, err := state.Load(stateFile)
	if err != nil {
		return "", err
	}
	dstID := dstOpts.Get("id", "default")
	last, hasLast := st[dstID]

	snap, err := o.allocateSnapshot(ctx, src, srcOpts)
	if err != nil {
		return "", err
	}

	full := force
	base := ""
	if !full {
		full, base, err = o.decideMode(ctx, src, dst, srcOpts, last, hasLast, snap)
		if err != nil {
			return "", err
		}
	}
	if full {
		base = ""
	}

	o.Log.Info().Str("snapshot", snap).Bool("full", full).Str("destination", dstID).Msg("starting backup")

	typ, stream, err := src.Stream(ctx, snap, base)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	recipients, err := recipientsFor(srcOpts)
	if err != nil {
		return "", err
	}

	backupID := buildBackupID(snap, base)
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(container.Encode(pw, typ, recipients, stream))
	}()

	if err := dst.Upload(ctx, backupID, pr); err != nil {
		return "", err
	}

	st[dstID] = snap
	if err := state.Save(stateFile, st); err != nil {
		return "", err
	}

	if !noPrune {
		if err := o.pruneAfterBackup(ctx, src, dst, dstOpts, st); err != nil {
			return "", err
		}
	}

	o.Log.Info().Str("backup_id", backupID).Msg("backup complete")
	return backupID, nil
}

// allocateSnapshot implements the reuse-snapshots rule: if the source's
// newest snapshot is younger than the configured window, it's reused
// instead of allocating a new one.
func (o *Orchestrator) allocateSnapshot(ctx context.Context, src source.Source, srcOpts *config.Resolved) (string, error) {
	window := srcOpts.Get("reuse-snapshots", "")
	if window != "" {
		dur, err := retention.ParseDuration(window)
		if err != nil {
			return "", err
		}
		snapshots, err := src.ListSnapshots(ctx)
		if err != nil {
			return "", err
		}
		if len(snapshots) > 0 {
			newest := maxString(snapshots)
			if ms, err := clock.ParseMillis(newest); err == nil {
				if time.Now().UnixMilli()-ms < dur.Milliseconds() {
					return newest, nil
				}
			}
		}
	}
	snap := o.Clock.Next()
	if err := src.CreateSnapshot(ctx, snap); err != nil {
		return "", err
	}
	return snap, nil
}

// decideMode implements step 4 of spec §4.8's backup algorithm: force
// aside, a backup is full if there's no prior state, the referenced
// snapshot is gone, the adapter can't do incrementals at all, or enough
// time has passed since the last full.
func (o *Orchestrator) decideMode(ctx context.Context, src source.Source, dst destination.Destination, srcOpts *config.Resolved, last string, hasLast bool, snap string) (full bool, base string, err error) {
	if !hasLast {
		return true, "", nil
	}
	snapshots, err := src.ListSnapshots(ctx)
	if err != nil {
		return false, "", err
	}
	if !contains(snapshots, last) {
		return true, "", nil
	}
	if !src.CanIncremental(last) {
		return true, "", nil
	}

	fullInterval := srcOpts.Get("full-interval", "")
	if fullInterval != "" {
		dur, err := retention.ParseDuration(fullInterval)
		if err != nil {
			return false, "", err
		}
		fullSnap, err := lastFullAncestor(ctx, dst, last)
		if err != nil {
			return false, "", err
		}
		if fullSnap != "" {
			fullMs, errF := clock.ParseMillis(fullSnap)
			snapMs, errS := clock.ParseMillis(snap)
			if errF == nil && errS == nil && snapMs-fullMs >= dur.Milliseconds() {
				return true, "", nil
			}
		}
	}
	return false, last, nil
}

// lastFullAncestor walks the destination's backup set from the Backup ID
// whose snap component is `snap` back to its full ancestor, returning
// that ancestor's own snap id ("" if snap isn't present at all).
func lastFullAncestor(ctx context.Context, dst destination.Destination, snap string) (string, error) {
	ids, err := dst.ListBackups(ctx)
	if err != nil {
		return "", err
	}
	bySnap := make(map[string]string, len(ids))
	for _, id := range ids {
		s, _, _ := parseBackupID(id)
		bySnap[s] = id
	}
	cur := snap
	for i := 0; i < len(ids)+1; i++ {
		id, ok := bySnap[cur]
		if !ok {
			return "", nil
		}
		s, base, full := parseBackupID(id)
		if full {
			return s, nil
		}
		cur = base
	}
	return "", ubackerr.New(ubackerr.KindChainBroken, "backup chain longer than the backup set; likely a cycle")
}

// pruneAfterBackup applies the automatic post-backup retention step
// (spec §4.8 step 8): source snapshots no longer referenced by state are
// deleted, and destination retention runs if a policy is configured.
func (o *Orchestrator) pruneAfterBackup(ctx context.Context, src source.Source, dst destination.Destination, dstOpts *config.Resolved, st state.State) error {
	if err := pruneUnreferencedSnapshots(ctx, src, st); err != nil {
		return err
	}
	policy := retentionPolicyOf(dstOpts)
	if policy == "" {
		return nil
	}
	return o.pruneDestination(ctx, dst, policy)
}

// retentionPolicyOf reads the `@retention-policy` list-valued option
// (spec §3: a retention policy is an ordered list of bucket/keep-count
// rules) and joins its elements back into retention.ParseRules' single
// comma-separated grammar.
func retentionPolicyOf(opts *config.Resolved) string {
	return strings.Join(opts.List("retention-policy"), ",")
}

func pruneUnreferencedSnapshots(ctx context.Context, src source.Source, st state.State) error {
	referenced := make(map[string]bool, len(st))
	for _, snap := range st {
		referenced[snap] = true
	}
	snapshots, err := src.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snapshots {
		if !referenced[snap] {
			if err := src.DeleteSnapshot(ctx, snap); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) pruneDestination(ctx context.Context, dst destination.Destination, policy string) error {
	rules, err := retention.ParseRules(policy)
	if err != nil {
		return err
	}
	ids, err := dst.ListBackups(ctx)
	if err != nil {
		return err
	}
	items := make([]retention.Item, 0, len(ids))
	for _, id := range ids {
		snap, base, full := parseBackupID(id)
		ms, err := clock.ParseMillis(snap)
		if err != nil {
			continue
		}
		items = append(items, retention.Item{
			ID:   id,
			Time: time.UnixMilli(ms).UTC(),
			Full: full,
			Base: backupIDFor(base, ids),
		})
	}
	kept := retention.Apply(items, rules)
	if err := retention.ValidateChain(items, kept); err != nil {
		return err
	}
	for _, id := range ids {
		if !kept[id] {
			if err := dst.Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// backupIDFor finds the Backup ID among ids whose snap component is
// baseSnap, so retention.Item.Base can name a full Backup ID rather than
// a bare snapshot id.
func backupIDFor(baseSnap string, ids []string) string {
	if baseSnap == "" {
		return ""
	}
	for _, id := range ids {
		snap, _, _ := parseBackupID(id)
		if snap == baseSnap {
			return id
		}
	}
	return ""
}

// Restore implements the `restore` command: spec §4.8. It walks
// backupID's ancestor chain back to its full, then replays every
// container from the full forward, each one's plaintext handed to the
// type-specific apply routine in restoreApply.
func (o *Orchestrator) Restore(ctx context.Context, dstRaw, backupID, dir, overrideRaw string) error {
	dstOpts, err := o.resolve(dstRaw)
	if err != nil {
		return err
	}
	dst, err := destination.New(dstOpts)
	if err != nil {
		return err
	}

	if backupID == "" {
		ids, err := dst.ListBackups(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return ubackerr.Userf("destination has no backups to restore")
		}
		backupID = maxString(ids)
	}

	identOpts := dstOpts
	if overrideRaw != "" {
		identOpts, err = o.resolve(overrideRaw)
		if err != nil {
			return err
		}
	}
	identities, err := identityFor(identOpts)
	if err != nil {
		return err
	}

	chain, err := resolveChain(ctx, dst, backupID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "creating restore directory", err)
	}

	for _, id := range chain {
		o.Log.Info().Str("backup_id", id).Msg("restoring")
		body, err := dst.Download(ctx, id)
		if err != nil {
			return err
		}
		typ, plain, err := container.Decode(body, identities)
		if err != nil {
			body.Close()
			return err
		}
		err = restoreApply(ctx, typ, plain, dir)
		body.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveChain walks backupID's Base pointers back to the nearest full,
// returning the chain ordered full-first so Restore can replay it in
// application order.
func resolveChain(ctx context.Context, dst destination.Destination, backupID string) ([]string, error) {
	ids, err := dst.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	if !present[backupID] {
		return nil, ubackerr.New(ubackerr.KindUser, "no such backup: "+backupID)
	}
	bySnap := make(map[string]string, len(ids))
	for _, id := range ids {
		s, _, _ := parseBackupID(id)
		bySnap[s] = id
	}

	var chain []string
	cur := backupID
	for i := 0; i < len(ids)+1; i++ {
		chain = append(chain, cur)
		snap, base, full := parseBackupID(cur)
		if full {
			reverse(chain)
			return chain, nil
		}
		next, ok := bySnap[base]
		if !ok {
			return nil, ubackerr.New(ubackerr.KindChainBroken, "backup "+snap+" depends on missing base "+base)
		}
		cur = next
	}
	return nil, ubackerr.New(ubackerr.KindChainBroken, "backup chain longer than the backup set; likely a cycle")
}

func reverse(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

// List implements `list snapshots|backups`.
func (o *Orchestrator) List(ctx context.Context, kind, raw string) ([]string, error) {
	opts, err := o.resolve(raw)
	if err != nil {
		return nil, err
	}
	var ids []string
	switch kind {
	case "snapshots":
		src, err := source.New(opts)
		if err != nil {
			return nil, err
		}
		ids, err = src.ListSnapshots(ctx)
		if err != nil {
			return nil, err
		}
	case "backups":
		dst, err := destination.New(opts)
		if err != nil {
			return nil, err
		}
		ids, err = dst.ListBackups(ctx)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ubackerr.Userf("unknown list target %q", kind)
	}
	sort.Strings(ids)
	return ids, nil
}

// Prune implements `prune snapshots|backups`.
func (o *Orchestrator) Prune(ctx context.Context, kind, raw string) error {
	opts, err := o.resolve(raw)
	if err != nil {
		return err
	}
	switch kind {
	case "snapshots":
		src, err := source.New(opts)
		if err != nil {
			return err
		}
		stateFile := opts.Get("state-file", "")
		st, err := state.Load(stateFile)
		if err != nil {
			return err
		}
		return pruneUnreferencedSnapshots(ctx, src, st)
	case "backups":
		dst, err := destination.New(opts)
		if err != nil {
			return err
		}
		policy := retentionPolicyOf(opts)
		if policy == "" {
			return ubackerr.Userf("prune backups requires retention-policy= on the destination")
		}
		return o.pruneDestination(ctx, dst, policy)
	default:
		return ubackerr.Userf("unknown prune target %q", kind)
	}
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func maxString(ss []string) string {
	max := ss[0]
	for _, s := range ss[1:] {
		if s > max {
			max = s
		}
	}
	return max
}
