// Package source defines the source adapter contract from spec §4.6 and
// a registry of built-in adapter constructors, in the same open-registry
// style database/sql drivers use: each built-in package registers itself
// from an init func, and the orchestrator only needs a blank import to
// make a `type=` value available.
package source

import (
	"context"
	"io"

	"uback/internal/config"
	"uback/internal/ubackerr"
)

// Source is the capability set every source adapter — in-process or a
// command/proxy stand-in — must implement.
type Source interface {
	// CreateSnapshot materializes a consistent point-in-time view tagged id.
	CreateSnapshot(ctx context.Context, id string) error
	// ListSnapshots returns every snapshot ID the source currently retains.
	ListSnapshots(ctx context.Context) ([]string, error)
	// DeleteSnapshot removes a previously created snapshot.
	DeleteSnapshot(ctx context.Context, id string) error
	// Stream returns the container type tag and a plaintext stream for
	// snap. If base is non-empty, the stream is an incremental relative
	// to base.
	Stream(ctx context.Context, snap, base string) (string, io.ReadCloser, error)
	// CanIncremental reports whether this adapter can produce a stream
	// incremental against base.
	CanIncremental(base string) bool
	// Schema enumerates the option keys this adapter recognizes.
	Schema() config.Schema
}

// Factory constructs a Source from its resolved options.
type Factory func(opts *config.Resolved) (Source, error)

var registry = map[string]Factory{}

// Register adds a built-in adapter under the given `type=` discriminator.
// Called from built-in adapter packages' init funcs.
func Register(typ string, f Factory) {
	registry[typ] = f
}

// New looks up and constructs the adapter named by opts's `type` key.
func New(opts *config.Resolved) (Source, error) {
	typ := opts.Get("type", "")
	f, ok := registry[typ]
	if !ok {
		return nil, ubackerr.Userf("unknown source type %q", typ)
	}
	return f(opts)
}
