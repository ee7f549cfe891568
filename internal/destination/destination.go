// Package destination defines the destination adapter contract from
// spec §4.7 and a registry of built-in adapter constructors, mirroring
// package source's open-registry style.
package destination

import (
	"context"
	"io"

	"uback/internal/config"
	"uback/internal/ubackerr"
)

// Destination is the capability set every destination adapter must
// implement.
type Destination interface {
	// ListBackups returns every Backup ID present at this destination.
	ListBackups(ctx context.Context) ([]string, error)
	// Upload writes container under id. Atomic: either the full object
	// becomes visible under exactly its final name, or not at all.
	Upload(ctx context.Context, id string, container io.Reader) error
	// Download returns a reader over the container stored under id.
	Download(ctx context.Context, id string) (io.ReadCloser, error)
	// Delete removes the backup stored under id.
	Delete(ctx context.Context, id string) error
	// Schema enumerates the option keys this adapter recognizes.
	Schema() config.Schema
}

// Factory constructs a Destination from its resolved options.
type Factory func(opts *config.Resolved) (Destination, error)

var registry = map[string]Factory{}

// Register adds a built-in adapter under the given `type=` discriminator.
func Register(typ string, f Factory) {
	registry[typ] = f
}

// New looks up and constructs the adapter named by opts's `type` key.
func New(opts *config.Resolved) (Destination, error) {
	typ := opts.Get("type", "")
	f, ok := registry[typ]
	if !ok {
		return nil, ubackerr.Userf("unknown destination type %q", typ)
	}
	return f(opts)
}
