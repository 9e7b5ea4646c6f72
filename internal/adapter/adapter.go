// Package adapter implements the persistence adapter contract of spec.md
// §6: an opaque save(blob)/load() pair the facade's single-blob
// persistence mode uses instead of WAL-based durability. spec.md §1 lists
// "persistence adapter implementations" as something the core engine
// merely invokes rather than depends on; these two adapters are the
// reference implementations that contract describes, consumed by the root
// facade's Save/Load single-blob mode and by the CLI.
package adapter

import "context"

// MaxBlobSize is the largest blob an adapter will accept (spec.md §6:
// "refuse blobs > 100 MiB").
const MaxBlobSize = 100 << 20

// Adapter is the persistence adapter contract: save persists an opaque
// blob, load returns the most recently saved one (or an empty blob if
// nothing has been saved yet).
type Adapter interface {
	Save(ctx context.Context, blob []byte) error
	Load(ctx context.Context) ([]byte, error)
}
