package adapter

import (
	"context"
	"sync"

	"github.com/cuemby/monarch/internal/monerr"
)

// MemoryAdapter keeps the latest blob in a process-local buffer. Useful
// for tests and for callers that want durability-layer semantics (save/
// load) without touching disk.
type MemoryAdapter struct {
	mu   sync.Mutex
	blob []byte
}

// NewMemoryAdapter constructs an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

// Save stores a copy of blob, refusing anything over MaxBlobSize.
func (a *MemoryAdapter) Save(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return monerr.Timeout("save cancelled: %v", err)
	}
	if len(blob) > MaxBlobSize {
		return monerr.ResourceLimit("blob of %d bytes exceeds the %d byte limit", len(blob), MaxBlobSize)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blob = append([]byte(nil), blob...)
	return nil
}

// Load returns a copy of the last saved blob, or nil if nothing has been
// saved yet.
func (a *MemoryAdapter) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, monerr.Timeout("load cancelled: %v", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), a.blob...), nil
}
