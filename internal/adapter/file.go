package adapter

import (
	"context"
	"os"
	"strings"

	"github.com/cuemby/monarch/internal/monerr"
)

// FileAdapter persists one blob at a fixed filesystem path.
type FileAdapter struct {
	path string
}

// NewFileAdapter constructs a FileAdapter, rejecting paths containing ".."
// or a NUL byte up front (spec.md §6 path safety).
func NewFileAdapter(path string) (*FileAdapter, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	return &FileAdapter{path: path}, nil
}

func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return monerr.Validation("path %q must not contain \"..\"", path)
	}
	if strings.ContainsRune(path, 0) {
		return monerr.Validation("path must not contain a NUL byte")
	}
	return nil
}

// Save writes blob to the adapter's path, refusing anything over
// MaxBlobSize (spec.md §6).
func (a *FileAdapter) Save(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return monerr.Timeout("save cancelled: %v", err)
	}
	if len(blob) > MaxBlobSize {
		return monerr.ResourceLimit("blob of %d bytes exceeds the %d byte limit", len(blob), MaxBlobSize)
	}
	if err := os.WriteFile(a.path, blob, 0o600); err != nil {
		return monerr.IO("write %s: %v", a.path, err).Wrap(err)
	}
	return nil
}

// Load returns the blob at the adapter's path, or an empty blob if the
// file does not exist (spec.md §6 "return an empty state for a missing
// file").
func (a *FileAdapter) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, monerr.Timeout("load cancelled: %v", err)
	}
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, monerr.IO("read %s: %v", a.path, err).Wrap(err)
	}
	if len(data) > MaxBlobSize {
		return nil, monerr.ResourceLimit("stored blob of %d bytes exceeds the %d byte limit", len(data), MaxBlobSize)
	}
	return data, nil
}
