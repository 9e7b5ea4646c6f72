package durability

import (
	"bufio"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/cuemby/monarch/internal/monerr"
)

// ArchiveStore holds WAL entries moved out of the live journal once they
// age past the configured archival cutoff; recovery still considers them
// (spec.md §4.8 "Archival").
type ArchiveStore struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenArchiveStore opens (creating if needed) the archive file at path.
func OpenArchiveStore(path string) (*ArchiveStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, monerr.IO("open archive store: %v", err).Wrap(err)
	}
	return &ArchiveStore{path: path, file: f}, nil
}

// Append copies entries into the archive, in order.
func (a *ArchiveStore) Append(entries []Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := bufio.NewWriter(a.file)
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return monerr.IO("marshal archive entry: %v", err).Wrap(err)
		}
		if _, err := w.Write(line); err != nil {
			return monerr.IO("write archive entry: %v", err).Wrap(err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return monerr.IO("write archive entry: %v", err).Wrap(err)
		}
	}
	if err := w.Flush(); err != nil {
		return monerr.IO("flush archive store: %v", err).Wrap(err)
	}
	return nil
}

// Entries returns every archived entry.
func (a *ArchiveStore) Entries() ([]Entry, error) {
	return ReadEntries(a.path)
}

// Close releases the underlying file.
func (a *ArchiveStore) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
