// Package durability implements the write-ahead log, checkpoint store,
// recovery and archival manager described in spec.md §4.8: every mutation
// is journalled before it is applied, periodic checkpoints bound replay
// time, and a crashed instance recovers by loading the latest checkpoint
// and replaying whatever the WAL recorded after it. Modeled on the
// teacher's pkg/manager/fsm.go Command{Op,Data} shape and Apply/Snapshot/
// Restore cycle, with Raft itself dropped (single-node, no consensus).
package durability

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/record"
)

// SyncLevel controls how aggressively the WAL flushes buffered entries to
// disk (spec.md §4.8).
type SyncLevel string

const (
	SyncLow     SyncLevel = "low"
	SyncMedium  SyncLevel = "medium"
	SyncHigh    SyncLevel = "high"
	SyncMaximum SyncLevel = "maximum"
)

// interval returns the periodic flush interval for low/medium levels; high
// and maximum flush per-operation instead (interval 0 disables the ticker).
func (s SyncLevel) interval() time.Duration {
	switch s {
	case SyncLow:
		return time.Second
	case SyncMedium:
		return 100 * time.Millisecond
	default:
		return 0
	}
}

// Entry is one WAL record (spec.md §6 WAL record format). id, timestamp,
// operation, collection, data and checksum follow the spec's declared
// order and Go's struct-field JSON marshaling preserves it on the wire.
// Position is an additional, internal-only field: the WAL's monotonic
// append sequence number, used to compare an entry against a checkpoint's
// recorded WALPosition during recovery. It is not part of the checksummed
// payload.
type Entry struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	Operation  string `json:"operation"`
	Collection string `json:"collection,omitempty"`
	Data       any    `json:"data"`
	Checksum   string `json:"checksum"`
	Position   int64  `json:"position"`
}

// checksum computes a hex-encoded 64-bit hash over the canonicalised first
// five fields (spec.md §6). The payload is canonicalised into a
// structpb.Struct and marshaled with deterministic field ordering so the
// same logical entry always hashes to the same bytes.
func checksum(id string, timestamp int64, operation, collection string, data any) (string, error) {
	payload := canonicalize(map[string]any{
		"id":         id,
		"timestamp":  timestamp,
		"operation":  operation,
		"collection": collection,
		"data":       data,
	})
	st, err := structpb.NewStruct(payload)
	if err != nil {
		return "", monerr.Integrity("canonicalise wal entry: %v", err).Wrap(err)
	}
	bytes, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return "", monerr.Integrity("marshal wal checksum payload: %v", err).Wrap(err)
	}
	return hex.EncodeToString(uint64ToBytes(xxhash.Sum64(bytes))), nil
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func verifyChecksum(e Entry) bool {
	sum, err := checksum(e.ID, e.Timestamp, e.Operation, e.Collection, e.Data)
	if err != nil {
		return false
	}
	return sum == e.Checksum
}

// canonicalize converts a Go value tree into the primitive shapes
// structpb.NewStruct accepts (nil, bool, float64, string, []any,
// map[string]any), coercing int64/time.Time the way record values appear
// in practice. Unrecognised concrete types fall back to their %v string.
func canonicalize(v any) map[string]any {
	out, _ := canonicalizeValue(v).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func canonicalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case record.Record:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = canonicalizeValue(vv)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = canonicalizeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = canonicalizeValue(vv)
		}
		return out
	case bool:
		return t
	case string:
		return t
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// WAL is an append-only, newline-delimited JSON journal guarded by a
// sibling lock file so two instances never share one WAL (spec.md §5
// shared-resource policy).
type WAL struct {
	mu       sync.Mutex
	path     string
	lockPath string
	file     *os.File
	writer   *bufio.Writer
	sync     SyncLevel
	// position is the monotonic entry sequence counter: it only increases,
	// even across archival rewrites, so it stays comparable to a
	// checkpoint's recorded WALPosition after a restart (spec.md §4.8).
	position int64

	idAlloc func() string
	nowFn   func() time.Time
	log     zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenWAL opens (creating if needed) the journal at path and starts its
// background flush loop, if the sync level calls for one.
func OpenWAL(path string, level SyncLevel, log zerolog.Logger) (*WAL, error) {
	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, monerr.Conflict("wal %s is already locked by another instance", path)
		}
		return nil, monerr.IO("create wal lock: %v", err).Wrap(err)
	}
	lockFile.Close()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		os.Remove(lockPath)
		return nil, monerr.IO("open wal: %v", err).Wrap(err)
	}

	w := &WAL{
		path:     path,
		lockPath: lockPath,
		file:     f,
		writer:   bufio.NewWriter(f),
		sync:     level,
		idAlloc:  func() string { return uuid.New().String() },
		nowFn:    time.Now,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if interval := level.interval(); interval > 0 {
		go w.flushLoop(interval)
	} else {
		close(w.doneCh)
	}
	return w, nil
}

func (w *WAL) flushLoop(interval time.Duration) {
	defer close(w.doneCh)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := w.Flush(); err != nil {
				w.log.Warn().Err(err).Msg("periodic wal flush failed")
			}
		case <-w.stopCh:
			return
		}
	}
}

// Append journals one operation. It implements collection.WALWriter.
// High and maximum sync levels flush (and maximum fsyncs) before
// returning; low and medium rely on the background flush loop.
func (w *WAL) Append(operation, collection string, data any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := w.nowFn().UnixMilli()
	id := w.idAlloc()
	sum, err := checksum(id, ts, operation, collection, data)
	if err != nil {
		return err
	}
	w.position++
	e := Entry{ID: id, Timestamp: ts, Operation: operation, Collection: collection, Data: data, Checksum: sum, Position: w.position}

	line, err := json.Marshal(e)
	if err != nil {
		return monerr.IO("marshal wal entry: %v", err).Wrap(err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return monerr.IO("write wal entry: %v", err).Wrap(err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return monerr.IO("write wal entry: %v", err).Wrap(err)
	}

	if w.sync == SyncHigh || w.sync == SyncMaximum {
		return w.flushLocked(w.sync == SyncMaximum)
	}
	return nil
}

// Flush forces buffered entries to disk.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(false)
}

func (w *WAL) flushLocked(fsync bool) error {
	if err := w.writer.Flush(); err != nil {
		return monerr.IO("flush wal: %v", err).Wrap(err)
	}
	if fsync {
		if err := w.file.Sync(); err != nil {
			return monerr.IO("fsync wal: %v", err).Wrap(err)
		}
	}
	return nil
}

// Position reports the WAL's current monotonic entry sequence number: the
// Position assigned to the most recently appended entry, or 0 if none has
// been appended yet in this process (before SeedPosition restores it after
// a restart).
func (w *WAL) Position() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

// SeedPosition resumes the monotonic sequence counter at n if n is larger
// than the counter's current value. The durability manager calls this once
// at open time, after reading the existing WAL, archive and checkpoint
// state, so entry positions stay comparable across a process restart.
func (w *WAL) SeedPosition(n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n > w.position {
		w.position = n
	}
}

// rewrite atomically replaces the live WAL's contents, used by archival to
// drop entries that have been copied into the archive store. It does not
// touch the monotonic position counter: entries being rewritten keep the
// Position they were originally assigned, and the counter itself must keep
// counting forward regardless of how many old entries were just dropped.
func (w *WAL) rewrite(entries []Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return monerr.IO("flush wal before rewrite: %v", err).Wrap(err)
	}
	if err := w.file.Close(); err != nil {
		return monerr.IO("close wal before rewrite: %v", err).Wrap(err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return monerr.IO("reopen wal for rewrite: %v", err).Wrap(err)
	}
	bw := bufio.NewWriter(f)
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			f.Close()
			return monerr.IO("marshal wal entry: %v", err).Wrap(err)
		}
		if _, err := bw.Write(line); err != nil {
			f.Close()
			return monerr.IO("write wal entry: %v", err).Wrap(err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			f.Close()
			return monerr.IO("write wal entry: %v", err).Wrap(err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return monerr.IO("flush rewritten wal: %v", err).Wrap(err)
	}

	w.file = f
	w.writer = bw
	return nil
}

// Close flushes, fsyncs, and releases the lock file.
func (w *WAL) Close() error {
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	err := w.flushLocked(true)
	closeErr := w.file.Close()
	w.mu.Unlock()

	os.Remove(w.lockPath)
	if err != nil {
		return err
	}
	return closeErr
}

// ReadEntries reads every entry from a WAL or archive file in file order.
// A missing file yields no entries and no error; a malformed line is
// skipped (spec.md §7 "integrity errors during recovery cause the
// offending entry to be skipped with a diagnostic").
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, monerr.IO("open %s for replay: %v", path, err).Wrap(err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, monerr.IO("scan %s: %v", path, err).Wrap(err)
	}
	return entries, nil
}
