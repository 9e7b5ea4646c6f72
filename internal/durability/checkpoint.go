package durability

import (
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/record"
)

var (
	bucketCheckpoints = []byte("checkpoints")
	bucketMeta        = []byte("meta")
)

// CheckpointMeta identifies a checkpoint and the WAL position it is
// consistent with (spec.md §4.8).
type CheckpointMeta struct {
	ID          string
	Timestamp   int64
	WALPosition int64
}

// Checkpoint is a single point-in-time blob: every collection's records,
// keyed by collection name then record id (spec.md §6 snapshot format).
type Checkpoint struct {
	Meta        CheckpointMeta
	Collections map[string]map[string]record.Record
}

// CheckpointStore persists checkpoints in a bbolt file, one bucket for the
// blobs and one for the id->timestamp index used to prune and to locate
// the checkpoint nearest a point in time. Modeled on the teacher's
// BoltStore bucket-per-entity layout.
type CheckpointStore struct {
	mu   sync.Mutex
	db   *bolt.DB
	keep int
}

// OpenCheckpointStore opens (creating if needed) the checkpoint file at
// path, retaining at most keep checkpoints (spec.md §4.8 default 10).
func OpenCheckpointStore(path string, keep int) (*CheckpointStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, monerr.IO("open checkpoint store: %v", err).Wrap(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCheckpoints); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, monerr.IO("init checkpoint store: %v", err).Wrap(err)
	}
	if keep <= 0 {
		keep = 10
	}
	return &CheckpointStore{db: db, keep: keep}, nil
}

// Persist writes cp and prunes anything beyond the retention limit.
func (s *CheckpointStore) Persist(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(cp)
	if err != nil {
		return monerr.IO("marshal checkpoint: %v", err).Wrap(err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketCheckpoints).Put([]byte(cp.Meta.ID), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMeta).Put([]byte(cp.Meta.ID), []byte(strconv.FormatInt(cp.Meta.Timestamp, 10))); err != nil {
			return err
		}
		return s.pruneLocked(tx)
	})
}

func (s *CheckpointStore) pruneLocked(tx *bolt.Tx) error {
	type item struct {
		id string
		ts int64
	}
	var items []item
	meta := tx.Bucket(bucketMeta)
	if err := meta.ForEach(func(k, v []byte) error {
		ts, _ := strconv.ParseInt(string(v), 10, 64)
		items = append(items, item{id: string(k), ts: ts})
		return nil
	}); err != nil {
		return err
	}
	if len(items) <= s.keep {
		return nil
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ts < items[j].ts })

	checkpoints := tx.Bucket(bucketCheckpoints)
	for _, it := range items[:len(items)-s.keep] {
		if err := checkpoints.Delete([]byte(it.id)); err != nil {
			return err
		}
		if err := meta.Delete([]byte(it.id)); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recent checkpoint, if any.
func (s *CheckpointStore) Latest() (Checkpoint, bool, error) {
	return s.atOrBefore(1<<62 - 1)
}

// AtOrBefore returns the latest checkpoint whose snapshot time is <= t,
// used for point-in-time recovery (spec.md §4.8).
func (s *CheckpointStore) AtOrBefore(t time.Time) (Checkpoint, bool, error) {
	return s.atOrBefore(t.UnixMilli())
}

func (s *CheckpointStore) atOrBefore(maxTS int64) (Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bestID := ""
	bestTS := int64(-1)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			ts, _ := strconv.ParseInt(string(v), 10, 64)
			if ts <= maxTS && ts > bestTS {
				bestTS = ts
				bestID = string(k)
			}
			return nil
		})
	})
	if err != nil {
		return Checkpoint{}, false, monerr.IO("scan checkpoints: %v", err).Wrap(err)
	}
	if bestID == "" {
		return Checkpoint{}, false, nil
	}

	var cp Checkpoint
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCheckpoints).Get([]byte(bestID))
		if data == nil {
			return monerr.Integrity("checkpoint %s has no stored blob", bestID)
		}
		return json.Unmarshal(data, &cp)
	})
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// Close releases the underlying bbolt file.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
