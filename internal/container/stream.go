package container

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/monarch/internal/monerr"
)

// streamEntry is one `(id, fields)` record in a stream.
type streamEntry struct {
	ID     string
	Millis int64
	Seq    int64
	Fields map[string]any
}

// stream holds entries in strictly non-decreasing id order (spec.md §3,
// §8 invariant 4).
type stream struct {
	entries    []streamEntry
	lastMillis int64
	lastSeq    int64
	nowFn      func() time.Time
}

func newStream() *stream {
	return &stream{nowFn: time.Now}
}

// parseStreamID splits "millis-seq" into its parts.
func parseStreamID(id string) (int64, int64, error) {
	parts := strings.SplitN(id, "-", 2)
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, monerr.Validation("stream id %q: invalid millis component", id)
	}
	if len(parts) == 1 {
		return millis, 0, nil
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, monerr.Validation("stream id %q: invalid sequence component", id)
	}
	return millis, seq, nil
}

func compareStreamID(millisA, seqA, millisB, seqB int64) int {
	switch {
	case millisA < millisB:
		return -1
	case millisA > millisB:
		return 1
	case seqA < seqB:
		return -1
	case seqA > seqB:
		return 1
	default:
		return 0
	}
}

// XAdd appends an entry. id == "*" auto-assigns "<millis>-<sequence>" where
// sequence counts prior entries sharing that millisecond (spec.md §4.5);
// an explicit id must be strictly greater than the current last id.
func (st *stream) XAdd(id string, fields map[string]any) (string, error) {
	var millis, seq int64
	if id == "*" || id == "" {
		millis = st.nowFn().UnixMilli()
		if millis < st.lastMillis {
			millis = st.lastMillis
		}
		if millis == st.lastMillis {
			seq = st.lastSeq + 1
		} else {
			seq = 0
		}
	} else {
		var err error
		millis, seq, err = parseStreamID(id)
		if err != nil {
			return "", err
		}
		if len(st.entries) > 0 && compareStreamID(millis, seq, st.lastMillis, st.lastSeq) <= 0 {
			return "", monerr.Validation("stream id %q is not greater than the last id %d-%d", id, st.lastMillis, st.lastSeq)
		}
	}

	entryID := fmt.Sprintf("%d-%d", millis, seq)
	st.entries = append(st.entries, streamEntry{ID: entryID, Millis: millis, Seq: seq, Fields: fields})
	st.lastMillis = millis
	st.lastSeq = seq
	return entryID, nil
}

func (st *stream) Len() int { return len(st.entries) }

// XRange returns entries with id in [start,end] inclusive; "-" and "+"
// denote the stream's true bounds.
func (st *stream) XRange(start, end string) []streamEntry {
	var startMillis, startSeq int64 = -1, -1
	if start != "-" {
		var ok bool
		startMillis, startSeq, ok = parseIDOrSentinel(start)
		if !ok {
			return nil
		}
	}
	endMillis, endSeq := int64(1<<62), int64(1<<62)
	if end != "+" {
		var ok bool
		endMillis, endSeq, ok = parseIDOrSentinel(end)
		if !ok {
			return nil
		}
	}

	var out []streamEntry
	for _, e := range st.entries {
		if compareStreamID(e.Millis, e.Seq, startMillis, startSeq) < 0 {
			continue
		}
		if compareStreamID(e.Millis, e.Seq, endMillis, endSeq) > 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

func parseIDOrSentinel(id string) (int64, int64, bool) {
	millis, seq, err := parseStreamID(id)
	if err != nil {
		return 0, 0, false
	}
	return millis, seq, true
}

// TrimMaxLen keeps only the newest maxlen entries, removing from the head.
func (st *stream) TrimMaxLen(maxlen int) int {
	if maxlen < 0 || len(st.entries) <= maxlen {
		return 0
	}
	removed := len(st.entries) - maxlen
	st.entries = append([]streamEntry(nil), st.entries[removed:]...)
	return removed
}

// TrimMinID removes entries with id strictly less than bound.
func (st *stream) TrimMinID(bound string) (int, error) {
	millis, seq, err := parseStreamID(bound)
	if err != nil {
		return 0, err
	}
	cut := 0
	for cut < len(st.entries) && compareStreamID(st.entries[cut].Millis, st.entries[cut].Seq, millis, seq) < 0 {
		cut++
	}
	st.entries = append([]streamEntry(nil), st.entries[cut:]...)
	return cut, nil
}
