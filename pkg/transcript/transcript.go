// Package transcript keeps one ordered, de-duplicated chat transcript per
// lecture out of three sources:
//
//  1. Local (optimistic) entries, shown as soon as the user hits send.
//  2. Remote entries delivered by the room transport (at-least-once, unordered).
//  3. Store entries, the authoritative persisted copies.
//
// A Transcript is a value. Every operation returns a new Transcript and
// leaves the receiver untouched, so the owner (classroom.Session) decides
// when to swap its reference and tests can compare before/after freely.
//
// Matching is exact whenever the incoming copy carries a correlation id:
// the sender generates one per send and both the relayed event and the
// store record keep it. Only copies without one (older peers) fall back to
// a fingerprint of sender, text and a coarse timestamp bucket, and then
// only against optimistic entries still waiting for their store copy.
//
// The store snapshot is authoritative for everything it contains, but it
// lags the transport: a peer line can arrive over the socket before the
// peer's own store write lands, and "unable to transcribe" lines are
// never written at all. Resync therefore rebuilds from the snapshot and
// then re-merges every entry that has no store id yet and that the
// snapshot does not account for.
package transcript

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Origin tells Merge where an incoming message came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
	OriginStore
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginStore:
		return "store"
	default:
		return "unknown"
	}
}

// DefaultBucket is the width of the coarse timestamp used in fingerprints.
const DefaultBucket = 5 * time.Second

// Message is one chat line.
//
// ID is assigned by the store and is empty until the message is persisted.
// CorrelationID is generated by the sender at emit time and travels with
// both the transport event and the store record, which makes matching an
// optimistic entry with its confirmed copy exact.
type Message struct {
	ID            string    `json:"id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Room          string    `json:"room"`
	LectureID     string    `json:"lecture_id,omitempty"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
}

// Fingerprint is the non-authoritative key used when a peer payload lacks a
// correlation id: same sender, same text, neighbouring timestamp buckets.
type Fingerprint struct {
	SenderID string
	Text     string
	Bucket   int64
}

// FingerprintOf derives the fingerprint of m with the given bucket width.
func FingerprintOf(m Message, bucket time.Duration) Fingerprint {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return Fingerprint{
		SenderID: m.SenderID,
		Text:     strings.TrimSpace(m.Text),
		Bucket:   m.Timestamp.UnixNano() / int64(bucket),
	}
}

// Matches reports whether two fingerprints describe the same logical message.
// Adjacent buckets match so a send at 4.9s and a relay stamped 5.1s still pair.
func (f Fingerprint) Matches(o Fingerprint) bool {
	if f.SenderID != o.SenderID || f.Text != o.Text {
		return false
	}
	d := f.Bucket - o.Bucket
	return d >= -1 && d <= 1
}

// marker is a pending-confirmation record for an optimistic entry.
type marker struct {
	fp          Fingerprint
	correlation string
}

// Transcript is the merged message list plus its pending markers.
// The zero value is an empty transcript using DefaultBucket.
type Transcript struct {
	entries []Message
	pending []marker
	bucket  time.Duration
}

// New returns an empty transcript with the given fingerprint bucket.
func New(bucket time.Duration) Transcript {
	return Transcript{bucket: bucket}
}

// FromHistory builds a transcript from store records. Duplicate ids collapse
// into one entry; the result is ordered by timestamp.
func FromHistory(records []Message) Transcript {
	sorted := append([]Message(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	t := New(DefaultBucket)
	for _, rec := range sorted {
		t = t.Merge(rec, OriginStore)
	}
	return t
}

// Entries returns a copy of the ordered entries.
func (t Transcript) Entries() []Message {
	return append([]Message(nil), t.entries...)
}

// Len returns the number of entries.
func (t Transcript) Len() int { return len(t.entries) }

// PendingCount returns how many optimistic entries still wait for a store id.
func (t Transcript) PendingCount() int { return len(t.pending) }

// Merge folds one incoming message into the transcript.
//
// Rules, in order:
//   - id set and already present: replace that entry (edit).
//   - correlation id already present: same logical message, adopt new fields.
//   - local origin without id: append optimistically, remember a marker.
//   - remote/store origin without correlation id matching a marker by
//     fingerprint: keep the single optimistic entry.
//   - anything else: insert by timestamp.
//
// A message with neither id nor text is malformed and skipped.
func (t Transcript) Merge(in Message, origin Origin) Transcript {
	if in.ID == "" && strings.TrimSpace(in.Text) == "" {
		return t
	}

	out := t.clone()

	if in.ID != "" {
		if i := out.indexByID(in.ID); i >= 0 {
			out.entries[i] = replace(out.entries[i], in)
			out.release(out.entries[i].CorrelationID)
			return out
		}
	}

	if in.CorrelationID != "" {
		if i := out.indexByCorrelation(in.CorrelationID); i >= 0 {
			out.entries[i] = adopt(out.entries[i], in)
			if out.entries[i].ID != "" {
				out.release(in.CorrelationID)
			}
			return out
		}
	}

	if origin == OriginLocal && in.ID == "" {
		if in.CorrelationID == "" {
			in.CorrelationID = uuid.NewString()
		}
		out.insert(in)
		out.pending = append(out.pending, marker{
			fp:          FingerprintOf(in, out.bucket),
			correlation: in.CorrelationID,
		})
		return out
	}

	if origin != OriginLocal && in.CorrelationID == "" {
		fp := FingerprintOf(in, out.bucket)
		for k, m := range out.pending {
			if !m.fp.Matches(fp) {
				continue
			}
			i := out.indexByCorrelation(m.correlation)
			if i < 0 {
				continue
			}
			out.entries[i] = adopt(out.entries[i], in)
			if out.entries[i].ID != "" {
				out.pending = append(out.pending[:k], out.pending[k+1:]...)
			}
			return out
		}
	}

	out.insert(in)
	return out
}

// Remove drops the entry with the given id. An unknown id is a no-op.
func (t Transcript) Remove(id string) Transcript {
	if id == "" {
		return t
	}
	i := t.indexByID(id)
	if i < 0 {
		return t
	}

	out := t.clone()
	removed := out.entries[i]
	out.entries = append(out.entries[:i], out.entries[i+1:]...)
	out.release(removed.CorrelationID)
	return out
}

// RemoveCorrelated drops the entry carrying correlation. Peers that only
// received the relayed copy of a message know it by correlation id alone.
func (t Transcript) RemoveCorrelated(correlation string) Transcript {
	if correlation == "" {
		return t
	}
	i := t.indexByCorrelation(correlation)
	if i < 0 {
		return t
	}

	out := t.clone()
	out.entries = append(out.entries[:i], out.entries[i+1:]...)
	out.release(correlation)
	return out
}

// Edit replaces the text of the entry with the given id, keeping its id and
// timestamp. An unknown id is a no-op, so re-applying an edit changes nothing.
func (t Transcript) Edit(id, text string) Transcript {
	if id == "" || strings.TrimSpace(text) == "" {
		return t
	}
	i := t.indexByID(id)
	if i < 0 || t.entries[i].Text == text {
		return t
	}

	out := t.clone()
	out.entries[i].Text = text
	return out
}

// Resync rebuilds the transcript from a fresh store snapshot. Used after a
// transport reconnect, when no backlog is replayed, and when a lecture's
// history arrives.
//
// Entries with a store id are replaced by the snapshot. Entries without
// one, optimistic or relayed, survive unless the snapshot holds their
// copy: by correlation id when they carry one, by fingerprint otherwise.
// Optimistic entries that survive stay pending.
func (t Transcript) Resync(records []Message) Transcript {
	fresh := FromHistory(records)
	fresh.bucket = t.bucket

	for _, e := range t.entries {
		if e.ID != "" {
			continue
		}
		if e.CorrelationID != "" {
			if fresh.indexByCorrelation(e.CorrelationID) >= 0 {
				continue
			}
		} else if fresh.hasFingerprint(FingerprintOf(e, fresh.bucket)) {
			continue
		}

		if t.isPending(e.CorrelationID) {
			fresh = fresh.Merge(e, OriginLocal)
		} else {
			fresh = fresh.Merge(e, OriginRemote)
		}
	}
	return fresh
}

// Summarized re-tags summarizer output with the current wall-clock time.
// The summarizer drops per-message timing, so this view is lossy and one-way:
// callers keep the raw Transcript around to restore the full list.
func Summarized(texts []string, now time.Time) []Message {
	out := make([]Message, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, Message{Text: text, Timestamp: now})
	}
	return out
}

// ─── helpers ───

func (t Transcript) clone() Transcript {
	return Transcript{
		entries: append([]Message(nil), t.entries...),
		pending: append([]marker(nil), t.pending...),
		bucket:  t.bucket,
	}
}

func (t Transcript) indexByID(id string) int {
	for i := range t.entries {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (t Transcript) indexByCorrelation(correlation string) int {
	for i := range t.entries {
		if t.entries[i].CorrelationID == correlation {
			return i
		}
	}
	return -1
}

func (t Transcript) isPending(correlation string) bool {
	if correlation == "" {
		return false
	}
	for _, m := range t.pending {
		if m.correlation == correlation {
			return true
		}
	}
	return false
}

func (t Transcript) hasFingerprint(fp Fingerprint) bool {
	for _, e := range t.entries {
		if e.ID != "" && FingerprintOf(e, t.bucket).Matches(fp) {
			return true
		}
	}
	return false
}

// insert keeps entries ordered by timestamp; equal timestamps keep arrival
// order and entries without a timestamp go last.
func (t *Transcript) insert(m Message) {
	if m.Timestamp.IsZero() {
		t.entries = append(t.entries, m)
		return
	}
	j := sort.Search(len(t.entries), func(k int) bool {
		return t.entries[k].Timestamp.After(m.Timestamp)
	})
	t.entries = append(t.entries, Message{})
	copy(t.entries[j+1:], t.entries[j:])
	t.entries[j] = m
}

func (t *Transcript) release(correlation string) {
	if correlation == "" {
		return
	}
	kept := t.pending[:0]
	for _, m := range t.pending {
		if m.correlation != correlation {
			kept = append(kept, m)
		}
	}
	t.pending = kept
}

// replace applies an id-matched update: incoming fields win, but an absent
// correlation id or timestamp does not erase the known one.
func replace(cur, in Message) Message {
	if in.CorrelationID == "" {
		in.CorrelationID = cur.CorrelationID
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = cur.Timestamp
	}
	if in.Room == "" {
		in.Room = cur.Room
	}
	if in.LectureID == "" {
		in.LectureID = cur.LectureID
	}
	if in.SenderID == "" {
		in.SenderID = cur.SenderID
	}
	if in.SenderName == "" {
		in.SenderName = cur.SenderName
	}
	return in
}

// adopt merges a confirmation into an optimistic entry. The entry keeps its
// position and timestamp; it only gains the persisted id and missing fields.
func adopt(cur, in Message) Message {
	if in.ID != "" {
		cur.ID = in.ID
	}
	if cur.CorrelationID == "" {
		cur.CorrelationID = in.CorrelationID
	}
	if cur.LectureID == "" {
		cur.LectureID = in.LectureID
	}
	if cur.SenderName == "" {
		cur.SenderName = in.SenderName
	}
	if cur.Timestamp.IsZero() {
		cur.Timestamp = in.Timestamp
	}
	return cur
}
