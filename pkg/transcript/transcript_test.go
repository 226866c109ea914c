package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func msg(sender, text string, offset time.Duration) Message {
	return Message{
		Room:       "course-1",
		LectureID:  "lecture-1",
		SenderID:   sender,
		SenderName: "Name " + sender,
		Text:       text,
		Timestamp:  base.Add(offset),
	}
}

func TestMerge_LocalThenRemote_SingleEntry(t *testing.T) {
	tests := []struct {
		name        string
		withCorrID  bool
		remoteDelay time.Duration
	}{
		{name: "correlation id", withCorrID: true, remoteDelay: 0},
		{name: "fingerprint same bucket", withCorrID: false, remoteDelay: time.Second},
		{name: "fingerprint adjacent bucket", withCorrID: false, remoteDelay: 6 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := msg("u1", "what is entropy?", 0)
			if tt.withCorrID {
				local.CorrelationID = "corr-1"
			}
			tr := New(DefaultBucket).Merge(local, OriginLocal)
			require.Equal(t, 1, tr.PendingCount())

			remote := msg("u1", "what is entropy?", tt.remoteDelay)
			if tt.withCorrID {
				remote.CorrelationID = "corr-1"
			}
			tr = tr.Merge(remote, OriginRemote)

			assert.Equal(t, 1, tr.Len())
		})
	}
}

func TestMerge_LocalRemoteStore_AdoptsID(t *testing.T) {
	local := msg("u1", "hello", 0)
	tr := New(DefaultBucket).Merge(local, OriginLocal)
	corr := tr.Entries()[0].CorrelationID
	require.NotEmpty(t, corr, "local entries get a generated correlation id")

	tr = tr.Merge(msg("u1", "hello", time.Second), OriginRemote)
	tr = tr.Merge(Message{ID: "m-1", CorrelationID: corr, SenderID: "u1", Text: "hello", Timestamp: base}, OriginStore)

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "m-1", entries[0].ID)
	assert.Equal(t, 0, tr.PendingCount())

	// late duplicate delivery of the same store record
	tr = tr.Merge(Message{ID: "m-1", SenderID: "u1", Text: "hello", Timestamp: base}, OriginStore)
	assert.Equal(t, 1, tr.Len())
}

func TestMerge_RemoteWithoutMarker_Appends(t *testing.T) {
	tr := New(DefaultBucket).
		Merge(msg("u1", "first", 0), OriginRemote).
		Merge(msg("u2", "second", time.Second), OriginRemote)

	assert.Equal(t, 2, tr.Len())
}

func TestMerge_UnknownCorrelationIsNotFingerprinted(t *testing.T) {
	local := msg("u1", "ok", 0)
	local.CorrelationID = "phone"
	tr := New(DefaultBucket).Merge(local, OriginLocal)

	// same user, same text, sent from a second device two seconds later
	other := msg("u1", "ok", 2*time.Second)
	other.CorrelationID = "laptop"
	tr = tr.Merge(other, OriginRemote)

	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 1, tr.PendingCount())
}

func TestMerge_DuplicateRemoteByCorrelation(t *testing.T) {
	m := msg("u2", "peer question", 0)
	m.CorrelationID = "peer-corr"

	tr := New(DefaultBucket).Merge(m, OriginRemote).Merge(m, OriginRemote)
	assert.Equal(t, 1, tr.Len())
}

func TestMerge_OrdersByTimestamp(t *testing.T) {
	tr := New(DefaultBucket).
		Merge(msg("u1", "third", 3*time.Second), OriginRemote).
		Merge(msg("u2", "first", time.Second), OriginRemote).
		Merge(msg("u3", "second", 2*time.Second), OriginRemote)

	var texts []string
	for _, e := range tr.Entries() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"first", "second", "third"}, texts)
}

func TestMerge_SkipsMalformed(t *testing.T) {
	tr := New(DefaultBucket).Merge(Message{SenderID: "u1", Text: "   "}, OriginRemote)
	assert.Equal(t, 0, tr.Len())
}

func TestMerge_ReplaceByID(t *testing.T) {
	stored := msg("u1", "old", 0)
	stored.ID = "m-1"
	tr := FromHistory([]Message{stored})

	edited := stored
	edited.Text = "new"
	tr = tr.Merge(edited, OriginRemote)

	require.Equal(t, 1, tr.Len())
	assert.Equal(t, "new", tr.Entries()[0].Text)
}

func TestEdit_Idempotent(t *testing.T) {
	a := msg("u1", "typo", 0)
	a.ID = "m-1"
	b := msg("u2", "other", time.Second)
	b.ID = "m-2"
	tr := FromHistory([]Message{a, b})

	once := tr.Edit("m-1", "fixed")
	twice := once.Edit("m-1", "fixed")

	assert.Equal(t, once.Entries(), twice.Entries())
	assert.Equal(t, "fixed", once.Entries()[0].Text)
	assert.Equal(t, a.Timestamp, once.Entries()[0].Timestamp)
	assert.Equal(t, "typo", tr.Entries()[0].Text, "receiver is not mutated")
}

func TestEdit_UnknownID_NoOp(t *testing.T) {
	a := msg("u1", "text", 0)
	a.ID = "m-1"
	tr := FromHistory([]Message{a})

	assert.Equal(t, tr.Entries(), tr.Edit("missing", "x").Entries())
}

func TestRemove(t *testing.T) {
	a := msg("u1", "one", 0)
	a.ID = "m-1"
	b := msg("u2", "two", time.Second)
	b.ID = "m-2"
	tr := FromHistory([]Message{a, b})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		assert.Equal(t, tr.Entries(), tr.Remove("missing").Entries())
	})
	t.Run("removes by id", func(t *testing.T) {
		out := tr.Remove("m-1")
		require.Equal(t, 1, out.Len())
		assert.Equal(t, "m-2", out.Entries()[0].ID)
	})
}

func TestRemoveCorrelated(t *testing.T) {
	relayed := msg("u2", "peer line", 0)
	relayed.CorrelationID = "peer-corr"
	tr := New(DefaultBucket).Merge(relayed, OriginRemote)

	assert.Equal(t, 1, tr.RemoveCorrelated("other").Len())
	assert.Equal(t, 0, tr.RemoveCorrelated("peer-corr").Len())
	assert.Equal(t, 1, tr.Len(), "receiver is not mutated")
}

func TestFromHistory_NoDuplicateIDs(t *testing.T) {
	a := msg("u1", "one", 0)
	a.ID = "m-1"
	tr := FromHistory([]Message{a, a, a})
	assert.Equal(t, 1, tr.Len())
}

func TestResync_KeepsPendingAndAbsorbsConfirmed(t *testing.T) {
	tr := New(DefaultBucket).
		Merge(msg("u1", "confirmed", 0), OriginLocal).
		Merge(msg("u1", "still pending", time.Second), OriginLocal)
	corr := tr.Entries()[0].CorrelationID

	confirmed := msg("u1", "confirmed", 0)
	confirmed.ID = "m-1"
	confirmed.CorrelationID = corr
	peer := msg("u2", "from peer", 500*time.Millisecond)
	peer.ID = "m-2"

	out := tr.Resync([]Message{confirmed, peer})

	entries := out.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "m-1", entries[0].ID)
	assert.Equal(t, "m-2", entries[1].ID)
	assert.Equal(t, "still pending", entries[2].Text)
	assert.Equal(t, 1, out.PendingCount())
}

func TestResync_KeepsRelayedEntriesTheStoreLacks(t *testing.T) {
	stored := msg("u1", "hello", 0)
	stored.ID = "m-1"
	stored.CorrelationID = "corr-1"

	inFlight := msg("u2", "peer line", time.Second)
	inFlight.CorrelationID = "peer-corr"
	unsaved := msg("u3", "unable to transcribe", 2*time.Second)
	unsaved.CorrelationID = "voice-corr"
	legacy := msg("u4", "no correlation", 3*time.Second)

	tr := FromHistory([]Message{stored}).
		Merge(inFlight, OriginRemote).
		Merge(unsaved, OriginRemote).
		Merge(legacy, OriginRemote)
	require.Equal(t, 4, tr.Len())

	out := tr.Resync([]Message{stored})

	var texts []string
	for _, e := range out.Entries() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"hello", "peer line", "unable to transcribe", "no correlation"}, texts)
	assert.Equal(t, 0, out.PendingCount())
}

func TestResync_AbsorbsRelayedEntriesOnceStored(t *testing.T) {
	relayed := msg("u2", "peer line", time.Second)
	relayed.CorrelationID = "peer-corr"
	legacy := msg("u4", "no correlation", 2*time.Second)

	tr := New(DefaultBucket).Merge(relayed, OriginRemote).Merge(legacy, OriginRemote)

	storedRelayed := relayed
	storedRelayed.ID = "m-2"
	storedLegacy := legacy
	storedLegacy.ID = "m-3"
	storedLegacy.CorrelationID = "server-generated"

	out := tr.Resync([]Message{storedRelayed, storedLegacy})

	entries := out.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "m-2", entries[0].ID)
	assert.Equal(t, "m-3", entries[1].ID)
}

func TestResync_DropsStoredEntriesMissingFromSnapshot(t *testing.T) {
	a := msg("u1", "deleted while offline", 0)
	a.ID = "m-1"
	tr := FromHistory([]Message{a})

	assert.Equal(t, 0, tr.Resync(nil).Len())
}

func TestSummarized(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := Summarized([]string{"students ask about entropy", "", "pace is fine"}, now)

	require.Len(t, out, 2)
	for _, m := range out {
		assert.Equal(t, now, m.Timestamp)
	}
}
