package matchmaking

import (
	"testing"
	"time"

	"github.com/duochat/duochat-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueKeepsArrivalOrder(t *testing.T) {
	q := NewQueue(time.Minute)
	for i, id := range []string{"a", "b", "c"} {
		q.Enqueue(entry(participant(id, models.RoleMale, PreferenceAny), t0.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids(q, t0.Add(5*time.Second)))
	assert.Equal(t, 3, q.Len())
}

func TestQueue_RejoinReplacesEntry(t *testing.T) {
	q := NewQueue(time.Minute)
	a := participant("a", models.RoleMale, PreferenceAny)
	q.Enqueue(entry(a, t0))
	q.Enqueue(entry(participant("b", models.RoleMale, PreferenceAny), t0.Add(time.Second)))

	a.Preference = PreferenceFemale
	q.Enqueue(entry(a, t0.Add(2*time.Second)))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []string{"b", "a"}, ids(q, t0.Add(3*time.Second)))

	got, ok := q.Take("a")
	require.True(t, ok)
	assert.Equal(t, PreferenceFemale, got.Participant.Preference)
	assert.Equal(t, t0.Add(2*time.Second), got.JoinedAt)
}

func TestQueue_ScanEvictsExpiredLazily(t *testing.T) {
	q := NewQueue(60 * time.Second)
	q.Enqueue(entry(participant("old", models.RoleMale, PreferenceAny), t0))
	q.Enqueue(entry(participant("new", models.RoleMale, PreferenceAny), t0.Add(30*time.Second)))

	now := t0.Add(61 * time.Second)

	// nothing is evicted until a scan passes by
	assert.Equal(t, 2, q.Len())

	assert.Equal(t, []string{"new"}, ids(q, now))
	assert.False(t, q.Contains("old"))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_EntryAtExactTTLIsStillLive(t *testing.T) {
	q := NewQueue(60 * time.Second)
	q.Enqueue(entry(participant("a", models.RoleMale, PreferenceAny), t0))

	assert.Equal(t, []string{"a"}, ids(q, t0.Add(60*time.Second)))
	assert.Empty(t, ids(q, t0.Add(60*time.Second+time.Millisecond)))
}

func TestQueue_ScanStopsEarly(t *testing.T) {
	q := NewQueue(time.Minute)
	for _, id := range []string{"a", "b", "c"} {
		q.Enqueue(entry(participant(id, models.RoleMale, PreferenceAny), t0))
	}

	var seen []string
	for e := range q.Scan(t0) {
		seen = append(seen, e.Participant.ID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)

	// the lock is released after an early break
	assert.True(t, q.Remove("c"))
}

func TestQueue_RemoveAndTake(t *testing.T) {
	q := NewQueue(time.Minute)
	q.Enqueue(entry(participant("a", models.RoleMale, PreferenceAny), t0))

	assert.False(t, q.Remove("missing"))
	assert.True(t, q.Remove("a"))
	assert.False(t, q.Remove("a"))

	_, ok := q.Take("a")
	assert.False(t, ok)
}

func TestQueue_RestoreByJoinedAt(t *testing.T) {
	q := NewQueue(time.Minute)
	q.Enqueue(entry(participant("a", models.RoleMale, PreferenceAny), t0))
	q.Enqueue(entry(participant("c", models.RoleMale, PreferenceAny), t0.Add(2*time.Second)))

	q.Restore(entry(participant("b", models.RoleMale, PreferenceAny), t0.Add(time.Second)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(q, t0.Add(3*time.Second)))

	// a fresher entry for the same participant is kept
	q.Enqueue(entry(participant("a", models.RoleMale, PreferenceFemale), t0.Add(3*time.Second)))
	q.Restore(entry(participant("a", models.RoleMale, PreferenceAny), t0))
	assert.Equal(t, []string{"b", "c", "a"}, ids(q, t0.Add(4*time.Second)))
}

func TestQueue_Sweep(t *testing.T) {
	q := NewQueue(10 * time.Second)
	q.Enqueue(entry(participant("a", models.RoleMale, PreferenceAny), t0))
	q.Enqueue(entry(participant("b", models.RoleMale, PreferenceAny), t0.Add(5*time.Second)))
	q.Enqueue(entry(participant("c", models.RoleMale, PreferenceAny), t0.Add(20*time.Second)))

	assert.Equal(t, 2, q.Sweep(t0.Add(21*time.Second)))
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Contains("c"))
}

func TestNewQueue_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultEntryTTL, NewQueue(0).TTL())
}
