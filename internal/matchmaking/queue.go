package matchmaking

import (
	"container/list"
	"iter"
	"sync"
	"time"
)

// DefaultEntryTTL is how long a waiting participant stays matchable.
const DefaultEntryTTL = 60 * time.Second

// Entry is a participant waiting in the queue.
type Entry struct {
	Participant Participant
	JoinedAt    time.Time
}

// Expired reports whether the entry has waited longer than ttl.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.JoinedAt) > ttl
}

// Queue holds waiting participants in arrival order, one entry per participant.
// Expired entries are evicted lazily when a scan visits them.
type Queue struct {
	mu    sync.Mutex
	ttl   time.Duration
	order *list.List
	index map[string]*list.Element
}

func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &Queue{
		ttl:   ttl,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

func (q *Queue) TTL() time.Duration {
	return q.ttl
}

// Enqueue upserts the participant's entry. A re-join resets JoinedAt and moves
// the entry to the back.
func (q *Queue) Enqueue(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if el, ok := q.index[e.Participant.ID]; ok {
		q.order.Remove(el)
	}
	q.index[e.Participant.ID] = q.order.PushBack(e)
}

// Restore puts an entry back at the position its JoinedAt gives it. Used to
// undo a pairing; an entry re-queued in the meantime wins.
func (q *Queue) Restore(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[e.Participant.ID]; ok {
		return
	}

	for el := q.order.Front(); el != nil; el = el.Next() {
		if el.Value.(Entry).JoinedAt.After(e.JoinedAt) {
			q.index[e.Participant.ID] = q.order.InsertBefore(e, el)
			return
		}
	}
	q.index[e.Participant.ID] = q.order.PushBack(e)
}

func (q *Queue) Remove(participantID string) bool {
	_, ok := q.Take(participantID)
	return ok
}

// Take removes and returns the participant's entry.
func (q *Queue) Take(participantID string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	el, ok := q.index[participantID]
	if !ok {
		return Entry{}, false
	}
	q.order.Remove(el)
	delete(q.index, participantID)
	return el.Value.(Entry), true
}

func (q *Queue) Contains(participantID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[participantID]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// Scan yields live entries oldest first, evicting expired ones as it passes
// them. The queue stays locked for the duration of the loop, so the loop body
// must not call back into q.
func (q *Queue) Scan(now time.Time) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		q.mu.Lock()
		defer q.mu.Unlock()

		for el := q.order.Front(); el != nil; {
			next := el.Next()
			e := el.Value.(Entry)

			if e.Expired(now, q.ttl) {
				q.order.Remove(el)
				delete(q.index, e.Participant.ID)
			} else if !yield(e) {
				return
			}

			el = next
		}
	}
}

// Sweep evicts every expired entry and returns how many were dropped.
func (q *Queue) Sweep(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := 0
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(Entry); e.Expired(now, q.ttl) {
			q.order.Remove(el)
			delete(q.index, e.Participant.ID)
			evicted++
		}
		el = next
	}
	return evicted
}
