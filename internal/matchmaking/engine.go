package matchmaking

import "time"

// Pair is the outcome of a successful pairing. Initiator is always the
// participant whose arrival triggered the scan.
type Pair struct {
	Initiator Entry
	Receiver  Entry
}

// FindMatch pairs the arriving participant with the oldest compatible,
// unexpired entry in q. Both entries leave the queue on a hit. There is no
// lookahead: the first candidate accepted by both sides wins.
func FindMatch(arriving Participant, q *Queue, now time.Time) (Pair, bool) {
	for {
		candidate, found := firstCompatible(arriving, q, now)
		if !found {
			return Pair{}, false
		}

		// another request may have claimed the candidate after the scan released the queue
		receiver, ok := q.Take(candidate.Participant.ID)
		if !ok {
			continue
		}

		initiator, ok := q.Take(arriving.ID)
		if !ok {
			initiator = Entry{Participant: arriving, JoinedAt: now}
		}

		return Pair{Initiator: initiator, Receiver: receiver}, true
	}
}

func firstCompatible(arriving Participant, q *Queue, now time.Time) (Entry, bool) {
	for e := range q.Scan(now) {
		if e.Participant.ID == arriving.ID {
			continue
		}
		if Compatible(arriving, e.Participant) {
			return e, true
		}
	}
	return Entry{}, false
}
