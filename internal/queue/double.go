package queue

import "sync"

// Double pairs items arriving from two independent sources (A and B) and
// yields them only once a counterpart for the same key has arrived from the
// other side. It is used where a stage must synchronize two edges keyed by a
// shared identifier (e.g. audio chunk and its word-alignment meta) without
// assuming either side arrives first.
type Double[K comparable, A any, B any] struct {
	mu      sync.Mutex
	pendA   map[K]A
	pendB   map[K]B
	ready   chan struct{}
	doneA   bool
	doneB   bool
	outA    []Pair[A, B]
}

// Pair is one matched (a, b) result.
type Pair[A any, B any] struct {
	A A
	B B
}

// NewDouble creates an empty Double queue.
func NewDouble[K comparable, A any, B any]() *Double[K, A, B] {
	return &Double[K, A, B]{
		pendA: make(map[K]A),
		pendB: make(map[K]B),
		ready: make(chan struct{}, 1),
	}
}

// WriteA records an A-side item under key. If a B-side item is already
// pending under the same key, the pair becomes available to Read.
func (q *Double[K, A, B]) WriteA(key K, a A) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if b, ok := q.pendB[key]; ok {
		delete(q.pendB, key)
		q.outA = append(q.outA, Pair[A, B]{A: a, B: b})
		q.wake()
		return
	}
	q.pendA[key] = a
}

// WriteB records a B-side item under key, symmetric to WriteA.
func (q *Double[K, A, B]) WriteB(key K, b B) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if a, ok := q.pendA[key]; ok {
		delete(q.pendA, key)
		q.outA = append(q.outA, Pair[A, B]{A: a, B: b})
		q.wake()
		return
	}
	q.pendB[key] = b
}

// CloseA signals no further A-side writes will occur.
func (q *Double[K, A, B]) CloseA() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.doneA = true
	q.wake()
}

// CloseB signals no further B-side writes will occur.
func (q *Double[K, A, B]) CloseB() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.doneB = true
	q.wake()
}

func (q *Double[K, A, B]) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Read blocks until a matched pair is available, or both sides are closed
// with nothing left pending (ok=false).
func (q *Double[K, A, B]) Read() (Pair[A, B], bool) {
	for {
		q.mu.Lock()
		if len(q.outA) > 0 {
			p := q.outA[0]
			q.outA = q.outA[1:]
			q.mu.Unlock()
			return p, true
		}
		if q.doneA && q.doneB {
			q.mu.Unlock()
			var zero Pair[A, B]
			return zero, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}

// Pending reports how many unmatched items wait on each side, for diagnostics.
func (q *Double[K, A, B]) Pending() (a, b int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pendA), len(q.pendB)
}
