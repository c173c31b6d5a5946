package vamana

import "container/heap"

// Candidate is a scored (ordinal, similarity) pair, the unit of
// currency between the builder, the searcher, and RobustPrune. Ties
// are broken by lower ordinal throughout the core (spec.md §4.3).
type Candidate struct {
	Ord   Ordinal
	Score float32
}

// higherPriority reports whether a should be popped before b under the
// "lower ordinal wins ties" rule.
func higherPriority(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Ord < b.Ord
}

// candidateHeap implements container/heap.Interface. popBest controls
// polarity: true makes Pop/root return the highest-priority (best)
// candidate -- the traversal frontier; false makes Pop/root return the
// lowest-priority (worst) candidate -- a bounded top-K results set,
// where the root is the element to evict when a better one arrives.
// This mirrors the teacher's separate MinHeap/MaxHeap pair in
// pkg/diskann/search.go, collapsed into one type with a polarity flag.
type candidateHeap struct {
	items   []Candidate
	popBest bool
}

func (h candidateHeap) Len() int { return len(h.items) }
func (h candidateHeap) Less(i, j int) bool {
	if h.popBest {
		return higherPriority(h.items[i], h.items[j])
	}
	return higherPriority(h.items[j], h.items[i])
}
func (h candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x any) { h.items = append(h.items, x.(Candidate)) }

func (h *candidateHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

// CandidateQueue is a bounded heap of (ordinal, score) pairs used for
// both the traversal frontier (unbounded, pops best-first) and the
// bounded top-K results set (root is the worst kept candidate).
type CandidateQueue struct {
	h   candidateHeap
	cap int // 0 = unbounded
}

// NewCandidateQueue creates a queue. popBest=true => Pop returns the
// best-scoring candidate (frontier); popBest=false => the root is the
// worst of the kept candidates (bounded results set).
func NewCandidateQueue(popBest bool, capacity int) *CandidateQueue {
	q := &CandidateQueue{h: candidateHeap{popBest: popBest}, cap: capacity}
	if capacity > 0 {
		q.h.items = make([]Candidate, 0, capacity)
	}
	heap.Init(&q.h)
	return q
}

func (q *CandidateQueue) Len() int { return len(q.h.items) }

// Push inserts c. When the queue is at capacity, c is only kept if it
// outranks the current root (for a results queue, "outranks" means a
// better score than the current worst kept candidate); otherwise it is
// dropped.
func (q *CandidateQueue) Push(c Candidate) {
	if q.cap <= 0 || len(q.h.items) < q.cap {
		heap.Push(&q.h, c)
		return
	}
	root := q.h.items[0]
	if !higherPriority(c, root) {
		return
	}
	heap.Pop(&q.h)
	heap.Push(&q.h, c)
}

// Pop removes and returns the root element.
func (q *CandidateQueue) Pop() (Candidate, bool) {
	if len(q.h.items) == 0 {
		return Candidate{}, false
	}
	return heap.Pop(&q.h).(Candidate), true
}

// Peek returns the root without removing it.
func (q *CandidateQueue) Peek() (Candidate, bool) {
	if len(q.h.items) == 0 {
		return Candidate{}, false
	}
	return q.h.items[0], true
}

// Items returns the queue's contents in unspecified (heap array) order.
func (q *CandidateQueue) Items() []Candidate {
	return q.h.items
}

// Sorted returns the contents ordered best-first, regardless of
// polarity, without mutating the queue.
func (q *CandidateQueue) Sorted() []Candidate {
	out := make([]Candidate, len(q.h.items))
	copy(out, q.h.items)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && higherPriority(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
