package vamana

import "sync"

// edge is one outgoing edge of a neighbor set, carrying the similarity
// score at the time it was admitted (for tie-breaking during eviction
// and diversity recomputation without rescoring).
type edge struct {
	Ord   Ordinal
	Score float32
}

// NeighborSet is the per-node concurrent bag of outgoing edges
// described in spec.md §4.2/§4.9: a small committed slice mutated only
// under the owner's lock, plus an overflow append region guarded by its
// own separate lock until the next cleanup folds it in. Snapshot and
// Ordinals see only the committed slice; AllEdges and AllOrdinals (and
// so graph traversal) see the overflow too. This gives each mutation a
// serializable correctness argument (every write to the committed
// slice happens under lock) while letting concurrent back-edge
// installations (spec.md §5) proceed without taking the owner's lock.
//
// Grounded on the teacher's pkg/diskann/build.go addReverseEdge +
// pruneNeighbors pair (which mutates a single unsynchronized []uint64
// -- safe only because the teacher builds sequentially) and on
// Semafind/semadb's robustPrune, generalized here into the concurrent
// overflow-then-merge design spec.md requires.
type NeighborSet struct {
	owner Ordinal
	cap   int

	mu        sync.Mutex
	committed []edge

	overflowMu sync.Mutex
	overflow   []edge
}

// NewNeighborSet creates an empty neighbor set for the given owner
// node, capped at `cap` edges.
func NewNeighborSet(owner Ordinal, cap int) *NeighborSet {
	return &NeighborSet{owner: owner, cap: cap}
}

// Snapshot returns a copy of the currently committed edges (does not
// include not-yet-merged overflow). Safe for concurrent readers.
func (ns *NeighborSet) Snapshot() []edge {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := make([]edge, len(ns.committed))
	copy(out, ns.committed)
	return out
}

// Ordinals returns the committed neighbor ordinals only -- the
// diversity-pruned, degree-capped view WriteGraph serializes.
func (ns *NeighborSet) Ordinals() []Ordinal {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := make([]Ordinal, len(ns.committed))
	for i, e := range ns.committed {
		out[i] = e.Ord
	}
	return out
}

func (ns *NeighborSet) Len() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.committed)
}

// AllEdges returns every edge this node currently knows about: the
// committed, diversity-pruned set plus whatever back-edges have landed
// in the overflow region but have not yet been folded in by
// Cleanup. Per spec.md §4.2, overflow entries are real edges the
// owner has accepted -- just not yet re-diversified -- so both graph
// traversal (NeighborOrdinals) and RobustPrune's "current_neighbors(i)"
// gathering (builder.go's InsertNode) read through this view rather
// than the capped Ordinals/Snapshot one, or newly-inserted nodes would
// be unreachable from the rest of the graph until their first
// neighbor's overflow happened to cross the cleanup threshold.
func (ns *NeighborSet) AllEdges() []edge {
	ns.mu.Lock()
	committed := make([]edge, len(ns.committed))
	copy(committed, ns.committed)
	ns.mu.Unlock()

	ns.overflowMu.Lock()
	overflow := make([]edge, len(ns.overflow))
	copy(overflow, ns.overflow)
	ns.overflowMu.Unlock()

	seen := make(map[Ordinal]struct{}, len(committed)+len(overflow))
	out := make([]edge, 0, len(committed)+len(overflow))
	for _, lists := range [][]edge{committed, overflow} {
		for _, e := range lists {
			if _, dup := seen[e.Ord]; dup {
				continue
			}
			seen[e.Ord] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// AllOrdinals is AllEdges without scores, satisfying NeighborLister.
func (ns *NeighborSet) AllOrdinals() []Ordinal {
	edges := ns.AllEdges()
	out := make([]Ordinal, len(edges))
	for i, e := range edges {
		out[i] = e.Ord
	}
	return out
}

// InsertNotDiverse is the cheap back-edge path: append to the overflow
// region (under its own lock, not the owner's) without recomputing
// diversity. Reports
// overLimit once the combined (committed + overflow) size exceeds
// cap*neighborOverflow, per spec.md §4.3's "If j's set exceeds M ×
// neighborOverflow, trigger an insertDiverse cleanup on j" -- the
// caller is responsible for actually calling Cleanup.
func (ns *NeighborSet) InsertNotDiverse(ord Ordinal, score float32, neighborOverflow float32) (overLimit bool) {
	if ord == ns.owner {
		return false
	}
	ns.overflowMu.Lock()
	for _, e := range ns.overflow {
		if e.Ord == ord {
			ns.overflowMu.Unlock()
			return false
		}
	}
	ns.overflow = append(ns.overflow, edge{Ord: ord, Score: score})
	n := len(ns.overflow)
	ns.overflowMu.Unlock()

	ns.mu.Lock()
	committedLen := len(ns.committed)
	ns.mu.Unlock()
	return float32(committedLen+n) > float32(ns.cap)*neighborOverflow
}

// drainOverflowLocked folds the overflow region into a combined candidate
// list, clearing the overflow. Caller must hold ns.mu.
func (ns *NeighborSet) drainOverflowLocked() []edge {
	ns.overflowMu.Lock()
	defer ns.overflowMu.Unlock()
	combined := make([]edge, 0, len(ns.committed)+len(ns.overflow))
	combined = append(combined, ns.committed...)
	combined = append(combined, ns.overflow...)
	ns.overflow = nil
	return combined
}

// InsertDiverse computes the diverse subset of candidates (existing
// neighbors implicitly included via a prior Cleanup/Snapshot merge by
// the caller) using the RobustPrune rule of spec.md §4.2:
//
//	C sorted by similarity-to-owner descending; admit c into R iff for
//	every already-admitted r, alpha * sim(c, owner) > sim(c, r); stop at
//	|R| = M.
//
// All scores are supplied by the caller (the graph/builder), since the
// neighbor set itself does not hold vectors. candidates must already
// carry (ord, score-to-owner) pairs;
// scoreBetween is used for the pairwise admitted-vs-candidate checks.
func (ns *NeighborSet) InsertDiverse(candidates []Candidate, alpha float32, scoreBetween func(a, b Ordinal) float32) {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sortCandidatesDesc(sorted)

	admitted := make([]edge, 0, ns.cap)
	for _, c := range sorted {
		if c.Ord == ns.owner {
			continue
		}
		if len(admitted) >= ns.cap {
			break
		}
		diverse := true
		for _, r := range admitted {
			if alpha*c.Score <= scoreBetween(c.Ord, r.Ord) {
				diverse = false
				break
			}
		}
		if diverse {
			admitted = append(admitted, edge{Ord: c.Ord, Score: c.Score})
		}
	}

	ns.mu.Lock()
	ns.committed = admitted
	ns.mu.Unlock()
}

// Cleanup re-runs RobustPrune over (committed ∪ overflow), clearing
// the overflow. ownerScore scores a candidate ordinal against this
// set's owner; scoreBetween scores two non-owner ordinals against each
// other for the diversity check.
func (ns *NeighborSet) Cleanup(alpha float32, ownerScore func(ord Ordinal) float32, scoreBetween func(a, b Ordinal) float32) {
	ns.mu.Lock()
	combined := ns.drainOverflowLocked()
	ns.mu.Unlock()

	candidates := make([]Candidate, 0, len(combined))
	seen := make(map[Ordinal]struct{}, len(combined))
	for _, e := range combined {
		if _, dup := seen[e.Ord]; dup {
			continue
		}
		seen[e.Ord] = struct{}{}
		candidates = append(candidates, Candidate{Ord: e.Ord, Score: ownerScore(e.Ord)})
	}
	ns.InsertDiverse(candidates, alpha, scoreBetween)
}

// sortCandidatesDesc sorts by similarity-to-owner descending, ties
// broken by lower ordinal (insertion sort: candidate lists here are
// bounded by beamWidth/overflow, not corpus size).
func sortCandidatesDesc(c []Candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && higherPriority(c[j], c[j-1]); j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}
