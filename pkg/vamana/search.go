package vamana

// NeighborLister is the minimal read surface the searcher needs from a
// graph view: the entry point and each node's neighbor ordinals. Both
// Graph (in-heap) and DiskGraph (mmap-backed) implement it, so a
// Searcher is storage-agnostic, per spec.md §4.6 ("the reader exposes
// the same graph interface backed by mmap").
type NeighborLister interface {
	EntryPoint() (Ordinal, bool)
	NeighborOrdinals(ord Ordinal) ([]Ordinal, error)
}

func (g *Graph) NeighborOrdinals(ord Ordinal) ([]Ordinal, error) {
	if int(ord) >= g.Size() {
		return nil, invalidArgf("ordinal %d out of range", ord)
	}
	return g.Neighbors(ord).AllOrdinals(), nil
}

// SearchResult is one entry of a completed search.
type SearchResult struct {
	Ord   Ordinal
	Score float32
}

// Searcher implements the resumable greedy best-first traversal of
// spec.md §4.4: a candidates max-heap keyed by similarity, a results
// min-heap bounded by topK, a visited bitset, and a persistent frontier
// marker for resumption.
//
// Grounded on pkg/diskann/search.go's MinHeap/MaxHeap-driven
// searchMemoryGraph/beamSearchDisk, merged into a single storage- and
// resume-agnostic traversal (the teacher has two non-resumable,
// storage-specific traversal functions; spec.md §4.4/§9 calls for one
// stateful searcher object exposing search/resume/reset).
type Searcher struct {
	graph NeighborLister

	scoreFn      ScoreFunc
	rerank       Reranker
	accept       Bits
	topK         int
	rerankK      int // oversized approximate result width when rerank != nil
	rerankFactor int // stored so Resume can recompute rerankK consistently

	visited    *RoaringBits
	candidates *CandidateQueue
	results    *CandidateQueue

	// visitedList accumulates every node this traversal has scored, in
	// visit order, independent of the topK/rerankK result trim. The
	// builder's InsertNode uses this as the RobustPrune candidate pool
	// (spec.md §4.3's "V"), which must be the full visited set rather
	// than the bounded top results.
	visitedList []Candidate

	visitedCount int
	started      bool
	exhausted    bool
}

// NewSearcher creates a reusable search state over the given graph
// view. Call Search to run the first pass, then Resume to continue.
func NewSearcher(graph NeighborLister) *Searcher {
	return &Searcher{graph: graph}
}

// Reset discards all search state, ready for a fresh Search call.
func (s *Searcher) Reset() {
	s.scoreFn = nil
	s.rerank = nil
	s.accept = nil
	s.topK = 0
	s.rerankK = 0
	s.rerankFactor = 0
	s.visited = nil
	s.candidates = nil
	s.results = nil
	s.visitedList = nil
	s.visitedCount = 0
	s.started = false
	s.exhausted = false
}

// VisitedCount returns the number of nodes visited (scored) so far
// across Search and any Resume calls.
func (s *Searcher) VisitedCount() int { return s.visitedCount }

// VisitedCandidates returns every node this traversal has scored so
// far, in visit order. Unlike the topK/rerankK-bounded result set,
// this is the full frontier the greedy search explored -- the "V" of
// spec.md §4.3's RobustPrune candidate pool.
func (s *Searcher) VisitedCandidates() []Candidate {
	out := make([]Candidate, len(s.visitedList))
	copy(out, s.visitedList)
	return out
}

// Search seeds and runs a fresh traversal, returning the top topK
// results. rerank may be nil (scoreFn is taken as authoritative); when
// non-nil, the traversal expands an oversized result width of
// topK*rerankFactor before the final reranked trim, per spec.md §4.4.
func (s *Searcher) Search(scoreFn ScoreFunc, rerank Reranker, rerankFactor, topK int, accept Bits, seeds []Ordinal) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, invalidArgf("topK must be positive, got %d", topK)
	}
	if accept == nil {
		accept = AcceptAll
	}
	s.Reset()
	s.scoreFn = scoreFn
	s.rerank = rerank
	s.accept = accept
	s.topK = topK
	s.rerankK = topK
	s.rerankFactor = rerankFactor
	if rerank != nil && rerankFactor > 1 {
		s.rerankK = topK * rerankFactor
	}
	s.visited = NewRoaringBits()
	s.candidates = NewCandidateQueue(true, 0)
	s.results = NewCandidateQueue(false, s.rerankK)
	s.started = true

	ep, ok := s.graph.EntryPoint()
	if !ok {
		s.exhausted = true
		return nil, nil
	}
	if err := s.seed(ep); err != nil {
		return nil, err
	}
	for _, seed := range seeds {
		if err := s.seed(seed); err != nil {
			return nil, err
		}
	}

	if err := s.run(); err != nil {
		return nil, err
	}
	return s.finalize()
}

// Resume continues a prior Search/Resume call with the result width
// grown by additionalK. It returns the cumulative top results (up to
// the previous topK plus additionalK), including the ones earlier calls
// already returned; it does not return only the newly found results.
// search(K) then resume(K') visits the same nodes in the same order as
// search(K+K') would have, and VisitedCount is additive.
func (s *Searcher) Resume(additionalK int) ([]SearchResult, error) {
	if !s.started {
		return nil, invalidArgf("resume called before search")
	}
	if additionalK <= 0 {
		return nil, invalidArgf("additionalK must be positive, got %d", additionalK)
	}
	s.topK += additionalK
	s.rerankK = s.topK
	if s.rerank != nil && s.rerankFactor > 1 {
		s.rerankK = s.topK * s.rerankFactor
	}
	s.results = s.rebuildResults(s.rerankK)

	if s.exhausted {
		return s.finalize()
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.finalize()
}

// rebuildResults refills a results queue of the new width from every
// accepted node scored so far, so nodes the narrower queue had already
// dropped are admitted again.
func (s *Searcher) rebuildResults(newCap int) *CandidateQueue {
	q := NewCandidateQueue(false, newCap)
	for _, c := range s.visitedList {
		if s.accept.Contains(c.Ord) {
			q.Push(c)
		}
	}
	return q
}

func (s *Searcher) seed(ord Ordinal) error {
	if s.visited.Contains(ord) {
		return nil
	}
	s.visited.Add(ord)
	s.visitedCount++
	score, err := s.scoreFn(ord)
	if err != nil {
		return err
	}
	s.candidates.Push(Candidate{Ord: ord, Score: score})
	s.visitedList = append(s.visitedList, Candidate{Ord: ord, Score: score})
	if s.accept.Contains(ord) {
		s.results.Push(Candidate{Ord: ord, Score: score})
	}
	return nil
}

// run drains the candidates frontier until either it is empty or the
// best remaining candidate can no longer improve the result set, per
// spec.md §4.4 step 2.
func (s *Searcher) run() error {
	for {
		best, ok := s.candidates.Peek()
		if !ok {
			s.exhausted = true
			return nil
		}
		if s.results.Len() >= s.rerankK {
			worst, _ := s.results.Peek()
			if best.Score < worst.Score {
				return nil // terminate: frontier can't improve the result set
			}
		}
		s.candidates.Pop()

		neighbors, err := s.graph.NeighborOrdinals(best.Ord)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			if s.visited.Contains(n) {
				continue
			}
			s.visited.Add(n)
			s.visitedCount++
			score, err := s.scoreFn(n)
			if err != nil {
				return err
			}
			s.candidates.Push(Candidate{Ord: n, Score: score})
			s.visitedList = append(s.visitedList, Candidate{Ord: n, Score: score})
			if s.accept.Contains(n) {
				s.results.Push(Candidate{Ord: n, Score: score})
			}
		}
	}
}

func (s *Searcher) finalize() ([]SearchResult, error) {
	sorted := s.results.Sorted()
	if s.rerank != nil {
		for i, c := range sorted {
			exact, err := s.rerank(c.Ord, c.Score)
			if err != nil {
				return nil, err
			}
			sorted[i].Score = exact
		}
		// results were ordered by approximate score; re-sort by exact.
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && higherPriority(sorted[j], sorted[j-1]); j-- {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			}
		}
	}
	n := s.topK
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]SearchResult, n)
	for i := 0; i < n; i++ {
		out[i] = SearchResult{Ord: sorted[i].Ord, Score: sorted[i].Score}
	}
	return out, nil
}
