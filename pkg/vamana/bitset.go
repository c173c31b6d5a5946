package vamana

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// Bits is the acceptance-filter / visited-set contract: a fixed-size
// bit set addressable by ordinal. Grounded on the Vamana implementation
// in Semafind/semadb, which backs its filter and visited sets with
// roaring64.Bitmap rather than a hand-rolled []uint64 word array -- a
// compressed bitmap costs little over a dense one at graph scale and
// is the idiomatic choice once a real roaring dependency is already in
// the module for this purpose.
type Bits interface {
	Contains(ord Ordinal) bool
}

// acceptAll is the universal acceptor (spec.md's Bits.ALL): every
// ordinal is a member, traversal filters nothing at admission time.
type acceptAll struct{}

func (acceptAll) Contains(Ordinal) bool { return true }

// AcceptAll is the shared universal-accept filter.
var AcceptAll Bits = acceptAll{}

// RoaringBits is a mutable Bits backed by a roaring64.Bitmap, used both
// as the acceptance filter (acceptOrds) and as the searcher's visited
// set.
type RoaringBits struct {
	bm *roaring64.Bitmap
}

// NewRoaringBits creates an empty bit set.
func NewRoaringBits() *RoaringBits {
	return &RoaringBits{bm: roaring64.New()}
}

// NewRoaringBitsFromRange builds a bit set accepting exactly
// [lo, hi) -- convenient for the accept-ords scenarios in spec.md §8
// ("accept nodes 500..999 only").
func NewRoaringBitsFromRange(lo, hi Ordinal) *RoaringBits {
	b := NewRoaringBits()
	for i := lo; i < hi; i++ {
		b.bm.Add(uint64(i))
	}
	return b
}

func (b *RoaringBits) Contains(ord Ordinal) bool { return b.bm.Contains(uint64(ord)) }
func (b *RoaringBits) Add(ord Ordinal)            { b.bm.Add(uint64(ord)) }
func (b *RoaringBits) Remove(ord Ordinal)         { b.bm.Remove(uint64(ord)) }
func (b *RoaringBits) Len() int                   { return int(b.bm.GetCardinality()) }
func (b *RoaringBits) Clear()                     { b.bm.Clear() }
