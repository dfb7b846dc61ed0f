// Copyright 2025 Florian Zenker (flo@znkr.io)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blockmatch

import (
	"cmp"
	"container/heap"
	"slices"

	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/ranges"
)

// ChooseValid selects a consistent, non-overlapping assignment of block pairs from sets and
// returns the sets reduced to the chosen pairs together with the chosen pairs as matches.
//
// Candidate pairs are visited in ascending order of their start in x, then in y, across all sets.
// Within a set, the next free occurrence in x is paired with the next free occurrence in y. A pair
// that overlaps a previously chosen pair in either input is dropped; the earlier choice is never
// replaced. Every pair is compared byte by byte before it's chosen, so hash collisions never
// produce a match.
//
// All sets must have the same block size, i.e., come from a single [Search] pass.
func ChooseValid(x, y byteview.ByteView, sets Sets) (Sets, []ranges.Match) {
	for _, s := range sets {
		if s.BlockSize != sets[0].BlockSize {
			panic("blockmatch: ChooseValid called with sets of different block sizes")
		}
	}

	q := make(candidates, 0, len(sets))
	for i, s := range sets {
		if len(s.Starts1) > 0 && len(s.Starts2) > 0 {
			q = append(q, cursor{set: i, sets: sets})
		}
	}
	heap.Init(&q)

	claimed1, claimed2 := newClaims(x.Len()), newClaims(y.Len())
	var matches []ranges.Match
	chosen := make([]MatchSet, len(sets))
	for i, s := range sets {
		chosen[i] = MatchSet{Hash: s.Hash, BlockSize: s.BlockSize}
	}
	for len(q) > 0 {
		c := &q[0]
		m := c.match()
		r1, r2 := m.Range1(), m.Range2()
		switch {
		case claimed1.overlaps(r1):
			c.a++
		case claimed2.overlaps(r2):
			c.b++
		case !byteview.Equal(x.Slice(r1), y.Slice(r2)):
			c.a++
			c.b++
		default:
			claimed1.add(r1)
			claimed2.add(r2)
			set := &chosen[c.set]
			set.Starts1 = append(set.Starts1, m.Start1)
			set.Starts2 = append(set.Starts2, m.Start2)
			matches = append(matches, m)
			c.a++
			c.b++
		}
		if c.done() {
			heap.Pop(&q)
		} else {
			heap.Fix(&q, 0)
		}
	}

	out := make(Sets, 0, len(sets))
	for _, c := range chosen {
		if len(c.Starts1) > 0 {
			out = append(out, c)
		}
	}
	// The first start of a set may have changed, restore the order.
	slices.SortStableFunc(out, compareSets)
	slices.SortFunc(matches, compareMatches)
	return out, matches
}

// cursor is the next candidate pair of one set.
type cursor struct {
	sets Sets
	set  int
	a, b int
}

func (c *cursor) match() ranges.Match {
	s := c.sets[c.set]
	return ranges.Match{Start1: s.Starts1[c.a], Start2: s.Starts2[c.b], Count: s.BlockSize}
}

func (c *cursor) done() bool {
	s := c.sets[c.set]
	return c.a >= len(s.Starts1) || c.b >= len(s.Starts2)
}

// candidates is a min-heap of cursors ordered by their candidate pair, ties broken by set index.
type candidates []cursor

func (q candidates) Len() int { return len(q) }

func (q candidates) Less(i, j int) bool {
	if c := compareMatches(q[i].match(), q[j].match()); c != 0 {
		return c < 0
	}
	return q[i].set < q[j].set
}

func (q candidates) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *candidates) Push(x any) { *q = append(*q, x.(cursor)) }

func (q *candidates) Pop() any {
	old := *q
	c := old[len(old)-1]
	*q = old[:len(old)-1]
	return c
}

// AddToSkipRanges adds the ranges occupied by matches to the skip ranges of x and y. The results
// are sorted and non-overlapping if the inputs are.
func AddToSkipRanges(skip1, skip2 []ranges.Range, matches []ranges.Match) (out1, out2 []ranges.Range) {
	add1 := make([]ranges.Range, len(matches))
	add2 := make([]ranges.Range, len(matches))
	for i, m := range matches {
		add1[i], add2[i] = m.Range1(), m.Range2()
	}
	return ranges.Merge(skip1, add1...), ranges.Merge(skip2, add2...)
}

// claims is a bitset of claimed indices.
//
// All claimed ranges in one pass have the same count as the blocks that are tested against them.
// A block overlaps a claimed range of the same size only if its first or last index is claimed,
// which makes overlaps O(1).
type claims []uint64

func newClaims(n int) claims { return make(claims, (n+63)/64) }

func (c claims) has(i uint32) bool { return c[i/64]&(1<<(i%64)) != 0 }

// overlaps returns true if r overlaps any claimed range.
func (c claims) overlaps(r ranges.Range) bool {
	if r.IsEmpty() {
		return false
	}
	return c.has(r.Start) || c.has(r.End-1)
}

func (c claims) add(r ranges.Range) {
	for i := r.Start; i < r.End; i++ {
		if i%64 == 0 && r.End-i >= 64 {
			c[i/64] = ^uint64(0)
			i += 63
			continue
		}
		c[i/64] |= 1 << (i % 64)
	}
}

func compareMatches(a, b ranges.Match) int {
	if c := cmp.Compare(a.Start1, b.Start1); c != 0 {
		return c
	}
	return cmp.Compare(a.Start2, b.Start2)
}
