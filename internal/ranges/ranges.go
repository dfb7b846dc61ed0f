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

// Package ranges implements the interval algebra over half-open index ranges that all other
// packages of this module build on.
//
// A Range with a count of zero is the empty set: it never overlaps anything, never breaks the
// contiguity of a partition and is equal to every other empty range (see [Range.Equal]).
package ranges

import (
	"cmp"
	"fmt"
	"slices"
)

// Range is the half-open interval [Start, End) over byte indices.
type Range struct {
	Start uint32 // Inclusive start.
	End   uint32 // Exclusive end.
}

// Empty is the canonical empty range.
var Empty = Range{}

// Count returns the number of indices in r, or 0 if End <= Start.
func (r Range) Count() uint32 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// IsEmpty returns true if r has a count of zero.
func (r Range) IsEmpty() bool { return r.End <= r.Start }

// Contains returns true if i is in r.
func (r Range) Contains(i uint32) bool {
	return r.Start <= i && i < r.End
}

// Overlaps returns true if r and o share at least one index. Empty ranges never overlap.
func (r Range) Overlaps(o Range) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return false
	}
	return r.Start < o.End && o.Start < r.End
}

// Intersection returns the indices that are both in r and o. If there are none, it returns
// [Empty].
func (r Range) Intersection(o Range) Range {
	out := Range{max(r.Start, o.Start), min(r.End, o.End)}
	if out.End <= out.Start {
		return Empty
	}
	return out
}

// Equal reports if r and o describe the same set of indices. All empty ranges are equal,
// regardless of their start and end.
func (r Range) Equal(o Range) bool {
	if r.IsEmpty() && o.IsEmpty() {
		return true
	}
	return r == o
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// OverlapsAny returns true if r overlaps at least one range in rs.
func (r Range) OverlapsAny(rs []Range) bool {
	for _, o := range rs {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

// OverlapsAnyStart returns true if r overlaps at least one of the ranges [s, s+blockLen) for s in
// starts.
func (r Range) OverlapsAnyStart(starts []uint32, blockLen uint32) bool {
	for _, s := range starts {
		if r.Overlaps(Range{s, end(s, blockLen)}) {
			return true
		}
	}
	return false
}

// IsNonDecreasingAndNonOverlapping returns true if the non-empty ranges in rs are sorted by start
// and don't overlap. Empty ranges are ignored.
func IsNonDecreasingAndNonOverlapping(rs []Range) bool {
	var minStart uint32 // minimum start allowed for the next non-empty range
	for _, r := range rs {
		if r.IsEmpty() {
			continue
		}
		if r.Start < minStart {
			return false
		}
		minStart = r.End
	}
	return true
}

// IsNonOverlapping returns true if no two non-empty ranges in rs overlap. Unlike
// [IsNonDecreasingAndNonOverlapping], rs doesn't need to be sorted; prefer the former if it is.
func IsNonOverlapping(rs []Range) bool {
	sorted := make([]Range, 0, len(rs))
	for _, r := range rs {
		if !r.IsEmpty() {
			sorted = append(sorted, r)
		}
	}
	slices.SortFunc(sorted, func(a, b Range) int { return cmp.Compare(a.Start, b.Start) })
	return IsNonDecreasingAndNonOverlapping(sorted)
}

// LargestEmptySpace returns the count of the largest range within that isn't covered by any of
// the blocks. The blocks must be sorted and non-overlapping.
func LargestEmptySpace(within Range, blocks []Range) uint32 {
	var largest uint32
	for _, gap := range gaps(within, blocks) {
		largest = max(largest, gap.Count())
	}
	return largest
}

// FillEmptySpaces inserts a range into every gap between blocks inside of within, so that the
// non-empty ranges in filled are an exact partition of within. It returns the resulting
// collection and the inserted ranges in ascending order.
//
// Blocks must satisfy [IsNonDecreasingAndNonOverlapping]. Empty blocks are kept at their
// position; a gap is inserted just before the next non-empty block.
func FillEmptySpaces(within Range, blocks []Range) (filled, added []Range) {
	added = gaps(within, blocks)
	if len(added) == 0 {
		return slices.Clone(blocks), nil
	}
	filled = make([]Range, 0, len(blocks)+len(added))
	next := added
	for _, b := range blocks {
		if !b.IsEmpty() {
			for len(next) > 0 && next[0].End <= b.Start {
				filled = append(filled, next[0])
				next = next[1:]
			}
		}
		filled = append(filled, b)
	}
	filled = append(filled, next...)
	return filled, added
}

// gaps returns the ranges inside of within that are not covered by blocks.
func gaps(within Range, blocks []Range) []Range {
	if within.IsEmpty() {
		return nil
	}
	var out []Range
	pos := within.Start // start of the current gap
	for _, b := range blocks {
		if b.IsEmpty() {
			continue
		}
		if b.Start > pos {
			if gap := (Range{pos, b.Start}).Intersection(within); !gap.IsEmpty() {
				out = append(out, gap)
			}
		}
		pos = max(pos, b.End)
		if pos >= within.End {
			return out
		}
	}
	out = append(out, Range{pos, within.End})
	return out
}

// IsExactAscendingPartition returns true if the non-empty blocks, in order, start at
// partition.Start, each start where the previous one ended, and the last ends at partition.End.
//
// An empty partition or a block list without non-empty blocks is never a partition.
func IsExactAscendingPartition(partition Range, blocks []Range) bool {
	if partition.IsEmpty() {
		return false
	}
	pos, seen := partition.Start, false
	for _, b := range blocks {
		if b.IsEmpty() {
			continue
		}
		if b.Start != pos {
			return false
		}
		pos, seen = b.End, true
	}
	return seen && pos == partition.End
}

// Merge inserts add into the sorted, non-overlapping ranges in sorted and returns the result,
// which is again sorted and non-overlapping. Ranges that overlap or touch are joined.
func Merge(sorted []Range, add ...Range) []Range {
	out := slices.Clone(sorted)
	for _, r := range add {
		if r.IsEmpty() {
			continue
		}
		i, _ := slices.BinarySearchFunc(out, r.Start, func(e Range, s uint32) int { return cmp.Compare(e.End, s) })
		j := i
		for j < len(out) && out[j].Start <= r.End {
			r.Start = min(r.Start, out[j].Start)
			r.End = max(r.End, out[j].End)
			j++
		}
		out = slices.Replace(out, i, j, r)
	}
	return out
}
