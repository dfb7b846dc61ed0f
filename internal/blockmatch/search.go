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
	"context"
	"maps"
	"slices"

	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/ranges"
	"znkr.io/bindiff/internal/rollhash"
)

// Cancellation is polled every pollWindows windows and every pollBuckets hash buckets.
const (
	pollWindows = 4096
	pollBuckets = 256
)

// Search finds all blocks of blockLen bytes that occur in both x and y and records them in sets.
// Blocks that overlap a range in skip1 (for x) or skip2 (for y) are ignored.
//
// Both skip collections must be sorted and non-overlapping. Search returns ctx.Err() if the
// context is cancelled; sets may contain partial results in that case.
func Search(ctx context.Context, blockLen uint32, x, y byteview.ByteView, skip1, skip2 []ranges.Range, sets *Sets) error {
	if blockLen == 0 {
		panic("blockmatch: block length must be > 0")
	}

	occ1 := make(map[uint32][]uint32)
	err := windows(ctx, blockLen, x, skip1, func(hash, start uint32) {
		occ1[hash] = append(occ1[hash], start)
	})
	if err != nil {
		return err
	}
	occ2 := make(map[uint32][]uint32)
	err = windows(ctx, blockLen, y, skip2, func(hash, start uint32) {
		if _, ok := occ1[hash]; ok {
			occ2[hash] = append(occ2[hash], start)
		}
	})
	if err != nil {
		return err
	}

	// Visit buckets in hash order to make the result independent of map iteration order.
	for n, hash := range slices.Sorted(maps.Keys(occ2)) {
		if n%pollBuckets == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		starts1 := nonOverlapping(occ1[hash], blockLen)
		starts2 := nonOverlapping(occ2[hash], blockLen)
		if len(starts1) == 1 && len(starts2) == 1 {
			// A single candidate pair is verified by ChooseValid before it's used. Comparing it
			// here would make a pass over a long identical region quadratic.
			record(sets, x, MatchSet{Hash: hash, BlockSize: blockLen, Starts1: starts1, Starts2: starts2})
			continue
		}
		for _, g := range groupBucket(blockLen, x, y, starts1, starts2) {
			if len(g.starts1) > 0 && len(g.starts2) > 0 {
				record(sets, x, MatchSet{Hash: hash, BlockSize: blockLen, Starts1: g.starts1, Starts2: g.starts2})
			}
		}
	}
	return nil
}

// record adds the occurrences in s to the set in sets with the same hash, block size and content.
// If there's no such set, s is inserted as a new set.
func record(sets *Sets, x byteview.ByteView, s MatchSet) {
	block := func(m MatchSet) byteview.ByteView {
		return x.Slice(ranges.Range{Start: m.Starts1[0], End: m.Starts1[0] + m.BlockSize})
	}
	existing := sets.Lookup(s.Hash, s.BlockSize)
	for i := range existing {
		if !byteview.Equal(block(existing[i]), block(s)) {
			continue
		}
		e := &existing[i]
		e.Starts1 = mergeStarts(e.Starts1, s.Starts1)
		e.Starts2 = mergeStarts(e.Starts2, s.Starts2)
		slices.SortStableFunc(*sets, compareSets)
		return
	}
	sets.Insert(s)
}

// mergeStarts returns the sorted union of two sorted lists of starts.
func mergeStarts(a, b []uint32) []uint32 {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}

// nonOverlapping drops every start whose block overlaps the block of a previous start. Only one
// block of an overlapping run can ever be part of a match.
func nonOverlapping(starts []uint32, blockLen uint32) []uint32 {
	out := starts[:0:0]
	for _, s := range starts {
		if len(out) == 0 || s >= out[len(out)-1]+blockLen {
			out = append(out, s)
		}
	}
	return out
}

// windows calls fn with the hash and start of every window of blockLen bytes in v that doesn't
// overlap skip.
func windows(ctx context.Context, blockLen uint32, v byteview.ByteView, skip []ranges.Range, fn func(hash, start uint32)) error {
	_, gaps := ranges.FillEmptySpaces(v.Whole(), skip)
	h := rollhash.New(int(blockLen))
	n := 0
	for _, gap := range gaps {
		if gap.Count() < blockLen {
			continue
		}
		h.Reset()
		for i := gap.Start; i < gap.End; i++ {
			hash := h.HashByte(v.At(i))
			if !h.Filled() {
				continue
			}
			fn(hash, i+1-blockLen)
			if n++; n%pollWindows == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type group struct {
	block            byteview.ByteView
	starts1, starts2 []uint32
}

// groupBucket splits the occurrences of one hash bucket into groups of identical content. Rolling
// hash collisions end up in different groups.
func groupBucket(blockLen uint32, x, y byteview.ByteView, starts1, starts2 []uint32) []group {
	var groups []group
	find := func(block byteview.ByteView) int {
		for i, g := range groups {
			if byteview.Equal(g.block, block) {
				return i
			}
		}
		groups = append(groups, group{block: block})
		return len(groups) - 1
	}
	for _, s := range starts1 {
		i := find(x.Slice(ranges.Range{Start: s, End: s + blockLen}))
		groups[i].starts1 = append(groups[i].starts1, s)
	}
	for _, s := range starts2 {
		i := find(y.Slice(ranges.Range{Start: s, End: s + blockLen}))
		groups[i].starts2 = append(groups[i].starts2, s)
	}
	return groups
}
