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

// Package align finds approximate alignments between two byte sequences where no exact block
// match exists.
//
// The alignment signal is the offset between a byte in the source and the next unconsumed
// occurrence of the same byte value in the target. A run of bytes that mostly share one offset is
// likely a region that corresponds in both inputs, possibly with a few changed bytes.
package align

import (
	"fmt"
	"math"

	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/ranges"
)

// NoMatch is the offset of a source byte that has no remaining occurrence in the target.
const NoMatch = math.MaxInt

// minRange is the number of bytes needed to accept the beginning of an alignment.
const minRange = 3

// offsets computes the offset of every source byte relative to the two start cursors. Offsets
// must be requested in ascending order.
type offsets struct {
	source, target           byteview.ByteView
	sourceStart, targetStart int
	retained                 [256]int // next unconsumed index in target per byte value
}

func newOffsets(source, target byteview.ByteView, sourceStart, targetStart uint32) *offsets {
	o := &offsets{
		source:      source,
		target:      target,
		sourceStart: int(sourceStart),
		targetStart: int(targetStart),
	}
	for i := range o.retained {
		o.retained[i] = o.targetStart
	}
	return o
}

// at returns the offset of the source byte at sourceStart+rel.
func (o *offsets) at(rel int) int {
	b := o.source.At(uint32(o.sourceStart + rel))
	// The occurrence may not lie before the source byte's own position relative to the cursors,
	// so offsets are never negative.
	from := max(o.retained[b], o.targetStart+rel)
	j := o.target.IndexByte(b, from)
	if j < 0 {
		o.retained[b] = o.target.Len()
		return NoMatch
	}
	o.retained[b] = j + 1
	return (j - o.targetStart) - rel
}

// OffsetMap returns the offsets of all bytes in source starting at sourceStart to their next
// unconsumed occurrence in target starting at targetStart. An offset d at position i means that
// source[sourceStart+i] is found at target[targetStart+i+d]. Bytes without an occurrence have the
// offset [NoMatch].
func OffsetMap(source, target byteview.ByteView, sourceStart, targetStart uint32) []int {
	checkStarts(source, target, sourceStart, targetStart)
	o := newOffsets(source, target, sourceStart, targetStart)
	out := make([]int, source.Len()-int(sourceStart))
	for i := range out {
		out[i] = o.at(i)
	}
	return out
}

// NextRange finds the next alignment of source starting at sourceStart with target starting at
// targetStart.
//
// An alignment begins where at least 2 of 3 consecutive source bytes share the same offset. It
// grows as long as a strict majority of the bytes since its beginning match at that offset, and
// ends at the last matching byte before the majority is lost or either input ends. Start1 of the
// result is in source, Start2 in target.
//
// NextRange returns false if there is no alignment, in particular when fewer than 3 bytes remain
// in either input.
func NextRange(source, target byteview.ByteView, sourceStart, targetStart uint32) (ranges.Match, bool) {
	checkStarts(source, target, sourceStart, targetStart)
	n := source.Len() - int(sourceStart)
	if n < minRange || target.Len()-int(targetStart) < minRange {
		return ranges.Match{}, false
	}

	o := newOffsets(source, target, sourceStart, targetStart)
	window := [minRange]int{o.at(0), o.at(1), o.at(2)}
	for k := 0; ; k++ {
		if d, ok := vote(window); ok {
			return grow(source, target, int(sourceStart)+k, int(targetStart)+k+d), true
		}
		if k+minRange >= n {
			return ranges.Match{}, false
		}
		window = [minRange]int{window[1], window[2], o.at(k + minRange)}
	}
}

// vote returns the offset shared by at least two entries of w.
func vote(w [minRange]int) (int, bool) {
	switch {
	case w[0] != NoMatch && (w[0] == w[1] || w[0] == w[2]):
		return w[0], true
	case w[1] != NoMatch && w[1] == w[2]:
		return w[1], true
	default:
		return 0, false
	}
}

// grow extends an alignment of source at i with target at j.
func grow(source, target byteview.ByteView, i, j int) ranges.Match {
	first, last := -1, -1
	matched, scanned := 0, 0
	for t := 0; i+t < source.Len() && j+t < target.Len(); t++ {
		scanned++
		if source.At(uint32(i+t)) == target.At(uint32(j+t)) {
			matched++
			if first < 0 {
				first = t
			}
			last = t
		}
		if scanned >= minRange && matched*2 <= scanned {
			break
		}
	}
	return ranges.Match{
		Start1: uint32(i + first),
		Start2: uint32(j + first),
		Count:  uint32(last - first + 1),
	}
}

func checkStarts(source, target byteview.ByteView, sourceStart, targetStart uint32) {
	if int(sourceStart) > source.Len() || int(targetStart) > target.Len() {
		panic(fmt.Sprintf("align: start %d, %d out of bounds for inputs of %d, %d bytes", sourceStart, targetStart, source.Len(), target.Len()))
	}
}

// Diff describes the matching and differing bytes inside of an alignment.
type Diff struct {
	Matches1, Diffs1 []ranges.Range // in x
	Matches2, Diffs2 []ranges.Range // in y
}

// RangeDiff compares the bytes of x and y paired by m and returns the ranges of matching and
// differing bytes in both inputs. Consecutive bytes with the same classification are joined into
// one range.
func RangeDiff(x, y byteview.ByteView, m ranges.Match) Diff {
	if int64(m.End1()) > int64(x.Len()) || int64(m.End2()) > int64(y.Len()) {
		panic(fmt.Sprintf("align: alignment %v out of bounds for inputs of %d, %d bytes", m, x.Len(), y.Len()))
	}
	var d Diff
	var run uint32 // start of the current run relative to m
	for i := uint32(0); i < m.Count; i++ {
		same := x.At(m.Start1+i) == y.At(m.Start2+i)
		if i+1 < m.Count && same == (x.At(m.Start1+i+1) == y.At(m.Start2+i+1)) {
			continue
		}
		r1 := ranges.Range{Start: m.Start1 + run, End: m.Start1 + i + 1}
		r2 := ranges.Range{Start: m.Start2 + run, End: m.Start2 + i + 1}
		if same {
			d.Matches1 = append(d.Matches1, r1)
			d.Matches2 = append(d.Matches2, r2)
		} else {
			d.Diffs1 = append(d.Diffs1, r1)
			d.Diffs2 = append(d.Diffs2, r2)
		}
		run = i + 1
	}
	return d
}
