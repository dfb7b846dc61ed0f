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
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/config"
	"znkr.io/bindiff/internal/ranges"
)

func cfgWith(minSize, maxSize int) config.Config {
	cfg := config.Default
	cfg.MinBlockSize = minSize
	cfg.MaxBlockSize = maxSize
	return cfg
}

func TestSearchSingleByteBlocks(t *testing.T) {
	x := byteview.From("ABCDE")
	y := byteview.From("ABXDE")

	var sets Sets
	if err := Search(t.Context(), 1, x, y, nil, nil, &sets); err != nil {
		t.Fatalf("Search(...) failed: %v", err)
	}
	_, got := ChooseValid(x, y, sets)
	want := []ranges.Match{
		{Start1: 0, Start2: 0, Count: 1},
		{Start1: 1, Start2: 1, Count: 1},
		{Start1: 3, Start2: 3, Count: 1},
		{Start1: 4, Start2: 4, Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ChooseValid(...) matches are different [-want,+got]:\n%s", diff)
	}

	u1, err := Unmatched(x.Whole(), got, X)
	if err != nil {
		t.Fatalf("Unmatched(x) failed: %v", err)
	}
	u2, err := Unmatched(y.Whole(), got, Y)
	if err != nil {
		t.Fatalf("Unmatched(y) failed: %v", err)
	}
	wantUnmatched := []ranges.Range{{Start: 2, End: 3}}
	if diff := cmp.Diff(wantUnmatched, u1); diff != "" {
		t.Errorf("Unmatched(x) is different [-want,+got]:\n%s", diff)
	}
	if diff := cmp.Diff(wantUnmatched, u2); diff != "" {
		t.Errorf("Unmatched(y) is different [-want,+got]:\n%s", diff)
	}
}

func TestSearchSkipsRanges(t *testing.T) {
	x := byteview.From("abcdabcd")
	y := byteview.From("abcd")

	var sets Sets
	skip1 := []ranges.Range{{Start: 0, End: 4}}
	if err := Search(t.Context(), 4, x, y, skip1, nil, &sets); err != nil {
		t.Fatalf("Search(...) failed: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("Search(...) found %d sets, want 1", len(sets))
	}
	if diff := cmp.Diff([]uint32{4}, sets[0].Starts1); diff != "" {
		t.Errorf("Starts1 are different [-want,+got]:\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{0}, sets[0].Starts2); diff != "" {
		t.Errorf("Starts2 are different [-want,+got]:\n%s", diff)
	}
}

func TestSearchPanicsOnZeroBlockLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Search(0, ...) didn't panic")
		}
	}()
	var sets Sets
	_ = Search(t.Context(), 0, byteview.From("a"), byteview.From("a"), nil, nil, &sets)
}

func TestNonOverlapping(t *testing.T) {
	tests := []struct {
		name     string
		starts   []uint32
		blockLen uint32
		want     []uint32
	}{
		{"empty", nil, 4, []uint32{}},
		{"disjoint", []uint32{0, 4, 8}, 4, []uint32{0, 4, 8}},
		{"run", []uint32{0, 1, 2, 3, 4, 5}, 2, []uint32{0, 2, 4}},
		{"gap", []uint32{0, 1, 7, 8}, 3, []uint32{0, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nonOverlapping(tt.starts, tt.blockLen)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("nonOverlapping(%v, %d) is different [-want,+got]:\n%s", tt.starts, tt.blockLen, diff)
			}
		})
	}
}

func TestChooseValidRejectsFalsePairs(t *testing.T) {
	// A set as it could come out of a rolling hash collision.
	sets := Sets{{Hash: 1, BlockSize: 2, Starts1: []uint32{0}, Starts2: []uint32{0}}}
	chosen, matches := ChooseValid(byteview.From("ab"), byteview.From("cd"), sets)
	if len(chosen) != 0 || len(matches) != 0 {
		t.Errorf("ChooseValid(...) = %v, %v, want no sets and no matches", chosen, matches)
	}
}

func TestChooseValidEarliestWins(t *testing.T) {
	x := byteview.From("xyxy")
	y := byteview.From("xy")
	// Two sets compete for the same block in y. The order in sets doesn't matter, the set with
	// the earlier occurrence in x wins.
	sets := Sets{
		{Hash: 3, BlockSize: 2, Starts1: []uint32{2}, Starts2: []uint32{0}},
		{Hash: 7, BlockSize: 2, Starts1: []uint32{0}, Starts2: []uint32{0}},
	}
	chosen, matches := ChooseValid(x, y, sets)
	wantMatches := []ranges.Match{{Start1: 0, Start2: 0, Count: 2}}
	if diff := cmp.Diff(wantMatches, matches); diff != "" {
		t.Errorf("ChooseValid(...) matches are different [-want,+got]:\n%s", diff)
	}
	wantSets := Sets{{Hash: 7, BlockSize: 2, Starts1: []uint32{0}, Starts2: []uint32{0}}}
	if diff := cmp.Diff(wantSets, chosen); diff != "" {
		t.Errorf("ChooseValid(...) sets are different [-want,+got]:\n%s", diff)
	}
}

func TestChooseValidOrdersPairsAcrossSets(t *testing.T) {
	x := byteview.From("xy--wxy")
	y := byteview.From("xy-xy-wx")
	// The first occurrence of xy in x comes before wx, the second one after it. Pairs are chosen
	// by position, so wx at x[4,6) wins over xy at x[5,7).
	sets := Sets{
		{Hash: 1, BlockSize: 2, Starts1: []uint32{0, 5}, Starts2: []uint32{0, 3}},
		{Hash: 2, BlockSize: 2, Starts1: []uint32{4}, Starts2: []uint32{6}},
	}
	chosen, matches := ChooseValid(x, y, sets)
	wantMatches := []ranges.Match{
		{Start1: 0, Start2: 0, Count: 2},
		{Start1: 4, Start2: 6, Count: 2},
	}
	if diff := cmp.Diff(wantMatches, matches); diff != "" {
		t.Errorf("ChooseValid(...) matches are different [-want,+got]:\n%s", diff)
	}
	wantSets := Sets{
		{Hash: 1, BlockSize: 2, Starts1: []uint32{0}, Starts2: []uint32{0}},
		{Hash: 2, BlockSize: 2, Starts1: []uint32{4}, Starts2: []uint32{6}},
	}
	if diff := cmp.Diff(wantSets, chosen); diff != "" {
		t.Errorf("ChooseValid(...) sets are different [-want,+got]:\n%s", diff)
	}
}

func TestChooseValidPairsInOrder(t *testing.T) {
	x := byteview.From("abab")
	y := byteview.From("ab")
	var sets Sets
	if err := Search(t.Context(), 2, x, y, nil, nil, &sets); err != nil {
		t.Fatalf("Search(...) failed: %v", err)
	}
	_, matches := ChooseValid(x, y, sets)
	want := []ranges.Match{{Start1: 0, Start2: 0, Count: 2}}
	if diff := cmp.Diff(want, matches); diff != "" {
		t.Errorf("ChooseValid(...) matches are different [-want,+got]:\n%s", diff)
	}
}

func TestChooseValidPanicsOnMixedBlockSizes(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ChooseValid(...) didn't panic")
		}
	}()
	sets := Sets{
		{Hash: 1, BlockSize: 1, Starts1: []uint32{0}, Starts2: []uint32{0}},
		{Hash: 2, BlockSize: 2, Starts1: []uint32{0}, Starts2: []uint32{0}},
	}
	ChooseValid(byteview.From("ab"), byteview.From("ab"), sets)
}

func TestClaims(t *testing.T) {
	c := newClaims(200)
	c.add(ranges.Range{Start: 60, End: 140})
	for i := range uint32(200) {
		if got, want := c.has(i), i >= 60 && i < 140; got != want {
			t.Errorf("has(%d) = %v, want %v", i, got, want)
		}
	}
	if !c.overlaps(ranges.Range{Start: 50, End: 61}) {
		t.Error("overlaps([50,61)) = false, want true")
	}
	if c.overlaps(ranges.Range{Start: 140, End: 150}) {
		t.Error("overlaps([140,150)) = true, want false")
	}
}

func TestAddToSkipRanges(t *testing.T) {
	skip1 := []ranges.Range{{Start: 0, End: 4}, {Start: 10, End: 12}}
	matches := []ranges.Match{
		{Start1: 4, Start2: 20, Count: 2},
		{Start1: 14, Start2: 0, Count: 3},
	}
	got1, got2 := AddToSkipRanges(skip1, nil, matches)
	want1 := []ranges.Range{{Start: 0, End: 6}, {Start: 10, End: 12}, {Start: 14, End: 17}}
	want2 := []ranges.Range{{Start: 0, End: 3}, {Start: 20, End: 22}}
	if diff := cmp.Diff(want1, got1); diff != "" {
		t.Errorf("skip ranges of x differ [-want,+got]:\n%s", diff)
	}
	if diff := cmp.Diff(want2, got2); diff != "" {
		t.Errorf("skip ranges of y differ [-want,+got]:\n%s", diff)
	}
	if skip1[0].End != 4 {
		t.Errorf("AddToSkipRanges modified its input: %v", skip1)
	}
}

func TestSetsPairs(t *testing.T) {
	ss := Sets{
		{Hash: 1, BlockSize: 4, Starts1: []uint32{0, 8, 16}, Starts2: []uint32{4}},
		{Hash: 2, BlockSize: 4, Starts1: []uint32{20}, Starts2: []uint32{0, 12}},
	}
	if got := ss.Pairs(); got != 2 {
		t.Errorf("Pairs() = %d, want 2", got)
	}
	if got := Sets(nil).Pairs(); got != 0 {
		t.Errorf("Pairs() of no sets = %d, want 0", got)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name           string
		x, y           string
		cfg            config.Config
		wantMatches    []ranges.Match
		wantUnmatched1 []ranges.Range
		wantUnmatched2 []ranges.Range
	}{
		{
			name: "empty",
			cfg:  config.Default,
		},
		{
			name:           "x-empty",
			y:              "abc",
			cfg:            config.Default,
			wantUnmatched2: []ranges.Range{{Start: 0, End: 3}},
		},
		{
			name:           "y-empty",
			x:              "abc",
			cfg:            config.Default,
			wantUnmatched1: []ranges.Range{{Start: 0, End: 3}},
		},
		{
			name:        "identical",
			x:           "abcdefgh",
			y:           "abcdefgh",
			cfg:         config.Default,
			wantMatches: []ranges.Match{{Start1: 0, Start2: 0, Count: 8}},
		},
		{
			name: "single-substitution",
			x:    "ABCDE",
			y:    "ABXDE",
			cfg:  cfgWith(1, 1),
			wantMatches: []ranges.Match{
				{Start1: 0, Start2: 0, Count: 2},
				{Start1: 3, Start2: 3, Count: 2},
			},
			wantUnmatched1: []ranges.Range{{Start: 2, End: 3}},
			wantUnmatched2: []ranges.Range{{Start: 2, End: 3}},
		},
		{
			name: "single-substitution-progression",
			x:    "ABCDE",
			y:    "ABXDE",
			cfg:  cfgWith(1, 1000),
			wantMatches: []ranges.Match{
				{Start1: 0, Start2: 0, Count: 2},
				{Start1: 3, Start2: 3, Count: 2},
			},
			wantUnmatched1: []ranges.Range{{Start: 2, End: 3}},
			wantUnmatched2: []ranges.Range{{Start: 2, End: 3}},
		},
		{
			name: "below-min-block-size",
			x:    "ABCDE",
			y:    "ABXDE",
			cfg:  config.Default,

			wantUnmatched1: []ranges.Range{{Start: 0, End: 5}},
			wantUnmatched2: []ranges.Range{{Start: 0, End: 5}},
		},
		{
			name: "moved-block",
			x:    "0123456789abcdefghij",
			y:    "abcdefghij0123456789",
			cfg:  config.Default,
			wantMatches: []ranges.Match{
				{Start1: 0, Start2: 10, Count: 10},
				{Start1: 10, Start2: 0, Count: 10},
			},
		},
		{
			name: "insertion",
			x:    "hello world",
			y:    "hello, brave new world",
			cfg:  config.Default,
			wantMatches: []ranges.Match{
				{Start1: 0, Start2: 0, Count: 5},
				{Start1: 5, Start2: 16, Count: 5},
			},
			// " worl" is found before "world", the trailing "d" is too short for another pass.
			wantUnmatched1: []ranges.Range{{Start: 10, End: 11}},
			wantUnmatched2: []ranges.Range{{Start: 5, End: 16}, {Start: 21, End: 22}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := byteview.From(tt.x), byteview.From(tt.y)
			got := Compare(t.Context(), x, y, tt.cfg)
			if got.Aborted || got.InternalError {
				t.Fatalf("Compare(...) = {Aborted: %v, InternalError: %v, Err: %v}, want success", got.Aborted, got.InternalError, got.Err)
			}
			if diff := cmp.Diff(tt.wantMatches, got.Matches, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Compare(...) matches are different [-want,+got]:\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantUnmatched1, got.Unmatched1, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Compare(...) unmatched ranges in x are different [-want,+got]:\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantUnmatched2, got.Unmatched2, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Compare(...) unmatched ranges in y are different [-want,+got]:\n%s", diff)
			}
		})
	}
}

func TestCompareSelf(t *testing.T) {
	rng := rand.New(rand.NewChaCha8([32]byte{'s', 'e', 'l', 'f'}))
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(rng.Uint32())
	}
	v := byteview.From(data)
	want := []ranges.Match{{Start1: 0, Start2: 0, Count: 1000}}
	for _, maxSize := range []int{1, 3, 7, 64, 100, 1000, 4096} {
		got := Compare(t.Context(), v, v, cfgWith(1, maxSize))
		if diff := cmp.Diff(want, got.Matches); diff != "" {
			t.Errorf("Compare(v, v) with MaxBlockSize %d is different [-want,+got]:\n%s", maxSize, diff)
		}
		if len(got.Unmatched1) > 0 || len(got.Unmatched2) > 0 {
			t.Errorf("Compare(v, v) with MaxBlockSize %d has unmatched ranges: %v, %v", maxSize, got.Unmatched1, got.Unmatched2)
		}
	}
}

// mutate returns a copy of data with random substitutions, insertions, deletions and moves.
func mutate(rng *rand.Rand, data []byte) []byte {
	out := append([]byte(nil), data...)
	for range rng.IntN(10) {
		if len(out) == 0 {
			break
		}
		i := rng.IntN(len(out))
		n := 1 + rng.IntN(min(32, len(out)-i))
		switch rng.IntN(4) {
		case 0:
			for j := i; j < i+n; j++ {
				out[j] = byte(rng.Uint32())
			}
		case 1:
			ins := make([]byte, n)
			for j := range ins {
				ins[j] = byte(rng.Uint32())
			}
			out = append(out[:i], append(ins, out[i:]...)...)
		case 2:
			out = append(out[:i], out[i+n:]...)
		case 3:
			block := append([]byte(nil), out[i:i+n]...)
			out = append(out[:i], out[i+n:]...)
			j := rng.IntN(len(out) + 1)
			out = append(out[:j], append(block, out[j:]...)...)
		}
	}
	return out
}

func TestComparePartitions(t *testing.T) {
	rng := rand.New(rand.NewChaCha8([32]byte{'p', 'a', 'r', 't'}))
	for i := range 200 {
		// A small alphabet produces many repeated blocks.
		data := make([]byte, rng.IntN(2000))
		alphabet := 2 + rng.IntN(254)
		for j := range data {
			data[j] = byte(rng.IntN(alphabet))
		}
		x := byteview.From(data)
		y := byteview.From(mutate(rng, data))
		cfg := cfgWith(1+rng.IntN(8), 1+rng.IntN(4096))
		cfg.MaxBlockSize = max(cfg.MaxBlockSize, cfg.MinBlockSize)

		got := Compare(t.Context(), x, y, cfg)
		if got.Aborted || got.InternalError {
			t.Fatalf("[%d] Compare(...) = {Aborted: %v, InternalError: %v, Err: %v}, want success", i, got.Aborted, got.InternalError, got.Err)
		}
		assertPartition(t, x.Whole(), got.Matches, got.Unmatched1, X)
		assertPartition(t, y.Whole(), got.Matches, got.Unmatched2, Y)
		for _, m := range got.Matches {
			if m.Count < uint32(cfg.MinBlockSize) {
				t.Errorf("[%d] match %v is shorter than the minimum block size %d", i, m, cfg.MinBlockSize)
			}
			if !byteview.Equal(x.Slice(m.Range1()), y.Slice(m.Range2())) {
				t.Errorf("[%d] match %v doesn't match", i, m)
			}
		}
	}
}

func assertPartition(t *testing.T, whole ranges.Range, matches []ranges.Match, unmatched []ranges.Range, side Side) {
	t.Helper()
	if err := checkPartition(whole, matches, unmatched, side); err != nil {
		t.Errorf("not a partition of %v: %v", whole, err)
	}
	if !ranges.IsNonDecreasingAndNonOverlapping(unmatched) {
		t.Errorf("unmatched ranges %v are not ascending", unmatched)
	}
}

func TestCompareCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	x := byteview.From("abcdefgh")
	got := Compare(ctx, x, x, config.Default)
	if !got.Aborted {
		t.Error("Compare(...) with cancelled context is not aborted")
	}
	if got.InternalError {
		t.Errorf("Compare(...) with cancelled context has an internal error: %v", got.Err)
	}
	want := []ranges.Range{{Start: 0, End: 8}}
	if diff := cmp.Diff(want, got.Unmatched1); diff != "" {
		t.Errorf("Compare(...) unmatched ranges in x are different [-want,+got]:\n%s", diff)
	}
}

// pollLimit is a context that reports cancellation once Err has been polled n times.
type pollLimit struct {
	context.Context
	n int
}

func (c *pollLimit) Err() error {
	if c.n <= 0 {
		return context.Canceled
	}
	c.n--
	return nil
}

func TestCompareCancelledMidway(t *testing.T) {
	x := byteview.From("wxyz0123456789abcdefghij")
	y := byteview.From("wxyz#0123456789abcdefghij")
	for n := range 64 {
		ctx := &pollLimit{Context: context.Background(), n: n}
		got := Compare(ctx, x, y, cfgWith(1, 1000))
		if got.InternalError {
			t.Fatalf("[%d] Compare(...) has an internal error: %v", n, got.Err)
		}
		if !slices.IsSortedFunc(got.Matches, compareMatches) {
			t.Errorf("[%d] Compare(...) matches are not ordered: %v", n, got.Matches)
		}
		assertPartition(t, x.Whole(), got.Matches, got.Unmatched1, X)
		assertPartition(t, y.Whole(), got.Matches, got.Unmatched2, Y)
	}
}

func TestFindLargestBlockSizes(t *testing.T) {
	// Passes with block sizes 16, 8, 4 and 2. The pass with 8 finds nothing.
	x := byteview.From("0123456789abcdefghij--KL")
	y := byteview.From("0123456789abcdefghij++KL")
	sets, matches, err := FindLargest(t.Context(), x, y, nil, nil, cfgWith(2, 16))
	if err != nil {
		t.Fatalf("FindLargest(...) failed: %v", err)
	}
	want := []ranges.Match{
		{Start1: 0, Start2: 0, Count: 16},
		{Start1: 16, Start2: 16, Count: 4},
		{Start1: 22, Start2: 22, Count: 2},
	}
	if diff := cmp.Diff(want, matches); diff != "" {
		t.Errorf("FindLargest(...) matches are different [-want,+got]:\n%s", diff)
	}
	var sizes []uint32
	for _, s := range sets {
		sizes = append(sizes, s.BlockSize)
	}
	if diff := cmp.Diff([]uint32{2, 4, 16}, sizes, cmpopts.SortSlices(func(a, b uint32) bool { return a < b })); diff != "" {
		t.Errorf("FindLargest(...) block sizes are different [-want,+got]:\n%s", diff)
	}
}

func TestUnmatchedDetectsOverlaps(t *testing.T) {
	matches := []ranges.Match{
		{Start1: 0, Start2: 0, Count: 4},
		{Start1: 2, Start2: 8, Count: 4},
	}
	_, err := Unmatched(ranges.Range{Start: 0, End: 10}, matches, X)
	if !errors.HasAssertionFailure(err) {
		t.Errorf("Unmatched(...) = %v, want assertion failure", err)
	}
}

func TestFindLargestEndsWithMinBlockSize(t *testing.T) {
	// After a pass with block size 7, a gap of 6 bytes remains in both inputs. Halving would skip
	// straight past the minimum block size of 4.
	x := byteview.From("abcdefgHIJKLM")
	y := byteview.From("abcdefgHIJKLM")
	_, matches, err := FindLargest(t.Context(), x, y, nil, nil, cfgWith(4, 7))
	if err != nil {
		t.Fatalf("FindLargest(...) failed: %v", err)
	}
	want := []ranges.Match{
		{Start1: 0, Start2: 0, Count: 7},
		{Start1: 7, Start2: 7, Count: 4},
	}
	if diff := cmp.Diff(want, matches); diff != "" {
		t.Errorf("FindLargest(...) matches are different [-want,+got]:\n%s", diff)
	}
}

func TestCoalesce(t *testing.T) {
	in := []ranges.Match{
		{Start1: 0, Start2: 0, Count: 2},
		{Start1: 2, Start2: 2, Count: 3},
		{Start1: 5, Start2: 9, Count: 1},
		{Start1: 6, Start2: 10, Count: 1},
		{Start1: 8, Start2: 11, Count: 1},
	}
	want := []ranges.Match{
		{Start1: 0, Start2: 0, Count: 5},
		{Start1: 5, Start2: 9, Count: 2},
		{Start1: 8, Start2: 11, Count: 1},
	}
	if diff := cmp.Diff(want, coalesce(in)); diff != "" {
		t.Errorf("coalesce(...) is different [-want,+got]:\n%s", diff)
	}
}

func BenchmarkCompare(b *testing.B) {
	rng := rand.New(rand.NewChaCha8([32]byte{'b', 'e', 'n', 'c', 'h'}))
	data := make([]byte, 1<<16)
	for i := range data {
		data[i] = byte(rng.Uint32())
	}
	x := byteview.From(data)
	y := byteview.From(mutate(rng, data))
	b.ReportAllocs()
	for b.Loop() {
		Compare(b.Context(), x, y, config.Default)
	}
}
