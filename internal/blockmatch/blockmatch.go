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

// Package blockmatch implements the block match engine: it finds identical blocks of bytes in
// two inputs, starting with the largest possible block length and working its way down to a
// minimum block length, only ever searching the gaps left by previous passes.
//
// The result is a set of non-overlapping matches and, for both inputs, the list of ranges that
// are not covered by any match. Matched and unmatched ranges together partition each input.
package blockmatch

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/config"
	"znkr.io/bindiff/internal/ranges"
)

// Side selects one of the two inputs.
type Side int

const (
	X Side = iota // First input.
	Y             // Second input.
)

// Results describes the outcome of [Compare].
type Results struct {
	Sets       Sets           // Chosen match sets of all passes, ordered by hash.
	Matches    []ranges.Match // Non-overlapping matches, ordered by position in x.
	Unmatched1 []ranges.Range // Ranges in x not covered by a match, ascending.
	Unmatched2 []ranges.Range // Ranges in y not covered by a match, ascending.

	// Aborted is set if the comparison was cancelled. All other fields hold the partial result
	// found until then.
	Aborted bool

	// InternalError is set if an internal consistency check failed, Err describes the failures.
	InternalError bool
	Err           error
}

// Compare finds the largest matching blocks in x and y and the ranges in between them.
//
// Cancelling ctx stops the comparison early and marks the result as aborted. Compare never
// returns partial results that violate the partition of x and y into matched and unmatched
// ranges, unless InternalError is set.
func Compare(ctx context.Context, x, y byteview.ByteView, cfg config.Config) Results {
	if uint64(x.Len()) > math.MaxUint32 || uint64(y.Len()) > math.MaxUint32 {
		panic(fmt.Sprintf("blockmatch: inputs of %d and %d bytes exceed the index space", x.Len(), y.Len()))
	}
	log := cfg.Log.With().Str("component", "blockmatch").Logger()
	start := time.Now()

	var res Results
	var errs *multierror.Error

	sets, matches, err := FindLargest(ctx, x, y, nil, nil, cfg)
	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		res.Aborted = true
	default:
		errs = multierror.Append(errs, err)
	}
	res.Sets = sets
	res.Matches = coalesce(matches)

	res.Unmatched1, err = Unmatched(x.Whole(), res.Matches, X)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	res.Unmatched2, err = Unmatched(y.Whole(), res.Matches, Y)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs == nil {
		errs = multierror.Append(errs, checkPartition(x.Whole(), res.Matches, res.Unmatched1, X))
		errs = multierror.Append(errs, checkPartition(y.Whole(), res.Matches, res.Unmatched2, Y))
	}

	if err := errs.ErrorOrNil(); err != nil {
		res.InternalError = true
		res.Err = err
		log.Error().Err(err).Msg("internal consistency check failed")
	}
	log.Debug().
		Int("len_x", x.Len()).
		Int("len_y", y.Len()).
		Int("matches", len(res.Matches)).
		Bool("aborted", res.Aborted).
		Dur("duration", time.Since(start)).
		Msg("comparison finished")
	return res
}

// FindLargest repeatedly searches for matching blocks in the gaps between skip1 and skip2 (and
// the matches found so far) with decreasing block lengths.
//
// The first block length is the size of the largest gap in either input, capped by
// cfg.MaxBlockSize. After each pass the block length is halved, but not below cfg.MinBlockSize
// unless the last pass already used it, and capped again by the largest remaining gap. The
// search stops when the block length drops below cfg.MinBlockSize or when either input is fully
// matched.
//
// On cancellation, FindLargest returns the matches of all completed passes and ctx.Err(). The
// matches are ordered by position in x either way.
func FindLargest(ctx context.Context, x, y byteview.ByteView, skip1, skip2 []ranges.Range, cfg config.Config) (Sets, []ranges.Match, error) {
	log := cfg.Log.With().Str("component", "blockmatch").Logger()
	minSize, maxSize := clamp(cfg.MinBlockSize), clamp(cfg.MaxBlockSize)

	largestGap := func() uint32 {
		return min(ranges.LargestEmptySpace(x.Whole(), skip1), ranges.LargestEmptySpace(y.Whole(), skip2))
	}

	next := func(size uint32) uint32 {
		n := size / 2
		if n < minSize && size > minSize {
			n = minSize
		}
		return min(n, largestGap())
	}

	var all Sets
	var matches []ranges.Match
	done := func(err error) (Sets, []ranges.Match, error) {
		slices.SortFunc(matches, compareMatches)
		return all, matches, err
	}
	for size := min(maxSize, largestGap()); size >= minSize; size = next(size) {
		if !ranges.IsNonDecreasingAndNonOverlapping(skip1) || !ranges.IsNonDecreasingAndNonOverlapping(skip2) {
			return done(errors.AssertionFailedf("skip ranges are not sorted and non-overlapping before pass with block size %d", size))
		}
		if err := ctx.Err(); err != nil {
			return done(err)
		}

		start := time.Now()
		var pass Sets
		if err := Search(ctx, size, x, y, skip1, skip2, &pass); err != nil {
			return done(err)
		}
		chosen, found := ChooseValid(x, y, pass)
		skip1, skip2 = AddToSkipRanges(skip1, skip2, found)
		all = all.Union(chosen)
		matches = append(matches, found...)

		log.Debug().
			Uint32("block_size", size).
			Int("candidates", len(pass)).
			Int("pairs", pass.Pairs()).
			Int("matches", len(found)).
			Dur("duration", time.Since(start)).
			Msg("block size pass finished")
	}
	return done(nil)
}

// Unmatched returns the ranges in fill that are not covered by a match in the selected input.
func Unmatched(fill ranges.Range, matches []ranges.Match, side Side) ([]ranges.Range, error) {
	spans := occupied(matches, side)
	if !ranges.IsNonDecreasingAndNonOverlapping(spans) {
		return nil, errors.AssertionFailedf("matches overlap in input %d", side)
	}
	_, added := ranges.FillEmptySpaces(fill, spans)
	return added, nil
}

// occupied returns the ranges occupied by matches in one input, sorted by start.
func occupied(matches []ranges.Match, side Side) []ranges.Range {
	spans := make([]ranges.Range, len(matches))
	for i, m := range matches {
		switch side {
		case X:
			spans[i] = m.Range1()
		case Y:
			spans[i] = m.Range2()
		default:
			panic(fmt.Sprintf("unknown side: %d", side))
		}
	}
	slices.SortFunc(spans, compareStarts)
	return spans
}

// checkPartition verifies that matched and unmatched ranges form an exact partition of whole.
func checkPartition(whole ranges.Range, matches []ranges.Match, unmatched []ranges.Range, side Side) error {
	if whole.IsEmpty() {
		if len(matches) > 0 || len(unmatched) > 0 {
			return errors.AssertionFailedf("found ranges in empty input %d", side)
		}
		return nil
	}
	blocks := append(occupied(matches, side), unmatched...)
	slices.SortFunc(blocks, compareStarts)
	if !ranges.IsExactAscendingPartition(whole, blocks) {
		return errors.AssertionFailedf("matched and unmatched ranges don't partition input %d", side)
	}
	return nil
}

func compareStarts(a, b ranges.Range) int { return cmp.Compare(a.Start, b.Start) }

// clamp converts a configured block size to the range [1, MaxUint32].
func clamp(n int) uint32 {
	switch {
	case n < 1:
		return 1
	case uint64(n) > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(n)
	}
}

// coalesce joins matches that continue each other in both inputs. The input must be ordered by
// position in x.
func coalesce(matches []ranges.Match) []ranges.Match {
	if len(matches) == 0 {
		return nil
	}
	out := []ranges.Match{matches[0]}
	for _, m := range matches[1:] {
		last := &out[len(out)-1]
		if last.End1() == m.Start1 && last.End2() == m.Start2 {
			last.Count += m.Count
			continue
		}
		out = append(out, m)
	}
	return out
}
