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

package bindiff

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"znkr.io/bindiff/internal/align"
	"znkr.io/bindiff/internal/blockmatch"
	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/config"
	"znkr.io/bindiff/internal/ranges"
)

// Range is a half-open range [Start, End) of byte indices. All empty ranges are equal.
type Range = ranges.Range

// Match describes Count bytes that are identical in x at Start1 and in y at Start2.
type Match = ranges.Match

// MatchSet is a block of identical bytes together with all places it was matched in x and y.
type MatchSet = blockmatch.MatchSet

// Diff describes the matching and differing bytes inside of an alignment.
type Diff = align.Diff

// Side selects one of the two inputs.
type Side = blockmatch.Side

const (
	X = blockmatch.X // First input.
	Y = blockmatch.Y // Second input.
)

// Op describes whether a span of bytes is matched.
//
//go:generate go tool golang.org/x/tools/cmd/stringer -type=Op
type Op int

const (
	Matched   Op = iota // Bytes that are part of a match
	Unmatched           // Bytes that are not part of any match
)

// Span is a range of bytes in one input with the same [Op].
type Span struct {
	Op Op
	Range
}

// Results describes the outcome of a comparison.
type Results struct {
	// Matches are the non-overlapping common blocks of x and y, ordered by their position in x.
	// Matches that continue each other in both inputs are joined.
	Matches []Match

	// Sets are the blocks found by the individual search passes, ordered by hash.
	Sets []MatchSet

	// Unmatched1 and Unmatched2 are the ranges of x and y that are not part of any match, in
	// ascending order. Together with the matches they cover the inputs without gaps or overlaps.
	Unmatched1, Unmatched2 []Range

	// Aborted is set if the comparison was cancelled before it finished. The other fields hold the
	// matches found until then.
	Aborted bool

	// InternalError is set if the comparison failed an internal consistency check; Err describes
	// the failures. The other fields hold the best result available.
	InternalError bool
	Err           error
}

// Compare compares the contents of x and y and returns the matching blocks of bytes and the
// unmatched ranges in between.
//
// Cancelling ctx stops the comparison early, the result is marked as [Results.Aborted] in that
// case. If x and y are identical, the result consists of a single match.
//
// The following options are supported: [bindiff.MinBlockSize], [bindiff.MaxBlockSize],
// [bindiff.Logger]
//
// Important: The output is not guaranteed to be stable and may change with minor version upgrades.
// DO NOT rely on the output being stable.
func Compare[T string | []byte](ctx context.Context, x, y T, opts ...Option) Results {
	cfg := config.FromOptions(opts, config.MinBlockSize|config.MaxBlockSize|config.Logger)
	return compare(ctx, byteview.From(x), byteview.From(y), cfg)
}

func compare(ctx context.Context, x, y byteview.ByteView, cfg config.Config) Results {
	res := blockmatch.Compare(ctx, x, y, cfg)
	return Results{
		Matches:       res.Matches,
		Sets:          res.Sets,
		Unmatched1:    res.Unmatched1,
		Unmatched2:    res.Unmatched2,
		Aborted:       res.Aborted,
		InternalError: res.InternalError,
		Err:           res.Err,
	}
}

// Spans returns the matched and unmatched spans of one input in ascending order.
func (r Results) Spans(side Side) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		var unmatched []Range
		spans := make([]Span, 0, len(r.Matches)+max(len(r.Unmatched1), len(r.Unmatched2)))
		for _, m := range r.Matches {
			switch side {
			case X:
				spans = append(spans, Span{Matched, m.Range1()})
			case Y:
				spans = append(spans, Span{Matched, m.Range2()})
			}
		}
		switch side {
		case X:
			unmatched = r.Unmatched1
		case Y:
			unmatched = r.Unmatched2
		default:
			panic("unknown side")
		}
		for _, u := range unmatched {
			spans = append(spans, Span{Unmatched, u})
		}
		slices.SortFunc(spans, func(a, b Span) int { return cmp.Compare(a.Start, b.Start) })
		for _, s := range spans {
			if !yield(s) {
				return
			}
		}
	}
}

// Comparison is a comparison running in the background, see [Start].
type Comparison struct {
	cancel context.CancelFunc
	done   chan struct{}
	res    Results
}

// Start starts comparing x and y on a separate goroutine and returns immediately.
//
// The inputs must not be modified until the comparison is done. The comparison is cancelled
// when ctx is cancelled or when [Comparison.Cancel] is called.
//
// The following options are supported: [bindiff.MinBlockSize], [bindiff.MaxBlockSize],
// [bindiff.Logger]
func Start[T string | []byte](ctx context.Context, x, y T, opts ...Option) *Comparison {
	cfg := config.FromOptions(opts, config.MinBlockSize|config.MaxBlockSize|config.Logger)
	ctx, cancel := context.WithCancel(ctx)
	c := &Comparison{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	vx, vy := byteview.From(x), byteview.From(y)
	go func() {
		defer close(c.done)
		defer cancel()
		c.res = compare(ctx, vx, vy, cfg)
	}()
	return c
}

// Done returns a channel that is closed when the comparison is finished.
func (c *Comparison) Done() <-chan struct{} { return c.done }

// Cancel requests the comparison to stop. It doesn't wait for the comparison to finish, use
// [Comparison.Wait] for that.
func (c *Comparison) Cancel() { c.cancel() }

// Wait waits for the comparison to finish and returns its results.
func (c *Comparison) Wait() Results {
	<-c.done
	return c.res
}

// NextAlignment finds the next approximate alignment of x starting at start1 with y starting at
// start2. An alignment begins where 2 of 3 consecutive bytes in x occur at the same offset in y,
// and extends as long as the majority of bytes match at this offset. Alignments never point
// backwards in y, that is, Start2-start2 >= Start1-start1 for the result.
//
// NextAlignment returns false if there is no alignment.
func NextAlignment[T string | []byte](x, y T, start1, start2 uint32) (Match, bool) {
	return align.NextRange(byteview.From(x), byteview.From(y), start1, start2)
}

// AlignmentDiff returns the ranges of matching and differing bytes inside of alignment m.
func AlignmentDiff[T string | []byte](x, y T, m Match) Diff {
	return align.RangeDiff(byteview.From(x), byteview.From(y), m)
}
