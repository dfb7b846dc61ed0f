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

// Package search provides a step-by-step comparison of two byte sequences.
//
// A [Machine] records a walk through both inputs. Every state holds a cursor range in each input
// and, optionally, the alignment that was found by the step that led to it. Steps never modify
// existing states, they append a new state that references its parent. This makes it possible to
// undo steps or to explore different actions from the same state.
package search

import (
	"fmt"

	"github.com/rs/zerolog"
	"znkr.io/bindiff"
	"znkr.io/bindiff/internal/align"
	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/config"
	"znkr.io/bindiff/internal/ranges"
)

// Action describes a step of a walk.
//
//go:generate go tool golang.org/x/tools/cmd/stringer -type=Action
type Action int

const (
	Start                  Action = iota // Root of a walk, can't be used as a step.
	AdvanceBoth                          // Advance both cursors by one byte.
	AdvanceUntilMatch1                   // Advance the cursor in x to the next byte that matches the cursor in y.
	AdvanceUntilMatch2                   // Advance the cursor in y to the next byte that matches the cursor in x.
	AdvanceUntilAlignment1               // Find the next alignment, scanning x.
	AdvanceUntilAlignment2               // Find the next alignment, scanning y.
)

// ID identifies a state in a [Machine].
type ID int

// NoParent is the parent of the root state.
const NoParent ID = -1

// State is a single node of a walk.
type State struct {
	Parent ID     // State this state was derived from.
	Action Action // Action that led from Parent to this state.

	// Alignment found by Action. Only valid if HasAlignment is set.
	Alignment    bindiff.Match
	HasAlignment bool

	// Remaining ranges to search in x and y.
	Next1, Next2 bindiff.Range
}

// Machine stores the states of a walk through two inputs.
//
// A Machine is not safe for concurrent use.
type Machine struct {
	x, y   byteview.ByteView
	states []State
	log    zerolog.Logger
}

// New creates a machine for a walk through x and y. The walk starts with a single root state
// whose ranges cover both inputs completely; its ID is 0.
//
// The following option is supported: [bindiff.Logger]
func New[T string | []byte](x, y T, opts ...bindiff.Option) *Machine {
	cfg := config.FromOptions(opts, config.Logger)
	return newMachine(byteview.From(x), byteview.From(y), cfg)
}

func newMachine(x, y byteview.ByteView, cfg config.Config) *Machine {
	checkLen(x)
	checkLen(y)
	return &Machine{
		x: x,
		y: y,
		states: []State{{
			Parent: NoParent,
			Action: Start,
			Next1:  x.Whole(),
			Next2:  y.Whole(),
		}},
		log: cfg.Log.With().Str("component", "search").Logger(),
	}
}

func checkLen(v byteview.ByteView) {
	if uint64(v.Len()) > 1<<32-1 {
		panic(fmt.Sprintf("search: input of %d bytes exceeds the index space", v.Len()))
	}
}

// Len returns the number of states in m.
func (m *Machine) Len() int { return len(m.states) }

// State returns the state with the given id.
func (m *Machine) State(id ID) State {
	m.check(id)
	return m.states[id]
}

// Parent returns the state that id was derived from. It returns false for the root state.
func (m *Machine) Parent(id ID) (ID, bool) {
	m.check(id)
	p := m.states[id].Parent
	return p, p != NoParent
}

// Path returns the ids of all states from the root to id.
func (m *Machine) Path(id ID) []ID {
	m.check(id)
	var n int
	for i := id; i != NoParent; i = m.states[i].Parent {
		n++
	}
	path := make([]ID, n)
	for i := id; i != NoParent; i = m.states[i].Parent {
		n--
		path[n] = i
	}
	return path
}

// Alignments returns the alignments found on the path from the root to id, in order.
func (m *Machine) Alignments(id ID) []bindiff.Match {
	var out []bindiff.Match
	for _, i := range m.Path(id) {
		if s := m.states[i]; s.HasAlignment {
			out = append(out, s.Alignment)
		}
	}
	return out
}

func (m *Machine) check(id ID) {
	if id < 0 || int(id) >= len(m.states) {
		panic(fmt.Sprintf("search: invalid state id %d", id))
	}
}

// Step applies action to the state from and returns the id of the resulting state. It returns
// false if the action can't make progress from there, for example because no match is left;
// no state is added in that case.
//
// Step panics for [Start] and for unknown actions.
func (m *Machine) Step(from ID, action Action) (ID, bool) {
	m.check(from)
	s := m.states[from]
	next, ok := m.step(s, action)
	if !ok {
		m.log.Debug().Int("from", int(from)).Stringer("action", action).Msg("no progress")
		return 0, false
	}
	next.Parent = from
	next.Action = action
	m.states = append(m.states, next)
	id := ID(len(m.states) - 1)
	ev := m.log.Debug().Int("from", int(from)).Int("to", int(id)).Stringer("action", action)
	if next.HasAlignment {
		ev = ev.Stringer("alignment", next.Alignment)
	}
	ev.Msg("step")
	return id, true
}

func (m *Machine) step(s State, action Action) (State, bool) {
	switch action {
	case AdvanceBoth:
		return advanceBoth(s)
	case AdvanceUntilMatch1:
		return advanceUntilMatch(m.x, m.y, s.Next1, s.Next2)
	case AdvanceUntilMatch2:
		next, ok := advanceUntilMatch(m.y, m.x, s.Next2, s.Next1)
		return swap(next), ok
	case AdvanceUntilAlignment1:
		return advanceUntilAlignment(m.x, m.y, s.Next1, s.Next2)
	case AdvanceUntilAlignment2:
		next, ok := advanceUntilAlignment(m.y, m.x, s.Next2, s.Next1)
		return swap(next), ok
	case Start:
		panic("search: Start is not a step")
	default:
		panic(fmt.Sprintf("search: unknown action %d", action))
	}
}

func advanceBoth(s State) (State, bool) {
	if s.Next1.Count() <= 1 || s.Next2.Count() <= 1 {
		return State{}, false
	}
	return State{
		Next1: ranges.Range{Start: s.Next1.Start + 1, End: s.Next1.End},
		Next2: ranges.Range{Start: s.Next2.Start + 1, End: s.Next2.End},
	}, true
}

// advanceUntilMatch scans r1 in v1 for the byte at the start of r2 in v2 and returns the state
// after the run of matching bytes that begins there. In the result, Next1 and Start1 refer to v1.
func advanceUntilMatch(v1, v2 byteview.ByteView, r1, r2 ranges.Range) (State, bool) {
	if r1.IsEmpty() || r2.IsEmpty() {
		return State{}, false
	}
	i := v1.Slice(ranges.Range{Start: 0, End: r1.End}).IndexByte(v2.At(r2.Start), int(r1.Start))
	if i < 0 {
		return State{}, false
	}
	start := uint32(i)
	n := uint32(1)
	for start+n < r1.End && r2.Start+n < r2.End && v1.At(start+n) == v2.At(r2.Start+n) {
		n++
	}
	m := ranges.Match{Start1: start, Start2: r2.Start, Count: n}
	return State{
		Alignment:    m,
		HasAlignment: true,
		Next1:        ranges.Range{Start: m.End1(), End: r1.End},
		Next2:        ranges.Range{Start: m.End2(), End: r2.End},
	}, true
}

// advanceUntilAlignment finds the next alignment of r1 in v1 with r2 in v2 and returns the state
// after it. In the result, Next1 and Start1 refer to v1.
func advanceUntilAlignment(v1, v2 byteview.ByteView, r1, r2 ranges.Range) (State, bool) {
	if r1.IsEmpty() || r2.IsEmpty() {
		return State{}, false
	}
	source := v1.Slice(ranges.Range{Start: 0, End: r1.End})
	target := v2.Slice(ranges.Range{Start: 0, End: r2.End})
	m, ok := align.NextRange(source, target, r1.Start, r2.Start)
	if !ok {
		return State{}, false
	}
	return State{
		Alignment:    m,
		HasAlignment: true,
		Next1:        ranges.Range{Start: m.End1(), End: r1.End},
		Next2:        ranges.Range{Start: m.End2(), End: r2.End},
	}, true
}

// swap exchanges the roles of x and y in s.
func swap(s State) State {
	s.Alignment = s.Alignment.Swap()
	s.Next1, s.Next2 = s.Next2, s.Next1
	return s
}
