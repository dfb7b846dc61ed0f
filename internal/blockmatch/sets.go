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
	"slices"
)

// MatchSet is an equivalence class of identical blocks of BlockSize bytes that occur in both
// inputs.
//
// During a search pass, Starts1 and Starts2 collect the occurrences of the block in x and y
// respectively, in ascending order. After [ChooseValid], a set only holds the chosen occurrences
// and Starts1[k] is paired with Starts2[k].
type MatchSet struct {
	Hash      uint32   // Rolling hash of the block.
	BlockSize uint32   // Length of the block.
	Starts1   []uint32 // Starts of the block in x.
	Starts2   []uint32 // Starts of the block in y.
}

func compareSets(a, b MatchSet) int {
	if c := cmp.Compare(a.Hash, b.Hash); c != 0 {
		return c
	}
	if c := cmp.Compare(a.BlockSize, b.BlockSize); c != 0 {
		return c
	}
	// Sets with the same hash and size have different content (a hash collision). The first
	// occurrence in x tells them apart.
	return cmp.Compare(first(a.Starts1), first(b.Starts1))
}

func first(s []uint32) uint32 {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Sets is a collection of match sets ordered by hash.
type Sets []MatchSet

// Lookup returns all sets with the given hash and block size.
func (ss Sets) Lookup(hash, size uint32) []MatchSet {
	key := func(s MatchSet, _ uint32) int {
		if c := cmp.Compare(s.Hash, hash); c != 0 {
			return c
		}
		return cmp.Compare(s.BlockSize, size)
	}
	i, ok := slices.BinarySearchFunc(ss, hash, key)
	if !ok {
		return nil
	}
	j := i + 1
	for j < len(ss) && key(ss[j], hash) == 0 {
		j++
	}
	return ss[i:j:j]
}

// Insert adds s to ss and keeps ss ordered.
func (ss *Sets) Insert(s MatchSet) {
	i, _ := slices.BinarySearchFunc(*ss, s, compareSets)
	*ss = slices.Insert(*ss, i, s)
}

// Union returns a collection with all sets in ss and other.
func (ss Sets) Union(other Sets) Sets {
	out := slices.Concat(ss, other)
	slices.SortStableFunc(out, compareSets)
	return out
}

// Pairs returns the number of paired occurrences in ss.
func (ss Sets) Pairs() int {
	n := 0
	for _, s := range ss {
		n += min(len(s.Starts1), len(s.Starts2))
	}
	return n
}
