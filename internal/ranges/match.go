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

package ranges

import "fmt"

// Match describes a region of Count bytes at Start1 in the first input that corresponds to the
// region at Start2 in the second input.
type Match struct {
	Start1 uint32 // Start in the first input.
	Start2 uint32 // Start in the second input.
	Count  uint32 // Number of bytes.
}

// End1 is the exclusive end of m in the first input.
func (m Match) End1() uint32 { return end(m.Start1, m.Count) }

// End2 is the exclusive end of m in the second input.
func (m Match) End2() uint32 { return end(m.Start2, m.Count) }

// Range1 returns the range m occupies in the first input.
func (m Match) Range1() Range { return Range{m.Start1, m.End1()} }

// Range2 returns the range m occupies in the second input.
func (m Match) Range2() Range { return Range{m.Start2, m.End2()} }

// Swap returns m with the roles of both inputs exchanged.
func (m Match) Swap() Match { return Match{m.Start2, m.Start1, m.Count} }

func (m Match) String() string {
	return fmt.Sprintf("%v<->%v", m.Range1(), m.Range2())
}

// end returns start+count and panics if the sum doesn't fit in an index.
func end(start, count uint32) uint32 {
	e := start + count
	if e < start {
		panic(fmt.Sprintf("ranges: %d+%d overflows the index space", start, count))
	}
	return e
}
