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

// Package byteview provides a mechanism to handle strings and []byte as immutable byte views.
//
// The comparison engine never modifies its inputs. Wrapping them in a ByteView makes that a
// property of the type: a view can be read and sliced, but not written.
package byteview

import (
	"strings"
	"unsafe"

	"github.com/OneOfOne/xxhash"
	"znkr.io/bindiff/internal/ranges"
)

type ByteView struct {
	data string
}

func From[T string | []byte](in T) ByteView {
	switch in := any(in).(type) {
	case string:
		return ByteView{in}
	case []byte:
		return ByteView{unsafe.String(unsafe.SliceData(in), len(in))}
	}
	panic("never reached")
}

func (v ByteView) Len() int { return len(v.data) }

// At returns the byte at index i.
func (v ByteView) At(i uint32) byte { return v.data[i] }

// Slice returns the part of v covered by r.
func (v ByteView) Slice(r ranges.Range) ByteView {
	if r.IsEmpty() {
		return ByteView{}
	}
	return ByteView{v.data[r.Start:r.End]}
}

// Whole returns the range covering all of v.
func (v ByteView) Whole() ranges.Range {
	return ranges.Range{Start: 0, End: uint32(len(v.data))}
}

// IndexByte returns the index of the first occurrence of c in v at or after from, or -1 if there
// is none.
func (v ByteView) IndexByte(c byte, from int) int {
	if from >= len(v.data) {
		return -1
	}
	i := strings.IndexByte(v.data[from:], c)
	if i < 0 {
		return -1
	}
	return from + i
}

// Sum64 returns the xxhash64 checksum of v.
func (v ByteView) Sum64() uint64 { return xxhash.ChecksumString64(v.data) }

// Equal returns true if a and b contain the same bytes.
func Equal(a, b ByteView) bool { return a.data == b.data }

func (v ByteView) String() string { return v.data }
