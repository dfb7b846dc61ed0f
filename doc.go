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

// Package bindiff compares two byte sequences and finds the regions they have in common.
//
// The main function is [Compare]. It searches for identical blocks of bytes in both inputs,
// starting with the largest possible block and working its way down to a minimum block length
// (see [MinBlockSize]). The result is a list of matches and, for both inputs, the ranges that are
// not covered by any match. Matches may appear in a different order in both inputs, which makes
// it possible to detect moved blocks.
//
// Long comparisons can run in the background with [Start] and be cancelled through their
// context.
//
// For regions without an exact match, [NextAlignment] finds a best-effort alignment based on the
// offsets between equal byte values in both inputs, and [AlignmentDiff] splits an alignment into
// matching and differing bytes. A step-by-step walk through both inputs that combines these
// strategies is provided by [znkr.io/bindiff/search].
//
// All positions are byte indices. Inputs are limited to 4 GiB.
//
// [znkr.io/bindiff/search]: https://pkg.go.dev/znkr.io/bindiff/search
package bindiff
