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

package bindiff_test

import (
	"context"
	"fmt"

	"znkr.io/bindiff"
)

// Compare two versions of a byte sequence and print which parts of each input are matched.
func ExampleCompare() {
	x := "hello world\n"
	y := "hello, brave new world\n"

	res := bindiff.Compare(context.Background(), x, y, bindiff.MinBlockSize(1))
	for _, m := range res.Matches {
		fmt.Printf("%q matches at x%v and y%v\n", x[m.Start1:m.End1()], m.Range1(), m.Range2())
	}
	for _, r := range res.Unmatched2 {
		fmt.Printf("%q is only in y%v\n", y[r.Start:r.End], r)
	}
	// Output:
	// "hello" matches at x[0,5) and y[0,5)
	// " world\n" matches at x[5,12) and y[16,23)
	// ", brave new" is only in y[5,16)
}

// Walk over all bytes of an input and mark the bytes that are not matched.
func ExampleResults_Spans() {
	x := "0123456789abcdefghij"
	y := "abcdefghij__0123456789"

	res := bindiff.Compare(context.Background(), x, y)
	for s := range res.Spans(bindiff.Y) {
		switch s.Op {
		case bindiff.Matched:
			fmt.Printf("%v %s\n", s.Range, y[s.Start:s.End])
		case bindiff.Unmatched:
			fmt.Printf("%v unmatched\n", s.Range)
		}
	}
	// Output:
	// [0,10) abcdefghij
	// [10,12) unmatched
	// [12,22) 0123456789
}

// Run a comparison in the background and wait for the result.
func ExampleStart() {
	c := bindiff.Start(context.Background(), []byte("abcdefgh"), []byte("abcdXfgh"), bindiff.MinBlockSize(2))
	res := c.Wait()
	fmt.Println(res.Matches)
	// Output:
	// [[0,4)<->[0,4) [5,7)<->[5,7)]
}

// Find an approximate alignment and split it into matching and differing bytes.
func ExampleNextAlignment() {
	x := "header: 1234 (v1)"
	y := "header: 1235 (v2)"

	m, ok := bindiff.NextAlignment(x, y, 0, 0)
	if !ok {
		fmt.Println("no alignment")
		return
	}
	d := bindiff.AlignmentDiff(x, y, m)
	fmt.Println("alignment:", m)
	fmt.Println("differences:", d.Diffs1)
	// Output:
	// alignment: [0,17)<->[0,17)
	// differences: [[11,12) [15,16)]
}
