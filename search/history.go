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

package search

import (
	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"znkr.io/bindiff"
	"znkr.io/bindiff/internal/byteview"
	"znkr.io/bindiff/internal/config"
)

const historyVersion = 1

// history is the serialized form of a walk. States are stored as the steps that created them;
// restoring a walk replays the steps.
type history struct {
	Version int    `cbor:"1,keyasint"`
	Len1    int    `cbor:"2,keyasint"`
	Len2    int    `cbor:"3,keyasint"`
	Sum1    uint64 `cbor:"4,keyasint"`
	Sum2    uint64 `cbor:"5,keyasint"`
	Steps   []step `cbor:"6,keyasint"`
}

type step struct {
	_      struct{} `cbor:",toarray"`
	Parent ID
	Action Action
}

// MarshalBinary encodes the walk in m. The encoding references the inputs by length and checksum,
// it doesn't contain them.
func (m *Machine) MarshalBinary() ([]byte, error) {
	h := history{
		Version: historyVersion,
		Len1:    m.x.Len(),
		Len2:    m.y.Len(),
		Sum1:    m.x.Sum64(),
		Sum2:    m.y.Sum64(),
		Steps:   make([]step, 0, len(m.states)-1),
	}
	for _, s := range m.states[1:] {
		h.Steps = append(h.Steps, step{Parent: s.Parent, Action: s.Action})
	}
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "could not create encoder")
	}
	data, err := enc.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode history")
	}
	return data, nil
}

// Restore recreates a walk that was encoded with [Machine.MarshalBinary] for the same inputs.
// State ids are the same as in the encoded walk.
//
// The following option is supported: [bindiff.Logger]
func Restore[T string | []byte](x, y T, data []byte, opts ...bindiff.Option) (*Machine, error) {
	cfg := config.FromOptions(opts, config.Logger)
	vx, vy := byteview.From(x), byteview.From(y)

	var h history
	if err := cbor.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrap(err, "could not decode history")
	}
	if h.Version != historyVersion {
		return nil, errors.Newf("unsupported history version %d", h.Version)
	}
	if h.Len1 != vx.Len() || h.Len2 != vy.Len() || h.Sum1 != vx.Sum64() || h.Sum2 != vy.Sum64() {
		return nil, errors.New("history was recorded for different inputs")
	}

	m := newMachine(vx, vy, cfg)
	for i, s := range h.Steps {
		if s.Parent < 0 || int(s.Parent) >= m.Len() {
			return nil, errors.Newf("step %d: invalid parent %d", i+1, s.Parent)
		}
		if s.Action <= Start || s.Action > AdvanceUntilAlignment2 {
			return nil, errors.Newf("step %d: invalid action %d", i+1, s.Action)
		}
		if _, ok := m.Step(s.Parent, s.Action); !ok {
			return nil, errors.Newf("step %d: %v from state %d makes no progress", i+1, s.Action, s.Parent)
		}
	}
	return m, nil
}
