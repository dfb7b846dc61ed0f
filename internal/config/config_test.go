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

package config_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
	"znkr.io/bindiff"
	"znkr.io/bindiff/internal/config"
)

func TestFromOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []config.Option
		want config.Config
	}{
		{
			name: "default",
			opts: nil,
			want: config.Default,
		},
		{
			name: "min-block-size",
			opts: []config.Option{
				bindiff.MinBlockSize(8),
			},
			want: config.Config{
				MinBlockSize: 8,
				MaxBlockSize: config.Default.MaxBlockSize,
			},
		},
		{
			name: "min-block-size-clamped",
			opts: []config.Option{
				bindiff.MinBlockSize(-1),
			},
			want: config.Config{
				MinBlockSize: 1,
				MaxBlockSize: config.Default.MaxBlockSize,
			},
		},
		{
			name: "both",
			opts: []config.Option{
				bindiff.MinBlockSize(2),
				bindiff.MaxBlockSize(16),
			},
			want: config.Config{
				MinBlockSize: 2,
				MaxBlockSize: 16,
			},
		},
		{
			name: "override",
			opts: []config.Option{
				bindiff.MaxBlockSize(16),
				bindiff.MinBlockSize(2),
				bindiff.MaxBlockSize(32),
			},
			want: config.Config{
				MinBlockSize: 2,
				MaxBlockSize: 32,
			},
		},
		{
			name: "everything",
			opts: []config.Option{
				bindiff.MinBlockSize(2),
				bindiff.MaxBlockSize(16),
				bindiff.Logger(zerolog.New(nil)),
			},
			want: config.Config{
				MinBlockSize: 2,
				MaxBlockSize: 16,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := config.FromOptions(tt.opts, config.MinBlockSize|config.MaxBlockSize|config.Logger)
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(config.Config{}, "Log")); diff != "" {
				t.Errorf("FromOptions(...) result are different [-want,+got]:\n%s", diff)
			}
		})
	}
}

func TestFromOptionsPanics(t *testing.T) {
	tests := []struct {
		name    string
		opts    []config.Option
		allowed config.Flag
	}{
		{
			name:    "not-allowed",
			opts:    []config.Option{bindiff.MinBlockSize(2)},
			allowed: config.Logger,
		},
		{
			name:    "min-above-max",
			opts:    []config.Option{bindiff.MinBlockSize(8), bindiff.MaxBlockSize(4)},
			allowed: config.MinBlockSize | config.MaxBlockSize,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("FromOptions(...) didn't panic")
				}
			}()
			config.FromOptions(tt.opts, tt.allowed)
		})
	}
}
