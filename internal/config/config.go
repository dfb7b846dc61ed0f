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

// Package config provides shared configuration mechanisms for packages this module.
//
// This package is an implementation detail, the configuration surface for users is provided via
// bindiff.Option.
package config

import (
	"math"

	"github.com/rs/zerolog"
)

// Config collects all configurable parameters for comparison functions in this module.
type Config struct {
	// MinBlockSize is the smallest block length the block match engine searches for.
	MinBlockSize int

	// MaxBlockSize is the largest block length the block match engine searches for. Values beyond
	// the size of the inputs are equivalent to no limit.
	MaxBlockSize int

	// Log receives diagnostics. It's disabled by default.
	Log zerolog.Logger
}

// Default is the default configuration.
var Default = Config{
	MinBlockSize: 4,
	MaxBlockSize: math.MaxInt,
	Log:          zerolog.Nop(),
}

// Flag describes a single config entry. This is used to detect if configurations are being set
// that are not supported by a function.
type Flag int

const (
	MinBlockSize Flag = 1 << iota
	MaxBlockSize
	Logger
)

// Option is the mechanism used to expose the configuration to users.
type Option func(*Config) Flag

// FromOptions creates a configuration from a set of options.
func FromOptions(opts []Option, allowed Flag) Config {
	cfg := Default
	for _, opt := range opts {
		flag := opt(&cfg)
		if flag & ^allowed != 0 {
			panic("Option " + printFlag(flag) + " not allowed here")
		}
	}
	if cfg.MinBlockSize > cfg.MaxBlockSize {
		panic("MinBlockSize must be <= MaxBlockSize")
	}
	return cfg
}

func printFlag(flag Flag) string {
	switch flag {
	case MinBlockSize:
		return "bindiff.MinBlockSize"
	case MaxBlockSize:
		return "bindiff.MaxBlockSize"
	case Logger:
		return "bindiff.Logger"
	default:
		panic("never reached")
	}
}
