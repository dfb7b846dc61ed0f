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
	"github.com/rs/zerolog"
	"znkr.io/bindiff/internal/config"
)

// Option configures the behavior of comparison functions.
type Option = config.Option

// MinBlockSize sets the smallest block length [Compare] searches for. Shorter common regions are
// reported as unmatched. The default is 4, values smaller than 1 are treated as 1.
func MinBlockSize(n int) Option {
	return func(cfg *config.Config) config.Flag {
		cfg.MinBlockSize = max(1, n)
		return config.MinBlockSize
	}
}

// MaxBlockSize limits the largest block length [Compare] searches for. Larger common regions are
// still found, they are reported as consecutive matches that are joined afterwards. By default,
// there is no limit. Values smaller than 1 are treated as 1.
//
// MaxBlockSize must not be smaller than [MinBlockSize].
func MaxBlockSize(n int) Option {
	return func(cfg *config.Config) config.Flag {
		cfg.MaxBlockSize = max(1, n)
		return config.MaxBlockSize
	}
}

// Logger sets a logger for diagnostics. By default, nothing is logged.
func Logger(log zerolog.Logger) Option {
	return func(cfg *config.Config) config.Flag {
		cfg.Log = log
		return config.Logger
	}
}
