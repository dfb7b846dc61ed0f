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

// Command bindiff compares two files byte by byte and prints the matching blocks and the unmatched
// ranges of both files.
//
// Usage:
//
//	bindiff [flags] <x> <y>
//	bindiff [flags] --txtar <file>
//
// With --walk, bindiff steps through both files with a sequence of search actions instead and
// prints every state of the walk.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/txtar"
	"znkr.io/bindiff"
	"znkr.io/bindiff/search"
)

const (
	success = 0
	failure = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {

	// Command line parameter initialization.
	var (
		flagHistory string
		flagLevel   string
		flagMax     int
		flagMin     int
		flagTxtar   string
		flagWalk    []string
	)

	flags := pflag.NewFlagSet("bindiff", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&flagHistory, "history", "o", "", "file to write the walk history to (with --walk)")
	flags.StringVarP(&flagLevel, "level", "l", "info", "log level for JSON logger output")
	flags.IntVarP(&flagMax, "max-block-size", "M", 0, "largest block length to search for (0 for no limit)")
	flags.IntVarP(&flagMin, "min-block-size", "m", 4, "smallest block length to search for")
	flags.StringVarP(&flagTxtar, "txtar", "t", "", "read x and y from a txtar archive instead of two files")
	flags.StringSliceVarP(&flagWalk, "walk", "w", nil, "search actions to step through (both, match1, match2, align1, align2)")

	err := flags.Parse(args)
	if err != nil {
		// pflag doesn't report parse errors with ContinueOnError.
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, "usage: bindiff [flags] <x> <y>")
		flags.PrintDefaults()
		return failure
	}

	// Logger initialization.
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(stderr).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	level, err := zerolog.ParseLevel(flagLevel)
	if err != nil {
		log.Error().Str("level", flagLevel).Err(err).Msg("could not parse log level")
		return failure
	}
	log = log.Level(level)

	if flagTxtar == "" && flags.NArg() != 2 {
		log.Error().Msg("usage: bindiff [flags] <x> <y>")
		return failure
	}
	if flagTxtar != "" && flags.NArg() != 0 {
		log.Error().Msg("usage: bindiff [flags] --txtar <file>")
		return failure
	}
	if flagMax != 0 && flagMax < flagMin {
		log.Error().Int("min", flagMin).Int("max", flagMax).Msg("maximum block size is smaller than minimum block size")
		return failure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var x, y []byte
	if flagTxtar != "" {
		x, y, err = loadArchive(flagTxtar)
	} else {
		x, y, err = loadFiles(ctx, flags.Arg(0), flags.Arg(1))
	}
	if err != nil {
		log.Error().Err(err).Msg("could not load inputs")
		return failure
	}
	fmt.Fprintf(stdout, "x: %d bytes, xxhash %016x\n", len(x), xxhash.Checksum64(x))
	fmt.Fprintf(stdout, "y: %d bytes, xxhash %016x\n", len(y), xxhash.Checksum64(y))

	if len(flagWalk) > 0 {
		err = walk(stdout, x, y, flagWalk, flagHistory, log)
		if err != nil {
			log.Error().Err(err).Msg("could not complete walk")
			return failure
		}
		return success
	}

	opts := []bindiff.Option{bindiff.MinBlockSize(flagMin), bindiff.Logger(log)}
	if flagMax != 0 {
		opts = append(opts, bindiff.MaxBlockSize(flagMax))
	}
	start := time.Now()
	res := bindiff.Compare(ctx, x, y, opts...)
	log.Info().
		Int("matches", len(res.Matches)).
		Dur("duration", time.Since(start)).
		Msg("comparison finished")

	for _, m := range res.Matches {
		fmt.Fprintf(stdout, "match %v\n", m)
	}
	for _, r := range res.Unmatched1 {
		fmt.Fprintf(stdout, "unmatched x %v\n", r)
	}
	for _, r := range res.Unmatched2 {
		fmt.Fprintf(stdout, "unmatched y %v\n", r)
	}

	if res.Aborted {
		log.Warn().Msg("comparison was interrupted, results are incomplete")
		return failure
	}
	if res.InternalError {
		log.Error().Err(res.Err).Msg("comparison failed")
		return failure
	}
	return success
}

// loadFiles reads both files concurrently.
func loadFiles(ctx context.Context, xname, yname string) ([]byte, []byte, error) {
	var x, y []byte
	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		x, err = os.ReadFile(xname)
		return errors.Wrapf(err, "could not read %s", xname)
	})
	eg.Go(func() error {
		var err error
		y, err = os.ReadFile(yname)
		return errors.Wrapf(err, "could not read %s", yname)
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// loadArchive reads x and y from the files named "x" and "y" in a txtar archive.
func loadArchive(name string) (x, y []byte, err error) {
	ar, err := txtar.ParseFile(name)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not parse %s", name)
	}
	var foundX, foundY bool
	for _, f := range ar.Files {
		switch f.Name {
		case "x":
			x, foundX = f.Data, true
		case "y":
			y, foundY = f.Data, true
		}
	}
	if !foundX || !foundY {
		return nil, nil, errors.Newf("archive %s needs files x and y", name)
	}
	return x, y, nil
}

var actions = map[string]search.Action{
	"both":   search.AdvanceBoth,
	"match1": search.AdvanceUntilMatch1,
	"match2": search.AdvanceUntilMatch2,
	"align1": search.AdvanceUntilAlignment1,
	"align2": search.AdvanceUntilAlignment2,
}

// walk applies the actions one after the other, starting at the root state. It stops at the first
// action that makes no progress.
func walk(w io.Writer, x, y []byte, names []string, history string, log zerolog.Logger) error {
	steps := make([]search.Action, 0, len(names))
	for _, name := range names {
		action, ok := actions[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return errors.Newf("unknown action %q", name)
		}
		steps = append(steps, action)
	}

	m := search.New(x, y, bindiff.Logger(log))
	id := search.ID(0)
	printState(w, m, id)
	for _, action := range steps {
		next, ok := m.Step(id, action)
		if !ok {
			fmt.Fprintf(w, "%v: no progress\n", action)
			break
		}
		id = next
		printState(w, m, id)
	}

	if history == "" {
		return nil
	}
	data, err := m.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "could not encode history")
	}
	return errors.Wrapf(os.WriteFile(history, data, 0o644), "could not write %s", history)
}

func printState(w io.Writer, m *search.Machine, id search.ID) {
	s := m.State(id)
	fmt.Fprintf(w, "%d %v: next x%v y%v", id, s.Action, s.Next1, s.Next2)
	if s.HasAlignment {
		fmt.Fprintf(w, " alignment %v", s.Alignment)
	}
	fmt.Fprintln(w)
}
