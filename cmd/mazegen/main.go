// Command mazegen carves one maze, solves it and prints every step event
// followed by the finished maze with its path.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lawnchairsociety/mazestep/internal/config"
	"github.com/lawnchairsociety/mazestep/internal/event"
	"github.com/lawnchairsociety/mazestep/internal/grid"
	"github.com/lawnchairsociety/mazestep/internal/maze"
	"github.com/lawnchairsociety/mazestep/internal/search"
	"github.com/lawnchairsociety/mazestep/internal/seed"
)

type options struct {
	size        int
	seed        string
	ignoreWalls bool
	json        bool
	quiet       bool
}

func main() {
	var opts options
	flag.IntVar(&opts.size, "size", 20, "Grid size N (maze is N x N)")
	flag.StringVar(&opts.seed, "seed", "1234", "Seed: an integer, any text to hash, or empty for the clock")
	flag.BoolVar(&opts.ignoreWalls, "ignore-walls", false, "Search the open grid instead of the carved maze")
	flag.BoolVar(&opts.json, "json", false, "Print events as JSON lines")
	flag.BoolVar(&opts.quiet, "quiet", false, "Only print the final maze")
	flag.Parse()

	out := bufio.NewWriter(os.Stdout)
	err := run(out, opts)
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, opts options) error {
	if err := config.ValidateSize(opts.size); err != nil {
		return err
	}
	g, err := grid.New(opts.size)
	if err != nil {
		return err
	}

	gen := maze.Run(g, seed.Parse(opts.seed))
	emit := func(e event.Event) error {
		if opts.quiet {
			return nil
		}
		if opts.json {
			data, err := event.Encode(e)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s\n", data)
			return err
		}
		_, err := fmt.Fprintln(out, e)
		return err
	}

	for e := range event.All(gen) {
		if err := emit(e); err != nil {
			return err
		}
	}

	solver, err := search.Run(g, g.Start(), g.Goal(), search.Options{IgnoreWalls: opts.ignoreWalls})
	if err != nil {
		return err
	}
	for e := range event.All(solver) {
		if err := emit(e); err != nil {
			return err
		}
	}
	result, _ := solver.Result()

	stats := gen.Stats()
	if _, err := fmt.Fprintf(out, "\nseed %s  size %d  carves %d  backtracks %d\n", gen.Seed(), opts.size, stats.Carves, stats.Backtracks); err != nil {
		return err
	}
	if result.Found {
		_, err = fmt.Fprintf(out, "path %d cells, %d visited\n", result.PathLength(), result.Visited)
	} else {
		_, err = fmt.Fprintf(out, "no path, %d visited\n", result.Visited)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, g.Render(result.Path))
	return err
}
