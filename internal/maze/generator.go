// Package maze carves perfect mazes with a randomized iterative depth-first
// search (recursive backtracker), one event per step.
package maze

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/lawnchairsociety/mazestep/internal/event"
	"github.com/lawnchairsociety/mazestep/internal/grid"
	"github.com/lawnchairsociety/mazestep/internal/rng"
	"github.com/lawnchairsociety/mazestep/internal/seed"
)

type phase int

const (
	phaseStart phase = iota
	phaseCarving
	phaseEnded
)

// Stats summarizes a generation run so far.
type Stats struct {
	Carves     int
	Backtracks int
	Visited    int
	Done       bool
}

// Generator is the resumable state of one carving run. It owns its stack,
// visited set and random stream, and mutates the grid it was given; nothing
// else may touch that grid until the run has produced MazeDone.
type Generator struct {
	grid    *grid.Grid
	seed    seed.Seed
	stream  *rng.Stream
	visited mapset.Set[grid.Cell]
	stack   []grid.Cell
	phase   phase
	stats   Stats
}

// Run prepares a carving run over g. A None seed is resolved from the clock;
// Seed reports the value actually used. No event is produced until Next.
func Run(g *grid.Grid, s seed.Seed) *Generator {
	resolved := s.Resolve()
	value, _ := resolved.Value()

	gen := &Generator{
		grid:    g,
		seed:    resolved,
		stream:  rng.New(value),
		visited: mapset.New[grid.Cell](),
		stack:   make([]grid.Cell, 0, g.CellCount()),
	}

	start := g.Start()
	gen.stack = append(gen.stack, start)
	gen.visited.Put(start)
	gen.stats.Visited = 1

	return gen
}

// Generate carves g to completion and returns the final stats.
func Generate(g *grid.Grid, s seed.Seed) Stats {
	gen := Run(g, s)
	for {
		if _, ok := gen.Next(); !ok {
			return gen.Stats()
		}
	}
}

// Seed returns the concrete seed driving this run.
func (gen *Generator) Seed() seed.Seed {
	return gen.seed
}

// Stats returns counters for the events produced so far.
func (gen *Generator) Stats() Stats {
	return gen.stats
}

// Next produces the next event. It returns false once MazeDone has been
// produced.
func (gen *Generator) Next() (event.Event, bool) {
	switch gen.phase {
	case phaseStart:
		gen.phase = phaseCarving
		return event.MazeStart{
			Cell:         gen.grid.Start(),
			VisitedCount: gen.visited.Size(),
			StackDepth:   len(gen.stack),
		}, true

	case phaseCarving:
		if len(gen.stack) == 0 {
			gen.phase = phaseEnded
			gen.stats.Done = true
			return event.MazeDone{VisitedCount: gen.visited.Size(), StackDepth: 0}, true
		}
		return gen.step(), true
	}

	return nil, false
}

// step either carves into a random unvisited neighbor of the stack top or
// pops it.
func (gen *Generator) step() event.Event {
	current := gen.stack[len(gen.stack)-1]

	candidates := gen.unvisitedNeighbors(current)
	if len(candidates) == 0 {
		gen.stack = gen.stack[:len(gen.stack)-1]
		gen.stats.Backtracks++
		return event.Backtrack{
			Cell:         current,
			VisitedCount: gen.visited.Size(),
			StackDepth:   len(gen.stack),
		}
	}

	chosen := candidates[gen.stream.Choose(len(candidates))]
	gen.grid.RemoveWall(current, chosen)
	gen.visited.Put(chosen)
	gen.stack = append(gen.stack, chosen)
	gen.stats.Carves++
	gen.stats.Visited = gen.visited.Size()

	return event.Carve{
		From:         current,
		To:           chosen,
		VisitedCount: gen.visited.Size(),
		StackDepth:   len(gen.stack),
	}
}

func (gen *Generator) unvisitedNeighbors(c grid.Cell) []grid.Cell {
	var result []grid.Cell
	for _, nb := range gen.grid.Neighbors(c.Row, c.Col) {
		if !gen.visited.Has(nb) {
			result = append(result, nb)
		}
	}
	return result
}
