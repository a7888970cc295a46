// Package search runs a breadth-first shortest-path search over a carved
// grid, one event per step.
package search

import (
	"fmt"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/lawnchairsociety/mazestep/internal/event"
	"github.com/lawnchairsociety/mazestep/internal/grid"
)

// Options tunes a search run.
type Options struct {
	// IgnoreWalls expands to every grid-adjacent cell whether or not the
	// wall between them is open.
	IgnoreWalls bool
}

// Result is the outcome of a finished search.
type Result struct {
	Found   bool
	Path    []grid.Cell
	Visited int
}

// PathLength is the number of cells on the path, start and goal included.
func (r Result) PathLength() int {
	return len(r.Path)
}

type phase int

const (
	phaseStart phase = iota
	phaseDequeue
	phaseExpand
	phaseGoal
	phaseFound
	phaseEnded
)

// Search is the resumable state of one BFS run. It only reads the grid.
type Search struct {
	grid  *grid.Grid
	start grid.Cell
	goal  grid.Cell
	opts  Options

	queue   []grid.Cell
	visited mapset.Set[grid.Cell]
	parent  map[grid.Cell]grid.Cell

	current grid.Cell
	pending []grid.Cell
	phase   phase

	result Result
	done   bool
}

// Run validates start and goal and prepares a search. Out-of-grid cells are
// rejected with grid.ErrInvalidArgument before any event exists.
func Run(g *grid.Grid, start, goal grid.Cell, opts Options) (*Search, error) {
	if g == nil {
		return nil, fmt.Errorf("search: nil grid: %w", grid.ErrInvalidArgument)
	}
	if !g.Contains(start) {
		return nil, fmt.Errorf("search: start %v outside %dx%d grid: %w", start, g.Size(), g.Size(), grid.ErrInvalidArgument)
	}
	if !g.Contains(goal) {
		return nil, fmt.Errorf("search: goal %v outside %dx%d grid: %w", goal, g.Size(), g.Size(), grid.ErrInvalidArgument)
	}

	s := &Search{
		grid:    g,
		start:   start,
		goal:    goal,
		opts:    opts,
		queue:   make([]grid.Cell, 0, g.CellCount()),
		visited: mapset.New[grid.Cell](),
		parent:  make(map[grid.Cell]grid.Cell),
	}
	s.queue = append(s.queue, start)
	s.visited.Put(start)

	return s, nil
}

// Result returns the outcome once the run has produced Finished.
func (s *Search) Result() (Result, bool) {
	return s.result, s.done
}

// Next produces the next event. It returns false once Finished has been
// produced.
func (s *Search) Next() (event.Event, bool) {
	switch s.phase {
	case phaseStart:
		s.phase = phaseDequeue
		return event.SearchStart{Cell: s.start, QueueSize: len(s.queue), VisitedCount: s.visited.Size()}, true

	case phaseDequeue:
		if len(s.queue) == 0 {
			return s.finish(false), true
		}
		s.current = s.queue[0]
		s.queue = s.queue[1:]
		if s.current == s.goal {
			s.phase = phaseGoal
		} else {
			s.pending = s.grid.Neighbors(s.current.Row, s.current.Col)
			s.phase = phaseExpand
		}
		return event.Dequeue{Cell: s.current, QueueSize: len(s.queue), VisitedCount: s.visited.Size()}, true

	case phaseExpand:
		for len(s.pending) > 0 {
			nb := s.pending[0]
			s.pending = s.pending[1:]
			if !s.reachable(nb) {
				continue
			}
			s.visited.Put(nb)
			s.parent[nb] = s.current
			s.queue = append(s.queue, nb)
			return event.Enqueue{Cell: nb, From: s.current, QueueSize: len(s.queue), VisitedCount: s.visited.Size()}, true
		}
		s.phase = phaseDequeue
		return event.Visit{Cell: s.current, QueueSize: len(s.queue), VisitedCount: s.visited.Size()}, true

	case phaseGoal:
		s.phase = phaseFound
		s.result.Path = s.reconstruct()
		return event.GoalFound{Cell: s.goal, Path: slices.Clone(s.result.Path)}, true

	case phaseFound:
		return s.finish(true), true
	}

	return nil, false
}

func (s *Search) reachable(nb grid.Cell) bool {
	if s.visited.Has(nb) {
		return false
	}
	return s.opts.IgnoreWalls || s.grid.Open(s.current, nb)
}

func (s *Search) finish(found bool) event.Event {
	s.phase = phaseEnded
	s.done = true
	s.result.Found = found
	s.result.Visited = s.visited.Size()
	return event.Finished{Found: found, VisitedCount: s.result.Visited}
}

// reconstruct follows parent links from goal back to start.
func (s *Search) reconstruct() []grid.Cell {
	path := []grid.Cell{s.goal}
	for c := s.goal; c != s.start; {
		c = s.parent[c]
		path = append(path, c)
	}
	slices.Reverse(path)
	return path
}

// Solve runs a search to completion.
func Solve(g *grid.Grid, start, goal grid.Cell, opts Options) (Result, error) {
	s, err := Run(g, start, goal, opts)
	if err != nil {
		return Result{}, err
	}
	for {
		if _, ok := s.Next(); !ok {
			result, _ := s.Result()
			return result, nil
		}
	}
}
