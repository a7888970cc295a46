// Package session ties one grid to its generation and search runs and
// enforces that the search only starts on a finished maze.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/mazestep/internal/event"
	"github.com/lawnchairsociety/mazestep/internal/grid"
	"github.com/lawnchairsociety/mazestep/internal/maze"
	"github.com/lawnchairsociety/mazestep/internal/playback"
	"github.com/lawnchairsociety/mazestep/internal/search"
	"github.com/lawnchairsociety/mazestep/internal/seed"
)

// ErrGenerationPending is returned when a search is requested before the
// maze has produced its done event.
var ErrGenerationPending = errors.New("maze generation not finished")

// Phase is where a session is in its generate → search lifecycle.
type Phase int

const (
	PhaseGenerating Phase = iota
	PhaseSearching
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseGenerating:
		return "generating"
	case PhaseSearching:
		return "searching"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// Options describes a new session.
type Options struct {
	Size        int
	Seed        seed.Seed
	IgnoreWalls bool
}

// Summary is the record of a session kept after it ends.
type Summary struct {
	ID          string
	Size        int
	Seed        int64
	Carves      int
	Backtracks  int
	Found       bool
	Searched    bool
	Visited     int
	PathLength  int
	IgnoreWalls bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Session owns one grid. The generation controller has exclusive use of the
// grid until done; the search controller only reads it.
type Session struct {
	id      uuid.UUID
	opts    Options
	seed    seed.Seed
	grid    *grid.Grid
	started time.Time

	mu         sync.Mutex
	gen        *maze.Generator
	generation *playback.Controller
	run        *search.Search
	search     *playback.Controller
	finished   time.Time
}

// New builds the grid and starts the generation controller. A None seed is
// resolved once here, so Reset replays the same maze.
func New(opts Options) (*Session, error) {
	g, err := grid.New(opts.Size)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	s := &Session{
		id:      uuid.New(),
		opts:    opts,
		seed:    opts.Seed.Resolve(),
		grid:    g,
		started: time.Now(),
	}
	s.generation = playback.New(s.newGeneration)
	if err := s.generation.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) newGeneration() (event.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grid.Reset()
	s.gen = maze.Run(s.grid, s.seed)
	return s.gen, nil
}

func (s *Session) newSearch() (event.Sequence, error) {
	run, err := search.Run(s.grid, s.grid.Start(), s.grid.Goal(), search.Options{IgnoreWalls: s.opts.IgnoreWalls})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.run = run
	s.mu.Unlock()

	return run, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id.String()
}

// Seed returns the resolved seed driving generation.
func (s *Session) Seed() seed.Seed {
	return s.seed
}

// Grid returns the grid. Callers must not mutate it.
func (s *Session) Grid() *grid.Grid {
	return s.grid
}

// Generation returns the generation controller.
func (s *Session) Generation() *playback.Controller {
	return s.generation
}

// BeginSearch returns the search controller, starting it on first use.
func (s *Session) BeginSearch() (*playback.Controller, error) {
	if !s.generation.Done() {
		return nil, ErrGenerationPending
	}

	s.mu.Lock()
	existing := s.search
	s.mu.Unlock()
	if existing != nil {
		return existing, nil
	}

	c := playback.New(s.newSearch)
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("begin search: %w", err)
	}

	s.mu.Lock()
	s.search = c
	s.mu.Unlock()
	return c, nil
}

// Search returns the search controller, or nil before BeginSearch.
func (s *Session) Search() *playback.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

// Active returns the controller for the current phase.
func (s *Session) Active() *playback.Controller {
	if c := s.Search(); c != nil {
		return c
	}
	return s.generation
}

// Phase reports the lifecycle position.
func (s *Session) Phase() Phase {
	c := s.Search()
	switch {
	case c == nil:
		return PhaseGenerating
	case c.Done():
		return PhaseComplete
	default:
		return PhaseSearching
	}
}

// Reset closes every wall and restarts generation with the same seed. Any
// search is discarded.
func (s *Session) Reset() error {
	s.mu.Lock()
	s.search = nil
	s.run = nil
	s.finished = time.Time{}
	s.mu.Unlock()

	return s.generation.Reset()
}

// Path returns the path found by the search, if any.
func (s *Session) Path() []grid.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	result, _ := s.run.Result()
	return result.Path
}

// Summary reports counters for the run so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, _ := s.seed.Value()
	sum := Summary{
		ID:          s.id.String(),
		Size:        s.grid.Size(),
		Seed:        value,
		IgnoreWalls: s.opts.IgnoreWalls,
		StartedAt:   s.started,
	}
	if s.gen != nil {
		stats := s.gen.Stats()
		sum.Carves = stats.Carves
		sum.Backtracks = stats.Backtracks
	}
	if s.run != nil {
		if result, ok := s.run.Result(); ok {
			if s.finished.IsZero() {
				s.finished = time.Now()
			}
			sum.Searched = true
			sum.Found = result.Found
			sum.Visited = result.Visited
			sum.PathLength = result.PathLength()
			sum.FinishedAt = s.finished
		}
	}
	return sum
}
