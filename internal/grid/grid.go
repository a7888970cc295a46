// Package grid holds the cell and wall topology of a square maze lattice.
package grid

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned for inputs outside the supported domain
// (grid sizes below 1, cells outside the grid).
var ErrInvalidArgument = errors.New("invalid argument")

// Direction represents one of the four axis-aligned moves.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Opposite returns the direction facing back.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return Up
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Delta returns the row and column offset of a single step in d.
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return -1, 0
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	case Right:
		return 0, 1
	}
	return 0, 0
}

// AllDirections returns the four directions in neighbor order.
func AllDirections() []Direction {
	return []Direction{Up, Down, Left, Right}
}

// Cell is a (row, column) position, 0-indexed.
type Cell struct {
	Row int
	Col int
}

// Step returns the cell one move away in direction d. The result may lie
// outside the grid.
func (c Cell) Step(d Direction) Cell {
	dr, dc := d.Delta()
	return Cell{Row: c.Row + dr, Col: c.Col + dc}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// directionTo reports which direction leads from a to b when they are
// grid-adjacent.
func directionTo(a, b Cell) (Direction, bool) {
	for _, d := range AllDirections() {
		if a.Step(d) == b {
			return d, true
		}
	}
	return Up, false
}

// Walls records which of a cell's four walls are present.
type Walls struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// Has reports whether the wall facing d is present.
func (w Walls) Has(d Direction) bool {
	switch d {
	case Up:
		return w.Up
	case Down:
		return w.Down
	case Left:
		return w.Left
	case Right:
		return w.Right
	}
	return true
}

func (w *Walls) clear(d Direction) {
	switch d {
	case Up:
		w.Up = false
	case Down:
		w.Down = false
	case Left:
		w.Left = false
	case Right:
		w.Right = false
	}
}

// Count returns how many walls are present.
func (w Walls) Count() int {
	n := 0
	for _, d := range AllDirections() {
		if w.Has(d) {
			n++
		}
	}
	return n
}

func closedWalls() Walls {
	return Walls{Up: true, Down: true, Left: true, Right: true}
}

// Grid is an N×N lattice of cells. Every wall starts closed; walls are only
// ever opened in symmetric pairs through RemoveWall.
//
// A Grid is not safe for concurrent use. A maze generator run borrows it
// exclusively; a path search only reads it.
type Grid struct {
	n     int
	cells []Walls
	start Cell
	goal  Cell
}

// New creates a fully walled n×n grid with start (0,0) and goal (n-1,n-1).
func New(n int) (*Grid, error) {
	if n < 1 {
		return nil, fmt.Errorf("grid size %d: %w", n, ErrInvalidArgument)
	}
	g := &Grid{
		n:     n,
		cells: make([]Walls, n*n),
		start: Cell{Row: 0, Col: 0},
		goal:  Cell{Row: n - 1, Col: n - 1},
	}
	g.Reset()
	return g, nil
}

// Size returns N.
func (g *Grid) Size() int {
	return g.n
}

// Start returns the designated start cell (0,0).
func (g *Grid) Start() Cell {
	return g.start
}

// Goal returns the designated goal cell (N-1,N-1).
func (g *Grid) Goal() Cell {
	return g.goal
}

// CellCount returns N².
func (g *Grid) CellCount() int {
	return g.n * g.n
}

// InBounds reports whether (row, col) lies inside the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.n && col >= 0 && col < g.n
}

// Contains reports whether c lies inside the grid.
func (g *Grid) Contains(c Cell) bool {
	return g.InBounds(c.Row, c.Col)
}

// Neighbors returns the in-bounds cells adjacent to (row, col) in the fixed
// order up, down, left, right.
func (g *Grid) Neighbors(row, col int) []Cell {
	origin := Cell{Row: row, Col: col}
	result := make([]Cell, 0, 4)
	for _, d := range AllDirections() {
		nb := origin.Step(d)
		if g.Contains(nb) {
			result = append(result, nb)
		}
	}
	return result
}

// Walls returns the wall record for c.
func (g *Grid) Walls(c Cell) (Walls, bool) {
	if !g.Contains(c) {
		return Walls{}, false
	}
	return g.cells[g.index(c)], true
}

// RemoveWall opens the wall between a and b on both sides. Pairs that are
// not grid-adjacent, or that leave the grid, are ignored.
func (g *Grid) RemoveWall(a, b Cell) {
	if !g.Contains(a) || !g.Contains(b) {
		return
	}
	d, ok := directionTo(a, b)
	if !ok {
		return
	}
	g.cells[g.index(a)].clear(d)
	g.cells[g.index(b)].clear(d.Opposite())
}

// HasWall reports whether a's wall facing b is present. Pairs that are not
// adjacent never share a passage, so they report true.
func (g *Grid) HasWall(a, b Cell) bool {
	if !g.Contains(a) || !g.Contains(b) {
		return true
	}
	d, ok := directionTo(a, b)
	if !ok {
		return true
	}
	return g.cells[g.index(a)].Has(d)
}

// Open reports whether a step from a to b crosses an open wall.
func (g *Grid) Open(a, b Cell) bool {
	return !g.HasWall(a, b)
}

// Reset closes every wall.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = closedWalls()
	}
}

// OpenAll removes every interior wall. Outer boundary walls stay.
func (g *Grid) OpenAll() {
	for row := 0; row < g.n; row++ {
		for col := 0; col < g.n; col++ {
			c := Cell{Row: row, Col: col}
			g.RemoveWall(c, c.Step(Down))
			g.RemoveWall(c, c.Step(Right))
		}
	}
}

// OpenPassages counts open walls between adjacent pairs, each pair once.
func (g *Grid) OpenPassages() int {
	count := 0
	for row := 0; row < g.n; row++ {
		for col := 0; col < g.n; col++ {
			c := Cell{Row: row, Col: col}
			if g.Open(c, c.Step(Down)) {
				count++
			}
			if g.Open(c, c.Step(Right)) {
				count++
			}
		}
	}
	return count
}

func (g *Grid) index(c Cell) int {
	return c.Row*g.n + c.Col
}

// String draws the grid as ASCII art.
func (g *Grid) String() string {
	return g.Render(nil)
}

// Render draws the grid as ASCII art, marking the cells of path with '*',
// the start with 'S' and the goal with 'G'.
func (g *Grid) Render(path []Cell) string {
	marked := make(map[Cell]bool, len(path))
	for _, c := range path {
		marked[c] = true
	}

	var out strings.Builder
	out.WriteString("+" + strings.Repeat("---+", g.n) + "\n")

	for row := 0; row < g.n; row++ {
		out.WriteString("|")
		for col := 0; col < g.n; col++ {
			c := Cell{Row: row, Col: col}
			switch {
			case c == g.start:
				out.WriteString(" S ")
			case c == g.goal:
				out.WriteString(" G ")
			case marked[c]:
				out.WriteString(" * ")
			default:
				out.WriteString("   ")
			}
			if g.cells[g.index(c)].Right {
				out.WriteString("|")
			} else {
				out.WriteString(" ")
			}
		}
		out.WriteString("\n+")
		for col := 0; col < g.n; col++ {
			if g.cells[g.index(Cell{Row: row, Col: col})].Down {
				out.WriteString("---+")
			} else {
				out.WriteString("   +")
			}
		}
		out.WriteString("\n")
	}

	return out.String()
}
