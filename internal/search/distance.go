package search

import "github.com/lawnchairsociety/mazestep/internal/grid"

// ShortestPathLength computes the number of cells on a shortest a→b path by
// relaxing distances over every cell until nothing changes. It shares no
// code with the event-driven search and serves as an independent check.
// The second result is false when b cannot be reached.
func ShortestPathLength(g *grid.Grid, a, b grid.Cell, opts Options) (int, bool) {
	if !g.Contains(a) || !g.Contains(b) {
		return 0, false
	}

	n := g.Size()
	const unreached = -1
	dist := make([][]int, n)
	for row := range dist {
		dist[row] = make([]int, n)
		for col := range dist[row] {
			dist[row][col] = unreached
		}
	}
	dist[a.Row][a.Col] = 0

	for changed := true; changed; {
		changed = false
		for row := 0; row < n; row++ {
			for col := 0; col < n; col++ {
				if dist[row][col] == unreached {
					continue
				}
				here := grid.Cell{Row: row, Col: col}
				for _, nb := range g.Neighbors(row, col) {
					if !opts.IgnoreWalls && !g.Open(here, nb) {
						continue
					}
					next := dist[row][col] + 1
					if cur := dist[nb.Row][nb.Col]; cur == unreached || next < cur {
						dist[nb.Row][nb.Col] = next
						changed = true
					}
				}
			}
		}
	}

	if dist[b.Row][b.Col] == unreached {
		return 0, false
	}
	return dist[b.Row][b.Col] + 1, true
}
