package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lawnchairsociety/mazestep/internal/config"
	"github.com/lawnchairsociety/mazestep/internal/database"
	"github.com/lawnchairsociety/mazestep/internal/grid"
	"github.com/lawnchairsociety/mazestep/internal/maze"
	"github.com/lawnchairsociety/mazestep/internal/search"
	"github.com/lawnchairsociety/mazestep/internal/seed"
)

func (s *Server) health(ctx *gin.Context) {
	total, addrs := s.limiter.Stats()
	ctx.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"streams":  total,
		"clients":  addrs,
		"database": s.db != nil,
	})
}

func (s *Server) listRuns(ctx *gin.Context) {
	if s.db == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger disabled"})
		return
	}

	limit := 0
	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	size := 0
	if v := ctx.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "size must be an integer"})
			return
		}
		size = n
	}

	runs, err := s.db.ListRuns(limit, size)
	if err != nil {
		s.log.Error("list runs", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not list runs"})
		return
	}
	total, err := s.db.CountRuns(size)
	if err != nil {
		s.log.Error("count runs", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not count runs"})
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}
	ctx.JSON(http.StatusOK, gin.H{"runs": runs, "total": total})
}

func (s *Server) getRun(ctx *gin.Context) {
	if s.db == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger disabled"})
		return
	}

	id := ctx.Params.ByName("id")
	run, err := s.db.GetRun(id)
	if err != nil {
		s.log.Error("get run", "id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not load run"})
		return
	}
	if run == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	ctx.JSON(http.StatusOK, run)
}

// oneShotMaze generates and solves a maze without streaming.
func (s *Server) oneShotMaze(ctx *gin.Context) {
	size := s.cfg.Maze.Size
	if v := ctx.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "size must be an integer"})
			return
		}
		size = n
	}
	if err := config.ValidateSize(size); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seedText := s.cfg.Maze.Seed
	if v, ok := ctx.GetQuery("seed"); ok {
		seedText = v
	}
	ignoreWalls := s.cfg.Maze.IgnoreWalls
	if v := ctx.Query("ignore_walls"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "ignore_walls must be a boolean"})
			return
		}
		ignoreWalls = b
	}

	g, err := grid.New(size)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resolved := seed.Parse(seedText).Resolve()
	stats := maze.Generate(g, resolved)
	result, err := search.Solve(g, g.Start(), g.Goal(), search.Options{IgnoreWalls: ignoreWalls})
	if err != nil {
		s.log.Error("solve", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	value, _ := resolved.Value()
	ctx.JSON(http.StatusOK, gin.H{
		"size":         size,
		"seed":         value,
		"carves":       stats.Carves,
		"backtracks":   stats.Backtracks,
		"found":        result.Found,
		"visited":      result.Visited,
		"path_length":  result.PathLength(),
		"path":         cellPairs(result.Path),
		"ignore_walls": ignoreWalls,
		"ascii":        g.Render(result.Path),
	})
}

func cellPairs(cells []grid.Cell) [][2]int {
	out := make([][2]int, len(cells))
	for i, c := range cells {
		out[i] = [2]int{c.Row, c.Col}
	}
	return out
}
