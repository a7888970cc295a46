package event

import (
	"encoding/json"
	"fmt"

	"github.com/lawnchairsociety/mazestep/internal/grid"
)

// wire is the JSON shape of an event. Cells are [row, col] pairs and field
// names follow the snake_case keys consumers already expect.
type wire struct {
	Event        string   `json:"event"`
	Cell         *[2]int  `json:"cell,omitempty"`
	From         *[2]int  `json:"from,omitempty"`
	To           *[2]int  `json:"to,omitempty"`
	VisitedCount *int     `json:"visited_count,omitempty"`
	StackDepth   *int     `json:"stack_depth,omitempty"`
	QueueSize    *int     `json:"queue_size,omitempty"`
	Path         [][2]int `json:"path,omitempty"`
	Found        *bool    `json:"found,omitempty"`
}

func pair(c grid.Cell) *[2]int {
	return &[2]int{c.Row, c.Col}
}

func unpair(p *[2]int) grid.Cell {
	if p == nil {
		return grid.Cell{}
	}
	return grid.Cell{Row: p[0], Col: p[1]}
}

func intp(v int) *int {
	return &v
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Encode renders e as a JSON object.
func Encode(e Event) ([]byte, error) {
	w := wire{Event: e.Kind().String()}

	switch v := e.(type) {
	case MazeStart:
		w.Cell, w.VisitedCount, w.StackDepth = pair(v.Cell), intp(v.VisitedCount), intp(v.StackDepth)
	case Carve:
		w.From, w.To = pair(v.From), pair(v.To)
		w.VisitedCount, w.StackDepth = intp(v.VisitedCount), intp(v.StackDepth)
	case Backtrack:
		w.Cell, w.VisitedCount, w.StackDepth = pair(v.Cell), intp(v.VisitedCount), intp(v.StackDepth)
	case MazeDone:
		w.VisitedCount, w.StackDepth = intp(v.VisitedCount), intp(v.StackDepth)
	case SearchStart:
		w.Cell, w.QueueSize, w.VisitedCount = pair(v.Cell), intp(v.QueueSize), intp(v.VisitedCount)
	case Dequeue:
		w.Cell, w.QueueSize, w.VisitedCount = pair(v.Cell), intp(v.QueueSize), intp(v.VisitedCount)
	case Enqueue:
		w.Cell, w.From = pair(v.Cell), pair(v.From)
		w.QueueSize, w.VisitedCount = intp(v.QueueSize), intp(v.VisitedCount)
	case Visit:
		w.Cell, w.QueueSize, w.VisitedCount = pair(v.Cell), intp(v.QueueSize), intp(v.VisitedCount)
	case GoalFound:
		w.Cell = pair(v.Cell)
		w.Path = make([][2]int, len(v.Path))
		for i, c := range v.Path {
			w.Path[i] = [2]int{c.Row, c.Col}
		}
	case Finished:
		found := v.Found
		w.Found, w.VisitedCount = &found, intp(v.VisitedCount)
	default:
		return nil, fmt.Errorf("encode: unknown event type %T", e)
	}

	return json.Marshal(w)
}

// Decode parses an object produced by Encode.
func Decode(data []byte) (Event, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	kind, ok := ParseKind(w.Event)
	if !ok {
		return nil, fmt.Errorf("decode event: unknown kind %q", w.Event)
	}

	switch kind {
	case KindMazeStart:
		return MazeStart{Cell: unpair(w.Cell), VisitedCount: deref(w.VisitedCount), StackDepth: deref(w.StackDepth)}, nil
	case KindCarve:
		return Carve{From: unpair(w.From), To: unpair(w.To), VisitedCount: deref(w.VisitedCount), StackDepth: deref(w.StackDepth)}, nil
	case KindBacktrack:
		return Backtrack{Cell: unpair(w.Cell), VisitedCount: deref(w.VisitedCount), StackDepth: deref(w.StackDepth)}, nil
	case KindMazeDone:
		return MazeDone{VisitedCount: deref(w.VisitedCount), StackDepth: deref(w.StackDepth)}, nil
	case KindSearchStart:
		return SearchStart{Cell: unpair(w.Cell), QueueSize: deref(w.QueueSize), VisitedCount: deref(w.VisitedCount)}, nil
	case KindDequeue:
		return Dequeue{Cell: unpair(w.Cell), QueueSize: deref(w.QueueSize), VisitedCount: deref(w.VisitedCount)}, nil
	case KindEnqueue:
		return Enqueue{Cell: unpair(w.Cell), From: unpair(w.From), QueueSize: deref(w.QueueSize), VisitedCount: deref(w.VisitedCount)}, nil
	case KindVisit:
		return Visit{Cell: unpair(w.Cell), QueueSize: deref(w.QueueSize), VisitedCount: deref(w.VisitedCount)}, nil
	case KindGoalFound:
		path := make([]grid.Cell, len(w.Path))
		for i, p := range w.Path {
			path[i] = grid.Cell{Row: p[0], Col: p[1]}
		}
		return GoalFound{Cell: unpair(w.Cell), Path: path}, nil
	default:
		found := w.Found != nil && *w.Found
		return Finished{Found: found, VisitedCount: deref(w.VisitedCount)}, nil
	}
}
