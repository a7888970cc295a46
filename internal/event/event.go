// Package event defines the step events emitted by maze generation and path
// search, and the pull-based sequence contract a driver consumes them through.
//
// Event is a closed sum type: every variant lives in this package, so a type
// switch over the exported structs is exhaustive.
package event

import (
	"fmt"
	"iter"

	"github.com/lawnchairsociety/mazestep/internal/grid"
)

// Kind identifies an event variant.
type Kind int

const (
	KindMazeStart Kind = iota
	KindCarve
	KindBacktrack
	KindMazeDone
	KindSearchStart
	KindDequeue
	KindEnqueue
	KindVisit
	KindGoalFound
	KindFinished
)

var kindNames = map[Kind]string{
	KindMazeStart:   "start",
	KindCarve:       "carve",
	KindBacktrack:   "backtrack",
	KindMazeDone:    "done",
	KindSearchStart: "search_start",
	KindDequeue:     "dequeue",
	KindEnqueue:     "enqueue",
	KindVisit:       "visit",
	KindGoalFound:   "goal_found",
	KindFinished:    "finished",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Terminal reports whether k ends its sequence.
func (k Kind) Terminal() bool {
	return k == KindMazeDone || k == KindFinished
}

// Event is one micro-step of an algorithm run. Events are plain data.
type Event interface {
	Kind() Kind
	isEvent()
}

// MazeStart opens a generation run.
type MazeStart struct {
	Cell         grid.Cell
	VisitedCount int
	StackDepth   int
}

// Carve records the wall opened between From and To; To is pushed.
type Carve struct {
	From         grid.Cell
	To           grid.Cell
	VisitedCount int
	StackDepth   int
}

// Backtrack records Cell being popped off the carving stack.
type Backtrack struct {
	Cell         grid.Cell
	VisitedCount int
	StackDepth   int
}

// MazeDone closes a generation run.
type MazeDone struct {
	VisitedCount int
	StackDepth   int
}

// SearchStart opens a search run with the start cell enqueued.
type SearchStart struct {
	Cell         grid.Cell
	QueueSize    int
	VisitedCount int
}

// Dequeue records Cell leaving the frontier.
type Dequeue struct {
	Cell         grid.Cell
	QueueSize    int
	VisitedCount int
}

// Enqueue records Cell being discovered from From.
type Enqueue struct {
	Cell         grid.Cell
	From         grid.Cell
	QueueSize    int
	VisitedCount int
}

// Visit records that all of Cell's neighbors have been examined.
type Visit struct {
	Cell         grid.Cell
	QueueSize    int
	VisitedCount int
}

// GoalFound carries the reconstructed start-to-goal path.
type GoalFound struct {
	Cell grid.Cell
	Path []grid.Cell
}

// Finished closes a search run.
type Finished struct {
	Found        bool
	VisitedCount int
}

func (MazeStart) Kind() Kind   { return KindMazeStart }
func (Carve) Kind() Kind       { return KindCarve }
func (Backtrack) Kind() Kind   { return KindBacktrack }
func (MazeDone) Kind() Kind    { return KindMazeDone }
func (SearchStart) Kind() Kind { return KindSearchStart }
func (Dequeue) Kind() Kind     { return KindDequeue }
func (Enqueue) Kind() Kind     { return KindEnqueue }
func (Visit) Kind() Kind       { return KindVisit }
func (GoalFound) Kind() Kind   { return KindGoalFound }
func (Finished) Kind() Kind    { return KindFinished }

func (MazeStart) isEvent()   {}
func (Carve) isEvent()       {}
func (Backtrack) isEvent()   {}
func (MazeDone) isEvent()    {}
func (SearchStart) isEvent() {}
func (Dequeue) isEvent()     {}
func (Enqueue) isEvent()     {}
func (Visit) isEvent()       {}
func (GoalFound) isEvent()   {}
func (Finished) isEvent()    {}

func (e MazeStart) String() string {
	return fmt.Sprintf("start cell=%v visited=%d stack=%d", e.Cell, e.VisitedCount, e.StackDepth)
}

func (e Carve) String() string {
	return fmt.Sprintf("carve %v->%v visited=%d stack=%d", e.From, e.To, e.VisitedCount, e.StackDepth)
}

func (e Backtrack) String() string {
	return fmt.Sprintf("backtrack cell=%v visited=%d stack=%d", e.Cell, e.VisitedCount, e.StackDepth)
}

func (e MazeDone) String() string {
	return fmt.Sprintf("done visited=%d stack=%d", e.VisitedCount, e.StackDepth)
}

func (e SearchStart) String() string {
	return fmt.Sprintf("search_start cell=%v queue=%d visited=%d", e.Cell, e.QueueSize, e.VisitedCount)
}

func (e Dequeue) String() string {
	return fmt.Sprintf("dequeue cell=%v queue=%d visited=%d", e.Cell, e.QueueSize, e.VisitedCount)
}

func (e Enqueue) String() string {
	return fmt.Sprintf("enqueue %v->%v queue=%d visited=%d", e.From, e.Cell, e.QueueSize, e.VisitedCount)
}

func (e Visit) String() string {
	return fmt.Sprintf("visit cell=%v queue=%d visited=%d", e.Cell, e.QueueSize, e.VisitedCount)
}

func (e GoalFound) String() string {
	return fmt.Sprintf("goal_found cell=%v path_len=%d", e.Cell, len(e.Path))
}

func (e Finished) String() string {
	return fmt.Sprintf("finished found=%t visited=%d", e.Found, e.VisitedCount)
}

// Sequence is a lazily produced, single-pass event log. Next returns false
// once the sequence is exhausted and keeps returning false afterwards.
type Sequence interface {
	Next() (Event, bool)
}

// SequenceFunc adapts a function to Sequence.
type SequenceFunc func() (Event, bool)

// Next calls f.
func (f SequenceFunc) Next() (Event, bool) {
	return f()
}

// All exposes seq as a range-over-func iterator.
func All(seq Sequence) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			e, ok := seq.Next()
			if !ok || !yield(e) {
				return
			}
		}
	}
}

// Collect drains seq.
func Collect(seq Sequence) []Event {
	var events []Event
	for e := range All(seq) {
		events = append(events, e)
	}
	return events
}

// Tap returns a sequence that calls fn with every event before handing it on.
func Tap(seq Sequence, fn func(Event)) Sequence {
	return SequenceFunc(func() (Event, bool) {
		e, ok := seq.Next()
		if ok {
			fn(e)
		}
		return e, ok
	})
}
