package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/mazestep/internal/grid"
)

func sliceSequence(events ...Event) Sequence {
	i := 0
	return SequenceFunc(func() (Event, bool) {
		if i >= len(events) {
			return nil, false
		}
		e := events[i]
		i++
		return e, true
	})
}

func TestKindNames(t *testing.T) {
	for k := KindMazeStart; k <= KindFinished; k++ {
		name := k.String()
		back, ok := ParseKind(name)
		require.True(t, ok, "ParseKind(%q)", name)
		assert.Equal(t, k, back)
	}
	assert.Equal(t, "kind(42)", Kind(42).String())
	assert.True(t, KindMazeDone.Terminal())
	assert.True(t, KindFinished.Terminal())
	assert.False(t, KindGoalFound.Terminal())
}

func TestEncodeCarve(t *testing.T) {
	data, err := Encode(Carve{From: grid.Cell{Row: 0, Col: 0}, To: grid.Cell{Row: 0, Col: 1}, VisitedCount: 2, StackDepth: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"carve","from":[0,0],"to":[0,1],"visited_count":2,"stack_depth":2}`, string(data))
}

func TestEncodeKeepsZeroCounts(t *testing.T) {
	data, err := Encode(MazeDone{VisitedCount: 9, StackDepth: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"done","visited_count":9,"stack_depth":0}`, string(data))

	data, err = Encode(Finished{Found: false, VisitedCount: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"finished","found":false,"visited_count":3}`, string(data))
}

func TestEncodeGoalFound(t *testing.T) {
	path := []grid.Cell{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 1, Col: 1}}
	data, err := Encode(GoalFound{Cell: grid.Cell{Row: 1, Col: 1}, Path: path})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"goal_found","cell":[1,1],"path":[[0,0],[1,0],[1,1]]}`, string(data))

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, GoalFound{Cell: grid.Cell{Row: 1, Col: 1}, Path: path}, back)
}

func TestDecodeEnqueue(t *testing.T) {
	e, err := Decode([]byte(`{"event":"enqueue","cell":[2,1],"from":[1,1],"queue_size":3,"visited_count":5}`))
	require.NoError(t, err)
	assert.Equal(t, Enqueue{Cell: grid.Cell{Row: 2, Col: 1}, From: grid.Cell{Row: 1, Col: 1}, QueueSize: 3, VisitedCount: 5}, e)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"event":"teleport"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestCollectAndAll(t *testing.T) {
	events := []Event{MazeStart{VisitedCount: 1, StackDepth: 1}, MazeDone{VisitedCount: 1}}
	assert.Equal(t, events, Collect(sliceSequence(events...)))

	seen := 0
	for range All(sliceSequence(events...)) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestTap(t *testing.T) {
	var kinds []Kind
	seq := Tap(sliceSequence(MazeStart{}, Backtrack{}, MazeDone{}), func(e Event) {
		kinds = append(kinds, e.Kind())
	})
	Collect(seq)
	assert.Equal(t, []Kind{KindMazeStart, KindBacktrack, KindMazeDone}, kinds)

	_, ok := seq.Next()
	assert.False(t, ok)
	assert.Len(t, kinds, 3)
}

func TestStringers(t *testing.T) {
	c := Carve{From: grid.Cell{Row: 0, Col: 0}, To: grid.Cell{Row: 1, Col: 0}, VisitedCount: 2, StackDepth: 2}
	assert.Equal(t, "carve (0,0)->(1,0) visited=2 stack=2", c.String())
	assert.Equal(t, "finished found=true visited=4", Finished{Found: true, VisitedCount: 4}.String())
}
