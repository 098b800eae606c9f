package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testGraph() DispatchableGraph {
	return DispatchableGraph{
		Nodes: []Node{
			{ID: 0},
			{ID: 1, Data: NodeData{TaskID: "task-a", NodeType: NodeDeparture}},
			{ID: 2, Data: NodeData{TaskID: "task-a", NodeType: NodeStart}},
			{ID: 3, Data: NodeData{TaskID: "task-a", NodeType: NodeFinish}},
			{ID: 4, Data: NodeData{TaskID: "task-b", NodeType: NodeStart}},
		},
		Links: []Edge{
			{Source: 1, Target: 0, Weight: -30},
			{Source: 0, Target: 1, Weight: 45},
			{Source: 2, Target: 0, Weight: -60},
			{Source: 3, Target: 0, Weight: -180},
			{Source: 0, Target: 4, Weight: 600},
		},
	}
}

func TestGetTimeLowerBound(t *testing.T) {
	ztp := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	tt := New("frank", ztp, testGraph())

	// Edge (node -> 0) holds the negated lower bound: ZTP - weight.
	at, ok := tt.GetTime("task-a", NodeStart, true)
	assert.True(t, ok)
	assert.Equal(t, ztp.Add(60*time.Second), at)

	at, ok = tt.GetTime("task-a", NodeDeparture, true)
	assert.True(t, ok)
	assert.Equal(t, ztp.Add(30*time.Second), at)

	at, ok = tt.GetTime("task-a", NodeFinish, true)
	assert.True(t, ok)
	assert.Equal(t, ztp.Add(180*time.Second), at)
}

func TestGetTimeUpperBound(t *testing.T) {
	ztp := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	tt := New("frank", ztp, testGraph())

	// Edge (0 -> node) gives ZTP + weight.
	at, ok := tt.GetTime("task-a", NodeDeparture, false)
	assert.True(t, ok)
	assert.Equal(t, ztp.Add(45*time.Second), at)
}

func TestGetTimeUnscheduledTimepoint(t *testing.T) {
	ztp := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	tt := New("frank", ztp, testGraph())

	// task-b has a start node but no lower-bound edge yet.
	_, ok := tt.GetTime("task-b", NodeStart, true)
	assert.False(t, ok)

	// Unknown task: absence is not an error.
	_, ok = tt.GetTime("task-c", NodeStart, true)
	assert.False(t, ok)
}

func TestGetTimeFirstEdgeWins(t *testing.T) {
	ztp := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	graph := testGraph()
	graph.Links = append(graph.Links, Edge{Source: 2, Target: 0, Weight: -999})
	tt := New("frank", ztp, graph)

	at, ok := tt.GetTime("task-a", NodeStart, true)
	assert.True(t, ok)
	assert.Equal(t, ztp.Add(60*time.Second), at)
}

func TestTaskIDs(t *testing.T) {
	tt := New("frank", time.Now(), testGraph())
	assert.Equal(t, []string{"task-a", "task-b"}, tt.TaskIDs())
}
