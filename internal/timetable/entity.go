package timetable

import (
	"time"
)

// Node types tag which timepoint of a task a graph node represents.
const (
	NodeDeparture = "departure"
	NodeStart     = "start"
	NodeFinish    = "finish"
)

// NodeData tags a graph node with the task timepoint it stands for.
type NodeData struct {
	TaskID   string `yaml:"task_id" json:"task_id"`
	NodeType string `yaml:"node_type" json:"node_type"`
}

type Node struct {
	ID   int      `yaml:"id" json:"id"`
	Data NodeData `yaml:"data" json:"data"`
}

// Edge is a temporal-distance bound from Source to Target. Node 0 is the
// fixed zero-reference node; weights are seconds relative to the ZTP.
type Edge struct {
	Source int     `yaml:"source" json:"source"`
	Target int     `yaml:"target" json:"target"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// DispatchableGraph is the node-link form produced by the temporal-network
// solver. It is replaced as a whole, never patched.
type DispatchableGraph struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
	Links []Edge `yaml:"links" json:"links"`
}

// Timetable holds the committed schedule of one robot: the zero time point
// anchor and the dispatchable graph encoding temporal distances between task
// timepoints. It is produced by the solver once per scheduling cycle and is
// read-only here.
type Timetable struct {
	RobotID string            `yaml:"robot_id" json:"robot_id"`
	ZTP     time.Time         `yaml:"ztp" json:"ztp"`
	Graph   DispatchableGraph `yaml:"dispatchable_graph" json:"dispatchable_graph"`

	nodeIndex map[NodeData]int
	edgeIndex map[[2]int]float64
}

// New builds a timetable and its lookup indexes.
func New(robotID string, ztp time.Time, graph DispatchableGraph) *Timetable {
	t := &Timetable{RobotID: robotID, ZTP: ztp, Graph: graph}
	t.Reindex()
	return t
}

// Reindex rebuilds the node and edge lookup tables. Repositories call it
// after decoding a stored timetable; the graph must not change afterwards.
func (t *Timetable) Reindex() {
	t.nodeIndex = make(map[NodeData]int, len(t.Graph.Nodes))
	for _, n := range t.Graph.Nodes {
		if _, ok := t.nodeIndex[n.Data]; !ok {
			t.nodeIndex[n.Data] = n.ID
		}
	}
	t.edgeIndex = make(map[[2]int]float64, len(t.Graph.Links))
	for _, e := range t.Graph.Links {
		key := [2]int{e.Source, e.Target}
		if _, ok := t.edgeIndex[key]; !ok {
			// first matching edge wins
			t.edgeIndex[key] = e.Weight
		}
	}
}

// GetTime derives the absolute time committed for a task timepoint.
// With lowerBound, the edge (node -> 0) holds the negated lower-bound
// distance, so the absolute time is ZTP - weight; otherwise the edge
// (0 -> node) gives ZTP + weight. A missing node or edge means the
// timepoint is not scheduled yet, not an error.
func (t *Timetable) GetTime(taskID, nodeType string, lowerBound bool) (time.Time, bool) {
	if t.nodeIndex == nil {
		t.Reindex()
	}
	nodeID, ok := t.nodeIndex[NodeData{TaskID: taskID, NodeType: nodeType}]
	if !ok {
		return time.Time{}, false
	}
	if lowerBound {
		weight, ok := t.edgeIndex[[2]int{nodeID, 0}]
		if !ok {
			return time.Time{}, false
		}
		return t.ZTP.Add(-secondsToDuration(weight)), true
	}
	weight, ok := t.edgeIndex[[2]int{0, nodeID}]
	if !ok {
		return time.Time{}, false
	}
	return t.ZTP.Add(secondsToDuration(weight)), true
}

// TaskIDs lists the tasks with at least one timepoint in the graph, in node
// order.
func (t *Timetable) TaskIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, n := range t.Graph.Nodes {
		if n.Data.TaskID == "" {
			continue
		}
		if _, ok := seen[n.Data.TaskID]; ok {
			continue
		}
		seen[n.Data.TaskID] = struct{}{}
		ids = append(ids, n.Data.TaskID)
	}
	return ids
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
