package graph

import (
	"fmt"
	"math"
	"slices"
)

// Descriptor holds the recording-level metadata of one page graph.
type Descriptor struct {
	Version   string  `json:"version"`
	About     string  `json:"about"`
	URL       string  `json:"url"`
	IsRoot    bool    `json:"is_root"`
	FrameID   FrameID `json:"frame_id"`
	TimeStart uint64  `json:"time_start"`
	TimeEnd   uint64  `json:"time_end"`
}

// Node is one vertex of a page graph.
type Node struct {
	ID        NodeID
	Timestamp int64
	Type      NodeType
}

// Edge is one directed edge of a page graph. Timestamp is nil when the
// recording carries none, which synthetic edges and some structural edges do.
type Edge struct {
	ID        EdgeID
	Timestamp *int64
	Type      EdgeType
	Source    NodeID
	Target    NodeID
}

// PageGraph is an in-memory page graph with forward and reverse adjacency.
// Nodes and edges enter through AddNode and AddEdge; endpoint existence is
// not checked at insertion so that edges may arrive before their nodes, and
// is instead enforced by SourceNode and TargetNode.
type PageGraph struct {
	Desc Descriptor

	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge
	fwd   map[NodeID]map[NodeID][]EdgeID
	rev   map[NodeID]map[NodeID][]EdgeID

	// Synthetic edge ids count down from the top of the id space so they
	// cannot collide with recorded ids, which count up from zero.
	nextSyntheticID uint64
}

// NewPageGraph returns an empty graph carrying desc.
func NewPageGraph(desc Descriptor) *PageGraph {
	return &PageGraph{
		Desc:            desc,
		nodes:           make(map[NodeID]*Node),
		edges:           make(map[EdgeID]*Edge),
		fwd:             make(map[NodeID]map[NodeID][]EdgeID),
		rev:             make(map[NodeID]map[NodeID][]EdgeID),
		nextSyntheticID: math.MaxUint64,
	}
}

// AddNode inserts n. The node id must be unused.
func (g *PageGraph) AddNode(n *Node) error {
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("graph: duplicate node id %s", n.ID)
	}
	g.nodes[n.ID] = n
	return nil
}

// AddEdge inserts e. The edge id must be unused.
func (g *PageGraph) AddEdge(e *Edge) error {
	if _, ok := g.edges[e.ID]; ok {
		return fmt.Errorf("graph: duplicate edge id %s", e.ID)
	}
	g.edges[e.ID] = e
	addAdjacency(g.fwd, e.Source, e.Target, e.ID)
	addAdjacency(g.rev, e.Target, e.Source, e.ID)
	return nil
}

func addAdjacency(adj map[NodeID]map[NodeID][]EdgeID, from, to NodeID, id EdgeID) {
	m := adj[from]
	if m == nil {
		m = make(map[NodeID][]EdgeID)
		adj[from] = m
	}
	m[to] = append(m[to], id)
}

// NewEdgeID reserves a fresh edge id for a synthesized edge.
func (g *PageGraph) NewEdgeID() (EdgeID, error) {
	id := NewEdgeID(g.nextSyntheticID)
	if _, ok := g.edges[id]; ok {
		return EdgeID{}, fmt.Errorf("graph: synthetic edge id %s already in use", id)
	}
	g.nextSyntheticID--
	return id, nil
}

// Node returns the node with the given id.
func (g *PageGraph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with the given id.
func (g *PageGraph) Edge(id EdgeID) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// NodeCount returns the number of nodes.
func (g *PageGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *PageGraph) EdgeCount() int { return len(g.edges) }

// SourceNode resolves the source endpoint of e.
func (g *PageGraph) SourceNode(e *Edge) (*Node, error) {
	n, ok := g.nodes[e.Source]
	if !ok {
		return nil, &ErrDanglingEdge{Edge: e.ID, Node: e.Source, End: "source"}
	}
	return n, nil
}

// TargetNode resolves the target endpoint of e.
func (g *PageGraph) TargetNode(e *Edge) (*Node, error) {
	n, ok := g.nodes[e.Target]
	if !ok {
		return nil, &ErrDanglingEdge{Edge: e.ID, Node: e.Target, End: "target"}
	}
	return n, nil
}

// OutgoingEdges returns the edges leaving id, in ascending edge id order.
func (g *PageGraph) OutgoingEdges(id NodeID) []*Edge {
	return g.adjacentEdges(g.fwd[id])
}

// IncomingEdges returns the edges entering id, in ascending edge id order.
func (g *PageGraph) IncomingEdges(id NodeID) []*Edge {
	return g.adjacentEdges(g.rev[id])
}

func (g *PageGraph) adjacentEdges(m map[NodeID][]EdgeID) []*Edge {
	var out []*Edge
	for _, ids := range m {
		for _, id := range ids {
			out = append(out, g.edges[id])
		}
	}
	sortEdges(out)
	return out
}

// FilterNodes returns the nodes satisfying keep, in ascending node id order.
func (g *PageGraph) FilterNodes(keep func(*Node) bool) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

// FilterEdges returns the edges satisfying keep, in ascending edge id order.
func (g *PageGraph) FilterEdges(keep func(*Edge) bool) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	sortEdges(out)
	return out
}

// AllRemoteFrameIDs returns the frame ids of every remote frame placeholder
// in the graph, sorted and deduplicated. Callers use them to locate companion
// recordings.
func (g *PageGraph) AllRemoteFrameIDs() []FrameID {
	var out []FrameID
	for _, n := range g.nodes {
		if rf, ok := n.Type.(RemoteFrame); ok {
			out = append(out, rf.FrameID)
		}
	}
	slices.SortFunc(out, FrameID.Compare)
	return slices.Compact(out)
}

func sortNodes(ns []*Node) {
	slices.SortFunc(ns, func(a, b *Node) int { return a.ID.Compare(b.ID) })
}

func sortEdges(es []*Edge) {
	slices.SortFunc(es, func(a, b *Edge) int { return a.ID.Compare(b.ID) })
}
