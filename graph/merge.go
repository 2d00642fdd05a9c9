package graph

import "fmt"

// MergeFrame inserts a child frame recording into g, namespacing every copied
// node and edge id with frameID to avoid collisions. The remote frame
// placeholder matching frameID gains two synthesized cross DOM edges, one to
// the child's top-level DOM root and one to its top-level parser.
func (g *PageGraph) MergeFrame(frame *PageGraph, frameID FrameID) error {
	if !g.Desc.IsRoot {
		return fmt.Errorf("graph: merge target is not a root recording")
	}
	if frame.Desc.IsRoot {
		return fmt.Errorf("graph: merged frame %s is a root recording", frameID)
	}

	remotes := g.FilterNodes(func(n *Node) bool {
		rf, ok := n.Type.(RemoteFrame)
		return ok && rf.FrameID == frameID
	})
	if len(remotes) != 1 {
		return &ErrCardinality{What: fmt.Sprintf("remote frame for %s", frameID), Want: 1, Got: len(remotes)}
	}
	remote := remotes[0].ID

	// The child's own anchors are the DOM root and parser that no cross DOM
	// edge points at. Nested subframes inside the child have such edges from
	// their frame owners and are excluded here.
	uncrossed := func(n *Node) bool {
		for _, e := range frame.IncomingEdges(n.ID) {
			if _, ok := e.Type.(CrossDOM); ok {
				return false
			}
		}
		return true
	}
	domRoots := frame.FilterNodes(func(n *Node) bool {
		_, ok := n.Type.(DOMRoot)
		return ok && uncrossed(n)
	})
	if len(domRoots) != 1 {
		return &ErrCardinality{What: "top-level DOM root", Want: 1, Got: len(domRoots)}
	}
	parsers := frame.FilterNodes(func(n *Node) bool {
		_, ok := n.Type.(Parser)
		return ok && uncrossed(n)
	})
	if len(parsers) != 1 {
		return &ErrCardinality{What: "top-level parser", Want: 1, Got: len(parsers)}
	}
	domRoot := domRoots[0].ID
	parser := parsers[0].ID

	for _, n := range frame.FilterNodes(func(*Node) bool { return true }) {
		copied := &Node{ID: n.ID.WithFrame(frameID), Timestamp: n.Timestamp, Type: n.Type}
		if err := g.AddNode(copied); err != nil {
			return err
		}
		if n.ID == domRoot || n.ID == parser {
			id, err := g.NewEdgeID()
			if err != nil {
				return err
			}
			if err := g.AddEdge(&Edge{ID: id, Type: CrossDOM{}, Source: remote, Target: copied.ID}); err != nil {
				return err
			}
		}
	}
	for _, e := range frame.FilterEdges(func(*Edge) bool { return true }) {
		copied := &Edge{
			ID:        e.ID.WithFrame(frameID),
			Timestamp: e.Timestamp,
			Type:      e.Type,
			Source:    e.Source.WithFrame(frameID),
			Target:    e.Target.WithFrame(frameID),
		}
		if err := g.AddEdge(copied); err != nil {
			return err
		}
	}
	return nil
}
