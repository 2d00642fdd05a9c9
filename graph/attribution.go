package graph

import (
	"fmt"
	"slices"
	"strings"
)

// attribution carries the recursion state of one DOM root lookup. Items on
// the current path are tracked so a malformed recording with cyclic structure
// fails with ErrCycle instead of recursing forever.
type attribution struct {
	g     *PageGraph
	nodes map[NodeID]struct{}
	edges map[EdgeID]struct{}
}

// DOMRootForHTMLNode resolves the DOM root governing a DOM-ish node, walking
// insertion parents first and falling back to the creating script when the
// node was never inserted.
func (g *PageGraph) DOMRootForHTMLNode(n *Node) (*Node, error) {
	a := &attribution{g: g, nodes: make(map[NodeID]struct{}), edges: make(map[EdgeID]struct{})}
	return a.rootForHTMLNode(n)
}

// DOMRootForEdge resolves the DOM root of the frame an edge originated from.
// The result is nil without error for parser-initiated requests, which cannot
// be attributed to a root.
func (g *PageGraph) DOMRootForEdge(e *Edge) (*Node, error) {
	a := &attribution{g: g, nodes: make(map[NodeID]struct{}), edges: make(map[EdgeID]struct{})}
	return a.rootForEdge(e)
}

func (a *attribution) rootForHTMLNode(n *Node) (*Node, error) {
	if _, ok := a.nodes[n.ID]; ok {
		return nil, &ErrCycle{What: fmt.Sprintf("DOM root attribution at node %s", n.ID)}
	}
	a.nodes[n.ID] = struct{}{}
	defer delete(a.nodes, n.ID)

	switch n.Type.(type) {
	case DOMRoot:
		return n, nil
	case HTMLElement, TextNode, FrameOwner:
	default:
		return nil, &ErrUnimplemented{What: fmt.Sprintf("DOM root attribution for %T node", n.Type)}
	}

	for _, e := range a.g.IncomingEdges(n.ID) {
		ins, ok := e.Type.(InsertNode)
		if !ok {
			continue
		}
		parent, err := a.htmlParent(n, ins.Parent)
		if err != nil {
			return nil, err
		}
		root, err := a.rootForHTMLNode(parent)
		if err != nil {
			return nil, err
		}
		if root != nil {
			return root, nil
		}
	}

	// Never inserted, so it must have been created by a script.
	var creators []*Node
	for _, e := range a.g.IncomingEdges(n.ID) {
		if _, ok := e.Type.(CreateNode); !ok {
			continue
		}
		src, err := a.g.SourceNode(e)
		if err != nil {
			return nil, err
		}
		creators = append(creators, src)
	}
	if len(creators) != 1 {
		return nil, &ErrCardinality{What: fmt.Sprintf("creator for %s", n.ID), Want: 1, Got: len(creators)}
	}
	creator := creators[0]
	if _, ok := creator.Type.(Script); !ok {
		return nil, &ErrUnimplemented{What: fmt.Sprintf("DOM root attribution via %T creator", creator.Type)}
	}
	roots, err := a.executorRoots(creator)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		// Module scripts can execute without an attributable executor chain.
		// The local context root is first-party to the same frame, which is
		// all downstream partiness checks need.
		return a.g.LocalContextRootForID(creator.ID)
	}
	return pickRoot(roots)
}

func (a *attribution) rootForEdge(e *Edge) (*Node, error) {
	if _, ok := a.edges[e.ID]; ok {
		return nil, &ErrCycle{What: fmt.Sprintf("DOM root attribution at edge %s", e.ID)}
	}
	a.edges[e.ID] = struct{}{}
	defer delete(a.edges, e.ID)

	switch e.Type.(type) {
	case RequestComplete:
		target, err := a.g.TargetNode(e)
		if err != nil {
			return nil, err
		}
		switch target.Type.(type) {
		case HTMLElement, FrameOwner:
			return a.rootForHTMLNode(target)
		case Script:
			roots, err := a.executorRoots(target)
			if err != nil {
				return nil, err
			}
			if len(roots) == 0 {
				return a.g.LocalContextRootForID(e.ID)
			}
			return pickRoot(roots)
		case Parser:
			// Prefetches and CSS-initiated requests come from the parser and
			// cannot be tied to a particular root.
			return nil, nil
		default:
			return nil, &ErrUnimplemented{What: fmt.Sprintf("request initiated by %T node", target.Type)}
		}
	case Execute:
		source, err := a.g.SourceNode(e)
		if err != nil {
			return nil, err
		}
		switch st := source.Type.(type) {
		case HTMLElement:
			if st.TagName == "script" {
				return a.rootForHTMLNode(source)
			}
			return nil, &ErrUnimplemented{What: fmt.Sprintf("script executed by %q element", st.TagName)}
		case Script:
			if st.ScriptType == "module" {
				return a.g.LocalContextRootForID(e.ID)
			}
			roots, err := a.executorRoots(source)
			if err != nil {
				return nil, err
			}
			if len(roots) == 0 {
				return nil, &ErrCardinality{What: fmt.Sprintf("executor for script %s", source.ID), Want: 1, Got: 0}
			}
			return pickRoot(roots)
		case DOMRoot:
			// DOM roots occasionally execute scripts directly.
			return source, nil
		default:
			return nil, &ErrUnimplemented{What: fmt.Sprintf("script executed by %T node", source.Type)}
		}
	case CrossDOM:
		source, err := a.g.SourceNode(e)
		if err != nil {
			return nil, err
		}
		switch source.Type.(type) {
		case RemoteFrame:
			var previous []*Edge
			for _, in := range a.g.IncomingEdges(source.ID) {
				if _, ok := in.Type.(CrossDOM); ok {
					previous = append(previous, in)
				}
			}
			if len(previous) != 1 {
				return nil, &ErrCardinality{What: fmt.Sprintf("incoming cross DOM edge for remote frame %s", source.ID), Want: 1, Got: len(previous)}
			}
			return a.rootForEdge(previous[0])
		case FrameOwner:
			return a.rootForHTMLNode(source)
		case DOMRoot:
			// A script-created DOM root can attach directly to another root.
			return source, nil
		default:
			return nil, &ErrUnimplemented{What: fmt.Sprintf("cross DOM edge from %T node", source.Type)}
		}
	}
	return nil, &ErrUnimplemented{What: fmt.Sprintf("DOM root attribution for %T edge", e.Type)}
}

// htmlParent resolves an insertion parent by DOM node id, within the frame
// context of the inserted node.
func (a *attribution) htmlParent(n *Node, parentID uint64) (*Node, error) {
	matches := a.g.FilterNodes(func(cand *Node) bool {
		if !SameFrameContext(n.ID, cand.ID) {
			return false
		}
		id, ok := htmlParentDOMNodeID(cand.Type)
		return ok && id == parentID
	})
	if len(matches) != 1 {
		return nil, &ErrCardinality{What: fmt.Sprintf("HTML parent with DOM node id %d", parentID), Want: 1, Got: len(matches)}
	}
	return matches[0], nil
}

// executorRoots resolves the DOM root of every execute edge entering script.
func (a *attribution) executorRoots(script *Node) ([]*Node, error) {
	var roots []*Node
	for _, e := range a.g.IncomingEdges(script.ID) {
		if _, ok := e.Type.(Execute); !ok {
			continue
		}
		root, err := a.rootForEdge(e)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, fmt.Errorf("graph: no DOM root for execute edge %s", e.ID)
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// pickRoot chooses among several candidate roots. The same script source can
// execute from multiple roots in one local frame context; only the URL is
// consumed downstream, so the smallest URL wins, with node id breaking ties.
func pickRoot(roots []*Node) (*Node, error) {
	var withURL []*Node
	for _, r := range roots {
		if d, ok := r.Type.(DOMRoot); ok && d.URL != nil {
			withURL = append(withURL, r)
		}
	}
	if len(withURL) == 0 {
		return nil, &ErrCardinality{What: "URL-bearing DOM root", Want: 1, Got: 0}
	}
	slices.SortFunc(withURL, func(a, b *Node) int {
		if c := strings.Compare(*a.Type.(DOMRoot).URL, *b.Type.(DOMRoot).URL); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return withURL[0], nil
}

// LocalContextRootForID finds the single top-level DOM root of the local
// frame context an item belongs to. Not necessarily the root of the whole
// recording, but first-party to the item's frame.
func (g *PageGraph) LocalContextRootForID(item FrameQualified) (*Node, error) {
	matches := g.FilterNodes(func(n *Node) bool {
		if _, ok := n.Type.(DOMRoot); !ok {
			return false
		}
		if !SameFrameContext(item, n.ID) {
			return false
		}
		for _, e := range g.IncomingEdges(n.ID) {
			if _, ok := e.Type.(CrossDOM); ok && SameFrameContext(item, e.ID) {
				return false
			}
		}
		return true
	})
	if len(matches) != 1 {
		return nil, &ErrCardinality{What: "local context DOM root", Want: 1, Got: len(matches)}
	}
	return matches[0], nil
}

func htmlParentDOMNodeID(t NodeType) (uint64, bool) {
	switch v := t.(type) {
	case HTMLElement:
		return v.DOMNodeID, true
	case DOMRoot:
		return v.DOMNodeID, true
	case FrameOwner:
		return v.DOMNodeID, true
	}
	return 0, false
}
