package graph

import (
	"cmp"
	"fmt"
	"slices"
)

// canHaveSrc lists the element tags whose src attribute triggers a load.
var canHaveSrc = map[string]bool{
	"audio":  true,
	"embed":  true,
	"iframe": true,
	"img":    true,
	"input":  true,
	"script": true,
	"source": true,
	"track":  true,
	"video":  true,
}

// DirectDownstreamEffectsOf returns the edges immediately caused by e. Edge
// kinds outside the causal model return ErrUnimplemented.
func (g *PageGraph) DirectDownstreamEffectsOf(e *Edge) ([]*Edge, error) {
	switch t := e.Type.(type) {
	case Structure:
		return nil, &ErrUnimplemented{What: "downstream effects of structure edges"}
	case CrossDOM:
		return g.crossDOMEffects(e)
	case InsertNode:
		return g.insertNodeEffects(e, t)
	case CreateNode, RequestError:
		return nil, nil
	case RequestComplete:
		// A completed script fetch into a script element accounts for that
		// element's executions.
		target, err := g.TargetNode(e)
		if err != nil {
			return nil, err
		}
		ht, ok := target.Type.(HTMLElement)
		if t.ResourceType != "script" || !ok || ht.TagName != "script" {
			return nil, nil
		}
		var out []*Edge
		for _, oe := range g.OutgoingEdges(target.ID) {
			if _, ok := oe.Type.(Execute); ok {
				out = append(out, oe)
			}
		}
		return out, nil
	case RequestStart:
		// A request start causes its completion or error.
		target, err := g.TargetNode(e)
		if err != nil {
			return nil, err
		}
		var out []*Edge
		for _, oe := range g.OutgoingEdges(target.ID) {
			switch ot := oe.Type.(type) {
			case RequestComplete:
				if ot.RequestID == t.RequestID {
					out = append(out, oe)
				}
			case RequestError:
				if ot.RequestID == t.RequestID {
					out = append(out, oe)
				}
			}
		}
		return out, nil
	case Execute:
		// A running script can start requests, execute other scripts, and set
		// attributes that trigger loads on other elements.
		target, err := g.TargetNode(e)
		if err != nil {
			return nil, err
		}
		var out []*Edge
		for _, oe := range g.OutgoingEdges(target.ID) {
			switch oe.Type.(type) {
			case RequestStart, Execute, SetAttribute:
				out = append(out, oe)
			}
		}
		return out, nil
	case SetAttribute:
		if t.Key != "src" {
			return nil, nil
		}
		target, err := g.TargetNode(e)
		if err != nil {
			return nil, err
		}
		switch tt := target.Type.(type) {
		case HTMLElement:
			if !canHaveSrc[tt.TagName] {
				return nil, nil
			}
			var out []*Edge
			for _, oe := range g.OutgoingEdges(target.ID) {
				if _, ok := oe.Type.(RequestStart); ok {
					out = append(out, oe)
				}
			}
			return out, nil
		case FrameOwner:
			if !canHaveSrc[tt.TagName] {
				return nil, nil
			}
			return g.frameSrcEffects(e, target)
		}
		return nil, nil
	}
	return nil, &ErrUnimplemented{What: fmt.Sprintf("downstream effects of %T edges", e.Type)}
}

func (g *PageGraph) crossDOMEffects(e *Edge) ([]*Edge, error) {
	target, err := g.TargetNode(e)
	if err != nil {
		return nil, err
	}
	switch target.Type.(type) {
	case DOMRoot:
		return g.initialDOMTreeEdges(e)
	case Parser:
		// A merged frame hangs its tree off the DOM root anchor; the parser
		// anchor adds nothing.
		return nil, nil
	case RemoteFrame:
		// Step through to the attached DOM root, if the frame was merged in.
		var out []*Edge
		for _, oe := range g.OutgoingEdges(target.ID) {
			if _, ok := oe.Type.(CrossDOM); ok {
				out = append(out, oe)
			}
		}
		return out, nil
	}
	return nil, &ErrUnimplemented{What: fmt.Sprintf("cross DOM edge into %T node", target.Type)}
}

// parserNode pairs a parser-created node with its DOM node id and a frame
// membership flag while the initial DOM tree is reconstructed.
type parserNode struct {
	node  *Node
	domID uint64
	flag  int8
}

const (
	flagUnset int8 = iota
	flagPending
	flagInFrame
	flagOutside
)

// initialDOMTreeEdges collects the parser edges that built the initial DOM
// tree of the frame rooted at e's target. The parser serves a whole local
// frame context, so nodes belonging to sibling frames in the same context are
// filtered out by walking insertion parents up to a DOM root.
func (g *PageGraph) initialDOMTreeEdges(e *Edge) ([]*Edge, error) {
	parsers := g.FilterNodes(func(n *Node) bool {
		_, ok := n.Type.(Parser)
		return ok && SameFrameContext(e.Target, n.ID)
	})
	if len(parsers) != 1 {
		return nil, &ErrCardinality{What: "parser in frame context", Want: 1, Got: len(parsers)}
	}
	parser := parsers[0]

	var nodes []*Node
	for _, oe := range g.OutgoingEdges(parser.ID) {
		if _, ok := oe.Type.(CreateNode); !ok {
			continue
		}
		n, err := g.TargetNode(oe)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	// DOM roots born without a create edge belong to the tree as well.
	nodes = append(nodes, g.FilterNodes(func(n *Node) bool {
		if _, ok := n.Type.(DOMRoot); !ok {
			return false
		}
		if !SameFrameContext(n.ID, e.Target) {
			return false
		}
		for _, in := range g.IncomingEdges(n.ID) {
			if _, ok := in.Type.(CreateNode); ok {
				return false
			}
		}
		return true
	})...)

	cands := make([]parserNode, 0, len(nodes))
	for _, n := range nodes {
		id, ok := domNodeID(n.Type)
		if !ok {
			return nil, fmt.Errorf("graph: parser created %T node, which has no DOM node id", n.Type)
		}
		cands = append(cands, parserNode{node: n, domID: id})
	}
	slices.SortFunc(cands, func(a, b parserNode) int { return cmp.Compare(a.domID, b.domID) })
	for i := 1; i < len(cands); i++ {
		if cands[i].domID == cands[i-1].domID {
			return nil, fmt.Errorf("graph: DOM node id %d appears twice in frame context", cands[i].domID)
		}
	}

	// A node is in this frame when it is the frame's DOM root, or its first
	// tracked insertion parent is. Parser-created nodes with no tracked
	// parent stay outside.
	var populate func(i int) (bool, error)
	populate = func(i int) (bool, error) {
		switch cands[i].flag {
		case flagInFrame:
			return true, nil
		case flagOutside:
			return false, nil
		case flagPending:
			return false, &ErrCycle{What: fmt.Sprintf("initial DOM tree at node %s", cands[i].node.ID)}
		}
		cands[i].flag = flagPending
		in := false
		if _, ok := cands[i].node.Type.(DOMRoot); ok {
			in = cands[i].node.ID == e.Target
		} else {
			for _, ie := range g.IncomingEdges(cands[i].node.ID) {
				ins, ok := ie.Type.(InsertNode)
				if !ok {
					continue
				}
				j, found := slices.BinarySearchFunc(cands, ins.Parent, func(c parserNode, id uint64) int {
					return cmp.Compare(c.domID, id)
				})
				if !found {
					continue
				}
				f, err := populate(j)
				if err != nil {
					return false, err
				}
				in = f
				break
			}
		}
		if in {
			cands[i].flag = flagInFrame
		} else {
			cands[i].flag = flagOutside
		}
		return in, nil
	}
	for i := range cands {
		if _, err := populate(i); err != nil {
			return nil, err
		}
	}

	var out []*Edge
	for _, c := range cands {
		if c.flag != flagInFrame {
			continue
		}
		if _, ok := c.node.Type.(DOMRoot); ok {
			continue
		}
		for _, in := range g.IncomingEdges(c.node.ID) {
			switch in.Type.(type) {
			case CreateNode, SetAttribute, InsertNode:
				if in.Source == parser.ID {
					out = append(out, in)
				}
			}
		}
	}
	return out, nil
}

// insertNodeEffects attributes an inline script execution to the insertion
// of its text. Inserting a text node into a script element runs the script;
// the chronologically next execute edge from the element is the effect.
func (g *PageGraph) insertNodeEffects(e *Edge, ins InsertNode) ([]*Edge, error) {
	target, err := g.TargetNode(e)
	if err != nil {
		return nil, err
	}
	if _, ok := target.Type.(TextNode); !ok {
		return nil, nil
	}
	parents := g.FilterNodes(func(cand *Node) bool {
		if !SameFrameContext(e.ID, cand.ID) {
			return false
		}
		id, ok := htmlParentDOMNodeID(cand.Type)
		return ok && id == ins.Parent
	})
	if len(parents) != 1 {
		return nil, &ErrCardinality{What: fmt.Sprintf("HTML parent with DOM node id %d", ins.Parent), Want: 1, Got: len(parents)}
	}
	parent := parents[0]
	pt, ok := parent.Type.(HTMLElement)
	if !ok || pt.TagName != "script" {
		return nil, nil
	}
	var next *Edge
	for _, oe := range g.OutgoingEdges(parent.ID) {
		if _, ok := oe.Type.(Execute); !ok {
			continue
		}
		if compareTimestamps(oe.Timestamp, e.Timestamp) < 0 {
			continue
		}
		if next == nil || compareTimestamps(oe.Timestamp, next.Timestamp) < 0 {
			next = oe
		}
	}
	if next == nil {
		// Script elements like <script type="application/json"> never run.
		return nil, nil
	}
	return []*Edge{next}, nil
}

// frameSrcEffects finds the frame loads caused by setting src on a frame
// owner: cross DOM edges to a loaded document, at or after this set and
// before the next src set if one follows.
func (g *PageGraph) frameSrcEffects(e *Edge, owner *Node) ([]*Edge, error) {
	if e.Timestamp == nil {
		return nil, &ErrNoTimestamp{Edge: e.ID}
	}
	setTS := *e.Timestamp
	var bound *int64
	for _, in := range g.IncomingEdges(owner.ID) {
		if in.ID == e.ID {
			continue
		}
		sa, ok := in.Type.(SetAttribute)
		if !ok || sa.Key != "src" {
			continue
		}
		if in.Timestamp == nil {
			return nil, &ErrNoTimestamp{Edge: in.ID}
		}
		if *in.Timestamp <= setTS {
			continue
		}
		if bound == nil || *in.Timestamp < *bound {
			bound = in.Timestamp
		}
	}

	var out []*Edge
	for _, oe := range g.OutgoingEdges(owner.ID) {
		if _, ok := oe.Type.(CrossDOM); !ok {
			continue
		}
		target, err := g.TargetNode(oe)
		if err != nil {
			return nil, err
		}
		switch tt := target.Type.(type) {
		case DOMRoot:
			if tt.URL != nil && *tt.URL == "about:blank" {
				continue
			}
		case RemoteFrame:
		default:
			continue
		}
		if oe.Timestamp == nil {
			return nil, &ErrNoTimestamp{Edge: oe.ID}
		}
		if *oe.Timestamp < setTS {
			continue
		}
		if bound != nil && *oe.Timestamp >= *bound {
			continue
		}
		out = append(out, oe)
	}
	return out, nil
}

// AllDownstreamEffectsOf returns every edge that would not have occurred had
// e been omitted from the recording. Each effect appears once, in depth-first
// order, and e itself is excluded.
func (g *PageGraph) AllDownstreamEffectsOf(e *Edge) ([]*Edge, error) {
	stack := []*Edge{e}
	visited := map[EdgeID]struct{}{e.ID: {}}
	var out []*Edge
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.ID != e.ID {
			out = append(out, cur)
		}
		effects, err := g.DirectDownstreamEffectsOf(cur)
		if err != nil {
			return nil, err
		}
		for i := len(effects) - 1; i >= 0; i-- {
			eff := effects[i]
			if _, ok := visited[eff.ID]; ok {
				continue
			}
			visited[eff.ID] = struct{}{}
			stack = append(stack, eff)
		}
	}
	return out, nil
}

// DownstreamRequests describes one network request caused by an upstream
// action, along with the requests it caused in turn.
type DownstreamRequests struct {
	RequestID   uint64               `json:"request_id"`
	RequestType RequestType          `json:"request_type"`
	NodeID      NodeID               `json:"node_id"`
	URL         string               `json:"url"`
	Children    []DownstreamRequests `json:"children"`
}

// AllDownstreamRequestsNested returns the requests that would not have
// occurred had e been omitted, nested by causation.
func (g *PageGraph) AllDownstreamRequestsNested(e *Edge) ([]DownstreamRequests, error) {
	return g.downstreamRequests(e, make(map[EdgeID]struct{}))
}

func (g *PageGraph) downstreamRequests(e *Edge, ancestors map[EdgeID]struct{}) ([]DownstreamRequests, error) {
	if _, ok := ancestors[e.ID]; ok {
		return nil, &ErrCycle{What: fmt.Sprintf("downstream requests at edge %s", e.ID)}
	}
	ancestors[e.ID] = struct{}{}
	defer delete(ancestors, e.ID)

	stack := []*Edge{e}
	visited := map[EdgeID]struct{}{e.ID: {}}
	var out []DownstreamRequests
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		effects, err := g.DirectDownstreamEffectsOf(cur)
		if err != nil {
			return nil, err
		}
		for _, eff := range effects {
			rs, ok := eff.Type.(RequestStart)
			if !ok {
				continue
			}
			if _, seen := visited[eff.ID]; seen {
				continue
			}
			visited[eff.ID] = struct{}{}
			target, err := g.TargetNode(eff)
			if err != nil {
				return nil, err
			}
			res, ok := target.Type.(Resource)
			if !ok {
				return nil, fmt.Errorf("graph: request start edge %s points at %T node, not a resource", eff.ID, target.Type)
			}
			children, err := g.downstreamRequests(eff, ancestors)
			if err != nil {
				return nil, err
			}
			out = append(out, DownstreamRequests{
				RequestID:   rs.RequestID,
				RequestType: rs.RequestType,
				NodeID:      target.ID,
				URL:         res.URL,
				Children:    children,
			})
		}
		for i := len(effects) - 1; i >= 0; i-- {
			eff := effects[i]
			if _, ok := eff.Type.(RequestStart); ok {
				continue
			}
			if _, seen := visited[eff.ID]; seen {
				continue
			}
			visited[eff.ID] = struct{}{}
			stack = append(stack, eff)
		}
	}
	return out, nil
}

// compareTimestamps orders optional timestamps with nil before any value.
func compareTimestamps(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

// domNodeID extracts the DOM node id carried by DOM-ish node types.
func domNodeID(t NodeType) (uint64, bool) {
	switch v := t.(type) {
	case HTMLElement:
		return v.DOMNodeID, true
	case TextNode:
		return v.DOMNodeID, true
	case DOMRoot:
		return v.DOMNodeID, true
	case FrameOwner:
		return v.DOMNodeID, true
	}
	return 0, false
}
