// Package stats derives summary statistics from page graph recordings and
// runs that collection in batch across many files, persisting results to
// SQLite.
package stats

import (
	"cmp"
	"slices"

	"github.com/hazyhaar/pagegraph/graph"
)

// DefaultHotThreshold is the modification count from which an element is
// reported as hot.
const DefaultHotThreshold = 4

// PageStats are the summary counters of one recording.
type PageStats struct {
	URL               string `json:"url"`
	Nodes             int    `json:"nodes"`
	Edges             int    `json:"edges"`
	DomNodesCreated   int    `json:"dom_nodes_created"`
	DomNodesRetained  int    `json:"dom_nodes_retained"`
	DomNodesTouched   int    `json:"dom_nodes_touched"`
	CompletedRequests int    `json:"completed_requests"`
	EventListeners    int    `json:"event_listeners"`
	RemoteFrames      int    `json:"remote_frames"`
}

// Collect computes the summary counters for one recording. Retained elements
// are those not deleted by the end of the recording. Every element carries a
// create and an insert edge, so an element counts as touched once its
// modification history extends past those two.
func Collect(g *graph.PageGraph) (*PageStats, error) {
	pageURL, err := g.RootURL()
	if err != nil {
		return nil, err
	}
	st := &PageStats{
		URL:   pageURL,
		Nodes: g.NodeCount(),
		Edges: g.EdgeCount(),
	}
	for _, n := range g.FilterNodes(isHTMLElement) {
		st.DomNodesCreated++
		if !n.Type.(graph.HTMLElement).IsDeleted {
			st.DomNodesRetained++
		}
		mods, err := g.AllHTMLElementModifications(n.ID)
		if err != nil {
			return nil, err
		}
		if len(mods) > 2 {
			st.DomNodesTouched++
		}
	}
	st.CompletedRequests = len(g.FilterEdges(func(e *graph.Edge) bool {
		_, ok := e.Type.(graph.RequestComplete)
		return ok
	}))
	st.EventListeners = len(g.FilterEdges(func(e *graph.Edge) bool {
		_, ok := e.Type.(graph.AddEventListener)
		return ok
	}))
	st.RemoteFrames = len(g.AllRemoteFrameIDs())
	return st, nil
}

// HotElement is an HTML element with an unusually busy modification history.
type HotElement struct {
	ID            graph.NodeID   `json:"id"`
	TagName       string         `json:"tag_name"`
	DOMNodeID     uint64         `json:"dom_node_id"`
	Modifications []graph.EdgeID `json:"modifications"`
}

// HotElements returns the elements modified at least threshold times, most
// modified first with node id breaking ties. A threshold of zero or below
// selects DefaultHotThreshold. Modification edge ids come back in timestamp
// order.
func HotElements(g *graph.PageGraph, threshold int) ([]HotElement, error) {
	if threshold <= 0 {
		threshold = DefaultHotThreshold
	}
	var out []HotElement
	for _, n := range g.FilterNodes(isHTMLElement) {
		mods, err := g.AllHTMLElementModifications(n.ID)
		if err != nil {
			return nil, err
		}
		if len(mods) < threshold {
			continue
		}
		el := n.Type.(graph.HTMLElement)
		ids := make([]graph.EdgeID, len(mods))
		for i, e := range mods {
			ids[i] = e.ID
		}
		out = append(out, HotElement{
			ID:            n.ID,
			TagName:       el.TagName,
			DOMNodeID:     el.DOMNodeID,
			Modifications: ids,
		})
	}
	slices.SortFunc(out, func(a, b HotElement) int {
		if c := cmp.Compare(len(b.Modifications), len(a.Modifications)); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out, nil
}

func isHTMLElement(n *graph.Node) bool {
	_, ok := n.Type.(graph.HTMLElement)
	return ok
}

func isResource(n *graph.Node) bool {
	_, ok := n.Type.(graph.Resource)
	return ok
}
