package graph

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"

	"golang.org/x/net/publicsuffix"
)

// AllHTMLElementModifications returns one edge for every time the given HTML
// element was modified, ordered by timestamp with edge id breaking ties.
// Structure edges carry no modification and are excluded.
func (g *PageGraph) AllHTMLElementModifications(id NodeID) ([]*Edge, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, &ErrNotFound{What: fmt.Sprintf("node %s", id)}
	}
	if _, ok := n.Type.(HTMLElement); !ok {
		return nil, &ErrUnimplemented{What: fmt.Sprintf("modifications of %T node", n.Type)}
	}
	var mods []*Edge
	for _, e := range g.IncomingEdges(id) {
		if _, ok := e.Type.(Structure); ok {
			continue
		}
		if e.Timestamp == nil {
			return nil, &ErrNoTimestamp{Edge: e.ID}
		}
		mods = append(mods, e)
	}
	slices.SortFunc(mods, func(a, b *Edge) int {
		if c := cmp.Compare(*a.Timestamp, *b.Timestamp); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return mods, nil
}

// ScriptsThatCausedResource returns the nodes with a direct edge into the
// given resource, the scripts and elements responsible for fetching it.
func (g *PageGraph) ScriptsThatCausedResource(id NodeID) ([]*Node, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, &ErrNotFound{What: fmt.Sprintf("node %s", id)}
	}
	if _, ok := n.Type.(Resource); !ok {
		return nil, &ErrUnimplemented{What: fmt.Sprintf("request initiators of %T node", n.Type)}
	}
	return g.incomingNeighbors(id)
}

// ResourcesFromScript returns the resources requested by a script node or by
// a script element. A script element contributes both its own src fetch and
// the fetches of the script it executes, so a resource can appear twice.
func (g *PageGraph) ResourcesFromScript(id NodeID) ([]*Node, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, &ErrNotFound{What: fmt.Sprintf("node %s", id)}
	}
	neighbors, err := g.outgoingNeighbors(id)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, nb := range neighbors {
		if _, ok := nb.Type.(Resource); ok {
			out = append(out, nb)
		}
	}
	switch t := n.Type.(type) {
	case Script:
	case HTMLElement:
		if t.TagName != "script" {
			return nil, &ErrUnimplemented{What: fmt.Sprintf("resources from %q element", t.TagName)}
		}
		for _, nb := range neighbors {
			if _, ok := nb.Type.(Script); !ok {
				continue
			}
			fetched, err := g.outgoingNeighbors(nb.ID)
			if err != nil {
				return nil, err
			}
			for _, res := range fetched {
				if _, ok := res.Type.(Resource); ok {
					out = append(out, res)
				}
			}
		}
	default:
		return nil, &ErrUnimplemented{What: fmt.Sprintf("resources from %T node", n.Type)}
	}
	return out, nil
}

// RootURL returns the URL the recording was captured from. Older recordings
// carry no descriptor URL; for those the unique DOM root without incoming
// edges provides it.
func (g *PageGraph) RootURL() (string, error) {
	if g.Desc.URL != "" {
		return g.Desc.URL, nil
	}
	roots := g.FilterNodes(func(n *Node) bool {
		d, ok := n.Type.(DOMRoot)
		return ok && d.URL != nil && len(g.IncomingEdges(n.ID)) == 0
	})
	if len(roots) != 1 {
		return "", &ErrCardinality{What: "root DOM root with URL", Want: 1, Got: len(roots)}
	}
	return *roots[0].Type.(DOMRoot).URL, nil
}

// FilterRequest is one network request as presented to an ad-block matcher.
// Hostname fields carry raw URL hosts and Domain fields their registrable
// domains. ThirdParty is nil when partiness cannot be determined.
type FilterRequest struct {
	URL            string
	Hostname       string
	Domain         string
	SourceHostname string
	SourceDomain   string
	RequestType    string
	ThirdParty     *bool
}

// FilterMatch reports how an ad-block matcher classified a request.
type FilterMatch struct {
	Matched   bool
	Exception bool
}

// FilterMatcher matches network requests against a set of ad-block rules.
type FilterMatcher interface {
	Match(req FilterRequest) (FilterMatch, error)
}

// ResourcesMatchingFilters returns the resources whose requests the matcher
// flags, in ascending node id order. With onlyExceptions set, resources are
// kept when an exception rule applies instead of a block rule. Resources
// with unparseable or host-less URLs are skipped.
func (g *PageGraph) ResourcesMatchingFilters(m FilterMatcher, onlyExceptions bool) ([]*Node, error) {
	rootURL, err := g.RootURL()
	if err != nil {
		return nil, err
	}
	src, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("graph: parsing root URL: %w", err)
	}
	sourceHost := src.Hostname()
	if sourceHost == "" {
		return nil, fmt.Errorf("graph: root URL %q has no host", rootURL)
	}
	sourceDomain, err := RegistrableDomain(sourceHost)
	if err != nil {
		return nil, err
	}

	var out []*Node
	resources := g.FilterNodes(func(n *Node) bool {
		_, ok := n.Type.(Resource)
		return ok
	})
	for _, n := range resources {
		res := n.Type.(Resource)
		req, err := url.Parse(res.URL)
		if err != nil {
			continue
		}
		host := req.Hostname()
		if host == "" {
			continue
		}
		domain, err := RegistrableDomain(host)
		if err != nil {
			return nil, err
		}
		var thirdParty *bool
		if sourceDomain != "" {
			tp := sourceDomain != domain
			thirdParty = &tp
		}
		types, err := g.ResourceRequestTypes(n.ID)
		if err != nil {
			return nil, err
		}
		for _, rt := range types {
			match, err := m.Match(FilterRequest{
				URL:            res.URL,
				Hostname:       host,
				Domain:         domain,
				SourceHostname: sourceHost,
				SourceDomain:   sourceDomain,
				RequestType:    rt.RequestType,
				ThirdParty:     thirdParty,
			})
			if err != nil {
				return nil, err
			}
			if (onlyExceptions && match.Exception) || (!onlyExceptions && match.Matched) {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

// RegistrableDomain returns the effective registrable domain of host.
// localhost has no public suffix and maps to itself.
func RegistrableDomain(host string) (string, error) {
	if host == "localhost" {
		return host, nil
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("graph: registrable domain for %q: %w", host, err)
	}
	return domain, nil
}

func (g *PageGraph) incomingNeighbors(id NodeID) ([]*Node, error) {
	var out []*Node
	for nid, ids := range g.rev[id] {
		n, ok := g.nodes[nid]
		if !ok {
			return nil, &ErrDanglingEdge{Edge: ids[0], Node: nid, End: "source"}
		}
		out = append(out, n)
	}
	sortNodes(out)
	return out, nil
}

func (g *PageGraph) outgoingNeighbors(id NodeID) ([]*Node, error) {
	var out []*Node
	for nid, ids := range g.fwd[id] {
		n, ok := g.nodes[nid]
		if !ok {
			return nil, &ErrDanglingEdge{Edge: ids[0], Node: nid, End: "target"}
		}
		out = append(out, n)
	}
	sortNodes(out)
	return out, nil
}
