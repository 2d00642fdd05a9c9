package stats

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"

	"github.com/hazyhaar/pagegraph/graph"
)

// BlockedRequest is one url and request type pair a rule set would block.
type BlockedRequest struct {
	URL         string `json:"url"`
	RequestType string `json:"request_type"`
}

// BlockedReport summarises the reach of a rule set over one recording. It
// counts directly matched requests together with the requests only made
// downstream of a matched one, since blocking the former suppresses the
// latter.
type BlockedReport struct {
	PageURL        string           `json:"page_url"`
	TotalResources int              `json:"total_resources"`
	BlockedCount   int              `json:"blocked_count"`
	Blocked        []BlockedRequest `json:"blocked"`
}

// CollectBlocked evaluates every resource request against m. A matched
// request enters the blocked set along with, for each resource fetched
// downstream of it, all of that resource's observed request types. With
// onlyExceptions set, requests hitting an exception rule are collected
// instead of blocked ones. Resources with unparseable or host-less URLs are
// skipped.
func CollectBlocked(g *graph.PageGraph, m graph.FilterMatcher, onlyExceptions bool) (*BlockedReport, error) {
	pageURL, err := g.RootURL()
	if err != nil {
		return nil, err
	}
	src, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("stats: parsing page URL: %w", err)
	}
	sourceHost := src.Hostname()
	if sourceHost == "" {
		return nil, fmt.Errorf("stats: page URL %q has no host", pageURL)
	}
	sourceDomain, err := graph.RegistrableDomain(sourceHost)
	if err != nil {
		return nil, err
	}

	resources := g.FilterNodes(isResource)
	report := &BlockedReport{PageURL: pageURL, TotalResources: len(resources)}
	blocked := make(map[BlockedRequest]struct{})
	for _, n := range resources {
		res := n.Type.(graph.Resource)
		req, err := url.Parse(res.URL)
		if err != nil {
			continue
		}
		host := req.Hostname()
		if host == "" {
			continue
		}
		domain, err := graph.RegistrableDomain(host)
		if err != nil {
			return nil, err
		}
		tp := domain != sourceDomain
		types, err := g.ResourceRequestTypes(n.ID)
		if err != nil {
			return nil, err
		}
		hit := false
		for _, rt := range types {
			match, err := m.Match(graph.FilterRequest{
				URL:            res.URL,
				Hostname:       host,
				Domain:         domain,
				SourceHostname: sourceHost,
				SourceDomain:   sourceDomain,
				RequestType:    rt.RequestType,
				ThirdParty:     &tp,
			})
			if err != nil {
				return nil, err
			}
			if (onlyExceptions && !match.Exception) || (!onlyExceptions && !match.Matched) {
				continue
			}
			blocked[BlockedRequest{URL: res.URL, RequestType: rt.RequestType}] = struct{}{}
			hit = true
		}
		if !hit {
			continue
		}
		if err := flagDownstreamResources(g, n.ID, blocked); err != nil {
			return nil, err
		}
	}

	out := make([]BlockedRequest, 0, len(blocked))
	for br := range blocked {
		out = append(out, br)
	}
	slices.SortFunc(out, func(a, b BlockedRequest) int {
		if c := cmp.Compare(a.URL, b.URL); c != 0 {
			return c
		}
		return cmp.Compare(a.RequestType, b.RequestType)
	})
	report.Blocked = out
	report.BlockedCount = len(out)
	return report, nil
}

// flagDownstreamResources adds every resource fetched downstream of the given
// one to the blocked set, with all of its observed request types.
func flagDownstreamResources(g *graph.PageGraph, id graph.NodeID, blocked map[BlockedRequest]struct{}) error {
	for _, e := range g.IncomingEdges(id) {
		if _, ok := e.Type.(graph.RequestStart); !ok {
			continue
		}
		effects, err := g.AllDownstreamEffectsOf(e)
		if err != nil {
			return err
		}
		for _, eff := range effects {
			if _, ok := eff.Type.(graph.RequestStart); !ok {
				continue
			}
			target, err := g.TargetNode(eff)
			if err != nil {
				return err
			}
			res, ok := target.Type.(graph.Resource)
			if !ok {
				continue
			}
			types, err := g.ResourceRequestTypes(target.ID)
			if err != nil {
				return err
			}
			for _, rt := range types {
				blocked[BlockedRequest{URL: res.URL, RequestType: rt.RequestType}] = struct{}{}
			}
		}
	}
	return nil
}
