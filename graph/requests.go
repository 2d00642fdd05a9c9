package graph

import (
	"fmt"
	"strconv"
)

// RequestTypeSize pairs one observed request type for a resource with the
// size its completion reported. Streamed fetches, audio, and video carry no
// parseable size, so Size is nil for those.
type RequestTypeSize struct {
	RequestType string  `json:"request_type"`
	Size        *uint64 `json:"size"`
}

type typeSizeKey struct {
	requestType string
	size        uint64
	sized       bool
}

// ResourceRequestTypes returns the distinct request type and size pairs
// observed for a resource, in first-seen order over ascending edge ids. The
// size comes from the first completion sharing a start's request id. A
// resource that was never requested reports a single "other" entry.
func (g *PageGraph) ResourceRequestTypes(id NodeID) ([]RequestTypeSize, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, &ErrNotFound{What: fmt.Sprintf("node %s", id)}
	}
	if _, ok := n.Type.(Resource); !ok {
		return nil, &ErrUnimplemented{What: fmt.Sprintf("request types of %T node", n.Type)}
	}

	var out []RequestTypeSize
	seen := make(map[typeSizeKey]struct{})
	for _, e := range g.IncomingEdges(id) {
		rs, ok := e.Type.(RequestStart)
		if !ok {
			continue
		}
		size := g.completedRequestSize(rs.RequestID)
		key := typeSizeKey{requestType: rs.RequestType.String()}
		if size != nil {
			key.size, key.sized = *size, true
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, RequestTypeSize{RequestType: rs.RequestType.String(), Size: size})
	}
	if len(out) == 0 {
		return []RequestTypeSize{{RequestType: "other"}}, nil
	}
	return out, nil
}

// completedRequestSize reads the size reported by the first completion of a
// request id, scanning edges in ascending id order. The first completion
// decides: an unparseable size there yields nil even when later completions
// parse.
func (g *PageGraph) completedRequestSize(requestID uint64) *uint64 {
	completions := g.FilterEdges(func(e *Edge) bool {
		rc, ok := e.Type.(RequestComplete)
		return ok && rc.RequestID == requestID
	})
	for _, e := range completions {
		rc := e.Type.(RequestComplete)
		if v, err := strconv.ParseUint(rc.Size, 10, 64); err == nil {
			return &v
		}
		return nil
	}
	return nil
}

// RequestInfo aggregates what a recording knows about one request id: the
// type from its start edge, the resource URL, and the response details from
// its completion.
type RequestInfo struct {
	RequestType  RequestType `json:"request_type"`
	URL          string      `json:"url"`
	ResourceType string      `json:"resource_type"`
	Status       string      `json:"status"`
	Value        *string     `json:"value"`
	ResponseHash *string     `json:"response_hash"`
	Headers      string      `json:"headers"`
	Size         string      `json:"size"`
}

// RequestIDInfo reports the recorded details of one request id within a
// frame context; frame nil selects the root context. Requests served from
// cache can produce several start and complete edges for one id with
// identical payloads, so the lowest-id edge of each kind is used. The start
// and completion must refer to the same resource.
func (g *PageGraph) RequestIDInfo(requestID uint64, frame *FrameID) (*RequestInfo, error) {
	inFrame := func(id EdgeID) bool {
		f, ok := id.Frame()
		if frame == nil {
			return !ok
		}
		return ok && f == *frame
	}

	var start, complete *Edge
	for _, e := range g.FilterEdges(func(e *Edge) bool { return inFrame(e.ID) }) {
		switch t := e.Type.(type) {
		case RequestStart:
			if t.RequestID == requestID && start == nil {
				start = e
			}
		case RequestComplete:
			if t.RequestID == requestID && complete == nil {
				complete = e
			}
		}
	}
	if start == nil {
		return nil, &ErrNotFound{What: fmt.Sprintf("request start edge for request %d", requestID)}
	}
	if complete == nil {
		return nil, &ErrNotFound{What: fmt.Sprintf("request complete edge for request %d", requestID)}
	}

	resource, err := g.TargetNode(start)
	if err != nil {
		return nil, err
	}
	completeSource, err := g.SourceNode(complete)
	if err != nil {
		return nil, err
	}
	if resource.ID != completeSource.ID {
		return nil, &ErrCardinality{What: fmt.Sprintf("resource for request %d", requestID), Want: 1, Got: 2}
	}
	res, ok := resource.Type.(Resource)
	if !ok {
		return nil, fmt.Errorf("graph: request %d starts at %T node, not a resource", requestID, resource.Type)
	}

	rs := start.Type.(RequestStart)
	rc := complete.Type.(RequestComplete)
	return &RequestInfo{
		RequestType:  rs.RequestType,
		URL:          res.URL,
		ResourceType: rc.ResourceType,
		Status:       rc.Status,
		Value:        rc.Value,
		ResponseHash: rc.ResponseHash,
		Headers:      rc.Headers,
		Size:         rc.Size,
	}, nil
}
